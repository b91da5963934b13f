package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/luminbot/luminbot-discord/bot"
	"github.com/luminbot/luminbot-discord/poller"
)

type fixedBot bot.State

func (b fixedBot) State() bot.State { return bot.State(b) }

type fixedPoller poller.Status

func (p fixedPoller) Status() poller.Status { return poller.Status(p) }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthzOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	NewMux(Deps{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != "ok" {
		t.Fatalf("expected ok body, got %q", got)
	}
}

func TestReadyz(t *testing.T) {
	okPing := pingFunc(func(context.Context) error { return nil })
	succeeded := fixedPoller{Cycles: 2, LastSuccessAt: time.Now()}

	tests := []struct {
		name       string
		deps       Deps
		wantCode   int
		wantFailed string
	}{
		{"ready", Deps{Bot: fixedBot(bot.StateRunning), Poller: succeeded, DataSource: okPing}, http.StatusOK, ""},
		{"ready without data source check", Deps{Bot: fixedBot(bot.StateRunning), Poller: fixedPoller{}}, http.StatusOK, ""},
		{"bot connecting", Deps{Bot: fixedBot(bot.StateConnecting), Poller: succeeded}, http.StatusServiceUnavailable, "bot"},
		{"bot missing", Deps{}, http.StatusServiceUnavailable, "bot"},
		{"data source down", Deps{
			Bot:        fixedBot(bot.StateRunning),
			DataSource: pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		}, http.StatusServiceUnavailable, "data_source"},
		{"only failed polls", Deps{
			Bot:    fixedBot(bot.StateRunning),
			Poller: fixedPoller{Cycles: 3, LastError: "fetch: timeout"},
		}, http.StatusServiceUnavailable, "poller"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			rr := httptest.NewRecorder()
			NewMux(tt.deps).ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d, body=%s", tt.wantCode, rr.Code, rr.Body.String())
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected Content-Type=application/json, got %q", ct)
			}
			var resp map[string]string
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if tt.wantFailed == "" {
				if resp["status"] != "ready" {
					t.Fatalf("expected status=ready, got %q", resp["status"])
				}
				return
			}
			if resp["status"] != "not_ready" || resp["failed_check"] != tt.wantFailed {
				t.Fatalf("expected not_ready/%s, got %v", tt.wantFailed, resp)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	deps := Deps{
		Bot:    fixedBot(bot.StateRunning),
		Poller: fixedPoller{Cycles: 4, LiveStreams: 3, Viewers: 150, StatusText: "3 streams | 150 viewers", Announced: 3},
	}
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	NewMux(deps).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Bot    string        `json:"bot"`
		Poller poller.Status `json:"poller"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Bot != "running" {
		t.Errorf("bot = %q, want running", resp.Bot)
	}
	if resp.Poller.StatusText != "3 streams | 150 viewers" || resp.Poller.Cycles != 4 || resp.Poller.Announced != 3 {
		t.Errorf("poller = %+v", resp.Poller)
	}

	rr = httptest.NewRecorder()
	NewMux(deps).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/status", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /status = %d, want 405", rr.Code)
	}
}

func TestCorrelationHeader(t *testing.T) {
	h := NewMux(Deps{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Correlation-ID"); got != "abc-123" {
		t.Fatalf("expected propagated correlation id, got %q", got)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if got := rr.Header().Get("X-Correlation-ID"); got == "" {
		t.Fatal("expected generated correlation id")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	NewMux(Deps{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatal("expected default Go collector output")
	}
}

func TestStartAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Start(ctx, "127.0.0.1:0", NewMux(Deps{})) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
