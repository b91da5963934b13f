package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/luminbot/luminbot-discord/bot"
	"github.com/luminbot/luminbot-discord/poller"
)

// HandleHealthz responds to liveness probes. The process is live while it serves HTTP.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready once the bot is running, the data source answers,
// and the poller has not only failed so far.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"bot", func() error {
			if h.bot == nil {
				return errors.New("bot not configured")
			}
			if s := h.bot.State(); s != bot.StateRunning {
				return fmt.Errorf("bot %s", s)
			}
			return nil
		}},
		{"data_source", func() error {
			if h.dataSource == nil {
				return nil
			}
			return h.dataSource.Ping(r.Context())
		}},
		{"poller", func() error {
			if h.poller == nil {
				return nil
			}
			st := h.poller.Status()
			if st.Cycles > 0 && st.LastSuccessAt.IsZero() {
				return fmt.Errorf("no successful poll in %d cycles: %s", st.Cycles, st.LastError)
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			// Set headers before writing status code
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// statusResponse is the /status payload.
type statusResponse struct {
	Bot    string         `json:"bot"`
	Poller *poller.Status `json:"poller,omitempty"`
}

// HandleStatus returns the bot lifecycle stage and the poll loop's last observed state.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{Bot: "unknown"}
	if h.bot != nil {
		resp.Bot = h.bot.State().String()
	}
	if h.poller != nil {
		st := h.poller.Status()
		resp.Poller = &st
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
