// Package twitchapi contains minimal helpers to interact with the Twitch Helix API
// for listing live streams, using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	helixBaseURL = "https://api.twitch.tv/helix"
	// helixMaxRetries bounds attempts on 429/5xx responses.
	helixMaxRetries = 3
	// helixMaxLogins is the Helix limit of user_login values per request.
	helixMaxLogins = 100
	helixPageSize  = 100
	helixMaxPages  = 50
)

// ErrUnauthorized is returned when Helix rejects a freshly refreshed token.
var ErrUnauthorized = errors.New("twitch helix: unauthorized")

// HelixClient provides the Helix calls needed to watch live streams.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	HTTPClient     *http.Client
	// BaseURL overrides the Helix API root.
	BaseURL string
	// RetryBackoff is the base delay between retries (default 500ms).
	RetryBackoff time.Duration
}

// Stream is a live stream as returned by GET /helix/streams.
type Stream struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserLogin   string    `json:"user_login"`
	UserName    string    `json:"user_name"`
	GameID      string    `json:"game_id"`
	GameName    string    `json:"game_name"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	ViewerCount int       `json:"viewer_count"`
	StartedAt   time.Time `json:"started_at"`
	Language    string    `json:"language"`
}

// StreamsQuery filters GetStreams. Empty fields are not sent.
type StreamsQuery struct {
	UserLogins []string
	GameID     string
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) baseURL() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return helixBaseURL
}

// GetStreams lists live streams matching q, following pagination. Logins beyond the
// per-request Helix limit are split across requests.
func (hc *HelixClient) GetStreams(ctx context.Context, q StreamsQuery) ([]Stream, error) {
	if len(q.UserLogins) == 0 && q.GameID == "" {
		return nil, fmt.Errorf("streams query empty")
	}
	batches := [][]string{nil}
	if len(q.UserLogins) > 0 {
		batches = batches[:0]
		for i := 0; i < len(q.UserLogins); i += helixMaxLogins {
			end := min(i+helixMaxLogins, len(q.UserLogins))
			batches = append(batches, q.UserLogins[i:end])
		}
	}
	var out []Stream
	for _, logins := range batches {
		after := ""
		for page := 0; page < helixMaxPages; page++ {
			v := url.Values{}
			for _, l := range logins {
				v.Add("user_login", l)
			}
			if q.GameID != "" {
				v.Set("game_id", q.GameID)
			}
			v.Set("type", "live")
			v.Set("first", strconv.Itoa(helixPageSize))
			if after != "" {
				v.Set("after", after)
			}
			var body struct {
				Data       []Stream `json:"data"`
				Pagination struct {
					Cursor string `json:"cursor"`
				} `json:"pagination"`
			}
			if err := hc.getJSON(ctx, "/streams", v, &body); err != nil {
				return nil, err
			}
			out = append(out, body.Data...)
			after = body.Pagination.Cursor
			if after == "" || len(body.Data) == 0 {
				break
			}
		}
	}
	return out, nil
}

// getJSON performs an authenticated GET, retrying 429/5xx up to helixMaxRetries times and
// refreshing the app token once on 401.
func (hc *HelixClient) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	backoff := hc.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	refreshed := false
	var lastErr error
	for attempt := 1; attempt <= helixMaxRetries; attempt++ {
		tok, err := hc.AppTokenSource.Get(ctx)
		if err != nil {
			return fmt.Errorf("twitch app token: %w", err)
		}
		status, err := hc.doGet(ctx, path, q, tok, dst)
		if err != nil {
			return err
		}
		switch {
		case status == http.StatusOK:
			return nil
		case status == http.StatusUnauthorized:
			if refreshed {
				return ErrUnauthorized
			}
			refreshed = true
			hc.AppTokenSource.Invalidate(tok)
			attempt-- // token refresh does not consume a retry slot
			continue
		case status == http.StatusTooManyRequests || status >= 500:
			lastErr = fmt.Errorf("twitch helix %s: status %d", path, status)
			slog.Debug("helix retry", slog.String("path", path), slog.Int("status", status), slog.Int("attempt", attempt))
			if attempt == helixMaxRetries {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff * time.Duration(attempt)):
			}
		default:
			return fmt.Errorf("twitch helix %s: status %d", path, status)
		}
	}
	return lastErr
}

func (hc *HelixClient) doGet(ctx context.Context, path string, q url.Values, tok string, dst any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.baseURL()+path, nil)
	if err != nil {
		return 0, err
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return 0, fmt.Errorf("decode helix %s: %w", path, err)
	}
	return resp.StatusCode, nil
}
