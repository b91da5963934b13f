// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Announcement results recorded in AnnouncementsTotal.
const (
	AnnouncementSent    = "sent"
	AnnouncementSkipped = "skipped"
	AnnouncementFailed  = "failed"
)

var (
	once sync.Once

	// Counters
	PollCycles         prometheus.Counter
	PollFailures       prometheus.Counter
	PresenceFailures   prometheus.Counter
	AnnouncementsTotal *prometheus.CounterVec

	// Histograms (seconds)
	FetchDuration prometheus.Observer

	// Gauges
	LiveStreamsGauge prometheus.Gauge
	ViewersGauge     prometheus.Gauge
	LastPollGauge    prometheus.Gauge // unix seconds of last successful poll
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PollCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "luminbot_poll_cycles_total", Help: "Number of stream poll cycles started"})
		PollFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "luminbot_poll_failures_total", Help: "Number of poll cycles whose data fetch failed"})
		PresenceFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "luminbot_presence_failures_total", Help: "Number of failed presence updates"})
		AnnouncementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "luminbot_announcements_total", Help: "Go-live announcements by result"}, []string{"result"})
		FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "luminbot_fetch_duration_seconds", Help: "Stream data fetch duration seconds", Buckets: prometheus.DefBuckets})
		LiveStreamsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "luminbot_live_streams", Help: "Live streams in the last successful poll"})
		ViewersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "luminbot_viewers", Help: "Total viewers in the last successful poll"})
		LastPollGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "luminbot_last_poll_timestamp_seconds", Help: "Unix time of the last successful poll"})
	})
}

// SetSnapshot records the aggregate counters of a successful poll.
func SetSnapshot(liveStreams, viewers int, at time.Time) {
	if LiveStreamsGauge != nil {
		LiveStreamsGauge.Set(float64(liveStreams))
	}
	if ViewersGauge != nil {
		ViewersGauge.Set(float64(viewers))
	}
	if LastPollGauge != nil {
		LastPollGauge.Set(float64(at.Unix()))
	}
}

// CountAnnouncement increments the announcement counter for result.
func CountAnnouncement(result string) {
	if AnnouncementsTotal != nil {
		AnnouncementsTotal.WithLabelValues(result).Inc()
	}
}

// Inc increments c if it has been registered.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
