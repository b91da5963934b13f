package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/luminbot/luminbot-discord/streams"
	"github.com/luminbot/luminbot-discord/telemetry"
)

const (
	DefaultInterval     = 60 * time.Second
	DefaultFetchTimeout = 15 * time.Second
)

// Options tune a Poller. Zero values take the defaults.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	Clock        clockwork.Clock
}

// Status is a point-in-time view of the poll loop for health reporting.
type Status struct {
	Cycles        int       `json:"cycles"`
	LastPollAt    time.Time `json:"last_poll_at"`
	LastSuccessAt time.Time `json:"last_success_at"`
	LastError     string    `json:"last_error,omitempty"`
	LiveStreams   int       `json:"live_streams"`
	Viewers       int       `json:"viewers"`
	StatusText    string    `json:"status_text"`
	Announced     int       `json:"announced"`
}

type Poller struct {
	source       streams.Source
	presence     Presence
	announcer    Announcer
	interval     time.Duration
	fetchTimeout time.Duration
	clock        clockwork.Clock

	mu     sync.RWMutex
	status Status
}

// New builds a poller reading from source and reporting through presence and announcer.
func New(source streams.Source, presence Presence, announcer Announcer, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Poller{
		source:       source,
		presence:     presence,
		announcer:    announcer,
		interval:     opts.Interval,
		fetchTimeout: opts.FetchTimeout,
		clock:        opts.Clock,
	}
}

// Run ticks immediately and then every interval until ctx is done, returning ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()
	slog.Info("stream poller started", slog.Duration("interval", p.interval), slog.String("component", "poller"))

	var prev streams.IDSet
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		prev = p.Tick(ctx, prev)
		select {
		case <-ctx.Done():
			slog.Info("stream poller stopped", slog.String("component", "poller"))
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

// Tick runs one poll cycle against the ids seen by the previous cycle and returns
// the ids to carry into the next one.
func (p *Poller) Tick(ctx context.Context, prev streams.IDSet) streams.IDSet {
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "poller", "poll-tick")
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "poller"))
	telemetry.Inc(telemetry.PollCycles)
	now := p.clock.Now()

	var (
		snap streams.Snapshot
		err  error
	)
	telemetry.TimeFunc(telemetry.FetchDuration, func() {
		fctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
		defer cancel()
		snap, err = p.source.Fetch(fctx)
	})
	if err != nil {
		telemetry.Inc(telemetry.PollFailures)
		telemetry.RecordError(span, err)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			log.Warn("stream fetch timed out; skipping tick", slog.Duration("timeout", p.fetchTimeout))
		} else {
			log.Warn("stream fetch failed; skipping tick", slog.Any("err", err))
		}
		p.update(func(s *Status) {
			s.Cycles++
			s.LastPollAt = now
			s.LastError = err.Error()
		})
		return prev
	}

	text := streams.StatusText(snap)
	telemetry.SetSnapshot(snap.LiveChannelCount(), snap.TotalViewerCount(), now)
	if err := p.presence.SetWatching(ctx, text); err != nil {
		telemetry.Inc(telemetry.PresenceFailures)
		log.Warn("presence update failed", slog.Any("err", err))
	}

	newly := streams.NewlyLive(prev, snap)
	announced := 0
	for _, rec := range newly {
		if ctx.Err() != nil {
			break
		}
		if err := p.announcer.Announce(ctx, rec); err != nil {
			log.Warn("announcement failed", slog.String("stream_id", rec.ID), slog.Any("err", err))
			continue
		}
		announced++
	}
	span.SetAttributes(
		telemetry.LiveStreamsAttr(snap.LiveChannelCount()),
		telemetry.ViewersAttr(snap.TotalViewerCount()),
		telemetry.NewStreamsAttr(len(newly)),
	)
	telemetry.SetSpanSuccess(span)
	log.Debug("poll tick complete", slog.String("status", text), slog.Int("new_streams", len(newly)))

	p.update(func(s *Status) {
		s.Cycles++
		s.LastPollAt = now
		s.LastSuccessAt = now
		s.LastError = ""
		s.LiveStreams = snap.LiveChannelCount()
		s.Viewers = snap.TotalViewerCount()
		s.StatusText = text
		s.Announced += announced
	})
	return streams.IDsOf(snap)
}

// Status returns a copy of the current loop status.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Poller) update(fn func(*Status)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.status)
}
