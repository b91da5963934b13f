package poller

import (
	"context"
	"errors"
	"log/slog"

	"github.com/luminbot/luminbot-discord/discord"
	"github.com/luminbot/luminbot-discord/streams"
	"github.com/luminbot/luminbot-discord/telemetry"
)

// Presence publishes the aggregate status line.
type Presence interface {
	SetWatching(ctx context.Context, text string) error
}

// Announcer reports a stream that just went live.
type Announcer interface {
	Announce(ctx context.Context, rec streams.Record) error
}

// MessageSender posts a text message to a channel.
type MessageSender interface {
	SendMessage(ctx context.Context, channelID, message string) error
}

// ChannelAnnouncer posts go-live messages to a fixed channel. A missing or
// unresolvable channel is logged and skipped rather than returned.
type ChannelAnnouncer struct {
	Sender    MessageSender
	ChannelID string
}

// Announce implements Announcer.
func (a *ChannelAnnouncer) Announce(ctx context.Context, rec streams.Record) error {
	log := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "announcer"),
		slog.String("stream_id", rec.ID),
		slog.String("user", rec.User.Name),
	)
	if a.ChannelID == "" {
		telemetry.CountAnnouncement(telemetry.AnnouncementSkipped)
		log.Warn("announcement skipped: promotion channel not configured")
		return nil
	}
	err := a.Sender.SendMessage(ctx, a.ChannelID, streams.AnnouncementText(rec))
	switch {
	case err == nil:
		telemetry.CountAnnouncement(telemetry.AnnouncementSent)
		log.Info("go-live announced", slog.String("channel_id", a.ChannelID))
		return nil
	case errors.Is(err, discord.ErrChannelNotFound):
		telemetry.CountAnnouncement(telemetry.AnnouncementSkipped)
		log.Warn("announcement skipped: promotion channel unavailable", slog.String("channel_id", a.ChannelID), slog.Any("err", err))
		return nil
	default:
		telemetry.CountAnnouncement(telemetry.AnnouncementFailed)
		return err
	}
}
