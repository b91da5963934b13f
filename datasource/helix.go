package datasource

import (
	"context"
	"fmt"

	"github.com/luminbot/luminbot-discord/streams"
	"github.com/luminbot/luminbot-discord/twitchapi"
)

// StreamLister is the part of twitchapi.HelixClient used by HelixSource.
type StreamLister interface {
	GetStreams(ctx context.Context, q twitchapi.StreamsQuery) ([]twitchapi.Stream, error)
}

// HelixSource reads live streams straight from Twitch.
type HelixSource struct {
	Client StreamLister
	Query  twitchapi.StreamsQuery
}

// Fetch implements streams.Source. Records are named by login so the watch URL resolves.
func (s *HelixSource) Fetch(ctx context.Context) (streams.Snapshot, error) {
	live, err := s.Client.GetStreams(ctx, s.Query)
	if err != nil {
		return nil, fmt.Errorf("helix streams: %w", err)
	}
	snap := make(streams.Snapshot, 0, len(live))
	for _, st := range live {
		snap = append(snap, FromHelix(st))
	}
	return snap, nil
}

// FromHelix maps a Helix stream onto a stream record.
func FromHelix(st twitchapi.Stream) streams.Record {
	return streams.Record{
		ID:          st.ID,
		User:        streams.User{Name: st.UserLogin},
		ViewerCount: st.ViewerCount,
	}
}
