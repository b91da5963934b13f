// Package streams holds the live stream data model shared by the poller and the
// data sources: records, per-poll snapshots, the previous-id accumulator used
// to detect streams that just went live, and the text rendered to Discord.
package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedDocument is returned when a streams document lacks the streams list.
var ErrMalformedDocument = errors.New("malformed streams document")

// User identifies the broadcaster of a stream.
type User struct {
	Name string `json:"name"`
}

// Record is a single live stream as reported by the data source. A missing
// viewer_count decodes as zero.
type Record struct {
	ID          string `json:"id"`
	User        User   `json:"user"`
	ViewerCount int    `json:"viewer_count"`
}

// Snapshot is the ordered set of live streams observed by one poll.
type Snapshot []Record

// TotalViewerCount sums viewer counts across all records.
func (s Snapshot) TotalViewerCount() int {
	total := 0
	for _, r := range s {
		total += r.ViewerCount
	}
	return total
}

// LiveChannelCount is the number of records, regardless of viewers.
func (s Snapshot) LiveChannelCount() int { return len(s) }

// Document is the wire shape of the "streams" data key: {"streams": [...]}.
type Document struct {
	Streams *[]Record `json:"streams"`
}

// ParseDocument decodes a streams document. A document without a streams list
// is malformed; an empty list is a valid empty snapshot.
func ParseDocument(raw []byte) (Snapshot, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if doc.Streams == nil {
		return nil, fmt.Errorf("%w: missing streams", ErrMalformedDocument)
	}
	return Snapshot(*doc.Streams), nil
}

// MarshalDocument encodes a snapshot in the document shape read by ParseDocument.
func MarshalDocument(s Snapshot) ([]byte, error) {
	recs := []Record(s)
	if recs == nil {
		recs = []Record{}
	}
	return json.Marshal(Document{Streams: &recs})
}

// Source supplies the current snapshot of live streams.
type Source interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context) (Snapshot, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) (Snapshot, error) { return f(ctx) }
