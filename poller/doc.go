// Package poller runs the bot's periodic stream poll.
//
// Every tick it fetches a snapshot from a streams.Source, pushes the
// "<n> streams | <m> viewers" presence, and announces streams that were not in
// the previous tick's id set. The previous ids are an accumulator passed from
// tick to tick and owned by the single goroutine running Run.
//
// A failed fetch is logged and the tick skipped; the previous ids are kept so
// that nothing is announced twice or missed once the source recovers.
package poller
