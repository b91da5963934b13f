// Package datasource implements the stream data sources the poller reads from.
//
// Two sources exist:
//   - DocumentSource reads a keyed JSON document ({"streams": [...]}) from a
//     Store; PostgresStore keeps those documents in the documents table, written
//     by whatever process tracks the streams (see cmd/streamsdoc).
//   - HelixSource asks the Twitch Helix API directly for live streams of a
//     configured set of logins or a game.
package datasource
