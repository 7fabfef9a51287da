// SPDX-License-Identifier: GPL-3.0-or-later

package conduit

import (
	"fmt"
	"sync/atomic"
)

// StreamId identifies a logical sub-channel within a connector.
//
// Stream ids are allocated by a per-listener [StreamIdGenerator] starting at
// 1 and are never reused within a process lifetime.
type StreamId uint64

// StreamIdGenerator allocates fresh, monotonically increasing [StreamId]
// values. The zero value is not ready for use; construct one with
// [NewStreamIdGenerator].
//
// A StreamIdGenerator is safe for concurrent use by multiple goroutines,
// which matters because the listener core calls [Next] from the goroutine
// it spawns for each accepted connection, so several calls can run at once.
type StreamIdGenerator struct {
	next uint64
}

// NewStreamIdGenerator returns a generator whose first [Next] call yields 1.
func NewStreamIdGenerator() *StreamIdGenerator {
	return &StreamIdGenerator{next: 1}
}

// Next returns the next unused [StreamId].
func (g *StreamIdGenerator) Next() StreamId {
	return StreamId(atomic.AddUint64(&g.next, 1) - 1)
}

// EventId uniquely identifies an [Event] and carries the correlation keys
// used by the transactional ack/fail protocol.
//
// EventId has a total order per (SourceUID, Stream); PullID is monotonic
// within a stream and is the ack correlation key.
type EventId struct {
	// SourceUID identifies the source instance that produced the event.
	SourceUID string

	// Stream identifies the stream the event was pulled from.
	Stream StreamId

	// PullID is the monotonic-within-stream pull sequence number; it is
	// the correlation key for ack/fail.
	PullID uint64

	// OpID distinguishes multiple logical operations batched under the
	// same pull (e.g. a single read producing several records).
	OpID uint64
}

// String returns a compact human-readable representation, useful as a log
// correlator alongside [NewSpanID].
func (id EventId) String() string {
	return fmt.Sprintf("%s/%d/%d/%d", id.SourceUID, id.Stream, id.PullID, id.OpID)
}

// EventOriginUri is the structured provenance attached to every Data event
// at the source. Schemes are connector-defined, e.g. "tremor-tcp-server",
// "tremor-ws-server", "tremor-unix-socket-server", "tremor-cb".
type EventOriginUri struct {
	Scheme string
	Host   string

	// Port is nil when the origin has no meaningful port (e.g. Unix
	// sockets).
	Port *int

	Path []string
}

// ConnectionMeta is an opaque, comparable routing key identifying a peer
// connection within a channel-sink's writer table (e.g. {host, port} for
// TCP/WS, {stream-id} for Unix). Concrete connectors define their own
// comparable struct type and pass it around as ConnectionMeta.
type ConnectionMeta = any

// Event is the unit exchanged between a source and the pipeline and
// between the pipeline and a sink. Events are immutable once emitted;
// copies share Payload and Meta by value semantics (the caller must not
// mutate a Payload/Meta value reachable from more than one Event).
type Event struct {
	ID EventId

	// Payload is the structured value carried by the event. Its
	// concrete shape is codec- and connector-defined.
	Payload any

	// Meta is structured, connector- and sink-defined metadata (e.g.
	// request.method/url/headers, peer.host/port, cb).
	Meta any

	// IngestNS is the monotonic ingest timestamp in nanoseconds.
	IngestNS int64

	// Transactional reports whether this event expects exactly one
	// ack or fail addressed back to its source by (Stream, PullID).
	Transactional bool
}
