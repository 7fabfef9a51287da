// SPDX-License-Identifier: GPL-3.0-or-later

// Package conduit provides the connector substrate for a pluggable
// event-streaming runtime: the contracts and runtimes that bind external
// sources and sinks to a pipeline, plus the transactional flow-control
// protocol (ack/fail/circuit-breaker) that keeps them honest.
//
// # Core Abstraction
//
// An external endpoint is a Connector: a named factory that can produce an
// optional source and an optional sink (see packages [source] and [sink]).
// Each half is driven by its own runtime, never by the connector itself —
// the connector only implements domain logic (pull data, encode a request,
// match a command), while the runtime owns scheduling, codec resolution,
// and the ack/fail/circuit-breaker protocol.
//
// # Event model
//
// [Event] is the unit exchanged between a source and the pipeline and
// between the pipeline and a sink. Its [EventId] carries a source id, a
// stream id, and a pull id; the pull id is the correlation key for the
// ack/fail protocol. Events are immutable once emitted.
//
// # Flow control
//
// Every transactional [Event] emitted by a source is answered by exactly
// one ack or fail, addressed back to the source by (stream, pull id),
// unless the source declares itself batched. A [SinkReply] additionally
// carries a [CbAction] (Trigger/Restore) that flows upstream to every
// transactional source as backpressure.
//
// # Multiplexing
//
// Connectors that listen on shared sockets (TCP, TLS, Unix, WebSocket; see
// package listener) allocate a fresh [StreamId] per accepted connection and
// register one reader task with a channel source and one writer task with
// a channel sink, routed by [ConnectionMeta].
//
// # Observability
//
// All primitives support structured logging via [SLogger] (compatible with
// [log/slog]). By default logging is disabled; set a field to a real
// [*slog.Logger] to enable it. Error classification is configurable via
// [ErrClassifier]; the default classifier is backed by the completed
// errclass subpackage (per-OS syscall-errno classification).
//
// Primitives emit paired span events (*Start/*Done) recording timing and
// outcome, following the same field set across the whole module:
// localAddr, remoteAddr, protocol, t (timestamp), and on *Done, t0 (start
// time), err, errClass. Per-I/O events are logged at [slog.LevelDebug];
// lifecycle events at [slog.LevelInfo].
//
// Use [NewSpanID] to generate a unique, time-ordered identifier for each
// stream or pull, then attach it to the logger with [*slog.Logger.With] so
// all log entries for one operation share a correlator.
//
// # Timeout and context philosophy
//
// This package is context-transparent: operations never modify the context
// they receive. The caller controls timeouts externally via
// [context.WithTimeout], [context.WithDeadline], or [signal.NotifyContext].
// When the context is done, operations fail and the owning runtime unwinds.
//
// [CancelWatchConn] binds the context lifecycle to a connection: when the
// context is done, the connection is closed immediately, causing any
// in-progress I/O to fail. The listener core wraps every accepted
// connection with it so that stopping a connector unblocks its per-stream
// reader and writer goroutines without waiting for a socket timeout.
package conduit
