// SPDX-License-Identifier: GPL-3.0-or-later

package conduit

// SourceReplyKind discriminates the variants of [SourceReply].
type SourceReplyKind int

const (
	// SourceReplyData carries one payload pulled from the source.
	SourceReplyData SourceReplyKind = iota

	// SourceReplyStructuredData carries a pre-decoded value instead of
	// raw bytes, bypassing codec decoding.
	SourceReplyStructuredData

	// SourceReplyStartStream announces a new stream before its first
	// Data reply, letting the runtime register routing state early.
	SourceReplyStartStream

	// SourceReplyEndStream announces that Stream produced no further
	// data (EOF or error) and should be torn down.
	SourceReplyEndStream

	// SourceReplyFinished announces that the source has no further
	// streams to offer and the runtime should begin teardown.
	SourceReplyFinished
)

// SourceReply is the value a [Source] returns from PullData. The runtime
// stamps Data and StructuredData replies with the current pull id before
// forwarding them to the pipeline.
type SourceReply struct {
	Kind SourceReplyKind

	// Bytes holds the raw payload for SourceReplyData.
	Bytes []byte

	// Value holds the decoded payload for SourceReplyStructuredData.
	Value any

	// Meta is the event metadata to attach (e.g. peer.host/port).
	Meta any

	Stream StreamId
	Origin *EventOriginUri

	// CodecOverwrite names a codec to use for this reply instead of the
	// connector's configured or suggested codec; empty means no override.
	CodecOverwrite string
}

// AckKind discriminates the synchronous ack/fail outcome of a [SinkReply].
type AckKind int

const (
	// AckNone means the reply will arrive later, asynchronously, keyed
	// by event id (manual-ack mode).
	AckNone AckKind = iota
	AckAck
	AckFail
)

// CbAction is the one-bit circuit-breaker backpressure signal a sink can
// propagate upstream to every transactional source.
type CbAction int

const (
	CbNone CbAction = iota
	// CbTrigger opens the circuit: sources must stop producing.
	CbTrigger
	// CbRestore closes the circuit: sources may resume producing.
	CbRestore
)

// SinkReply is returned by a [Sink]'s OnEvent. Ack == AckNone means the
// sink will reply later through its asynchronous reply channel.
type SinkReply struct {
	Ack AckKind
	Cb  CbAction
}
