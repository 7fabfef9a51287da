// SPDX-License-Identifier: GPL-3.0-or-later

// Package channel implements the multi-peer fan-in [Source] and fan-out
// [Sink] shared by every listener-based connector (TCP, TLS, Unix,
// WebSocket): a bounded reply channel readers deposit into, and a writer
// table keyed by stream id and [conduit.ConnectionMeta].
package channel

import (
	"context"

	"github.com/bassosimone/conduit"
)

// Source is a [source.Source] backed by a single bounded channel that
// independent reader tasks deposit [conduit.SourceReply] values into. Each
// reader owns one socket read-half; on EOF or error it emits an EndStream
// reply and exits. Construct with [NewSource].
type Source struct {
	replies       chan conduit.SourceReply
	transactional bool
}

// NewSource returns a [*Source] with a channel of capacity qsize.
// transactional reports whether emitted events expect ack/fail.
func NewSource(qsize int, transactional bool) *Source {
	return &Source{
		replies:       make(chan conduit.SourceReply, qsize),
		transactional: transactional,
	}
}

// Deposit is called by a reader task to hand a [conduit.SourceReply] to
// the runtime. It blocks if the channel is full, naturally applying
// backpressure to the reader.
func (s *Source) Deposit(ctx context.Context, reply conduit.SourceReply) error {
	select {
	case s.replies <- reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect always reports success: a channel source has no dial step of
// its own — the listener's accept loop is a separate, independently
// driven task.
func (s *Source) Connect(ctx context.Context, attempt int) (bool, error) {
	return true, nil
}

// PullData receives the next reply deposited by a reader.
func (s *Source) PullData(ctx context.Context) (conduit.SourceReply, error) {
	select {
	case r := <-s.replies:
		return r, nil
	case <-ctx.Done():
		return conduit.SourceReply{}, ctx.Err()
	}
}

// Ack and Fail are no-ops: routing acks back to the originating stream
// for listener connectors is the companion [Sink]'s job, not the
// channel source's.
func (s *Source) Ack(ctx context.Context, stream conduit.StreamId, pullID uint64)  {}
func (s *Source) Fail(ctx context.Context, stream conduit.StreamId, pullID uint64) {}
func (s *Source) OnCbOpen(ctx context.Context)                                     {}
func (s *Source) OnCbClose(ctx context.Context)                                    {}

// IsTransactional reports whether emitted events expect ack/fail.
func (s *Source) IsTransactional() bool { return s.transactional }

// Asynchronous reports false: PullData blocks rather than suspending
// through a separate async mechanism.
func (s *Source) Asynchronous() bool { return false }

// OnStop is a no-op; readers exit on their own EOF/error or when their
// context is cancelled by [conduit.CancelWatchConn].
func (s *Source) OnStop(ctx context.Context) {}
