// SPDX-License-Identifier: GPL-3.0-or-later

// Package sink drives one [Sink] implementation: dispatches each event to
// OnEvent, synthesizes an ack when AutoAck is set and no reply arrived,
// and routes an asynchronous reply (delivered later through a callback
// attached to the call) back upstream keyed by event id.
package sink

import (
	"context"
	"log/slog"

	"github.com/bassosimone/conduit"
	"github.com/bassosimone/conduit/source"
)

// Sink is the contract a connector implements to consume events.
//
// OnEvent processes one event and returns the reply synchronously, or
// returns Ack == [conduit.AckNone] and later calls asyncReply exactly once
// with the real outcome. AutoAck, when true, tells the runtime to
// synthesize an [conduit.AckAck] for any reply that does not carry one.
type Sink interface {
	Connect(ctx context.Context, attempt int) (bool, error)
	OnEvent(ctx context.Context, event conduit.Event, startNS int64, asyncReply func(conduit.SinkReply)) (conduit.SinkReply, error)
	OnSignal(ctx context.Context, signal string)
	AutoAck() bool
}

// Runtime drives one [Sink]. Construct with [NewRuntime].
type Runtime struct {
	SinkUID string
	Snk     Sink
	Cfg     *conduit.Config
	Logger  conduit.SLogger

	// In delivers events to process.
	In <-chan conduit.Event

	// Feedback carries ack/fail back to the owning source runtime.
	Feedback chan<- source.Feedback

	// CB carries circuit-breaker signals back to the owning source
	// runtime.
	CB chan<- conduit.CbAction
}

// NewRuntime returns a [*Runtime] wired with cfg's logger.
func NewRuntime(sinkUID string, snk Sink, cfg *conduit.Config, in <-chan conduit.Event, feedback chan<- source.Feedback, cb chan<- conduit.CbAction) *Runtime {
	return &Runtime{
		SinkUID:  sinkUID,
		Snk:      snk,
		Cfg:      cfg,
		Logger:   cfg.Logger,
		In:       in,
		Feedback: feedback,
		CB:       cb,
	}
}

// Run processes events from In until it is closed or ctx ends.
func (rt *Runtime) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-rt.In:
			if !ok {
				return
			}
			rt.process(ctx, ev)
		}
	}
}

func (rt *Runtime) process(ctx context.Context, ev conduit.Event) {
	t0 := rt.Cfg.TimeNow()
	rt.Logger.Info("onEventStart", slog.String("sinkUID", rt.SinkUID), slog.String("eventId", ev.ID.String()), slog.Time("t", t0))

	asyncReply := func(reply conduit.SinkReply) {
		rt.dispatch(ev, reply)
	}

	reply, err := rt.Snk.OnEvent(ctx, ev, t0.UnixNano(), asyncReply)

	rt.Logger.Info("onEventDone", slog.String("sinkUID", rt.SinkUID), slog.String("eventId", ev.ID.String()),
		slog.Any("err", err), slog.String("errClass", rt.Cfg.ErrClassifier.Classify(err)),
		slog.Time("t0", t0), slog.Time("t", rt.Cfg.TimeNow()))

	if err != nil {
		rt.dispatch(ev, conduit.SinkReply{Ack: conduit.AckFail})
		return
	}

	if reply.Ack == conduit.AckNone && !rt.Snk.AutoAck() {
		// Asynchronous reply expected later via asyncReply; propagate
		// only a CB signal now, if any.
		if reply.Cb != conduit.CbNone {
			rt.sendCB(reply.Cb)
		}
		return
	}
	if reply.Ack == conduit.AckNone {
		reply.Ack = conduit.AckAck
	}
	rt.dispatch(ev, reply)
}

func (rt *Runtime) dispatch(ev conduit.Event, reply conduit.SinkReply) {
	if reply.Ack != conduit.AckNone && ev.Transactional {
		rt.Feedback <- source.Feedback{Stream: ev.ID.Stream, PullID: ev.ID.PullID, Ack: reply.Ack}
	}
	if reply.Cb != conduit.CbNone {
		rt.sendCB(reply.Cb)
	}
}

func (rt *Runtime) sendCB(action conduit.CbAction) {
	rt.CB <- action
}
