// SPDX-License-Identifier: GPL-3.0-or-later

// Package source drives one [Source] implementation: connect-under-policy,
// pull/tag/forward, ack/fail and circuit-breaker routing, EndStream and
// Finished handling, and cancellation drain.
package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bassosimone/conduit"
	"github.com/bassosimone/conduit/reconnect"
)

// Source is the contract a connector implements to produce events.
//
// PullData is called when the runtime needs the next unit; the runtime
// stamps the returned [conduit.SourceReply] with the current pull id and
// increments it only when a Data/StructuredData reply is returned.
// PullData may block.
//
// Ack and Fail are each called exactly once per emitted transactional
// event, identified by (stream, pull id). OnCbClose/OnCbOpen are
// back-pressure signals from the pipeline: OnCbClose reports a
// [conduit.CbTrigger] (sends must stop), OnCbOpen reports a
// [conduit.CbRestore] (sends may resume).
type Source interface {
	Connect(ctx context.Context, attempt int) (bool, error)
	PullData(ctx context.Context) (conduit.SourceReply, error)
	Ack(ctx context.Context, stream conduit.StreamId, pullID uint64)
	Fail(ctx context.Context, stream conduit.StreamId, pullID uint64)
	OnCbOpen(ctx context.Context)
	OnCbClose(ctx context.Context)
	IsTransactional() bool
	Asynchronous() bool
	OnStop(ctx context.Context)
}

// Feedback is pipeline-to-source ack/fail, addressed by (stream, pull id).
// Feedback is not ordered relative to subsequent pulls; a [Source] must
// tolerate interleaving.
type Feedback struct {
	Stream conduit.StreamId
	PullID uint64
	Ack    conduit.AckKind
}

// Runtime drives one [Source]. Construct with [NewRuntime].
type Runtime struct {
	SourceUID string
	Src       Source
	Cfg       *conduit.Config
	Logger    conduit.SLogger
	Beacon    *conduit.Beacon
	Policy    *reconnect.Policy

	// Out receives every Data/StructuredData event pulled from Src,
	// stamped with a fresh pull id.
	Out chan<- conduit.Event

	// Feedback delivers ack/fail from the pipeline, keyed by
	// (stream, pull id).
	Feedback <-chan Feedback

	// CB delivers circuit-breaker signals from the pipeline.
	CB <-chan conduit.CbAction

	pullID    uint64
	mu        sync.Mutex
	triggered bool
}

// NewRuntime returns a [*Runtime] wired with cfg's logger, time source, and
// a default [reconnect.Policy].
func NewRuntime(sourceUID string, src Source, cfg *conduit.Config, beacon *conduit.Beacon, out chan<- conduit.Event, feedback <-chan Feedback, cb <-chan conduit.CbAction) *Runtime {
	return &Runtime{
		SourceUID: sourceUID,
		Src:       src,
		Cfg:       cfg,
		Logger:    cfg.Logger,
		Beacon:    beacon,
		Policy:    reconnect.NewPolicy(),
		Out:       out,
		Feedback:  feedback,
		CB:        cb,
	}
}

// Run connects under Policy, then pulls and forwards events until the
// beacon is triggered, the source reports Finished, or ctx ends. It
// spawns two internal goroutines for the lifetime of the call: one
// routing Feedback to Ack/Fail, one routing CB signals to OnCbOpen/
// OnCbClose and gating pulls while triggered.
func (rt *Runtime) Run(ctx context.Context) {
	connected := rt.Policy.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		t0 := rt.Cfg.TimeNow()
		rt.Logger.Info("connectStart", slog.String("sourceUID", rt.SourceUID), slog.Int("attempt", attempt), slog.Time("t", t0))
		ok, err := rt.Src.Connect(ctx, attempt)
		rt.Logger.Info("connectDone", slog.String("sourceUID", rt.SourceUID), slog.Bool("ok", ok), slog.Any("err", err),
			slog.String("errClass", rt.Cfg.ErrClassifier.Classify(err)), slog.Time("t0", t0), slog.Time("t", rt.Cfg.TimeNow()))
		return ok, err
	})
	if !connected {
		rt.Src.OnStop(ctx)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); rt.runFeedback(ctx) }()
	go func() { defer wg.Done(); rt.runCB(ctx) }()

	rt.pullLoop(ctx)

	rt.Src.OnStop(ctx)
	wg.Wait()
}

func (rt *Runtime) runFeedback(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-rt.Beacon.Done():
			return
		case fb, ok := <-rt.Feedback:
			if !ok {
				return
			}
			switch fb.Ack {
			case conduit.AckAck:
				rt.Logger.Info("ackRecv", slog.Any("stream", fb.Stream), slog.Uint64("pullId", fb.PullID))
				rt.Src.Ack(ctx, fb.Stream, fb.PullID)
			case conduit.AckFail:
				rt.Logger.Info("failRecv", slog.Any("stream", fb.Stream), slog.Uint64("pullId", fb.PullID))
				rt.Src.Fail(ctx, fb.Stream, fb.PullID)
			}
		}
	}
}

func (rt *Runtime) runCB(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-rt.Beacon.Done():
			return
		case action, ok := <-rt.CB:
			if !ok {
				return
			}
			switch action {
			case conduit.CbTrigger:
				rt.Logger.Info("cbTrigger", slog.String("sourceUID", rt.SourceUID))
				rt.mu.Lock()
				rt.triggered = true
				rt.mu.Unlock()
				rt.Src.OnCbClose(ctx)
			case conduit.CbRestore:
				rt.Logger.Info("cbRestore", slog.String("sourceUID", rt.SourceUID))
				rt.mu.Lock()
				rt.triggered = false
				rt.mu.Unlock()
				rt.Src.OnCbOpen(ctx)
			}
		}
	}
}

func (rt *Runtime) isTriggered() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.triggered
}

func (rt *Runtime) pullLoop(ctx context.Context) {
	for {
		if rt.Beacon.Quiescent() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		if rt.isTriggered() {
			// Gated by an open circuit breaker; poll until restored
			// or asked to stop.
			select {
			case <-ctx.Done():
				return
			case <-rt.Beacon.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		t0 := rt.Cfg.TimeNow()
		rt.Logger.Debug("pullStart", slog.String("sourceUID", rt.SourceUID), slog.Time("t", t0))
		reply, err := rt.Src.PullData(ctx)
		rt.Logger.Debug("pullDone", slog.String("sourceUID", rt.SourceUID), slog.Any("err", err),
			slog.String("errClass", rt.Cfg.ErrClassifier.Classify(err)), slog.Time("t0", t0), slog.Time("t", rt.Cfg.TimeNow()))
		if err != nil {
			continue
		}

		switch reply.Kind {
		case conduit.SourceReplyData, conduit.SourceReplyStructuredData:
			pullID := rt.pullID
			rt.pullID++
			ev := conduit.Event{
				ID: conduit.EventId{
					SourceUID: rt.SourceUID,
					Stream:    reply.Stream,
					PullID:    pullID,
				},
				Payload:       reply.Value,
				Meta:          reply.Meta,
				IngestNS:      rt.Cfg.TimeNow().UnixNano(),
				Transactional: rt.Src.IsTransactional(),
			}
			if reply.Kind == conduit.SourceReplyData {
				ev.Payload = reply.Bytes
			}
			select {
			case rt.Out <- ev:
			case <-ctx.Done():
				return
			case <-rt.Beacon.Done():
				return
			}
		case conduit.SourceReplyStartStream:
			rt.Logger.Info("streamOpen", slog.Any("stream", reply.Stream))
		case conduit.SourceReplyEndStream:
			rt.Logger.Info("streamClose", slog.Any("stream", reply.Stream))
		case conduit.SourceReplyFinished:
			return
		}
	}
}
