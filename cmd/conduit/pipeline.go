// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"

	"github.com/bassosimone/conduit"
	sinkpkg "github.com/bassosimone/conduit/sink"
)

// discardSink is the implicit sink wired behind every cb connector, and
// behind any other connector whose sink half is absent or fails to build:
// it auto-acks every event, so the source's transactional flow control is
// satisfied without a hand-authored pipeline.
type discardSink struct{}

func (discardSink) Connect(ctx context.Context, attempt int) (bool, error) { return true, nil }

func (discardSink) OnEvent(ctx context.Context, event conduit.Event, startNS int64, asyncReply func(conduit.SinkReply)) (conduit.SinkReply, error) {
	return conduit.SinkReply{Ack: conduit.AckAck}, nil
}

func (discardSink) OnSignal(ctx context.Context, signal string) {}

func (discardSink) AutoAck() bool { return true }

var _ sinkpkg.Sink = discardSink{}
