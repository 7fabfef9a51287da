//
// SPDX-License-Identifier: GPL-3.0-or-later
//

package listener

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassosimone/conduit"
	"github.com/bassosimone/conduit/channel"
)

type tcpMeta struct {
	Host string
	Port int
}

func TestCoreAcceptsAndPumpsData(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := conduit.NewConfig()
	beacon := conduit.NewBeacon(context.Background())
	src := channel.NewSource(8, true)
	sink := channel.NewSink(nil, false)

	core := NewCore(ln, beacon, cfg,
		func(stream conduit.StreamId, conn net.Conn) conduit.ConnectionMeta {
			return tcpMeta{Host: "127.0.0.1"}
		},
		func(stream conduit.StreamId) *conduit.EventOriginUri {
			return &conduit.EventOriginUri{Scheme: "tremor-tcp-server"}
		},
		NewPumpHandler(src, sink, 4096),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go core.Run(ctx)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case reply := <-waitDeposit(t, src):
		assert.Equal(t, conduit.SourceReplyData, reply.Kind)
		assert.Equal(t, []byte("hello"), reply.Bytes)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for data")
	}
}

func waitDeposit(t *testing.T, src *channel.Source) <-chan conduit.SourceReply {
	t.Helper()
	ch := make(chan conduit.SourceReply, 1)
	go func() {
		r, err := src.PullData(context.Background())
		if err == nil {
			ch <- r
		}
	}()
	return ch
}

func TestCoreStopsOnBeaconTrigger(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := conduit.NewConfig()
	beacon := conduit.NewBeacon(context.Background())
	src := channel.NewSource(8, true)
	sink := channel.NewSink(nil, false)

	core := NewCore(ln, beacon, cfg,
		func(stream conduit.StreamId, conn net.Conn) conduit.ConnectionMeta { return tcpMeta{} },
		func(stream conduit.StreamId) *conduit.EventOriginUri { return &conduit.EventOriginUri{} },
		NewPumpHandler(src, sink, 4096),
	)

	done := make(chan struct{})
	go func() {
		core.Run(context.Background())
		close(done)
	}()

	beacon.Trigger()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("core did not stop after beacon trigger")
	}
}
