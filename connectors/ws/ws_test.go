// SPDX-License-Identifier: GPL-3.0-or-later

package ws

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassosimone/conduit"
)

func TestResolveAddrDefaultsPorts(t *testing.T) {
	addr, err := resolveAddr("ws://example.com/path")
	require.NoError(t, err)
	assert.Equal(t, "example.com:80", addr)

	addr, err = resolveAddr("wss://example.com/path")
	require.NoError(t, err)
	assert.Equal(t, "example.com:443", addr)

	addr, err = resolveAddr("ws://example.com:9000")
	require.NoError(t, err)
	assert.Equal(t, "example.com:9000", addr)
}

func TestBuilderRequiresURL(t *testing.T) {
	b := NewBuilder()
	_, err := b.Build(conduit.NewConfig(), json.RawMessage(`{}`))
	require.Error(t, err)
}

func freeTCPPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestConnectorUpgradesAndExchangesData(t *testing.T) {
	port := freeTCPPort(t)
	b := NewBuilder()
	conn, err := b.Build(conduit.NewConfig(), json.RawMessage(`{"url":"ws://127.0.0.1:`+strconv.Itoa(port)+`"}`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, ok, err := conn.CreateSource(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ready, err := src.Connect(ctx, 1)
	require.NoError(t, err)
	require.True(t, ready)

	// Give the HTTP server a moment to start listening.
	var dialErr error
	var client *websocket.Conn
	for i := 0; i < 50; i++ {
		client, _, dialErr = websocket.DefaultDialer.Dial("ws://127.0.0.1:"+strconv.Itoa(port)+"/", nil)
		if dialErr == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, dialErr)
	defer client.Close()

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte("hello")))

	reply, err := src.PullData(ctx)
	require.NoError(t, err)
	assert.Equal(t, conduit.SourceReplyData, reply.Kind)
	assert.Equal(t, []byte("hello"), reply.Bytes)
}
