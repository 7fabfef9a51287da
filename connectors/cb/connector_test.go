// SPDX-License-Identifier: GPL-3.0-or-later

package cb

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bassosimone/conduit"
	"github.com/bassosimone/conduit/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderRejectsMissingPath(t *testing.T) {
	b := NewBuilder()
	_, err := b.Build(conduit.NewConfig(), json.RawMessage(`{"timeout": 1000}`))
	require.Error(t, err)
	var cfgErr *conduit.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "path", cfgErr.Key)
}

func TestBuilderRejectsUnknownField(t *testing.T) {
	b := NewBuilder()
	_, err := b.Build(conduit.NewConfig(), json.RawMessage(`{"path":"a.txt","bogus":true}`))
	require.Error(t, err)
}

func TestBuilderAppliesTimeoutDefault(t *testing.T) {
	b := NewBuilder()
	conn, err := b.Build(conduit.NewConfig(), json.RawMessage(`{"path":"a.txt"}`))
	require.NoError(t, err)

	c := conn.(*Connector)
	assert.Equal(t, DefaultTimeout.Nanoseconds(), c.cfg.TimeoutNS)
}

func TestConnectorCodecReqIsStructured(t *testing.T) {
	b := NewBuilder()
	conn, err := b.Build(conduit.NewConfig(), json.RawMessage(`{"path":"a.txt"}`))
	require.NoError(t, err)
	assert.Equal(t, codec.Structured, conn.CodecReq().Requirement)
}

func TestConnectorCreatesBothHalves(t *testing.T) {
	b := NewBuilder()
	conn, err := b.Build(conduit.NewConfig(), json.RawMessage(`{"path":"a.txt"}`))
	require.NoError(t, err)

	src, ok, err := conn.CreateSource(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, src)

	snk, ok, err := conn.CreateSink(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, snk)
}
