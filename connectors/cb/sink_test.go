// SPDX-License-Identifier: GPL-3.0-or-later

package cb

import (
	"context"
	"testing"

	"github.com/bassosimone/conduit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkCommandsFromMeta(t *testing.T) {
	s := NewSink()
	ev := conduit.Event{Meta: map[string]any{"cb": "ack"}}
	reply, err := s.OnEvent(context.Background(), ev, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, conduit.AckAck, reply.Ack)
	assert.Equal(t, conduit.CbNone, reply.Cb)
}

func TestSinkCommandsFromPayloadFallback(t *testing.T) {
	s := NewSink()
	ev := conduit.Event{Payload: map[string]any{"cb": "fail"}}
	reply, err := s.OnEvent(context.Background(), ev, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, conduit.AckFail, reply.Ack)
}

func TestSinkCbListCommand(t *testing.T) {
	s := NewSink()
	ev := conduit.Event{Meta: map[string]any{"cb": []any{"ack", "close"}}}
	reply, err := s.OnEvent(context.Background(), ev, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, conduit.AckAck, reply.Ack)
	assert.Equal(t, conduit.CbTrigger, reply.Cb)
}

func TestSinkUnknownCommandIsNone(t *testing.T) {
	s := NewSink()
	ev := conduit.Event{Meta: map[string]any{"cb": "nonsense"}}
	reply, err := s.OnEvent(context.Background(), ev, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, conduit.AckNone, reply.Ack)
	assert.Equal(t, conduit.CbNone, reply.Cb)
}

func TestSinkOpenRestoreAliases(t *testing.T) {
	s := NewSink()
	ev := conduit.Event{Meta: map[string]any{"cb": "restore"}}
	reply, err := s.OnEvent(context.Background(), ev, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, conduit.CbRestore, reply.Cb)
}

func TestSinkAutoAckFalse(t *testing.T) {
	s := NewSink()
	assert.False(t, s.AutoAck())
}
