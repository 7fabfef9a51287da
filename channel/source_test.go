// SPDX-License-Identifier: GPL-3.0-or-later

package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassosimone/conduit"
)

func TestSourceDepositThenPull(t *testing.T) {
	s := NewSource(4, true)

	ctx := context.Background()
	require.NoError(t, s.Deposit(ctx, conduit.SourceReply{Kind: conduit.SourceReplyData, Stream: 1, Bytes: []byte("a")}))

	reply, err := s.PullData(ctx)
	require.NoError(t, err)
	assert.Equal(t, conduit.SourceReplyData, reply.Kind)
	assert.Equal(t, []byte("a"), reply.Bytes)
}

func TestSourcePullBlocksUntilDeposit(t *testing.T) {
	s := NewSource(1, true)
	ctx := context.Background()

	done := make(chan conduit.SourceReply, 1)
	go func() {
		r, _ := s.PullData(ctx)
		done <- r
	}()

	select {
	case <-done:
		t.Fatal("PullData should block until a reply is deposited")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, s.Deposit(ctx, conduit.SourceReply{Kind: conduit.SourceReplyEndStream, Stream: 1}))

	select {
	case r := <-done:
		assert.Equal(t, conduit.SourceReplyEndStream, r.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestSourceIsTransactional(t *testing.T) {
	assert.True(t, NewSource(1, true).IsTransactional())
	assert.False(t, NewSource(1, false).IsTransactional())
}

func TestSourcePullDataRespectsContextCancellation(t *testing.T) {
	s := NewSource(1, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.PullData(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
