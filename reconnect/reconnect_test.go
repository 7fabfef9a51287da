// SPDX-License-Identifier: GPL-3.0-or-later

package reconnect

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyRunSucceedsImmediately(t *testing.T) {
	p := NewPolicy()
	p.InitialBackoff = time.Millisecond
	p.Rand = rand.New(rand.NewSource(1))

	calls := 0
	ok := p.Run(context.Background(), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return true, nil
	})

	assert.True(t, ok)
	assert.Equal(t, 1, calls)
}

func TestPolicyRunRetriesThenSucceeds(t *testing.T) {
	p := NewPolicy()
	p.InitialBackoff = time.Millisecond
	p.MaxBackoff = 2 * time.Millisecond
	p.Rand = rand.New(rand.NewSource(1))

	var notified []int
	p.Notify = func(attempt int, err error) { notified = append(notified, attempt) }

	calls := 0
	ok := p.Run(context.Background(), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		if calls < 3 {
			return false, errors.New("not yet")
		}
		return true, nil
	})

	require.True(t, ok)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, notified)
}

func TestPolicyRunExhaustsMaxAttempts(t *testing.T) {
	p := NewPolicy()
	p.InitialBackoff = time.Millisecond
	p.MaxAttempts = 3
	p.Rand = rand.New(rand.NewSource(1))

	calls := 0
	ok := p.Run(context.Background(), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return false, errors.New("down")
	})

	assert.False(t, ok)
	assert.Equal(t, 3, calls)
}

func TestPolicyRunCancelledContext(t *testing.T) {
	p := NewPolicy()
	p.InitialBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	ok := p.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return false, errors.New("down")
	})

	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}

// delay never exceeds MaxBackoff even after many failures.
func TestPolicyDelayCapped(t *testing.T) {
	p := NewPolicy()
	p.InitialBackoff = time.Second
	p.MaxBackoff = 5 * time.Second
	p.Multiplier = 10
	p.Jitter = 0

	d := p.delay(10)
	assert.LessOrEqual(t, d, p.MaxBackoff)
}

// delay returns zero for the first attempt.
func TestPolicyDelayFirstAttempt(t *testing.T) {
	p := NewPolicy()
	assert.Equal(t, time.Duration(0), p.delay(1))
}
