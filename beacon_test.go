// SPDX-License-Identifier: GPL-3.0-or-later

package conduit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// A fresh beacon is not quiescent and its Done channel is open.
func TestNewBeaconNotQuiescent(t *testing.T) {
	b := NewBeacon(context.Background())
	assert.False(t, b.Quiescent())

	select {
	case <-b.Done():
		t.Fatal("expected Done to be open")
	default:
	}
}

// Trigger closes Done and Quiescent reports true, idempotently.
func TestBeaconTrigger(t *testing.T) {
	b := NewBeacon(context.Background())

	b.Trigger()
	assert.True(t, b.Quiescent())

	<-b.Done() // must not block

	b.Trigger() // idempotent
	assert.True(t, b.Quiescent())
}

// Cancelling the parent context also triggers the beacon.
func TestBeaconParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBeacon(ctx)

	assert.False(t, b.Quiescent())
	cancel()
	assert.True(t, b.Quiescent())
}
