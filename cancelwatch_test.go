// SPDX-License-Identifier: GPL-3.0-or-later

package conduit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CancelWatchConn returns a wrapped conn that delegates Close to the underlying conn.
func TestCancelWatchConn(t *testing.T) {
	closeCalled := false
	mockConn := &funcConn{
		CloseFunc: func() error {
			closeCalled = true
			return nil
		},
	}

	result := CancelWatchConn(context.Background(), mockConn)
	require.NotNil(t, result)

	// Closing the wrapper delegates to the underlying conn.
	err := result.Close()
	require.NoError(t, err)
	assert.True(t, closeCalled)
}

// Cancelling the context triggers Close on the underlying conn.
func TestCancelWatchConnClosesOnCancel(t *testing.T) {
	done := make(chan bool, 1)
	mockConn := &funcConn{
		CloseFunc: func() error {
			done <- true
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())

	_ = CancelWatchConn(ctx, mockConn)

	// Connection not closed before cancelling the context.
	select {
	case <-done:
		t.Fatal("connection should not be closed yet")
	default:
	}

	cancel()

	// Wait for AfterFunc to close the connection.
	waitClose := func() bool {
		return <-done
	}
	assert.Eventually(t, waitClose, 1*time.Second, 10*time.Millisecond)
}

// If the context is already cancelled, the connection is closed immediately.
func TestCancelWatchConnAlreadyCancelled(t *testing.T) {
	done := make(chan bool, 1)
	mockConn := &funcConn{
		CloseFunc: func() error {
			done <- true
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = CancelWatchConn(ctx, mockConn)

	// Wait for AfterFunc to see the already-cancelled context and close.
	waitClose := func() bool {
		return <-done
	}
	assert.Eventually(t, waitClose, 1*time.Second, 10*time.Millisecond)
}

// Closing the wrapper unregisters the watcher so that subsequent context
// cancellation does not call Close on the underlying conn a second time.
func TestCancelWatchConnCloseUnregistersWatcher(t *testing.T) {
	closeCount := 0
	mockConn := &funcConn{
		CloseFunc: func() error {
			closeCount++
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := CancelWatchConn(ctx, mockConn)

	// Close the wrapper — should unregister the watcher and close the conn.
	err := result.Close()
	require.NoError(t, err)
	assert.Equal(t, 1, closeCount)

	// Cancel the context — should NOT trigger another close.
	cancel()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, closeCount)
}
