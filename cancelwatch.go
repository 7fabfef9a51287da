// SPDX-License-Identifier: GPL-3.0-or-later

package conduit

import (
	"context"
	"net"
)

// CancelWatchConn wraps conn so that it is closed when ctx is done
// (cancelled or deadline exceeded). This provides responsive cleanup on
// external cancellation rather than waiting for per-operation timeouts.
//
// The listener core wraps every accepted connection with this before
// handing its halves to a reader and a writer task: stopping a connector
// cancels its context, which closes every live connection immediately,
// unblocking any goroutine parked in a Read or Write.
//
// Closing the returned connection unregisters the context watcher and
// closes the underlying connection, so no goroutine leaks even if the
// context is never cancelled.
//
// The watcher is safe to use with any [net.Conn] implementation because
// Go's standard library uses the [net.ErrClosed] pattern: closing an
// already-closed connection returns [net.ErrClosed], and I/O operations
// on a closed connection fail gracefully. [ObserveConn] follows the same
// pattern.
func CancelWatchConn(ctx context.Context, conn net.Conn) net.Conn {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	return &cancelWatchedConn{Conn: conn, stop: stop}
}

// cancelWatchedConn wraps a [net.Conn] with a context cancellation watcher.
type cancelWatchedConn struct {
	net.Conn
	stop func() bool
}

// Close unregisters the context watcher and closes the underlying connection.
func (c *cancelWatchedConn) Close() error {
	c.stop()
	return c.Conn.Close()
}
