// SPDX-License-Identifier: GPL-3.0-or-later

package conduit

import "context"

// Beacon is a shared quiescence signal consulted by accept loops and
// reader/writer tasks to enter graceful shutdown. It generalizes the
// [CancelWatchConn] context-transparent cancellation idiom to components
// that have no single [net.Conn] to watch — an accept loop selects on
// [Beacon.Done] alongside its per-accept poll timeout.
//
// A Beacon is safe for concurrent use; Trigger may be called from any
// goroutine and Done/Quiescent may be read from many goroutines at once.
type Beacon struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBeacon returns a new [*Beacon] derived from parent. Triggering the
// beacon does not cancel parent; it only affects this beacon's observers.
func NewBeacon(parent context.Context) *Beacon {
	ctx, cancel := context.WithCancel(parent)
	return &Beacon{ctx: ctx, cancel: cancel}
}

// Trigger signals quiescence: all observers of [Beacon.Done] unblock.
// Trigger is idempotent.
func (b *Beacon) Trigger() {
	b.cancel()
}

// Done returns a channel that is closed once the beacon has been
// triggered, either directly or because its parent context ended.
func (b *Beacon) Done() <-chan struct{} {
	return b.ctx.Done()
}

// Quiescent reports whether the beacon has already been triggered.
func (b *Beacon) Quiescent() bool {
	select {
	case <-b.ctx.Done():
		return true
	default:
		return false
	}
}
