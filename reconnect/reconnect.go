// SPDX-License-Identifier: GPL-3.0-or-later

// Package reconnect implements the connect-under-policy loop shared by
// every client-style connector: an attempt counter, exponential backoff
// with a cap and jitter, and a connection-lost notifier hook.
//
// The jitter source (Rand) is injectable so tests can make the delay
// schedule deterministic. [Policy.Run] waits out each delay on a real
// timer; the Policy's TimeNow field is not consulted.
package reconnect

import (
	"context"
	"math/rand"
	"time"
)

// LostNotifier is invoked once per failed connect attempt, before backoff
// is applied. Connectors use it to log or to flip a circuit-breaker-like
// "disconnected" state.
type LostNotifier func(attempt int, err error)

// Policy parameterizes the reconnect backoff schedule.
//
// All fields are safe to modify after construction but before first use.
type Policy struct {
	// InitialBackoff is the delay before the second attempt (the first
	// attempt is never delayed).
	InitialBackoff time.Duration

	// MaxBackoff caps the computed delay.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each failed attempt.
	Multiplier float64

	// MaxAttempts bounds the number of attempts; 0 means unlimited.
	MaxAttempts int

	// Jitter, when > 0, randomizes each delay within
	// [delay*(1-Jitter), delay*(1+Jitter)].
	Jitter float64

	// Notify is called on every failed attempt, if non-nil.
	Notify LostNotifier

	// TimeNow is the clock (configurable for testing).
	TimeNow func() time.Time

	// Rand supplies jitter (configurable for deterministic testing).
	Rand *rand.Rand
}

// NewPolicy returns a [*Policy] with conservative defaults: 1s initial
// backoff, 30s cap, 2x multiplier, 20% jitter, unlimited attempts.
func NewPolicy() *Policy {
	return &Policy{
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2,
		MaxAttempts:    0,
		Jitter:         0.2,
		TimeNow:        time.Now,
		Rand:           rand.New(rand.NewSource(1)),
	}
}

// Attempt describes one connect attempt's outcome, reported by [Run]'s
// connect callback.
type Attempt struct {
	Number int // 1-based
	Err    error
}

// delay returns the backoff duration before attempt n (1-based; n==1 never
// delays).
func (p *Policy) delay(n int) time.Duration {
	if n <= 1 {
		return 0
	}
	d := float64(p.InitialBackoff)
	for i := 1; i < n-1; i++ {
		d *= p.Multiplier
	}
	if cap := float64(p.MaxBackoff); d > cap {
		d = cap
	}
	if p.Jitter > 0 {
		spread := d * p.Jitter
		r := p.Rand
		if r == nil {
			r = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		d = d - spread + r.Float64()*2*spread
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Run calls connect repeatedly until it returns true, ctx is done, or
// MaxAttempts is exhausted. connect receives the 1-based attempt number.
// Between attempts Run sleeps for the policy's backoff delay (ctx-aware)
// and, on failure, calls Notify.
//
// Run returns true once connect reports success, or false if ctx ended or
// MaxAttempts was exhausted.
func (p *Policy) Run(ctx context.Context, connect func(ctx context.Context, attempt int) (bool, error)) bool {
	for n := 1; p.MaxAttempts == 0 || n <= p.MaxAttempts; n++ {
		if n > 1 {
			d := p.delay(n)
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return false
			case <-t.C:
			}
		}

		ok, err := connect(ctx, n)
		if ok {
			return true
		}
		if p.Notify != nil {
			p.Notify(n, err)
		}

		select {
		case <-ctx.Done():
			return false
		default:
		}
	}
	return false
}
