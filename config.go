// SPDX-License-Identifier: GPL-3.0-or-later

package conduit

import "time"

// DefaultQSize is the default capacity of the bounded channels that
// connect a source runtime and a sink runtime (events, feedback, and
// circuit-breaker actions) when a connector config does not override it.
const DefaultQSize = 128

// DefaultBufSize is the default per-connection read buffer size used by
// the listener core when a connector config does not override it.
const DefaultBufSize = 8192

// Config holds common runtime configuration shared by source runtimes,
// sink runtimes, and the listener core.
//
// Pass this to constructor functions to pre-wire dependencies. All fields
// have sensible defaults set by [NewConfig].
type Config struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewConfig] to [DefaultSLogger].
	Logger SLogger

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// QSize is the capacity of internal bounded channels.
	//
	// Set by [NewConfig] to [DefaultQSize].
	QSize int

	// BufSize is the per-connection read buffer size used by listener-based sources.
	//
	// Set by [NewConfig] to [DefaultBufSize].
	BufSize int
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		ErrClassifier: DefaultErrClassifier,
		Logger:        DefaultSLogger(),
		TimeNow:       time.Now,
		QSize:         DefaultQSize,
		BufSize:       DefaultBufSize,
	}
}
