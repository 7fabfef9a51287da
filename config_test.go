// SPDX-License-Identifier: GPL-3.0-or-later

package conduit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	require.NotNil(t, cfg)

	// ErrClassifier should use errclass by default
	assert.Equal(t, "", cfg.ErrClassifier.Classify(nil))
	assert.Equal(t, "ETIMEDOUT", cfg.ErrClassifier.Classify(context.DeadlineExceeded))

	// Logger should default to a non-nil discarding logger
	assert.NotNil(t, cfg.Logger)

	// TimeNow should be set and return a valid time
	now := cfg.TimeNow()
	assert.False(t, now.IsZero())

	assert.Equal(t, DefaultQSize, cfg.QSize)
	assert.Equal(t, DefaultBufSize, cfg.BufSize)
}
