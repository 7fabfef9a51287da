// SPDX-License-Identifier: GPL-3.0-or-later

package conduit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Next starts at 1 and increments by one per call.
func TestStreamIdGeneratorNext(t *testing.T) {
	g := NewStreamIdGenerator()

	assert.Equal(t, StreamId(1), g.Next())
	assert.Equal(t, StreamId(2), g.Next())
	assert.Equal(t, StreamId(3), g.Next())
}

// Next never produces duplicates under concurrent use.
func TestStreamIdGeneratorConcurrent(t *testing.T) {
	g := NewStreamIdGenerator()

	const n = 200
	ids := make([]StreamId, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = g.Next()
		}(i)
	}
	wg.Wait()

	seen := make(map[StreamId]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate stream id %d", id)
		seen[id] = true
	}
}

// String renders all four EventId components.
func TestEventIdString(t *testing.T) {
	id := EventId{SourceUID: "cb", Stream: 1, PullID: 7, OpID: 0}
	assert.Equal(t, "cb/1/7/0", id.String())
}
