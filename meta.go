// SPDX-License-Identifier: GPL-3.0-or-later

package conduit

import "sync"

// MetaBus is a structured per-event metadata channel shared between a
// connector's sources and sinks. It maps a [StreamId] to the
// [ConnectionMeta] and [EventOriginUri] allocated at accept time, so a
// reader side and a writer side can share them without holding a direct
// reference to each other. The connectors in this module do not use it:
// their accept handlers pass the meta to the writer directly.
//
// MetaBus is safe for concurrent use.
type MetaBus struct {
	mu    sync.RWMutex
	meta  map[StreamId]ConnectionMeta
	order map[StreamId]*EventOriginUri
}

// NewMetaBus returns an empty [*MetaBus].
func NewMetaBus() *MetaBus {
	return &MetaBus{
		meta:  make(map[StreamId]ConnectionMeta),
		order: make(map[StreamId]*EventOriginUri),
	}
}

// Register associates meta and origin with stream. It is called once, at
// accept time, before the reader and writer tasks for stream start.
func (b *MetaBus) Register(stream StreamId, meta ConnectionMeta, origin *EventOriginUri) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta[stream] = meta
	b.order[stream] = origin
}

// Unregister drops stream's entry, called on stream teardown.
func (b *MetaBus) Unregister(stream StreamId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.meta, stream)
	delete(b.order, stream)
}

// Meta returns stream's [ConnectionMeta] and whether it is registered.
func (b *MetaBus) Meta(stream StreamId) (ConnectionMeta, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.meta[stream]
	return m, ok
}

// Origin returns stream's [EventOriginUri] and whether it is registered.
func (b *MetaBus) Origin(stream StreamId) (*EventOriginUri, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.order[stream]
	return o, ok
}

// Streams returns a snapshot of the currently registered stream ids.
func (b *MetaBus) Streams() []StreamId {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]StreamId, 0, len(b.meta))
	for id := range b.meta {
		out = append(out, id)
	}
	return out
}
