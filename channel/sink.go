// SPDX-License-Identifier: GPL-3.0-or-later

package channel

import (
	"context"
	"sync"

	"github.com/bassosimone/conduit"
)

// Writer is one registered peer connection's write half.
type Writer interface {
	Write(ctx context.Context, data []byte) error
	Close() error
}

// MetaResolver extracts a [conduit.ConnectionMeta] key from an event's
// Meta value, or ok == false if the event carries no routing key (in
// which case the sink broadcasts to every writer).
type MetaResolver func(meta any) (key conduit.ConnectionMeta, ok bool)

// Sink is a fan-out [sink.Sink] holding a StreamId -> Writer table and an
// auxiliary ConnectionMeta -> StreamId index for routing by metadata key.
// Construct with [NewSink].
type Sink struct {
	Resolve MetaResolver

	mu       sync.RWMutex
	writers  map[conduit.StreamId]Writer
	byMeta   map[conduit.ConnectionMeta]conduit.StreamId
	autoAck  bool
}

// NewSink returns an empty [*Sink]. autoAck is returned by AutoAck.
func NewSink(resolve MetaResolver, autoAck bool) *Sink {
	return &Sink{
		Resolve: resolve,
		writers: make(map[conduit.StreamId]Writer),
		byMeta:  make(map[conduit.ConnectionMeta]conduit.StreamId),
		autoAck: autoAck,
	}
}

// RegisterStreamWriter installs writer for stream, indexing it under meta
// when meta != nil.
func (s *Sink) RegisterStreamWriter(stream conduit.StreamId, meta conduit.ConnectionMeta, writer Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writers[stream] = writer
	if meta != nil {
		s.byMeta[meta] = stream
	}
}

// Unregister drops stream's writer, called on writer closure or error.
func (s *Sink) Unregister(stream conduit.StreamId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.writers, stream)
	for k, v := range s.byMeta {
		if v == stream {
			delete(s.byMeta, k)
		}
	}
}

// Connect always reports success: writers register asynchronously as
// connections are accepted.
func (s *Sink) Connect(ctx context.Context, attempt int) (bool, error) {
	return true, nil
}

// OnEvent resolves the event's target writer(s) from its Meta via
// Resolve: if a matching [conduit.ConnectionMeta] key is found, dispatch
// to that writer alone; otherwise broadcast to every writer. Writes are
// attempted concurrently; any writer returning an error is unregistered.
//
// Ack is [conduit.AckAck] once every addressed writer accepted the
// payload, [conduit.AckFail] if no writer was resolvable or every
// resolved writer errored.
func (s *Sink) OnEvent(ctx context.Context, ev conduit.Event, startNS int64, asyncReply func(conduit.SinkReply)) (conduit.SinkReply, error) {
	data, ok := ev.Payload.([]byte)
	if !ok {
		data = nil
	}

	targets := s.targets(ev.Meta)
	if len(targets) == 0 {
		return conduit.SinkReply{Ack: conduit.AckFail}, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(targets))
	for i, t := range targets {
		wg.Add(1)
		go func(i int, stream conduit.StreamId, w Writer) {
			defer wg.Done()
			if err := w.Write(ctx, data); err != nil {
				errs[i] = err
				s.Unregister(stream)
			}
		}(i, t.stream, t.writer)
	}
	wg.Wait()

	errCount := 0
	for _, err := range errs {
		if err != nil {
			errCount++
		}
	}
	if errCount == 0 {
		return conduit.SinkReply{Ack: conduit.AckAck}, nil
	}
	return conduit.SinkReply{Ack: conduit.AckFail}, nil
}

// OnSignal is a no-op.
func (s *Sink) OnSignal(ctx context.Context, signal string) {}

// AutoAck reports the value supplied to [NewSink].
func (s *Sink) AutoAck() bool { return s.autoAck }

type target struct {
	stream conduit.StreamId
	writer Writer
}

func (s *Sink) targets(meta any) []target {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Resolve != nil {
		if key, ok := s.Resolve(meta); ok {
			if stream, ok := s.byMeta[key]; ok {
				if w, ok := s.writers[stream]; ok {
					return []target{{stream: stream, writer: w}}
				}
			}
			return nil
		}
	}

	out := make([]target, 0, len(s.writers))
	for stream, w := range s.writers {
		out = append(out, target{stream: stream, writer: w})
	}
	return out
}
