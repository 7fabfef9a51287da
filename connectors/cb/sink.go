// SPDX-License-Identifier: GPL-3.0-or-later

package cb

import (
	"context"

	"github.com/bassosimone/conduit"
)

// Sink turns an in-band "cb" command carried by an event's metadata (or,
// failing that, its payload) into a [conduit.SinkReply]. It never
// auto-acks: the command itself controls the reply.
//
// Accepted commands, applied in order when the value is a list (a later
// command overrides an earlier one for the same axis):
//
//	"ack"            -> Ack = conduit.AckAck
//	"fail"           -> Ack = conduit.AckFail
//	"close"/"trigger" -> Cb = conduit.CbTrigger
//	"open"/"restore"  -> Cb = conduit.CbRestore
//	anything else     -> no change
type Sink struct{}

// NewSink returns a [*Sink].
func NewSink() *Sink { return &Sink{} }

// Connect always reports success: the command sink has no dial step.
func (s *Sink) Connect(ctx context.Context, attempt int) (bool, error) { return true, nil }

// OnEvent extracts the "cb" command(s) from ev.Meta, falling back to
// ev.Payload, and maps them to a [conduit.SinkReply].
func (s *Sink) OnEvent(ctx context.Context, ev conduit.Event, startNS int64, asyncReply func(conduit.SinkReply)) (conduit.SinkReply, error) {
	cmds := extractCommands(ev.Meta)
	if cmds == nil {
		cmds = extractCommands(ev.Payload)
	}

	var reply conduit.SinkReply
	for _, cmd := range cmds {
		switch cmd {
		case "ack":
			reply.Ack = conduit.AckAck
		case "fail":
			reply.Ack = conduit.AckFail
		case "close", "trigger":
			reply.Cb = conduit.CbTrigger
		case "open", "restore":
			reply.Cb = conduit.CbRestore
		}
	}
	return reply, nil
}

// OnSignal is a no-op.
func (s *Sink) OnSignal(ctx context.Context, signal string) {}

// AutoAck reports false: the "cb" command controls ack, not the runtime.
func (s *Sink) AutoAck() bool { return false }

// extractCommands reads a "cb" field from v, which may be a
// map[string]any (looked up by key "cb"), a bare string, or a []string/
// []any list of strings. It returns nil when v carries no usable "cb"
// value.
func extractCommands(v any) []string {
	if m, ok := v.(map[string]any); ok {
		v = m["cb"]
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
