// SPDX-License-Identifier: GPL-3.0-or-later

// Package registry implements the name→[Builder] mapping that turns a
// connector type name plus a raw JSON configuration into a [Connector]:
// spec.md's "polymorphism over connector kinds" guidance realized as a
// map populated at startup, not an inheritance hierarchy.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/bassosimone/conduit"
	"github.com/bassosimone/conduit/codec"
	"github.com/bassosimone/conduit/sink"
	"github.com/bassosimone/conduit/source"
)

// Connector is the capability set every connector type implements: a
// static type tag, a codec requirement, and factory methods for an
// optional source half and an optional sink half. Either half may be
// absent (ok == false).
type Connector interface {
	Type() string
	CodecReq() codec.CodecReq
	CreateSource(ctx context.Context) (source.Source, bool, error)
	CreateSink(ctx context.Context) (sink.Sink, bool, error)
}

// Builder constructs a [Connector] of one type from a raw JSON
// configuration. Implementations decode rawConfig with [DecodeStrict] so
// that an unknown key is rejected per spec.md §6/§8.5.
type Builder interface {
	Type() string
	Build(cfg *conduit.Config, rawConfig json.RawMessage) (Connector, error)
}

// BuilderFunc adapts a function to [Builder].
type BuilderFunc struct {
	TypeName string
	BuildFn  func(cfg *conduit.Config, rawConfig json.RawMessage) (Connector, error)
}

// Type implements [Builder].
func (f BuilderFunc) Type() string { return f.TypeName }

// Build implements [Builder].
func (f BuilderFunc) Build(cfg *conduit.Config, rawConfig json.RawMessage) (Connector, error) {
	return f.BuildFn(cfg, rawConfig)
}

// Registry is a name→[Builder] lookup. The zero value is ready for use.
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns an empty [*Registry].
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register installs b under its own [Builder.Type]. Registering a second
// builder under the same type name replaces the first, which is how a
// test or an embedder overrides a built-in connector type.
func (r *Registry) Register(b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.builders == nil {
		r.builders = make(map[string]Builder)
	}
	r.builders[b.Type()] = b
}

// Types returns the registered connector type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.builders))
	for t := range r.builders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Build looks up typeName's [Builder] and invokes it with rawConfig. It
// returns a [*conduit.ConfigError] naming typeName when no builder is
// registered under it.
func (r *Registry) Build(cfg *conduit.Config, typeName string, rawConfig json.RawMessage) (Connector, error) {
	r.mu.RLock()
	b, ok := r.builders[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, &conduit.ConfigError{Connector: typeName, Reason: "unknown connector type"}
	}
	return b.Build(cfg, rawConfig)
}

// DecodeStrict decodes rawConfig into v, rejecting any key v's type does
// not declare (the "deny unknown fields" validation rule) and reporting a
// missing rawConfig as a [*conduit.ConfigError] naming connectorType.
// Required-field validation beyond "non-empty" is the caller's job, since
// only the caller knows which fields are required.
func DecodeStrict(connectorType string, rawConfig json.RawMessage, v any) error {
	if len(bytes.TrimSpace(rawConfig)) == 0 {
		return &conduit.ConfigError{Connector: connectorType, Reason: "missing configuration"}
	}
	dec := json.NewDecoder(bytes.NewReader(rawConfig))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &conduit.ConfigError{Connector: connectorType, Reason: err.Error()}
	}
	return nil
}

// RequireString reports a [*conduit.ConfigError] for connectorType/key
// when value is empty, otherwise nil.
func RequireString(connectorType, key, value string) error {
	if value == "" {
		return &conduit.ConfigError{Connector: connectorType, Key: key, Reason: "required"}
	}
	return nil
}

// RequireInt reports a [*conduit.ConfigError] for connectorType/key when
// value is the zero value, otherwise nil.
func RequireInt(connectorType, key string, value int) error {
	if value == 0 {
		return &conduit.ConfigError{Connector: connectorType, Key: key, Reason: "required"}
	}
	return nil
}
