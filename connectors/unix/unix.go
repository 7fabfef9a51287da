// SPDX-License-Identifier: GPL-3.0-or-later

// Package unix wires the [listener] accept-loop core and the [channel]
// fan-in/fan-out pair into a Unix domain socket server connector:
// spec.md §4.6 and §6's "Unix server: { path, permissions?, buf_size }".
package unix

import (
	"context"
	"encoding/json"
	"net"
	"sync"

	"github.com/bassosimone/conduit"
	"github.com/bassosimone/conduit/channel"
	"github.com/bassosimone/conduit/codec"
	"github.com/bassosimone/conduit/listener"
	"github.com/bassosimone/conduit/registry"
	sinkpkg "github.com/bassosimone/conduit/sink"
	sourcepkg "github.com/bassosimone/conduit/source"
)

// ConnectorType is the static type tag used to register this connector.
const ConnectorType = "unix_socket_server"

// OriginScheme is the [conduit.EventOriginUri] scheme stamped on every
// event this connector's source emits.
const OriginScheme = "tremor-unix-socket-server"

// ConnMeta is the [conduit.ConnectionMeta] this connector indexes writers
// by: just the stream id, since a Unix socket peer has no host/port.
type ConnMeta struct {
	Stream conduit.StreamId
}

type rawConfig struct {
	Path        string `json:"path"`
	Permissions string `json:"permissions,omitempty"`
	BufSize     int    `json:"buf_size"`
}

// Connector implements [registry.Connector] for a Unix domain socket
// server. Both halves share one accept loop, started lazily by the
// source's first [Connect] call.
type Connector struct {
	cfg     rawConfig
	runtime *conduit.Config

	once sync.Once
	sh   *shared
}

// NewBuilder returns a [registry.Builder] for [ConnectorType].
func NewBuilder() registry.Builder {
	return registry.BuilderFunc{TypeName: ConnectorType, BuildFn: build}
}

func build(cfg *conduit.Config, raw json.RawMessage) (registry.Connector, error) {
	var rc rawConfig
	if err := registry.DecodeStrict(ConnectorType, raw, &rc); err != nil {
		return nil, err
	}
	if err := registry.RequireString(ConnectorType, "path", rc.Path); err != nil {
		return nil, err
	}
	if rc.Permissions != "" {
		if _, err := listener.ParseSymbolicMode(rc.Permissions); err != nil {
			return nil, &conduit.ConfigError{Connector: ConnectorType, Key: "permissions", Reason: err.Error()}
		}
	}
	if rc.BufSize == 0 {
		rc.BufSize = cfg.BufSize
	}
	return &Connector{cfg: rc, runtime: cfg}, nil
}

// Type implements [registry.Connector].
func (c *Connector) Type() string { return ConnectorType }

// CodecReq implements [registry.Connector].
func (c *Connector) CodecReq() codec.CodecReq {
	return codec.CodecReq{Requirement: codec.Optional, DefaultName: "bytes"}
}

type shared struct {
	cfg    rawConfig
	beacon *conduit.Beacon

	chSrc  *channel.Source
	chSink *channel.Sink

	mu      sync.Mutex
	started bool
	bindErr error
}

func (c *Connector) ensureShared(beacon *conduit.Beacon) *shared {
	c.once.Do(func() {
		c.sh = &shared{
			cfg:    c.cfg,
			beacon: beacon,
			chSrc:  channel.NewSource(0, true),
			chSink: channel.NewSink(resolveConnMeta, false),
		}
	})
	return c.sh
}

func (s *shared) start(ctx context.Context, cfg *conduit.Config) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return s.bindErr == nil, s.bindErr
	}
	s.started = true

	ln, err := listener.BindUnix(s.cfg.Path, s.cfg.Permissions)
	if err != nil {
		s.bindErr = err
		return false, err
	}

	core := listener.NewCore(ln, s.beacon, cfg,
		func(stream conduit.StreamId, conn net.Conn) conduit.ConnectionMeta {
			return ConnMeta{Stream: stream}
		},
		func(stream conduit.StreamId) *conduit.EventOriginUri {
			return &conduit.EventOriginUri{Scheme: OriginScheme}
		},
		listener.NewPumpHandler(s.chSrc, s.chSink, s.cfg.BufSize),
	)
	go core.Run(ctx)
	return true, nil
}

// resolveConnMeta accepts the [ConnMeta] this connector's reader stamps on
// every event, or else reads a bare "peer" stream id from an event's metadata
// map, per spec.md §6's "Unix channel-sink reads peer: u64 (stream id)".
func resolveConnMeta(meta any) (conduit.ConnectionMeta, bool) {
	if cm, ok := meta.(ConnMeta); ok {
		return cm, true
	}
	m, ok := meta.(map[string]any)
	if !ok {
		return nil, false
	}
	switch v := m["peer"].(type) {
	case conduit.StreamId:
		return ConnMeta{Stream: v}, true
	case uint64:
		return ConnMeta{Stream: conduit.StreamId(v)}, true
	default:
		return nil, false
	}
}

type source struct {
	*channel.Source
	sh  *shared
	cfg *conduit.Config
}

func (s *source) Connect(ctx context.Context, attempt int) (bool, error) {
	return s.sh.start(ctx, s.cfg)
}

// CreateSource implements [registry.Connector].
func (c *Connector) CreateSource(ctx context.Context) (sourcepkg.Source, bool, error) {
	sh := c.ensureShared(conduit.NewBeacon(ctx))
	return &source{Source: sh.chSrc, sh: sh, cfg: c.runtime}, true, nil
}

// CreateSink implements [registry.Connector].
func (c *Connector) CreateSink(ctx context.Context) (sinkpkg.Sink, bool, error) {
	sh := c.ensureShared(conduit.NewBeacon(ctx))
	return sh.chSink, true, nil
}
