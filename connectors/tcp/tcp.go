// SPDX-License-Identifier: GPL-3.0-or-later

// Package tcp wires the [listener] accept-loop core and the [channel]
// fan-in/fan-out pair into a TCP (optionally TLS) server connector:
// spec.md §4.6 and §6's "TCP server: { url, tls?, buf_size }".
package tcp

import (
	"context"
	"crypto/tls"
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
const ConnectorType = "tcp_server"

// OriginScheme is the [conduit.EventOriginUri] scheme stamped on every
// event this connector's source emits.
const OriginScheme = "tremor-tcp-server"

// ConnMeta is the [conduit.ConnectionMeta] this connector indexes writers
// by: the peer's host and port, read per spec.md §3/§6.
type ConnMeta struct {
	Host string
	Port int
}

// TLSFiles names a PEM certificate/key pair loaded once at connector
// build time.
type TLSFiles struct {
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
}

type rawConfig struct {
	URL     string    `json:"url"`
	TLS     *TLSFiles `json:"tls,omitempty"`
	BufSize int       `json:"buf_size"`
}

// Connector implements [registry.Connector] for a TCP server. Both source
// and sink halves share one accept loop, started lazily by the source's
// first [Connect] call.
type Connector struct {
	cfg       rawConfig
	tlsConfig *tls.Config
	runtime   *conduit.Config

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
	if err := registry.RequireString(ConnectorType, "url", rc.URL); err != nil {
		return nil, err
	}
	if _, port, err := net.SplitHostPort(rc.URL); err != nil || port == "" {
		return nil, &conduit.ConfigError{Connector: ConnectorType, Key: "url", Reason: "must include a port"}
	}
	if rc.BufSize == 0 {
		rc.BufSize = cfg.BufSize
	}

	c := &Connector{cfg: rc, runtime: cfg}
	if rc.TLS != nil {
		cert, err := tls.LoadX509KeyPair(rc.TLS.CertFile, rc.TLS.KeyFile)
		if err != nil {
			return nil, &conduit.ConfigError{Connector: ConnectorType, Key: "tls", Reason: err.Error()}
		}
		c.tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}
	return c, nil
}

// Type implements [registry.Connector].
func (c *Connector) Type() string { return ConnectorType }

// CodecReq implements [registry.Connector]: the codec is optional and
// defaults to "bytes", since TCP carries arbitrary framed bytes.
func (c *Connector) CodecReq() codec.CodecReq {
	return codec.CodecReq{Requirement: codec.Optional, DefaultName: "bytes"}
}

// ensureShared lazily builds the state the source and sink halves share:
// one channel.Source, one channel.Sink, one accept loop. beacon governs
// the accept loop's shutdown and is supplied by whichever half is
// constructed first.
func (c *Connector) ensureShared(beacon *conduit.Beacon) *shared {
	c.once.Do(func() {
		c.sh = &shared{
			cfg:    c.cfg,
			tls:    c.tlsConfig,
			beacon: beacon,
			chSrc:  channel.NewSource(0, true),
			chSink: channel.NewSink(resolveConnMeta, false),
		}
	})
	return c.sh
}

// shared is the state a TCP connector's source and sink halves must
// coordinate: one accept loop, one channel.Source, one channel.Sink.
type shared struct {
	cfg    rawConfig
	tls    *tls.Config
	beacon *conduit.Beacon

	chSrc  *channel.Source
	chSink *channel.Sink

	mu      sync.Mutex
	started bool
	bindErr error
}

func (s *shared) start(ctx context.Context, cfg *conduit.Config) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return s.bindErr == nil, s.bindErr
	}
	s.started = true

	ln, err := net.Listen("tcp", s.cfg.URL)
	if err != nil {
		s.bindErr = err
		return false, err
	}

	core := listener.NewCore(ln, s.beacon, cfg,
		func(stream conduit.StreamId, conn net.Conn) conduit.ConnectionMeta {
			return hostPortOf(conn)
		},
		func(stream conduit.StreamId) *conduit.EventOriginUri {
			return &conduit.EventOriginUri{Scheme: OriginScheme}
		},
		listener.NewPumpHandler(s.chSrc, s.chSink, s.cfg.BufSize),
	)
	if s.tls != nil {
		core.TLS = listener.NewTLSServerHandshake(cfg, s.tls, cfg.Logger)
	}
	go core.Run(ctx)
	return true, nil
}

func hostPortOf(conn net.Conn) ConnMeta {
	host, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return ConnMeta{}
	}
	port := 0
	for _, c := range portStr {
		if c < '0' || c > '9' {
			return ConnMeta{Host: host}
		}
		port = port*10 + int(c-'0')
	}
	return ConnMeta{Host: host, Port: port}
}

// resolveConnMeta accepts the [ConnMeta] this connector's reader stamps on
// every event, or else reads peer.host/peer.port from an event's metadata map,
// per spec.md §6's "WS/TCP channel-sink reads peer.{host,port}".
func resolveConnMeta(meta any) (conduit.ConnectionMeta, bool) {
	if cm, ok := meta.(ConnMeta); ok {
		return cm, true
	}
	m, ok := meta.(map[string]any)
	if !ok {
		return nil, false
	}
	host, hasHost := m["peer.host"].(string)
	port, hasPort := m["peer.port"].(int)
	if !hasHost || !hasPort {
		return nil, false
	}
	return ConnMeta{Host: host, Port: port}, true
}

// source adapts [*channel.Source] to [source.Source], starting the
// shared accept loop on its first Connect call.
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
