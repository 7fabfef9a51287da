// SPDX-License-Identifier: GPL-3.0-or-later

// Package ws wires [github.com/gorilla/websocket] and the [channel]
// fan-in/fan-out pair into a WebSocket server connector: spec.md §4.6 and
// §6's "WS server: { url, tls? }; default port 80 for ws, 443 for wss."
//
// Unlike the TCP and Unix connectors, the accept path here is an
// [http.Server] rather than [listener.Core]: gorilla/websocket upgrades a
// connection from an [http.ResponseWriter]/[*http.Request] pair, so this
// package drives its own accept loop instead of reusing the raw-net.Conn
// one, following the pattern the rest of the retrieved pack uses for
// WebSocket listeners (e.g. redbco-redb-open's transport/ws package).
package ws

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bassosimone/conduit"
	"github.com/bassosimone/conduit/channel"
	"github.com/bassosimone/conduit/codec"
	"github.com/bassosimone/conduit/registry"
	sinkpkg "github.com/bassosimone/conduit/sink"
	sourcepkg "github.com/bassosimone/conduit/source"
)

// ConnectorType is the static type tag used to register this connector.
const ConnectorType = "ws_server"

// OriginScheme is the [conduit.EventOriginUri] scheme stamped on every
// event this connector's source emits.
const OriginScheme = "tremor-ws-server"

// ConnMeta is the [conduit.ConnectionMeta] this connector indexes writers
// by: the peer's host and port, same shape as the TCP connector's.
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
	URL string    `json:"url"`
	TLS *TLSFiles `json:"tls,omitempty"`
}

// Connector implements [registry.Connector] for a WebSocket server. Both
// halves share one HTTP server, started lazily by the source's first
// [Connect] call.
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
	if _, err := resolveAddr(rc.URL); err != nil {
		return nil, &conduit.ConfigError{Connector: ConnectorType, Key: "url", Reason: err.Error()}
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

// resolveAddr parses rawURL into a dialable host:port, defaulting the
// port to 80 for "ws" and 443 for "wss" when the URL omits one.
func resolveAddr(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "wss":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(host, port), nil
}

// Type implements [registry.Connector].
func (c *Connector) Type() string { return ConnectorType }

// CodecReq implements [registry.Connector].
func (c *Connector) CodecReq() codec.CodecReq {
	return codec.CodecReq{Requirement: codec.Optional, DefaultName: "bytes"}
}

type shared struct {
	cfg    rawConfig
	tls    *tls.Config
	beacon *conduit.Beacon

	idGen  *conduit.StreamIdGenerator
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
			tls:    c.tlsConfig,
			beacon: beacon,
			idGen:  conduit.NewStreamIdGenerator(),
			chSrc:  channel.NewSource(0, true),
			chSink: channel.NewSink(resolveConnMeta, false),
		}
	})
	return c.sh
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  conduit.DefaultBufSize,
	WriteBufferSize: conduit.DefaultBufSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *shared) start(ctx context.Context, cfg *conduit.Config) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return s.bindErr == nil, s.bindErr
	}
	s.started = true

	addr, err := resolveAddr(s.cfg.URL)
	if err != nil {
		s.bindErr = err
		return false, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.bindErr = err
		return false, err
	}
	if s.tls != nil {
		ln = tls.NewListener(ln, s.tls)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.handleUpgrade(ctx, cfg, w, r)
	})
	server := &http.Server{Handler: mux}

	go func() {
		<-s.beacon.Done()
		server.Close()
	}()
	go server.Serve(ln)

	return true, nil
}

func (s *shared) handleUpgrade(ctx context.Context, cfg *conduit.Config, w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cfg.Logger.Info("wsUpgradeDone", slog.Any("err", err))
		return
	}

	stream := s.idGen.Next()
	meta := hostPortOf(wsConn.RemoteAddr())
	port := meta.Port
	origin := &conduit.EventOriginUri{Scheme: OriginScheme, Host: meta.Host, Port: &port}

	s.chSink.RegisterStreamWriter(stream, meta, &wsWriter{conn: wsConn})

	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			s.chSink.Unregister(stream)
			_ = s.chSrc.Deposit(ctx, conduit.SourceReply{Kind: conduit.SourceReplyEndStream, Stream: stream, Origin: origin})
			wsConn.Close()
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		_ = s.chSrc.Deposit(ctx, conduit.SourceReply{
			Kind:   conduit.SourceReplyData,
			Bytes:  data,
			Meta:   meta,
			Stream: stream,
			Origin: origin,
		})
	}
}

// wsWriter adapts a [*websocket.Conn] to [channel.Writer]. gorilla's
// websocket.Conn permits only one concurrent writer, hence the mutex.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(ctx context.Context, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func hostPortOf(addr net.Addr) ConnMeta {
	host, portStr, err := net.SplitHostPort(addr.String())
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
// per spec.md §6.
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
