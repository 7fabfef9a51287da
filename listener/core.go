//
// SPDX-License-Identifier: GPL-3.0-or-later
//

// Package listener implements the accept loop core shared by the
// raw-socket connectors (TCP, TLS, Unix; the WebSocket connector runs its
// own http.Server accept path instead): per-connection
// stream id allocation, [conduit.ConnectionMeta]/[conduit.EventOriginUri]
// construction, optional TLS handshake, and registration of a reader with
// a [channel.Source] and a writer with a [channel.Sink].
package listener

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/conduit"
)

// AcceptTimeout bounds each Accept call so the quiescence beacon is
// observed promptly even on a listener with no incoming connections.
const AcceptTimeout = 200 * time.Millisecond

// deadlineListener is satisfied by every [net.Listener] the standard
// library returns for TCP and Unix sockets.
type deadlineListener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// Handler is invoked once per accepted connection, after stream id
// allocation and TLS handshake (if configured) but before the connection
// is handed to a reader/writer pair. The core has already wrapped conn
// with [conduit.CancelWatchConn] and an observer; implementations
// typically spawn a reader goroutine depositing into a [channel.Source]
// and register a writer with a [channel.Sink].
type Handler func(ctx context.Context, stream conduit.StreamId, conn net.Conn, meta conduit.ConnectionMeta, origin *conduit.EventOriginUri)

// MetaFunc builds a [conduit.ConnectionMeta] for an accepted connection.
type MetaFunc func(stream conduit.StreamId, conn net.Conn) conduit.ConnectionMeta

// TLSHandshaker upgrades an accepted plaintext connection to TLS.
type TLSHandshaker interface {
	Handshake(ctx context.Context, conn net.Conn) (net.Conn, error)
}

// Core drives the accept loop for one listener. Construct with [NewCore].
type Core struct {
	Listener net.Listener
	Beacon   *conduit.Beacon
	IdGen    *conduit.StreamIdGenerator
	Meta     MetaFunc
	Origin   func(stream conduit.StreamId) *conduit.EventOriginUri
	TLS      TLSHandshaker // nil when the listener is plaintext
	Handle   Handler

	Cfg    *conduit.Config
	Logger conduit.SLogger
}

// NewCore returns a [*Core] wired from cfg.
func NewCore(ln net.Listener, beacon *conduit.Beacon, cfg *conduit.Config, meta MetaFunc, origin func(conduit.StreamId) *conduit.EventOriginUri, handle Handler) *Core {
	return &Core{
		Listener: ln,
		Beacon:   beacon,
		IdGen:    conduit.NewStreamIdGenerator(),
		Meta:     meta,
		Origin:   origin,
		Handle:   handle,
		Cfg:      cfg,
		Logger:   cfg.Logger,
	}
}

// Run accepts connections until the beacon is triggered or ctx ends, then
// closes the listener. Every accepted connection is handled in its own
// goroutine so that a slow handshake or handler cannot stall subsequent
// accepts.
func (c *Core) Run(ctx context.Context) {
	defer c.Listener.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Beacon.Done():
			return
		default:
		}

		if dl, ok := c.Listener.(deadlineListener); ok {
			_ = dl.SetDeadline(time.Now().Add(AcceptTimeout))
		}

		conn, err := c.Listener.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-c.Beacon.Done():
				return
			default:
			}
			c.Logger.Info("acceptDone", slog.Any("err", err))
			continue
		}

		go c.onAccept(ctx, conn)
	}
}

func (c *Core) onAccept(ctx context.Context, conn net.Conn) {
	stream := c.IdGen.Next()
	t0 := c.Cfg.TimeNow()
	c.Logger.Info("acceptStart", slog.Any("stream", stream), slog.Time("t", t0))

	if c.TLS != nil {
		tconn, err := c.TLS.Handshake(ctx, conn)
		if err != nil {
			c.Logger.Info("acceptDone", slog.Any("stream", stream), slog.Any("err", err),
				slog.String("errClass", c.Cfg.ErrClassifier.Classify(err)), slog.Time("t0", t0), slog.Time("t", c.Cfg.TimeNow()))
			return
		}
		conn = tconn
	}

	meta := c.Meta(stream, conn)
	origin := c.Origin(stream)

	conn = conduit.CancelWatchConn(ctx, conn)
	conn = conduit.NewObserveConnFunc(c.Cfg, c.Logger).Wrap(conn)

	c.Logger.Info("acceptDone", slog.Any("stream", stream), slog.Time("t0", t0), slog.Time("t", c.Cfg.TimeNow()))
	c.Logger.Info("streamOpen", slog.Any("stream", stream))

	c.Handle(ctx, stream, conn, meta, origin)
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
