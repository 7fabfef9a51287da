// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: httpconn.go in the teacher repository (HTTPConn.RoundTrip).
//

package httpsink

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bassosimone/safeconn"

	"github.com/bassosimone/conduit"
)

// Transport performs HTTP round trips over a single already-established
// [net.Conn], emitting httpRoundTripStart/httpRoundTripDone structured log
// events around each request. Unlike the teacher's HTTPConn, Transport never
// negotiates ALPN or speaks h2: it talks HTTP/1.1 to a fixed downstream
// endpoint, and since keep-alives are disabled and conn is handed out only
// once, a Transport completes a single request; later round trips fail.
//
// The caller is responsible for calling [Transport.Close] when done.
type Transport struct {
	conn net.Conn
	txp  *http.Transport

	ErrClassifier conduit.ErrClassifier
	Logger        conduit.SLogger
	TimeNow       func() time.Time
}

// NewTransport wraps conn into a [*Transport]. Because HTTP sinks in this
// runtime hold one outbound connection per stream, the transport's dialer
// hands back conn exactly once and fails any further dial attempt.
func NewTransport(conn net.Conn, cfg *conduit.Config, logger conduit.SLogger) *Transport {
	used := false
	txp := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if used {
				return nil, net.ErrClosed
			}
			used = true
			return conn, nil
		},
		DisableKeepAlives: true,
	}
	return &Transport{
		conn:          conn,
		txp:           txp,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	t0 := t.TimeNow()
	deadline, _ := req.Context().Deadline()
	t.logStart(req, t0, deadline)

	resp, err := t.txp.RoundTrip(req)

	t.logDone(req, t0, deadline, resp, err)
	return resp, err
}

// Close cleans up the transport and closes the underlying connection.
func (t *Transport) Close() error {
	t.txp.CloseIdleConnections()
	return t.conn.Close()
}

func (t *Transport) logStart(req *http.Request, t0, deadline time.Time) {
	t.Logger.Info(
		"httpRoundTripStart",
		slog.Time("deadline", deadline),
		slog.String("httpMethod", req.Method),
		slog.String("httpUrl", req.URL.String()),
		slog.Any("httpRequestHeaders", req.Header),
		slog.String("localAddr", safeconn.LocalAddr(t.conn)),
		slog.String("protocol", safeconn.Network(t.conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(t.conn)),
		slog.Time("t", t0),
	)
}

func (t *Transport) logDone(req *http.Request, t0, deadline time.Time, resp *http.Response, err error) {
	var (
		statusCode int
		headers    http.Header
	)
	if resp != nil {
		statusCode = resp.StatusCode
		headers = resp.Header
	}
	t.Logger.Info(
		"httpRoundTripDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", t.ErrClassifier.Classify(err)),
		slog.String("httpMethod", req.Method),
		slog.String("httpUrl", req.URL.String()),
		slog.Any("httpRequestHeaders", req.Header),
		slog.Any("httpResponseHeaders", headers),
		slog.Int("httpResponseStatusCode", statusCode),
		slog.String("localAddr", safeconn.LocalAddr(t.conn)),
		slog.String("protocol", safeconn.Network(t.conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(t.conn)),
		slog.Time("t0", t0),
		slog.Time("t", t.TimeNow()),
	)
}
