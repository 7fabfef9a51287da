//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/nop/blob/main/tls.go
//

package listener

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/safeconn"

	"github.com/bassosimone/conduit"
)

// TLSServerHandshake performs a server-side TLS handshake over an accepted
// [net.Conn]. The TLS server config is loaded once at connector build
// time; each accepted connection clones it via [tls.Config.Clone] so the
// clock override ([tls.Config.Time]) stays injectable for testing without
// mutating the shared config.
//
// On success it returns a [*tls.Conn] ready for use; on failure it closes
// conn and returns the handshake error. Only this connection is affected;
// the listener keeps accepting.
type TLSServerHandshake struct {
	// Config is the prepared server [*tls.Config]. Must not be nil.
	Config *tls.Config

	ErrClassifier conduit.ErrClassifier
	Logger        conduit.SLogger
	TimeNow       func() time.Time
}

// NewTLSServerHandshake returns a [*TLSServerHandshake] wired from cfg.
func NewTLSServerHandshake(cfg *conduit.Config, tlsConfig *tls.Config, logger conduit.SLogger) *TLSServerHandshake {
	runtimex.Assert(tlsConfig != nil)
	return &TLSServerHandshake{
		Config:        tlsConfig,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// Handshake performs the server handshake, honoring ctx cancellation. It
// satisfies [TLSHandshaker], so a [*TLSServerHandshake] plugs directly
// into a [Core]'s TLS field.
func (h *TLSServerHandshake) Handshake(ctx context.Context, conn net.Conn) (net.Conn, error) {
	config := h.Config.Clone()
	config.Time = h.TimeNow

	tconn := tls.Server(conn, config)
	t0 := h.TimeNow()
	deadline, _ := ctx.Deadline()

	h.Logger.Info(
		"tlsHandshakeStart",
		slog.Time("deadline", deadline),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", t0),
	)

	err := tconn.HandshakeContext(ctx)
	state := tconn.ConnectionState()

	h.Logger.Info(
		"tlsHandshakeDone",
		slog.Any("err", err),
		slog.String("errClass", h.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", h.TimeNow()),
		slog.String("tlsCipherSuite", tls.CipherSuiteName(state.CipherSuite)),
		slog.String("tlsNegotiatedProtocol", state.NegotiatedProtocol),
		slog.String("tlsVersion", tls.VersionName(state.Version)),
	)

	if err != nil {
		conn.Close()
		return nil, err
	}
	return tconn, nil
}
