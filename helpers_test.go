// SPDX-License-Identifier: GPL-3.0-or-later

package conduit

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// funcHandler is a [slog.Handler] that invokes HandleFunc for every record.
type funcHandler struct {
	EnabledFunc func(ctx context.Context, level slog.Level) bool
	HandleFunc  func(ctx context.Context, record slog.Record) error
}

func (h *funcHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.EnabledFunc(ctx, level)
}

func (h *funcHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.HandleFunc(ctx, record)
}

func (h *funcHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *funcHandler) WithGroup(name string) slog.Handler {
	return h
}

// newCapturingLogger returns a logger that captures all log records into the
// returned slice. The caller can inspect the slice after exercising the code
// under test to verify which events were emitted.
func newCapturingLogger() (*slog.Logger, *[]slog.Record) {
	var records []slog.Record
	handler := &funcHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			records = append(records, record)
			return nil
		},
	}
	return slog.New(handler), &records
}

// funcConn is a [net.Conn] whose behavior is fully overridable by tests.
//
// Every method delegates to the corresponding *Func field when set, and
// otherwise falls back to a harmless zero-value default. This mirrors the
// minimal subset of net.Conn that the codebase actually exercises.
type funcConn struct {
	ReadFunc         func([]byte) (int, error)
	WriteFunc        func([]byte) (int, error)
	CloseFunc        func() error
	LocalAddrFunc    func() net.Addr
	RemoteAddrFunc   func() net.Addr
	SetDeadlineFunc  func(time.Time) error
	SetReadDeadFunc  func(time.Time) error
	SetWriteDeaFunc  func(time.Time) error
}

func (c *funcConn) Read(b []byte) (int, error) {
	if c.ReadFunc != nil {
		return c.ReadFunc(b)
	}
	return 0, nil
}

func (c *funcConn) Write(b []byte) (int, error) {
	if c.WriteFunc != nil {
		return c.WriteFunc(b)
	}
	return len(b), nil
}

func (c *funcConn) Close() error {
	if c.CloseFunc != nil {
		return c.CloseFunc()
	}
	return nil
}

func (c *funcConn) LocalAddr() net.Addr {
	if c.LocalAddrFunc != nil {
		return c.LocalAddrFunc()
	}
	return &net.TCPAddr{}
}

func (c *funcConn) RemoteAddr() net.Addr {
	if c.RemoteAddrFunc != nil {
		return c.RemoteAddrFunc()
	}
	return &net.TCPAddr{}
}

func (c *funcConn) SetDeadline(t time.Time) error {
	if c.SetDeadlineFunc != nil {
		return c.SetDeadlineFunc(t)
	}
	return nil
}

func (c *funcConn) SetReadDeadline(t time.Time) error {
	if c.SetReadDeadFunc != nil {
		return c.SetReadDeadFunc(t)
	}
	return nil
}

func (c *funcConn) SetWriteDeadline(t time.Time) error {
	if c.SetWriteDeaFunc != nil {
		return c.SetWriteDeaFunc(t)
	}
	return nil
}

// newMinimalConn returns a [*funcConn] with only LocalAddrFunc and
// RemoteAddrFunc set. This is the minimum needed for code that calls
// [safeconn.LocalAddr], [safeconn.RemoteAddr], and [safeconn.Network]
// during construction.
func newMinimalConn() *funcConn {
	return &funcConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{} },
	}
}
