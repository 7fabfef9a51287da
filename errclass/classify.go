//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/errclass/errclass.go
//

// Package errclass classifies network and protocol errors into short,
// stable categorical strings suitable for structured log fields and
// dashboards. The per-OS syscall-errno tables (unix.go, windows.go) name
// the raw codes; this file matches an arbitrary error value against them
// plus the handful of non-errno failure modes every connector runtime
// cares about (deadline, cancellation, EOF, closed connections).
package errclass

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// Categorical labels. Named after the POSIX errno they most directly
// correspond to, except for the non-errno cases at the bottom.
const (
	EADDRNOTAVAIL   = "EADDRNOTAVAIL"
	EADDRINUSE      = "EADDRINUSE"
	ECONNABORTED    = "ECONNABORTED"
	ECONNREFUSED    = "ECONNREFUSED"
	ECONNRESET      = "ECONNRESET"
	EHOSTUNREACH    = "EHOSTUNREACH"
	EINVAL          = "EINVAL"
	EINTR           = "EINTR"
	ENETDOWN        = "ENETDOWN"
	ENETUNREACH     = "ENETUNREACH"
	ENOBUFS         = "ENOBUFS"
	ENOTCONN        = "ENOTCONN"
	EPROTONOSUPPORT = "EPROTONOSUPPORT"
	ETIMEDOUT       = "ETIMEDOUT"

	// EEOF is returned for [io.EOF] and [io.ErrUnexpectedEOF].
	EEOF = "EEOF"

	// ECANCELED is returned when an operation failed because its
	// [context.Context] was cancelled.
	ECANCELED = "ECANCELED"

	// ECLOSED is returned for operations on an already-closed connection
	// or listener ([net.ErrClosed]).
	ECLOSED = "ECLOSED"

	// EGENERIC is returned for any error this package cannot classify.
	EGENERIC = "EGENERIC"
)

// errnoTable maps the per-OS constants (unix.go, windows.go) to labels.
// Built once; the underlying constants are typed as syscall.Errno-like
// error values on every supported GOOS.
var errnoTable = map[error]string{
	errEADDRNOTAVAIL:   EADDRNOTAVAIL,
	errEADDRINUSE:      EADDRINUSE,
	errECONNABORTED:    ECONNABORTED,
	errECONNREFUSED:    ECONNREFUSED,
	errECONNRESET:      ECONNRESET,
	errEHOSTUNREACH:    EHOSTUNREACH,
	errEINVAL:          EINVAL,
	errEINTR:           EINTR,
	errENETDOWN:        ENETDOWN,
	errENETUNREACH:     ENETUNREACH,
	errENOBUFS:         ENOBUFS,
	errENOTCONN:        ENOTCONN,
	errEPROTONOSUPPORT: EPROTONOSUPPORT,
	errETIMEDOUT:       ETIMEDOUT,
}

// New classifies err into one of the categorical labels above. It returns
// the empty string for a nil error and [EGENERIC] for anything it does not
// recognize.
func New(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return ECANCELED
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ETIMEDOUT
	}
	if errors.Is(err, net.ErrClosed) {
		return ECLOSED
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return EEOF
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ETIMEDOUT
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if label, ok := errnoTable[errno]; ok {
			return label
		}
	}
	return EGENERIC
}
