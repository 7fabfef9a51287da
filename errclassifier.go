// SPDX-License-Identifier: GPL-3.0-or-later

package conduit

import "github.com/bassosimone/conduit/errclass"

// ErrClassifier classifies errors into categorical strings for analysis.
//
// Implementations map errors to short, descriptive labels (e.g., "ETIMEDOUT",
// "ECONNRESET") that let logs and dashboards group failures by kind without
// string-matching error messages. This is the mechanism behind the
// Transport error class in the error taxonomy (see errors.go).
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
//
// This allows using simple functions as classifiers:
//
//	op.ErrClassifier = ErrClassifierFunc(errclass.New)
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier classifies errors using the errclass subpackage,
// which recognizes the common POSIX/Windows socket errnos plus context
// cancellation, deadline exceeded, EOF, and already-closed connections.
var DefaultErrClassifier = ErrClassifierFunc(errclass.New)
