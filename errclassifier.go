// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import (
	"errors"

	"github.com/bassosimone/errclass"
)

// ErrClassifier classifies errors into categorical strings for analysis.
//
// Implementations map errors to short, descriptive labels (e.g., "ECONNREFUSED",
// "EADDRINUSE") that make structured logs easy to aggregate.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
//
// This allows using simple functions as classifiers:
//
//	cfg.ErrClassifier = ErrClassifierFunc(errclass.New)
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// Labels assigned by [DefaultErrClassifier] to loopchan errors.
const (
	EALREADY     = "EALREADY"
	EADDRINUSE   = "EADDRINUSE"
	ECLOSED      = "ECLOSED"
	ECONNREFUSED = "ECONNREFUSED"
	EISCONN      = "EISCONN"
	ENOTCONN     = "ENOTCONN"
	EPROTO       = "EPROTO"
	ESHUTDOWN    = "ESHUTDOWN"
)

var errLabels = []struct {
	err   error
	label string
}{
	{ErrAlreadyConnected, EISCONN},
	{ErrConnectionPending, EALREADY},
	{ErrAddressInUse, EADDRINUSE},
	{ErrAlreadyBound, EALREADY},
	{ErrAlreadyRegistered, EALREADY},
	{ErrConnectionRefused, ECONNREFUSED},
	{ErrNotYetConnected, ENOTCONN},
	{ErrClosedChannel, ECLOSED},
	{ErrEventLoopShutdown, ESHUTDOWN},
	{ErrProtocolViolation, EPROTO},
}

// DefaultErrClassifier labels loopchan errors and delegates any other
// non-nil error to [errclass.New]. A nil error is classified as "".
var DefaultErrClassifier = ErrClassifierFunc(func(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errLabels {
		if errors.Is(err, entry.err) {
			return entry.label
		}
	}
	return errclass.New(err)
})
