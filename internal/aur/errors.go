// SPDX-License-Identifier: MPL-2.0

package aur

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the directory has no matching package.
var ErrNotFound = errors.New("no packages found")

type (
	// TransportError reports that the AUR could not be asked: the request
	// failed, the server answered 429 or 5xx, or the body was unreadable.
	TransportError struct {
		Op         string
		StatusCode int // zero when no response was received
		Err        error
	}

	// APIError carries an error message returned by the RPC interface itself,
	// such as "Query arg too small.".
	APIError struct {
		Op      string
		Message string
	}
)

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("aur %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("aur %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transient is always true; the same request may succeed later.
func (e *TransportError) Transient() bool { return true }

func (e *APIError) Error() string {
	return fmt.Sprintf("aur %s: %s", e.Op, e.Message)
}
