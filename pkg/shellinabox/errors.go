package shellinabox

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError indicates the request never produced an HTTP response
// (connection refused, DNS failure, TLS handshake failure, ...).
type TransportError struct {
	Op  string // "open", "poll" or "send"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatusError represents a non-2xx response from the ShellInABox endpoint
type HTTPStatusError struct {
	Op         string
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s failed: HTTP %d: %s", e.Op, e.StatusCode, e.Status)
}

// NewHTTPStatusError creates a new HTTPStatusError
func NewHTTPStatusError(op string, statusCode int) *HTTPStatusError {
	return &HTTPStatusError{
		Op:         op,
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
	}
}

// ProtocolError indicates a 2xx response whose body did not match the
// expected shape: malformed JSON, a missing field or a missing OK marker.
type ProtocolError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsSessionClosed reports whether err is the status ShellInABox answers
// with once the remote session has gone away (400 or 500).
func IsSessionClosed(err error) bool {
	var e *HTTPStatusError
	if !errors.As(err, &e) {
		return false
	}
	return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusInternalServerError
}

// IsTransportError checks if an error is a TransportError
func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// RootCause unwraps err down to its innermost error. Joined errors are
// followed through their first element.
func RootCause(err error) error {
	for err != nil {
		var next error
		switch x := err.(type) {
		case interface{ Unwrap() error }:
			next = x.Unwrap()
		case interface{ Unwrap() []error }:
			if errs := x.Unwrap(); len(errs) > 0 {
				next = errs[0]
			}
		}
		if next == nil {
			return err
		}
		err = next
	}
	return nil
}
