package transport

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a transport failure.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindNetwork    Kind = "network"
	KindHTTPStatus Kind = "http_status"
	KindCancelled  Kind = "cancelled"
)

// Error is returned by Client.Send for every failed call.
type Error struct {
	Kind   Kind
	Method string
	Path   string
	// Status is the HTTP status code. Set only for KindHTTPStatus.
	Status int
	// Body is the raw error payload. Set only for KindHTTPStatus when
	// the server answered with valid JSON.
	Body json.RawMessage
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("transport: %s %s: unexpected status %d", e.Method, e.Path, e.Status)
	case KindTimeout:
		return fmt.Sprintf("transport: %s %s: timed out", e.Method, e.Path)
	case KindCancelled:
		return fmt.Sprintf("transport: %s %s: cancelled", e.Method, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("transport: %s %s: %v", e.Method, e.Path, e.Err)
		}
		return fmt.Sprintf("transport: %s %s: network failure", e.Method, e.Path)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a transport Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	return errors.As(err, &target) && target.Kind == kind
}

// Retryable reports whether err is a transient transport failure (timeout or
// network) that a caller may retry.
func Retryable(err error) bool {
	return IsKind(err, KindTimeout) || IsKind(err, KindNetwork)
}
