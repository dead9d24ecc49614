package metadata

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable reports that every fetch attempt failed transiently.
	ErrUnavailable = errors.New("metadata: backend unavailable")
	// ErrInvalidResponse reports a non-2xx answer or an undecodable payload.
	ErrInvalidResponse = errors.New("metadata: invalid response")
)

// FailureKind classifies a FetchError.
type FailureKind string

const (
	Unavailable     FailureKind = "unavailable"
	InvalidResponse FailureKind = "invalid_response"
)

// FetchError wraps the last underlying failure of a metadata or focus fetch.
type FetchError struct {
	Kind     FailureKind
	Resource string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("metadata: fetch %s: %s", e.Resource, e.Kind)
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is match the sentinel for the failure kind.
func (e *FetchError) Is(target error) bool {
	switch e.Kind {
	case Unavailable:
		return target == ErrUnavailable
	case InvalidResponse:
		return target == ErrInvalidResponse
	}
	return false
}
