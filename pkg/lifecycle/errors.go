package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-myimpact/pkg/transport"
)

// ErrSuperseded is returned to a submitter whose request was replaced by a
// newer submit or a reset before it completed.
var ErrSuperseded = errors.New("lifecycle: request superseded")

// ErrorKind classifies a user-facing generation failure.
type ErrorKind string

const (
	ServerDetail      ErrorKind = "server_detail"
	HTTPStatus        ErrorKind = "http_status"
	Generic           ErrorKind = "generic"
	MalformedResponse ErrorKind = "malformed_response"
)

const (
	GenericMessage   = "Failed to generate prompts. Please try again."
	MalformedMessage = "The server returned an unexpected response. Please try again."
	ValidationNotice = "Please fill in all required fields."
)

// ErrorInfo is the displayable outcome of a failed generation.
type ErrorInfo struct {
	Kind    ErrorKind
	Message string
	// Status is the HTTP status when the failure came from a non-2xx answer.
	Status int
	Err    error
}

func (e *ErrorInfo) Error() string {
	return "lifecycle: " + e.Message
}

func (e *ErrorInfo) Unwrap() error { return e.Err }

// MapError converts a transport failure into an ErrorInfo. The message comes
// from the server detail when present, then the HTTP status, then a generic
// retry hint.
func MapError(err error) *ErrorInfo {
	var terr *transport.Error
	if !errors.As(err, &terr) || terr.Kind != transport.KindHTTPStatus {
		return &ErrorInfo{Kind: Generic, Message: GenericMessage, Err: err}
	}
	if detail := serverDetail(terr.Body); detail != "" {
		return &ErrorInfo{Kind: ServerDetail, Message: detail, Status: terr.Status, Err: err}
	}
	return &ErrorInfo{
		Kind:    HTTPStatus,
		Message: fmt.Sprintf("API error: %d", terr.Status),
		Status:  terr.Status,
		Err:     err,
	}
}

// serverDetail extracts "detail" as either a plain string or a list of
// validation entries carrying "msg".
func serverDetail(body json.RawMessage) string {
	if len(body) == 0 {
		return ""
	}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var entries []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &entries); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if msg := strings.TrimSpace(entry.Msg); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return strings.Join(msgs, "; ")
}
