package track17

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Kind int

const (
	// KindTransport is a failed HTTP exchange: no response or a non-2xx status.
	KindTransport Kind = iota + 1
	// KindAPI is a well-formed envelope whose code is not 0, or a per-number rejection.
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// Error is every failure produced by the remote client.
// Code is the HTTP status for transport errors and the provider code for API errors.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Details json.RawMessage
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewTransportError(status int) *Error {
	return &Error{
		Kind:    KindTransport,
		Code:    status,
		Message: fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status)),
	}
}

func newNetworkError(err error) *Error {
	return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
}

func NewAPIError(code int, msg string, details json.RawMessage) *Error {
	if msg == "" {
		msg = "API request failed"
	}
	return &Error{Kind: KindAPI, Code: code, Message: msg, Details: details}
}

// AsError unwraps err to a remote *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsTransport(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindTransport
}

func IsAPI(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindAPI
}
