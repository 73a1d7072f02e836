package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/h0rv/ghsync/internal/domain"
)

var (
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport failure")
	// ErrShape indicates a response that did not match the expected JSON shape.
	ErrShape = errors.New("unexpected response shape")
	// ErrUnauthorized matches a *StatusError with code 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound matches a *StatusError with code 404.
	ErrNotFound = errors.New("not found")
)

// TransportError is a request that never produced a response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// StatusError is a non-2xx response. Envelope is set when the body decoded as one.
type StatusError struct {
	Code     int
	Envelope *domain.Envelope[json.RawMessage]
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("HTTP %d %s", e.Code, http.StatusText(e.Code))
	if e.Envelope != nil {
		if reason := e.Envelope.Reason(); reason != "" {
			msg += ": " + reason
		}
	}
	return msg
}

// Is maps 401 and 404 onto their sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	}
	return false
}

func newStatusError(code int, body []byte) *StatusError {
	se := &StatusError{Code: code}
	var env domain.Envelope[json.RawMessage]
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		se.Envelope = &env
	}
	return se
}
