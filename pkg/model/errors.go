package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed API call.
type ErrorKind string

const (
	// KindTransport means no response was received.
	KindTransport ErrorKind = "transport"
	// KindTimeout means the request exceeded the client deadline.
	KindTimeout ErrorKind = "timeout"
	// KindUnauthorized means the server rejected the credential (HTTP 401).
	KindUnauthorized ErrorKind = "unauthorized"
	// KindDomain means the server answered with an error payload.
	KindDomain ErrorKind = "domain"
	// KindUnexpected covers everything else (encoding, decoding, programming errors).
	KindUnexpected ErrorKind = "unexpected"
)

// APIError is the normalized failure of a call to the user-management API.
type APIError struct {
	Kind          ErrorKind `json:"kind"`
	Method        string    `json:"method,omitempty"`
	Path          string    `json:"path,omitempty"`
	Status        int       `json:"status,omitempty"`
	ServerMessage string    `json:"message,omitempty"`
	ServerError   string    `json:"error,omitempty"`
	Err           error     `json:"-"`
}

func (e *APIError) Error() string {
	msg := e.ServerMessage
	if msg == "" {
		msg = e.ServerError
	}
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %s (status %d): %s", e.Method, e.Path, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Path, e.Kind, msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ErrValidation wraps local input validation failures.
var ErrValidation = errors.New("validation failed")

// KindOf returns the kind of an *APIError in err's chain, or KindUnexpected.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnexpected
}
