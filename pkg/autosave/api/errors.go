package api

import (
	"errors"
	"fmt"
)

// A Kind classifies why a request did not succeed.
type Kind string

const (
	// KindFailure is a well formed response with success set to false.
	KindFailure Kind = "failure"
	// KindTransport is a network error or a non-2xx status.
	KindTransport Kind = "transport"
	// KindMalformed is a response body that is not the expected JSON.
	KindMalformed Kind = "malformed"
)

// An Error is returned for every request that does not succeed.
type Error struct {
	Kind   Kind
	Method string
	URL    string
	// Status is the http status, or 0 if no response arrived.
	Status int
	// Payload is the decoded response, when there was one.
	Payload Payload
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if reason := e.Payload.Reason(); len(reason) > 0 {
		msg += ": " + reason
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
