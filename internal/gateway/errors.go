package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure.
type Kind string

const (
	// KindConfiguration means no credential is configured; no request was sent.
	KindConfiguration Kind = "configuration"
	// KindEmptyResponse means the model returned no text.
	KindEmptyResponse Kind = "empty_response"
	// KindMalformedResponse means the text was not JSON or lacked required fields.
	KindMalformedResponse Kind = "malformed_response"
	// KindTransport means the provider call itself failed.
	KindTransport Kind = "transport"
)

// Error is the failure type returned by every Gateway operation.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindTransport {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or "" when err is not a gateway error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

func configurationError(err error) *Error {
	return &Error{Kind: KindConfiguration, Msg: err.Error(), Err: err}
}

func transportError(err error) *Error {
	return &Error{Kind: KindTransport, Msg: "model request failed", Err: err}
}

var errEmpty = &Error{Kind: KindEmptyResponse, Msg: "no response from AI"}

func malformed(err error) *Error {
	return &Error{Kind: KindMalformedResponse, Msg: "AI returned invalid JSON format, please try again", Err: err}
}
