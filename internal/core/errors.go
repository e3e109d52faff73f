package core

import (
	"errors"
	"fmt"
)

// Kind classifies orchestration failures.
type Kind string

const (
	KindConfiguration      Kind = "configuration"
	KindPromptResolution   Kind = "prompt_resolution"
	KindUnsupportedBackend Kind = "unsupported_backend"
	KindEmptyResponse      Kind = "empty_response"
	KindBackendInvocation  Kind = "backend_invocation"
	KindAggregation        Kind = "aggregation"
)

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrConfiguration      = &Error{Kind: KindConfiguration}
	ErrPromptResolution   = &Error{Kind: KindPromptResolution}
	ErrUnsupportedBackend = &Error{Kind: KindUnsupportedBackend}
	ErrEmptyResponse      = &Error{Kind: KindEmptyResponse}
	ErrBackendInvocation  = &Error{Kind: KindBackendInvocation}
	ErrAggregation        = &Error{Kind: KindAggregation}
)

// Error is a classified failure. Op names the operation or subject (a file
// path, a model identifier, a config field) and may be empty.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
