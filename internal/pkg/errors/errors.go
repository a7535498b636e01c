package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrTooMany      = errors.New("too many requests")
	ErrEmbedding    = errors.New("embedding failed")
	ErrSynthesis    = errors.New("synthesis failed")
	ErrStorage      = errors.New("storage failed")
	ErrInternal     = errors.New("internal")
)

// Error pairs an error kind with a caller-facing message and the
// underlying cause. errors.Is matches both the kind and the cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func New(kind error, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func Invalid(msg string) error {
	return &Error{Kind: ErrInvalid, Msg: msg}
}

func Invalidf(format string, args ...interface{}) error {
	return &Error{Kind: ErrInvalid, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Msg: msg}
}

func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Msg: msg}
}

func Embedding(cause error) error {
	return wrapOnce(ErrEmbedding, "could not embed text", cause)
}

func Synthesis(cause error) error {
	return wrapOnce(ErrSynthesis, "could not generate an answer", cause)
}

func Storage(cause error) error {
	return wrapOnce(ErrStorage, "storage failure", cause)
}

func wrapOnce(kind error, msg string, cause error) error {
	if cause == nil {
		return nil
	}
	var e *Error
	if errors.As(cause, &e) {
		return cause
	}
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Message returns the caller-facing text of err without leaking causes.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		return e.Kind.Error()
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrInvalid):
		return "invalid request"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	}
	return "internal error"
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
