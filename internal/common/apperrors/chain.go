package apperrors

import (
	"errors"
	"strings"
)

// chainError is the concrete Error implementation. A chainError keeps a
// reference to the error it was derived from (base) so that errors.Is
// walks the whole derivation chain, plus any errors attached along the
// way (wrapped).
type chainError struct {
	msg        string
	base       error
	wrapped    []error
	statusCode int
}

func (e *chainError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by every wrapped error,
// separated by "; ".
func (e *chainError) ErrorAll() string {
	if len(e.wrapped) == 0 {
		return e.msg
	}
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.wrapped {
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *chainError) Unwrap() error {
	return e.base
}

func (e *chainError) UnwrapAll() []error {
	return e.wrapped
}

func (e *chainError) New(msg string) Error {
	return &chainError{
		msg:        msg,
		base:       e,
		statusCode: e.statusCode,
	}
}

func (e *chainError) Msg(msg string) Error {
	return &chainError{
		msg:        msg,
		base:       e,
		wrapped:    append([]error{e}, e.wrapped...),
		statusCode: e.statusCode,
	}
}

func (e *chainError) MsgErr(msg string, errs ...error) Error {
	return &chainError{
		msg:        msg,
		base:       e,
		wrapped:    append([]error{e}, errs...),
		statusCode: e.statusCode,
	}
}

func (e *chainError) Err(errs ...error) Error {
	return &chainError{
		msg:        e.msg,
		base:       e,
		wrapped:    append([]error{e}, errs...),
		statusCode: e.statusCode,
	}
}

func (e *chainError) SetStatusCode(code int) Error {
	cp := *e
	cp.statusCode = code
	return &cp
}

func (e *chainError) StatusCode() int {
	return e.statusCode
}

// Is matches against the base chain and every wrapped error, so a
// derived error still matches its sentinel.
func (e *chainError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.wrapped {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// New creates a root error with the given message and no status code.
func New(msg string) Error {
	return &chainError{msg: msg}
}
