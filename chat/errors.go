package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/store"
)

type Code int

const (
	CodeOK               Code = 0
	CodeInvalidArguments Code = 3
	CodeNotFound         Code = 5
	CodePermissionDenied Code = 7
	CodeInternal         Code = 13
	CodeUnauthenticated  Code = 16
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeInvalidArguments:
		return "invalid arguments"
	case CodeNotFound:
		return "not found"
	case CodePermissionDenied:
		return "permission denied"
	case CodeInternal:
		return "internal"
	case CodeUnauthenticated:
		return "unauthenticated"
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is returned by every Session operation that fails.
type Error struct {
	Code   Code
	Op     string
	Params []string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Code.String())
	if len(e.Params) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Params, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of err, CodeInternal for errors not raised by this package.
func ErrorCode(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func newInvalidArgumentError(op string, errs ...string) *Error {
	return &Error{
		Code:   CodeInvalidArguments,
		Op:     op,
		Params: errs,
	}
}

func newError(code Code, op string, param string) *Error {
	return &Error{
		Code:   code,
		Op:     op,
		Params: []string{param},
	}
}

// backendError maps collaborator errors to codes.
func backendError(op string, err error) *Error {
	code := CodeInternal
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = CodeNotFound
	case errors.Is(err, store.ErrPermissionDenied):
		code = CodePermissionDenied
	case errors.Is(err, auth.ErrNotAuthenticated):
		code = CodeUnauthenticated
	}
	return &Error{Code: code, Op: op, Err: err}
}
