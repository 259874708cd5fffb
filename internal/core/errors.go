package core

import (
	"errors"
	"fmt"
)

// Kind classifies a failure surfaced to tool callers.
type Kind string

const (
	KindProjectNotFound    Kind = "project_not_found"
	KindExecutableNotFound Kind = "executable_not_found"
	KindCommandFailed      Kind = "command_failed"
	KindInvalidArgument    Kind = "invalid_argument"
)

// Error is the single error type returned by the resolver, the executor and the tool handlers.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) ErrorCode() string { return string(e.Kind) }

func (e *Error) Unwrap() error { return e.Err }

func ProjectNotFound(format string, args ...any) *Error {
	return &Error{Kind: KindProjectNotFound, Detail: fmt.Sprintf(format, args...)}
}

func ExecutableNotFound(err error, format string, args ...any) *Error {
	return &Error{Kind: KindExecutableNotFound, Detail: fmt.Sprintf(format, args...), Err: err}
}

func CommandFailed(err error, format string, args ...any) *Error {
	return &Error{Kind: KindCommandFailed, Detail: fmt.Sprintf(format, args...), Err: err}
}

func InvalidArgument(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
