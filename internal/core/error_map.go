package core

import (
	"errors"
	"strings"
)

// CodedError is implemented by domain errors that carry a machine-readable code.
type CodedError interface {
	error
	ErrorCode() string
}

type ErrorInfo struct {
	Code       string
	Message    string
	HTTPStatus int
}

func MapError(err error, fallbackStatus int) ErrorInfo {
	if err == nil {
		return ErrorInfo{Code: "internal_error", Message: "internal server error", HTTPStatus: fallbackStatus}
	}

	msg := err.Error()

	if errors.Is(err, ErrToolNotAllowed) {
		return ErrorInfo{Code: "tool_not_allowed", Message: msg, HTTPStatus: 403}
	}

	var coded CodedError
	if errors.As(err, &coded) {
		code := coded.ErrorCode()
		switch Kind(code) {
		case KindInvalidArgument:
			return ErrorInfo{Code: code, Message: msg, HTTPStatus: 400}
		case KindProjectNotFound:
			return ErrorInfo{Code: code, Message: msg, HTTPStatus: 404}
		case KindCommandFailed:
			return ErrorInfo{Code: code, Message: msg, HTTPStatus: 422}
		case KindExecutableNotFound:
			return ErrorInfo{Code: code, Message: msg, HTTPStatus: 503}
		}
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "invalid json"), strings.Contains(lower, "cannot unmarshal"):
		return ErrorInfo{Code: "invalid_request_schema", Message: msg, HTTPStatus: 400}
	case strings.Contains(lower, "unknown tool"):
		return ErrorInfo{Code: "tool_not_found", Message: msg, HTTPStatus: 404}
	default:
		code := "internal_error"
		if fallbackStatus >= 400 && fallbackStatus < 500 {
			code = "bad_request"
		}
		return ErrorInfo{Code: code, Message: msg, HTTPStatus: fallbackStatus}
	}
}
