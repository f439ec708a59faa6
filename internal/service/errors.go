package service

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType int

const (
	ErrValidation ErrorType = iota
	ErrFileRead
	ErrModelLoad
	ErrTranscription
	ErrStoreUnavailable
	ErrNotFound
	ErrUnknown
)

// Error is the structured error value used across the adapter, worker, and
// API boundaries. Type drives how a failure is surfaced (HTTP 400, terminal
// job failure, retry, ...); Message is what the client eventually sees.
type Error struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrValidation:
		return "Validation"
	case ErrFileRead:
		return "FileRead"
	case ErrModelLoad:
		return "ModelLoad"
	case ErrTranscription:
		return "Transcription"
	case ErrStoreUnavailable:
		return "StoreUnavailable"
	case ErrNotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *Error {
	return NewErrorWithCause(errorType, message, err)
}

// SafeExecute runs fn and converts a panic into an error value so a
// misbehaving callee cannot take the caller down.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
