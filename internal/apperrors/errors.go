// Package apperrors defines the typed errors shared across the engine's
// service and transport layers.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an error for callers that need to react to it.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeOracle     ErrorType = "oracle"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
)

// Error is a classified error with an optional cause.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(errType ErrorType, message string, err error) *Error {
	return &Error{Type: errType, Message: message, Err: err}
}

func ValidationError(message string, err error) *Error {
	return New(ErrorTypeValidation, message, err)
}

func NotFoundError(message string, err error) *Error {
	return New(ErrorTypeNotFound, message, err)
}

func OracleError(message string, err error) *Error {
	return New(ErrorTypeOracle, message, err)
}

func StorageError(message string, err error) *Error {
	return New(ErrorTypeStorage, message, err)
}

func ConfigError(message string, err error) *Error {
	return New(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *Error {
	return New(ErrorTypeIO, message, err)
}

// TypeOf returns the type of the first classified error in err's chain,
// or an empty type when there is none.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// Is reports whether err's chain contains a classified error of the given type.
func Is(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}
