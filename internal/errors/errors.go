package errors

import (
	"fmt"
)

type ErrorType string

const (
	ErrorTypeNotFound          ErrorType = "NOT_FOUND"
	ErrorTypeValidation        ErrorType = "VALIDATION"
	ErrorTypeUnreconstructable ErrorType = "UNRECONSTRUCTABLE"
	ErrorTypeInternal          ErrorType = "INTERNAL"
)

// Exit codes used by the command line
const (
	CodeInternal          = 1
	CodeValidation        = 2
	CodeNotFound          = 3
	CodeUnreconstructable = 4
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details any       `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    CodeNotFound,
	}
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Code:    CodeValidation,
		Details: details,
	}
}

// Unreconstructable reports a stored version whose text can no longer be
// rebuilt from its delta chain
func Unreconstructable(docID string, number int, cause error) *Error {
	return &Error{
		Type:    ErrorTypeUnreconstructable,
		Message: fmt.Sprintf("version %d of %s could not be reconstructed", number, docID),
		Code:    CodeUnreconstructable,
		Details: map[string]any{"document": docID, "version": number},
		Err:     cause,
	}
}

func Internal(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Message: message,
		Code:    CodeInternal,
		Err:     cause,
	}
}

// ExitCode maps any error to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
