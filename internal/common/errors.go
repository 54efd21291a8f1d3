package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Stage failure sentinels. Failures before reconciliation are fatal to the
// request; reconciliation itself never surfaces an error (best-effort degrade).
var (
	// ErrUnsupportedFormat: file extension/content-type outside {pdf, png, jpg, jpeg}.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptyInput: zero-byte upload or undecodable image bytes.
	ErrEmptyInput = errors.New("empty or undecodable input")
	// ErrNoTextExtracted: the OCR/embedded-text path produced only whitespace.
	ErrNoTextExtracted = errors.New("no text extracted")
	// ErrStructuredExtraction: the LLM call failed or returned no recoverable JSON.
	ErrStructuredExtraction = errors.New("LLM did not return valid structured data")
)

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
