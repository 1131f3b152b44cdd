// Package errors defines the typed error kinds shared by the detection funnel.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error kind of the funnel.
type ErrorCode string

const (
	// ErrCodeClassifierUnavailable indicates a classifier failed to produce a result.
	ErrCodeClassifierUnavailable ErrorCode = "CLASSIFIER_UNAVAILABLE"
	// ErrCodeLLMTimeout indicates the language model did not answer in time.
	ErrCodeLLMTimeout ErrorCode = "LLM_TIMEOUT"
	// ErrCodeLLMMalformedResponse indicates the model answered with unusable content.
	ErrCodeLLMMalformedResponse ErrorCode = "LLM_MALFORMED_RESPONSE"
	// ErrCodeLLMUnavailable indicates the model endpoint could not be reached or is not configured.
	ErrCodeLLMUnavailable ErrorCode = "LLM_UNAVAILABLE"
	// ErrCodeCatalogEmpty indicates no active services could be loaded.
	ErrCodeCatalogEmpty ErrorCode = "CATALOG_EMPTY"
	// ErrCodeInternal indicates an unexpected failure inside the funnel.
	ErrCodeInternal ErrorCode = "INTERNAL"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// FunnelError is a structured error carrying a kind and diagnostic context.
type FunnelError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *FunnelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *FunnelError) Unwrap() error {
	return e.Cause
}

// WithContext adds a diagnostic key to the error.
func (e *FunnelError) WithContext(key string, value any) *FunnelError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ClassifierUnavailable wraps a classifier failure.
func ClassifierUnavailable(source string, cause error) *FunnelError {
	return &FunnelError{
		Code:    ErrCodeClassifierUnavailable,
		Message: fmt.Sprintf("classifier %s unavailable", source),
		Cause:   cause,
	}
}

// LLMTimeout creates a timeout error for a model call.
func LLMTimeout(cause error) *FunnelError {
	return &FunnelError{Code: ErrCodeLLMTimeout, Message: "llm call timed out", Cause: cause}
}

// LLMMalformedResponse creates an error for an unparsable model answer.
func LLMMalformedResponse(msg string, cause error) *FunnelError {
	return &FunnelError{Code: ErrCodeLLMMalformedResponse, Message: msg, Cause: cause}
}

// LLMUnavailable creates an error for an unreachable or unconfigured model.
func LLMUnavailable(msg string, cause error) *FunnelError {
	return &FunnelError{Code: ErrCodeLLMUnavailable, Message: msg, Cause: cause}
}

// CatalogEmpty creates the fatal catalog error.
func CatalogEmpty(cause error) *FunnelError {
	return &FunnelError{Code: ErrCodeCatalogEmpty, Message: "service catalog is empty", Cause: cause}
}

// Internal creates an unexpected-failure error.
func Internal(msg string, cause error) *FunnelError {
	return &FunnelError{Code: ErrCodeInternal, Message: msg, Cause: cause}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *FunnelError {
	return &FunnelError{Code: ErrCodeInvalidArgument, Message: msg}
}

// IsCode reports whether any error in err's chain has the given code.
func IsCode(err error, code ErrorCode) bool {
	var fe *FunnelError
	if stderrors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the chain holds no FunnelError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var fe *FunnelError
	if stderrors.As(err, &fe) {
		return fe.Code
	}
	return defaultCode
}
