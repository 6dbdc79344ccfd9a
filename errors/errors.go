package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if another attempt (or another provider) may succeed.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, errors.LowQualityResult()) works without pointer identity.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Taxonomy constructors ---

// PermissionDenied creates an error for a missing permission on the named resource.
func PermissionDenied(resource string) *AppError {
	return New(ErrCodePermissionDenied, fmt.Sprintf("Permission to use %s was denied.", resource)).
		WithDetail("resource", resource)
}

// ConfigurationInvalid creates an error for an invalid request or provider configuration.
func ConfigurationInvalid(reason string) *AppError {
	return New(ErrCodeConfigurationInvalid, fmt.Sprintf("Invalid configuration: %s", reason))
}

// AudioFormatUnsupported creates an error for audio the backend cannot consume.
func AudioFormatUnsupported(format string) *AppError {
	return New(ErrCodeAudioFormatUnsupported, fmt.Sprintf("Audio format %s is not supported.", format)).
		WithDetail("format", format)
}

// ModelUnavailable creates an error for a backend whose model cannot be loaded.
func ModelUnavailable(model string) *AppError {
	return New(ErrCodeModelUnavailable, fmt.Sprintf("Model %s is unavailable.", model)).
		WithDetail("model", model)
}

// ProcessingFailed creates an error for a backend failure during transcription.
func ProcessingFailed(reason string) *AppError {
	return New(ErrCodeProcessingFailed, fmt.Sprintf("Transcription failed: %s", reason))
}

// LowQualityResult creates the synthetic error raised when the quality gate rejects a result.
func LowQualityResult() *AppError {
	return New(ErrCodeLowQualityResult, "The transcription result did not pass the quality gate.")
}

// InsufficientResources creates an error for resource pressure on the device.
func InsufficientResources(reason string) *AppError {
	return New(ErrCodeInsufficientResources, fmt.Sprintf("Insufficient resources: %s", reason))
}

// NetworkRequired creates an error for a backend that needs connectivity.
func NetworkRequired() *AppError {
	return New(ErrCodeNetworkRequired, "A network connection is required for this provider.")
}

// FallbackRequired creates an error for a backend asking to be replaced.
func FallbackRequired() *AppError {
	return New(ErrCodeFallbackRequired, "The provider requested a fallback.")
}

// NoProviderAvailable creates the terminal error raised when selection exhausts all candidates.
func NoProviderAvailable() *AppError {
	return New(ErrCodeNoProviderAvailable, "No transcription provider is available.")
}

// AllProvidersFailed creates the generic error surfaced when no specific cause was captured.
func AllProvidersFailed() *AppError {
	return New(ErrCodeAllProvidersFailed, "All transcription engines failed.")
}

// Canceled creates an error for an abandoned operation.
func Canceled(cause error) *AppError {
	return New(ErrCodeCanceled, "The operation was canceled.").WithCause(cause)
}

// Internal creates an error for an unexpected internal failure.
func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "An unexpected error occurred.").WithCause(cause)
}

// --- Inspection helpers ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err is an AppError carrying code.
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// IsRetryable reports whether err may succeed on another attempt.
// Unknown errors are retryable; context cancellation is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable
}

// Classify maps any error onto the taxonomy. AppErrors pass through,
// context errors become Canceled and everything else is ProcessingFailed.
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return Canceled(err)
	}
	return ProcessingFailed(err.Error()).WithCause(err)
}
