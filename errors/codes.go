package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Caller/environment errors (not retryable)
const (
	// ErrCodePermissionDenied indicates the backend lacks a required permission (microphone, speech).
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	// ErrCodeConfigurationInvalid indicates the request or provider configuration is invalid.
	ErrCodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"
	// ErrCodeAudioFormatUnsupported indicates the audio cannot be consumed by the backend.
	ErrCodeAudioFormatUnsupported ErrorCode = "AUDIO_FORMAT_UNSUPPORTED"
)

// Provider errors (retryable)
const (
	// ErrCodeModelUnavailable indicates the backend model is not loaded or not downloadable.
	ErrCodeModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	// ErrCodeProcessingFailed indicates the backend failed while transcribing.
	ErrCodeProcessingFailed ErrorCode = "PROCESSING_FAILED"
	// ErrCodeLowQualityResult indicates the quality gate rejected an otherwise successful result.
	ErrCodeLowQualityResult ErrorCode = "LOW_QUALITY_RESULT"
	// ErrCodeInsufficientResources indicates memory, disk or compute pressure.
	ErrCodeInsufficientResources ErrorCode = "INSUFFICIENT_RESOURCES"
	// ErrCodeNetworkRequired indicates the backend needs connectivity that is missing.
	ErrCodeNetworkRequired ErrorCode = "NETWORK_REQUIRED"
	// ErrCodeFallbackRequired indicates the backend asks to be replaced by another one.
	ErrCodeFallbackRequired ErrorCode = "FALLBACK_REQUIRED"
)

// Terminal errors
const (
	// ErrCodeNoProviderAvailable indicates every ranked candidate was skipped or failed to prepare.
	ErrCodeNoProviderAvailable ErrorCode = "NO_PROVIDER_AVAILABLE"
	// ErrCodeAllProvidersFailed is surfaced when all engines failed without a recorded cause.
	ErrCodeAllProvidersFailed ErrorCode = "ALL_PROVIDERS_FAILED"
	// ErrCodeCanceled indicates the caller abandoned the operation.
	ErrCodeCanceled ErrorCode = "CANCELED"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeModelUnavailable:      true,
	ErrCodeProcessingFailed:      true,
	ErrCodeLowQualityResult:      true,
	ErrCodeInsufficientResources: true,
	ErrCodeNetworkRequired:       true,
	ErrCodeFallbackRequired:      true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
