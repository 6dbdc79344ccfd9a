package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError_New_Retryable(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrCodePermissionDenied, false},
		{ErrCodeConfigurationInvalid, false},
		{ErrCodeAudioFormatUnsupported, false},
		{ErrCodeModelUnavailable, true},
		{ErrCodeProcessingFailed, true},
		{ErrCodeLowQualityResult, true},
		{ErrCodeInsufficientResources, true},
		{ErrCodeNetworkRequired, true},
		{ErrCodeFallbackRequired, true},
		{ErrCodeNoProviderAvailable, false},
		{ErrCodeCanceled, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			err := New(tc.code, "msg")
			if err.Retryable != tc.retryable {
				t.Errorf("expected retryable=%v for %s", tc.retryable, tc.code)
			}
		})
	}
}

func TestAppError_Error_WithCause(t *testing.T) {
	err := ProcessingFailed("decoder crashed").WithCause(fmt.Errorf("segfault"))
	msg := err.Error()
	if !strings.Contains(msg, "PROCESSING_FAILED") {
		t.Errorf("expected code in message, got %q", msg)
	}
	if !strings.Contains(msg, "segfault") {
		t.Errorf("expected cause in message, got %q", msg)
	}
	if !stderrors.Is(err, err.Cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}

func TestAppError_Is_MatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("attempt 3: %w", LowQualityResult())
	if !stderrors.Is(wrapped, LowQualityResult()) {
		t.Error("expected errors.Is to match on code")
	}
	if stderrors.Is(wrapped, NoProviderAvailable()) {
		t.Error("expected different codes not to match")
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := ModelUnavailable("base.en").WithDetails(map[string]any{"provider": "neural-on-device"})
	if err.Details["model"] != "base.en" {
		t.Errorf("expected model detail, got %v", err.Details["model"])
	}
	if err.Details["provider"] != "neural-on-device" {
		t.Errorf("expected provider detail, got %v", err.Details["provider"])
	}
}

func TestClassify(t *testing.T) {
	t.Run("app error passes through", func(t *testing.T) {
		orig := PermissionDenied("microphone")
		if got := Classify(orig); got != orig {
			t.Errorf("expected same instance, got %v", got)
		}
	})

	t.Run("context canceled is not retryable", func(t *testing.T) {
		got := Classify(fmt.Errorf("wrapped: %w", context.Canceled))
		if got.Code != ErrCodeCanceled {
			t.Errorf("expected CANCELED, got %s", got.Code)
		}
		if IsRetryable(context.DeadlineExceeded) {
			t.Error("deadline exceeded should not be retryable")
		}
	})

	t.Run("plain error becomes processing failed", func(t *testing.T) {
		cause := fmt.Errorf("boom")
		got := Classify(cause)
		if got.Code != ErrCodeProcessingFailed {
			t.Errorf("expected PROCESSING_FAILED, got %s", got.Code)
		}
		if !got.Retryable {
			t.Error("expected plain errors to be retryable")
		}
		if got.Cause != cause {
			t.Error("expected cause to be preserved")
		}
	})

	t.Run("nil", func(t *testing.T) {
		if Classify(nil) != nil {
			t.Error("expected nil")
		}
		if IsRetryable(nil) {
			t.Error("nil is not retryable")
		}
	})
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NoProviderAvailable())
	if !IsCode(err, ErrCodeNoProviderAvailable) {
		t.Error("expected IsCode to unwrap")
	}
	if IsCode(fmt.Errorf("plain"), ErrCodeNoProviderAvailable) {
		t.Error("expected plain errors not to match")
	}
}

func TestAsAppError(t *testing.T) {
	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Error("expected plain error not to convert")
	}
	appErr, ok := AsAppError(fmt.Errorf("wrap: %w", NetworkRequired()))
	if !ok || appErr.Code != ErrCodeNetworkRequired {
		t.Errorf("expected NETWORK_REQUIRED, got %v", appErr)
	}
	if !IsAppError(appErr) {
		t.Error("expected IsAppError to be true")
	}
}
