// Package errors provides the unified error type for speechgate.
// It implements structured errors with machine-readable codes and
// retryable detection, covering the transcription failure taxonomy.
package errors
