package provider

import (
	"context"
	"time"
)

// AttemptRecorder receives one observation per Execute call.
// observability.TranscriptionMetrics implements it.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, provider, outcome string, d time.Duration)
}

// Outcomes reported by WithMetrics.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// WithMetrics records the outcome and duration of each Execute call.
func WithMetrics[I, O any](rec AttemptRecorder) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &metricsRR[I, O]{inner: inner, rec: rec}
	}
}

type metricsRR[I, O any] struct {
	inner RequestResponse[I, O]
	rec   AttemptRecorder
}

func (m *metricsRR[I, O]) Name() string                         { return m.inner.Name() }
func (m *metricsRR[I, O]) IsAvailable(ctx context.Context) bool { return m.inner.IsAvailable(ctx) }

func (m *metricsRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	start := time.Now()
	output, err := m.inner.Execute(ctx, input)

	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.rec.RecordAttempt(ctx, m.inner.Name(), outcome, time.Since(start))
	return output, err
}
