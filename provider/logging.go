package provider

import (
	"context"
	"time"

	"github.com/kbukum/speechgate/logger"
)

// WithLogging logs each Execute call: debug on success, warn on failure.
func WithLogging[I, O any](log *logger.Logger, op string) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &loggingRR[I, O]{inner: inner, log: log, op: op}
	}
}

type loggingRR[I, O any] struct {
	inner RequestResponse[I, O]
	log   *logger.Logger
	op    string
}

func (l *loggingRR[I, O]) Name() string                         { return l.inner.Name() }
func (l *loggingRR[I, O]) IsAvailable(ctx context.Context) bool { return l.inner.IsAvailable(ctx) }

func (l *loggingRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	start := time.Now()
	output, err := l.inner.Execute(ctx, input)

	fields := logger.DurationFields(l.op, time.Since(start))
	fields[logger.FieldProvider] = l.inner.Name()
	if err != nil {
		l.log.Warn("provider call failed", logger.MergeWithError(fields, err))
	} else {
		l.log.Debug("provider call ok", fields)
	}
	return output, err
}
