package provider

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/speechgate/observability"
)

// WithTracing wraps each Execute call in a span tagged with the provider name.
func WithTracing[I, O any](spanName string) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &tracingRR[I, O]{inner: inner, spanName: spanName}
	}
}

type tracingRR[I, O any] struct {
	inner    RequestResponse[I, O]
	spanName string
}

func (t *tracingRR[I, O]) Name() string                         { return t.inner.Name() }
func (t *tracingRR[I, O]) IsAvailable(ctx context.Context) bool { return t.inner.IsAvailable(ctx) }

func (t *tracingRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	ctx, span := observability.StartSpan(ctx, t.spanName,
		trace.WithAttributes(attribute.String(observability.AttrProvider, t.inner.Name())))
	defer span.End()

	output, err := t.inner.Execute(ctx, input)
	if err != nil {
		observability.SetSpanError(span, err)
	}
	return output, err
}
