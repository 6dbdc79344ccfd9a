package failover

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/observability"
	"github.com/kbukum/speechgate/provider"
	"github.com/kbukum/speechgate/resilience"
	"github.com/kbukum/speechgate/transcription"
	"github.com/kbukum/speechgate/validation"
)

// Transcribe runs audio through the best available backend. Thrown retryable
// errors are retried after attempt × BackoffBase, quality rejections are
// retried immediately, and once the attempts are spent a fallback backend that
// was not tried yet gets exactly one call.
func (e *Engine) Transcribe(ctx context.Context, audio transcription.AudioBuffer, req transcription.Request, cfg Config) (*transcription.Result, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	if err := validation.Validate(audio); err != nil {
		return nil, err
	}
	cfg = cfg.Normalize()

	ctx, span := observability.StartSpan(ctx, observability.SpanTranscribe)
	defer span.End()

	tried := make(map[transcription.Identity]bool)
	linear := resilience.LinearBackoff(cfg.BackoffBase)

	res, err := resilience.Retry(ctx, resilience.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		Backoff: func(attempt int, err error) time.Duration {
			if errors.IsCode(err, errors.ErrCodeLowQualityResult) {
				return 0
			}
			return linear(attempt, err)
		},
		RetryIf: errors.IsRetryable,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			e.log.Debug("retrying transcription", logger.MergeWithError(logger.Fields(
				logger.FieldAttempt, attempt,
				"backoff_ms", backoff.Milliseconds(),
			), err))
		},
		Sleep: e.sleep,
	}, func(attempt int) (*transcription.Result, error) {
		return e.attempt(ctx, attempt, audio, req, cfg, tried)
	})
	if err == nil {
		return res, nil
	}

	switch {
	case ctx.Err() != nil:
		err = errors.Canceled(ctx.Err())
		observability.SetSpanError(span, err)
		return nil, err
	case errors.IsCode(err, errors.ErrCodeNoProviderAvailable), errors.IsCode(err, errors.ErrCodeCanceled):
		observability.SetSpanError(span, err)
		return nil, err
	}

	if !cfg.EnableFallback {
		e.allFailed(err, "")
		observability.SetSpanError(span, err)
		return nil, err
	}

	res, err = e.runFallback(ctx, audio, req, cfg, tried, err)
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, err
	}
	return res, nil
}

// attempt performs one acquire, call and quality check on the primary path.
func (e *Engine) attempt(ctx context.Context, attempt int, audio transcription.AudioBuffer, req transcription.Request, cfg Config, tried map[transcription.Identity]bool) (*transcription.Result, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanAttempt,
		trace.WithAttributes(attribute.Int(observability.AttrAttempt, attempt)))
	defer span.End()

	t, err := e.acquire(ctx, cfg, nil)
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, err
	}
	id := t.Identity()
	tried[id] = true
	span.SetAttributes(attribute.String(observability.AttrProvider, string(id)))
	e.useProvider(id, "")

	e.log.Debug("transcription attempt", logger.Fields(logger.FieldAttempt, attempt, logger.FieldProvider, string(id)))
	res, err := e.call(ctx, t, audio, req, cfg)
	if err != nil {
		observability.SetSpanError(span, err)
		span.SetAttributes(attribute.String(observability.AttrErrorCode, string(errors.Classify(err).Code)))
		return nil, err
	}
	return res, nil
}

// transcribeInput is the request half of one batch provider call.
type transcribeInput struct {
	audio transcription.AudioBuffer
	req   transcription.Request
}

// instrument wraps t's batch operation with tracing, metrics and logging.
func (e *Engine) instrument(t transcription.Transcriber) provider.RequestResponse[transcribeInput, *transcription.Result] {
	return provider.Chain(
		provider.WithTracing[transcribeInput, *transcription.Result](observability.SpanProviderCall),
		provider.WithMetrics[transcribeInput, *transcription.Result](e.metrics),
		provider.WithLogging[transcribeInput, *transcription.Result](e.log, "transcribe"),
	)(provider.Bind(t, func(ctx context.Context, t transcription.Transcriber, in transcribeInput) (*transcription.Result, error) {
		return t.Transcribe(ctx, in.audio, in.req)
	}))
}

// call invokes t once and applies the quality gate, recording the outcome in
// health. Caller cancellation is returned as Canceled and not held against t.
func (e *Engine) call(ctx context.Context, t transcription.Transcriber, audio transcription.AudioBuffer, req transcription.Request, cfg Config) (*transcription.Result, error) {
	id := t.Identity()
	start := e.now()

	res, err := e.instrument(t).Execute(ctx, transcribeInput{audio: audio, req: req})
	elapsed := e.now().Sub(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Canceled(ctx.Err())
		}
		appErr := errors.Classify(err)
		e.recordFailure(ctx, id, appErr, cfg)
		return nil, appErr
	}
	if res == nil {
		err := errors.ProcessingFailed("provider returned no result")
		e.recordFailure(ctx, id, err, cfg)
		return nil, err
	}
	if res.Provider == "" {
		res.Provider = id
	}
	if res.ProcessingTime == 0 {
		res.ProcessingTime = elapsed
	}

	if reason := qualityCheck(*res, cfg); reason != "" {
		err := errors.LowQualityResult().
			WithDetail("reason", reason).
			WithDetail("provider", string(id))
		e.metrics.RecordQualityRejection(ctx, string(id), reason)
		e.log.Debug("result rejected by quality gate", logger.Fields(
			logger.FieldProvider, string(id),
			"reason", reason,
			"confidence", res.Confidence,
		))
		e.recordFailure(ctx, id, err, cfg)
		return nil, err
	}

	e.recordSuccess(id, "")
	return res, nil
}

// runFallback makes the single fallback call after the primary path failed
// with primaryErr. Identities already tried are not eligible.
func (e *Engine) runFallback(ctx context.Context, audio transcription.AudioBuffer, req transcription.Request, cfg Config, tried map[transcription.Identity]bool, primaryErr error) (*transcription.Result, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanFallback)
	defer span.End()

	t, err := e.acquireReplacement(ctx, cfg, tried)
	if err != nil {
		e.log.Warn("no fallback provider available", logger.ErrorFields("fallback", err))
		e.allFailed(primaryErr, "")
		return nil, finalError(primaryErr)
	}
	id := t.Identity()
	span.SetAttributes(attribute.String(observability.AttrProvider, string(id)))

	e.mu.Lock()
	prev := e.current
	e.lastFallback = id
	e.mu.Unlock()

	e.log.Warn("fallback triggered", logger.Fields(logger.FieldProvider, string(prev), logger.FieldFallback, string(id)))
	e.metrics.RecordFallback(ctx, string(prev), string(id))
	e.events.emit(Event{Type: EventFallbackTriggered, Provider: id, Previous: prev, Err: primaryErr, At: e.now()})

	res, err := e.call(ctx, t, audio, req, cfg)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeCanceled) {
			return nil, err
		}
		observability.SetSpanError(span, err)
		e.allFailed(err, "")
		return nil, finalError(err)
	}
	return res, nil
}

func finalError(err error) error {
	if err == nil {
		return errors.AllProvidersFailed()
	}
	return err
}
