// Package observability provides OpenTelemetry tracing and metrics for
// speechgate.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("speechgate"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanTranscribe)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("speechgate"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewTranscriptionMetrics(observability.Meter("speechgate"))
//	metrics.RecordAttempt(ctx, "neural-on-device", "ok", elapsed)
//
// A nil *TranscriptionMetrics is valid and records nothing.
package observability
