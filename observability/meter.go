package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/speechgate/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `yaml:"service_version" mapstructure:"service_version"`
	// Environment is the deployment environment (dev, staging, prod).
	Environment string `yaml:"environment" mapstructure:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure allows insecure connections (for development).
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// TranscriptionMetrics holds the instruments recorded by the failover engine.
type TranscriptionMetrics struct {
	attempts           metric.Int64Counter
	attemptDuration    metric.Float64Histogram
	failures           metric.Int64Counter
	qualityRejections  metric.Int64Counter
	fallbacks          metric.Int64Counter
	circuitTransitions metric.Int64Counter
	providerSwaps      metric.Int64Counter
	activeSessions     metric.Int64UpDownCounter
}

// NewTranscriptionMetrics creates metric instruments on the given meter.
func NewTranscriptionMetrics(meter metric.Meter) (*TranscriptionMetrics, error) {
	m := &TranscriptionMetrics{}
	var err error

	if m.attempts, err = meter.Int64Counter("speechgate.attempts",
		metric.WithDescription("Provider transcription attempts by outcome"),
	); err != nil {
		return nil, fmt.Errorf("creating speechgate.attempts counter: %w", err)
	}
	if m.attemptDuration, err = meter.Float64Histogram("speechgate.attempt.duration",
		metric.WithDescription("Duration of provider transcription attempts in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating speechgate.attempt.duration histogram: %w", err)
	}
	if m.failures, err = meter.Int64Counter("speechgate.failures",
		metric.WithDescription("Provider failures by error code"),
	); err != nil {
		return nil, fmt.Errorf("creating speechgate.failures counter: %w", err)
	}
	if m.qualityRejections, err = meter.Int64Counter("speechgate.quality_rejections",
		metric.WithDescription("Results rejected by the quality gate"),
	); err != nil {
		return nil, fmt.Errorf("creating speechgate.quality_rejections counter: %w", err)
	}
	if m.fallbacks, err = meter.Int64Counter("speechgate.fallbacks",
		metric.WithDescription("Fallback provider invocations"),
	); err != nil {
		return nil, fmt.Errorf("creating speechgate.fallbacks counter: %w", err)
	}
	if m.circuitTransitions, err = meter.Int64Counter("speechgate.circuit_transitions",
		metric.WithDescription("Provider health state transitions"),
	); err != nil {
		return nil, fmt.Errorf("creating speechgate.circuit_transitions counter: %w", err)
	}
	if m.providerSwaps, err = meter.Int64Counter("speechgate.provider_swaps",
		metric.WithDescription("Mid-stream provider replacements"),
	); err != nil {
		return nil, fmt.Errorf("creating speechgate.provider_swaps counter: %w", err)
	}
	if m.activeSessions, err = meter.Int64UpDownCounter("speechgate.sessions.active",
		metric.WithDescription("Currently open streaming sessions"),
	); err != nil {
		return nil, fmt.Errorf("creating speechgate.sessions.active counter: %w", err)
	}
	return m, nil
}

// RecordAttempt records one provider call and its duration.
func (m *TranscriptionMetrics) RecordAttempt(ctx context.Context, provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
	m.attemptDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
	))
}

// RecordFailure records a provider failure by error code.
func (m *TranscriptionMetrics) RecordFailure(ctx context.Context, provider, code string) {
	if m == nil {
		return
	}
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("code", code),
	))
}

// RecordQualityRejection records a quality gate rejection in batch or stream mode.
func (m *TranscriptionMetrics) RecordQualityRejection(ctx context.Context, provider, mode string) {
	if m == nil {
		return
	}
	m.qualityRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("mode", mode),
	))
}

// RecordFallback records a fallback invocation.
func (m *TranscriptionMetrics) RecordFallback(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordCircuitTransition records a health state change for a provider.
func (m *TranscriptionMetrics) RecordCircuitTransition(ctx context.Context, provider, from, to string) {
	if m == nil {
		return
	}
	m.circuitTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordProviderSwap records a mid-stream provider replacement.
func (m *TranscriptionMetrics) RecordProviderSwap(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.providerSwaps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// SessionStarted increments the active session gauge.
func (m *TranscriptionMetrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// SessionEnded decrements the active session gauge.
func (m *TranscriptionMetrics) SessionEnded(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}
