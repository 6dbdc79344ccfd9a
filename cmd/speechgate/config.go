package main

import (
	"fmt"
	"maps"

	"github.com/kbukum/speechgate/config"
	"github.com/kbukum/speechgate/failover"
	"github.com/kbukum/speechgate/observability"
	"github.com/kbukum/speechgate/transcription"
	"github.com/kbukum/speechgate/transcription/whisper"
)

// AppConfig is the speechgate CLI configuration.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Resilience failover.Config `yaml:"resilience" mapstructure:"resilience"`
	// Fallback names the identity tried first once the primary path is exhausted.
	Fallback string `yaml:"fallback" mapstructure:"fallback"`
	// Providers maps an identity to the settings of the whisper sidecar serving it.
	Providers map[string]map[string]any `yaml:"providers" mapstructure:"providers"`

	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// TracingConfig enables OTLP trace export.
type TracingConfig struct {
	Enabled                    bool `yaml:"enabled" mapstructure:"enabled"`
	observability.TracerConfig `yaml:",inline" mapstructure:",squash"`
}

// MetricsConfig enables OTLP metric export.
type MetricsConfig struct {
	Enabled                   bool `yaml:"enabled" mapstructure:"enabled"`
	observability.MeterConfig `yaml:",inline" mapstructure:",squash"`
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		ServiceConfig: config.ServiceConfig{Name: serviceName},
		Resilience:    failover.DefaultConfig(),
		Tracing:       TracingConfig{TracerConfig: observability.DefaultTracerConfig(serviceName)},
		Metrics:       MetricsConfig{MeterConfig: observability.DefaultMeterConfig(serviceName)},
	}
}

// ApplyDefaults fills zero values.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if len(c.Providers) == 0 {
		c.Providers = map[string]map[string]any{
			string(transcription.CloudAlternative): {},
		}
	}
}

// Validate checks identities and the base service config.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if c.Fallback != "" {
		if _, err := transcription.ParseIdentity(c.Fallback); err != nil {
			return fmt.Errorf("config.fallback: %w", err)
		}
	}
	for name := range c.Providers {
		if _, err := transcription.ParseIdentity(name); err != nil {
			return fmt.Errorf("config.providers: %w", err)
		}
	}
	return nil
}

// engineOptions registers one whisper sidecar per configured identity, in
// declaration order so ties in score resolve the same way on every run.
func (c *AppConfig) engineOptions() []failover.Option {
	var opts []failover.Option
	for _, id := range transcription.Identities() {
		settings, ok := c.Providers[string(id)]
		if !ok {
			continue
		}
		settings = maps.Clone(settings)
		if settings == nil {
			settings = make(map[string]any)
		}
		settings["identity"] = string(id)
		opts = append(opts,
			failover.WithFactory(id, whisper.Factory()),
			failover.WithProviderConfig(id, settings),
		)
	}
	if c.Fallback != "" {
		opts = append(opts, failover.WithFallback(transcription.Identity(c.Fallback)))
	}
	return opts
}
