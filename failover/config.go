package failover

import (
	"time"

	"github.com/kbukum/speechgate/resilience"
	"github.com/kbukum/speechgate/transcription"
)

// Policy biases and filters candidates by class.
type Policy string

const (
	PolicyAutomatic       Policy = "automatic"
	PolicyPreferPrimary   Policy = "prefer_primary"
	PolicyPreferSecondary Policy = "prefer_secondary"
	PolicyPrimaryOnly     Policy = "primary_only"
	PolicySecondaryOnly   Policy = "secondary_only"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyAutomatic, PolicyPreferPrimary, PolicyPreferSecondary, PolicyPrimaryOnly, PolicySecondaryOnly:
		return true
	}
	return false
}

// Allows reports whether candidates of class c take part under p.
func (p Policy) Allows(c transcription.Class) bool {
	switch p {
	case PolicyPrimaryOnly:
		return c == transcription.ClassPrimary
	case PolicySecondaryOnly:
		return c == transcription.ClassSecondary
	default:
		return true
	}
}

// Bounds applied by Normalize.
const (
	minBackoffBase  = 50 * time.Millisecond
	minCircuitOpen  = 5 * time.Second
	maxReplayChunks = 256
	defaultMaxRetry = 3
	defaultBackoff  = 200 * time.Millisecond
)

// Config is the resilience policy bundle for one call or session.
type Config struct {
	Policy         Policy `json:"policy" yaml:"policy" mapstructure:"policy"`
	EnableFallback bool   `json:"enable_fallback" yaml:"enable_fallback" mapstructure:"enable_fallback"`

	// MaxRetries is the number of attempts on the primary path.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	// BackoffBase is multiplied by the attempt number between retries.
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base" mapstructure:"backoff_base"`

	MinConfidence        float64 `json:"min_confidence" yaml:"min_confidence" mapstructure:"min_confidence"`
	MinTextLength        int     `json:"min_text_length" yaml:"min_text_length" mapstructure:"min_text_length"`
	MinUniqueChars       int     `json:"min_unique_chars" yaml:"min_unique_chars" mapstructure:"min_unique_chars"`
	MaxDominantCharRatio float64 `json:"max_dominant_char_ratio" yaml:"max_dominant_char_ratio" mapstructure:"max_dominant_char_ratio"`

	FailureThreshold  int           `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CircuitOpen       time.Duration `json:"circuit_open" yaml:"circuit_open" mapstructure:"circuit_open"`
	PenaltyPerFailure int           `json:"penalty_per_failure" yaml:"penalty_per_failure" mapstructure:"penalty_per_failure"`
	ReopenPenalty     int           `json:"reopen_penalty" yaml:"reopen_penalty" mapstructure:"reopen_penalty"`

	MidStreamFallback bool `json:"mid_stream_fallback" yaml:"mid_stream_fallback" mapstructure:"mid_stream_fallback"`
	// ReplayChunks is how many already-delivered audio chunks a replacement
	// stream receives before the live tail. Zero replays nothing.
	ReplayChunks int `json:"replay_chunks" yaml:"replay_chunks" mapstructure:"replay_chunks"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	health := resilience.DefaultHealthPolicy()
	return Config{
		Policy:               PolicyAutomatic,
		EnableFallback:       true,
		MaxRetries:           defaultMaxRetry,
		BackoffBase:          defaultBackoff,
		MinConfidence:        0.3,
		MinTextLength:        1,
		MinUniqueChars:       3,
		MaxDominantCharRatio: 0.85,
		FailureThreshold:     health.FailureThreshold,
		CircuitOpen:          health.OpenDuration,
		PenaltyPerFailure:    health.PenaltyPerFailure,
		ReopenPenalty:        health.ReopenPenalty,
		MidStreamFallback:    true,
	}
}

// Normalize returns a copy with every field clamped into range.
// Out-of-range input is corrected, never rejected.
func (c Config) Normalize() Config {
	if !c.Policy.Valid() {
		c.Policy = PolicyAutomatic
	}
	c.MaxRetries = max(c.MaxRetries, 1)
	c.BackoffBase = max(c.BackoffBase, minBackoffBase)
	c.MinConfidence = clampUnit(c.MinConfidence)
	c.MinTextLength = max(c.MinTextLength, 1)
	c.MinUniqueChars = max(c.MinUniqueChars, 1)
	c.MaxDominantCharRatio = clampUnit(c.MaxDominantCharRatio)
	c.FailureThreshold = max(c.FailureThreshold, 1)
	c.CircuitOpen = max(c.CircuitOpen, minCircuitOpen)
	c.PenaltyPerFailure = max(c.PenaltyPerFailure, 0)
	c.ReopenPenalty = max(c.ReopenPenalty, 0)
	c.ReplayChunks = min(max(c.ReplayChunks, 0), maxReplayChunks)
	return c
}

// HealthPolicy returns the health thresholds carried by c.
func (c Config) HealthPolicy() resilience.HealthPolicy {
	return resilience.HealthPolicy{
		FailureThreshold:  c.FailureThreshold,
		OpenDuration:      c.CircuitOpen,
		PenaltyPerFailure: c.PenaltyPerFailure,
		ReopenPenalty:     c.ReopenPenalty,
	}
}

// clampUnit clamps v to [0, 1]; NaN becomes 0.
func clampUnit(v float64) float64 {
	if !(v >= 0) {
		return 0
	}
	return min(v, 1)
}
