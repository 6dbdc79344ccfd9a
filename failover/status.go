package failover

import (
	"fmt"
	"time"

	"github.com/kbukum/speechgate/resilience"
	"github.com/kbukum/speechgate/transcription"
)

// Status is a point-in-time view of the engine.
type Status struct {
	Primary transcription.Identity `json:"primary,omitempty"`
	// Fallback is the last identity used as fallback, or the configured one.
	Fallback  transcription.Identity `json:"fallback,omitempty"`
	IsHealthy bool                   `json:"is_healthy"`
	LastError error                  `json:"-"`
	Message   string                 `json:"message"`
	Providers []ProviderHealth       `json:"providers"`
}

// ProviderHealth summarizes one registered identity.
type ProviderHealth struct {
	Identity            transcription.Identity `json:"identity"`
	State               resilience.HealthState `json:"state"`
	ConsecutiveFailures int                    `json:"consecutive_failures"`
	CircuitOpenUntil    time.Time              `json:"circuit_open_until,omitempty"`
}

// Status returns the current status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	s := Status{
		Primary:   e.current,
		Fallback:  e.lastFallback,
		LastError: e.lastErr,
	}
	e.mu.Unlock()

	if s.Fallback == "" {
		s.Fallback = e.fallback
	}
	s.IsHealthy = s.LastError == nil && s.Primary != ""

	switch {
	case s.LastError != nil:
		s.Message = fmt.Sprintf("Error: %v", s.LastError)
	case s.Primary == "":
		s.Message = "No provider selected"
	default:
		s.Message = fmt.Sprintf("Using %s", s.Primary)
	}

	for _, id := range e.registry.Keys() {
		ph := ProviderHealth{Identity: id, State: e.health.State(id)}
		if rec, ok := e.health.Record(id); ok {
			ph.ConsecutiveFailures = rec.ConsecutiveFailures
			ph.CircuitOpenUntil = rec.CircuitOpenUntil
		}
		s.Providers = append(s.Providers, ph)
	}
	return s
}
