package resilience

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// HealthState is the circuit state derived from a key's health record.
type HealthState int

const (
	// HealthClosed means no consecutive failures are recorded.
	HealthClosed HealthState = iota
	// HealthDegraded means failures are recorded but the key is still usable.
	HealthDegraded
	// HealthOpen means the circuit is open and the key must be skipped.
	HealthOpen
)

// String returns the state name.
func (s HealthState) String() string {
	switch s {
	case HealthClosed:
		return "closed"
	case HealthDegraded:
		return "degraded"
	case HealthOpen:
		return "open"
	default:
		return "unknown"
	}
}

// OpenPenalty is the penalty reported while a circuit is open.
const OpenPenalty = math.MaxInt32

// HealthPolicy holds the thresholds applied when recording and scoring.
type HealthPolicy struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// OpenDuration is how long an opened circuit stays open.
	OpenDuration time.Duration
	// PenaltyPerFailure is subtracted from a score for each consecutive failure.
	PenaltyPerFailure int
	// ReopenPenalty is subtracted once on the first scoring pass after an open circuit expires.
	ReopenPenalty int
}

// DefaultHealthPolicy returns sensible defaults.
func DefaultHealthPolicy() HealthPolicy {
	return HealthPolicy{
		FailureThreshold:  3,
		OpenDuration:      30 * time.Second,
		PenaltyPerFailure: 15,
		ReopenPenalty:     10,
	}
}

// HealthRecord is a snapshot of one key's health.
type HealthRecord struct {
	ConsecutiveFailures int
	LastFailureAt       time.Time
	// CircuitOpenUntil is zero when no circuit has been opened since the last success.
	CircuitOpenUntil time.Time
	HasRecovered     bool
}

type healthEntry struct {
	HealthRecord
	reopenApplied bool
}

// HealthRegistry tracks consecutive failures per key.
// It is safe for concurrent use; concurrent writers are last-write-wins.
type HealthRegistry[K comparable] struct {
	mu            sync.Mutex
	now           func() time.Time
	onStateChange func(key K, from, to HealthState)
	records       map[K]*healthEntry
}

// HealthOption configures a HealthRegistry.
type HealthOption[K comparable] func(*HealthRegistry[K])

// WithClock sets the time source.
func WithClock[K comparable](now func() time.Time) HealthOption[K] {
	return func(r *HealthRegistry[K]) {
		if now != nil {
			r.now = now
		}
	}
}

// WithStateChangeHook sets a callback invoked after a key changes state.
// The hook runs outside the registry lock.
func WithStateChangeHook[K comparable](fn func(key K, from, to HealthState)) HealthOption[K] {
	return func(r *HealthRegistry[K]) {
		r.onStateChange = fn
	}
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry[K comparable](opts ...HealthOption[K]) *HealthRegistry[K] {
	r := &HealthRegistry[K]{
		now:     time.Now,
		records: make(map[K]*healthEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordFailure increments the key's consecutive failures and opens the
// circuit once the policy threshold is reached.
func (r *HealthRegistry[K]) RecordFailure(key K, policy HealthPolicy) HealthState {
	threshold := max(policy.FailureThreshold, 1)

	r.mu.Lock()
	now := r.now()
	e := r.entry(key)
	from := e.state(now)

	e.ConsecutiveFailures++
	e.LastFailureAt = now
	if e.ConsecutiveFailures >= threshold {
		e.CircuitOpenUntil = now.Add(policy.OpenDuration)
		e.HasRecovered = false
		e.reopenApplied = false
	}
	to := e.state(now)
	r.mu.Unlock()

	r.notify(key, from, to)
	return to
}

// RecordSuccess resets the key to the closed state.
func (r *HealthRegistry[K]) RecordSuccess(key K) HealthState {
	r.mu.Lock()
	now := r.now()
	e := r.entry(key)
	from := e.state(now)

	e.ConsecutiveFailures = 0
	e.CircuitOpenUntil = time.Time{}
	e.HasRecovered = true
	e.reopenApplied = false
	r.mu.Unlock()

	r.notify(key, from, HealthClosed)
	return HealthClosed
}

// Penalty returns the score penalty for key. While the circuit is open the
// penalty is OpenPenalty and skipReason is set. The reopen penalty is added
// only on the first call after an open circuit expires.
func (r *HealthRegistry[K]) Penalty(key K, policy HealthPolicy) (penalty int, skipReason string) {
	threshold := max(policy.FailureThreshold, 1)

	r.mu.Lock()
	now := r.now()
	e, ok := r.records[key]
	if !ok {
		r.mu.Unlock()
		return 0, ""
	}
	if !e.CircuitOpenUntil.IsZero() && e.CircuitOpenUntil.After(now) {
		until := e.CircuitOpenUntil
		r.mu.Unlock()
		return OpenPenalty, fmt.Sprintf("circuit open until %s", until.Format(time.RFC3339))
	}

	penalty = e.ConsecutiveFailures * max(policy.PenaltyPerFailure, 0)
	reopened := false
	if !e.CircuitOpenUntil.IsZero() && e.ConsecutiveFailures >= threshold && !e.reopenApplied {
		penalty += max(policy.ReopenPenalty, 0)
		e.reopenApplied = true
		reopened = true
	}
	r.mu.Unlock()

	if reopened {
		r.notify(key, HealthOpen, HealthDegraded)
	}
	return penalty, ""
}

// State returns the key's current state. Unknown keys are closed.
func (r *HealthRegistry[K]) State(key K) HealthState {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.records[key]
	if !ok {
		return HealthClosed
	}
	return e.state(r.now())
}

// Record returns a snapshot of the key's record.
func (r *HealthRegistry[K]) Record(key K) (HealthRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.records[key]
	if !ok {
		return HealthRecord{}, false
	}
	return e.HealthRecord, true
}

func (r *HealthRegistry[K]) entry(key K) *healthEntry {
	e, ok := r.records[key]
	if !ok {
		e = &healthEntry{}
		r.records[key] = e
	}
	return e
}

func (r *HealthRegistry[K]) notify(key K, from, to HealthState) {
	if from != to && r.onStateChange != nil {
		r.onStateChange(key, from, to)
	}
}

func (e *healthEntry) state(now time.Time) HealthState {
	switch {
	case e.ConsecutiveFailures == 0:
		return HealthClosed
	case !e.CircuitOpenUntil.IsZero() && e.CircuitOpenUntil.After(now):
		return HealthOpen
	default:
		return HealthDegraded
	}
}
