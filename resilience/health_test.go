package resilience

import (
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testPolicy() HealthPolicy {
	return HealthPolicy{
		FailureThreshold:  3,
		OpenDuration:      30 * time.Second,
		PenaltyPerFailure: 15,
		ReopenPenalty:     10,
	}
}

func TestHealthState_String(t *testing.T) {
	tests := []struct {
		state    HealthState
		expected string
	}{
		{HealthClosed, "closed"},
		{HealthDegraded, "degraded"},
		{HealthOpen, "open"},
		{HealthState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.expected)
		}
	}
}

func TestHealthRegistry_UnknownKey(t *testing.T) {
	reg := NewHealthRegistry[string]()
	penalty, reason := reg.Penalty("missing", testPolicy())
	if penalty != 0 || reason != "" {
		t.Errorf("expected (0, \"\"), got (%d, %q)", penalty, reason)
	}
	if reg.State("missing") != HealthClosed {
		t.Errorf("expected closed, got %s", reg.State("missing"))
	}
	if _, ok := reg.Record("missing"); ok {
		t.Error("records must be created lazily")
	}
}

func TestHealthRegistry_DegradedPenalty(t *testing.T) {
	clock := newFakeClock()
	reg := NewHealthRegistry(WithClock[string](clock.Now))
	policy := testPolicy()

	reg.RecordFailure("a", policy)
	reg.RecordFailure("a", policy)

	if reg.State("a") != HealthDegraded {
		t.Fatalf("expected degraded, got %s", reg.State("a"))
	}
	penalty, reason := reg.Penalty("a", policy)
	if penalty != 30 || reason != "" {
		t.Errorf("expected (30, \"\"), got (%d, %q)", penalty, reason)
	}

	rec, _ := reg.Record("a")
	if rec.ConsecutiveFailures != 2 || !rec.LastFailureAt.Equal(clock.Now()) {
		t.Errorf("unexpected record %+v", rec)
	}
	if !rec.CircuitOpenUntil.IsZero() {
		t.Error("circuit must stay closed below the threshold")
	}
}

func TestHealthRegistry_OpensAtThreshold(t *testing.T) {
	clock := newFakeClock()
	reg := NewHealthRegistry(WithClock[string](clock.Now))
	policy := testPolicy()

	for i := 0; i < policy.FailureThreshold; i++ {
		if _, reason := reg.Penalty("a", policy); reason != "" {
			t.Fatalf("circuit opened early after %d failures", i)
		}
		reg.RecordFailure("a", policy)
	}

	if reg.State("a") != HealthOpen {
		t.Fatalf("expected open, got %s", reg.State("a"))
	}
	penalty, reason := reg.Penalty("a", policy)
	if penalty != OpenPenalty {
		t.Errorf("expected OpenPenalty, got %d", penalty)
	}
	if !strings.HasPrefix(reason, "circuit open until") {
		t.Errorf("unexpected skip reason %q", reason)
	}

	clock.Advance(policy.OpenDuration - time.Second)
	if _, reason := reg.Penalty("a", policy); reason == "" {
		t.Error("circuit must stay open until the duration elapses")
	}

	rec, _ := reg.Record("a")
	if rec.HasRecovered {
		t.Error("opening the circuit must clear HasRecovered")
	}
}

func TestHealthRegistry_ReopenPenaltyAppliedOnce(t *testing.T) {
	clock := newFakeClock()
	reg := NewHealthRegistry(WithClock[string](clock.Now))
	policy := testPolicy()

	for i := 0; i < 3; i++ {
		reg.RecordFailure("a", policy)
	}
	clock.Advance(policy.OpenDuration)

	if reg.State("a") != HealthDegraded {
		t.Fatalf("expected degraded after expiry, got %s", reg.State("a"))
	}

	first, reason := reg.Penalty("a", policy)
	if reason != "" {
		t.Fatalf("expected no skip reason after expiry, got %q", reason)
	}
	if first != 3*15+10 {
		t.Errorf("first pass after expiry: expected 55, got %d", first)
	}

	second, _ := reg.Penalty("a", policy)
	if second != 3*15 {
		t.Errorf("second pass after expiry: expected 45, got %d", second)
	}

	// A further failure re-opens and re-arms the one-time penalty.
	reg.RecordFailure("a", policy)
	if reg.State("a") != HealthOpen {
		t.Fatalf("expected open after failure past threshold, got %s", reg.State("a"))
	}
	clock.Advance(policy.OpenDuration)
	third, _ := reg.Penalty("a", policy)
	if third != 4*15+10 {
		t.Errorf("after re-open: expected 70, got %d", third)
	}
}

func TestHealthRegistry_SuccessResets(t *testing.T) {
	clock := newFakeClock()
	reg := NewHealthRegistry(WithClock[string](clock.Now))
	policy := testPolicy()

	for i := 0; i < 5; i++ {
		reg.RecordFailure("a", policy)
	}
	reg.RecordSuccess("a")

	rec, ok := reg.Record("a")
	if !ok {
		t.Fatal("expected record")
	}
	if rec.ConsecutiveFailures != 0 || !rec.CircuitOpenUntil.IsZero() || !rec.HasRecovered {
		t.Errorf("unexpected record after success %+v", rec)
	}
	if penalty, reason := reg.Penalty("a", policy); penalty != 0 || reason != "" {
		t.Errorf("expected (0, \"\"), got (%d, %q)", penalty, reason)
	}
	if reg.State("a") != HealthClosed {
		t.Errorf("expected closed, got %s", reg.State("a"))
	}
}

func TestHealthRegistry_PenaltyMonotonic(t *testing.T) {
	reg := NewHealthRegistry[string]()
	policy := testPolicy()
	policy.FailureThreshold = 100

	prev := 0
	for i := 0; i < 10; i++ {
		reg.RecordFailure("a", policy)
		penalty, _ := reg.Penalty("a", policy)
		if penalty < prev {
			t.Fatalf("penalty decreased from %d to %d", prev, penalty)
		}
		prev = penalty
	}
}

func TestHealthRegistry_ThresholdFloor(t *testing.T) {
	reg := NewHealthRegistry[string]()
	policy := testPolicy()
	policy.FailureThreshold = 0

	if state := reg.RecordFailure("a", policy); state != HealthOpen {
		t.Errorf("threshold below one must behave as one, got %s", state)
	}
}

func TestHealthRegistry_StateChangeHook(t *testing.T) {
	clock := newFakeClock()
	var transitions []string
	reg := NewHealthRegistry(
		WithClock[string](clock.Now),
		WithStateChangeHook(func(key string, from, to HealthState) {
			transitions = append(transitions, key+":"+from.String()+"->"+to.String())
		}),
	)
	policy := testPolicy()

	reg.RecordFailure("a", policy)
	reg.RecordFailure("a", policy)
	reg.RecordFailure("a", policy)
	clock.Advance(policy.OpenDuration)
	reg.Penalty("a", policy)
	reg.RecordSuccess("a")
	reg.RecordSuccess("a")

	expected := []string{
		"a:closed->degraded",
		"a:degraded->open",
		"a:open->degraded",
		"a:degraded->closed",
	}
	if len(transitions) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, transitions)
	}
	for i := range expected {
		if transitions[i] != expected[i] {
			t.Errorf("transition %d: expected %s, got %s", i, expected[i], transitions[i])
		}
	}
}

func TestHealthRegistry_KeysIsolated(t *testing.T) {
	reg := NewHealthRegistry[int]()
	policy := testPolicy()

	reg.RecordFailure(1, policy)
	if reg.State(2) != HealthClosed {
		t.Error("failures must not leak across keys")
	}
}

func TestHealthRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewHealthRegistry[string]()
	policy := testPolicy()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				reg.RecordFailure("a", policy)
			} else {
				reg.RecordSuccess("a")
			}
			reg.Penalty("a", policy)
		}(i)
	}
	wg.Wait()

	rec, _ := reg.Record("a")
	if rec.ConsecutiveFailures == 0 && !rec.CircuitOpenUntil.IsZero() {
		t.Error("closed record must not carry an open circuit")
	}
}
