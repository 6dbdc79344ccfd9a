package failover

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/observability"
	"github.com/kbukum/speechgate/resilience"
	"github.com/kbukum/speechgate/transcription"
)

// ErrClosed is the cause of errors returned after Close.
var ErrClosed = stderrors.New("failover engine closed")

// Engine coordinates provider selection, retries, fallback and streaming
// sessions. Its mutable state is guarded by a single mutex that is never held
// across a provider call.
type Engine struct {
	registry    *transcription.Registry
	providerCfg map[transcription.Identity]map[string]any
	fallback    transcription.Identity
	health      *resilience.HealthRegistry[transcription.Identity]
	device      transcription.DeviceCapability
	deviceSet   bool
	log         *logger.Logger
	metrics     *observability.TranscriptionMetrics
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	events      notifier

	mu           sync.Mutex
	current      transcription.Identity
	lastFallback transcription.Identity
	lastErr      error
	closed       bool
	sessions     map[string]*Session
}

// Option configures an Engine.
type Option func(*Engine)

// WithFactory registers a backend factory. Registration order breaks score ties.
func WithFactory(id transcription.Identity, f transcription.Factory) Option {
	return func(e *Engine) {
		e.registry.RegisterFactory(id, f)
	}
}

// WithProviderConfig sets the config map passed to id's factory.
func WithProviderConfig(id transcription.Identity, cfg map[string]any) Option {
	return func(e *Engine) {
		e.providerCfg[id] = cfg
	}
}

// WithFallback sets the identity tried first when the primary path is exhausted.
func WithFallback(id transcription.Identity) Option {
	return func(e *Engine) {
		e.fallback = id
	}
}

// WithHealthRegistry shares a health registry between engines.
func WithHealthRegistry(r *resilience.HealthRegistry[transcription.Identity]) Option {
	return func(e *Engine) {
		e.health = r
	}
}

// WithDevice overrides host detection.
func WithDevice(d transcription.DeviceCapability) Option {
	return func(e *Engine) {
		e.device = d
		e.deviceSet = true
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.TranscriptionMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock sets the time source used for events and the default health registry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithSleep replaces the backoff wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.sleep = fn
	}
}

// NewEngine creates an Engine. Without WithDevice the host is inspected once.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		registry:    transcription.NewRegistry(),
		providerCfg: make(map[transcription.Identity]map[string]any),
		log:         logger.Get("failover"),
		now:         time.Now,
		sleep:       resilience.SleepContext,
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.health == nil {
		e.health = resilience.NewHealthRegistry(
			resilience.WithClock[transcription.Identity](e.now),
			resilience.WithStateChangeHook(e.onHealthChange),
		)
	}
	if !e.deviceSet {
		d, err := transcription.DetectDevice(context.Background())
		if err != nil {
			e.log.Warn("device detection failed, scoring without memory bonus", logger.ErrorFields("detect_device", err))
		}
		e.device = d
	}
	return e
}

// Health returns the registry tracking provider failures.
func (e *Engine) Health() *resilience.HealthRegistry[transcription.Identity] {
	return e.health
}

// OnStatusChange subscribes fn to status events and returns an unsubscribe func.
// Handlers run on the goroutine that caused the event.
func (e *Engine) OnStatusChange(fn func(Event)) func() {
	return e.events.subscribe(fn)
}

// Close cancels open sessions and releases every constructed backend.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	sessions := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.Unlock()

	for _, s := range sessions {
		s.Cancel()
	}

	return e.registry.Close(ctx)
}

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.Internal(ErrClosed)
	}
	return nil
}

func (e *Engine) onHealthChange(id transcription.Identity, from, to resilience.HealthState) {
	fields := logger.Fields(logger.FieldProvider, string(id), "from", from.String(), logger.FieldState, to.String())
	if to == resilience.HealthOpen {
		e.log.Warn("provider circuit opened", fields)
	} else {
		e.log.Debug("provider health changed", fields)
	}
	e.metrics.RecordCircuitTransition(context.Background(), string(id), from.String(), to.String())
}

// useProvider marks id as active and reports a change to subscribers.
func (e *Engine) useProvider(id transcription.Identity, sessionID string) {
	e.mu.Lock()
	prev := e.current
	e.current = id
	e.mu.Unlock()

	if prev == id {
		return
	}
	e.log.Info("provider changed", logger.Fields(logger.FieldProvider, string(id), "previous", string(prev)))
	e.events.emit(Event{Type: EventProviderChanged, Provider: id, Previous: prev, SessionID: sessionID, At: e.now()})
}

// recordFailure feeds a provider failure into health and status.
func (e *Engine) recordFailure(ctx context.Context, id transcription.Identity, err error, cfg Config) {
	e.health.RecordFailure(id, cfg.HealthPolicy())
	e.metrics.RecordFailure(ctx, string(id), string(errors.Classify(err).Code))

	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}

// recordSuccess closes id's circuit, clears the stored error and reports recovery.
func (e *Engine) recordSuccess(id transcription.Identity, sessionID string) {
	e.health.RecordSuccess(id)

	e.mu.Lock()
	hadErr := e.lastErr != nil
	e.lastErr = nil
	e.mu.Unlock()

	if hadErr {
		e.log.Info("provider recovered", logger.Fields(logger.FieldProvider, string(id)))
		e.events.emit(Event{Type: EventProviderRecovered, Provider: id, SessionID: sessionID, At: e.now()})
	}
}

func (e *Engine) allFailed(err error, sessionID string) {
	e.mu.Lock()
	e.lastErr = err
	prev := e.current
	e.mu.Unlock()

	e.log.Error("all providers failed", logger.ErrorFields("transcribe", err))
	e.events.emit(Event{Type: EventAllProvidersFailed, Previous: prev, SessionID: sessionID, Err: err, At: e.now()})
}
