package failover

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/transcription"
)

// fakeTranscriber is a scripted backend.
type fakeTranscriber struct {
	id transcription.Identity

	mu          sync.Mutex
	calls       int
	prepares    int
	cleanups    int
	prepareErr  error
	unavailable bool
	respond     func(call int) (*transcription.Result, error)
	streamErr   error
	streamText  func(chunk int) string
	streamLimit int
	received    []transcription.AudioBuffer
	blockUntil  bool
}

func newFake(id transcription.Identity, respond func(call int) (*transcription.Result, error)) *fakeTranscriber {
	return &fakeTranscriber{id: id, respond: respond}
}

func (f *fakeTranscriber) Name() string                     { return string(f.id) }
func (f *fakeTranscriber) Identity() transcription.Identity { return f.id }

func (f *fakeTranscriber) IsAvailable(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable
}

func (f *fakeTranscriber) Prepare(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepares++
	return f.prepareErr
}

func (f *fakeTranscriber) Cleanup(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
	return nil
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio transcription.AudioBuffer, req transcription.Request) (*transcription.Result, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	block := f.blockUntil
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.respond(call)
}

// TranscribeStream emits one result per audio chunk and stops early after
// streamLimit chunks when it is set.
func (f *fakeTranscriber) TranscribeStream(ctx context.Context, audio <-chan transcription.AudioBuffer, req transcription.Request) (<-chan transcription.Result, error) {
	f.mu.Lock()
	err := f.streamErr
	limit := f.streamLimit
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make(chan transcription.Result)
	go func() {
		defer close(out)
		chunk := 0
		for {
			select {
			case <-ctx.Done():
				return
			case buf, ok := <-audio:
				if !ok {
					return
				}
				f.mu.Lock()
				f.received = append(f.received, buf)
				f.mu.Unlock()
				chunk++
				res := transcription.Result{Text: f.streamText(chunk), Confidence: 0.9}
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
				if limit > 0 && chunk >= limit {
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTranscriber) receivedChunks() []transcription.AudioBuffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transcription.AudioBuffer, len(f.received))
	copy(out, f.received)
	return out
}

func (f *fakeTranscriber) factory() transcription.Factory {
	return func(map[string]any) (transcription.Transcriber, error) { return f, nil }
}

func always(text string, confidence float64) func(int) (*transcription.Result, error) {
	return func(int) (*transcription.Result, error) {
		return &transcription.Result{Text: text, Confidence: confidence}, nil
	}
}

func failing(err error) func(int) (*transcription.Result, error) {
	return func(int) (*transcription.Result, error) { return nil, err }
}

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

// sleepRecorder records backoff waits without sleeping.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func (s *sleepRecorder) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// eventRecorder collects status events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{ch: make(chan Event, 256)}
}

func (r *eventRecorder) handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.ch <- ev:
	default:
	}
}

func (r *eventRecorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// waitFor blocks until an event of type t arrives.
func (r *eventRecorder) waitFor(t *testing.T, typ EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
			return Event{}
		}
	}
}

type testEngine struct {
	*Engine
	clock  *fakeClock
	sleep  *sleepRecorder
	events *eventRecorder
}

func newTestEngine(t *testing.T, opts ...Option) *testEngine {
	t.Helper()
	te := &testEngine{
		clock:  newFakeClock(),
		sleep:  &sleepRecorder{},
		events: newEventRecorder(),
	}
	base := []Option{
		WithDevice(transcription.DeviceCapability{}),
		WithLogger(logger.Nop()),
		WithClock(te.clock.Now),
		WithSleep(te.sleep.Sleep),
	}
	te.Engine = NewEngine(append(base, opts...)...)
	te.OnStatusChange(te.events.handle)
	t.Cleanup(func() { _ = te.Close(context.Background()) })
	return te
}

func testAudio() transcription.AudioBuffer {
	return transcription.AudioBuffer{Samples: make([]float32, 1600), SampleRate: 16000, Channels: 1}
}

func equalTypes(a, b []EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func streaming(text string) func(int) string {
	return func(int) string { return text }
}

// chunk builds an audio chunk identifiable by its sample count.
func chunk(n int) transcription.AudioBuffer {
	return transcription.AudioBuffer{Samples: make([]float32, n), SampleRate: 16000, Channels: 1}
}

// collect reads results until the session closes them.
func collect(t *testing.T, s *Session) []transcription.Result {
	t.Helper()
	var out []transcription.Result
	timeout := time.After(2 * time.Second)
	for {
		select {
		case res, ok := <-s.Results():
			if !ok {
				return out
			}
			out = append(out, res)
		case <-timeout:
			t.Fatal("timed out waiting for session results")
			return out
		}
	}
}

// next reads one result.
func next(t *testing.T, s *Session) transcription.Result {
	t.Helper()
	select {
	case res, ok := <-s.Results():
		if !ok {
			t.Fatal("results closed early")
		}
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a result")
	}
	return transcription.Result{}
}
