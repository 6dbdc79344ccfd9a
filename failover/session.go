package failover

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/observability"
	"github.com/kbukum/speechgate/transcription"
	"github.com/kbukum/speechgate/validation"
)

var errNoReplacement = stderrors.New("no replacement provider")

// SessionOption configures a single streaming session.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	midStreamFallback bool
}

// WithMidStreamFallback enables or disables provider replacement for this
// session. Replacement also requires Config.MidStreamFallback.
func WithMidStreamFallback(enabled bool) SessionOption {
	return func(o *sessionOptions) {
		o.midStreamFallback = enabled
	}
}

// Session is a live transcription stream. Results stays open across provider
// replacements and is closed exactly once when the session ends.
type Session struct {
	id        string
	engine    *Engine
	cfg       Config
	req       transcription.Request
	midStream bool
	feed      *audioFeed
	log       *logger.Logger

	out        chan transcription.Result
	done       chan struct{}
	cancel     context.CancelFunc
	cancelOnce sync.Once

	mu     sync.Mutex
	active transcription.Identity
	err    error
}

// activeStream is the subscription currently feeding the session.
type activeStream struct {
	t       transcription.Transcriber
	results <-chan transcription.Result
	stop    context.CancelFunc
}

// StartSession acquires a backend and starts streaming audio through it.
// Failing to acquire or start the first backend is returned without retry.
// The session ends when audio is closed, ctx is done or Cancel is called.
func (e *Engine) StartSession(ctx context.Context, audio <-chan transcription.AudioBuffer, req transcription.Request, cfg Config, opts ...SessionOption) (*Session, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	cfg = cfg.Normalize()

	o := sessionOptions{midStreamFallback: true}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	ctx, span := observability.StartSpan(ctx, observability.SpanSession,
		trace.WithAttributes(attribute.String(observability.AttrSessionID, id)))
	ctx, cancel := context.WithCancel(ctx)

	s := &Session{
		id:        id,
		engine:    e,
		cfg:       cfg,
		req:       req,
		midStream: o.midStreamFallback,
		feed:      newAudioFeed(audio, cfg.ReplayChunks),
		log:       e.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldSessionID, id)),
		out:       make(chan transcription.Result),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	go s.feed.run(ctx)

	fail := func(err error) (*Session, error) {
		cancel()
		observability.SetSpanError(span, err)
		span.End()
		return nil, err
	}

	t, err := e.acquire(ctx, cfg, nil)
	if err != nil {
		return fail(err)
	}
	cur, err := s.open(ctx, t)
	if err != nil {
		e.recordFailure(ctx, t.Identity(), errors.Classify(err), cfg)
		return fail(err)
	}
	s.active = t.Identity()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cur.stop()
		return fail(errors.Internal(ErrClosed))
	}
	e.sessions[id] = s
	e.mu.Unlock()

	e.metrics.SessionStarted(ctx)
	e.useProvider(s.active, id)
	s.log.Info("session started", logger.Fields(logger.FieldProvider, string(s.active)))

	go s.run(ctx, span, cur)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Results returns the result stream.
func (s *Session) Results() <-chan transcription.Result { return s.out }

// Done is closed after Results is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Provider returns the identity currently feeding the session.
func (s *Session) Provider() transcription.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Err returns the error that ended the session, or nil if it ended normally
// or was canceled.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel ends the session and returns once Results is closed. It is safe to
// call more than once and after the session ended on its own. It must not be
// called from an OnStatusChange handler.
func (s *Session) Cancel() {
	s.cancelOnce.Do(s.cancel)
	<-s.done
}

func (s *Session) open(ctx context.Context, t transcription.Transcriber) (activeStream, error) {
	subCtx, stop := context.WithCancel(ctx)
	audio := s.feed.subscribe(subCtx)
	results, err := t.TranscribeStream(subCtx, audio, s.req)
	if err != nil {
		stop()
		return activeStream{}, err
	}
	return activeStream{t: t, results: results, stop: stop}, nil
}

func (s *Session) run(ctx context.Context, span trace.Span, cur activeStream) {
	e := s.engine
	defer func() {
		cur.stop()
		s.cancel()
		close(s.out)

		e.mu.Lock()
		delete(e.sessions, s.id)
		e.mu.Unlock()
		e.metrics.SessionEnded(context.Background())

		if err := s.Err(); err != nil {
			observability.SetSpanError(span, err)
		}
		span.End()
		s.log.Info("session ended")
		close(s.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-cur.results:
			if !ok {
				if s.feed.finished() {
					return
				}
				// The backend stopped while audio is still flowing.
				cause := errors.ProcessingFailed("stream ended before audio")
				if !s.canFailover() {
					s.setErr(cause)
					return
				}
				next, err := s.failover(ctx, cur, cause)
				if err != nil {
					if !stderrors.Is(err, errNoReplacement) {
						s.setErr(err)
					} else {
						s.setErr(cause)
					}
					return
				}
				cur = next
				continue
			}

			id := cur.t.Identity()
			if res.Provider == "" {
				res.Provider = id
			}
			select {
			case s.out <- res:
			case <-ctx.Done():
				return
			}

			if !gatesPartial(res, s.cfg) {
				continue
			}
			reason := qualityCheck(res, s.cfg)
			if reason == "" {
				continue
			}
			e.metrics.RecordQualityRejection(ctx, string(id), reason)
			s.log.Debug("partial rejected by quality gate", logger.Fields(logger.FieldProvider, string(id), "reason", reason))
			if !s.canFailover() {
				continue
			}

			cause := errors.LowQualityResult().WithDetail("reason", reason).WithDetail("provider", string(id))
			next, err := s.failover(ctx, cur, cause)
			switch {
			case stderrors.Is(err, errNoReplacement):
				s.log.Debug("no replacement provider, keeping current", logger.Fields(logger.FieldProvider, string(id)))
			case err != nil:
				s.setErr(err)
				return
			default:
				cur = next
			}
		}
	}
}

func (s *Session) canFailover() bool {
	return s.cfg.MidStreamFallback && s.midStream
}

// failover records cause against the active backend and moves the session to
// a different one. errNoReplacement means nothing was found and cur is left
// running. Any other error means cur was stopped and no replacement could
// start streaming.
func (s *Session) failover(ctx context.Context, cur activeStream, cause error) (activeStream, error) {
	e := s.engine
	from := cur.t.Identity()

	ctx, span := observability.StartSpan(ctx, observability.SpanProviderSwap,
		trace.WithAttributes(attribute.String(observability.AttrProvider, string(from))))
	defer span.End()

	e.recordFailure(ctx, from, cause, s.cfg)

	exclude := map[transcription.Identity]bool{from: true}
	var startErr error
	for {
		t, err := e.acquireReplacement(ctx, s.cfg, exclude)
		if err != nil {
			if startErr != nil {
				observability.SetSpanError(span, startErr)
				return activeStream{}, startErr
			}
			return activeStream{}, errNoReplacement
		}
		cur.stop()

		next, err := s.open(ctx, t)
		if err != nil {
			s.log.Warn("replacement stream failed to start", logger.MergeWithError(
				logger.Fields(logger.FieldProvider, string(t.Identity())), err))
			e.recordFailure(ctx, t.Identity(), errors.Classify(err), s.cfg)
			exclude[t.Identity()] = true
			startErr = err
			continue
		}

		to := t.Identity()
		s.mu.Lock()
		s.active = to
		s.mu.Unlock()

		span.SetAttributes(attribute.String("speechgate.replacement", string(to)))
		e.metrics.RecordProviderSwap(ctx, string(from), string(to))
		s.log.Info("provider replaced mid-stream", logger.Fields(logger.FieldProvider, string(from), logger.FieldFallback, string(to)))
		e.useProvider(to, s.id)
		return next, nil
	}
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
