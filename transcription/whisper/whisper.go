// Package whisper implements a transcription.Transcriber backed by a
// faster-whisper HTTP sidecar. A remote sidecar serves the cloud-alternative
// identity; one running on the same host can be registered as hybrid.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/resilience"
	"github.com/kbukum/speechgate/transcription"
)

const (
	// ProviderName is the registered name for the Whisper provider.
	ProviderName = "whisper"

	defaultWhisperURL      = "http://localhost:8387"
	defaultWhisperModel    = "base"
	defaultWhisperTimeout  = 120 * time.Second
	defaultStreamWindow    = 3 * time.Second
	defaultMaxWindow       = 30 * time.Second
	defaultPrepareAttempts = 3
)

// Config holds configuration for the Whisper transcription provider.
type Config struct {
	// Identity defaults to cloud-alternative.
	Identity transcription.Identity `json:"identity" yaml:"identity" mapstructure:"identity"`

	URL      string        `json:"url" yaml:"url" mapstructure:"url"`
	Model    string        `json:"model" yaml:"model" mapstructure:"model"`
	Language string        `json:"language,omitempty" yaml:"language" mapstructure:"language"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// StreamWindow is how much new audio triggers a partial while streaming.
	StreamWindow time.Duration `json:"stream_window" yaml:"stream_window" mapstructure:"stream_window"`
	// MaxWindow bounds the audio re-sent per partial; reaching it finalizes the utterance.
	MaxWindow       time.Duration `json:"max_window" yaml:"max_window" mapstructure:"max_window"`
	PrepareAttempts int           `json:"prepare_attempts" yaml:"prepare_attempts" mapstructure:"prepare_attempts"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if !c.Identity.Valid() {
		c.Identity = transcription.CloudAlternative
	}
	if c.URL == "" {
		c.URL = defaultWhisperURL
	}
	if c.Model == "" {
		c.Model = defaultWhisperModel
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultWhisperTimeout
	}
	if c.StreamWindow <= 0 {
		c.StreamWindow = defaultStreamWindow
	}
	if c.MaxWindow < c.StreamWindow {
		c.MaxWindow = max(defaultMaxWindow, c.StreamWindow)
	}
	if c.PrepareAttempts <= 0 {
		c.PrepareAttempts = defaultPrepareAttempts
	}
}

// Provider implements transcription.Transcriber using a faster-whisper HTTP sidecar.
type Provider struct {
	cfg      Config
	client   *http.Client
	prepared atomic.Bool
	log      *logger.Logger
}

var _ transcription.Transcriber = (*Provider)(nil)

// NewProvider creates a new Whisper transcription provider.
func NewProvider(cfg Config) *Provider {
	cfg.ApplyDefaults()
	return &Provider{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: logger.Get(ProviderName),
	}
}

// Factory returns a transcription.Factory that creates Whisper Provider
// instances from a generic config map.
func Factory() transcription.Factory {
	return func(cfg map[string]any) (transcription.Transcriber, error) {
		wc := Config{}
		if v, ok := cfg["identity"].(string); ok {
			id, err := transcription.ParseIdentity(v)
			if err != nil {
				return nil, errors.ConfigurationInvalid(err.Error())
			}
			wc.Identity = id
		}
		if v, ok := cfg["url"].(string); ok {
			wc.URL = v
		}
		if v, ok := cfg["model"].(string); ok {
			wc.Model = v
		}
		if v, ok := cfg["language"].(string); ok {
			wc.Language = v
		}
		var err error
		if wc.Timeout, err = durationValue(cfg, "timeout"); err != nil {
			return nil, err
		}
		if wc.StreamWindow, err = durationValue(cfg, "stream_window"); err != nil {
			return nil, err
		}
		if wc.MaxWindow, err = durationValue(cfg, "max_window"); err != nil {
			return nil, err
		}
		if v, ok := cfg["prepare_attempts"].(int); ok {
			wc.PrepareAttempts = v
		}
		return NewProvider(wc), nil
	}
}

func durationValue(cfg map[string]any, key string) (time.Duration, error) {
	switch v := cfg[key].(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, errors.ConfigurationInvalid(fmt.Sprintf("whisper %s: %v", key, err))
		}
		return d, nil
	default:
		return 0, errors.ConfigurationInvalid(fmt.Sprintf("whisper %s: unsupported type %T", key, v))
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// Identity returns the configured identity.
func (p *Provider) Identity() transcription.Identity { return p.cfg.Identity }

// IsAvailable checks if the Whisper sidecar is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.health(ctx) == nil
}

// Prepare pings the sidecar until it answers or the attempts run out.
func (p *Provider) Prepare(ctx context.Context) error {
	if p.prepared.Load() {
		return nil
	}
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = p.cfg.PrepareAttempts
	cfg.InitialBackoff = 250 * time.Millisecond
	if err := resilience.RetryFunc(ctx, cfg, func() error { return p.health(ctx) }); err != nil {
		return err
	}
	p.prepared.Store(true)
	return nil
}

// Cleanup releases idle connections.
func (p *Provider) Cleanup(ctx context.Context) error {
	p.prepared.Store(false)
	p.client.CloseIdleConnections()
	return nil
}

func (p *Provider) health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL+"/health", nil)
	if err != nil {
		return errors.ConfigurationInvalid("whisper url").WithCause(err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return errors.NetworkRequired().WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, "health check failed")
	}
	return nil
}

// Transcribe sends an audio buffer to the Whisper sidecar and returns the transcription.
func (p *Provider) Transcribe(ctx context.Context, audio transcription.AudioBuffer, req transcription.Request) (*transcription.Result, error) {
	start := time.Now()

	var wav transcription.SeekBuffer
	if err := transcription.EncodeWAV(&wav, audio); err != nil {
		return nil, errors.AudioFormatUnsupported("wav").WithCause(err)
	}

	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	lang := p.cfg.Language
	if req.Language != "" {
		lang = req.Language
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(wav.Bytes()); err != nil {
		return nil, errors.Internal(fmt.Errorf("write audio data: %w", err))
	}

	_ = writer.WriteField("model", model)
	if lang != "" {
		_ = writer.WriteField("language", lang)
	}
	if req.Prompt != "" {
		_ = writer.WriteField("initial_prompt", req.Prompt)
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL+"/transcribe", &buf)
	if err != nil {
		return nil, errors.ConfigurationInvalid("whisper url").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NetworkRequired().WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError(resp.StatusCode, string(body))
	}

	var result whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.ProcessingFailed("decode whisper response").WithCause(err)
	}

	out := toResult(&result, p.cfg.Identity)
	out.ProcessingTime = time.Since(start)
	if out.Language == "" {
		out.Language = lang
	}
	return out, nil
}

// statusError maps a sidecar HTTP status onto the error taxonomy.
func statusError(status int, body string) error {
	msg := fmt.Sprintf("whisper status %d: %s", status, body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.PermissionDenied("whisper").WithDetail("status", status)
	case status == http.StatusUnsupportedMediaType:
		return errors.AudioFormatUnsupported("wav").WithDetail("status", status)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return errors.ConfigurationInvalid(msg)
	case status == http.StatusServiceUnavailable:
		return errors.ModelUnavailable("whisper").WithDetail("status", status)
	case status == http.StatusTooManyRequests || status == http.StatusInsufficientStorage:
		return errors.InsufficientResources(msg)
	default:
		return errors.ProcessingFailed(msg)
	}
}

// --- internal Whisper API response types ---

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
}

type whisperSegment struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	AvgLogprob float64 `json:"avg_logprob"`
}

func toResult(resp *whisperResponse, id transcription.Identity) *transcription.Result {
	segments := make([]transcription.Segment, len(resp.Segments))
	var weighted, total float64
	for i, seg := range resp.Segments {
		conf := math.Exp(min(seg.AvgLogprob, 0))
		segments[i] = transcription.Segment{
			Start:      seg.Start,
			End:        seg.End,
			Text:       seg.Text,
			Confidence: conf,
		}
		d := max(seg.End-seg.Start, 0)
		weighted += conf * d
		total += d
	}

	// Without segment timing the sidecar gives no confidence signal.
	confidence := 1.0
	if total > 0 {
		confidence = weighted / total
	}

	return &transcription.Result{
		Text:       resp.Text,
		Confidence: confidence,
		Segments:   segments,
		Provider:   id,
		Language:   resp.Language,
		IsFinal:    true,
	}
}
