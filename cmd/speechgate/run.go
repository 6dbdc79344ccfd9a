package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kbukum/speechgate/config"
	"github.com/kbukum/speechgate/failover"
	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/observability"
	"github.com/kbukum/speechgate/transcription"
	"github.com/kbukum/speechgate/version"
)

const shutdownTimeout = 5 * time.Second

// newEngine wires telemetry and the configured providers. The returned
// shutdown closes the engine and flushes exporters.
func newEngine(ctx context.Context, cfg *AppConfig) (*failover.Engine, func(), error) {
	var closers []func(context.Context) error
	opts := cfg.engineOptions()

	if cfg.Tracing.Enabled {
		cfg.Tracing.ServiceVersion = version.Get().Short()
		tp, err := observability.InitTracer(ctx, cfg.Tracing.TracerConfig)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, tp.Shutdown)
	}
	if cfg.Metrics.Enabled {
		cfg.Metrics.ServiceVersion = version.Get().Short()
		mp, err := observability.InitMeter(ctx, cfg.Metrics.MeterConfig)
		if err != nil {
			closeAll(closers)
			return nil, nil, err
		}
		closers = append(closers, mp.Shutdown)
		metrics, err := observability.NewTranscriptionMetrics(observability.Meter(serviceName))
		if err != nil {
			closeAll(closers)
			return nil, nil, err
		}
		opts = append(opts, failover.WithMetrics(metrics))
	}

	engine := failover.NewEngine(opts...)
	log := logger.Get("cli")
	engine.OnStatusChange(func(ev failover.Event) {
		fields := logger.Fields(logger.FieldProvider, string(ev.Provider), "event", ev.Type.String())
		if ev.Previous != "" {
			fields["previous"] = string(ev.Previous)
		}
		if ev.Err != nil {
			fields = logger.MergeWithError(fields, ev.Err)
		}
		log.Info("status changed", fields)
	})

	shutdown := func() {
		closeAll(append(closers, engine.Close))
	}
	return engine, shutdown, nil
}

// closeAll runs closers in reverse order under one shutdown deadline.
// A failing closer is logged and the rest still run.
func closeAll(closers []func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			logger.Get("cli").Warn("shutdown failed", logger.ErrorFields("shutdown", err))
		}
	}
}

func runTranscribe(ctx context.Context, cfg *AppConfig, configPath string, args []string) error {
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	language := fs.StringP("language", "l", "", "BCP-47 language hint")
	watch := fs.Bool("watch", false, "reload the resilience settings between files when the config file changes")
	asJSON := fs.Bool("json", false, "print results and final status as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("transcribe: at least one WAV file is required")
	}

	var resilience atomic.Pointer[failover.Config]
	resilience.Store(&cfg.Resilience)
	if *watch {
		if configPath == "" {
			return fmt.Errorf("transcribe: --watch needs --config")
		}
		err := config.Watch(configPath, func(next AppConfig) {
			rc := failover.DefaultConfig()
			if next.Resilience != (failover.Config{}) {
				rc = next.Resilience
			}
			resilience.Store(&rc)
		})
		if err != nil {
			return err
		}
	}

	engine, shutdown, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	req := transcription.Request{Language: *language}
	var failed []error
	for _, path := range fs.Args() {
		audio, err := readWAV(path)
		if err != nil {
			failed = append(failed, err)
			continue
		}
		res, err := engine.Transcribe(ctx, audio, req, *resilience.Load())
		if err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", path, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		printResult(path, res, *asJSON)
	}

	if *asJSON {
		printJSON(engine.Status())
	} else {
		fmt.Fprintln(os.Stderr, engine.Status().Message)
	}
	return stderrors.Join(failed...)
}

func runStream(ctx context.Context, cfg *AppConfig, args []string) error {
	fs := flag.NewFlagSet("stream", flag.ContinueOnError)
	language := fs.StringP("language", "l", "", "BCP-47 language hint")
	chunkLen := fs.Duration("chunk", 500*time.Millisecond, "audio chunk length")
	realtime := fs.Bool("realtime", false, "pace chunks at playback speed")
	noFailover := fs.Bool("no-failover", false, "keep the first provider for the whole stream")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("stream: exactly one WAV file is required")
	}

	audio, err := readWAV(fs.Arg(0))
	if err != nil {
		return err
	}

	engine, shutdown, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	chunks := make(chan transcription.AudioBuffer)
	session, err := engine.StartSession(ctx, chunks, transcription.Request{Language: *language}, cfg.Resilience,
		failover.WithMidStreamFallback(!*noFailover))
	if err != nil {
		return err
	}

	go func() {
		defer close(chunks)
		for _, c := range splitAudio(audio, *chunkLen) {
			select {
			case chunks <- c:
			case <-session.Done():
				return
			}
			if *realtime {
				select {
				case <-time.After(c.Duration()):
				case <-session.Done():
					return
				}
			}
		}
	}()

	for res := range session.Results() {
		marker := "~"
		if res.IsFinal {
			marker = "="
		}
		fmt.Printf("%s [%s] %s\n", marker, res.Provider, res.Text)
	}
	return session.Err()
}

func readWAV(path string) (transcription.AudioBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return transcription.AudioBuffer{}, err
	}
	defer f.Close()

	audio, err := transcription.DecodeWAV(f)
	if err != nil {
		return transcription.AudioBuffer{}, fmt.Errorf("%s: %w", path, err)
	}
	return audio, nil
}

// splitAudio cuts audio into chunks of at most d, keeping whole frames.
func splitAudio(audio transcription.AudioBuffer, d time.Duration) []transcription.AudioBuffer {
	channels := max(audio.Channels, 1)
	frames := int(d.Seconds() * float64(audio.SampleRate))
	step := max(frames, 1) * channels

	var out []transcription.AudioBuffer
	for start := 0; start < len(audio.Samples); start += step {
		end := min(start+step, len(audio.Samples))
		out = append(out, transcription.AudioBuffer{
			Samples:    audio.Samples[start:end],
			SampleRate: audio.SampleRate,
			Channels:   audio.Channels,
		})
	}
	return out
}

func printResult(path string, res *transcription.Result, asJSON bool) {
	if asJSON {
		printJSON(struct {
			File string `json:"file"`
			*transcription.Result
		}{path, res})
		return
	}
	fmt.Printf("%s [%s %.2f]: %s\n", path, res.Provider, res.Confidence, res.Text)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
