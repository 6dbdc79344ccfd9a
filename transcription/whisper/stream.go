package whisper

import (
	"context"
	"time"

	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/transcription"
)

// TranscribeStream re-transcribes the growing utterance every StreamWindow of
// new audio and emits each pass as a partial. When the utterance reaches
// MaxWindow, or audio ends, a final result is emitted and the buffer resets.
func (p *Provider) TranscribeStream(ctx context.Context, audio <-chan transcription.AudioBuffer, req transcription.Request) (<-chan transcription.Result, error) {
	if err := p.Prepare(ctx); err != nil {
		return nil, err
	}
	out := make(chan transcription.Result)
	go p.stream(ctx, audio, req, out)
	return out, nil
}

func (p *Provider) stream(ctx context.Context, audio <-chan transcription.AudioBuffer, req transcription.Request, out chan<- transcription.Result) {
	defer close(out)

	var utterance transcription.AudioBuffer
	var pending time.Duration

	flush := func(final bool) bool {
		if len(utterance.Samples) == 0 {
			return true
		}
		res, err := p.Transcribe(ctx, utterance, req)
		if err != nil {
			p.log.Warn("whisper stream pass failed", logger.ErrorFields("transcribe_stream", err))
			return ctx.Err() == nil
		}
		res.IsFinal = final
		select {
		case out <- *res:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-audio:
			if !ok {
				flush(true)
				return
			}
			if utterance.SampleRate == 0 {
				utterance.SampleRate = chunk.SampleRate
				utterance.Channels = chunk.Channels
			}
			utterance.Samples = append(utterance.Samples, chunk.Samples...)
			pending += chunk.Duration()

			if utterance.Duration() >= p.cfg.MaxWindow {
				if !flush(true) {
					return
				}
				utterance = transcription.AudioBuffer{}
				pending = 0
				continue
			}
			if pending >= p.cfg.StreamWindow {
				pending = 0
				if !flush(false) {
					return
				}
			}
		}
	}
}
