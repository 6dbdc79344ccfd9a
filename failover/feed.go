package failover

import (
	"context"

	"github.com/kbukum/speechgate/transcription"
)

// maxPendingChunks bounds audio queued for a subscriber that is not reading.
const maxPendingChunks = 64

// audioFeed pumps an upstream audio channel to one subscriber at a time.
// Attaching a new subscriber closes the previous one and hands the new one the
// last replay delivered chunks followed by everything not yet delivered.
type audioFeed struct {
	src    <-chan transcription.AudioBuffer
	replay int
	attach chan chan transcription.AudioBuffer
	done   chan struct{}
}

func newAudioFeed(src <-chan transcription.AudioBuffer, replay int) *audioFeed {
	return &audioFeed{
		src:    src,
		replay: replay,
		attach: make(chan chan transcription.AudioBuffer),
		done:   make(chan struct{}),
	}
}

// subscribe returns a channel receiving audio from now on. If the feed has
// already finished the returned channel is closed.
func (f *audioFeed) subscribe(ctx context.Context) <-chan transcription.AudioBuffer {
	ch := make(chan transcription.AudioBuffer)
	select {
	case f.attach <- ch:
	case <-f.done:
		close(ch)
	case <-ctx.Done():
		close(ch)
	}
	return ch
}

// run owns all feed state. done is closed before the current subscriber so a
// subscriber that sees its audio end can tell the source is exhausted.
func (f *audioFeed) run(ctx context.Context) {
	var (
		cur       chan transcription.AudioBuffer
		pending   []transcription.AudioBuffer
		delivered []transcription.AudioBuffer
		src       = f.src
	)
	defer func() {
		close(f.done)
		if cur != nil {
			close(cur)
		}
	}()

	for {
		if src == nil && len(pending) == 0 {
			return
		}

		var (
			out  chan transcription.AudioBuffer
			next transcription.AudioBuffer
		)
		if cur != nil && len(pending) > 0 {
			out = cur
			next = pending[0]
		}
		in := src
		if len(pending) >= maxPendingChunks {
			in = nil
		}

		select {
		case <-ctx.Done():
			return
		case ch := <-f.attach:
			if cur != nil {
				close(cur)
			}
			cur = ch
			replayed := make([]transcription.AudioBuffer, 0, len(delivered)+len(pending))
			replayed = append(replayed, delivered...)
			pending = append(replayed, pending...)
			delivered = delivered[:0]
		case chunk, ok := <-in:
			if !ok {
				src = nil
				continue
			}
			pending = append(pending, chunk)
		case out <- next:
			pending = pending[1:]
			if f.replay > 0 {
				delivered = append(delivered, next)
				if len(delivered) > f.replay {
					delivered = delivered[len(delivered)-f.replay:]
				}
			}
		}
	}
}

// finished reports whether the feed has stopped.
func (f *audioFeed) finished() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
