package failover

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/speechgate/transcription"
)

func recv(t *testing.T, ch <-chan transcription.AudioBuffer) (transcription.AudioBuffer, bool) {
	t.Helper()
	select {
	case buf, ok := <-ch:
		return buf, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audio")
		return transcription.AudioBuffer{}, false
	}
}

func TestAudioFeedReattachReplays(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := make(chan transcription.AudioBuffer)
	f := newAudioFeed(src, 2)
	go f.run(ctx)

	first := f.subscribe(ctx)
	for _, n := range []int{1, 2, 3} {
		src <- chunk(n)
		if buf, _ := recv(t, first); len(buf.Samples) != n {
			t.Fatalf("expected chunk %d, got %d", n, len(buf.Samples))
		}
	}

	second := f.subscribe(ctx)
	if _, ok := recv(t, first); ok {
		t.Error("previous subscriber must be closed on reattach")
	}
	for _, n := range []int{2, 3} {
		if buf, _ := recv(t, second); len(buf.Samples) != n {
			t.Errorf("expected replayed chunk %d, got %d", n, len(buf.Samples))
		}
	}

	src <- chunk(4)
	if buf, _ := recv(t, second); len(buf.Samples) != 4 {
		t.Errorf("expected live chunk 4, got %d", len(buf.Samples))
	}

	close(src)
	if _, ok := recv(t, second); ok {
		t.Error("expected subscriber closed when the source ends")
	}
	if !f.finished() {
		t.Error("expected feed finished")
	}
	if _, ok := recv(t, f.subscribe(ctx)); ok {
		t.Error("subscribing to a finished feed must return a closed channel")
	}
}

func TestAudioFeedBuffersUntilSubscribed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := make(chan transcription.AudioBuffer, 2)
	src <- chunk(1)
	src <- chunk(2)
	close(src)

	f := newAudioFeed(src, 0)
	go f.run(ctx)

	sub := f.subscribe(ctx)
	for _, n := range []int{1, 2} {
		if buf, _ := recv(t, sub); len(buf.Samples) != n {
			t.Errorf("expected chunk %d, got %d", n, len(buf.Samples))
		}
	}
	if _, ok := recv(t, sub); ok {
		t.Error("expected subscriber closed after pending audio drained")
	}
}
