package failover

import (
	"testing"

	"github.com/kbukum/speechgate/transcription"
)

func TestNotifierOrderAndUnsubscribe(t *testing.T) {
	var n notifier
	var order []string

	unsubA := n.subscribe(func(Event) { order = append(order, "a") })
	n.subscribe(func(Event) { order = append(order, "b") })

	n.emit(Event{Type: EventProviderChanged, Provider: transcription.Hybrid})
	unsubA()
	unsubA()
	n.emit(Event{Type: EventProviderChanged})

	expected := []string{"a", "b", "b"}
	if len(order) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("handler %d: expected %s, got %s", i, expected[i], order[i])
		}
	}
}

func TestNotifierNoSubscribers(t *testing.T) {
	var n notifier
	n.emit(Event{Type: EventAllProvidersFailed})
}

func TestEventTypeString(t *testing.T) {
	tests := map[EventType]string{
		EventProviderChanged:    "provider_changed",
		EventFallbackTriggered:  "fallback_triggered",
		EventProviderRecovered:  "provider_recovered",
		EventAllProvidersFailed: "all_providers_failed",
		EventType(99):           "unknown",
	}
	for typ, expected := range tests {
		if got := typ.String(); got != expected {
			t.Errorf("expected %q, got %q", expected, got)
		}
	}
}

func TestOnStatusChangeUnsubscribe(t *testing.T) {
	p := newFake(transcription.PlatformSpeech, always("hello", 0.9))
	te := newTestEngine(t, WithFactory(transcription.PlatformSpeech, p.factory()))

	var got []Event
	unsub := te.OnStatusChange(func(ev Event) { got = append(got, ev) })
	unsub()

	if _, err := te.Transcribe(t.Context(), testAudio(), transcription.Request{}, DefaultConfig()); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("unsubscribed handler received %d events", len(got))
	}
	if ev := te.events.waitFor(t, EventProviderChanged); ev.Provider != transcription.PlatformSpeech || ev.At.IsZero() {
		t.Errorf("unexpected event %+v", ev)
	}
}
