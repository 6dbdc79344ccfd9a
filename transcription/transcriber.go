package transcription

import (
	"context"

	"github.com/kbukum/speechgate/provider"
)

// Transcriber is the capability interface every backend implements.
type Transcriber interface {
	provider.Provider // embeds Name() and IsAvailable()
	// Prepare loads models or checks permissions. Calling it again after a
	// successful preparation is a no-op.
	provider.Preparable
	// Cleanup releases all resources. It is safe to call on an unprepared backend.
	provider.Cleanable

	// Identity returns the backend kind.
	Identity() Identity
	// Transcribe converts a complete audio buffer to text.
	Transcribe(ctx context.Context, audio AudioBuffer, req Request) (*Result, error)
	// TranscribeStream emits partial results while audio arrives. The returned
	// channel is closed when audio is closed or ctx is done.
	TranscribeStream(ctx context.Context, audio <-chan AudioBuffer, req Request) (<-chan Result, error)
}

// Factory creates a Transcriber from a generic config map.
type Factory = provider.Factory[Transcriber]

// Registry holds transcriber factories keyed by identity, in registration order.
type Registry = provider.Registry[Identity, Transcriber]

// NewRegistry creates an empty transcriber registry.
func NewRegistry() *Registry {
	return provider.NewRegistry[Identity, Transcriber]()
}
