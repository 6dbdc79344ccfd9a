// Package transcription defines the capability interface every speech-to-text
// backend satisfies and the plain data records exchanged with it.
//
// Backends are keyed by Identity, a closed set of backend kinds. Each identity
// belongs to a Class that selection policies filter and bias on.
//
// # Backends
//
//   - transcription/whisper: faster-whisper HTTP sidecar (cloud-alternative)
//
// # Usage
//
//	reg := transcription.NewRegistry()
//	reg.RegisterFactory(transcription.CloudAlternative, whisper.Factory())
//	t, err := reg.GetOrCreate(transcription.CloudAlternative, nil)
//	if err == nil && t.Prepare(ctx) == nil {
//	    result, err := t.Transcribe(ctx, audio, transcription.Request{Language: "en"})
//	}
package transcription
