// Package failover selects among interchangeable transcription backends and
// keeps requests alive when they misbehave.
//
// An Engine ranks the registered backends for every acquisition, scoring each
// identity from device capability and the selection policy and subtracting
// health penalties tracked by a resilience.HealthRegistry. Batch requests are
// retried with linear backoff, gated on result quality and handed to a
// fallback backend once the retry budget is spent. Streaming sessions forward
// partial results and can replace the active backend mid-stream without
// closing the caller's result channel.
//
//	eng := failover.NewEngine(
//	    failover.WithFactory(transcription.NeuralOnDevice, neural.Factory()),
//	    failover.WithFactory(transcription.CloudAlternative, whisper.Factory()),
//	    failover.WithFallback(transcription.CloudAlternative),
//	)
//	defer eng.Close(ctx)
//
//	result, err := eng.Transcribe(ctx, audio, transcription.Request{}, failover.DefaultConfig())
package failover
