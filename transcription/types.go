package transcription

import "time"

// AudioBuffer is a chunk of mono or interleaved PCM audio normalized to [-1, 1].
type AudioBuffer struct {
	Samples    []float32 `json:"-" validate:"required,min=1"`
	SampleRate int       `json:"sample_rate" validate:"required,min=8000,max=192000"`
	Channels   int       `json:"channels" validate:"omitempty,min=1,max=8"`
}

// Duration returns the playback length of the buffer.
func (b AudioBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	frames := len(b.Samples) / max(b.Channels, 1)
	return time.Duration(frames) * time.Second / time.Duration(b.SampleRate)
}

// Request holds per-call transcription parameters.
type Request struct {
	// Language is the expected BCP 47 language of the audio (e.g. "en").
	Language string `json:"language,omitempty" validate:"omitempty,bcp47_language_tag"`
	// Model overrides the backend's configured model.
	Model string `json:"model,omitempty" validate:"max=128"`
	// Prompt biases decoding toward expected vocabulary.
	Prompt string `json:"prompt,omitempty" validate:"max=1024"`
}

// Result is a transcription produced by a backend.
type Result struct {
	Text           string        `json:"text"`
	Confidence     float64       `json:"confidence"`
	Segments       []Segment     `json:"segments,omitempty"`
	ProcessingTime time.Duration `json:"processing_time"`
	Provider       Identity      `json:"provider"`
	Language       string        `json:"language,omitempty"`
	// IsFinal is false for streaming partials that may still be revised.
	IsFinal bool `json:"is_final"`
}

// Segment represents a time-aligned portion of a transcript.
type Segment struct {
	Text string `json:"text"`
	// Start is the segment start time in seconds.
	Start float64 `json:"start"`
	// End is the segment end time in seconds.
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}
