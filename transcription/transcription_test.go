package transcription

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/kbukum/speechgate/errors"
	"github.com/kbukum/speechgate/validation"
)

func TestIdentityClass(t *testing.T) {
	tests := []struct {
		id       Identity
		class    Class
		onDevice bool
	}{
		{PlatformSpeech, ClassPrimary, true},
		{NeuralOnDevice, ClassSecondary, true},
		{Hybrid, ClassSecondary, true},
		{CloudAlternative, ClassAlternative, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			if got := tt.id.Class(); got != tt.class {
				t.Errorf("Class() = %s, want %s", got, tt.class)
			}
			if got := tt.id.OnDevice(); got != tt.onDevice {
				t.Errorf("OnDevice() = %v, want %v", got, tt.onDevice)
			}
		})
	}
}

func TestIdentitiesDeclarationOrder(t *testing.T) {
	ids := Identities()
	expected := []Identity{PlatformSpeech, NeuralOnDevice, Hybrid, CloudAlternative}
	if len(ids) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, ids)
	}
	for i := range expected {
		if ids[i] != expected[i] {
			t.Errorf("position %d: expected %s, got %s", i, expected[i], ids[i])
		}
	}
	ids[0] = "mutated"
	if Identities()[0] != PlatformSpeech {
		t.Error("Identities must return a copy")
	}
}

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity("hybrid")
	if err != nil || id != Hybrid {
		t.Errorf("expected hybrid, got %q (%v)", id, err)
	}
	if _, err := ParseIdentity("quantum"); err == nil {
		t.Error("expected error for unknown identity")
	}
	if Identity("quantum").Valid() {
		t.Error("unknown identity must not be valid")
	}
}

func TestAudioBufferDuration(t *testing.T) {
	tests := []struct {
		name     string
		buf      AudioBuffer
		expected time.Duration
	}{
		{"mono", AudioBuffer{Samples: make([]float32, 16000), SampleRate: 16000}, time.Second},
		{"stereo", AudioBuffer{Samples: make([]float32, 16000), SampleRate: 16000, Channels: 2}, 500 * time.Millisecond},
		{"no rate", AudioBuffer{Samples: make([]float32, 10)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.buf.Duration(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRequestValidation(t *testing.T) {
	if err := validation.Validate(Request{Language: "en"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := validation.Validate(Request{Language: "english please"})
	if !errors.IsCode(err, errors.ErrCodeConfigurationInvalid) {
		t.Errorf("expected CONFIGURATION_INVALID, got %v", err)
	}
}

func TestAudioBufferValidation(t *testing.T) {
	if err := validation.Validate(AudioBuffer{Samples: []float32{0}, SampleRate: 16000}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validation.Validate(AudioBuffer{SampleRate: 16000}); err == nil {
		t.Error("expected error for empty samples")
	}
	if err := validation.Validate(AudioBuffer{Samples: []float32{0}, SampleRate: 100}); err == nil {
		t.Error("expected error for low sample rate")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	in := AudioBuffer{SampleRate: 16000, Channels: 1, Samples: make([]float32, 1600)}
	for i := range in.Samples {
		in.Samples[i] = float32(math.Sin(float64(i) / 10))
	}

	var sb SeekBuffer
	if err := EncodeWAV(&sb, in); err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	out, err := DecodeWAV(bytes.NewReader(sb.Bytes()))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if out.SampleRate != 16000 || out.Channels != 1 {
		t.Errorf("unexpected format rate=%d channels=%d", out.SampleRate, out.Channels)
	}
	if len(out.Samples) != len(in.Samples) {
		t.Fatalf("expected %d samples, got %d", len(in.Samples), len(out.Samples))
	}
	for i := range in.Samples {
		if d := math.Abs(float64(in.Samples[i] - out.Samples[i])); d > 0.001 {
			t.Fatalf("sample %d differs by %f", i, d)
		}
	}
}

func TestDecodeWAVInvalid(t *testing.T) {
	if _, err := DecodeWAV(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Error("expected error for invalid input")
	}
}

func TestSeekBuffer(t *testing.T) {
	var sb SeekBuffer
	_, _ = sb.Write([]byte("hello world"))
	if _, err := sb.Seek(0, 0); err != nil {
		t.Fatal(err)
	}
	_, _ = sb.Write([]byte("J"))
	if got := string(sb.Bytes()); got != "Jello world" {
		t.Errorf("expected overwrite at start, got %q", got)
	}
	if _, err := sb.Seek(-1, 0); err == nil {
		t.Error("expected error for negative position")
	}
}

func TestDetectDevice(t *testing.T) {
	d, err := DetectDevice(context.Background())
	if err != nil {
		t.Skipf("memory detection unavailable: %v", err)
	}
	if d.TotalMemory == 0 {
		t.Error("expected non-zero total memory")
	}
	if d.OS == "" || d.Arch == "" {
		t.Error("expected OS and Arch to be set")
	}
	if d.CapableSilicon != (d.OS == "darwin" && d.Arch == "arm64") {
		t.Errorf("unexpected CapableSilicon for %s/%s", d.OS, d.Arch)
	}
}

func TestMemoryGB(t *testing.T) {
	d := DeviceCapability{TotalMemory: 8 * gib}
	if d.MemoryGB() != 8 {
		t.Errorf("expected 8, got %d", d.MemoryGB())
	}
}
