package transcription

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// DecodeWAV reads a PCM WAV stream into a normalized AudioBuffer.
func DecodeWAV(r io.ReadSeeker) (AudioBuffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return AudioBuffer{}, errors.New("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return AudioBuffer{}, fmt.Errorf("decode wav: %w", err)
	}

	depth := int(dec.BitDepth)
	if depth <= 0 {
		depth = wavBitDepth
	}
	scale := float32(math.Pow(2, float64(depth-1)))

	samples := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = float32(s) / scale
	}
	return AudioBuffer{
		Samples:    samples,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

// EncodeWAV writes b as 16-bit PCM WAV.
func EncodeWAV(w io.WriteSeeker, b AudioBuffer) error {
	channels := max(b.Channels, 1)
	enc := wav.NewEncoder(w, b.SampleRate, wavBitDepth, channels, 1)

	data := make([]int, len(b.Samples))
	for i, s := range b.Samples {
		s = min(max(s, -1), 1)
		data[i] = int(s * math.MaxInt16)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: b.SampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}

// SeekBuffer is an in-memory io.WriteSeeker for EncodeWAV.
type SeekBuffer struct {
	buf []byte
	pos int
}

// Write implements io.Writer.
func (s *SeekBuffer) Write(p []byte) (int, error) {
	if end := s.pos + len(p); end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	n := copy(s.buf[s.pos:], p)
	s.pos += n
	return n, nil
}

// Seek implements io.Seeker.
func (s *SeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(s.pos) + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	s.pos = int(abs)
	return abs, nil
}

// Bytes returns the written bytes.
func (s *SeekBuffer) Bytes() []byte { return s.buf }
