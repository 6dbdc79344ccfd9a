package failover

import (
	"strings"
	"unicode/utf8"

	"github.com/kbukum/speechgate/transcription"
)

// Rejection reasons reported by the quality gate.
const (
	rejectConfidence   = "confidence"
	rejectLength       = "length"
	rejectDiversity    = "diversity"
	rejectDominantChar = "dominant_char"
)

// dominantCheckMinLength is the length the dominant-character check needs to exceed.
const dominantCheckMinLength = 5

// IsAcceptable reports whether result passes the quality thresholds in cfg.
func IsAcceptable(result transcription.Result, cfg Config) bool {
	return qualityCheck(result, cfg) == ""
}

// qualityCheck returns the first failed check, or "" when result passes.
// Character diversity is only judged on text at least twice the minimum length.
func qualityCheck(result transcription.Result, cfg Config) string {
	// NaN confidence fails this comparison and is rejected.
	if !(result.Confidence >= cfg.MinConfidence) {
		return rejectConfidence
	}

	text := strings.TrimSpace(result.Text)
	length := utf8.RuneCountInString(text)
	if length < cfg.MinTextLength {
		return rejectLength
	}
	if length < 2*cfg.MinTextLength {
		return ""
	}

	counts := make(map[rune]int)
	dominant := 0
	for _, r := range text {
		counts[r]++
		dominant = max(dominant, counts[r])
	}
	if len(counts) < cfg.MinUniqueChars {
		return rejectDiversity
	}
	if float64(dominant)/float64(length) > cfg.MaxDominantCharRatio && length > dominantCheckMinLength {
		return rejectDominantChar
	}
	return ""
}

// gatesPartial reports whether a streaming partial is long enough to be judged.
func gatesPartial(result transcription.Result, cfg Config) bool {
	return utf8.RuneCountInString(strings.TrimSpace(result.Text)) > 4*cfg.MinTextLength
}
