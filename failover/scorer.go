package failover

import (
	"github.com/kbukum/speechgate/transcription"
)

// Scoring constants.
const (
	memoryBonusHigh  = 10
	memoryBonusMid   = 5
	memoryTierHighGB = 8
	memoryTierMidGB  = 6
	siliconBonus     = 10
	primaryBias      = 10
	secondaryBias    = 20
)

var baseScores = map[transcription.Identity]int{
	transcription.PlatformSpeech:   100,
	transcription.NeuralOnDevice:   90,
	transcription.Hybrid:           80,
	transcription.CloudAlternative: 70,
}

// Candidate is one identity annotated for a single selection pass.
type Candidate struct {
	Identity       transcription.Identity `json:"identity"`
	BaseScore      int                    `json:"base_score"`
	EffectiveScore int                    `json:"effective_score"`
	// SkipReason is set while the identity's circuit is open.
	SkipReason string `json:"skip_reason,omitempty"`
}

// Score returns the base desirability of id on device under policy.
// It is a pure function of its inputs.
func Score(id transcription.Identity, policy Policy, device transcription.DeviceCapability) int {
	score := baseScores[id]

	if id.OnDevice() {
		switch gb := device.MemoryGB(); {
		case gb >= memoryTierHighGB:
			score += memoryBonusHigh
		case gb >= memoryTierMidGB:
			score += memoryBonusMid
		}
		if device.CapableSilicon {
			score += siliconBonus
		}
	}

	switch class := id.Class(); {
	case class == transcription.ClassPrimary && (policy == PolicyPreferPrimary || policy == PolicyPrimaryOnly):
		score += primaryBias
	case class == transcription.ClassSecondary && (policy == PolicyPreferSecondary || policy == PolicySecondaryOnly):
		score += secondaryBias
	}
	return score
}

// effectiveScore floors base minus penalty at zero.
func effectiveScore(base, penalty int) int {
	if penalty >= base {
		return 0
	}
	return base - penalty
}
