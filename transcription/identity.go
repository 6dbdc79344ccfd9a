package transcription

import "fmt"

// Identity tags a transcription backend kind. It keys every health and
// scoring lookup.
type Identity string

// Known identities, in declaration order.
const (
	PlatformSpeech   Identity = "platform-speech"
	NeuralOnDevice   Identity = "neural-on-device"
	Hybrid           Identity = "hybrid"
	CloudAlternative Identity = "cloud-alternative"
)

var identities = []Identity{PlatformSpeech, NeuralOnDevice, Hybrid, CloudAlternative}

// Identities returns every known identity in declaration order.
func Identities() []Identity {
	out := make([]Identity, len(identities))
	copy(out, identities)
	return out
}

// ParseIdentity converts s into a known Identity.
func ParseIdentity(s string) (Identity, error) {
	for _, id := range identities {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown provider identity %q", s)
}

// Valid reports whether i is a known identity.
func (i Identity) Valid() bool {
	_, err := ParseIdentity(string(i))
	return err == nil
}

// Class returns the class the identity belongs to.
func (i Identity) Class() Class {
	switch i {
	case PlatformSpeech:
		return ClassPrimary
	case NeuralOnDevice, Hybrid:
		return ClassSecondary
	default:
		return ClassAlternative
	}
}

// OnDevice reports whether the backend runs locally and benefits from
// device memory and silicon.
func (i Identity) OnDevice() bool {
	return i != CloudAlternative
}

func (i Identity) String() string { return string(i) }

// Class groups identities for selection policies.
type Class int

const (
	// ClassPrimary is the platform-native streaming backend.
	ClassPrimary Class = iota
	// ClassSecondary is the on-device neural family.
	ClassSecondary
	// ClassAlternative covers everything else, such as remote services.
	ClassAlternative
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassPrimary:
		return "primary"
	case ClassSecondary:
		return "secondary"
	case ClassAlternative:
		return "alternative"
	default:
		return "unknown"
	}
}
