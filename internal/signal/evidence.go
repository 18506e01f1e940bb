package signal

// Evidence is the discretized bin of a layer's direction score, used as the
// Bayesian conditioning variable. The enumeration is closed: five bins per
// layer, 25 pair combinations.
type Evidence int

const (
	EvidenceBearishStrong Evidence = iota
	EvidenceBearishWeak
	EvidenceNeutral
	EvidenceBullishWeak
	EvidenceBullishStrong
)

// evidenceThresholds are the ordered lower bounds for each bin, strongest
// bullish first. A direction ≥ threshold lands in that bin.
var evidenceThresholds = [...]struct {
	min float64
	ev  Evidence
}{
	{0.5, EvidenceBullishStrong},
	{0.2, EvidenceBullishWeak},
	{-0.2, EvidenceNeutral},
	{-0.5, EvidenceBearishWeak},
}

// BinEvidence maps a direction score in [-1, 1] to its evidence category.
func BinEvidence(direction float64) Evidence {
	for _, t := range evidenceThresholds {
		if direction >= t.min {
			return t.ev
		}
	}
	return EvidenceBearishStrong
}

func (e Evidence) String() string {
	switch e {
	case EvidenceBullishStrong:
		return "bullish_strong"
	case EvidenceBullishWeak:
		return "bullish_weak"
	case EvidenceNeutral:
		return "neutral"
	case EvidenceBearishWeak:
		return "bearish_weak"
	case EvidenceBearishStrong:
		return "bearish_strong"
	default:
		return "neutral"
	}
}

// ParseEvidence converts a stored string back to its category. Unknown
// strings map to EvidenceNeutral so stale rows never break posterior
// computation.
func ParseEvidence(s string) Evidence {
	switch s {
	case "bullish_strong":
		return EvidenceBullishStrong
	case "bullish_weak":
		return EvidenceBullishWeak
	case "bearish_weak":
		return EvidenceBearishWeak
	case "bearish_strong":
		return EvidenceBearishStrong
	default:
		return EvidenceNeutral
	}
}

// EvidencePair is the joint conditioning variable for the Bayesian layer.
type EvidencePair struct {
	L1 Evidence
	L2 Evidence
}
