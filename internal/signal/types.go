package signal

import "time"

// Side is the direction of a binary-market position.
type Side int

const (
	SideNone Side = iota
	SideUp
	SideDown
)

func (s Side) String() string {
	switch s {
	case SideUp:
		return "up"
	case SideDown:
		return "down"
	default:
		return "none"
	}
}

// ParseSide is the inverse of Side.String; unknown values map to SideNone.
func ParseSide(s string) Side {
	switch s {
	case "up":
		return SideUp
	case "down":
		return SideDown
	default:
		return SideNone
	}
}

// Layer1Signal is the directional read on the traded instrument's own price
// history. Created fresh each tick, never mutated.
type Layer1Signal struct {
	RSI           float64
	MACD          float64
	MACDSignal    float64
	MACDHistogram float64
	Momentum      float64
	Direction     float64 // [-1, 1]
	Confidence    float64 // [0, 1]; exactly 0 only on the no-data path
}

// Layer2Signal is the directional read on the reference asset across
// timeframes.
type Layer2Signal struct {
	TimeframeSignals map[string]float64
	AlignmentCount   int
	TotalTimeframes  int
	Direction        float64 // [-1, 1]
	Confidence       float64 // [0, 1]
	Vetoed           bool    // true when the 15m/1h fighting-trend veto fired
}

// VWAPSignal carries the session VWAP read. Valid is false when the session
// is too short or carries no volume; all other fields are zero in that case.
type VWAPSignal struct {
	Valid        bool
	VWAP         float64
	Price        float64
	Upper1       float64
	Lower1       float64
	Upper2       float64
	Lower2       float64
	StdDev       float64
	BandPosition float64 // z-score of price vs VWAP
	Signal       float64 // [-1, 1]
}

// VROCSignal carries the volume-rate-of-change read and its confirmation
// verdict against the configured threshold.
type VROCSignal struct {
	VROC          float64 // percent
	CurrentVolume float64
	AvgVolume     float64
	Confirmed     bool
}

// Composite is the tick's fused output. Immutable once produced; the
// Bayesian annotations are stamped by the engine before anyone else sees it.
type Composite struct {
	Layer1 Layer1Signal
	Layer2 Layer2Signal

	Score           float64 // [-1, 1]
	Confidence      float64 // [0, 1]
	RecommendedSide Side
	ShouldTrade     bool
	Timestamp       time.Time

	// Volume diagnostics.
	VWAPEnabled      bool
	VWAPValid        bool
	VWAPValue        float64
	VWAPSignal       float64
	VWAPBandPosition float64
	VROCEnabled      bool
	VROCValue        float64
	VROCConfirmed    bool

	// Evidence bins, stamped on every output for downstream learning.
	L1Evidence Evidence
	L2Evidence Evidence

	// Bayesian annotations.
	BayesPosterior      float64
	BayesPrior          float64
	BayesConfidenceGate bool
	BayesFallback       bool
	BayesReason         string
}

// EvidencePair returns the signal's conditioning pair for the Bayesian layer.
func (c Composite) EvidencePair() EvidencePair {
	return EvidencePair{L1: c.L1Evidence, L2: c.L2Evidence}
}
