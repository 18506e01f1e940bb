package signal

import (
	"time"

	"quarterhour/internal/config"
	"quarterhour/internal/indicator"
)

// agreementBoost multiplies composite confidence when both core layers
// point the same way.
const agreementBoost = 1.4

// disagreementPenalty halves confidence when a configured agreement or
// alignment requirement is not met.
const disagreementPenalty = 0.5

// Fusion combines the two core layers plus the optional VWAP direction into
// a single composite signal.
type Fusion struct {
	cfg     config.SignalConfig
	minConf float64
}

func NewFusion(cfg config.SignalConfig, minSignalConfidence float64) *Fusion {
	return &Fusion{cfg: cfg, minConf: minSignalConfidence}
}

// Fuse produces the composite signal for one tick. Evidence bins are
// stamped on every output, traded or not.
func (f *Fusion) Fuse(l1 Layer1Signal, l2 Layer2Signal, vwap VWAPSignal, vroc VROCSignal, now time.Time) Composite {
	out := Composite{
		Layer1:     l1,
		Layer2:     l2,
		Timestamp:  now,
		L1Evidence: BinEvidence(l1.Direction),
		L2Evidence: BinEvidence(l2.Direction),

		VWAPEnabled:      f.cfg.VWAPEnabled,
		VWAPValid:        vwap.Valid,
		VWAPValue:        vwap.VWAP,
		VWAPSignal:       vwap.Signal,
		VWAPBandPosition: vwap.BandPosition,

		VROCEnabled:   f.cfg.VROCEnabled,
		VROCValue:     vroc.VROC,
		VROCConfirmed: vroc.Confirmed,
	}

	// Nothing to fuse when neither core layer produced any conviction.
	if l1.Confidence == 0 && l2.Confidence == 0 {
		return out
	}

	w1 := f.cfg.Layer1Weight
	w2 := f.cfg.Layer2Weight
	wv := 0.0
	if f.cfg.VWAPEnabled && vwap.Valid {
		wv = f.cfg.VWAPWeight
	}

	if total := w1 + w2 + wv; total > 0 {
		w1, w2, wv = w1/total, w2/total, wv/total
	}

	// A zero-confidence layer contributes nothing; hand its weight to the
	// others in proportion.
	if l1.Confidence == 0 {
		w1, w2, wv = redistribute(w1, w2, wv)
	}
	if l2.Confidence == 0 {
		w2, w1, wv = redistribute(w2, w1, wv)
	}

	score := w1*l1.Direction + w2*l2.Direction + wv*vwap.Signal

	// Confidence comes from the core layers only; VWAP has no confidence
	// of its own.
	var confidence float64
	if cw := w1 + w2; cw > 0 {
		confidence = (w1*l1.Confidence + w2*l2.Confidence) / cw
	}

	if l1.Direction*l2.Direction > 0 {
		confidence = indicator.Clip(confidence*agreementBoost, 0, 1)
	}

	if f.cfg.RequireLayerAgreement && l1.Direction*l2.Direction < 0 {
		confidence *= disagreementPenalty
	}
	if f.cfg.MinL2Alignment > 0 && l2.AlignmentCount < f.cfg.MinL2Alignment {
		confidence *= disagreementPenalty
	}

	if f.cfg.VROCEnabled && !vroc.Confirmed {
		confidence *= f.cfg.VROCConfidencePenalty
	}

	out.Score = indicator.Clip(score, -1, 1)
	out.Confidence = indicator.Clip(confidence, 0, 1)

	if out.Score >= f.cfg.BuyThreshold {
		out.RecommendedSide = SideUp
	} else if out.Score <= -f.cfg.BuyThreshold {
		out.RecommendedSide = SideDown
	}
	out.ShouldTrade = out.RecommendedSide != SideNone && out.Confidence >= f.minConf

	return out
}

// redistribute zeroes the first weight and splits it across the other two
// in proportion. If both remaining weights are zero the full weight moves
// to the second slot so the fused score still has a source.
func redistribute(drop, a, b float64) (zero, newA, newB float64) {
	rest := a + b
	if rest == 0 {
		return 0, drop + a, b
	}
	return 0, a + drop*a/rest, b + drop*b/rest
}
