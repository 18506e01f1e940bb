package signal

import (
	"math"
	"testing"
	"time"

	"quarterhour/internal/config"
)

var fuseNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func defaultFusion() *Fusion {
	cfg := config.DefaultBot()
	return NewFusion(cfg.Signal, cfg.Risk.MinSignalConfidence)
}

func TestFuseBothLayersZeroConfidence(t *testing.T) {
	f := defaultFusion()

	out := f.Fuse(Layer1Signal{RSI: 50}, Layer2Signal{}, VWAPSignal{}, VROCSignal{Confirmed: true}, fuseNow)

	if out.Score != 0 || out.Confidence != 0 || out.ShouldTrade {
		t.Errorf("want all-zero neutral output, got score=%v confidence=%v trade=%v",
			out.Score, out.Confidence, out.ShouldTrade)
	}
	if out.RecommendedSide != SideNone {
		t.Errorf("side = %v, want none", out.RecommendedSide)
	}
	// Evidence is stamped even on the neutral path.
	if out.L1Evidence != EvidenceNeutral || out.L2Evidence != EvidenceNeutral {
		t.Errorf("evidence = %v/%v, want neutral/neutral", out.L1Evidence, out.L2Evidence)
	}
}

func TestFuseWeightedScore(t *testing.T) {
	f := defaultFusion()

	l1 := Layer1Signal{Direction: 1, Confidence: 0.5}
	l2 := Layer2Signal{Direction: 0.5, Confidence: 0.5}
	out := f.Fuse(l1, l2, VWAPSignal{}, VROCSignal{Confirmed: true}, fuseNow)

	// Defaults after renormalizing with VWAP disabled: l1 0.4, l2 0.6.
	want := 0.4*1 + 0.6*0.5
	if math.Abs(out.Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", out.Score, want)
	}
	if out.RecommendedSide != SideUp {
		t.Errorf("side = %v, want up", out.RecommendedSide)
	}
}

func TestFuseAgreementBoost(t *testing.T) {
	f := defaultFusion()

	l1 := Layer1Signal{Direction: 0.6, Confidence: 0.5}
	l2 := Layer2Signal{Direction: 0.4, Confidence: 0.5}
	out := f.Fuse(l1, l2, VWAPSignal{}, VROCSignal{Confirmed: true}, fuseNow)

	want := 0.5 * 1.4
	if math.Abs(out.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v after agreement boost", out.Confidence, want)
	}

	// The boost caps at 1.0.
	l1.Confidence, l2.Confidence = 0.9, 0.9
	out = f.Fuse(l1, l2, VWAPSignal{}, VROCSignal{Confirmed: true}, fuseNow)
	if out.Confidence != 1.0 {
		t.Errorf("confidence = %v, want capped at 1.0", out.Confidence)
	}
}

func TestFuseZeroConfidenceRedistribution(t *testing.T) {
	f := defaultFusion()

	// Layer 1 dead: its weight flows to layer 2, so the score is pure L2.
	l2 := Layer2Signal{Direction: 0.5, Confidence: 0.8}
	out := f.Fuse(Layer1Signal{RSI: 50}, l2, VWAPSignal{}, VROCSignal{Confirmed: true}, fuseNow)

	if math.Abs(out.Score-0.5) > 1e-9 {
		t.Errorf("score = %v, want 0.5 (pure layer 2)", out.Score)
	}
	if math.Abs(out.Confidence-0.8) > 1e-9 {
		t.Errorf("confidence = %v, want 0.8", out.Confidence)
	}
}

func TestFuseVWAPIncluded(t *testing.T) {
	cfg := config.DefaultBot()
	cfg.Signal.VWAPEnabled = true
	f := NewFusion(cfg.Signal, cfg.Risk.MinSignalConfidence)

	l1 := Layer1Signal{Direction: 1, Confidence: 0.5}
	l2 := Layer2Signal{Direction: 1, Confidence: 0.5}
	vwap := VWAPSignal{Valid: true, Signal: -1}
	out := f.Fuse(l1, l2, vwap, VROCSignal{Confirmed: true}, fuseNow)

	// Weights renormalize over 0.4+0.6+0.15; VWAP drags the score down.
	total := 0.4 + 0.6 + 0.15
	want := (0.4 + 0.6 - 0.15) / total
	if math.Abs(out.Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v with VWAP term", out.Score, want)
	}

	// An invalid VWAP read carries no weight at all.
	out = f.Fuse(l1, l2, VWAPSignal{}, VROCSignal{Confirmed: true}, fuseNow)
	if math.Abs(out.Score-1) > 1e-9 {
		t.Errorf("score = %v, want 1 when VWAP invalid", out.Score)
	}
}

func TestFuseVROCPenalty(t *testing.T) {
	cfg := config.DefaultBot()
	cfg.Signal.VROCEnabled = true
	f := NewFusion(cfg.Signal, cfg.Risk.MinSignalConfidence)

	l1 := Layer1Signal{Direction: 1, Confidence: 0.5}
	l2 := Layer2Signal{Direction: 1, Confidence: 0.5}

	confirmed := f.Fuse(l1, l2, VWAPSignal{}, VROCSignal{Confirmed: true}, fuseNow)
	unconfirmed := f.Fuse(l1, l2, VWAPSignal{}, VROCSignal{}, fuseNow)

	want := confirmed.Confidence * cfg.Signal.VROCConfidencePenalty
	if math.Abs(unconfirmed.Confidence-want) > 1e-9 {
		t.Errorf("penalized confidence = %v, want %v", unconfirmed.Confidence, want)
	}
}

func TestFuseTradeGate(t *testing.T) {
	f := defaultFusion()

	// Score above the buy threshold but confidence below the floor: side
	// is still recommended, trade flag stays off.
	l1 := Layer1Signal{Direction: 0.2, Confidence: 0.1}
	l2 := Layer2Signal{Direction: 0.2, Confidence: 0.1}
	out := f.Fuse(l1, l2, VWAPSignal{}, VROCSignal{Confirmed: true}, fuseNow)

	if out.RecommendedSide != SideUp {
		t.Errorf("side = %v, want up", out.RecommendedSide)
	}
	if out.ShouldTrade {
		t.Error("trade flag should be off below min confidence")
	}

	l1.Confidence, l2.Confidence = 0.6, 0.6
	out = f.Fuse(l1, l2, VWAPSignal{}, VROCSignal{Confirmed: true}, fuseNow)
	if !out.ShouldTrade {
		t.Errorf("trade flag should be on, confidence=%v", out.Confidence)
	}
}

func TestFuseLayerAgreementPenalty(t *testing.T) {
	cfg := config.DefaultBot()
	cfg.Signal.RequireLayerAgreement = true
	f := NewFusion(cfg.Signal, cfg.Risk.MinSignalConfidence)

	l1 := Layer1Signal{Direction: 0.5, Confidence: 0.6}
	l2 := Layer2Signal{Direction: -0.5, Confidence: 0.6}
	out := f.Fuse(l1, l2, VWAPSignal{}, VROCSignal{Confirmed: true}, fuseNow)

	if math.Abs(out.Confidence-0.3) > 1e-9 {
		t.Errorf("confidence = %v, want 0.3 after disagreement penalty", out.Confidence)
	}
}
