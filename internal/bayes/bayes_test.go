package bayes

import (
	"math"
	"testing"
	"time"

	"quarterhour/internal/signal"
)

type memStore struct {
	rows      map[[2]signal.Evidence]*LikelihoodRow
	wins      int
	total     int
	histCalls int
}

func newMemStore() *memStore {
	return &memStore{rows: map[[2]signal.Evidence]*LikelihoodRow{}}
}

func (m *memStore) Likelihood(_ string, l1, l2 signal.Evidence) (LikelihoodRow, bool, error) {
	row, ok := m.rows[[2]signal.Evidence{l1, l2}]
	if !ok {
		return LikelihoodRow{}, false, nil
	}
	return *row, true, nil
}

func (m *memStore) RecordOutcome(_ string, l1, l2 signal.Evidence, won bool) error {
	key := [2]signal.Evidence{l1, l2}
	row, ok := m.rows[key]
	if !ok {
		row = &LikelihoodRow{L1: l1, L2: l2}
		m.rows[key] = row
	}
	if won {
		row.Wins++
		m.wins++
	} else {
		row.Losses++
	}
	row.Total++
	m.total++
	return nil
}

func (m *memStore) RecentOutcomes(_ string, _ int) (int, int, error) {
	m.histCalls++
	return m.wins, m.total, nil
}

func testConfig() Config {
	return Config{
		RollingWindow:       100,
		MinSampleSize:       10,
		DefaultConfidence:   0.5,
		ConfidenceThreshold: 0.4,
		SmoothingAlpha:      0.1,
	}
}

var gateNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestEvaluateInsufficientHistory(t *testing.T) {
	g := NewGate(testConfig(), newMemStore(), "bot-1")

	res, err := g.Evaluate(signal.EvidenceBullishWeak, signal.EvidenceNeutral, gateNow)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fallback || res.Reason != ReasonInsufficientHistory {
		t.Errorf("got %+v, want insufficient_history fallback", res)
	}
	if !res.Gate {
		t.Error("fallback must pass the gate")
	}
	if res.Posterior != 0.5 {
		t.Errorf("posterior = %v, want default 0.5", res.Posterior)
	}
}

func TestEvaluateUnseenEvidence(t *testing.T) {
	store := newMemStore()
	g := NewGate(testConfig(), store, "bot-1")

	for i := 0; i < 12; i++ {
		if err := g.RecordOutcome(signal.EvidenceBullishStrong, signal.EvidenceBullishStrong, i%2 == 0); err != nil {
			t.Fatal(err)
		}
	}

	res, err := g.Evaluate(signal.EvidenceBearishWeak, signal.EvidenceNeutral, gateNow)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fallback || res.Reason != ReasonUnseenEvidence {
		t.Errorf("got %+v, want unseen_evidence_combination fallback", res)
	}
	if !res.Gate {
		t.Error("fallback must pass the gate")
	}
}

func TestEvaluatePosterior(t *testing.T) {
	// End-to-end: counters chosen so prior ~0.6 and the pair row gives
	// p(e|win) ~0.8, p(e|loss) ~0.2.
	cfg := testConfig()
	cfg.SmoothingAlpha = 0.0001 // negligible smoothing for the worked numbers
	store := newMemStore()
	g := NewGate(cfg, store, "bot-1")

	// 60 wins / 100 trades; the pair observed 10 times with 8 wins.
	pair := [2]signal.Evidence{signal.EvidenceBullishStrong, signal.EvidenceBullishWeak}
	other := [2]signal.Evidence{signal.EvidenceNeutral, signal.EvidenceNeutral}
	for i := 0; i < 10; i++ {
		if err := store.RecordOutcome("bot-1", pair[0], pair[1], i < 8); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 90; i++ {
		if err := store.RecordOutcome("bot-1", other[0], other[1], i < 52); err != nil {
			t.Fatal(err)
		}
	}

	res, err := g.Evaluate(pair[0], pair[1], gateNow)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fallback {
		t.Fatalf("unexpected fallback: %+v", res)
	}
	if math.Abs(res.Prior-0.6) > 0.001 {
		t.Errorf("prior = %v, want ~0.6", res.Prior)
	}
	// p(e|win)=0.8, p(e|loss)=0.2 over this row: posterior = 0.48/0.56.
	want := 0.8 * 0.6 / (0.8*0.6 + 0.2*0.4)
	if math.Abs(res.Posterior-want) > 0.01 {
		t.Errorf("posterior = %v, want ~%v", res.Posterior, want)
	}
	if !res.Gate {
		t.Error("posterior above threshold must pass the gate")
	}
}

func TestPosteriorOdds(t *testing.T) {
	// prior 0.6, p(e|win) 0.8, p(e|loss) 0.3: posterior 0.48/0.60 = 0.8.
	if got := posteriorOdds(0.6, 0.8, 0.3); math.Abs(got-0.8) > 1e-9 {
		t.Errorf("posteriorOdds = %v, want 0.8", got)
	}
	if got := posteriorOdds(0.5, 0, 0); got != 0.5 {
		t.Errorf("posteriorOdds with zero evidence probability = %v, want 0.5", got)
	}
}

func TestPriorSmoothing(t *testing.T) {
	cfg := testConfig()
	store := newMemStore()
	g := NewGate(cfg, store, "bot-1")

	for i := 0; i < 10; i++ {
		if err := store.RecordOutcome("bot-1", signal.EvidenceNeutral, signal.EvidenceNeutral, i < 7); err != nil {
			t.Fatal(err)
		}
	}

	got, err := g.Prior(gateNow)
	if err != nil {
		t.Fatal(err)
	}
	want := (7 + 0.1) / (10 + 0.2)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("prior = %v, want %v", got, want)
	}
}

func TestPriorCaching(t *testing.T) {
	store := newMemStore()
	g := NewGate(testConfig(), store, "bot-1")

	for i := 0; i < 10; i++ {
		if err := store.RecordOutcome("bot-1", signal.EvidenceNeutral, signal.EvidenceNeutral, true); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := g.Prior(gateNow); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Prior(gateNow.Add(30 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if store.histCalls != 1 {
		t.Fatalf("history loaded %d times within the TTL, want 1", store.histCalls)
	}

	// Past the TTL the prior recomputes.
	if _, err := g.Prior(gateNow.Add(61 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if store.histCalls != 2 {
		t.Errorf("history loaded %d times after TTL expiry, want 2", store.histCalls)
	}

	// Recording an outcome invalidates the cache immediately.
	if err := g.RecordOutcome(signal.EvidenceNeutral, signal.EvidenceNeutral, false); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Prior(gateNow.Add(62 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if store.histCalls != 3 {
		t.Errorf("history loaded %d times after invalidation, want 3", store.histCalls)
	}
}

func TestPriorBelowMinSampleNotCached(t *testing.T) {
	store := newMemStore()
	g := NewGate(testConfig(), store, "bot-1")

	got, err := g.Prior(gateNow)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0.5 {
		t.Errorf("prior = %v, want 0.5 below minimum sample size", got)
	}

	// The 0.5 placeholder is not cached: a real prior appears as soon as
	// history crosses the minimum, without waiting for a TTL.
	for i := 0; i < 10; i++ {
		if err := store.RecordOutcome("bot-1", signal.EvidenceNeutral, signal.EvidenceNeutral, true); err != nil {
			t.Fatal(err)
		}
	}
	got, err = g.Prior(gateNow.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if got == 0.5 {
		t.Error("prior still 0.5 after history crossed the minimum sample size")
	}
}
