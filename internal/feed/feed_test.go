package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quarterhour/internal/candle"
)

type stubProvider struct {
	fail  map[candle.Timeframe]bool
	calls int
}

func (p *stubProvider) Candles(_ context.Context, tf candle.Timeframe, limit int) (candle.Series, error) {
	p.calls++
	if p.fail[tf] {
		return nil, errors.New("upstream down")
	}
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := make(candle.Series, 3)
	for i := range s {
		s[i] = candle.Candle{Timestamp: base.Add(time.Duration(i) * time.Minute), Close: 100}
	}
	return s, nil
}

func TestRefreshPopulatesAllTimeframes(t *testing.T) {
	cache := candle.NewCache(time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	f := New(&stubProvider{}, cache, zerolog.Nop())
	if err := f.Refresh(context.Background(), now); err != nil {
		t.Fatal(err)
	}

	snap, fresh := cache.Snapshot(now)
	if !fresh {
		t.Fatal("cache stale right after refresh")
	}
	for _, tf := range candle.AllTimeframes {
		if len(snap.Get(tf)) != 3 {
			t.Errorf("timeframe %s has %d candles, want 3", tf, len(snap.Get(tf)))
		}
	}
}

func TestRefreshPartialFailureKeepsOldSeries(t *testing.T) {
	cache := candle.NewCache(time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	provider := &stubProvider{}
	f := New(provider, cache, zerolog.Nop())

	if err := f.Refresh(context.Background(), now); err != nil {
		t.Fatal(err)
	}

	// Second refresh fails for 1h only; the 1h series from the first
	// refresh must survive and the refresh itself is not an error.
	provider.fail = map[candle.Timeframe]bool{candle.TF1h: true}
	if err := f.Refresh(context.Background(), now.Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	snap, _ := cache.Snapshot(now.Add(2 * time.Second))
	if len(snap.Get(candle.TF1h)) != 3 {
		t.Error("1h series lost after a failed fetch")
	}
}

func TestRefreshTotalFailureReturnsError(t *testing.T) {
	cache := candle.NewCache(time.Minute)
	fail := make(map[candle.Timeframe]bool)
	for _, tf := range candle.AllTimeframes {
		fail[tf] = true
	}
	f := New(&stubProvider{fail: fail}, cache, zerolog.Nop())

	if err := f.Refresh(context.Background(), time.Now().UTC()); err == nil {
		t.Error("total fetch failure reported no error")
	}
}
