package sim

import (
	"context"
	"testing"
	"time"

	"quarterhour/internal/candle"
)

func TestCandlesAscendingAndLimited(t *testing.T) {
	w := New(1, 50000, 0.0005, 0.02, time.Now())

	for _, tf := range candle.AllTimeframes {
		s, err := w.Candles(context.Background(), tf, 300)
		if err != nil {
			t.Fatalf("candles %s: %v", tf, err)
		}
		if len(s) == 0 || len(s) > 300 {
			t.Fatalf("%s: got %d candles, want 1..300", tf, len(s))
		}
		for i := 1; i < len(s); i++ {
			if !s[i].Timestamp.After(s[i-1].Timestamp) {
				t.Fatalf("%s: candles out of order at %d", tf, i)
			}
		}
		for _, c := range s {
			if c.High < c.Low || c.High < c.Close || c.Low > c.Open {
				t.Fatalf("%s: inconsistent bar %+v", tf, c)
			}
			if c.Volume <= 0 {
				t.Fatalf("%s: non-positive volume", tf)
			}
		}
	}
}

func TestQuoteStaysInContractRange(t *testing.T) {
	w := New(7, 50000, 0.002, 0.02, time.Now())

	for i := 0; i < 10; i++ {
		q, err := w.Quote(context.Background(), "m")
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if q.Bid < 0.01 || q.Ask > 0.99 || q.Bid > q.Ask {
			t.Fatalf("quote out of range: %+v", q)
		}
	}
}

func TestExtendTrimsOldHistory(t *testing.T) {
	now := time.Now()
	w := New(5, 50000, 0.0005, 0.02, now)

	w.mu.Lock()
	w.extend(now.Add(48 * time.Hour))
	got := len(w.minutes)
	last := w.start.Add(time.Duration(got-1) * time.Minute)
	w.mu.Unlock()

	if got > maxRetainedMinutes {
		t.Fatalf("retained %d minutes, cap is %d", got, maxRetainedMinutes)
	}
	if last.Before(now.Add(48 * time.Hour).Truncate(time.Minute)) {
		t.Fatalf("trim lost the head of the walk: last minute %v", last)
	}
}

func TestPriceHistoryLength(t *testing.T) {
	w := New(3, 50000, 0.0005, 0.02, time.Now())

	pts, err := w.PriceHistory(context.Background(), "m", 120)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(pts) != 120 {
		t.Fatalf("got %d points, want 120", len(pts))
	}
	for i := 1; i < len(pts); i++ {
		if !pts[i].Timestamp.After(pts[i-1].Timestamp) {
			t.Fatalf("history out of order at %d", i)
		}
	}
	for _, p := range pts {
		if p.Price < 0.01 || p.Price > 0.99 {
			t.Fatalf("price %v outside contract range", p.Price)
		}
	}
}
