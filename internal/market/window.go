// Package market models the 15-minute binary market windows the bots trade
// and caches per-market quotes.
package market

import (
	"fmt"
	"time"
)

// WindowLength is the fixed lifetime of one up/down market.
const WindowLength = 15 * time.Minute

// Window is one 15-minute market window, aligned to quarter-hour
// boundaries in UTC.
type Window struct {
	Instrument string
	Start      time.Time
	End        time.Time
}

// CurrentWindow returns the window containing now for the given instrument
// (e.g. "btc-updown").
func CurrentWindow(instrument string, now time.Time) Window {
	start := now.UTC().Truncate(WindowLength)
	return Window{Instrument: instrument, Start: start, End: start.Add(WindowLength)}
}

// Slug identifies the market for this window, e.g.
// "btc-updown-20250601-1200".
func (w Window) Slug() string {
	return fmt.Sprintf("%s-%s", w.Instrument, w.Start.Format("20060102-1504"))
}

// Next returns the window immediately after w.
func (w Window) Next() Window {
	return Window{Instrument: w.Instrument, Start: w.End, End: w.End.Add(WindowLength)}
}

// Remaining reports how long until the window resolves; never negative.
func (w Window) Remaining(now time.Time) time.Duration {
	if d := w.End.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Contains reports whether now falls inside the window.
func (w Window) Contains(now time.Time) bool {
	return !now.Before(w.Start) && now.Before(w.End)
}

// Info is the collaborator-supplied view of a live market.
type Info struct {
	ID      string
	Slug    string
	EndTime time.Time
}

// Quote is a point-in-time price for one instrument token.
type Quote struct {
	Bid float64
	Ask float64
	Mid float64
}
