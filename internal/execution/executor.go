// Package execution turns approved entries and exits into fills. The only
// implementation is a paper executor; live order routing is a separate
// collaborator behind the same interface.
package execution

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quarterhour/internal/config"
	"quarterhour/internal/market"
	"quarterhour/internal/signal"
)

// Order is a request to open or close a binary-market position.
type Order struct {
	MarketID string
	Side     signal.Side
	Size     float64 // currency units to commit
}

// Fill is the simulated or real execution of an Order.
type Fill struct {
	OrderID string
	Price   float64
	Size    float64
	Fee     float64
	Time    time.Time
}

// Executor places orders. Implementations must be safe for sequential use
// from a single bot loop.
type Executor interface {
	Buy(order Order, quote market.Quote, now time.Time) (Fill, error)
	Sell(order Order, quote market.Quote, now time.Time) (Fill, error)
}

// PaperExecutor fills orders instantly against the current quote, nudged
// by a configured slippage offset, without touching any venue.
type PaperExecutor struct {
	cfg config.TradingConfig
	log zerolog.Logger
}

func NewPaperExecutor(cfg config.TradingConfig, log zerolog.Logger) *PaperExecutor {
	return &PaperExecutor{cfg: cfg, log: log.With().Str("component", "executor").Logger()}
}

// Buy fills at the ask plus the slippage offset.
func (e *PaperExecutor) Buy(order Order, quote market.Quote, now time.Time) (Fill, error) {
	price := clampPrice(quote.Ask + e.cfg.PriceOffset)
	return e.fill(order, price, now, "buy")
}

// Sell fills at the bid minus the slippage offset.
func (e *PaperExecutor) Sell(order Order, quote market.Quote, now time.Time) (Fill, error) {
	price := clampPrice(quote.Bid - e.cfg.PriceOffset)
	return e.fill(order, price, now, "sell")
}

func (e *PaperExecutor) fill(order Order, price float64, now time.Time, action string) (Fill, error) {
	if order.Size <= 0 {
		return Fill{}, fmt.Errorf("%s %s: non-positive size %.2f", action, order.MarketID, order.Size)
	}
	if price <= 0 {
		return Fill{}, fmt.Errorf("%s %s: no usable quote", action, order.MarketID)
	}

	f := Fill{
		OrderID: uuid.NewString(),
		Price:   price,
		Size:    order.Size,
		Fee:     price * order.Size * e.cfg.FeeRate,
		Time:    now,
	}
	e.log.Info().
		Str("action", action).
		Str("market", order.MarketID).
		Str("side", order.Side.String()).
		Float64("size", order.Size).
		Float64("price", price).
		Msg("paper fill")
	return f, nil
}

// clampPrice keeps simulated fills inside the valid (0, 1) probability
// range of a binary contract.
func clampPrice(p float64) float64 {
	if p < 0.01 {
		return 0.01
	}
	if p > 0.99 {
		return 0.99
	}
	return p
}
