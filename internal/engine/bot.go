// Package engine runs the per-bot decision loop: one Bot owns one market
// instrument, its signal analyzers, its Bayesian gate, its risk manager,
// and at most one open position.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quarterhour/internal/bayes"
	"quarterhour/internal/candle"
	"quarterhour/internal/config"
	"quarterhour/internal/db"
	"quarterhour/internal/execution"
	"quarterhour/internal/exit"
	"quarterhour/internal/market"
	"quarterhour/internal/metrics"
	"quarterhour/internal/risk"
	"quarterhour/internal/signal"
)

// priceHistoryLimit is how many instrument price samples each tick requests.
const priceHistoryLimit = 120

// PriceSource supplies the traded instrument's quotes and price history.
// The up-side token is quoted; the down side is derived as its complement.
type PriceSource interface {
	Quote(ctx context.Context, marketID string) (market.Quote, error)
	PriceHistory(ctx context.Context, marketID string, limit int) ([]candle.PricePoint, error)
}

// Position is the bot's single open trade.
type Position struct {
	TradeID      string
	MarketID     string
	Side         signal.Side
	Stake        float64
	Shares       float64
	EntryPrice   float64
	CurrentPrice float64
	PeakPrice    float64
	EntryTime    time.Time
	L1Evidence   signal.Evidence
	L2Evidence   signal.Evidence
}

// Deps are the collaborators injected into a Bot.
type Deps struct {
	Config   config.BotConfig
	Log      zerolog.Logger
	Metrics  *metrics.Recorder
	Candles  *candle.Cache
	Prices   PriceSource
	Store    *db.Store
	Executor execution.Executor
}

// Bot is one independent trading loop. Not safe for concurrent Ticks; the
// scheduler guarantees sequential calls.
type Bot struct {
	id         string
	instrument string
	cfg        config.BotConfig
	log        zerolog.Logger
	metrics    *metrics.Recorder

	candles  *candle.Cache
	prices   PriceSource
	store    *db.Store
	executor execution.Executor

	l1     *signal.Layer1Analyzer
	l2     *signal.Layer2Analyzer
	volume *signal.VolumeContext
	fusion *signal.Fusion
	gate   *bayes.Gate
	risk   *risk.Manager
	exits  *exit.Engine

	sessionID string
	window    market.Window
	position  *Position
}

// NewBot wires a bot for one instrument (e.g. "btc-updown").
func NewBot(id, instrument string, deps Deps) *Bot {
	cfg := deps.Config
	return &Bot{
		id:         id,
		instrument: instrument,
		cfg:        cfg,
		log:        deps.Log.With().Str("bot", id).Logger(),
		metrics:    deps.Metrics,
		candles:    deps.Candles,
		prices:     deps.Prices,
		store:      deps.Store,
		executor:   deps.Executor,
		l1:         signal.NewLayer1Analyzer(cfg.Signal),
		l2:         signal.NewLayer2Analyzer(cfg.Signal),
		volume:     signal.NewVolumeContext(cfg.Signal),
		fusion:     signal.NewFusion(cfg.Signal, cfg.Risk.MinSignalConfidence),
		gate: bayes.NewGate(bayes.Config{
			RollingWindow:       cfg.Bayesian.RollingWindow,
			MinSampleSize:       cfg.Bayesian.MinSampleSize,
			DefaultConfidence:   cfg.Bayesian.DefaultConfidence,
			ConfidenceThreshold: cfg.Bayesian.ConfidenceThreshold,
			SmoothingAlpha:      cfg.Bayesian.SmoothingAlpha,
		}, deps.Store, id),
		risk:  risk.NewManager(cfg.Risk),
		exits: exit.NewEngine(cfg.Exit),
	}
}

// ID returns the bot's stable identifier.
func (b *Bot) ID() string { return b.id }

// StartSession opens a persisted session for this run.
func (b *Bot) StartSession(now time.Time) error {
	b.sessionID = uuid.NewString()
	b.window = market.CurrentWindow(b.instrument, now)
	return b.store.CreateSession(db.Session{
		ID:        b.sessionID,
		BotID:     b.id,
		StartedAt: now,
	})
}

// EndSession closes the session. An open position is resolved at its last
// known price first so no trade is left dangling.
func (b *Bot) EndSession(now time.Time) error {
	if b.position != nil {
		b.resolveAtWindowEnd(now)
	}
	return b.store.EndSession(b.sessionID, now, b.risk.State(now).DailyPnL)
}

// Tick evaluates one decision cycle. It always produces a composite
// signal, neutral when data is missing; collaborator failures are logged
// and degrade the tick, never abort it.
func (b *Bot) Tick(ctx context.Context, now time.Time) signal.Composite {
	b.metrics.RecordTick(b.id)
	b.rollWindow(now)

	comp := b.computeSignal(ctx, now)
	b.applyBayes(&comp, now)

	b.metrics.SetScore(b.id, comp.Score)
	if err := b.store.InsertAudit(db.AuditRecord{
		BotID:    b.id,
		MarketID: b.window.Slug(),
		Signal:   comp,
	}, now); err != nil {
		b.log.Warn().Err(err).Msg("audit insert failed")
	}

	if b.position != nil {
		b.manageExit(ctx, comp, now)
	} else {
		b.tryEnter(ctx, comp, now)
	}

	b.metrics.SetDailyPnL(b.id, b.risk.State(now).DailyPnL)
	return comp
}

// rollWindow detects the 15-minute boundary, resolves any position the
// market carried into resolution, and resets per-window risk counters.
func (b *Bot) rollWindow(now time.Time) {
	current := market.CurrentWindow(b.instrument, now)
	if current.Start.Equal(b.window.Start) {
		return
	}
	if b.position != nil {
		b.resolveAtWindowEnd(b.window.End)
	}
	b.window = current
	b.risk.OnMarketChange()
	b.log.Debug().Str("market", current.Slug()).Msg("rolled to new window")
}

// computeSignal gathers inputs and fuses the layers. Any missing input
// collapses to that layer's neutral form.
func (b *Bot) computeSignal(ctx context.Context, now time.Time) signal.Composite {
	points, err := b.prices.PriceHistory(ctx, b.window.Slug(), priceHistoryLimit)
	if err != nil {
		b.log.Warn().Err(err).Msg("price history unavailable")
		points = nil
	}
	l1 := b.l1.Analyze(points)

	snap, fresh := b.candles.Snapshot(now)
	if !fresh {
		b.log.Warn().Msg("candle snapshot stale")
	}
	l2 := b.l2.Analyze(snap)

	oneMin := snap.Get(candle.TF1m)
	var assetPrice float64
	if last, ok := oneMin.Last(); ok {
		assetPrice = last.Close
	}
	vwap := b.volume.VWAP(oneMin, assetPrice, now)
	vroc := b.volume.VROC(oneMin)

	return b.fusion.Fuse(l1, l2, vwap, vroc, now)
}

// applyBayes stamps the posterior onto the composite and withdraws the
// trade flag when the gate rejects the evidence combination.
func (b *Bot) applyBayes(comp *signal.Composite, now time.Time) {
	if !b.cfg.Bayesian.Enabled {
		comp.BayesConfidenceGate = true
		return
	}

	res, err := b.gate.Evaluate(comp.L1Evidence, comp.L2Evidence, now)
	if err != nil {
		// Persistence trouble must not block trading; fall back to the
		// default confidence like any other history gap.
		b.log.Warn().Err(err).Msg("bayes evaluation failed")
		res = bayes.Result{
			Posterior: b.cfg.Bayesian.DefaultConfidence,
			Gate:      true,
			Fallback:  true,
			Reason:    bayes.ReasonInsufficientHistory,
		}
	}

	comp.BayesPosterior = res.Posterior
	comp.BayesPrior = res.Prior
	comp.BayesConfidenceGate = res.Gate
	comp.BayesFallback = res.Fallback
	comp.BayesReason = res.Reason
	b.metrics.SetPrior(b.id, res.Prior)

	if !res.Gate {
		comp.ShouldTrade = false
	}
}

// tryEnter runs admission control and opens a position when everything
// clears.
func (b *Bot) tryEnter(ctx context.Context, comp signal.Composite, now time.Time) {
	if !comp.ShouldTrade {
		return
	}

	if b.window.Remaining(now) <= b.cfg.Risk.StopTradingBeforeClose.Duration {
		b.metrics.RecordRejection(b.id, "window_closing")
		return
	}

	decision := b.risk.CanTrade(comp, b.window.Slug(), now)
	if !decision.Allowed {
		b.metrics.RecordRejection(b.id, decision.Reason)
		b.log.Debug().Str("reason", decision.Reason).Msg("entry rejected")
		return
	}

	quote, err := b.prices.Quote(ctx, b.window.Slug())
	if err != nil {
		b.log.Warn().Err(err).Msg("quote unavailable, skipping entry")
		return
	}
	sideQ := sideQuote(comp.RecommendedSide, quote)

	if sideQ.Ask > b.cfg.Risk.MaxEntryPrice {
		b.metrics.RecordRejection(b.id, "entry_price_cap")
		return
	}

	stake := b.risk.PositionSize(now)
	if stake <= 0 {
		b.metrics.RecordRejection(b.id, "zero_position_size")
		return
	}

	fill, err := b.executor.Buy(execution.Order{
		MarketID: b.window.Slug(),
		Side:     comp.RecommendedSide,
		Size:     stake,
	}, sideQ, now)
	if err != nil {
		b.log.Error().Err(err).Msg("entry order failed")
		return
	}

	pos := &Position{
		TradeID:      fill.OrderID,
		MarketID:     b.window.Slug(),
		Side:         comp.RecommendedSide,
		Stake:        stake,
		Shares:       stake / fill.Price,
		EntryPrice:   fill.Price,
		CurrentPrice: fill.Price,
		PeakPrice:    fill.Price,
		EntryTime:    now,
		L1Evidence:   comp.L1Evidence,
		L2Evidence:   comp.L2Evidence,
	}
	if err := b.store.InsertTrade(db.Trade{
		ID:         pos.TradeID,
		BotID:      b.id,
		SessionID:  b.sessionID,
		MarketID:   pos.MarketID,
		Side:       pos.Side,
		Size:       stake,
		EntryPrice: fill.Price,
		EntryTime:  now,
		L1Evidence: pos.L1Evidence,
		L2Evidence: pos.L2Evidence,
	}); err != nil {
		b.log.Error().Err(err).Msg("trade insert failed")
	}
	b.position = pos
	b.metrics.RecordOpen(b.id, pos.Side.String())
	b.log.Info().
		Str("market", pos.MarketID).
		Str("side", pos.Side.String()).
		Float64("stake", stake).
		Float64("price", fill.Price).
		Msg("position opened")
}

// manageExit refreshes position marks and runs the exit checks; at most
// one exit per tick.
func (b *Bot) manageExit(ctx context.Context, comp signal.Composite, now time.Time) {
	pos := b.position

	quote, err := b.prices.Quote(ctx, pos.MarketID)
	if err != nil {
		b.log.Warn().Err(err).Msg("quote unavailable, holding position")
		return
	}
	sideQ := sideQuote(pos.Side, quote)
	pos.CurrentPrice = sideQ.Mid
	if pos.CurrentPrice > pos.PeakPrice {
		pos.PeakPrice = pos.CurrentPrice
	}

	snap, _ := b.candles.Snapshot(now)
	pressure := b.l2.ShortTermPressure(snap)

	decision := b.exits.Check(exit.PositionView{
		Side:         pos.Side,
		EntryPrice:   pos.EntryPrice,
		CurrentPrice: pos.CurrentPrice,
		PeakPrice:    pos.PeakPrice,
		EntryTime:    pos.EntryTime,
	}, comp, pressure, b.window.End, now)
	if !decision.Exit {
		return
	}

	fill, err := b.executor.Sell(execution.Order{
		MarketID: pos.MarketID,
		Side:     pos.Side,
		Size:     pos.Shares,
	}, sideQ, now)
	if err != nil {
		b.log.Error().Err(err).Msg("exit order failed, holding position")
		return
	}

	pnl := pos.Shares*fill.Price - fill.Fee - pos.Stake
	b.closePosition(pnl, fill.Price, decision.Reason, decision.Category, now)
}

// resolveAtWindowEnd settles a position the bot held into market
// resolution: the token converges to 1 when the side won, 0 otherwise.
func (b *Bot) resolveAtWindowEnd(at time.Time) {
	pos := b.position
	won := pos.CurrentPrice >= 0.5

	settle := 0.0
	pnl := -pos.Stake
	if won {
		settle = 1.0
		pnl = pos.Shares - pos.Stake
	}
	b.closePosition(pnl, settle, "market resolved", "resolution", at)
}

// closePosition is the single place trade results feed back into risk,
// the Bayesian gate, and persistence.
func (b *Bot) closePosition(pnl, exitPrice float64, reason, category string, now time.Time) {
	pos := b.position
	won := pnl > 0

	if err := b.store.ResolveTrade(pos.TradeID, exitPrice, pnl, reason, category, won, now); err != nil {
		b.log.Error().Err(err).Msg("trade resolution persist failed")
	}
	if err := b.gate.RecordOutcome(pos.L1Evidence, pos.L2Evidence, won); err != nil {
		b.log.Error().Err(err).Msg("outcome record failed")
	}
	b.risk.RecordTradeResult(pnl, pos.MarketID, now)
	b.metrics.RecordClose(b.id, category)
	b.log.Info().
		Str("market", pos.MarketID).
		Str("category", category).
		Float64("pnl", pnl).
		Bool("won", won).
		Msg("position closed")
	b.position = nil
}

// Status is the bot's observability snapshot.
type Status struct {
	BotID     string
	SessionID string
	Market    string
	Position  *Position
	Risk      risk.State
	Prior     float64
}

// Status reports current state for logging and dashboards.
func (b *Bot) Status(now time.Time) Status {
	prior, err := b.gate.Prior(now)
	if err != nil {
		prior = 0.5
	}
	var pos *Position
	if b.position != nil {
		copied := *b.position
		pos = &copied
	}
	return Status{
		BotID:     b.id,
		SessionID: b.sessionID,
		Market:    b.window.Slug(),
		Position:  pos,
		Risk:      b.risk.State(now),
		Prior:     prior,
	}
}

// sideQuote converts the up-token quote into the quote for the held side.
// The down token trades at the complement of the up token.
func sideQuote(side signal.Side, q market.Quote) market.Quote {
	if side == signal.SideDown {
		return market.Quote{Bid: 1 - q.Ask, Ask: 1 - q.Bid, Mid: 1 - q.Mid}
	}
	return q
}
