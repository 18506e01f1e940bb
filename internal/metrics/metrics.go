// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the engine's metric vectors, labelled by bot.
type Recorder struct {
	ticks        *prometheus.CounterVec
	tradesOpened *prometheus.CounterVec
	tradesClosed *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	dailyPnL     *prometheus.GaugeVec
	compositeSig *prometheus.GaugeVec
	bayesPrior   *prometheus.GaugeVec
}

// New registers the vectors with reg. Pass prometheus.DefaultRegisterer in
// production; tests use a fresh registry.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		ticks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarterhour_ticks_total",
				Help: "Decision ticks evaluated",
			},
			[]string{"bot"},
		),
		tradesOpened: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarterhour_trades_opened_total",
				Help: "Positions opened",
			},
			[]string{"bot", "side"},
		),
		tradesClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarterhour_trades_closed_total",
				Help: "Positions closed, by exit category",
			},
			[]string{"bot", "category"},
		),
		rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarterhour_trade_rejections_total",
				Help: "Entries rejected by admission control, by reason",
			},
			[]string{"bot", "reason"},
		),
		dailyPnL: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quarterhour_daily_pnl",
				Help: "Realized PnL for the current UTC day",
			},
			[]string{"bot"},
		),
		compositeSig: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quarterhour_composite_score",
				Help: "Latest composite signal score",
			},
			[]string{"bot"},
		),
		bayesPrior: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quarterhour_bayes_prior",
				Help: "Latest cached Bayesian prior",
			},
			[]string{"bot"},
		),
	}
}

func (r *Recorder) RecordTick(bot string)             { r.ticks.WithLabelValues(bot).Inc() }
func (r *Recorder) RecordOpen(bot, side string)       { r.tradesOpened.WithLabelValues(bot, side).Inc() }
func (r *Recorder) RecordClose(bot, category string)  { r.tradesClosed.WithLabelValues(bot, category).Inc() }
func (r *Recorder) RecordRejection(bot, reason string) {
	r.rejections.WithLabelValues(bot, reason).Inc()
}
func (r *Recorder) SetDailyPnL(bot string, pnl float64)  { r.dailyPnL.WithLabelValues(bot).Set(pnl) }
func (r *Recorder) SetScore(bot string, score float64)   { r.compositeSig.WithLabelValues(bot).Set(score) }
func (r *Recorder) SetPrior(bot string, prior float64)   { r.bayesPrior.WithLabelValues(bot).Set(prior) }

// Handler serves the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
