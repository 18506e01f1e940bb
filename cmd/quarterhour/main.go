package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quarterhour/internal/candle"
	"quarterhour/internal/config"
	"quarterhour/internal/db"
	"quarterhour/internal/engine"
	"quarterhour/internal/execution"
	"quarterhour/internal/feed"
	"quarterhour/internal/logging"
	"quarterhour/internal/metrics"
	"quarterhour/internal/performance"
	"quarterhour/internal/scheduler"
	"quarterhour/internal/sim"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to TOML configuration")
	instrument := flag.String("instrument", "btc-updown", "Market slug prefix to trade")
	simSeed := flag.Int64("sim-seed", time.Now().UnixNano(), "Seed for the dry-run market simulator")
	flag.Parse()

	if p := os.Getenv("QH_CONFIG_PATH"); p != "" {
		*configPath = p
	}

	bootLog := logging.New("info", "json")
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logging.New(cfg.General.LogLevel, cfg.General.LogFormat)
	log.Info().Str("config", *configPath).Msg("quarterhour starting")

	sqlDB, err := db.Open(cfg.General.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer sqlDB.Close()
	store := db.NewStore(sqlDB)
	log.Info().Str("path", cfg.General.DBPath).Msg("database initialized")

	recorder := metrics.New(prometheus.DefaultRegisterer)
	if addr := cfg.General.MetricsAddr; addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
		log.Info().Str("addr", addr).Msg("metrics server started")
	}

	// Dry-run market data: a seeded random walk stands in for the venue.
	walk := sim.New(*simSeed, 50000, 0.0005, 0.02, time.Now())
	cache := candle.NewCache(2 * cfg.Schedule.CandleRefreshInterval.Duration)
	dataFeed := feed.New(walk, cache, log)

	executor := execution.NewPaperExecutor(cfg.Bot.Trading, log)
	bot := engine.NewBot("bot-1", *instrument, engine.Deps{
		Config:   cfg.Bot,
		Log:      log,
		Metrics:  recorder,
		Candles:  cache,
		Prices:   walk,
		Store:    store,
		Executor: executor,
	})

	tracker := performance.NewTracker(sqlDB)
	sched := scheduler.New(dataFeed, []*engine.Bot{bot}, tracker, cfg.Schedule, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("scheduler error")
	}

	log.Info().Msg("quarterhour stopped")
}
