package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Config is the full runtime configuration: process-level settings plus the
// per-bot decision parameters. Values are defaulted and range-checked here,
// at the boundary; decision code trusts what it receives.
type Config struct {
	General  GeneralConfig  `toml:"general"`
	Schedule ScheduleConfig `toml:"schedule"`
	Bot      BotConfig      `toml:"bot"`
}

type GeneralConfig struct {
	DBPath      string `toml:"db_path" default:"./data/quarterhour.db"`
	LogLevel    string `toml:"log_level" default:"info" validate:"oneof=trace debug info warn error"`
	LogFormat   string `toml:"log_format" default:"json" validate:"oneof=json console"`
	MetricsAddr string `toml:"metrics_addr" default:""`
}

type ScheduleConfig struct {
	TickInterval          Duration `toml:"tick_interval" default:"10s"`
	CandleRefreshInterval Duration `toml:"candle_refresh_interval" default:"5s"`
	PerformanceInterval   Duration `toml:"performance_interval" default:"1h"`
}

// BotConfig groups the five tunable sections the decision engine consumes.
type BotConfig struct {
	Signal   SignalConfig   `toml:"signal"`
	Risk     RiskConfig     `toml:"risk"`
	Exit     ExitConfig     `toml:"exit"`
	Trading  TradingConfig  `toml:"trading"`
	Bayesian BayesianConfig `toml:"bayesian"`
}

type SignalConfig struct {
	// Layer 1: traded-instrument TA.
	RSIPeriod        int     `toml:"rsi_period" default:"14" validate:"gte=2,lte=100"`
	RSIOversold      float64 `toml:"rsi_oversold" default:"30" validate:"gte=5,lte=50"`
	RSIOverbought    float64 `toml:"rsi_overbought" default:"70" validate:"gte=50,lte=95"`
	MACDFast         int     `toml:"macd_fast" default:"12" validate:"gte=2,lte=100"`
	MACDSlow         int     `toml:"macd_slow" default:"26" validate:"gte=2,lte=200"`
	MACDSignal       int     `toml:"macd_signal" default:"9" validate:"gte=1,lte=100"`
	MomentumLookback int     `toml:"momentum_lookback" default:"5" validate:"gte=1,lte=100"`

	// Layer 2: reference-asset multi-timeframe EMAs.
	EMA1m  []int `toml:"ema_1m" default:"[5,13]" validate:"min=1,dive,gte=2,lte=500"`
	EMA5m  []int `toml:"ema_5m" default:"[8,21]" validate:"min=1,dive,gte=2,lte=500"`
	EMA15m []int `toml:"ema_15m" default:"[9,21,55]" validate:"min=1,dive,gte=2,lte=500"`
	EMA1h  []int `toml:"ema_1h" default:"[12,26]" validate:"min=1,dive,gte=2,lte=500"`
	EMA4h  []int `toml:"ema_4h" default:"[20,50]" validate:"min=1,dive,gte=2,lte=500"`
	EMA1d  []int `toml:"ema_1d" default:"[20,50,200]" validate:"min=1,dive,gte=2,lte=500"`

	// Fusion.
	Layer1Weight          float64 `toml:"layer1_weight" default:"0.4" validate:"gte=0,lte=1"`
	Layer2Weight          float64 `toml:"layer2_weight" default:"0.6" validate:"gte=0,lte=1"`
	BuyThreshold          float64 `toml:"buy_threshold" default:"0.08" validate:"gte=0.01,lte=0.50"`
	RequireLayerAgreement bool    `toml:"require_layer_agreement" default:"false"`
	MinL2Alignment        int     `toml:"min_l2_alignment" default:"0" validate:"gte=0,lte=6"`

	// VWAP.
	VWAPEnabled             bool    `toml:"vwap_enabled" default:"false"`
	VWAPWeight              float64 `toml:"vwap_weight" default:"0.15" validate:"gte=0,lte=1"`
	VWAPSessionResetHourUTC int     `toml:"vwap_session_reset_hour_utc" default:"0" validate:"gte=0,lte=23"`

	// VROC.
	VROCEnabled           bool    `toml:"vroc_enabled" default:"false"`
	VROCLookback          int     `toml:"vroc_lookback" default:"10" validate:"gte=2,lte=100"`
	VROCThreshold         float64 `toml:"vroc_threshold" default:"50" validate:"gte=0,lte=1000"`
	VROCConfidencePenalty float64 `toml:"vroc_confidence_penalty" default:"0.5" validate:"gt=0,lt=1"`
}

type RiskConfig struct {
	MaxPositionSize        float64  `toml:"max_position_size" default:"3.0" validate:"gt=0,lte=10000"`
	MaxTradesPerWindow     int      `toml:"max_trades_per_window" default:"3" validate:"gte=1,lte=100"`
	MaxDailyLoss           float64  `toml:"max_daily_loss" default:"15.0" validate:"gt=0,lte=100000"`
	MinSignalConfidence    float64  `toml:"min_signal_confidence" default:"0.35" validate:"gte=0,lte=1"`
	MaxConsecutiveLosses   int      `toml:"max_consecutive_losses" default:"3" validate:"gte=1,lte=100"`
	Cooldown               Duration `toml:"cooldown" default:"30m"`
	StopTradingBeforeClose Duration `toml:"stop_trading_before_close" default:"5m"`
	MaxEntryPrice          float64  `toml:"max_entry_price" default:"0.80" validate:"gt=0,lte=1"`
}

type ExitConfig struct {
	Enabled                 bool     `toml:"enabled" default:"true"`
	TrailingStopPct         float64  `toml:"trailing_stop_pct" default:"0.20" validate:"gte=0.02,lte=0.40"`
	HardStopPct             float64  `toml:"hard_stop_pct" default:"0.50" validate:"gte=0.05,lte=0.95"`
	SignalReversalThreshold float64  `toml:"signal_reversal_threshold" default:"0.15" validate:"gte=0.01,lte=1"`
	TightenAt               Duration `toml:"tighten_at" default:"3m"`
	TightenedTrailingPct    float64  `toml:"tightened_trailing_pct" default:"0.10" validate:"gte=0.02,lte=0.40"`
	FinalZone               Duration `toml:"final_zone" default:"1m"`
	FinalTrailingPct        float64  `toml:"final_trailing_pct" default:"0.05" validate:"gte=0.02,lte=0.40"`
	MinHold                 Duration `toml:"min_hold" default:"20s"`

	// Short-term pressure scaling of the trailing stop.
	PressureScalingEnabled bool    `toml:"pressure_scaling_enabled" default:"true"`
	PressureWidenMax       float64 `toml:"pressure_widen_max" default:"1.5" validate:"gte=1,lte=3"`
	PressureTightenMin     float64 `toml:"pressure_tighten_min" default:"0.4" validate:"gt=0,lte=1"`
	PressureNeutralZone    float64 `toml:"pressure_neutral_zone" default:"0.15" validate:"gte=0,lt=1"`

	// Take profit.
	HardTPEnabled     bool    `toml:"hard_tp_enabled" default:"true"`
	HardTPPct         float64 `toml:"hard_tp_pct" default:"0.25" validate:"gt=0,lte=2"`
	ScalingTPEnabled  bool    `toml:"scaling_tp_enabled" default:"false"`
	ScalingTPPct      float64 `toml:"scaling_tp_pct" default:"0.50" validate:"gte=0,lte=1"`
	ScalingTPMinTrail float64 `toml:"scaling_tp_min_trail" default:"0.02" validate:"gte=0.01,lte=0.40"`
}

type TradingConfig struct {
	DryRun      bool    `toml:"dry_run" default:"true"`
	PriceOffset float64 `toml:"price_offset" default:"0.01" validate:"gte=0,lte=0.10"`
	FeeRate     float64 `toml:"fee_rate" default:"0" validate:"gte=0,lte=0.10"`
}

type BayesianConfig struct {
	Enabled             bool    `toml:"enabled" default:"true"`
	RollingWindow       int     `toml:"rolling_window" default:"100" validate:"gte=10,lte=10000"`
	MinSampleSize       int     `toml:"min_sample_size" default:"50" validate:"gte=1,lte=1000"`
	DefaultConfidence   float64 `toml:"default_confidence" default:"0.5" validate:"gte=0,lte=1"`
	ConfidenceThreshold float64 `toml:"confidence_threshold" default:"0.4" validate:"gte=0.2,lte=0.6"`
	SmoothingAlpha      float64 `toml:"smoothing_alpha" default:"0.1" validate:"gte=0.01,lte=1.0"`
}

// Duration wraps time.Duration for TOML unmarshaling.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

var validate = validator.New()

// Load reads, defaults and validates a config file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("setting defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every field at its default value.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// defaults.Set only fails on malformed struct tags.
		panic(err)
	}
	return cfg
}

// DefaultBot returns a BotConfig with every field at its default value.
func DefaultBot() BotConfig {
	return Default().Bot
}

// Validate enforces the documented parameter ranges plus cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return c.Bot.Validate()
}

// Validate range-checks a bot section on its own, for callers constructing
// BotConfig values programmatically.
func (b *BotConfig) Validate() error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("validating bot config: %w", err)
	}
	if b.Signal.MACDFast >= b.Signal.MACDSlow {
		return fmt.Errorf("validating bot config: macd_fast (%d) must be below macd_slow (%d)",
			b.Signal.MACDFast, b.Signal.MACDSlow)
	}
	if b.Signal.RSIOversold >= b.Signal.RSIOverbought {
		return fmt.Errorf("validating bot config: rsi_oversold (%.1f) must be below rsi_overbought (%.1f)",
			b.Signal.RSIOversold, b.Signal.RSIOverbought)
	}
	if b.Exit.PressureTightenMin > b.Exit.PressureWidenMax {
		return fmt.Errorf("validating bot config: pressure_tighten_min (%.2f) above pressure_widen_max (%.2f)",
			b.Exit.PressureTightenMin, b.Exit.PressureWidenMax)
	}
	return nil
}
