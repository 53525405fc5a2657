// Package config loads and validates the engine's YAML configuration,
// with one struct per concern and a Validate() method on each for
// cross-field invariants. Updates are applied via an atomically-swapped
// pointer, visible to readers only at their next scheduler tick.
package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/riftline/ineffic-engine/internal/money"
)

// DepegConfig configures the Depeg Detector.
type DepegConfig struct {
	Stablecoins          []string `yaml:"stablecoins"`
	MinExchangesRequired int      `yaml:"min_exchanges_required"`
	MinLiquidityUsd      float64  `yaml:"min_liquidity_usd"`
	MaxPriceAgeMs        int64    `yaml:"max_price_age_ms"`
	ThresholdMinor       float64  `yaml:"threshold_minor"`
	ThresholdModerate    float64  `yaml:"threshold_moderate"`
	ThresholdSevere      float64  `yaml:"threshold_severe"`
	ThresholdExtreme     float64  `yaml:"threshold_extreme"`
}

func (c DepegConfig) Validate() error {
	if c.MinExchangesRequired < 1 {
		return fmt.Errorf("depeg.min_exchanges_required must be >= 1")
	}
	if !(c.ThresholdMinor < c.ThresholdModerate && c.ThresholdModerate < c.ThresholdSevere && c.ThresholdSevere < c.ThresholdExtreme) {
		return fmt.Errorf("depeg threshold ladder must be strictly increasing")
	}
	return nil
}

// CorrelationConfig configures the Correlation Store.
type CorrelationConfig struct {
	ReferenceSymbol   string  `yaml:"reference_symbol"`
	Altcoins          []string `yaml:"altcoins"`
	MinSamples        int     `yaml:"min_samples"`
	LookbackHours     int     `yaml:"lookback_hours"`
	BreakdownDelta    float64 `yaml:"breakdown_delta"`
	MinConfidence     float64 `yaml:"min_confidence"`
	CheckIntervalSecs int     `yaml:"check_interval_secs"`
}

func (c CorrelationConfig) Validate() error {
	if c.MinSamples < 1 {
		return fmt.Errorf("correlation.min_samples must be >= 1")
	}
	if c.ReferenceSymbol == "" {
		return fmt.Errorf("correlation.reference_symbol is required")
	}
	return nil
}

// ClassifierConfig configures the Opportunity Classifier. Weight fields
// must sum to 1.0.
type ClassifierConfig struct {
	WeightProfit     float64 `yaml:"weight_profit"`
	WeightLiquidity  float64 `yaml:"weight_liquidity"`
	WeightHistorical float64 `yaml:"weight_historical"`
	WeightReversion  float64 `yaml:"weight_reversion"`
	WeightMarket     float64 `yaml:"weight_market"`
	FractionalKelly  float64 `yaml:"fractional_kelly"`
	AbsoluteCapUsd   float64 `yaml:"absolute_cap_usd"`
}

func (c ClassifierConfig) Validate() error {
	sum := c.WeightProfit + c.WeightLiquidity + c.WeightHistorical + c.WeightReversion + c.WeightMarket
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("classifier sub-score weights must sum to 1.0, got %f", sum)
	}
	return nil
}

// PlanBuilderConfig configures the Execution Plan Builder.
type PlanBuilderConfig struct {
	MarketThresholdPct float64 `yaml:"market_threshold_pct"`
	TWAPThresholdPct   float64 `yaml:"twap_threshold_pct"`
	SlippageTolerance  float64 `yaml:"slippage_tolerance"`
	MaxExecutionSecs   int     `yaml:"max_execution_secs"`
}

func (c PlanBuilderConfig) Validate() error {
	if c.MarketThresholdPct >= c.TWAPThresholdPct {
		return fmt.Errorf("planbuilder.market_threshold_pct must be less than twap_threshold_pct")
	}
	return nil
}

// ExitEngineConfig configures the Exit Signal Engine.
type ExitEngineConfig struct {
	MonitoringCadenceSecs int     `yaml:"monitoring_cadence_secs"`
	TargetPct             float64 `yaml:"target_pct"`
	StopLossPct           float64 `yaml:"stop_loss_pct"`
	EmergencyDrawdownPct  float64 `yaml:"emergency_drawdown_pct"`
}

func (c ExitEngineConfig) Validate() error {
	if c.StopLossPct <= 0 || c.StopLossPct >= c.EmergencyDrawdownPct {
		return fmt.Errorf("exitengine.stop_loss_pct must be positive and less than emergency_drawdown_pct")
	}
	return nil
}

// ServerConfig configures the HTTP control surface (internal/httpapi).
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

func (c ServerConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	return nil
}

// InfraConfig points the engine at its optional persistence backends.
// Both fields may be left blank: the engine runs with in-memory-only
// history and no seeded correlation baseline when neither is configured.
type InfraConfig struct {
	PostgresDSN      string `yaml:"postgres_dsn"`
	RedisAddr        string `yaml:"redis_addr"`
	QueryTimeoutSecs int    `yaml:"query_timeout_secs"`
}

func (c InfraConfig) Validate() error {
	if c.QueryTimeoutSecs < 0 {
		return fmt.Errorf("infra.query_timeout_secs must be >= 0")
	}
	return nil
}

// Config is the engine's top-level configuration document.
type Config struct {
	Depeg       DepegConfig       `yaml:"depeg"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	PlanBuilder PlanBuilderConfig `yaml:"plan_builder"`
	ExitEngine  ExitEngineConfig  `yaml:"exit_engine"`
	Server      ServerConfig      `yaml:"server"`
	Infra       InfraConfig       `yaml:"infra"`
}

// Validate runs every sub-config's Validate, collecting all failures.
func (c Config) Validate() error {
	for _, v := range []interface{ Validate() error }{
		c.Depeg, c.Correlation, c.Classifier, c.PlanBuilder, c.ExitEngine, c.Server, c.Infra,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Load reads and validates a Config document from path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Store holds the live configuration, atomically swapped on update so
// readers always see either the old or new value, never a partial write.
type Store struct {
	ptr atomic.Pointer[Config]
}

// NewStore creates a Store seeded with initial.
func NewStore(initial Config) *Store {
	s := &Store{}
	s.ptr.Store(&initial)
	return s
}

// Current returns the currently active configuration.
func (s *Store) Current() Config {
	return *s.ptr.Load()
}

// Update atomically swaps in next after validating it. The new value is
// visible to subsequent Current() calls immediately; in-flight scheduler
// iterations continue to observe the previous snapshot until their next
// tick.
func (s *Store) Update(next Config) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("rejecting config update: %w", err)
	}
	s.ptr.Store(&next)
	return nil
}

// moneyOf is a small helper for callers converting float64 config fields
// into the engine's fixed-decimal type at the config/domain boundary.
func moneyOf(f float64) money.Dec { return money.D(f) }
