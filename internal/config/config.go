// Package config loads the process-wide configuration recognized by
// the supervisor: credentials from the environment, trading parameters
// and evolution thresholds from a YAML file with env-var overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ExchangeConfig holds exchange API credentials, populated exclusively
// from the environment — never committed to the YAML file.
type ExchangeConfig struct {
	APIKey      string `yaml:"-"`
	APISecret   string `yaml:"-"`
	APIPassword string `yaml:"-"`
}

// LLMConfig holds reasoning-provider credentials and model selection.
type LLMConfig struct {
	APIKey string `yaml:"-"`
	Model  string `yaml:"model"`
}

// EquitiesConfig holds the equities-feed credentials used by Oracle.
type EquitiesConfig struct {
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

// TradingConfig holds the parameters named in spec §6.
type TradingConfig struct {
	Symbol                    string  `yaml:"symbol"`
	InitialEquity             float64 `yaml:"initial_equity"`
	KillSwitchThreshold       float64 `yaml:"kill_switch_threshold"`
	StabilityLockHours        int     `yaml:"stability_lock_hours"`
	ReasoningIntervalMinutes  int     `yaml:"reasoning_interval_minutes"`
	GlobalRiskIntervalMinutes int     `yaml:"global_risk_interval_minutes"`
}

// EvolutionConfig holds the evolution/backtest/promotion thresholds.
type EvolutionConfig struct {
	EvolutionIntervalHours      int     `yaml:"evolution_interval_hours"`
	PromotionThresholdIterations int    `yaml:"promotion_threshold_iterations"`
	SharpeRatioThreshold        float64 `yaml:"sharpe_ratio_threshold"`
	MinSharpeDeploy             float64 `yaml:"min_sharpe_deploy"`
	MaxDrawdownDeploy           float64 `yaml:"max_drawdown_deploy"`
	WhaleThreshold              float64 `yaml:"whale_threshold"`
	SpyThreshold                float64 `yaml:"spy_threshold"`
	FlashCrashPct               float64 `yaml:"flash_crash_pct"`
	MaxDrawdownThreshold        float64 `yaml:"max_drawdown_threshold"`
}

// DatabaseConfig configures the predictions ledger's Postgres connection.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	Enabled         bool          `yaml:"enabled"`
}

// CacheConfig configures the optional Redis warm cache in front of MarketAdapter.
type CacheConfig struct {
	Addr              string        `yaml:"addr"`
	DB                int           `yaml:"db"`
	Enabled           bool          `yaml:"enabled"`
	DefaultTTLSeconds int           `yaml:"default_ttl_seconds"`
}

func (c CacheConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// PathsConfig names the on-disk artifacts owned by individual components.
type PathsConfig struct {
	EvolutionHistoryFile string `yaml:"evolution_history_file"`
	ActiveModuleFile     string `yaml:"active_module_file"`
	ActiveModuleBackup   string `yaml:"active_module_backup"`
	PromptsDir           string `yaml:"prompts_dir"`
	ReasoningTraceLog    string `yaml:"reasoning_trace_log"`
}

// HTTPConfig configures the status/metrics HTTP surface.
type HTTPConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// Config is the master configuration assembled at startup.
type Config struct {
	Exchange  ExchangeConfig  `yaml:"-"`
	LLM       LLMConfig       `yaml:"llm"`
	Equities  EquitiesConfig  `yaml:"-"`
	Trading   TradingConfig   `yaml:"trading"`
	Evolution EvolutionConfig `yaml:"evolution"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Paths     PathsConfig     `yaml:"paths"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// Default returns the documented defaults from spec §6.
func Default() Config {
	return Config{
		LLM: LLMConfig{Model: "deepseek-r1"},
		Trading: TradingConfig{
			Symbol:                    "BTC/USDT",
			InitialEquity:             1000.0,
			KillSwitchThreshold:       0.03,
			StabilityLockHours:        12,
			ReasoningIntervalMinutes:  15,
			GlobalRiskIntervalMinutes: 60,
		},
		Evolution: EvolutionConfig{
			EvolutionIntervalHours:       24,
			PromotionThresholdIterations: 100,
			SharpeRatioThreshold:         1.2,
			MinSharpeDeploy:              1.2,
			MaxDrawdownDeploy:            0.05,
			WhaleThreshold:               100000.0,
			SpyThreshold:                 -0.01,
			FlashCrashPct:                -0.20,
			MaxDrawdownThreshold:         0.15,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    30 * time.Second,
			Enabled:         false,
		},
		Cache: CacheConfig{
			Addr:              "localhost:6379",
			DefaultTTLSeconds: 60,
			Enabled:           false,
		},
		Paths: PathsConfig{
			EvolutionHistoryFile: "data/evolution_history.json",
			ActiveModuleFile:     "data/active_logic.go",
			ActiveModuleBackup:   "data/active_logic.go.backup",
			PromptsDir:           "data/prompts",
			ReasoningTraceLog:    "data/reasoning_trace.ndjson",
		},
		HTTP: HTTPConfig{Addr: ":8090", Enabled: true},
	}
}

// Load reads a YAML config file (if present) layered over Default, then
// applies environment-variable overrides for credentials and a handful
// of operationally-significant knobs.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Exchange.APIKey = os.Getenv("WEEX_API_KEY")
	cfg.Exchange.APISecret = os.Getenv("WEEX_API_SECRET")
	cfg.Exchange.APIPassword = os.Getenv("WEEX_API_PASSWORD")
	cfg.LLM.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	if m := os.Getenv("DEEPSEEK_MODEL"); m != "" {
		cfg.LLM.Model = m
	}
	cfg.Equities.APIKey = os.Getenv("EQUITIES_API_KEY")
	cfg.Equities.APISecret = os.Getenv("EQUITIES_API_SECRET")

	if v := os.Getenv("TRADING_SYMBOL"); v != "" {
		cfg.Trading.Symbol = v
	}
	if v := os.Getenv("INITIAL_EQUITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.InitialEquity = f
		}
	}
	if v := os.Getenv("KILL_SWITCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.KillSwitchThreshold = f
		}
	}
	if v := os.Getenv("GLOBAL_RISK_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Trading.GlobalRiskIntervalMinutes = n
		}
	}
	if v := os.Getenv("PG_DSN"); v != "" {
		cfg.Database.DSN = v
		cfg.Database.Enabled = true
	}

	return &cfg, nil
}
