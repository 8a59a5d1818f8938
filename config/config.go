// Package config loads server settings from an optional YAML file,
// SALES_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/gigo/sales-engine/sales"
)

const EnvPrefix = "SALES"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Rewards RewardsConfig `mapstructure:"rewards"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type StorageConfig struct {
	// Driver is "sqlite3" (mattn, cgo), "sqlite" (modernc, pure Go) or "memory".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type EngineConfig struct {
	Strategy                string             `mapstructure:"strategy"`
	Categories              []string           `mapstructure:"categories"`
	DefaultDistribution     map[string]float64 `mapstructure:"default_distribution"`
	DefaultDebtLimitPercent float64            `mapstructure:"default_debt_limit_percent"`

	// DriftCheckInterval enables the background drift monitor when positive.
	DriftCheckInterval time.Duration `mapstructure:"drift_check_interval"`
	DriftAutoFix       bool          `mapstructure:"drift_auto_fix"`
}

type RewardsConfig struct {
	// TiersFile is an optional YAML ladder; empty means the default tiers.
	TiersFile string `mapstructure:"tiers_file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("storage.driver", "sqlite3")
	v.SetDefault("storage.dsn", "sales.db")

	v.SetDefault("engine.strategy", string(sales.StrategyDelta))
	v.SetDefault("engine.categories", []string{"qurt", "toys", "milchofka"})
	v.SetDefault("engine.default_distribution", map[string]float64{"qurt": 15, "toys": 40, "milchofka": 45})
	v.SetDefault("engine.default_debt_limit_percent", 7)
	v.SetDefault("engine.drift_check_interval", time.Duration(0))
	v.SetDefault("engine.drift_auto_fix", false)

	v.SetDefault("rewards.tiers_file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration. path may be empty, in which case only the
// environment and defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown drivers and strategies and distributions that
// don't cover the categories or don't sum to 100.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite3", "sqlite", "memory":
	default:
		return fmt.Errorf("%w: storage.driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	switch sales.Strategy(c.Engine.Strategy) {
	case sales.StrategyDelta, sales.StrategyRecompute:
	default:
		return fmt.Errorf("%w: engine.strategy %q", ErrInvalidConfig, c.Engine.Strategy)
	}
	if len(c.Engine.Categories) == 0 {
		return fmt.Errorf("%w: engine.categories is empty", ErrInvalidConfig)
	}
	if err := sales.ValidateDistribution(c.Engine.CategoryList(), c.Engine.Distribution()); err != nil {
		return fmt.Errorf("%w: engine.default_distribution: %v", ErrInvalidConfig, err)
	}
	if c.Engine.DefaultDebtLimitPercent < 0 || c.Engine.DefaultDebtLimitPercent > 100 {
		return fmt.Errorf("%w: engine.default_debt_limit_percent must be between 0 and 100", ErrInvalidConfig)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	return nil
}

// =============================================================================
// ENGINE HELPERS
// =============================================================================

func (e EngineConfig) CategoryList() []sales.Category {
	out := make([]sales.Category, 0, len(e.Categories))
	for _, c := range e.Categories {
		out = append(out, sales.Category(c))
	}
	return out
}

func (e EngineConfig) Distribution() map[sales.Category]decimal.Decimal {
	out := make(map[sales.Category]decimal.Decimal, len(e.DefaultDistribution))
	for c, v := range e.DefaultDistribution {
		out[sales.Category(c)] = decimal.NewFromFloat(v)
	}
	return out
}

func (e EngineConfig) DebtLimit() decimal.Decimal {
	return decimal.NewFromFloat(e.DefaultDebtLimitPercent)
}

// =============================================================================
// LOGGING
// =============================================================================

// NewLogger builds the root logger. A nil writer means stderr.
func (l LogConfig) NewLogger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("%w: log.level %q", ErrInvalidConfig, l.Level)
	}
	if w == nil {
		w = os.Stderr
	}
	if l.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
