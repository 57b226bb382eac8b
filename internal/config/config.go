package config

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"risk-models/internal/apperr"
	"risk-models/internal/logger"
)

// envPrefix scopes environment overrides, e.g. RISKMODELS_SIMULATION_TRIALS.
const envPrefix = "RISKMODELS"

// SimulationConfig controls Monte Carlo batches.
type SimulationConfig struct {
	Trials  int    `mapstructure:"trials" json:"trials"`
	Seed    uint64 `mapstructure:"seed" json:"seed"` // 0 = seed from clock
	Workers int    `mapstructure:"workers" json:"workers"`
}

// OptimizerConfig controls portfolio optimization.
type OptimizerConfig struct {
	Method            string  `mapstructure:"method" json:"method"`         // random_search | projected_gradient
	Iterations        int     `mapstructure:"iterations" json:"iterations"` // 0 = by universe size
	FrontierPoints    int     `mapstructure:"frontier_points" json:"frontier_points"`
	FrontierDraws     int     `mapstructure:"frontier_draws" json:"frontier_draws"`
	FrontierTolerance float64 `mapstructure:"frontier_tolerance" json:"frontier_tolerance"`
	RiskFreeRate      float64 `mapstructure:"risk_free_rate" json:"risk_free_rate"`
}

// VaRConfig controls Value at Risk estimation.
type VaRConfig struct {
	ConfidenceLevel float64 `mapstructure:"confidence_level" json:"confidence_level"`
	HorizonDays     int     `mapstructure:"horizon_days" json:"horizon_days"`
	EWMALambda      float64 `mapstructure:"ewma_lambda" json:"ewma_lambda"` // outside (0,1) = plain std dev
	Simulations     int     `mapstructure:"simulations" json:"simulations"`
}

// Config holds application settings (in-memory representation).
// Persisted overrides are handled by internal/db.
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation" json:"simulation"`
	Optimizer  OptimizerConfig  `mapstructure:"optimizer" json:"optimizer"`
	VaR        VaRConfig        `mapstructure:"var" json:"var"`
	DBPath     string           `mapstructure:"db_path" json:"db_path"`
	Log        logger.Config    `mapstructure:"log" json:"log"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Trials:  10000,
			Workers: runtime.NumCPU(),
		},
		Optimizer: OptimizerConfig{
			Method:            "random_search",
			FrontierPoints:    20,
			FrontierDraws:     3000,
			FrontierTolerance: 0.02,
			RiskFreeRate:      0.02,
		},
		VaR: VaRConfig{
			ConfidenceLevel: 0.95,
			HorizonDays:     1,
			EWMALambda:      0.94,
			Simulations:     10000,
		},
		DBPath: "risk-models.db",
		Log: logger.Config{
			Level:      "info",
			Format:     "text",
			Output:     "console",
			FilePath:   "logs/risk-models.log",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
	}
}

// bind registers every key with c's values as defaults.
func bind(v *viper.Viper, c *Config) {
	v.SetDefault("simulation.trials", c.Simulation.Trials)
	v.SetDefault("simulation.seed", c.Simulation.Seed)
	v.SetDefault("simulation.workers", c.Simulation.Workers)

	v.SetDefault("optimizer.method", c.Optimizer.Method)
	v.SetDefault("optimizer.iterations", c.Optimizer.Iterations)
	v.SetDefault("optimizer.frontier_points", c.Optimizer.FrontierPoints)
	v.SetDefault("optimizer.frontier_draws", c.Optimizer.FrontierDraws)
	v.SetDefault("optimizer.frontier_tolerance", c.Optimizer.FrontierTolerance)
	v.SetDefault("optimizer.risk_free_rate", c.Optimizer.RiskFreeRate)

	v.SetDefault("var.confidence_level", c.VaR.ConfidenceLevel)
	v.SetDefault("var.horizon_days", c.VaR.HorizonDays)
	v.SetDefault("var.ewma_lambda", c.VaR.EWMALambda)
	v.SetDefault("var.simulations", c.VaR.Simulations)

	v.SetDefault("db_path", c.DBPath)

	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)
	v.SetDefault("log.output", c.Log.Output)
	v.SetDefault("log.file_path", c.Log.FilePath)
	v.SetDefault("log.max_size", c.Log.MaxSize)
	v.SetDefault("log.max_backups", c.Log.MaxBackups)
	v.SetDefault("log.max_age", c.Log.MaxAge)
	v.SetDefault("log.compress", c.Log.Compress)
}

func decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads an optional YAML/TOML/JSON file at path over the defaults,
// then applies RISKMODELS_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	bind(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return decode(v)
}

// Keys lists every settable dotted key in sorted order.
func Keys() []string {
	v := viper.New()
	bind(v, Default())
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// WithOverrides returns a copy of base with the dotted key/value pairs
// applied. Values are strings and are converted to the field types.
func WithOverrides(base *Config, overrides map[string]string) (*Config, error) {
	v := viper.New()
	bind(v, base)
	known := make(map[string]bool)
	for _, k := range v.AllKeys() {
		known[k] = true
	}
	for k, val := range overrides {
		if !known[k] {
			return nil, apperr.Invalid("unknown config key %q", k)
		}
		v.Set(k, val)
	}
	return decode(v)
}

// Flatten renders c as dotted key/value strings, the inverse of WithOverrides.
func Flatten(c *Config) map[string]string {
	v := viper.New()
	bind(v, c)
	out := make(map[string]string)
	for _, k := range v.AllKeys() {
		out[k] = v.GetString(k)
	}
	return out
}

// Validate rejects settings no run could use.
func (c *Config) Validate() error {
	switch {
	case c.Simulation.Trials <= 0:
		return apperr.Invalid("simulation.trials must be positive, got %d", c.Simulation.Trials)
	case c.Simulation.Workers <= 0:
		return apperr.Invalid("simulation.workers must be positive, got %d", c.Simulation.Workers)
	case c.Optimizer.Method != "random_search" && c.Optimizer.Method != "projected_gradient":
		return apperr.Invalid("optimizer.method %q is not random_search or projected_gradient", c.Optimizer.Method)
	case c.Optimizer.Iterations < 0:
		return apperr.Invalid("optimizer.iterations must be non-negative, got %d", c.Optimizer.Iterations)
	case c.Optimizer.FrontierPoints <= 0 || c.Optimizer.FrontierDraws <= 0:
		return apperr.Invalid("optimizer frontier points and draws must be positive")
	case c.Optimizer.FrontierTolerance <= 0:
		return apperr.Invalid("optimizer.frontier_tolerance must be positive, got %v", c.Optimizer.FrontierTolerance)
	case !(c.VaR.ConfidenceLevel > 0 && c.VaR.ConfidenceLevel < 1):
		return apperr.Invalid("var.confidence_level must be in (0, 1), got %v", c.VaR.ConfidenceLevel)
	case c.VaR.HorizonDays < 1:
		return apperr.Invalid("var.horizon_days must be at least 1, got %d", c.VaR.HorizonDays)
	case c.VaR.Simulations <= 0:
		return apperr.Invalid("var.simulations must be positive, got %d", c.VaR.Simulations)
	case c.Log.Output != "console" && c.Log.Output != "file" && c.Log.Output != "both":
		return apperr.Invalid("log.output %q is not console, file or both", c.Log.Output)
	}
	return nil
}
