// Package config loads parlayd configuration from file and environment.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Circadian CircadianConfig `mapstructure:"circadian"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	Books     BooksConfig     `mapstructure:"books"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// EngineConfig holds candidate generation settings
type EngineConfig struct {
	Sports          []string `mapstructure:"sports"`
	MinEdge         float64  `mapstructure:"min_edge"`
	MaxLegs         int      `mapstructure:"max_legs"`
	TopN            int      `mapstructure:"top_n"`
	MaxBetsPerCycle int      `mapstructure:"max_bets_per_cycle"`
	PriceTolerance  float64  `mapstructure:"price_tolerance"`
	SlatePath       string   `mapstructure:"slate_path"`
}

// RiskConfig holds bankroll and stop-loss settings
type RiskConfig struct {
	Bankroll        float64 `mapstructure:"bankroll"`
	KellyFraction   float64 `mapstructure:"kelly_fraction"`
	MaxExposurePct  float64 `mapstructure:"max_exposure_pct"`
	MaxDailyLossPct float64 `mapstructure:"max_daily_loss_pct"`
}

// CircadianConfig holds fatigue model settings
type CircadianConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	LateNightPenalty   float64  `mapstructure:"late_night_penalty"`
	BackToBackPenalty  float64  `mapstructure:"back_to_back_penalty"`
	TravelShiftPenalty float64  `mapstructure:"travel_shift_penalty"`
	OptimalWindowBonus float64  `mapstructure:"optimal_window_bonus"`
	SensitiveSports    []string `mapstructure:"sensitive_sports"`
}

// BudgetConfig holds spend limit settings. Zero limits leave the period
// unconfigured, meaning unbounded.
type BudgetConfig struct {
	DailyLimit   float64            `mapstructure:"daily_limit"`
	WeeklyLimit  float64            `mapstructure:"weekly_limit"`
	MonthlyLimit float64            `mapstructure:"monthly_limit"`
	SportLimits  map[string]float64 `mapstructure:"sport_limits"`
}

// BookConfig holds one sportsbook's connection settings
type BookConfig struct {
	Kind    string   `mapstructure:"kind"` // "gameline" or "props"
	BaseURL string   `mapstructure:"base_url"`
	APIKey  string   `mapstructure:"api_key"`
	Sports  []string `mapstructure:"sports"`
}

// BooksConfig holds sportsbook routing configuration
type BooksConfig struct {
	Default string                `mapstructure:"default"`
	Books   map[string]BookConfig `mapstructure:"books"`
}

// ScheduleConfig holds cron schedules for the daemon
type ScheduleConfig struct {
	Assessment string `mapstructure:"assessment"`
	Settlement string `mapstructure:"settlement"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads configuration from file and environment variables. An empty
// path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PARLAYD")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Engine defaults
	v.SetDefault("engine.sports", []string{"nba", "nhl", "nfl"})
	v.SetDefault("engine.min_edge", 0.05)
	v.SetDefault("engine.max_legs", 3)
	v.SetDefault("engine.top_n", 5)
	v.SetDefault("engine.max_bets_per_cycle", 3)
	v.SetDefault("engine.price_tolerance", 0.05)
	v.SetDefault("engine.slate_path", "./slate.json")

	// Risk defaults
	v.SetDefault("risk.bankroll", 1000.0)
	v.SetDefault("risk.kelly_fraction", 0.25)
	v.SetDefault("risk.max_exposure_pct", 0.20)
	v.SetDefault("risk.max_daily_loss_pct", 0.10)

	// Circadian defaults
	v.SetDefault("circadian.enabled", true)
	v.SetDefault("circadian.late_night_penalty", 0.05)
	v.SetDefault("circadian.back_to_back_penalty", 0.08)
	v.SetDefault("circadian.travel_shift_penalty", 0.04)
	v.SetDefault("circadian.optimal_window_bonus", 0.02)
	v.SetDefault("circadian.sensitive_sports", []string{"nba", "nhl", "nfl", "ncaamb"})

	// Budget defaults: only the daily cap is on by default
	v.SetDefault("budget.daily_limit", 200.0)
	v.SetDefault("budget.weekly_limit", 0.0)
	v.SetDefault("budget.monthly_limit", 0.0)

	// Book defaults
	v.SetDefault("books.default", "voltaire")

	// Schedule defaults: morning assessment, hourly settlement sweep
	v.SetDefault("schedule.assessment", "0 9 * * *")
	v.SetDefault("schedule.settlement", "5 * * * *")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9099")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if len(c.Engine.Sports) == 0 {
		return fmt.Errorf("engine.sports must contain at least one sport")
	}
	if c.Engine.MinEdge < 0 {
		return fmt.Errorf("engine.min_edge must not be negative")
	}
	if c.Engine.MaxLegs < 1 {
		return fmt.Errorf("engine.max_legs must be at least 1")
	}
	if c.Engine.TopN < 1 {
		return fmt.Errorf("engine.top_n must be at least 1")
	}
	if c.Engine.MaxBetsPerCycle < 1 {
		return fmt.Errorf("engine.max_bets_per_cycle must be at least 1")
	}

	if c.Risk.Bankroll <= 0 {
		return fmt.Errorf("risk.bankroll must be positive")
	}
	if c.Risk.KellyFraction <= 0 || c.Risk.KellyFraction > 1 {
		return fmt.Errorf("risk.kelly_fraction must be in (0, 1]")
	}
	if c.Risk.MaxExposurePct <= 0 || c.Risk.MaxExposurePct > 1 {
		return fmt.Errorf("risk.max_exposure_pct must be in (0, 1]")
	}
	if c.Risk.MaxDailyLossPct <= 0 || c.Risk.MaxDailyLossPct > 1 {
		return fmt.Errorf("risk.max_daily_loss_pct must be in (0, 1]")
	}

	if c.Budget.DailyLimit < 0 || c.Budget.WeeklyLimit < 0 || c.Budget.MonthlyLimit < 0 {
		return fmt.Errorf("budget limits must not be negative")
	}

	for name, book := range c.Books.Books {
		switch book.Kind {
		case "gameline":
		case "props":
			if book.BaseURL == "" {
				return fmt.Errorf("books.books.%s.base_url is required for props books", name)
			}
		default:
			return fmt.Errorf("books.books.%s.kind must be gameline or props, got %q", name, book.Kind)
		}
	}

	if c.Schedule.Assessment == "" || c.Schedule.Settlement == "" {
		return fmt.Errorf("schedule.assessment and schedule.settlement are required")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	return nil
}
