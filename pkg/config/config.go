// Package config loads the calibrator settings from a YAML file and
// CALIBRATOR_* environment variables
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/xhit/go-str2duration/v2"

	"github.com/raykavin/calibrator/pkg/backtesting"
	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/exchange/binance"
	"github.com/raykavin/calibrator/pkg/logger"
	"github.com/raykavin/calibrator/pkg/notification"
	"github.com/raykavin/calibrator/pkg/optimizer"
)

const (
	envPrefix  = "CALIBRATOR"
	dateLayout = "2006-01-02"

	SourceBinance = "binance"
	SourceCSV     = "csv"

	StorageNone   = "none"
	StorageBuntDB = "buntdb"
	StorageSQLite = "sqlite"
)

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// BinanceConfig tunes the public klines client
type BinanceConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Testnet bool   `mapstructure:"testnet"`
	Retries int    `mapstructure:"retries"`
}

type StorageConfig struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
}

// ProfitLockConfig enables the optional time-based partial exit
type ProfitLockConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	Days     int     `mapstructure:"days"`
	Fraction float64 `mapstructure:"fraction"`
}

type TelegramConfig struct {
	Enabled                       bool `mapstructure:"enabled"`
	notification.TelegramSettings `mapstructure:",squash"`
}

type MailConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	notification.MailParams `mapstructure:",squash"`
}

// Config holds every setting of a calibration run
type Config struct {
	Symbols         []string              `mapstructure:"symbols"`
	Timeframe       string                `mapstructure:"timeframe"`
	Source          string                `mapstructure:"source"`
	DataDir         string                `mapstructure:"data_dir"`
	Binance         BinanceConfig         `mapstructure:"binance"`
	Cache           CacheConfig           `mapstructure:"cache"`
	Periods         []core.Period         `mapstructure:"periods"`
	Iterations      []optimizer.Iteration `mapstructure:"iterations"`
	Parallelism     int                   `mapstructure:"parallelism"`
	MaxCombinations int                   `mapstructure:"max_combinations"`
	Budget          time.Duration         `mapstructure:"budget"`
	RegimeFloor     float64               `mapstructure:"regime_floor"`
	TopN            int                   `mapstructure:"top_n"`
	Progress        bool                  `mapstructure:"progress"`
	ProfitLock      ProfitLockConfig      `mapstructure:"profit_lock"`
	Storage         StorageConfig         `mapstructure:"storage"`
	Output          string                `mapstructure:"output"`
	ResultsCSV      string                `mapstructure:"results_csv"`
	Telegram        TelegramConfig        `mapstructure:"telegram"`
	Mail            MailConfig            `mapstructure:"mail"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("symbols", optimizer.DefaultSymbols)
	v.SetDefault("timeframe", "1d")
	v.SetDefault("source", SourceBinance)
	v.SetDefault("data_dir", "data")
	v.SetDefault("binance.base_url", "")
	v.SetDefault("binance.testnet", false)
	v.SetDefault("binance.retries", 3)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "calibrator-cache.db")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("parallelism", 4)
	v.SetDefault("max_combinations", 0)
	v.SetDefault("budget", time.Duration(0))
	v.SetDefault("regime_floor", 40.0)
	v.SetDefault("top_n", 5)
	v.SetDefault("progress", true)
	v.SetDefault("profit_lock.enabled", false)
	v.SetDefault("profit_lock.days", 10)
	v.SetDefault("profit_lock.fraction", 0.7)
	v.SetDefault("storage.type", StorageBuntDB)
	v.SetDefault("storage.path", "calibrations.db")
	v.SetDefault("output", "best_adaptive_config.json")
	v.SetDefault("results_csv", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.users", []int{})
	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.address", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.to", "")
	v.SetDefault("mail.password", "")
}

// Load reads the configuration file at path, if any, on top of the
// defaults. Environment variables such as CALIBRATOR_PARALLELISM or
// CALIBRATOR_STORAGE_TYPE override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(dateLayout),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Periods) == 0 {
		cfg.Periods = optimizer.DefaultPeriods()
	}
	if len(cfg.Iterations) == 0 {
		cfg.Iterations = optimizer.DefaultIterations()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	var errs []error

	if len(c.Symbols) == 0 {
		errs = append(errs, errors.New("at least one symbol is required"))
	}

	if _, err := str2duration.ParseDuration(c.Timeframe); err != nil {
		errs = append(errs, fmt.Errorf("invalid timeframe %q: %w", c.Timeframe, err))
	}

	switch c.Source {
	case SourceBinance, SourceCSV:
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}

	switch c.Storage.Type {
	case StorageNone, StorageBuntDB, StorageSQLite, "":
	default:
		errs = append(errs, fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}

	for _, period := range c.Periods {
		if period.Name == "" {
			errs = append(errs, errors.New("every period needs a name"))
		}
		if !period.End.After(period.Start) {
			errs = append(errs, fmt.Errorf("period %s ends before it starts", period.Name))
		}
	}

	if len(c.Iterations) == 0 {
		errs = append(errs, errors.New("at least one iteration is required"))
	} else if len(c.Iterations[0].Grid) > 0 {
		if _, err := optimizer.GenerateParameterSets(optimizer.DefaultParameters, c.Iterations[0].Grid, 1); err != nil {
			errs = append(errs, fmt.Errorf("iteration 1 grid: %w", err))
		}
	}

	if c.Binance.Retries < 0 {
		errs = append(errs, errors.New("binance retries cannot be negative"))
	}

	if c.Parallelism < 1 {
		errs = append(errs, errors.New("parallelism must be at least 1"))
	}

	if c.ProfitLock.Enabled && (c.ProfitLock.Days <= 0 || c.ProfitLock.Fraction <= 0) {
		errs = append(errs, errors.New("profit lock needs positive days and fraction"))
	}

	return errors.Join(errs...)
}

// OptimizerConfig builds the calibration loop configuration
func (c *Config) OptimizerConfig(log logger.Logger) *optimizer.Config {
	return optimizer.NewConfig().
		WithIterations(c.Iterations...).
		WithPeriods(c.Periods...).
		WithParallelism(c.Parallelism).
		WithMaxCombinations(c.MaxCombinations).
		WithBudget(c.Budget).
		WithRegimeFloor(c.RegimeFloor).
		WithTopN(c.TopN).
		WithProgress(c.Progress).
		WithLogger(log)
}

// FeederOptions returns the Binance client options of the configuration
func (c *Config) FeederOptions() []binance.FeederOption {
	options := []binance.FeederOption{binance.WithRetries(c.Binance.Retries)}
	if c.Binance.Testnet {
		options = append(options, binance.WithTestNet())
	}
	if c.Binance.BaseURL != "" {
		options = append(options, binance.WithBaseURL(c.Binance.BaseURL))
	}
	return options
}

// SimulatorOptions returns the optional exit rules enabled in the configuration
func (c *Config) SimulatorOptions() []backtesting.SimulatorOption {
	var options []backtesting.SimulatorOption
	if c.ProfitLock.Enabled {
		options = append(options, backtesting.WithProfitLock(c.ProfitLock.Days, c.ProfitLock.Fraction))
	}
	return options
}
