package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raykavin/calibrator"
	"github.com/raykavin/calibrator/pkg/backtesting"
	"github.com/raykavin/calibrator/pkg/config"
	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/exchange"
	"github.com/raykavin/calibrator/pkg/exchange/binance"
	"github.com/raykavin/calibrator/pkg/logger"
	"github.com/raykavin/calibrator/pkg/notification"
	"github.com/raykavin/calibrator/pkg/storage"
	"github.com/raykavin/calibrator/pkg/strategy"
)

const (
	dateLayout = "2006-01-02"
)

// Command line flags
var (
	configFile string
	logLevel   string

	// Download command flags
	symbol     string
	days       int
	startDate  string
	endDate    string
	timeframe  string
	outputFile string

	// History command flags
	minScore float64
	limit    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "calibrator",
		Short:   "Adaptive calibration of the multi-indicator trading system",
		Version: "1.0.0",
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (e.g. ./calibrator.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		if logLevel == "" {
			return nil
		}
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		calibrator.DefaultLog.SetLevel(level)
		return nil
	}

	rootCmd.AddCommand(buildCalibrateCmd())
	rootCmd.AddCommand(buildDownloadCmd())
	rootCmd.AddCommand(buildHistoryCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func buildCalibrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate",
		Short: "Search the parameter space and keep the best configuration",
		RunE:  runCalibrate,
	}
}

func buildDownloadCmd() *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download historical candles from Binance as CSV",
		RunE:  runDownload,
	}

	downloadCmd.Flags().StringVarP(&symbol, "symbol", "p", "", "Trading symbol (e.g. BTCUSDT)")
	downloadCmd.Flags().IntVarP(&days, "days", "d", 0, "Number of days to download (default 30 days)")
	downloadCmd.Flags().StringVarP(&startDate, "start", "s", "", "Start date (e.g. 2023-01-01)")
	downloadCmd.Flags().StringVarP(&endDate, "end", "e", "", "End date (e.g. 2023-12-31)")
	downloadCmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1d", "Timeframe (e.g. 1h)")
	downloadCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default <data_dir>/<SYMBOL>-<timeframe>.csv)")

	downloadCmd.MarkFlagRequired("symbol")

	return downloadCmd
}

func buildHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List stored calibrations",
		RunE:  runHistory,
	}

	historyCmd.Flags().Float64Var(&minScore, "min-score", 0, "Only list calibrations scoring at least this value")
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of most recent calibrations to list")

	return historyCmd
}

func runCalibrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	log := calibrator.DefaultLog

	feeder, closeFeeder, err := initializeFeeder(cfg)
	if err != nil {
		return err
	}
	defer closeFeeder()

	options := []calibrator.Option{
		calibrator.WithSymbols(cfg.Symbols...),
		calibrator.WithTimeframe(cfg.Timeframe),
		calibrator.WithSimulator(backtesting.NewSimulator(strategy.NewAdaptive(), cfg.SimulatorOptions()...)),
		calibrator.WithOutput(cfg.Output),
		calibrator.WithResultsCSV(cfg.ResultsCSV),
		calibrator.WithLogger(log),
	}

	store, closeStorage, err := initializeStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStorage()
	if store != nil {
		options = append(options, calibrator.WithStorage(store))
	}

	notifiers, err := initializeNotifiers(cfg, store)
	if err != nil {
		return err
	}
	for _, notifier := range notifiers {
		options = append(options, calibrator.WithNotifier(notifier))
	}

	calib, err := calibrator.New(feeder, cfg.OptimizerConfig(log), options...)
	if err != nil {
		return err
	}

	outcome, err := calib.Run(cmd.Context())
	if outcome != nil {
		calibrator.Summary(cmd.OutOrStdout(), outcome)
	}

	switch {
	case errors.Is(err, context.Canceled):
		log.Warn("Calibration interrupted")
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("Calibration budget exhausted")
		return nil
	case err != nil:
		return err
	case outcome.Best == nil:
		fmt.Fprintln(cmd.OutOrStdout(), "no optimal configuration found")
	}

	return nil
}

func initializeFeeder(cfg *config.Config) (core.Feeder, func(), error) {
	if cfg.Source == config.SourceCSV {
		feeds := make([]exchange.SymbolFeed, 0, len(cfg.Symbols))
		for _, s := range cfg.Symbols {
			feeds = append(feeds, exchange.SymbolFeed{
				Symbol:    s,
				File:      dataFile(cfg.DataDir, s, cfg.Timeframe),
				Timeframe: cfg.Timeframe,
			})
		}

		feed, err := exchange.NewCSVFeed(cfg.Timeframe, feeds...)
		if err != nil {
			return nil, nil, err
		}
		return feed, func() {}, nil
	}

	feeder := binance.NewFeeder(calibrator.DefaultLog, cfg.FeederOptions()...)
	if !cfg.Cache.Enabled {
		return feeder, func() {}, nil
	}

	cache, err := exchange.NewCache(feeder, cfg.Cache.Path, cfg.Cache.TTL)
	if err != nil {
		return nil, nil, err
	}
	return cache, closeWithLog(cache, "candle cache"), nil
}

func initializeStorage(cfg *config.Config) (core.ResultStorage, func(), error) {
	switch cfg.Storage.Type {
	case config.StorageBuntDB:
		store, err := storage.FromFile(cfg.Storage.Path, calibrator.DefaultLog)
		if err != nil {
			return nil, nil, err
		}
		return store, closeWithLog(store, "storage"), nil
	case config.StorageSQLite:
		store, err := storage.FromSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, closeWithLog(store, "storage"), nil
	default:
		return nil, func() {}, nil
	}
}

func initializeNotifiers(cfg *config.Config, store core.ResultStorage) ([]core.Notifier, error) {
	var notifiers []core.Notifier

	if cfg.Telegram.Enabled {
		var options []notification.Option
		if store != nil {
			options = append(options, notification.WithStorage(store))
		}

		telegram, err := notification.NewTelegram(cfg.Telegram.TelegramSettings, options...)
		if err != nil {
			return nil, fmt.Errorf("initializing telegram: %w", err)
		}
		telegram.Start()
		notifiers = append(notifiers, telegram)
	}

	if cfg.Mail.Enabled {
		notifiers = append(notifiers, notification.NewMail(cfg.Mail.MailParams))
	}

	return notifiers, nil
}

func closeWithLog(c io.Closer, name string) func() {
	return func() {
		if err := c.Close(); err != nil {
			calibrator.DefaultLog.WithError(err).Errorf("closing %s", name)
		}
	}
}

func dataFile(dir, symbol, timeframe string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.csv", symbol, timeframe))
}

func runDownload(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	options, err := buildDownloadOptions()
	if err != nil {
		return err
	}

	if outputFile == "" {
		outputFile = dataFile(cfg.DataDir, symbol, timeframe)
	}

	return backtesting.NewDownloader(binance.NewFeeder(calibrator.DefaultLog, cfg.FeederOptions()...), calibrator.DefaultLog).Download(
		cmd.Context(),
		symbol,
		timeframe,
		outputFile,
		options...,
	)
}

func buildDownloadOptions() ([]backtesting.Option, error) {
	var options []backtesting.Option

	if days > 0 {
		options = append(options, backtesting.WithDays(days))
	}

	if startDate != "" || endDate != "" {
		if startDate == "" || endDate == "" {
			return nil, fmt.Errorf("START and END dates must be provided together")
		}

		start, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start date format: %w", err)
		}

		end, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end date format: %w", err)
		}

		options = append(options, backtesting.WithInterval(start, end))
	}

	return options, nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	store, closeStorage, err := initializeStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	if store == nil {
		return errors.New("no storage configured")
	}

	records, err := store.Records(core.WithMinScore(minScore))
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no calibrations stored")
		return nil
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	for _, record := range records {
		fmt.Fprintln(cmd.OutOrStdout(), notification.FormatRecord(record))
	}

	return nil
}
