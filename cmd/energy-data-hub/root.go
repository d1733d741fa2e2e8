package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/energy-data-hub/internal/collector"
	"github.com/i474232898/energy-data-hub/internal/config"
	"github.com/i474232898/energy-data-hub/internal/logger"
	"github.com/i474232898/energy-data-hub/internal/scheduler"
	"github.com/i474232898/energy-data-hub/internal/sources"
	"github.com/i474232898/energy-data-hub/internal/store"
	"github.com/i474232898/energy-data-hub/internal/timeutil"
)

var rootCmd = &cobra.Command{
	Use:   "energy-data-hub",
	Short: "Resilient energy and weather data collector",
	Long: `Collects energy prices and weather forecasts from remote APIs with
retries, per-source circuit breakers and zone-correct timestamps.`,
	SilenceUsage: true,
}

var (
	logLevel  string
	logFormat string
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format CONSOLE or JSON (overrides LOG_FORMAT)")
}

// hub is everything a command needs, built once from configuration.
type hub struct {
	cfg       *config.AppConfig
	log       *zap.SugaredLogger
	registry  *collector.Registry
	store     *store.MemoryStore
	scheduler *scheduler.Scheduler
	// all lists every built-in source, including disabled ones.
	all []collector.Source
}

func loadHub() (*hub, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logger.Format(strings.ToUpper(logFormat))
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	normalizer, err := timeutil.NewNormalizer(cfg.TargetTimezone)
	if err != nil {
		return nil, err
	}

	// Shared HTTP client for outbound source calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	all := sources.All(sources.Settings{
		Client:            httpClient,
		Coordinates:       sources.Coordinates{Lat: cfg.Latitude, Lon: cfg.Longitude},
		Location:          normalizer.Location(),
		OpenWeatherAPIKey: cfg.OpenWeatherAPIKey,
		WeatherAPIKey:     cfg.WeatherAPIKey,
	})

	registry := collector.NewRegistry()
	for _, src := range all {
		sc := cfg.Source(src.Name())
		if !sc.Enabled {
			log.Infof("source %s disabled", src.Name())
			continue
		}
		o, err := collector.New(src, collector.Options{
			Retry:        sc.Retry,
			Breaker:      &sc.Breaker,
			Normalizer:   normalizer,
			HistoryLimit: cfg.MetricsHistory,
			Logger:       log,
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(o); err != nil {
			return nil, err
		}
	}

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	sched := scheduler.New(registry, memStore, scheduler.Options{
		Interval:        cfg.CollectInterval,
		Timeout:         cfg.CollectTimeout,
		Window:          cfg.CollectWindow,
		HostConcurrency: cfg.HostConcurrency,
		Location:        normalizer.Location(),
		Logger:          log,
	})

	return &hub{
		cfg:       cfg,
		log:       log,
		registry:  registry,
		store:     memStore,
		scheduler: sched,
		all:       all,
	}, nil
}

func checkError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
