package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/energy-data-hub/internal/breaker"
	"github.com/i474232898/energy-data-hub/internal/logger"
	"github.com/i474232898/energy-data-hub/internal/retry"
)

var validate = validator.New()

// SourceConfig is the effective configuration of one source.
type SourceConfig struct {
	Enabled bool           `yaml:"enabled"`
	Retry   retry.Policy   `yaml:"retry"`
	Breaker breaker.Policy `yaml:"breaker"`
}

type AppConfig struct {
	OpenWeatherAPIKey string
	WeatherAPIKey     string

	// TargetTimezone is the IANA zone every dataset key is normalized to.
	TargetTimezone string `validate:"required"`

	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`

	HTTPTimeout time.Duration `validate:"gt=0"`

	// CollectInterval controls how often every source is collected.
	CollectInterval time.Duration `validate:"gt=0"`
	// CollectTimeout bounds one whole collection run.
	CollectTimeout time.Duration `validate:"gt=0"`
	// CollectWindow is the length of the window starting at local midnight.
	CollectWindow time.Duration `validate:"gt=0"`
	// HostConcurrency limits parallel calls to one remote host.
	HostConcurrency int `validate:"gte=1"`

	// In-memory store retention.
	StoreMaxHistory int           `validate:"gte=0"` // max datasets per source (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of datasets (0 = unlimited)

	// MetricsHistory bounds each source's collection metrics (0 = unlimited).
	MetricsHistory int `validate:"gte=0"`

	Port      string `validate:"required"`
	LogLevel  string
	LogFormat logger.Format `validate:"oneof=CONSOLE JSON"`

	// Defaults applied to every source without an override.
	Retry   retry.Policy
	Breaker breaker.Policy

	// SourcesFile is an optional YAML file with per-source overrides.
	SourcesFile string
	Sources     map[string]SourceConfig
}

// sourcesFile is the layout of SOURCES_FILE.
type sourcesFile struct {
	Sources map[string]yaml.Node `yaml:"sources"`
}

// Load reads configuration from environment with sensible defaults.
func Load(log *zap.SugaredLogger) (*AppConfig, error) {
	log = logger.OrNop(log)
	if err := godotenv.Load(); err != nil {
		log.Infof("No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*AppConfig, error) {
	var err error
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.TargetTimezone = getenvDefault("TARGET_TIMEZONE", "Europe/Amsterdam")
	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "INFO")
	cfg.LogFormat = logger.Format(strings.ToUpper(getenvDefault("LOG_FORMAT", string(logger.FormatConsole))))
	cfg.SourcesFile = os.Getenv("SOURCES_FILE")

	if cfg.Latitude, err = getenvFloat("LOCATION_LAT", 51.966472); err != nil {
		return nil, err
	}
	if cfg.Longitude, err = getenvFloat("LOCATION_LON", 5.94009); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.CollectInterval, err = getenvDuration("COLLECT_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.CollectTimeout, err = getenvDuration("COLLECT_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CollectWindow, err = getenvDuration("COLLECT_WINDOW", 48*time.Hour); err != nil {
		return nil, err
	}
	if cfg.HostConcurrency, err = getenvInt("HOST_CONCURRENCY", 2); err != nil {
		return nil, err
	}

	// Store retention: two days of hourly runs.
	if cfg.StoreMaxHistory, err = getenvInt("STORE_MAX_HISTORY", 48); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 72*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MetricsHistory, err = getenvInt("METRICS_HISTORY", 100); err != nil {
		return nil, err
	}

	if cfg.Retry, err = loadRetryPolicy(); err != nil {
		return nil, err
	}
	if cfg.Breaker, err = loadBreakerPolicy(); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Breaker.Validate(); err != nil {
		return nil, err
	}

	cfg.Sources = make(map[string]SourceConfig)
	if cfg.SourcesFile != "" {
		if err := cfg.loadSourcesFile(cfg.SourcesFile); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Source returns the effective configuration of name: its override from
// SOURCES_FILE if any, the global defaults otherwise.
func (c *AppConfig) Source(name string) SourceConfig {
	if sc, ok := c.Sources[name]; ok {
		return sc
	}
	return c.defaultSource()
}

func (c *AppConfig) defaultSource() SourceConfig {
	return SourceConfig{Enabled: true, Retry: c.Retry, Breaker: c.Breaker}
}

// loadSourcesFile decodes each override on top of the defaults, so fields
// left out of the file keep their default values.
func (c *AppConfig) loadSourcesFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("sources file %s does not exist", path)
		}
		return fmt.Errorf("read sources file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse sources file %s: %w", path, err)
	}

	for name, node := range file.Sources {
		sc := c.defaultSource()
		if err := node.Decode(&sc); err != nil {
			return fmt.Errorf("source %s: %w", name, err)
		}
		if err := sc.Retry.Validate(); err != nil {
			return fmt.Errorf("source %s: %w", name, err)
		}
		if err := sc.Breaker.Validate(); err != nil {
			return fmt.Errorf("source %s: %w", name, err)
		}
		c.Sources[name] = sc
	}
	return nil
}

func loadRetryPolicy() (retry.Policy, error) {
	var err error
	p := retry.DefaultPolicy()
	if p.MaxAttempts, err = getenvInt("RETRY_MAX_ATTEMPTS", p.MaxAttempts); err != nil {
		return p, err
	}
	if p.InitialDelay, err = getenvDuration("RETRY_INITIAL_DELAY", p.InitialDelay); err != nil {
		return p, err
	}
	if p.MaxDelay, err = getenvDuration("RETRY_MAX_DELAY", p.MaxDelay); err != nil {
		return p, err
	}
	if p.ExponentialBase, err = getenvFloat("RETRY_EXPONENTIAL_BASE", p.ExponentialBase); err != nil {
		return p, err
	}
	if p.Jitter, err = getenvBool("RETRY_JITTER", p.Jitter); err != nil {
		return p, err
	}
	return p, nil
}

func loadBreakerPolicy() (breaker.Policy, error) {
	var err error
	p := breaker.DefaultPolicy()
	if p.FailureThreshold, err = getenvInt("BREAKER_FAILURE_THRESHOLD", p.FailureThreshold); err != nil {
		return p, err
	}
	if p.SuccessThreshold, err = getenvInt("BREAKER_SUCCESS_THRESHOLD", p.SuccessThreshold); err != nil {
		return p, err
	}
	if p.Timeout, err = getenvDuration("BREAKER_TIMEOUT", p.Timeout); err != nil {
		return p, err
	}
	if p.Enabled, err = getenvBool("BREAKER_ENABLED", p.Enabled); err != nil {
		return p, err
	}
	return p, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := cast.ToIntE(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := cast.ToFloat64E(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := cast.ToBoolE(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
