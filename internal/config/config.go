package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
// Components receive it (or slices of it) at construction; there is no
// process-wide mutable state.
type Config struct {
	// Fixed geographic point and its calendar timezone.
	Latitude  float64
	Longitude float64
	Timezone  string
	Location  *time.Location

	// Stormglass provider.
	StormglassBaseURL string
	StormglassKeys    []string // priority order
	StormglassSource  string
	RequestTimeout    time.Duration

	// Artifacts.
	HistoryCSV string
	SiteJSON   string

	// Pipeline tunables.
	LookbackDays       int
	WindowDays         int
	BlockDays          int
	MinPressureSamples int
	RoundDecimals      int

	// Serve mode.
	RunInterval     time.Duration
	HTTPAddr        string
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string

	// Optional Kafka side-output of confirmed rows.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from the environment (and an optional .env file),
// applying defaults where unset.
func Load() (*Config, error) {
	// A missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		Latitude:  envFloat("LATITUDE", 16.224044),
		Longitude: envFloat("LONGITUDE", 108.084327),
		Timezone:  envOrDefault("TIMEZONE", "Asia/Ho_Chi_Minh"),

		StormglassBaseURL: envOrDefault("STORMGLASS_BASE_URL", "https://api.stormglass.io/v2"),
		StormglassSource:  envOrDefault("STORMGLASS_SOURCE", "sg"),

		HistoryCSV: envOrDefault("HISTORY_CSV", "data/history.csv"),
		SiteJSON:   envOrDefault("SITE_JSON", "site/data.json"),

		LookbackDays:       envInt("LOOKBACK_DAYS", 7),
		WindowDays:         envInt("WINDOW_DAYS", 10),
		BlockDays:          envInt("BLOCK_DAYS", 10),
		MinPressureSamples: envInt("MIN_PRESSURE_SAMPLES", 8),
		RoundDecimals:      envInt("ROUND_DECIMALS", 2),

		HTTPAddr:  envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		KafkaBrokers: splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "journal-daily-records"),
	}

	for _, name := range []string{"STORMGLASS_KEY_1", "STORMGLASS_KEY_2", "STORMGLASS_KEY_3"} {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			cfg.StormglassKeys = append(cfg.StormglassKeys, key)
		}
	}

	var err error
	if cfg.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", 45*time.Second); err != nil {
		return nil, err
	}
	if cfg.RunInterval, err = envDuration("RUN_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		cfg.KafkaEnabled = v == "true"
	}

	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	if len(cfg.StormglassKeys) == 0 {
		return nil, errors.New("at least one STORMGLASS_KEY_n is required")
	}
	if cfg.WindowDays <= 0 {
		return nil, errors.New("WINDOW_DAYS must be positive")
	}
	if cfg.BlockDays <= 0 {
		return nil, errors.New("BLOCK_DAYS must be positive")
	}
	if cfg.LookbackDays <= 0 {
		return nil, errors.New("LOOKBACK_DAYS must be positive")
	}
	if cfg.MinPressureSamples < 0 {
		return nil, errors.New("MIN_PRESSURE_SAMPLES must not be negative")
	}
	if cfg.RoundDecimals < 0 || cfg.RoundDecimals > 6 {
		return nil, errors.New("ROUND_DECIMALS must be between 0 and 6")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
