package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port              int
	ProbeListenAddr   string
	LogJSON           bool
	LogLevel          string
	ShutdownTimeout   time.Duration
	ResendInterval    time.Duration
	HealthInterval    time.Duration
	WorkerConcurrency int
	MaxBodyBytes      int64
	SentryDSN         string
	SentryDebug       bool
	Release           string
	RedisURL          string
	DestinationsFile  string
	LibratoEndpoint   string
	GraphiteEndpoint  string
	Destinations      []Destination
}

// Overrides carries command-line values; zero fields leave the environment
// value in place.
type Overrides struct {
	Port             int
	LogLevel         string
	DestinationsFile string
}

func Load(o Overrides) (Config, error) {
	cfg := Config{
		Port:              envInt("PORT", 3000),
		ProbeListenAddr:   env("PROBE_ADDR", "0.0.0.0:7443"),
		LogJSON:           envBool("LOG_JSON", false),
		LogLevel:          strings.ToLower(env("LOG_LEVEL", "info")),
		ShutdownTimeout:   envDuration("SHUTDOWN_TIMEOUT", 20*time.Second),
		ResendInterval:    envDuration("RESEND_INTERVAL", 10*time.Second),
		HealthInterval:    envDuration("HEALTH_INTERVAL", 30*time.Second),
		WorkerConcurrency: envInt("WORKER_CONCURRENCY", 8),
		MaxBodyBytes:      int64(envInt("MAX_BODY_BYTES", 10<<20)),
		SentryDSN:         env("SENTRY_DSN", ""),
		SentryDebug:       env("SENTRY_DEBUG", "") != "",
		Release:           env("HEROKU_RELEASE_VERSION", ""),
		RedisURL:          env("REDIS_URL", ""),
		DestinationsFile:  env("DESTINATIONS_FILE", ""),
		LibratoEndpoint:   env("LIBRATO_ENDPOINT", ""),
		GraphiteEndpoint:  env("GRAPHITE_ENDPOINT", ""),
	}
	if o.Port != 0 {
		cfg.Port = o.Port
	}
	if o.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(o.LogLevel)
	}
	if o.DestinationsFile != "" {
		cfg.DestinationsFile = o.DestinationsFile
	}

	mapped, err := DestinationsFromEnviron(os.Environ())
	if err != nil {
		return Config{}, err
	}
	cfg.Destinations = mapped
	if cfg.DestinationsFile != "" {
		fromFile, err := LoadDestinationsFile(cfg.DestinationsFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Destinations = append(cfg.Destinations, fromFile...)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if strings.TrimSpace(c.ProbeListenAddr) == "" {
		return errors.New("PROBE_ADDR is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.LogLevel)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.ResendInterval <= 0 {
		return errors.New("RESEND_INTERVAL must be > 0")
	}
	if c.HealthInterval <= 0 {
		return errors.New("HEALTH_INTERVAL must be > 0")
	}
	if c.WorkerConcurrency <= 0 {
		return errors.New("WORKER_CONCURRENCY must be > 0")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be > 0")
	}
	if len(c.Destinations) == 0 {
		return errors.New("no destinations configured, set SENTRY_MAPPING_* or DESTINATIONS_FILE")
	}
	seen := make(map[string]struct{}, len(c.Destinations))
	for _, d := range c.Destinations {
		if err := d.Validate(); err != nil {
			return err
		}
		if _, dup := seen[d.Token]; dup {
			return fmt.Errorf("drain token %s configured twice", d.ShortToken())
		}
		seen[d.Token] = struct{}{}
	}
	return nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
