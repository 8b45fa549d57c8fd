package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	BackendURL     string        `validate:"required,url"`
	BackendTimeout time.Duration `validate:"gt=0"`
	HistoryLimit   int           `validate:"min=1,max=1000"`

	HTTPAddr        string `validate:"required"`
	LogLevel        string `validate:"oneof=debug info warn warning error"`
	LogFormat       string `validate:"oneof=json text"`
	ShutdownTimeout time.Duration

	MaxSessions  int    `validate:"min=1"`
	GuidancePath string `validate:"required,startswith=/"`

	// Circuit breaker around the prediction backend.
	BreakerMaxFailures int           `validate:"min=1"`
	BreakerOpenTimeout time.Duration `validate:"gt=0"`

	// Activity event publishing.
	EventsEnabled    bool
	KafkaBrokers     []string
	KafkaEventsTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first when present; it never
// overrides variables that are already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	backendTimeout, err := parseDuration("BACKEND_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	breakerTimeout, err := parseDuration("BREAKER_OPEN_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	historyLimit, err := parseInt("HISTORY_LIMIT", 30)
	if err != nil {
		return nil, err
	}
	maxSessions, err := parseInt("MAX_SESSIONS", 1000)
	if err != nil {
		return nil, err
	}
	breakerFailures, err := parseInt("BREAKER_MAX_FAILURES", 5)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	eventsEnabled := len(brokers) > 0
	if v := os.Getenv("EVENTS_ENABLED"); v != "" {
		eventsEnabled = v == "true"
	}

	cfg := &Config{
		BackendURL:     sharedcfg.EnvOrDefault("BACKEND_URL", "http://localhost:8000"),
		BackendTimeout: backendTimeout,
		HistoryLimit:   historyLimit,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MaxSessions:  maxSessions,
		GuidancePath: sharedcfg.EnvOrDefault("GUIDANCE_PATH", "/dicas"),

		BreakerMaxFailures: breakerFailures,
		BreakerOpenTimeout: breakerTimeout,

		EventsEnabled:    eventsEnabled,
		KafkaBrokers:     brokers,
		KafkaEventsTopic: sharedcfg.EnvOrDefault("KAFKA_EVENTS_TOPIC", "dashboard-activity"),
	}

	if cfg.EventsEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("EVENTS_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.EventsEnabled && cfg.KafkaEventsTopic == "" {
		return nil, errors.New("KAFKA_EVENTS_TOPIC is required when events are enabled")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
