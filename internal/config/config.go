// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                      string
	DatabaseURL               string
	MemberServiceURL          string
	LogLevel                  string
	OTLPEndpoint              string
	ServiceName               string
	RegistrationRatePerMinute int
	MemberCacheSize           int
	MetricsEnabled            bool
	ShutdownTimeout           time.Duration

	// EnvFileLoaded reports whether a .env file was found.
	EnvFileLoaded bool
}

// Load reads an optional .env file, then the process environment. Values
// already set in the environment win over the file.
func Load() (*Config, error) {
	loaded := godotenv.Load() == nil

	rate, err := getEnvInt("REGISTRATION_RATE_PER_MINUTE", 5)
	if err != nil {
		return nil, err
	}
	cacheSize, err := getEnvInt("MEMBER_CACHE_SIZE", 1024)
	if err != nil {
		return nil, err
	}
	metrics, err := getEnvBool("METRICS_ENABLED", true)
	if err != nil {
		return nil, err
	}
	shutdown, err := getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                      getEnv("PORT", "8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		MemberServiceURL:          getEnv("MEMBER_SERVICE_URL", ""),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		OTLPEndpoint:              getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:               getEnv("SERVICE_NAME", "swimclub"),
		RegistrationRatePerMinute: rate,
		MemberCacheSize:           cacheSize,
		MetricsEnabled:            metrics,
		ShutdownTimeout:           shutdown,
		EnvFileLoaded:             loaded,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if c.RegistrationRatePerMinute <= 0 {
		return fmt.Errorf("REGISTRATION_RATE_PER_MINUTE must be positive, got %d", c.RegistrationRatePerMinute)
	}
	if c.MemberCacheSize < 0 {
		return fmt.Errorf("MEMBER_CACHE_SIZE cannot be negative, got %d", c.MemberCacheSize)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
