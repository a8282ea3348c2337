// Package config reads server settings from the environment and an
// optional .env file
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds every server setting
type Config struct {
	Port           string
	DatabaseURL    string
	SQLitePath     string
	KafkaBrokers   []string
	AIThinkDelay   time.Duration
	// zero disables the idle session reaper
	SessionIdleTTL time.Duration
	LogLevel       string
	LogFormat      string
}

// Defaults returns the settings used when nothing is configured
func Defaults() Config {
	return Config{
		Port:           "8080",
		AIThinkDelay:   500 * time.Millisecond,
		SessionIdleTTL: 30 * time.Minute,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// LoadEnvFile loads environment variables from a .env file. Non-empty
// variables already in the environment win. A missing file is not an error
func LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if os.Getenv(key) == "" { // Don't override existing env vars
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

// Load builds a Config from the environment on top of Defaults
func Load() (Config, error) {
	cfg := Defaults()

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SQLitePath = os.Getenv("SQLITE_PATH")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.AIThinkDelay, err = duration("AI_THINK_DELAY", cfg.AIThinkDelay); err != nil {
		return Config{}, err
	}
	if cfg.SessionIdleTTL, err = duration("SESSION_IDLE_TTL", cfg.SessionIdleTTL); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	return cfg, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}

// KafkaEnabled reports whether any broker is configured
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
