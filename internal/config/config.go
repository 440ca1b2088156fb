// Package config provides a minimal env-var config loader for the hemocore
// server binary.
package config

import (
	"os"
	"strings"
)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// Store selects the persistence backend: memory, sqlite, or postgres.
	Store string
	// DBPath is the SQLite database path (sqlite store only).
	DBPath string
	// PostgresDSN is the connection string (postgres store only).
	PostgresDSN string
	// KafkaBrokers enables lifecycle event publishing when non-empty.
	KafkaBrokers []string
	// KafkaTopic overrides the default lifecycle topic.
	KafkaTopic string
}

// Load reads config from environment variables with sensible defaults.
func Load() *Config {
	cfg := &Config{
		Addr:        getenv("HEMOCORE_ADDR", ":8080"),
		Store:       getenv("HEMOCORE_STORE", "sqlite"),
		DBPath:      getenv("HEMOCORE_DB_PATH", "hemocore.db"),
		PostgresDSN: os.Getenv("HEMOCORE_PG_DSN"),
		KafkaTopic:  os.Getenv("HEMOCORE_KAFKA_TOPIC"),
	}
	if brokers := os.Getenv("HEMOCORE_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
