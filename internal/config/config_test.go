package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"HEMOCORE_ADDR", "HEMOCORE_STORE", "HEMOCORE_DB_PATH",
		"HEMOCORE_PG_DSN", "HEMOCORE_KAFKA_BROKERS", "HEMOCORE_KAFKA_TOPIC",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Fatalf("default addr: got %q", cfg.Addr)
	}
	if cfg.Store != "sqlite" {
		t.Fatalf("default store: got %q", cfg.Store)
	}
	if cfg.DBPath != "hemocore.db" {
		t.Fatalf("default db path: got %q", cfg.DBPath)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("eventing should default off, got %v", cfg.KafkaBrokers)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HEMOCORE_ADDR", ":9090")
	t.Setenv("HEMOCORE_STORE", "postgres")
	t.Setenv("HEMOCORE_PG_DSN", "postgres://db/hemocore")
	t.Setenv("HEMOCORE_KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
	t.Setenv("HEMOCORE_KAFKA_TOPIC", "blood-events")

	cfg := Load()
	if cfg.Addr != ":9090" || cfg.Store != "postgres" || cfg.PostgresDSN != "postgres://db/hemocore" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "broker-1:9092" || cfg.KafkaBrokers[1] != "broker-2:9092" {
		t.Fatalf("broker list not parsed: %v", cfg.KafkaBrokers)
	}
	if cfg.KafkaTopic != "blood-events" {
		t.Fatalf("topic not read: %q", cfg.KafkaTopic)
	}
}
