package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.BroadcastInterval != 2*time.Second {
		t.Fatalf("expected default interval 2s, got %s", cfg.BroadcastInterval)
	}
	if cfg.StoreBackend != "clickhouse" {
		t.Fatalf("expected clickhouse backend, got %s", cfg.StoreBackend)
	}
	if cfg.GeminiTimeout != 25*time.Second {
		t.Fatalf("expected gemini timeout 25s, got %s", cfg.GeminiTimeout)
	}
	if cfg.HistoryHours != 24 {
		t.Fatalf("expected 24 history hours, got %d", cfg.HistoryHours)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "8088")
	t.Setenv("STORE_BACKEND", "Mongo")
	t.Setenv("BROADCAST_INTERVAL", "10")
	t.Setenv("STORE_QUERY_TIMEOUT", "750ms")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("MQTT_ENABLED", "false")
	t.Setenv("HISTORY_HOURS", "not-a-number")
	t.Setenv("BROADCAST_ALLOW_OVERLAP", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Port != "8088" {
		t.Fatalf("expected port 8088, got %s", cfg.Port)
	}
	if cfg.StoreBackend != "mongo" {
		t.Fatalf("expected mongo backend, got %s", cfg.StoreBackend)
	}
	if cfg.BroadcastInterval != 10*time.Second {
		t.Fatalf("expected plain seconds to parse, got %s", cfg.BroadcastInterval)
	}
	if cfg.StoreQueryTimeout != 750*time.Millisecond {
		t.Fatalf("expected 750ms, got %s", cfg.StoreQueryTimeout)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.MQTTEnabled {
		t.Fatal("expected MQTT to be disabled")
	}
	if cfg.HistoryHours != 24 {
		t.Fatalf("expected invalid int to keep default, got %d", cfg.HistoryHours)
	}
	if !cfg.BroadcastAllowOverlap {
		t.Fatal("expected overlapping ticks to be allowed")
	}
}

func TestLoadYAMLFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := `
port: "7000"
store_backend: timescale
broadcast_interval: 5s
live_device: hall-sensor
gemini_timeout: 0s
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Port != "7001" {
		t.Fatalf("expected env to win over file, got %s", cfg.Port)
	}
	if cfg.StoreBackend != "timescale" {
		t.Fatalf("expected timescale from file, got %s", cfg.StoreBackend)
	}
	if cfg.BroadcastInterval != 5*time.Second {
		t.Fatalf("expected 5s from file, got %s", cfg.BroadcastInterval)
	}
	if cfg.LiveDevice != "hall-sensor" {
		t.Fatalf("expected live device from file, got %s", cfg.LiveDevice)
	}
	if cfg.GeminiTimeout != 25*time.Second {
		t.Fatalf("expected zero timeout to fall back to default, got %s", cfg.GeminiTimeout)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORE_BACKEND", "influx")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TIMEZONE", "Mars/Olympus_Mons")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
