package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "server"

[game]
asset_id = "ETH-USD"
fee_bps = 500

[oracle]
provider = "http"
symbols = { "ETH-USD" = "ETHUSDT" }
max_stale = "90s"

[server]
port = 9100
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "server" {
		t.Errorf("Mode = %q, want server", cfg.Mode)
	}
	if cfg.Game.AssetID != "ETH-USD" {
		t.Errorf("Game.AssetID = %q, want ETH-USD", cfg.Game.AssetID)
	}
	if cfg.Game.FeeBps != 500 {
		t.Errorf("Game.FeeBps = %d, want 500", cfg.Game.FeeBps)
	}
	if cfg.Oracle.MaxStale.Duration != 90*time.Second {
		t.Errorf("Oracle.MaxStale = %v, want 90s", cfg.Oracle.MaxStale.Duration)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	// Untouched sections keep their defaults.
	if cfg.Postgres.Port != 5432 {
		t.Errorf("Postgres.Port = %d, want default 5432", cfg.Postgres.Port)
	}
	if cfg.Game.RoundIntervalSeconds != 300 {
		t.Errorf("Game.RoundIntervalSeconds = %d, want default 300", cfg.Game.RoundIntervalSeconds)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeTOML(t, `
[postgres]
password = "from-toml"
`)

	t.Setenv("PREDICTION_POSTGRES_PASSWORD", "from-env")
	t.Setenv("PREDICTION_GAME_FEE_BPS", "1500")
	t.Setenv("PREDICTION_KEEPER_TICK_INTERVAL", "2s")
	t.Setenv("PREDICTION_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Postgres.Password != "from-env" {
		t.Errorf("Postgres.Password = %q, want env override", cfg.Postgres.Password)
	}
	if cfg.Game.FeeBps != 1500 {
		t.Errorf("Game.FeeBps = %d, want 1500", cfg.Game.FeeBps)
	}
	if cfg.Keeper.TickInterval.Duration != 2*time.Second {
		t.Errorf("Keeper.TickInterval = %v, want 2s", cfg.Keeper.TickInterval.Duration)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != len(want) || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("Server.CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "orbit"
	cfg.Game.FeeBps = 10000
	cfg.Game.BidBufferSeconds = cfg.Game.RoundIntervalSeconds
	cfg.Oracle.Provider = "chainlink" // no rpc_url, no feeds
	cfg.Server.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted invalid config")
	}
	for _, want := range []string{
		"unknown mode",
		"fee_bps",
		"bid_buffer_seconds",
		"rpc_url",
		"port",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate error missing %q: %v", want, err)
		}
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Server.APIKey = "sk-admin"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)

	if red.Postgres.Password != "***" || red.Server.APIKey != "***" || red.Notify.TelegramToken != "***" {
		t.Error("secrets not redacted")
	}
	if cfg.Postgres.Password != "hunter2" {
		t.Error("original config mutated")
	}
	// Empty secrets stay empty rather than becoming placeholders.
	if red.Redis.Password != "" {
		t.Errorf("Redis.Password = %q, want empty", red.Redis.Password)
	}
}
