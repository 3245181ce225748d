// Package config defines the top-level configuration for the prediction game
// daemon and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PREDICTION_* environment variables.
type Config struct {
	Game     GameConfig     `toml:"game"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Oracle   OracleConfig   `toml:"oracle"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Keeper   KeeperConfig   `toml:"keeper"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// GameConfig holds the initial game parameters used at genesis. Once the game
// has been initialised these live in the database and are changed through the
// admin API, not by editing this file.
type GameConfig struct {
	AssetID              string `toml:"asset_id"`
	RoundIntervalSeconds int64  `toml:"round_interval_seconds"`
	BidBufferSeconds     int64  `toml:"bid_buffer_seconds"`
	MinBetAmount         uint64 `toml:"min_bet_amount"`
	FeeBps               uint32 `toml:"fee_bps"`
	TreasuryAddress      string `toml:"treasury_address"`
	OracleAddress        string `toml:"oracle_address"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// OracleConfig selects and parameterises the price oracle.
type OracleConfig struct {
	// Provider selects the oracle backend: "chainlink", "http", or "none".
	Provider string `toml:"provider"`

	// RPCURL is the Ethereum JSON-RPC endpoint (chainlink provider).
	RPCURL string `toml:"rpc_url"`
	// Feeds maps asset IDs to Chainlink aggregator contract addresses.
	Feeds map[string]string `toml:"feeds"`

	// Endpoint is the REST ticker endpoint (http provider).
	Endpoint string `toml:"endpoint"`
	// Symbols maps asset IDs to exchange ticker symbols.
	Symbols map[string]string `toml:"symbols"`

	// MaxStale bounds how old an answer may be before it is treated as
	// unavailable, and how long cached prices remain acceptable fallbacks.
	MaxStale duration `toml:"max_stale"`
	Timeout  duration `toml:"timeout"`
	// CacheTTL is the Redis price cache expiry.
	CacheTTL duration `toml:"cache_ttl"`
}

// S3Config holds S3-compatible object storage parameters for round archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// RetentionDays controls which closed rounds the archive job exports:
	// everything older than this many days.
	RetentionDays int `toml:"retention_days"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey protects the /api/admin routes. Empty disables admin auth.
	APIKey string `toml:"api_key"`
	// BetRateLimit caps bet placements per source IP per BetRateWindow.
	// Zero disables rate limiting.
	BetRateLimit  int      `toml:"bet_rate_limit"`
	BetRateWindow duration `toml:"bet_rate_window"`
}

// KeeperConfig holds round-transition keeper tuning.
type KeeperConfig struct {
	TickInterval duration `toml:"tick_interval"`
	LockTTL      duration `toml:"lock_ttl"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Game: GameConfig{
			AssetID:              "BTC-USD",
			RoundIntervalSeconds: 300,
			BidBufferSeconds:     30,
			MinBetAmount:         100,
			FeeBps:               300,
			TreasuryAddress:      "treasury",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "prediction",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Oracle: OracleConfig{
			Provider: "http",
			Endpoint: "https://api.binance.com/api/v3/ticker/price",
			Symbols:  map[string]string{"BTC-USD": "BTCUSDT"},
			Feeds:    map[string]string{},
			MaxStale: duration{2 * time.Minute},
			Timeout:  duration{10 * time.Second},
			CacheTTL: duration{5 * time.Minute},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "prediction-data",
			UseSSL:         false,
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Server: ServerConfig{
			Port:          8000,
			CORSOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			BetRateLimit:  30,
			BetRateWindow: duration{time.Minute},
		},
		Keeper: KeeperConfig{
			TickInterval: duration{5 * time.Second},
			LockTTL:      duration{30 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"round_settled", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"keeper":  true,
	"archive": true,
	"full":    true,
}

// validOracleProviders enumerates the accepted values for Oracle.Provider.
var validOracleProviders = map[string]bool{
	"chainlink": true,
	"http":      true,
	"none":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, keeper, archive, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Game
	if c.Game.AssetID == "" {
		errs = append(errs, "game: asset_id must not be empty")
	}
	if c.Game.RoundIntervalSeconds <= 0 {
		errs = append(errs, "game: round_interval_seconds must be positive")
	}
	if c.Game.BidBufferSeconds < 0 || c.Game.BidBufferSeconds >= c.Game.RoundIntervalSeconds {
		errs = append(errs, "game: bid_buffer_seconds must be >= 0 and shorter than the round interval")
	}
	if c.Game.FeeBps >= 10000 {
		errs = append(errs, fmt.Sprintf("game: fee_bps must be below 10000, got %d", c.Game.FeeBps))
	}
	if c.Game.TreasuryAddress == "" {
		errs = append(errs, "game: treasury_address must not be empty")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Oracle
	provider := strings.ToLower(c.Oracle.Provider)
	if !validOracleProviders[provider] {
		errs = append(errs, fmt.Sprintf("oracle: unknown provider %q (valid: chainlink, http, none)", c.Oracle.Provider))
	}
	switch provider {
	case "chainlink":
		if c.Oracle.RPCURL == "" {
			errs = append(errs, "oracle: rpc_url is required for the chainlink provider")
		}
		if len(c.Oracle.Feeds) == 0 {
			errs = append(errs, "oracle: feeds must map at least one asset for the chainlink provider")
		} else if _, ok := c.Oracle.Feeds[c.Game.AssetID]; !ok && c.Game.AssetID != "" {
			errs = append(errs, fmt.Sprintf("oracle: feeds has no entry for asset %q", c.Game.AssetID))
		}
	case "http":
		if c.Oracle.Endpoint == "" {
			errs = append(errs, "oracle: endpoint is required for the http provider")
		}
		if _, ok := c.Oracle.Symbols[c.Game.AssetID]; !ok && c.Game.AssetID != "" {
			errs = append(errs, fmt.Sprintf("oracle: symbols has no entry for asset %q", c.Game.AssetID))
		}
	}
	if c.Oracle.MaxStale.Duration < 0 {
		errs = append(errs, "oracle: max_stale must not be negative")
	}

	// S3
	if c.S3.Enabled || c.Mode == "archive" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.BetRateLimit < 0 {
		errs = append(errs, "server: bet_rate_limit must not be negative")
	}

	// Keeper
	if c.Keeper.TickInterval.Duration < 0 {
		errs = append(errs, "keeper: tick_interval must not be negative")
	}
	if c.Keeper.LockTTL.Duration < 0 {
		errs = append(errs, "keeper: lock_ttl must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
