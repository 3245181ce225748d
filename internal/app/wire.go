package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/Clish254/prediction-game/internal/blob/s3"
	"github.com/Clish254/prediction-game/internal/cache/redis"
	"github.com/Clish254/prediction-game/internal/config"
	"github.com/Clish254/prediction-game/internal/custody"
	"github.com/Clish254/prediction-game/internal/domain"
	"github.com/Clish254/prediction-game/internal/notify"
	"github.com/Clish254/prediction-game/internal/oracle"
	"github.com/Clish254/prediction-game/internal/service"
	"github.com/Clish254/prediction-game/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	RoundStore      domain.RoundStore
	BetStore        domain.BetStore
	BalanceStore    domain.BalanceStore
	GameConfigStore domain.GameConfigStore
	AuditStore      domain.AuditStore

	// Caches
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Oracle
	Oracle domain.PriceOracle

	// Game service
	Game *service.GameService

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// HealthChecks maps dependency names to connectivity probes for the
	// health endpoint.
	HealthChecks map[string]func(context.Context) error
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.RoundStore = postgres.NewRoundStore(pool)
	deps.BetStore = postgres.NewBetStore(pool)
	deps.BalanceStore = postgres.NewBalanceStore(pool)
	deps.GameConfigStore = postgres.NewGameConfigStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.HealthChecks = map[string]func(context.Context) error{
		"postgres": pgClient.Ping,
		"redis":    redisClient.Ping,
	}

	deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Oracle.CacheTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- Oracle ---
	var inner domain.PriceOracle
	switch strings.ToLower(cfg.Oracle.Provider) {
	case "chainlink":
		cl := oracle.NewChainlink(oracle.ChainlinkConfig{
			RPCURL:   cfg.Oracle.RPCURL,
			Feeds:    cfg.Oracle.Feeds,
			MaxStale: cfg.Oracle.MaxStale.Duration,
			Timeout:  cfg.Oracle.Timeout.Duration,
		}, logger)
		closers = append(closers, cl.Close)
		inner = cl
	case "http":
		inner = oracle.NewHTTPOracle(oracle.HTTPConfig{
			Endpoint: cfg.Oracle.Endpoint,
			Symbols:  cfg.Oracle.Symbols,
			Timeout:  cfg.Oracle.Timeout.Duration,
		}, logger)
	default:
		inner = oracle.Disabled{}
	}
	deps.Oracle = oracle.NewCached(inner, deps.PriceCache, cfg.Oracle.MaxStale.Duration, logger)

	// --- Game service ---
	cust := custody.New(deps.BalanceStore, logger)
	deps.Game = service.NewGameService(
		deps.RoundStore,
		deps.BetStore,
		deps.GameConfigStore,
		cust,
		deps.Oracle,
		domain.SystemClock{},
		deps.SignalBus,
		deps.AuditStore,
		logger,
	)

	// --- S3 blob storage (only when archival is in play) ---
	if cfg.S3.Enabled || strings.ToLower(cfg.Mode) == "archive" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.HealthChecks["s3"] = s3Client.Ping

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			deps.RoundStore,
			deps.BetStore,
			deps.AuditStore,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
