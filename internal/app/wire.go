package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/horaja/arbitrage-engine/internal/blob/s3"
	"github.com/horaja/arbitrage-engine/internal/cache/redis"
	"github.com/horaja/arbitrage-engine/internal/config"
	"github.com/horaja/arbitrage-engine/internal/crypto"
	"github.com/horaja/arbitrage-engine/internal/domain"
	"github.com/horaja/arbitrage-engine/internal/execution"
	"github.com/horaja/arbitrage-engine/internal/notify"
	"github.com/horaja/arbitrage-engine/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	CycleStore  domain.CycleStore
	AuditStore  domain.AuditStore
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	Signer   *crypto.Signer
	Gateway  *execution.Gateway
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
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
	deps.CycleStore = postgres.NewCycleStore(pool)
	cycleStoreImpl := deps.CycleStore.(*postgres.CycleStore)
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

	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage ---
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

	deps.BlobWriter = s3blob.NewWriter(s3Client)
	deps.BlobReader = s3blob.NewReader(s3Client)
	deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, cycleStoreImpl, deps.AuditStore)

	// --- Wallet signer + execution gateway (optional: only if a key source is configured) ---
	if cfg.Wallet.PrivateKey != "" || cfg.Wallet.EncryptedKeyPath != "" {
		key, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: load wallet key: %w", err)
		}
		signer, err := crypto.NewSigner(key, cfg.Wallet.ChainID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: create signer: %w", err)
		}
		deps.Signer = signer
		deps.Gateway = execution.NewGateway(alwaysAllowRiskGate{}, signer, logger)
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

// alwaysAllowRiskGate is the default execution.RiskGate used when no external
// risk model is configured. It exists so the Execution Gateway has something
// to evaluate against out of the box; operators who need latency/venue-aware
// risk checks should supply their own execution.RiskGate implementation.
type alwaysAllowRiskGate struct{}

func (alwaysAllowRiskGate) Evaluate(ctx context.Context, event domain.CycleEvent) (bool, string, error) {
	return true, "no risk model configured", nil
}
