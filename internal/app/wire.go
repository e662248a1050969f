package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/voxelspace/spacemarket/internal/blob/s3"
	"github.com/voxelspace/spacemarket/internal/cache/redis"
	"github.com/voxelspace/spacemarket/internal/config"
	"github.com/voxelspace/spacemarket/internal/domain"
	"github.com/voxelspace/spacemarket/internal/funds"
	"github.com/voxelspace/spacemarket/internal/market"
	"github.com/voxelspace/spacemarket/internal/marketstats"
	"github.com/voxelspace/spacemarket/internal/notify"
	"github.com/voxelspace/spacemarket/internal/registry"
	"github.com/voxelspace/spacemarket/internal/service"
	"github.com/voxelspace/spacemarket/internal/store/memory"
	"github.com/voxelspace/spacemarket/internal/store/postgres"
	"github.com/voxelspace/spacemarket/internal/valuation"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Listings domain.ListingStore
	Auctions domain.AuctionStore
	Txs      domain.TransactionStore
	Audit    domain.AuditStore

	// Runtime collaborators
	Registry domain.AssetRegistry
	Ledger   domain.Ledger
	Limiter  domain.RateLimiter
	Locks    domain.LockManager
	Bus      domain.SignalBus
	ValCache domain.ValuationCache
	Stats    *marketstats.Store

	// Services
	MarketSvc    *service.MarketService
	ValuationSvc *service.ValuationService

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsS3 reports whether the mode requires object storage.
func needsS3(cfg *config.Config) bool {
	return cfg.Archive.Enabled || cfg.Mode == "archive"
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

	// --- Persistence ---
	switch cfg.Storage.Driver {
	case "postgres":
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
		deps.Listings = postgres.NewListingStore(pool)
		deps.Auctions = postgres.NewAuctionStore(pool)
		deps.Txs = postgres.NewTransactionStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)

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

		deps.Limiter = redis.NewRateLimiter(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
		deps.Bus = redis.NewSignalBus(redisClient)
		deps.ValCache = redis.NewValuationCache(redisClient)

	case "memory":
		deps.Listings = memory.NewListingStore()
		deps.Auctions = memory.NewAuctionStore()
		deps.Txs = memory.NewTransactionStore()
		deps.Audit = memory.NewAuditStore()
		deps.Limiter = memory.NewRateLimiter()
		deps.Locks = memory.NewLockManager()
		deps.Bus = memory.NewSignalBus(0)
		deps.ValCache = memory.NewValuationCache(0)

	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unsupported storage driver %q", cfg.Storage.Driver)
	}

	// --- Asset registry ---
	if cfg.Registry.Embedded {
		deps.Registry = registry.NewStatic()
	} else {
		deps.Registry = registry.NewClient(cfg.Registry.BaseURL, cfg.Registry.ApiKey, cfg.Registry.Timeout.Duration)
	}

	// --- Funds ledger ---
	deps.Ledger = funds.NewLedger()

	// --- Engines and services ---
	deps.Stats = marketstats.New(0)

	valEngine := valuation.NewEngine(valuation.Config{
		BasePrice:     cfg.Valuation.BasePrice,
		MinValue:      cfg.Valuation.MinValue,
		NeutralDemand: 1.0,
		NeutralSupply: 1.0,
	})

	marketEngine := market.NewEngine(
		deps.Listings,
		deps.Auctions,
		deps.Txs,
		deps.Registry,
		deps.Ledger,
		valEngine,
		deps.Stats,
		market.Config{
			FeeRateBps:         cfg.Market.FeeRateBps,
			MaxFeeRateBps:      cfg.Market.MaxFeeRateBps,
			MinIncrementBps:    cfg.Market.MinIncrementBps,
			VerifiedPremiumBps: cfg.Market.VerifiedPremiumBps,
			MinAuctionDuration: cfg.Market.MinAuctionDuration.Duration,
			MaxAuctionDuration: cfg.Market.MaxAuctionDuration.Duration,
			RegistryTimeout:    cfg.Registry.Timeout.Duration,
			Operator:           cfg.Market.Operator,
		},
		logger,
	)

	deps.MarketSvc = service.NewMarketService(
		marketEngine,
		deps.Listings,
		deps.Auctions,
		deps.Txs,
		deps.Limiter,
		deps.Locks,
		deps.Bus,
		deps.Audit,
		logger,
		cfg.Market.RateLimitWrites,
		cfg.Market.RateLimitWindow.Duration,
	)

	deps.ValuationSvc = service.NewValuationService(
		valEngine,
		deps.Registry,
		deps.ValCache,
		deps.Stats,
		logger,
		cfg.Registry.Timeout.Duration,
	)

	// --- S3 blob storage ---
	if needsS3(cfg) {
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
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.Txs, deps.Audit)
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
	deps.Notifier = notify.New(senders, cfg.Notify.Events, logger)
	if len(senders) > 0 {
		deps.MarketSvc.SetNotifier(deps.Notifier)
	}

	return deps, cleanup, nil
}
