package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	litgo "github.com/NicholasJacob1990/litgo"
	"github.com/NicholasJacob1990/litgo/internal/audit"
	"github.com/NicholasJacob1990/litgo/internal/cache"
	"github.com/NicholasJacob1990/litgo/internal/config"
	"github.com/NicholasJacob1990/litgo/internal/match"
	"github.com/NicholasJacob1990/litgo/internal/storage"
	"github.com/NicholasJacob1990/litgo/internal/telemetry"
	"github.com/NicholasJacob1990/litgo/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("LITGO_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("litgo starting", "version", version)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, true)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Connect to database and run migrations.
	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Static feature cache: Redis when configured, otherwise recompute.
	featureCache := newFeatureCache(cfg, logger)

	// LTR weight snapshot source: file takes precedence over the database.
	var loader match.SnapshotLoader
	if cfg.WeightsFile != "" {
		loader = match.FileLoader{Path: cfg.WeightsFile}
		logger.Info("weight loader: file", "path", cfg.WeightsFile)
	} else {
		loader = storage.WeightLoader{DB: db}
		logger.Info("weight loader: postgres")
	}

	eng, err := litgo.New(db,
		litgo.WithLogger(logger),
		litgo.WithCache(featureCache),
		litgo.WithAuditSink(audit.NewLog(logger)),
		litgo.WithWeightLoader(loader),
		litgo.WithCacheTTL(cfg.CacheTTL),
		litgo.WithOfferTTL(cfg.OfferTTL),
		litgo.WithGeoRadiusKM(cfg.GeoRadiusKM),
		litgo.WithEmbeddingDim(cfg.EmbeddingDim),
		litgo.WithTopN(cfg.TopN),
		litgo.WithWorkers(cfg.Workers),
		litgo.WithFairness(litgo.FairnessParams{
			MinEpsilon:      cfg.MinEpsilon,
			BetaEquity:      cfg.BetaEquity,
			OverloadFloor:   cfg.OverloadFloor,
			DiversityTau:    cfg.DiversityTau,
			DiversityLambda: cfg.DiversityLambda,
		}),
	)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	// Sweep due pending offers until shutdown.
	expireLoop(ctx, eng, logger, cfg.OfferExpireInterval)

	slog.Info("litgo stopped")
	return nil
}

// newFeatureCache wires the Redis-backed static feature cache, or a no-op
// cache when REDIS_URL is unset or unparsable.
func newFeatureCache(cfg config.Config, logger *slog.Logger) cache.Store {
	if cfg.RedisURL == "" {
		logger.Info("feature cache: disabled (no REDIS_URL)")
		return cache.Noop{}
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("feature cache: bad REDIS_URL, caching disabled", "error", err)
		return cache.Noop{}
	}
	logger.Info("feature cache: redis", "addr", opts.Addr)
	return cache.NewRedis(redis.NewClient(opts))
}

// expireLoop periodically expires due pending offers. Blocks until ctx is
// cancelled.
func expireLoop(ctx context.Context, eng *litgo.Engine, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			n, err := eng.ExpirePendingOffers(opCtx)
			cancel()
			if err != nil {
				logger.Warn("offer expiration sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("offer expiration sweep", "expired", n)
			}
		}
	}
}
