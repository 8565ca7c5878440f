package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/api"
	"github.com/ayo6706/restaurant-loyalty/internal/config"
	"github.com/ayo6706/restaurant-loyalty/internal/db"
	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/idempotency"
	"github.com/ayo6706/restaurant-loyalty/internal/observability"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/ayo6706/restaurant-loyalty/internal/service"
	"github.com/ayo6706/restaurant-loyalty/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server and background workers, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	var cache redis.Cmdable
	if cfg.RedisURL != "" {
		redisClient, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		cache = redisClient
	} else {
		logger.Warn("REDIS_URL is empty, idempotency cache disabled")
	}

	store := repository.NewStore(pool)
	svc, err := NewServices(cfg, store)
	if err != nil {
		return err
	}
	idemStore := idempotency.NewStore(cache, store, cfg.IdempotencyTTL)

	expiryWorker := worker.NewVoucherExpiryWorker(svc.Vouchers).WithPollInterval(cfg.VoucherExpiryInterval)
	stopExpiry := expiryWorker.Run(ctx)
	logger.Info("voucher expiry worker started", zap.Duration("interval", cfg.VoucherExpiryInterval))

	reconciliationWorker := worker.NewReconciliationWorker(svc.Reconciliation).WithInterval(cfg.ReconciliationInterval)
	stopReconciliation := reconciliationWorker.Run(ctx)
	logger.Info("reconciliation worker started", zap.Duration("interval", cfg.ReconciliationInterval))

	router := api.NewRouter(cfg, logger, pool, idemStore, cache, svc)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	stopExpiry()
	stopReconciliation()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// NewServices wires the ledger services over store.
func NewServices(cfg *config.Config, store service.QueryStore) (api.Services, error) {
	campaign, err := domain.NewCampaign(cfg.CampaignStart, cfg.CampaignDays, cfg.CampaignTimezone)
	if err != nil {
		return api.Services{}, fmt.Errorf("campaign config: %w", err)
	}
	resolver := service.NewIdentityResolver(store)
	awards := service.NewAwardService(store, resolver, service.BonusConfig{
		SignupPoints:     cfg.SignupBonusPoints,
		FirstOrderPoints: cfg.FirstOrderBonusPoints,
	})
	refunds := service.NewRefundService(store, resolver)
	return api.Services{
		Resolver:       resolver,
		Ledger:         service.NewLedgerService(store),
		Awards:         awards,
		Redemptions:    service.NewRedemptionService(store),
		Vouchers:       service.NewVoucherService(store),
		Claims:         service.NewClaimService(store, campaign),
		Refunds:        refunds,
		Recovery:       service.NewRecoveryService(store, awards, cfg.OrphanRecoveryWindow),
		Reconciliation: service.NewReconciliationService(store, resolver),
		Webhook:        service.NewWebhookService(awards, refunds, cfg.WebhookHMACKey, cfg.WebhookSkipSignature),
	}, nil
}

// NewLogger builds a production zap logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
