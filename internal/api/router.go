package api

import (
	"net/http"

	"github.com/ayo6706/restaurant-loyalty/internal/api/handler"
	"github.com/ayo6706/restaurant-loyalty/internal/api/middleware"
	"github.com/ayo6706/restaurant-loyalty/internal/api/spec"
	"github.com/ayo6706/restaurant-loyalty/internal/config"
	"github.com/ayo6706/restaurant-loyalty/internal/idempotency"
	"github.com/ayo6706/restaurant-loyalty/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services are the ledger services the HTTP surface calls into.
type Services struct {
	Resolver       *service.IdentityResolver
	Ledger         *service.LedgerService
	Awards         *service.AwardService
	Redemptions    *service.RedemptionService
	Vouchers       *service.VoucherService
	Claims         *service.ClaimService
	Refunds        *service.RefundService
	Recovery       *service.RecoveryService
	Reconciliation *service.ReconciliationService
	Webhook        *service.WebhookService
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        handler.Pinger
	idemStore *idempotency.Store
	redis     redis.Cmdable
	svc       Services
}

// NewRouter wires handlers to services. redis may be nil.
func NewRouter(cfg *config.Config, logger *zap.Logger, db handler.Pinger, idemStore *idempotency.Store, redisClient redis.Cmdable, svc Services) *Router {
	return &Router{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		idemStore: idemStore,
		redis:     redisClient,
		svc:       svc,
	}
}

func (api *Router) Routes() chi.Router {
	middleware.SetJWTSecret(api.cfg.JWTSecret)
	middleware.SetJWTValidation(api.cfg.JWTIssuer, api.cfg.JWTAudience)

	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)
	if len(api.cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   api.cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Trace-ID"},
			ExposedHeaders:   []string{"X-Trace-ID", "X-Idempotent-Replay"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	webhookHandler := handler.NewWebhookHandler(api.svc.Webhook)
	loyaltyHandler := handler.NewLoyaltyHandler(
		api.svc.Resolver,
		api.svc.Ledger,
		api.svc.Awards,
		api.svc.Redemptions,
		api.svc.Vouchers,
		api.svc.Claims,
		api.svc.Recovery,
	)
	adminHandler := handler.NewAdminHandler(
		api.svc.Resolver,
		api.svc.Awards,
		api.svc.Refunds,
		api.svc.Claims,
		api.svc.Reconciliation,
	)
	idempotent := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

	// Public Routes
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.With(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS)).
		Post("/v1/webhooks/payments", webhookHandler.HandlePaymentWebhook)

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Route("/v1/loyalty", func(r chi.Router) {
			r.Get("/balance", loyaltyHandler.GetBalance)
			r.Get("/history", loyaltyHandler.GetHistory)
			r.Get("/vouchers", loyaltyHandler.ListVouchers)
			r.Get("/vouchers/eligible", loyaltyHandler.ListEligibleVouchers)
			r.Get("/claims", loyaltyHandler.ListClaims)

			r.With(idempotent).Post("/vouchers/{code}/use", loyaltyHandler.UseVoucher)
			r.With(idempotent).Post("/redemptions", loyaltyHandler.Redeem)
			r.With(idempotent).Post("/claims", loyaltyHandler.Claim)
			r.With(idempotent).Post("/recover", loyaltyHandler.Recover)
			r.With(idempotent).Post("/signup-bonus", loyaltyHandler.GrantSignupBonus)
		})

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleAdmin))

			r.With(idempotent).Post("/orders/{id}/paid", adminHandler.MarkOrderPaid)
			r.With(idempotent).Post("/orders/{id}/refund", adminHandler.RefundOrder)
			r.With(idempotent).Post("/awards", adminHandler.Award)
			r.Post("/reconciliation", adminHandler.Reconcile)
			r.Delete("/claims", adminHandler.ResetClaim)
		})
	})

	return r
}
