package main

import (
	"github.com/rs/zerolog"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/shopmate/internal/assistant"
	"github.com/noah-isme/shopmate/internal/audit"
	"github.com/noah-isme/shopmate/internal/cart"
	"github.com/noah-isme/shopmate/internal/catalog"
	"github.com/noah-isme/shopmate/internal/checkout"
	"github.com/noah-isme/shopmate/internal/config"
	"github.com/noah-isme/shopmate/internal/docstore"
	"github.com/noah-isme/shopmate/internal/favorites"
	"github.com/noah-isme/shopmate/internal/genai"
	"github.com/noah-isme/shopmate/internal/intent"
	"github.com/noah-isme/shopmate/internal/lock"
	"github.com/noah-isme/shopmate/internal/notify"
	"github.com/noah-isme/shopmate/internal/payment"
	"github.com/noah-isme/shopmate/internal/resilience"
	"github.com/noah-isme/shopmate/internal/voucher"
)

// handlers groups every HTTP handler mounted by the router.
type handlers struct {
	catalog       *catalog.Handler
	vouchers      *voucher.Handler
	carts         *cart.Handler
	checkout      *checkout.Handler
	assistant     *assistant.Handler
	notifications *notify.HTTPHandler
	favorites     *favorites.Handler
	audit         *audit.Handler
	auditLog      *audit.Service
}

// buildHandlers wires the domain services on top of store and the Redis client.
func buildHandlers(cfg *config.Config, logger zerolog.Logger, store docstore.Store, rdb *redis.Client, notifier notify.Enqueuer) (*handlers, error) {
	products, err := catalog.NewService(catalog.ServiceConfig{
		Store:  store,
		Cache:  catalog.NewCache(rdb, cfg.CatalogCacheTTL),
		Logger: logger.With().Str("component", "catalog").Logger(),
	})
	if err != nil {
		return nil, err
	}
	vouchers := &voucher.Service{Store: store, Logger: logger.With().Str("component", "voucher").Logger()}
	carts := &cart.Service{
		Store:       store,
		Catalog:     products,
		Vouchers:    vouchers,
		ShippingFee: cfg.ShippingFee,
		TTL:         cfg.CartTTL,
	}

	breakers := resilience.BreakerConfig{
		MinRequests:  cfg.Circuit.MinRequests,
		FailureRatio: cfg.Circuit.FailureRatio,
		OpenFor:      cfg.Circuit.OpenFor,
	}
	var model genai.Generator
	if cfg.GenAI.Enabled() {
		breaker := resilience.NewBreaker("genai", breakers).WithLogger(logger)
		model = &genai.Client{
			HTTP:    resilience.NewHTTPClient("genai", cfg.GenAI.Timeout, breaker),
			BaseURL: cfg.GenAI.BaseURL,
			Model:   cfg.GenAI.Model,
			APIKey:  cfg.GenAI.APIKey,
		}
	}
	assistantLogger := logger.With().Str("component", "assistant").Logger()
	chat := &assistant.Service{
		Extractor:    &intent.Extractor{Model: model, Timeout: cfg.GenAI.Timeout, Logger: assistantLogger},
		Catalog:      products,
		Writer:       model,
		MaxResults:   cfg.AssistantMaxResults,
		WriteTimeout: cfg.GenAI.Timeout,
		Logger:       assistantLogger,
	}

	checkoutSvc := &checkout.Service{
		Store:       store,
		Carts:       carts,
		Vouchers:    vouchers,
		Payments:    buildPayments(cfg, logger, breakers),
		Locker:      lock.Locker{R: rdb, Prefix: "lock:", MaxWait: cfg.CheckoutLockTTL},
		Notifier:    notifier,
		ShippingFee: cfg.ShippingFee,
		CurrencyExp: cfg.CurrencyMinorExponent,
		LockTTL:     cfg.CheckoutLockTTL,
		Logger:      logger.With().Str("component", "checkout").Logger(),
	}

	auditLog := &audit.Service{Store: store}

	return &handlers{
		catalog:       catalog.NewHandler(catalog.HandlerConfig{Service: products}),
		vouchers:      &voucher.Handler{Svc: vouchers},
		carts:         &cart.Handler{Svc: carts},
		checkout:      &checkout.Handler{Svc: checkoutSvc},
		assistant:     &assistant.Handler{Svc: chat},
		notifications: &notify.HTTPHandler{Store: store},
		favorites:     &favorites.Handler{Svc: &favorites.Service{Store: store, Catalog: products}},
		audit:         &audit.Handler{Svc: auditLog},
		auditLog:      auditLog,
	}, nil
}

// buildPayments uses the configured gateway, with the simulated one as fallback or sole gateway when allowed.
func buildPayments(cfg *config.Config, logger zerolog.Logger, breakers resilience.BreakerConfig) *payment.Service {
	svc := &payment.Service{Logger: logger.With().Str("component", "payment").Logger()}
	var simulated payment.Gateway
	if cfg.Payment.SimulateOnFailure {
		simulated = payment.Simulated{RedirectBaseURL: cfg.Payment.RedirectBaseURL}
	}
	if cfg.Payment.Endpoint != "" {
		breaker := resilience.NewBreaker("payment", breakers).WithLogger(logger)
		svc.Primary = &payment.HTTPGateway{
			HTTP:     resilience.NewHTTPClient("payment", cfg.Payment.Timeout, breaker),
			Endpoint: cfg.Payment.Endpoint,
		}
		svc.Fallback = simulated
	} else {
		svc.Primary = simulated
	}
	return svc
}
