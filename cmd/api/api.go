package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/auth"
	"storefront/internal/checkout"
	"storefront/internal/domain/storage"
	"storefront/internal/idempotency"
	"storefront/internal/inventory"
	"storefront/internal/payments"
	"storefront/internal/pricing"
	"storefront/internal/ratelimiter"
	"storefront/internal/rbac"
	"storefront/internal/retry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         *storage.Container
	logger        *zap.SugaredLogger
	authenticator auth.Authenticator
	limiter       *ratelimiter.Guard
	providers     *payments.PaymentManager
	validator     *payments.Validator
	ledger        *inventory.Ledger
	checkout      *checkout.Orchestrator
}

func newApplication(
	cfg config,
	store *storage.Container,
	providers *payments.PaymentManager,
	notifier inventory.Notifier,
	logger *zap.SugaredLogger,
) (*application, error) {
	if cfg.auth.token.secret == "" {
		return nil, errors.New("AUTH_TOKEN_SECRET is required")
	}

	discounts, err := pricing.ParseDiscounts(cfg.pricing.discountCodes)
	if err != nil {
		return nil, fmt.Errorf("DISCOUNT_CODES: %w", err)
	}
	var tax pricing.TaxCalculator = pricing.NoTax{}
	if cfg.pricing.taxRates != "" {
		rates, err := pricing.ParseTaxRates(cfg.pricing.taxRates)
		if err != nil {
			return nil, fmt.Errorf("TAX_RATES: %w", err)
		}
		tax = rates
	}

	cache := idempotency.NewCache(store.KV, idempotency.DefaultTTL)
	exec := retry.NewExecutor(retry.DefaultOptions(), logger)
	validator := payments.NewValidator(providers, store.Payments, store.PayLogs, cache, exec, logger)
	engine := pricing.NewEngine(store.Products, discounts, tax)
	ledger := inventory.NewLedger(store, notifier, logger)

	return &application{
		config:        cfg,
		store:         store,
		logger:        logger,
		authenticator: auth.NewJWTAuthenticator(cfg.auth.token.secret, cfg.auth.token.iss, cfg.auth.token.iss),
		limiter: ratelimiter.NewGuard(
			ratelimiter.NewFixedWindowLimiter(store.KV, logger),
			store.Tenants,
			cfg.rateLimiter.Window,
			logger,
		),
		providers: providers,
		validator: validator,
		ledger:    ledger,
		checkout:  checkout.NewOrchestrator(engine, validator, ledger, store, store.Orders, cache, logger),
	}, nil
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Tenant-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", "Idempotent-Replayed"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		r.With(app.BasicAuthMiddleware(), app.RateLimitMiddleware).Post("/auth/token", app.createTokenHandler)

		// Context -> rate limit -> permission -> handler
		r.Group(func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Use(app.RateLimitMiddleware)

			r.With(app.requirePermission(checkout.PermCreate)).Post("/checkout", app.checkoutHandler)

			r.Route("/orders", func(r chi.Router) {
				r.With(app.requirePermission(checkout.PermRead)).Get("/", app.listOrdersHandler)
				r.With(app.requirePermission(checkout.PermRead)).Get("/{orderID}", app.getOrderHandler)
				r.With(app.requirePermission(checkout.PermCancel)).Post("/{orderID}/cancel", app.cancelOrderHandler)
			})

			r.Route("/payments", func(r chi.Router) {
				r.With(app.requirePermission("payments.validate")).Post("/validate", app.validatePaymentHandler)
				r.With(app.requirePermission(checkout.PermCreate)).Post("/initiate", app.initiatePaymentHandler)
			})

			r.Route("/inventory/{productID}/adjustments", func(r chi.Router) {
				r.With(app.requireRole(rbac.RoleManager), app.requirePermission("inventory.adjust")).Post("/", app.adjustInventoryHandler)
				r.With(app.requirePermission("inventory.read")).Get("/", app.listAdjustmentsHandler)
			})

			r.Route("/products", func(r chi.Router) {
				r.With(app.requirePermission("products.read")).Get("/", app.listProductsHandler)
				r.With(app.requirePermission("products.create")).Post("/", app.createProductHandler)
				r.With(app.requirePermission("products.read")).Get("/{productID}", app.getProductHandler)
				r.With(app.requirePermission("products.update")).Put("/{productID}/active", app.setProductActiveHandler)
			})

			r.Route("/members", func(r chi.Router) {
				r.With(app.requirePermission("users.read")).Get("/", app.listMembersHandler)
				r.With(app.requirePermission("users.manage")).Put("/{principalID}", app.assignRoleHandler)
				r.With(app.requirePermission("users.manage")).Delete("/{principalID}", app.removeMemberHandler)
			})

			r.Route("/push-tokens", func(r chi.Router) {
				r.Post("/", app.savePushTokenHandler)
				r.Delete("/", app.removePushTokenHandler)
				r.Post("/bulk-remove", app.bulkRemoveTokensHandler)
				r.Post("/prune", app.pruneStaleTokensHandler)
			})
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	app.startBackgroundJobs(bgCtx)

	// Implementing graceful shutdown
	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())
		stopBackground()

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env, "store", app.config.storeDriver)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	// let in-flight low stock alerts finish
	app.ledger.Wait()

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
