package main

import (
	"expvar"
	"fmt"
	"os"
	"runtime"
	"time"

	"storefront/internal/db"
	"storefront/internal/domain/memory"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/products"
	"storefront/internal/domain/storage"
	"storefront/internal/kvstore"
	"storefront/internal/mailer"
	"storefront/internal/notifications"
	"storefront/internal/payments"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new zap logger with color.
func NewLogger(level string) (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), lvl)
	return zap.New(core).Sugar(), nil
}

var version = "0.4.0"

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file loaded, reading configuration from the environment")
	}
	cfg := loadConfig()

	logger, err := NewLogger(cfg.logLevel)
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	gen := orders.NewOrderNumberGenerator(cfg.orderNumber.secret, cfg.orderNumber.prefix)

	var pool *pgxpool.Pool
	if cfg.storeDriver == "postgres" || cfg.kvDriver == "postgres" {
		pool, err = db.New(db.Config{
			Addr:        cfg.db.addr,
			MaxConns:    cfg.db.maxConns,
			MaxIdleTime: cfg.db.maxIdleTime,
		})
		if err != nil {
			logger.Fatal(err)
		}
		defer pool.Close()
		logger.Info("database connection pool established")
	}

	var kv kvstore.Store
	switch cfg.kvDriver {
	case "postgres":
		kv = kvstore.NewPostgresStore(pool)
	default:
		mem := kvstore.NewMemoryStore(time.Minute)
		defer mem.Close()
		kv = mem
	}

	var store *storage.Container
	switch cfg.storeDriver {
	case "postgres":
		store = storage.NewContainer(pool, gen)
		store.KV = kv
	case "memory":
		mdb := memory.New(gen)
		seedDemo(mdb, cfg.currency, logger)
		store = mdb.Container(kv)
	default:
		logger.Fatalw("unknown STORE_DRIVER", "driver", cfg.storeDriver)
	}

	// Payment providers
	providers := payments.NewPaymentManager()
	if cfg.khalti.secretKey != "" {
		providers.RegisterProvider(payments.NewKhaltiAdapter(
			cfg.khalti.secretKey,
			cfg.khalti.returnURL,
			cfg.khalti.websiteURL,
			cfg.khalti.production,
		))
	}
	if cfg.env != "production" {
		providers.RegisterProvider(payments.NewStaticProvider())
	}

	// Low stock alerts
	notifier := notifications.Fanout{notifications.NewLogNotifier(logger)}
	if cfg.expo.accessToken != "" {
		push := notifications.NewExpoAdapter(cfg.expo.accessToken)
		notifier = append(notifier, notifications.NewExpoNotifier(push, store.Access, store.PushTokens))
	}
	if cfg.mail.host != "" && len(cfg.mail.alertTo) > 0 {
		smtp := mailer.NewSMTPMailer(cfg.mail.host, cfg.mail.port, cfg.mail.user, cfg.mail.pass, cfg.mail.fromEmail, logger)
		notifier = append(notifier, notifications.NewMailNotifier(smtp, cfg.mail.alertTo))
	}

	app, err := newApplication(cfg, store, providers, notifier, logger)
	if err != nil {
		logger.Fatal(err)
	}

	//Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	if pool != nil {
		expvar.Publish("database", expvar.Func(func() any {
			return db.Stats(pool)
		}))
	}
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}

// seedDemo gives a fresh in-memory store one tenant with an owner so the API
// is usable without Postgres.
func seedDemo(mdb *memory.DB, currency string, logger *zap.SugaredLogger) {
	mdb.SeedTenant(1, "demo", "pro")
	mdb.SeedMember(1, 1, "owner")
	mdb.SeedMember(1, 2, "staff")
	for _, in := range []products.CreateInput{
		{SKU: "TSHIRT-M", Name: "T-shirt (M)", PriceCents: 150000, Currency: currency, InitialStock: 25, LowStockThreshold: 5},
		{SKU: "TSHIRT-L", Name: "T-shirt (L)", PriceCents: 150000, Currency: currency, InitialStock: 3, LowStockThreshold: 5},
		{SKU: "MUG", Name: "Mug", PriceCents: 60000, Currency: currency, InitialStock: 40, LowStockThreshold: 10},
	} {
		if _, err := mdb.SeedProduct(1, in); err != nil {
			logger.Warnw("demo seed failed", "sku", in.SKU, "error", err)
		}
	}
	logger.Infow("memory store seeded", "tenant_id", 1, "owner_principal_id", 1)
}
