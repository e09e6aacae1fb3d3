package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/poskit/pos-cart/internal/cart"
	"github.com/poskit/pos-cart/internal/catalog"
	"github.com/poskit/pos-cart/internal/clock"
	"github.com/poskit/pos-cart/internal/domain"
	"github.com/poskit/pos-cart/internal/events"
	"github.com/poskit/pos-cart/internal/httpapi"
	"github.com/poskit/pos-cart/internal/orders"
	"github.com/poskit/pos-cart/internal/reservation"
	"github.com/poskit/pos-cart/internal/session"
	"github.com/poskit/pos-cart/internal/tax"
)

type Config struct {
	HTTPPort         string
	RedisAddr        string
	OrdersDSN        string // empty = in-memory order store
	KafkaBrokers     []string
	KafkaTopic       string
	SessionTTL       time.Duration
	ReserveTTL       time.Duration
	SweepInterval    time.Duration
	RequestTimeout   time.Duration
	ShutdownTimeout  time.Duration
	PricesIncludeTax bool
	TaxRules         string
	SeedDemoData     bool
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		OrdersDSN:        getEnv("ORDERS_DSN", ""),
		KafkaBrokers:     splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "pos-cart-events"),
		SessionTTL:       getDuration("SESSION_TTL", session.DefaultTTL),
		ReserveTTL:       getDuration("RESERVE_TTL", reservation.DefaultTTL),
		SweepInterval:    getDuration("SWEEP_INTERVAL", 30*time.Second),
		RequestTimeout:   getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:  getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		PricesIncludeTax: getEnv("PRICES_INCLUDE_TAX", "false") == "true",
		TaxRules:         getEnv("TAX_RULES", "State Tax:US:CA:0.0725,Local Tax:US:CA:0.01"),
		SeedDemoData:     getEnv("SEED_DEMO_DATA", "true") == "true",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseTaxRules reads "label:country:state:rate" entries separated by commas.
func parseTaxRules(s string, log *zap.Logger) []tax.Rule {
	var rules []tax.Rule
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 4 {
			log.Warn("skipping malformed tax rule", zap.String("rule", entry))
			continue
		}
		rate, err := decimal.NewFromString(parts[3])
		if err != nil {
			log.Warn("skipping tax rule with bad rate", zap.String("rule", entry), zap.Error(err))
			continue
		}
		rules = append(rules, tax.Rule{
			Label:   parts[0],
			Country: parts[1],
			State:   parts[2],
			Rate:    rate,
		})
	}
	return rules
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg := loadConfig()
	clk := clock.NewSystem()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		logger.Fatal("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	cancelPing()

	ledger := reservation.NewRedisLedger(redisClient, clk)
	sessions := session.NewHandler(redisClient, clk, cfg.SessionTTL)
	cartStore := cart.NewStore(redisClient)

	memCatalog := catalog.NewMemoryCatalog(clk)
	if cfg.SeedDemoData {
		seedCatalog(memCatalog, ledger, logger)
	}
	cat := catalog.NewWithBreaker(memCatalog)

	taxes := tax.NewCalculator(parseTaxRules(cfg.TaxRules, logger), cfg.PricesIncludeTax)

	var orderStore orders.Store
	if cfg.OrdersDSN != "" {
		pg, err := orders.NewPostgresStore(cfg.OrdersDSN)
		if err != nil {
			logger.Fatal("orders database unavailable", zap.Error(err))
		}
		defer pg.Close()
		orderStore = pg
	} else {
		logger.Info("no ORDERS_DSN configured, using in-memory order store")
		orderStore = orders.NewMemoryStore()
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		defer kp.Close()
		publisher = kp
		logger.Info("kafka publisher enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic))
	}

	manager := cart.NewManager(cartStore, sessions, ledger, cat, taxes,
		orderStore, publisher, clk, logger, cfg.ReserveTTL)

	// Destroying a session drops its cart and stock reservations.
	sessions.DestroyHook = manager.ReleaseTerminal

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go ledger.RunSweeper(sweepCtx, cfg.SweepInterval, func(err error) {
		logger.Warn("reservation sweep failed", zap.Error(err))
	})

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Manager:        manager,
		Sessions:       sessions,
		Ledger:         ledger,
		Catalog:        cat,
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "pos-cart"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("pos-cart service starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}

// seedCatalog loads demo products, coupons and stock for standalone runs.
func seedCatalog(cat *catalog.MemoryCatalog, ledger reservation.Ledger, logger *zap.Logger) {
	products := []domain.Product{
		{ID: 1, Name: "Laptop", Price: dec("1299.00"), Purchasable: true, StockManaged: true, StockOnHand: 100, Categories: []string{"electronics"}},
		{ID: 2, Name: "Mouse", Price: dec("24.90"), Purchasable: true, StockManaged: true, StockOnHand: 500, Categories: []string{"electronics", "accessories"}},
		{ID: 3, Name: "Keyboard", Price: dec("89.00"), Purchasable: true, StockManaged: true, StockOnHand: 300, Categories: []string{"electronics", "accessories"}},
		{ID: 4, Name: "Monitor", Price: dec("349.00"), Purchasable: true, StockManaged: true, StockOnHand: 150, Categories: []string{"electronics"}},
		{ID: 5, Name: "Gift Wrap", Price: dec("4.50"), Purchasable: true, StockManaged: false, Categories: []string{"services"}},
	}
	ctx := context.Background()
	for _, p := range products {
		cat.PutProduct(p)
		if p.StockManaged {
			if err := ledger.SetStock(ctx, p.ID, p.StockOnHand); err != nil {
				logger.Fatal("failed to seed stock", zap.Int64("product_id", p.ID), zap.Error(err))
			}
		}
	}
	cat.PutCoupon(domain.Coupon{Code: "SAVE10", Type: domain.CouponPercent, Value: dec("10")})
	cat.PutCoupon(domain.Coupon{Code: "WELCOME5", Type: domain.CouponFixed, Value: dec("5.00"), MinSpend: dec("50.00")})
	logger.Info("seeded demo catalog", zap.Int("products", len(products)))
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
