package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-payment-gateway/internal/admin"
	"ms-payment-gateway/internal/auth"
	"ms-payment-gateway/internal/checkout"
	"ms-payment-gateway/internal/checkout/checkout_api"
	"ms-payment-gateway/internal/config"
	"ms-payment-gateway/internal/kafka"
	"ms-payment-gateway/internal/logger"
	"ms-payment-gateway/internal/order"
	orderdb "ms-payment-gateway/internal/order/db"
	handlers "ms-payment-gateway/internal/payment/handler"
	"ms-payment-gateway/internal/payment/storage"
	"ms-payment-gateway/internal/reconcile"
	"ms-payment-gateway/internal/sse"
	"ms-payment-gateway/internal/square"
	"ms-payment-gateway/internal/tokenguard"
	"ms-payment-gateway/internal/websdk"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *sql.DB {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
	sqldb := sql.OpenDB(connector)

	var err error
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		err = sqldb.Ping()
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return sqldb
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Addr))
	return client
}

func expressSpec() websdk.PaymentRequestSpec {
	country := os.Getenv("GATEWAY_COUNTRY_CODE")
	if country == "" {
		country = "US"
	}
	currency := os.Getenv("GATEWAY_CURRENCY_CODE")
	if currency == "" {
		currency = "USD"
	}
	return websdk.PaymentRequestSpec{
		CountryCode:  country,
		CurrencyCode: currency,
		TotalLabel:   "Total",
	}
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Square Gateway Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	sqldb := connectPostgres(cfg.Database, log)
	defer sqldb.Close()

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	orderdb.Migrate(bunDB)

	paymentStore, err := storage.NewPostgreSQLStoreWithDB(sqldb, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Payment storage initialization failed: %v", err))
	}

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.Kafka, log)
	defer producer.Close()

	guard := tokenguard.NewGuard(redisClient, log)
	squareClient := square.NewClient(cfg.Square, log)
	orderService := order.NewOrderService(&orderdb.DB{Bun: bunDB}, log)
	reconciler := reconcile.NewReconciler(orderService, cfg.Auth.RedirectBaseURL, log)

	chargeHandler := handlers.NewChargeHandler(squareClient, paymentStore, producer, orderService, reconciler, guard, log)

	emitter := sse.NewCommandEmitter()
	dispatcher := sse.NewDispatcher(emitter, log)

	spec := expressSpec()
	bridgeFactory := func(ctx context.Context, sessionID string) *checkout.Bridge {
		runtime := sse.NewSessionRuntime(dispatcher, sessionID)
		sdkClient := websdk.NewClient(runtime, cfg.Square.ClientSettings(), log)
		form := sse.NewSessionForm(dispatcher, sessionID)
		signal := sse.NewInsertionSignal(dispatcher, sessionID)
		return checkout.NewBridge(sdkClient, form, signal, checkout.BridgeOptions{
			ExpressSpec:   spec,
			EnableExpress: cfg.Square.EnableExpress,
		}, log)
	}

	checkoutHandler := checkout_api.NewHandler(log, emitter, dispatcher, cfg.Square.ClientSettings(), bridgeFactory)

	antiForgery := auth.NewAntiForgery(cfg.Auth.AntiForgeryKey)
	adminHandler := admin.NewHandler(squareClient, antiForgery, cfg.Auth.AdminRole, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Get("/config", checkoutHandler.GetConfig)
		r.Get("/stream/{sessionID}", checkoutHandler.HandleCommandStream)
		r.Post("/events", checkoutHandler.HandleBridgeEvents)
		r.Post("/submit/{sessionID}", checkoutHandler.HandleSubmit)
	})
	log.Info("ROUTER", "Checkout routes registered under /api/v1/checkout")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.OIDCIssuer))
		log.Info("AUTH", "JWT middleware applied to protected API routes")

		r.Route("/api/v1/payments", func(r chi.Router) {
			r.Post("/charge", chargeHandler.ProcessCharge)
			r.Post("/charge/side-channel", chargeHandler.ProcessSideChannelCharge)
		})
		log.Info("ROUTER", "Charge routes registered under /api/v1/payments")

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(cfg.Auth.AdminRole))
			r.Post("/admin/api/v1/square/test-connection", adminHandler.TestConnectionChi)
		})
		log.Info("ROUTER", "Admin probe registered under /admin/api/v1/square")
	})

	// No write timeout: the checkout command stream holds its response open
	// for the whole session.
	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Square Gateway Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Square Gateway Service shutdown complete")
	}
}
