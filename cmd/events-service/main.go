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

	"ms-events/internal/auth"
	"ms-events/internal/catalog"
	"ms-events/internal/catalog/catalog_api"
	catalog_db "ms-events/internal/catalog/db"
	"ms-events/internal/config"
	"ms-events/internal/database/migrations"
	"ms-events/internal/identity"
	identity_db "ms-events/internal/identity/db"
	"ms-events/internal/identity/identity_api"
	"ms-events/internal/kafka"
	"ms-events/internal/logger"
	"ms-events/internal/ticketing"
	ticketing_db "ms-events/internal/ticketing/db"
	qr "ms-events/internal/ticketing/qr_generator"
	rediswrap "ms-events/internal/ticketing/redis"
	"ms-events/internal/ticketing/ticket_api"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Events Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("CONFIG", "JWT_SECRET not set")
	}
	if cfg.Auth.QRSecret == "" {
		logger.Fatal("CONFIG", "QR_SECRET_KEY not set")
	}

	ctx := context.Background()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
		if err := runner.RunMigrations(); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		logger.Info("DATABASE", "Migrations applied")
	}

	var producer *kafka.Producer
	var ticketPublisher ticketing.EventPublisher
	var catalogPublisher catalog.EventPublisher
	if cfg.Kafka.Enabled {
		logger.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics)
		defer producer.Close()

		requiredTopics := []string{
			cfg.Kafka.Topics.TicketPurchased,
			cfg.Kafka.Topics.EventCreated,
			cfg.Kafka.Topics.EventDeleted,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
		ticketPublisher = producer
		catalogPublisher = producer
	} else {
		logger.Warn("KAFKA", "Kafka disabled, purchase and catalog events will not be published")
	}

	tokenIssuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	revocationStore := auth.NewRevocationStore(redisClient)
	qrGenerator := qr.NewQRGenerator(cfg.Auth.QRSecret)

	coordinator := ticketing.NewCoordinator(
		ticketing_db.New(bunDB),
		rediswrap.NewRedis(redisClient),
		ticketPublisher,
		qrGenerator,
		logger,
	)
	catalogService := catalog.NewService(catalog_db.New(bunDB), catalogPublisher, logger)
	identityService := identity.NewService(identity_db.New(bunDB), tokenIssuer, revocationStore)

	ticketHandler := ticket_api.NewHandler(coordinator, logger)
	catalogHandler := catalog_api.NewHandler(catalogService, coordinator, logger)
	identityHandler := identity_api.NewHandler(identityService, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		// --- Public Routes ---
		identityHandler.RegisterPublicRoutes(r)
		logger.Info("ROUTER", "Auth routes registered under /api/v1/auth")

		// --- Catalog Reads (token optional) ---
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalMiddleware(tokenIssuer, revocationStore))
			catalogHandler.RegisterReadRoutes(r)
		})
		logger.Info("ROUTER", "Catalog read routes registered under /api/v1/events")

		// --- Protected Routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(tokenIssuer, revocationStore))
			identityHandler.RegisterProtectedRoutes(r)
			ticketHandler.RegisterRoutes(r)
		})
		logger.Info("ROUTER", "Purchase routes registered under /api/v1/purchases")

		// --- Staff Routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(tokenIssuer, revocationStore))
			r.Use(auth.RequireStaff)
			catalogHandler.RegisterStaffRoutes(r)
		})
		logger.Info("ROUTER", "Staff catalog routes registered under /api/v1/events")
	})
	logger.Info("AUTH", "JWT middleware applied to protected API routes")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Events Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Events Service shutdown complete")
	}
}
