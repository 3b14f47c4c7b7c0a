// Package main is the entry point for the GLD API server.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NGeff/gld-rest-api/internal/config"
	"github.com/NGeff/gld-rest-api/internal/database"
	"github.com/NGeff/gld-rest-api/internal/email"
	"github.com/NGeff/gld-rest-api/internal/gateway"
	"github.com/NGeff/gld-rest-api/internal/handler"
	"github.com/NGeff/gld-rest-api/internal/jobs"
	"github.com/NGeff/gld-rest-api/internal/mercadopago"
	"github.com/NGeff/gld-rest-api/internal/middleware"
	"github.com/NGeff/gld-rest-api/internal/pkg/response"
	"github.com/NGeff/gld-rest-api/internal/repository"
	"github.com/NGeff/gld-rest-api/internal/service"
)

func main() {
	// Setup structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Starting GLD API",
		slog.String("environment", cfg.Server.Environment),
		slog.Int("port", cfg.Server.Port),
	)

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	if err := db.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations completed")

	// Connect to Redis
	redis, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Repositories
	userRepo := repository.NewUserRepository(db.Pool())
	apiKeyRepo := repository.NewAPIKeyRepository(db.Pool())
	logRepo := repository.NewRequestLogRepository(db.Pool())
	paymentRepo := repository.NewPaymentRepository(db.Pool())
	ticketRepo := repository.NewTicketRepository(db.Pool())

	// Email delivery is optional in dev; without a token mail is dropped.
	var mailer email.Service = email.NopService{}
	if cfg.Email.ServerToken != "" {
		mailer, err = email.NewPostmarkService(&cfg.Email)
		if err != nil {
			log.Fatalf("Failed to configure email: %v", err)
		}
	} else {
		logger.Warn("No email server token configured, outgoing mail is disabled")
	}

	// Services
	authService := service.NewAuthService(userRepo, apiKeyRepo, mailer, &cfg.Auth, logger)
	keyService := service.NewAPIKeyService(apiKeyRepo)
	accessService := service.NewAccessService(userRepo, apiKeyRepo, logRepo, logger)
	processor := mercadopago.NewClient(&cfg.Payment)
	paymentService := service.NewPaymentService(paymentRepo, userRepo, processor, mailer, &cfg.Payment, logger)
	adminService := service.NewAdminService(userRepo, paymentRepo, logRepo)
	ticketService := service.NewTicketService(ticketRepo, userRepo, mailer, logger)

	// Background sweeps
	sweeper := jobs.NewSweeper(userRepo, mailer, logger)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start sweeper: %v", err)
	}
	defer sweeper.Stop()

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	keyHandler := handler.NewAPIKeyHandler(keyService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	adminHandler := handler.NewAdminHandler(adminService)
	ticketHandler := handler.NewTicketHandler(ticketService)
	gatewayHandler := handler.NewGatewayHandler(gateway.NewClient())

	// Setup router
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// Health check endpoints (no auth required)
	r.Get("/health", healthHandler())
	r.Get("/ready", readyHandler(db, redis))
	r.Handle("/metrics", promhttp.Handler())

	// Dashboard surface: registration, sessions, key and payment management
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(redis, middleware.DefaultRateLimitConfig()))

		r.Mount("/auth", authHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authService))

			r.Get("/auth/me", authHandler.Me)
			r.Mount("/apikeys", keyHandler.Routes())
			r.Mount("/payments", paymentHandler.Routes())
			r.Mount("/tickets", ticketHandler.Routes())

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin())
				r.Mount("/tickets", ticketHandler.AdminRoutes())
				r.Mount("/", adminHandler.Routes())
			})
		})
	})

	// Metered API surface: every admitted call consumes one quota unit
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(accessService))

		r.Mount("/utils", gatewayHandler.Routes())
	})

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Shutting down server", slog.String("signal", sig.String()))

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	logger.Info("Server stopped gracefully")
}

// healthHandler reports liveness; it succeeds whenever the process is up.
func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	}
}

// readyHandler verifies database and Redis connections.
func readyHandler(db *database.Postgres, redis *database.Redis) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","component":"database"}`))
			return
		}
		if err := redis.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","component":"redis"}`))
			return
		}

		response.OK(w, map[string]string{
			"status":   "ok",
			"database": "connected",
			"redis":    "connected",
		})
	}
}
