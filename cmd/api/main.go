package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/bastion/internal/auth"
	"github.com/BradenHooton/bastion/internal/background"
	"github.com/BradenHooton/bastion/internal/config"
	"github.com/BradenHooton/bastion/internal/database"
	"github.com/BradenHooton/bastion/internal/handlers"
	"github.com/BradenHooton/bastion/internal/identity"
	middlewareCustom "github.com/BradenHooton/bastion/internal/middleware"
	"github.com/BradenHooton/bastion/internal/repositories"
	"github.com/BradenHooton/bastion/internal/routes"
	"github.com/BradenHooton/bastion/internal/services"
	pkghttp "github.com/BradenHooton/bastion/pkg/http"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Run migrations before accepting traffic
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := database.Migrate(migrateCtx, &cfg.Database, "migrations", logger); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	eventRepo := repositories.NewSecurityEventRepository(db)

	// Identity provider selection
	var provider identity.Provider
	switch cfg.Provider.Mode {
	case "local":
		localProvider := identity.NewLocalProvider()
		if err := seedLocalIdentity(localProvider, logger); err != nil {
			logger.Error("failed to seed local identity", slog.Any("error", err))
			os.Exit(1)
		}
		provider = localProvider
	default:
		provider = identity.NewHTTPProvider(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout, logger)
	}

	// Alert channel for critical events
	var notifier services.AlertNotifier
	if cfg.Alert.Enabled {
		sesNotifier, err := services.NewSESAlertNotifier(cfg.Alert.AWSRegion, cfg.Alert.FromAddress, cfg.Alert.ToAddress, logger)
		if err != nil {
			logger.Error("failed to initialize alert notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	} else {
		notifier = services.NewLogAlertNotifier(logger)
	}

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger)
	tokenManager := auth.NewTokenManager(cfg.Session.JWTSecret, cfg.Session.SessionExpiry)

	eventService := services.NewSecurityEventService(eventRepo, notifier, logger, auditLogger)
	lockoutService := services.NewLockoutService(attemptRepo, services.LockoutConfig{
		MaxFailures: cfg.Lockout.MaxFailures,
		Window:      cfg.Lockout.Window,
	}, logger)
	activityService := services.NewActivityService(eventRepo, attemptRepo, services.DefaultActivityConfig(), logger)
	loginService := services.NewLoginService(
		provider, lockoutService, activityService, eventService, attemptRepo,
		tokenManager, cfg.Retention.AttemptTTL, logger, auditLogger,
	)
	privacyService := services.NewPrivacyService(attemptRepo, eventRepo, eventService, logger)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(loginService, lockoutService, ipConfig)
	securityHandler := handlers.NewSecurityHandler(eventService, privacyService, ipConfig)

	// Retention purge task
	retentionManager := background.NewRetentionManager(
		attemptRepo, eventRepo,
		cfg.Retention.EventRetention, cfg.Retention.CleanupInterval,
		logger,
	)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, securityHandler, tokenManager, eventService, ipConfig,
		middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Lockout.RequestsPerMin})

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start retention task
	retentionCtx, retentionCancel := context.WithCancel(context.Background())
	defer retentionCancel()

	go retentionManager.Start(retentionCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	retentionCancel()
	retentionManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// seedLocalIdentity registers the development identity if LOCAL_IDENTITY and
// LOCAL_PASSWORD are set. The local provider holds nothing otherwise.
func seedLocalIdentity(provider *identity.LocalProvider, logger *slog.Logger) error {
	localIdentity := os.Getenv("LOCAL_IDENTITY")
	localPassword := os.Getenv("LOCAL_PASSWORD")

	if localIdentity == "" || localPassword == "" {
		logger.Info("no LOCAL_IDENTITY or LOCAL_PASSWORD set, local provider starts empty")
		return nil
	}

	if _, err := provider.Register(localIdentity, localPassword); err != nil {
		return err
	}

	logger.Info("local identity registered")
	return nil
}
