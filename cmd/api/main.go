package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cheems/transit/internal/auth"
	"github.com/cheems/transit/internal/background"
	"github.com/cheems/transit/internal/config"
	"github.com/cheems/transit/internal/database"
	"github.com/cheems/transit/internal/handlers"
	middlewareCustom "github.com/cheems/transit/internal/middleware"
	"github.com/cheems/transit/internal/models"
	"github.com/cheems/transit/internal/repositories"
	"github.com/cheems/transit/internal/routes"
	"github.com/cheems/transit/internal/services"
	pkgauth "github.com/cheems/transit/pkg/auth"
	pkghttp "github.com/cheems/transit/pkg/http"
	pkglogger "github.com/cheems/transit/pkg/logger"
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

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: pkglogger.ParseLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	revokeRepo := repositories.NewTokenRevocationRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)
	vehicleRepo := repositories.NewVehicleRepository(db)
	routeRepo := repositories.NewRouteRepository(db)

	cleanupManager := background.NewCleanupManager(revokeRepo, logger, cfg.Auth.CleanupInterval)

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
		cfg.Auth.PasswordResetExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	notifier, err := newNotifier(cfg.Email, logger)
	if err != nil {
		logger.Error("failed to initialize notifier", slog.Any("error", err))
		os.Exit(1)
	}

	// Login guard in front of password verification
	guard := services.NewLoginGuard(
		loginAttemptRepo,
		services.NewPasswordVerifier(userRepo, tokenManager),
		notifier,
		services.LoginGuardConfig{
			MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
			Window:            cfg.Auth.LockoutWindow,
			LockoutDuration:   cfg.Auth.LockoutDuration,
		},
		logger,
		auditLogger,
	)

	// Initialize services
	authService := services.NewAuthService(userRepo, revokeRepo, guard, tokenManager, logger, auditLogger)
	resetService := services.NewPasswordResetService(userRepo, revokeRepo, tokenManager, notifier,
		cfg.Email.PasswordResetURLBase, logger, auditLogger)
	vehicleService := services.NewVehicleService(vehicleRepo, logger)
	routeService := services.NewRouteService(routeRepo, logger)
	importService := services.NewRouteImportService(vehicleRepo, routeRepo, logger, auditLogger)

	// Initialize handlers
	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	authHandler := handlers.NewAuthHandler(authService, resetService, ipConfig)
	vehicleHandler := handlers.NewVehicleHandler(vehicleService)
	routeHandler := handlers.NewRouteHandler(routeService, importService, cfg.Import.MaxFileSize, logger)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, routes.Dependencies{
		AuthHandler:        authHandler,
		VehicleHandler:     vehicleHandler,
		RouteHandler:       routeHandler,
		Health:             db,
		TokenManager:       tokenManager,
		UserRepo:           userRepo,
		RevokeRepo:         revokeRepo,
		IPConfig:           ipConfig,
		AuthRequestsPerMin: cfg.Auth.LoginRateLimitPerMinute,
		Logger:             logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return
	}

	logger.Info("server stopped gracefully")
}

func newNotifier(cfg config.EmailConfig, logger *slog.Logger) (services.Notifier, error) {
	if cfg.Provider == "ses" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ses, err := services.NewSESNotifier(ctx, cfg.AWSRegion, cfg.FromAddress, logger)
		if err != nil {
			return nil, err
		}
		return ses, nil
	}
	logger.Warn("EMAIL_PROVIDER=log: notifications are written to the log only")
	return services.NewLogNotifier(logger), nil
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(adminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := time.Now()
	admin := &models.User{
		Email:             adminEmail,
		PasswordHash:      hashedPassword,
		Name:              "Admin",
		Role:              models.RoleAdmin,
		PasswordChangedAt: &now,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
