package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/resera/internal/auth"
	"github.com/BradenHooton/resera/internal/background"
	"github.com/BradenHooton/resera/internal/config"
	"github.com/BradenHooton/resera/internal/database"
	"github.com/BradenHooton/resera/internal/handlers"
	middlewareCustom "github.com/BradenHooton/resera/internal/middleware"
	"github.com/BradenHooton/resera/internal/ratelimit"
	"github.com/BradenHooton/resera/internal/repositories"
	"github.com/BradenHooton/resera/internal/routes"
	"github.com/BradenHooton/resera/internal/services"
	pkgauth "github.com/BradenHooton/resera/pkg/auth"
	pkghttp "github.com/BradenHooton/resera/pkg/http"
	pkglogger "github.com/BradenHooton/resera/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
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

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.NewConnection(startCtx, &cfg.Database, logger)
	if err != nil {
		startCancel()
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(startCtx, db.Pool, database.MigrateUp); err != nil {
		startCancel()
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}
	startCancel()

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	loginLogRepo := repositories.NewLoginLogRepository(db)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Rate limiting
	var rateLimitService *services.RateLimitService
	if cfg.RateLimit.Enabled {
		store, closeStore, err := newRateLimitStore(cfg.RateLimit, logger)
		if err != nil {
			logger.Error("failed to initialize rate limit store", slog.Any("error", err))
			os.Exit(1)
		}
		defer closeStore()
		rateLimitService = services.NewRateLimitService(ratelimit.NewLimiter(store), logger, auditLogger)
	} else {
		logger.Warn("rate limiting disabled")
	}

	// Initialize token and TOTP managers
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.ChallengeTokenExpiry,
	)

	totpManager, err := auth.NewTOTPManager(cfg.TwoFactor.EncryptionKey, cfg.TwoFactor.Issuer)
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}

	// Security notifications
	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.Email.Enabled {
		sesNotifier, err := services.NewSESNotifier(context.Background(), cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	}

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs:  cfg.Auth.TimingDelayRandomMs,
		DelayOnSuccess: cfg.Auth.TimingDelayOnSuccess,
	})

	passwordRules := pkgauth.PasswordRules{
		MinLength: cfg.PasswordPolicy.MinLength,
		MaxLength: cfg.PasswordPolicy.MaxLength,
	}

	// Initialize services
	authenticator := services.NewAuthenticator(
		accountRepo,
		loginLogRepo,
		tokenManager,
		totpManager,
		notifier,
		timingDelay,
		services.AuthPolicy{
			LockoutAttempts:        cfg.PasswordPolicy.LockoutAttempts,
			LockoutDurationMinutes: cfg.PasswordPolicy.LockoutDurationMinutes,
			PasswordMaxAgeDays:     cfg.PasswordPolicy.MaxAgeDays,
		},
		logger,
		auditLogger,
	)
	passwordService := services.NewPasswordService(accountRepo, passwordRules, cfg.PasswordPolicy.HistoryCount, notifier, logger, auditLogger)
	twoFactorService := services.NewTwoFactorService(accountRepo, totpManager, cfg.TwoFactor.BackupCodeCount, notifier, logger, auditLogger)
	accountService := services.NewAccountService(accountRepo, passwordRules, logger, auditLogger)

	// Bootstrap first account if configured
	ensureAdminAccount(accountService, cfg.Auth, logger)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.RateLimit.TrustedProxies}
	h := routes.Handlers{
		Auth:      handlers.NewAuthHandler(authenticator, tokenManager, ipConfig, logger),
		Password:  handlers.NewPasswordHandler(passwordService, ipConfig, logger),
		TwoFactor: handlers.NewTwoFactorHandler(twoFactorService, logger),
		Health:    handlers.Health(db),
	}

	limits := routes.RateLimitOptions{IPConfig: ipConfig, Logger: logger}
	if rateLimitService != nil {
		limits.Checker = rateLimitService
	}

	// Setup router. Client addresses come from pkghttp.ExtractClientIP, which
	// only honours forwarding headers from trusted proxies, so RealIP is not used.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, h, tokenManager, limits)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(loginLogRepo, logger, cfg.Cleanup.Interval, cfg.Cleanup.LoginLogRetention)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return
	}

	logger.Info("server stopped gracefully")
}

// newRateLimitStore builds the configured counter store and its cleanup func
func newRateLimitStore(cfg config.RateLimitConfig, logger *slog.Logger) (ratelimit.Store, func(), error) {
	if cfg.Backend == config.RateLimitBackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		store := ratelimit.NewRedisStore(client)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}

		logger.Info("rate limiting backed by redis", slog.String("addr", cfg.RedisAddr))
		return store, func() { _ = client.Close() }, nil
	}

	store := ratelimit.NewMemoryStore(cfg.SweepInterval)
	logger.Info("rate limiting backed by memory", slog.Duration("sweep_interval", cfg.SweepInterval))
	return store, store.Shutdown, nil
}

// ensureAdminAccount creates the first account if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminAccount(accounts *services.AccountService, cfg config.AuthConfig, logger *slog.Logger) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin account creation")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	created, err := accounts.EnsureAccount(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
		return
	}
	if created {
		logger.Info("admin account created", pkglogger.EmailAttr(cfg.AdminEmail))
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
