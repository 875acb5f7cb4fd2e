package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dashchat/internal/auth"
	"dashchat/internal/config"
	"dashchat/internal/constants"
	"dashchat/internal/database"
	"dashchat/internal/models"
	"dashchat/internal/retry"
	"dashchat/internal/server"
	"dashchat/internal/service"
	"dashchat/internal/tracing"
	"dashchat/pkg/objectstore"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	envFile    = flag.String("env-file", ".env", "Path to a .env file loaded before reading the environment")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("dashchat %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting dashchat")

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setLogLevel(logger, cfg.LogLevel, *verbose)

	tracingManager := tracing.NewTracingManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	issuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	var uploader objectstore.Uploader = objectstore.Noop{}
	if cfg.Storage.Enabled() {
		client, err := objectstore.New(cfg.Storage, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize object storage: %w", err)
		}
		uploader = client
	} else {
		logger.Warn("Object storage is not configured; document uploads are disabled")
	}

	messages := service.NewMessageService(db, cfg.Messages, logger)
	hub := service.NewHub(messages, logger)

	scheduler := service.NewScheduler(db, cfg.RetentionDays, cfg.Server.CleanupIntervalHours, logger)
	go scheduler.Start(ctx)
	defer scheduler.Stop()

	monitor := service.NewDeliveryMonitor(db,
		time.Duration(cfg.Server.DeliveryCheckIntervalSec)*time.Second,
		time.Duration(cfg.Server.DeliveryStaleMinutes)*time.Minute,
		logger)
	go monitor.Start(ctx)
	defer monitor.Stop()

	limiter := server.NewRateLimiter(cfg.Server.RateLimitPerMinute, cfg.Server.RateLimitBurst)
	go limiter.RunCleanup(ctx, server.VisitorIdleTTL)

	watcher := config.NewConfigWatcher(*configPath, logger)
	watcher.OnConfigChange(func(newCfg *models.Config) {
		scheduler.SetRetentionDays(newCfg.RetentionDays)
		monitor.SetStaleThreshold(time.Duration(newCfg.Server.DeliveryStaleMinutes) * time.Minute)
		setLogLevel(logger, newCfg.LogLevel, *verbose)
	})
	go func() {
		if err := watcher.Start(ctx); err != nil {
			logger.WithError(err).Warn("Configuration watcher stopped")
		}
	}()

	srv := server.NewServer(server.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Store:     db,
		Tokens:    issuer,
		Auth:      service.NewAuthService(db, issuer, logger),
		Messages:  messages,
		Documents: service.NewDocumentService(db, uploader, cfg.Documents, logger),
		Hub:       hub,
		Limiter:   limiter,
		Verbose:   *verbose,
	})

	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

// openDatabase opens the sqlite database, retrying with backoff while the file
// is locked or the volume is not yet mounted.
func openDatabase(ctx context.Context, cfg *models.Config, logger *logrus.Logger) (*database.Database, error) {
	backoffConfig := retry.FromConfig(cfg.Retry)
	backoffConfig.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	backoff := retry.NewBackoff(backoffConfig)

	var db *database.Database
	err := backoff.RetryWithPredicate(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	}, func(error) bool { return true })
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database after retries: %w", err)
	}

	db.SetPoolLimits(cfg.Database.MaxOpenConnections, cfg.Database.MaxIdleConnections)
	return db, nil
}

// setLogLevel applies the configured level. Verbose forces debug; otherwise
// the level is capped at info so sensitive fields stay masked.
func setLogLevel(logger *logrus.Logger, level string, verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		return
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", level)
		parsed = logrus.InfoLevel
	}
	if parsed > logrus.InfoLevel {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
}
