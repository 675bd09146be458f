package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/wartracker/internal/api"
	"github.com/dom/wartracker/internal/blob"
	"github.com/dom/wartracker/internal/config"
	"github.com/dom/wartracker/internal/metrics"
	"github.com/dom/wartracker/internal/obslog"
	"github.com/dom/wartracker/internal/repository/postgres"
	"github.com/dom/wartracker/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const appName = "wartracker"

// Set with -ldflags at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Tabletop wargame match log",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Env file to load before reading the environment (default .env)")

	loadConfig := func() (*config.Config, error) {
		if envFile != "" {
			return config.LoadFiles(envFile)
		}
		return config.Load()
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Add any missing columns to the match_records table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return migrate(cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func migrate(cfg *config.Config) error {
	logger := obslog.New(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.DatabaseURL, cfg.DBLogLevel)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer postgres.Close(db)

	if err := postgres.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	logger.Info("schema is up to date")
	return nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := obslog.New(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	// Initialize database
	db, err := postgres.NewConnection(cfg.DatabaseURL, cfg.DBLogLevel)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			logger.Error("failed to close database", zap.Error(err))
		}
	}()

	if cfg.AutoMigrate {
		if err := postgres.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
		logger.Info("schema migrated")
	}

	m := metrics.New()

	// Initialize repositories
	repos := postgres.NewRepositories(db, postgres.Options{
		EmbedPhaseNotes: cfg.EmbedPhaseNotes,
		Logger:          logger.Named("store"),
		Metrics:         m,
	})

	// Initialize services
	services, err := service.NewServices(repos, cfg, logger)
	if err != nil {
		return err
	}

	// Blob store is optional; without it uploads answer 503
	var store blob.Store
	if cfg.Blob.Configured() {
		s3Store, err := blob.NewS3Store(ctx, cfg.Blob)
		if err != nil {
			return err
		}
		store = s3Store
	} else {
		logger.Warn("blob storage not configured, uploads are disabled")
	}

	// Initialize router
	router := api.NewRouter(services, store, m, logger, cfg)

	// Create server
	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
