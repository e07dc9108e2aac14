package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	awsvalidator "github.com/cloudmesh/cloudmesh/internal/adapter/driven/aws"
	azurevalidator "github.com/cloudmesh/cloudmesh/internal/adapter/driven/azure"
	dovalidator "github.com/cloudmesh/cloudmesh/internal/adapter/driven/digitalocean"
	gcpvalidator "github.com/cloudmesh/cloudmesh/internal/adapter/driven/gcp"
	sqliteadapter "github.com/cloudmesh/cloudmesh/internal/adapter/driven/sqlite"
	httphandler "github.com/cloudmesh/cloudmesh/internal/adapter/driving/http"
	"github.com/cloudmesh/cloudmesh/internal/application"
	"github.com/cloudmesh/cloudmesh/internal/config"
	"github.com/cloudmesh/cloudmesh/internal/crypto"
	"github.com/cloudmesh/cloudmesh/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on a missing or bad encryption key).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"sweep_interval", cfg.SweepInterval,
		"sweep_concurrency", cfg.SweepConcurrency,
		"aws_platform_credentials", cfg.HasAWSCredentials(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on the writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	credentialStore := sqliteadapter.NewCredentialRepo(db)
	userStore := sqliteadapter.NewUserRepo(db)

	engine, err := crypto.NewEngine(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	// 6. Register one validator per supported provider.
	logger := slog.Default()
	registry := application.NewValidatorRegistry(logger,
		awsvalidator.NewValidator(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, cfg.AWSDefaultRegion, logger),
		azurevalidator.NewValidator(logger),
		gcpvalidator.NewValidator(logger),
		dovalidator.NewValidator(logger),
	)
	for _, provider := range model.AllProviders {
		if !registry.HasValidator(provider) {
			return errors.New("no validator registered for provider " + string(provider))
		}
	}

	// 7. Create application services and start the sweep loop.
	credentialSvc := application.NewCredentialService(credentialStore, userStore, engine, registry, logger)
	sweepSvc := application.NewSweepService(credentialStore, credentialSvc, cfg.SweepInterval, cfg.SweepConcurrency, logger)
	go sweepSvc.Start(ctx)

	// 8. Create HTTP handler and server.
	apiHandler := httphandler.NewHandler(credentialSvc, userStore, logger)
	handler := httphandler.NewServeMux(apiHandler, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("cloudmesh started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal, then drain.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	return nil
}
