package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/config"
	"github.com/mamadbah2/vaccine-orders/internal/repository"
	"github.com/mamadbah2/vaccine-orders/internal/repository/memory"
	"github.com/mamadbah2/vaccine-orders/internal/repository/mongodb"
	"github.com/mamadbah2/vaccine-orders/internal/repository/sheets"
	"github.com/mamadbah2/vaccine-orders/internal/scheduler"
	"github.com/mamadbah2/vaccine-orders/internal/server"
	"github.com/mamadbah2/vaccine-orders/internal/service/notify"
	whatsappsvc "github.com/mamadbah2/vaccine-orders/internal/service/whatsapp"
	"github.com/mamadbah2/vaccine-orders/internal/storage"
	whatsappclient "github.com/mamadbah2/vaccine-orders/pkg/clients/whatsapp"
	"github.com/mamadbah2/vaccine-orders/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx, cfg, baseLogger)
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close store", zap.Error(err))
		}
	}()

	images := openImageStore(ctx, cfg, baseLogger)

	var publishers []notify.Publisher
	if cfg.Sheets.Enabled() {
		ledger, err := sheets.NewLedger(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets ledger", zap.Error(err))
		}
		publishers = append(publishers, ledger)
		baseLogger.Info("order status ledger enabled")
	}

	var notifier *whatsappsvc.OpsNotifier
	if cfg.WhatsApp.Enabled() {
		client := whatsappclient.NewClient(cfg.WhatsApp, baseLogger.Named("client.whatsapp"))
		notifier = whatsappsvc.NewOpsNotifier(client, cfg.WhatsApp.OpsRecipient, baseLogger.Named("svc.whatsapp"))
		baseLogger.Info("whatsapp ops notices enabled")
	} else {
		baseLogger.Warn("whatsapp credentials missing, ops notices disabled")
	}

	app := server.NewApp(server.Options{
		Config:     cfg,
		Store:      store,
		Images:     images,
		Notifier:   notifier,
		Publishers: publishers,
		Logger:     baseLogger,
	})

	if cfg.Auth.BootstrapAdmin() {
		if _, err := app.Auth.EnsureStaff(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			baseLogger.Fatal("failed to ensure staff account", zap.Error(err))
		}
	}

	sched, err := scheduler.NewScheduler(cfg.Reporting, app.Catalog, app.Reporting, notifier, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.Engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) repository.Store {
	if cfg.MongoDB.URI == "" {
		log.Warn("MONGODB_URI not set, using in-memory store")
		return memory.New()
	}
	repo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, log.Named("repo.mongodb"))
	if err != nil {
		log.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	return repo
}

func openImageStore(ctx context.Context, cfg *config.Config, log *zap.Logger) storage.ImageStore {
	if cfg.Storage.S3Enabled() {
		s3Store, err := storage.NewS3Store(ctx, cfg.Storage, log.Named("storage.s3"))
		if err != nil {
			log.Fatal("failed to init s3 storage", zap.Error(err))
		}
		return s3Store
	}
	local, err := storage.NewLocalStore(cfg.Storage.MediaDir, cfg.Storage.PublicBaseURL, log.Named("storage.local"))
	if err != nil {
		log.Fatal("failed to init media storage", zap.Error(err))
	}
	return local
}
