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

	"github.com/Dan9191/wallet-service/internal/config"
	"github.com/Dan9191/wallet-service/internal/flow"
	"github.com/Dan9191/wallet-service/internal/handler"
	"github.com/Dan9191/wallet-service/internal/integrations/cbr"
	"github.com/Dan9191/wallet-service/internal/models"
	"github.com/Dan9191/wallet-service/internal/notify"
	"github.com/Dan9191/wallet-service/internal/repository"
	"github.com/Dan9191/wallet-service/internal/scheduler"
	"github.com/Dan9191/wallet-service/internal/sensor"
	"github.com/Dan9191/wallet-service/internal/service"
	"github.com/Dan9191/wallet-service/internal/states"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	var static []models.Wallet
	if cfg.WalletsFile != "" {
		if static, err = config.LoadWallets(cfg.WalletsFile); err != nil {
			logger.Fatalf("Failed to load wallets: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var store repository.Store
	switch cfg.StorageBackend {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Fatalf("Failed to ping database: %v", err)
		}
		pg := repository.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatalf("Failed to prepare database: %v", err)
		}
		store = pg
	default:
		fs, err := repository.NewFileStore(cfg.StorageDir)
		if err != nil {
			logger.Fatalf("Failed to open storage: %v", err)
		}
		store = fs
	}

	// Initialize layers
	var notifier sensor.Notifier
	if cfg.SMTPEnabled() {
		notifier = notify.NewSender(cfg, logger)
	}
	table := states.NewTable()
	svc := service.NewService(store, table, logger, cfg, notifier)
	flows := flow.NewManager(svc, cfg.FlowTTL, logger)
	cbrClient := cbr.NewCBRClient(cfg, logger)
	h := handler.NewHandler(svc, flows, table, cfg, logger)

	// Rates first, so the initial sensor update can read them
	refreshRates := func(ctx context.Context) {
		if err := cbrClient.Publish(ctx, table); err != nil {
			logger.Errorf("Rate refresh failed: %v", err)
		}
	}
	sched := scheduler.New(logger, time.Minute)
	sched.RunNow("cbr_rates", refreshRates)

	if err := svc.LoadEntries(ctx, static); err != nil {
		logger.Fatalf("Failed to load wallets: %v", err)
	}

	if err := sched.Every("cbr_rates", cfg.RateInterval, refreshRates); err != nil {
		logger.Fatalf("Failed to schedule rates: %v", err)
	}
	if err := sched.Every("wallet_sensors", cfg.ScanInterval, svc.UpdateAll); err != nil {
		logger.Fatalf("Failed to schedule sensors: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(h, cfg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown failed: %v", err)
		}
	}()

	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
