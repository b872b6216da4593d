package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/payrun-hq/payrunner/pkg/config"
	"github.com/payrun-hq/payrunner/pkg/ledger"
	"github.com/payrun-hq/payrunner/pkg/logger"
	"github.com/payrun-hq/payrunner/pkg/payapi"
	"github.com/payrun-hq/payrunner/pkg/service"
	"github.com/payrun-hq/payrunner/pkg/walletapi"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to the payment ledger store
	store, err := ledger.NewPostgresStore(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to connect to ledger store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLogger.Error("Failed to close ledger store: %v", err)
		}
	}()

	// Wallet sidecar serves all four capability providers
	wallet := walletapi.New(cfg.WalletAPIEndpoint, appLogger)

	svc, err := service.NewService(
		cfg,
		service.Providers{
			Balances: wallet,
			Wallet:   wallet,
			Transfer: wallet,
			Bridge:   wallet,
		},
		payapi.New(cfg.APIEndpoint, appLogger),
		payapi.NewIntentClient(cfg.IntentAPIEndpoint, appLogger),
		store,
		store,
		appLogger,
	)
	if err != nil {
		log.Fatalf("Failed to create payrunner service: %v", err)
	}

	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Println("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	// Start the service
	log.Println("Starting the payrunner service...")
	svc.Start(ctx)
}
