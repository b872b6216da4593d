package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/payrun-hq/payrunner/pkg/logger"
	"github.com/shopspring/decimal"
)

// Config holds the configuration for the payrunner service
type Config struct {
	APIEndpoint       string
	IntentAPIEndpoint string
	WalletAPIEndpoint string
	PollingInterval   time.Duration
	ReconcileInterval time.Duration
	SettlementChainID int
	ChainAllowlist    []int
	Buffers           map[string]decimal.Decimal
	GasBuffer         decimal.Decimal
	TransferPause     time.Duration
	SettleDelay       time.Duration
	RouterAddress     string
	DatabaseDSN       string
	MetricsPort       string
	CircuitBreaker    CircuitBreakerConfig
	LoggerConfig      LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	pollingInterval, err := GetEnvPollingInterval()
	if err != nil {
		return nil, err
	}

	reconcileInterval, err := GetEnvReconcileInterval()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	settlementChainID, err := GetEnvSettlementChainID()
	if err != nil {
		return nil, err
	}

	chainAllowlist, err := GetEnvChainAllowlist()
	if err != nil {
		return nil, err
	}

	usdcBuffer, err := GetEnvTokenBuffer("USDC_BUFFER", DefaultUSDCBuffer)
	if err != nil {
		return nil, err
	}

	ethBuffer, err := GetEnvTokenBuffer("ETH_BUFFER", DefaultETHBuffer)
	if err != nil {
		return nil, err
	}

	gasBuffer, err := GetEnvGasBuffer()
	if err != nil {
		return nil, err
	}

	transferPause, err := GetEnvTransferPause()
	if err != nil {
		return nil, err
	}

	settleDelay, err := GetEnvSettleDelay()
	if err != nil {
		return nil, err
	}

	routerAddress, err := GetEnvRouterAddress()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	apiEndpoint, err := GetEnvAPIEndpoint()
	if err != nil {
		return nil, err
	}

	intentAPIEndpoint, err := GetEnvIntentAPIEndpoint()
	if err != nil {
		return nil, err
	}

	walletAPIEndpoint, err := GetEnvWalletAPIEndpoint()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIEndpoint:       apiEndpoint,
		IntentAPIEndpoint: intentAPIEndpoint,
		WalletAPIEndpoint: walletAPIEndpoint,
		PollingInterval:   pollingInterval,
		ReconcileInterval: reconcileInterval,
		SettlementChainID: settlementChainID,
		ChainAllowlist:    chainAllowlist,
		Buffers: map[string]decimal.Decimal{
			"USDC": usdcBuffer,
			"ETH":  ethBuffer,
		},
		GasBuffer:     gasBuffer,
		TransferPause: transferPause,
		SettleDelay:   settleDelay,
		RouterAddress: routerAddress,
		DatabaseDSN:   os.Getenv("DATABASE_DSN"),
		MetricsPort:   metricsPort,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN environment variable is required")
	}
	if len(cfg.ChainAllowlist) == 0 {
		return fmt.Errorf("at least one chain in the allowlist is required")
	}
	settlementAllowed := false
	for _, chainID := range cfg.ChainAllowlist {
		if chainID == cfg.SettlementChainID {
			settlementAllowed = true
			break
		}
	}
	if !settlementAllowed {
		return fmt.Errorf("CHAIN_ALLOWLIST must include the settlement chain %d", cfg.SettlementChainID)
	}
	return nil
}
