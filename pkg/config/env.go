package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/payrun-hq/payrunner/pkg/chains"
	"github.com/payrun-hq/payrunner/pkg/logger"
	"github.com/shopspring/decimal"
)

const (
	// DefaultPollingInterval defines the default payroll polling interval in seconds
	DefaultPollingInterval = 5

	// DefaultReconcileInterval defines the default ledger reconciliation interval in seconds
	DefaultReconcileInterval = 30

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker
	DefaultCircuitBreakerWindow = 5

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerReset = 15

	// DefaultTransferPause defines the default pause between consecutive payouts in seconds
	DefaultTransferPause = 2

	// DefaultSettleDelay defines the default wait after a network switch in seconds
	DefaultSettleDelay = 2

	// DefaultUSDCBuffer defines the default slippage buffer applied to a USDC shortfall
	DefaultUSDCBuffer = "3"

	// DefaultETHBuffer defines the default slippage buffer applied to an ETH shortfall
	DefaultETHBuffer = "0.001"

	// DefaultGasBuffer defines the default native amount reserved per funded source chain
	DefaultGasBuffer = "0.002"

	// DefaultRouterAddress defines the default swap router address on the settlement chain
	DefaultRouterAddress = "0x0000000000000000000000000000000000000000"

	// DefaultAPIEndpoint defines the default API endpoint for the payroll service
	DefaultAPIEndpoint = "https://api.payrun.exchange"

	// DefaultIntentAPIEndpoint defines the default API endpoint for intent status queries
	DefaultIntentAPIEndpoint = "https://intents.payrun.exchange"

	// DefaultWalletAPIEndpoint defines the default endpoint for the wallet sidecar
	DefaultWalletAPIEndpoint = "http://localhost:9090"
)

// GetEnvPollingInterval returns the payroll polling interval from environment variables
func GetEnvPollingInterval() (time.Duration, error) {
	pollingInterval := os.Getenv("POLLING_INTERVAL")
	if pollingInterval == "" {
		return time.Duration(DefaultPollingInterval) * time.Second, nil
	}

	// use atoi
	interval, err := strconv.Atoi(pollingInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid POLLING_INTERVAL value: %s, must be an integer", pollingInterval)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("POLLING_INTERVAL must be greater than 0")
	}
	return time.Duration(interval) * time.Second, nil
}

// GetEnvReconcileInterval returns the ledger reconciliation interval from environment variables
func GetEnvReconcileInterval() (time.Duration, error) {
	reconcileInterval := os.Getenv("RECONCILE_INTERVAL")
	if reconcileInterval == "" {
		return time.Duration(DefaultReconcileInterval) * time.Second, nil
	}

	interval, err := strconv.Atoi(reconcileInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid RECONCILE_INTERVAL value: %s, must be an integer", reconcileInterval)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("RECONCILE_INTERVAL must be greater than 0")
	}
	return time.Duration(interval) * time.Second, nil
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvSettlementChainID returns the settlement chain ID from environment variables
func GetEnvSettlementChainID() (int, error) {
	settlementChain := os.Getenv("SETTLEMENT_CHAIN_ID")
	if settlementChain == "" {
		return chains.DefaultSettlementChainID, nil
	}

	chainID, err := strconv.Atoi(settlementChain)
	if err != nil {
		return 0, fmt.Errorf("invalid SETTLEMENT_CHAIN_ID value: %s, must be an integer", settlementChain)
	}
	if chains.GetChainName(chainID) == "" {
		return 0, fmt.Errorf("unsupported SETTLEMENT_CHAIN_ID value: %d", chainID)
	}
	return chainID, nil
}

// GetEnvChainAllowlist returns the chain IDs balances may be read from, from environment variables
func GetEnvChainAllowlist() ([]int, error) {
	allowlist := os.Getenv("CHAIN_ALLOWLIST")
	if allowlist == "" {
		return chains.ChainList(), nil
	}

	var chainIDs []int
	for _, part := range strings.Split(allowlist, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chainID, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid CHAIN_ALLOWLIST entry: %s, must be an integer", part)
		}
		if chains.GetChainName(chainID) == "" {
			return nil, fmt.Errorf("unsupported CHAIN_ALLOWLIST entry: %d", chainID)
		}
		chainIDs = append(chainIDs, chainID)
	}
	if len(chainIDs) == 0 {
		return nil, fmt.Errorf("CHAIN_ALLOWLIST must contain at least one chain ID")
	}
	return chainIDs, nil
}

// GetEnvTokenBuffer returns the slippage buffer for the given token from environment variables
func GetEnvTokenBuffer(name, fallback string) (decimal.Decimal, error) {
	buffer := os.Getenv(name)
	if buffer == "" {
		buffer = fallback
	}

	parsed, err := decimal.NewFromString(buffer)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s value: %s, must be a decimal number", name, buffer)
	}
	if parsed.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must be greater than or equal to 0", name)
	}
	return parsed, nil
}

// GetEnvGasBuffer returns the native amount reserved per funded source chain from environment variables
func GetEnvGasBuffer() (decimal.Decimal, error) {
	return GetEnvTokenBuffer("GAS_BUFFER", DefaultGasBuffer)
}

// GetEnvTransferPause returns the pause between consecutive payouts from environment variables
func GetEnvTransferPause() (time.Duration, error) {
	transferPause := os.Getenv("TRANSFER_PAUSE")
	if transferPause == "" {
		return DefaultTransferPause * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(transferPause)
	if err != nil {
		return 0, fmt.Errorf("invalid TRANSFER_PAUSE value: %s, must be a valid duration string", transferPause)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("TRANSFER_PAUSE must be greater than or equal to 0")
	}
	return parsed, nil
}

// GetEnvSettleDelay returns the wait after a network switch from environment variables
func GetEnvSettleDelay() (time.Duration, error) {
	settleDelay := os.Getenv("SETTLE_DELAY")
	if settleDelay == "" {
		return DefaultSettleDelay * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(settleDelay)
	if err != nil {
		return 0, fmt.Errorf("invalid SETTLE_DELAY value: %s, must be a valid duration string", settleDelay)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("SETTLE_DELAY must be greater than or equal to 0")
	}
	return parsed, nil
}

// GetEnvRouterAddress returns the swap router address from environment variables
func GetEnvRouterAddress() (string, error) {
	routerAddress := os.Getenv("ROUTER_ADDRESS")
	if routerAddress == "" {
		return DefaultRouterAddress, nil
	}

	// Validate Ethereum address format
	if !common.IsHexAddress(routerAddress) {
		return "", fmt.Errorf("invalid ROUTER_ADDRESS value: %s, must be a valid Ethereum address", routerAddress)
	}
	return routerAddress, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvAPIEndpoint returns the payroll API endpoint from environment variables
func GetEnvAPIEndpoint() (string, error) {
	apiEndpoint := os.Getenv("API_ENDPOINT")
	if apiEndpoint == "" {
		return DefaultAPIEndpoint, nil
	}

	// Validate URL format
	if _, err := url.ParseRequestURI(apiEndpoint); err != nil {
		return "", fmt.Errorf("invalid API_ENDPOINT value: %s, must be a valid URL", apiEndpoint)
	}
	return apiEndpoint, nil
}

// GetEnvIntentAPIEndpoint returns the intent API endpoint from environment variables
func GetEnvIntentAPIEndpoint() (string, error) {
	apiEndpoint := os.Getenv("INTENT_API_ENDPOINT")
	if apiEndpoint == "" {
		return DefaultIntentAPIEndpoint, nil
	}

	// Validate URL format
	if _, err := url.ParseRequestURI(apiEndpoint); err != nil {
		return "", fmt.Errorf("invalid INTENT_API_ENDPOINT value: %s, must be a valid URL", apiEndpoint)
	}
	return apiEndpoint, nil
}

// GetEnvWalletAPIEndpoint returns the wallet sidecar endpoint from environment variables
func GetEnvWalletAPIEndpoint() (string, error) {
	apiEndpoint := os.Getenv("WALLET_API_ENDPOINT")
	if apiEndpoint == "" {
		return DefaultWalletAPIEndpoint, nil
	}

	// Validate URL format
	if _, err := url.ParseRequestURI(apiEndpoint); err != nil {
		return "", fmt.Errorf("invalid WALLET_API_ENDPOINT value: %s, must be a valid URL", apiEndpoint)
	}
	return apiEndpoint, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return logger.InfoLevel, nil
	}

	switch strings.ToLower(level) {
	case "debug":
		return logger.DebugLevel, nil
	case "info":
		return logger.InfoLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}

	return logger.InfoLevel, fmt.Errorf("invalid LOG_LEVEL value: %s, must be 'debug', 'info', 'notice' or 'error'", level)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	if coloring == "true" {
		return true, nil
	} else if coloring == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
}
