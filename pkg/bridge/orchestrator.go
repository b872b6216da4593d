package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payrun-hq/payrunner/pkg/balance"
	"github.com/payrun-hq/payrunner/pkg/chains"
	"github.com/payrun-hq/payrunner/pkg/logger"
	"github.com/payrun-hq/payrunner/pkg/metrics"
	"github.com/payrun-hq/payrunner/pkg/models"
	"github.com/payrun-hq/payrunner/pkg/provider"
	"github.com/payrun-hq/payrunner/pkg/swap"
)

// ErrBridgeFailed means the bridge capability reported failure. There is no
// partial retry; the caller decides whether to retry the whole operation.
var ErrBridgeFailed = errors.New("bridge failed")

// DefaultGasBufferPerChain is how much of a native token is held back on
// each nonzero source chain to keep gas for the bridge transaction itself
var DefaultGasBufferPerChain = decimal.RequireFromString("0.002")

// DefaultBridgeTimeout bounds a single bridge invocation
const DefaultBridgeTimeout = 5 * time.Minute

// PostSwap asks for a conversion on the settlement chain once bridged funds
// have landed
type PostSwap struct {
	DonorToken   string
	TargetToken  string
	TargetAmount decimal.Decimal
}

// Orchestrator consolidates a token's balance from all source chains onto
// the settlement chain through the bridge capability
type Orchestrator struct {
	bridge            provider.BridgeCapability
	swapper           *swap.Orchestrator
	settlementChainID int
	gasBuffer         decimal.Decimal
	timeout           time.Duration
	logger            logger.Logger
}

// NewOrchestrator creates a bridge orchestrator. The swapper may be nil when
// post-bridge conversion is never requested.
func NewOrchestrator(bridgeCapability provider.BridgeCapability, swapper *swap.Orchestrator, settlementChainID int, log logger.Logger) *Orchestrator {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Orchestrator{
		bridge:            bridgeCapability,
		swapper:           swapper,
		settlementChainID: settlementChainID,
		gasBuffer:         DefaultGasBufferPerChain,
		timeout:           DefaultBridgeTimeout,
		logger:            log,
	}
}

// SetGasBuffer overrides the per-chain native gas buffer
func (o *Orchestrator) SetGasBuffer(buffer decimal.Decimal) {
	o.gasBuffer = buffer
}

// BridgeableAmount computes how much of the token can be consolidated onto
// the settlement chain: the sum across all other chains, minus a gas buffer
// for every nonzero source chain where the token is that chain's native
// asset (the reserve pays for the bridge transaction on the source side).
// Returns the amount and the contributing source chain ids.
func (o *Orchestrator) BridgeableAmount(balances []models.BalanceSnapshot, token string) (decimal.Decimal, []int) {
	excluded := []int{o.settlementChainID}
	total := balance.TotalExcluding(balances, token, excluded)
	sourceChains := balance.NonzeroChainsExcluding(balances, token, excluded)

	nativeSources := 0
	for _, chainID := range sourceChains {
		if chains.IsNativeToken(token, chainID) {
			nativeSources++
		}
	}
	if nativeSources > 0 {
		reserve := o.gasBuffer.Mul(decimal.NewFromInt(int64(nativeSources)))
		total = total.Sub(reserve)
	}
	return total, sourceChains
}

// Consolidate bridges the token's bridgeable balance onto the settlement
// chain, then runs the optional post-bridge swap. The returned outcome is
// terminal.
func (o *Orchestrator) Consolidate(ctx context.Context, token string, balances []models.BalanceSnapshot, postSwap *PostSwap) models.BridgeOutcome {
	amount, sourceChains := o.BridgeableAmount(balances, token)
	if !amount.IsPositive() {
		return models.BridgeOutcome{
			Success: false,
			Error:   fmt.Sprintf("no bridgeable %s balance outside chain %d", token, o.settlementChainID),
		}
	}

	o.logger.InfoWithChain(o.settlementChainID, "Bridging %s %s from chains %v", amount.String(), token, sourceChains)

	bridgeCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	result, err := o.bridge.Bridge(bridgeCtx, provider.BridgeRequest{
		Token:        token,
		Amount:       amount.String(),
		ChainID:      o.settlementChainID,
		SourceChains: sourceChains,
	})
	if err != nil {
		metrics.BridgesExecuted.WithLabelValues("failed").Inc()
		return models.BridgeOutcome{
			Success: false,
			Error:   fmt.Sprintf("%v: %v", ErrBridgeFailed, err),
		}
	}
	if !result.Success {
		metrics.BridgesExecuted.WithLabelValues("failed").Inc()
		return models.BridgeOutcome{
			Success: false,
			Error:   fmt.Sprintf("%v: capability reported failure for %s %s", ErrBridgeFailed, amount.String(), token),
		}
	}

	metrics.BridgesExecuted.WithLabelValues("success").Inc()
	o.logger.NoticeWithChain(o.settlementChainID, "Bridged %s %s onto settlement chain", amount.String(), token)

	outcome := models.BridgeOutcome{
		Success:     true,
		ExplorerURL: result.ExplorerURL,
	}

	if postSwap != nil {
		if o.swapper == nil {
			outcome.Success = false
			outcome.Error = "post-bridge swap requested but no swap orchestrator configured"
			return outcome
		}
		swapOutcome := o.swapper.Execute(ctx, postSwap.DonorToken, postSwap.TargetToken, postSwap.TargetAmount)
		if !swapOutcome.Success {
			outcome.Success = false
			outcome.Error = fmt.Sprintf("bridged but post-bridge swap failed: %s", swapOutcome.Error)
		}
	}

	return outcome
}
