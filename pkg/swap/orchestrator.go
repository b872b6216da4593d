package swap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payrun-hq/payrunner/pkg/chains"
	"github.com/payrun-hq/payrunner/pkg/logger"
	"github.com/payrun-hq/payrunner/pkg/metrics"
	"github.com/payrun-hq/payrunner/pkg/models"
	"github.com/payrun-hq/payrunner/pkg/provider"
	"github.com/payrun-hq/payrunner/pkg/tokenmath"
)

// EthUsdcSwapRate is the fixed ETH/USDC conversion ratio used to size donor
// amounts: 1 ETH ≈ 2000 USDC. This is a stand-in for a live quote and does
// not agree with the display rate table in tokenmath; both figures come from
// the system this one replaces and are kept separate on purpose.
const EthUsdcSwapRate = 2000

// DefaultSettleDelay is how long to wait after a network switch before
// sending the first transaction on the new chain
const DefaultSettleDelay = 2 * time.Second

var (
	// ErrNetworkSwitchFailed means the wallet could not move to the
	// settlement chain; the swap is aborted without being attempted
	ErrNetworkSwitchFailed = errors.New("network switch failed")

	// ErrSwapFailed covers on-chain reverts and provider rejections
	ErrSwapFailed = errors.New("swap failed")

	// ErrUnsupportedPair is returned for any pair other than ETH<->USDC
	ErrUnsupportedPair = errors.New("unsupported swap pair")
)

// State is a swap orchestration phase
type State string

const (
	StateIdle             State = "idle"
	StateSwitchingNetwork State = "switching_network"
	StateCalculating      State = "calculating"
	StateApproving        State = "approving"
	StateSwapping         State = "swapping"
	StateComplete         State = "complete"
	StateError            State = "error"
)

// Orchestrator drives a single-pair swap on the settlement chain through the
// wallet-operation provider. Not safe for concurrent Execute calls: the
// wallet session is a single-writer resource.
type Orchestrator struct {
	wallet            provider.WalletOperations
	settlementChainID int
	routerAddress     string
	settleDelay       time.Duration
	sleep             provider.SleepFunc
	logger            logger.Logger
	transitions       chan<- State

	mu    sync.Mutex
	state State
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithSettleDelay overrides the post-switch settle delay
func WithSettleDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.settleDelay = d }
}

// WithSleep injects the delay function (tests pass a no-op)
func WithSleep(sleep provider.SleepFunc) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithTransitions streams state transitions to ch. Sends are non-blocking;
// a full channel drops the transition rather than stalling the swap.
func WithTransitions(ch chan<- State) Option {
	return func(o *Orchestrator) { o.transitions = ch }
}

// NewOrchestrator creates a swap orchestrator bound to the settlement chain
func NewOrchestrator(wallet provider.WalletOperations, settlementChainID int, routerAddress string, log logger.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	o := &Orchestrator{
		wallet:            wallet,
		settlementChainID: settlementChainID,
		routerAddress:     routerAddress,
		settleDelay:       DefaultSettleDelay,
		sleep:             provider.ContextSleep,
		logger:            log,
		state:             StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current orchestration phase
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	if o.transitions != nil {
		select {
		case o.transitions <- s:
		default:
		}
	}
}

// DonorAmount computes how much of donorToken must be swapped to obtain
// targetAmount of targetToken at the fixed rate. Only the ETH<->USDC pair
// is supported.
func DonorAmount(donorToken, targetToken string, targetAmount decimal.Decimal) (decimal.Decimal, error) {
	donor := strings.ToUpper(donorToken)
	target := strings.ToUpper(targetToken)
	rate := decimal.NewFromInt(EthUsdcSwapRate)

	switch {
	case donor == "ETH" && target == "USDC":
		return targetAmount.Div(rate), nil
	case donor == "USDC" && target == "ETH":
		return targetAmount.Mul(rate), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %s->%s", ErrUnsupportedPair, donor, target)
	}
}

// Execute runs the swap state machine: verify or switch to the settlement
// chain, size the donor amount, approve when the donor is not the native
// asset, then swap. The returned outcome is terminal.
func (o *Orchestrator) Execute(ctx context.Context, donorToken, targetToken string, targetAmount decimal.Decimal) models.SwapOutcome {
	outcome := o.execute(ctx, donorToken, targetToken, targetAmount)
	if outcome.Success {
		o.setState(StateComplete)
		metrics.SwapsExecuted.WithLabelValues("success").Inc()
	} else {
		o.setState(StateError)
		metrics.SwapsExecuted.WithLabelValues("failed").Inc()
	}
	return outcome
}

func (o *Orchestrator) execute(ctx context.Context, donorToken, targetToken string, targetAmount decimal.Decimal) models.SwapOutcome {
	donor := strings.ToUpper(donorToken)
	target := strings.ToUpper(targetToken)

	// Step 1: make sure the wallet sits on the settlement chain
	o.setState(StateSwitchingNetwork)
	activeChainID, err := o.wallet.ActiveChainID(ctx)
	if err != nil {
		return failedOutcome("%v: could not read active chain: %v", ErrNetworkSwitchFailed, err)
	}
	if activeChainID != o.settlementChainID {
		o.logger.InfoWithChain(o.settlementChainID, "Switching network from chain %d for %s->%s swap", activeChainID, donor, target)
		if err := o.wallet.SwitchChain(ctx, o.settlementChainID); err != nil {
			return failedOutcome("%v: %v", ErrNetworkSwitchFailed, err)
		}
		if err := o.sleep(ctx, o.settleDelay); err != nil {
			return failedOutcome("%v: cancelled while settling: %v", ErrNetworkSwitchFailed, err)
		}
	}

	// Step 2: size the donor amount at the fixed rate
	o.setState(StateCalculating)
	donorAmount, err := DonorAmount(donor, target, targetAmount)
	if err != nil {
		return failedOutcome("%v", err)
	}
	donorDecimals := chains.GetTokenDecimals(donor)
	donorUnits, err := tokenmath.ToUnits(donorAmount.RoundUp(int32(donorDecimals)).String(), donorDecimals)
	if err != nil {
		return failedOutcome("%v: sizing donor amount: %v", ErrSwapFailed, err)
	}

	donorIsNative := chains.IsNativeToken(donor, o.settlementChainID)

	// Step 3: approval, skipped for native-asset donors
	if !donorIsNative {
		o.setState(StateApproving)
		approveCall := provider.ContractCall{
			Kind:         provider.CallKindApprove,
			ChainID:      o.settlementChainID,
			TokenAddress: chains.GetUSDCAddress(o.settlementChainID),
			Spender:      o.routerAddress,
			AmountUnits:  donorUnits,
		}
		handle, err := o.wallet.SendContractCall(ctx, approveCall)
		if err != nil {
			return failedOutcome("%v: approval rejected: %v", ErrSwapFailed, err)
		}
		if _, err := handle.AwaitConfirmation(ctx); err != nil {
			return failedOutcome("%v: approval not confirmed: %v", ErrSwapFailed, err)
		}
		o.logger.InfoWithChain(o.settlementChainID, "Approved %s %s for router %s", donorAmount.String(), donor, o.routerAddress)
	}

	// Step 4: the swap itself
	o.setState(StateSwapping)
	swapCall := provider.ContractCall{
		Kind:        provider.CallKindSwap,
		ChainID:     o.settlementChainID,
		Spender:     o.routerAddress,
		AmountUnits: donorUnits,
	}
	if !donorIsNative {
		swapCall.TokenAddress = chains.GetUSDCAddress(o.settlementChainID)
	}
	handle, err := o.wallet.SendContractCall(ctx, swapCall)
	if err != nil {
		return failedOutcome("%v: %v", ErrSwapFailed, err)
	}
	txHash, err := handle.AwaitConfirmation(ctx)
	if err != nil {
		return failedOutcome("%v: not confirmed: %v", ErrSwapFailed, err)
	}

	o.logger.NoticeWithChain(o.settlementChainID, "Swapped %s %s for %s %s (tx: %s)",
		donorAmount.String(), donor, targetAmount.String(), target, txHash)

	return models.SwapOutcome{
		Success: true,
		TxHash:  txHash,
	}
}

func failedOutcome(format string, args ...interface{}) models.SwapOutcome {
	return models.SwapOutcome{
		Success: false,
		Error:   fmt.Sprintf(format, args...),
	}
}
