package payroll

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payrun-hq/payrunner/pkg/balance"
	"github.com/payrun-hq/payrunner/pkg/bridge"
	"github.com/payrun-hq/payrunner/pkg/chains"
	"github.com/payrun-hq/payrunner/pkg/circuitbreaker"
	"github.com/payrun-hq/payrunner/pkg/logger"
	"github.com/payrun-hq/payrunner/pkg/metrics"
	"github.com/payrun-hq/payrunner/pkg/models"
	"github.com/payrun-hq/payrunner/pkg/provider"
	"github.com/payrun-hq/payrunner/pkg/swap"
	"github.com/payrun-hq/payrunner/pkg/tokenmath"
)

// ErrInsufficientDonorBalance means a swap cure was wanted but the donor
// token's balance cannot cover the computed donor amount
var ErrInsufficientDonorBalance = errors.New("insufficient donor balance")

// DefaultTransferPause is the fixed pause between consecutive transfers.
// Transfers share one wallet session (current chain, current nonce), so the
// sequencer serializes them; the pause is a correctness measure, not a rate
// limit.
const DefaultTransferPause = 2 * time.Second

// Obligation outcome statuses
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// ObligationResult is the terminal outcome of one obligation within a run
type ObligationResult struct {
	Obligation models.Obligation
	Status     string
	TxHash     string
	IntentID   string
	Error      string
}

// GroupResult summarizes a group run. The caller decides whether partial
// success is acceptable; the sequencer never retries on its own.
type GroupResult struct {
	Succeeded int
	Failed    int
	Skipped   int
	Blocked   bool
	Message   string
	Missing   map[string]decimal.Decimal
	Results   []ObligationResult
}

// SequencerConfig carries the static knobs of a sequencer
type SequencerConfig struct {
	SettlementChainID int
	ChainAllowlist    []int
	Buffers           map[string]decimal.Decimal
	TransferPause     time.Duration
}

// Sequencer executes a payment group: per-obligation validation, one
// shortfall check against a single balance fetch, swap/bridge cures, then
// strictly sequential transfers. The wallet session is a single-writer
// resource for the duration of a run, so a Sequencer must not be invoked
// concurrently.
type Sequencer struct {
	aggregator *balance.Aggregator
	swapper    *swap.Orchestrator
	bridger    *bridge.Orchestrator
	transfer   provider.TransferCapability
	ledger     provider.Ledger
	breakers   map[int]*circuitbreaker.CircuitBreaker
	cfg        SequencerConfig
	sleep      provider.SleepFunc
	logger     logger.Logger
	events     chan<- Event
}

// SequencerOption configures a Sequencer
type SequencerOption func(*Sequencer)

// WithSleep injects the pause function (tests pass a no-op)
func WithSleep(sleep provider.SleepFunc) SequencerOption {
	return func(s *Sequencer) { s.sleep = sleep }
}

// WithEvents streams state transitions to ch; sends never block
func WithEvents(ch chan<- Event) SequencerOption {
	return func(s *Sequencer) { s.events = ch }
}

// WithBreakers installs per-destination-chain circuit breakers
func WithBreakers(breakers map[int]*circuitbreaker.CircuitBreaker) SequencerOption {
	return func(s *Sequencer) { s.breakers = breakers }
}

// NewSequencer creates a payment sequencer
func NewSequencer(
	aggregator *balance.Aggregator,
	swapper *swap.Orchestrator,
	bridger *bridge.Orchestrator,
	transfer provider.TransferCapability,
	ledger provider.Ledger,
	cfg SequencerConfig,
	log logger.Logger,
	opts ...SequencerOption,
) *Sequencer {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if cfg.TransferPause == 0 {
		cfg.TransferPause = DefaultTransferPause
	}
	s := &Sequencer{
		aggregator: aggregator,
		swapper:    swapper,
		bridger:    bridger,
		transfer:   transfer,
		ledger:     ledger,
		cfg:        cfg,
		sleep:      provider.ContextSleep,
		logger:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sequencer) emit(stage EventStage, obligationID, token, message string) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- Event{Stage: stage, ObligationID: obligationID, Token: token, Message: message}:
	default:
	}
}

// validateObligation checks destination address shape and amount positivity.
// Validation failures skip the single obligation, never the whole group.
func validateObligation(obligation models.Obligation) error {
	addr := obligation.RecipientAddress
	if !strings.HasPrefix(addr, "0x") || !common.IsHexAddress(addr) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	amount, err := tokenmath.ParseAmount(obligation.Amount)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %q is not positive", tokenmath.ErrInvalidAmount, obligation.Amount)
	}
	return nil
}

// RunGroup executes all obligations of one payment group strictly
// sequentially and returns the aggregate result. Transfers that fail do not
// abort the run; later obligations are still attempted.
func (s *Sequencer) RunGroup(ctx context.Context, obligations []models.Obligation) (GroupResult, error) {
	started := time.Now()
	result := GroupResult{}

	// Step 1: validation, before any external call
	valid := make([]models.Obligation, 0, len(obligations))
	for _, obligation := range obligations {
		if err := validateObligation(obligation); err != nil {
			s.logger.Error("Skipping obligation %s for %s: %v", obligation.ID, obligation.Recipient, err)
			s.emit(StageSkipped, obligation.ID, obligation.Token, err.Error())
			metrics.ObligationsSkipped.WithLabelValues("invalid").Inc()
			result.Skipped++
			result.Results = append(result.Results, ObligationResult{
				Obligation: obligation,
				Status:     StatusSkipped,
				Error:      err.Error(),
			})
			continue
		}
		valid = append(valid, obligation)
	}
	if len(valid) == 0 {
		metrics.GroupRuns.WithLabelValues("empty").Inc()
		return result, nil
	}

	// Step 2: one balance fetch and one shortfall check per group run
	requirements := TotalsByToken(valid)
	report, snapshots, err := s.checkShortfall(ctx, requirements.Totals)
	if err != nil {
		return result, err
	}

	// Step 3: cure a single-token shortfall; block on anything wider
	blockedTokens := map[string]string{}
	if !report.Satisfied() {
		missing := report.MissingTokens()
		for _, token := range missing {
			metrics.ShortfallsDetected.WithLabelValues(token).Inc()
		}

		if len(missing) > 1 {
			result.Blocked = true
			result.Missing = neededOnly(report)
			result.Message = fmt.Sprintf("%v: missing %s", ErrMultiTokenShortfall, formatMissing(report))
			s.emit(StageBlocked, "", strings.Join(missing, ","), result.Message)
			s.markAllSkipped(valid, &result, result.Message)
			metrics.GroupRuns.WithLabelValues("blocked").Inc()
			return result, nil
		}

		token := missing[0]
		cureErr := s.cureShortfall(ctx, token, report.Needed[token], snapshots)
		if cureErr != nil {
			s.logger.Error("Shortfall cure for %s failed: %v", token, cureErr)
		}

		// Re-check against fresh balances regardless of the cure outcome
		report, snapshots, err = s.checkShortfall(ctx, requirements.Totals)
		if err != nil {
			return result, err
		}
		for _, token := range report.MissingTokens() {
			reason := fmt.Sprintf("insufficient %s: need %s more", token, report.Needed[token].String())
			if cureErr != nil {
				reason = fmt.Sprintf("%s (%v)", reason, cureErr)
			}
			blockedTokens[token] = reason
			s.emit(StageBlocked, "", token, reason)
		}
	}

	// Step 4: strictly sequential transfers with a pause between them
	first := true
	for _, obligation := range valid {
		token := strings.ToUpper(obligation.Token)
		if reason, blocked := blockedTokens[token]; blocked {
			result.Blocked = true
			result.Skipped++
			result.Results = append(result.Results, ObligationResult{
				Obligation: obligation,
				Status:     StatusSkipped,
				Error:      reason,
			})
			continue
		}

		if !first {
			if err := s.sleep(ctx, s.cfg.TransferPause); err != nil {
				return result, err
			}
		}
		first = false

		obligationResult := s.transferOne(ctx, obligation)
		switch obligationResult.Status {
		case StatusSucceeded:
			result.Succeeded++
		default:
			result.Failed++
		}
		result.Results = append(result.Results, obligationResult)
	}

	if result.Blocked {
		result.Missing = neededOnly(report)
		if result.Message == "" {
			result.Message = fmt.Sprintf("group blocked: missing %s", formatMissing(report))
		}
		metrics.GroupRuns.WithLabelValues("blocked").Inc()
	} else if result.Failed > 0 {
		metrics.GroupRuns.WithLabelValues("partial").Inc()
	} else {
		metrics.GroupRuns.WithLabelValues("complete").Inc()
	}
	metrics.GroupRunDuration.Observe(time.Since(started).Seconds())

	return result, nil
}

// checkShortfall fetches one fresh balance snapshot and resolves it against
// the required totals. The allowlist includes the swap pair so a later cure
// can see donor balances.
func (s *Sequencer) checkShortfall(ctx context.Context, required map[string]decimal.Decimal) (ShortfallReport, []models.BalanceSnapshot, error) {
	tokens := []string{"ETH", "USDC"}
	for token := range required {
		if !strings.EqualFold(token, "ETH") && !strings.EqualFold(token, "USDC") {
			tokens = append(tokens, token)
		}
	}

	snapshots, err := s.aggregator.FetchUnified(ctx, tokens, s.cfg.ChainAllowlist)
	if err != nil {
		return ShortfallReport{}, nil, err
	}

	available := balance.TotalsByToken(snapshots)
	report := ResolveShortfall(required, available, s.cfg.Buffers)
	s.emit(StageShortfallCheck, "", "", fmt.Sprintf("satisfied=%v", report.Satisfied()))
	return report, snapshots, nil
}

// cureShortfall acquires the needed amount of one token, bridging when the
// token sits on other chains and swapping from the pair partner otherwise
func (s *Sequencer) cureShortfall(ctx context.Context, token string, needed decimal.Decimal, snapshots []models.BalanceSnapshot) error {
	s.emit(StageCuring, "", token, needed.String())

	bridgeable, _ := s.bridger.BridgeableAmount(snapshots, token)
	if bridgeable.IsPositive() {
		s.logger.InfoWithChain(s.cfg.SettlementChainID, "Curing %s shortfall of %s by consolidating %s from other chains",
			token, needed.String(), bridgeable.String())
		outcome := s.bridger.Consolidate(ctx, token, snapshots, nil)
		if !outcome.Success {
			return fmt.Errorf("%w: %s", bridge.ErrBridgeFailed, outcome.Error)
		}
		return nil
	}

	donor, err := swapDonorFor(token)
	if err != nil {
		return err
	}
	donorAmount, err := swap.DonorAmount(donor, token, needed)
	if err != nil {
		return err
	}
	donorAvailable := balance.TotalsByToken(snapshots)[donor]
	if donorAvailable.LessThan(donorAmount) {
		return fmt.Errorf("%w: need %s %s, have %s", ErrInsufficientDonorBalance,
			donorAmount.String(), donor, donorAvailable.String())
	}

	s.logger.InfoWithChain(s.cfg.SettlementChainID, "Curing %s shortfall of %s by swapping %s %s",
		token, needed.String(), donorAmount.String(), donor)
	outcome := s.swapper.Execute(ctx, donor, token, needed)
	if !outcome.Success {
		return fmt.Errorf("%w: %s", swap.ErrSwapFailed, outcome.Error)
	}
	return nil
}

// transferOne issues one payout and persists the ledger row on success
func (s *Sequencer) transferOne(ctx context.Context, obligation models.Obligation) ObligationResult {
	chainLabel := strconv.Itoa(obligation.DestinationChain)

	if cb, ok := s.breakers[obligation.DestinationChain]; ok && cb.IsEnabled() && cb.IsOpen() {
		message := fmt.Sprintf("circuit breaker open for chain %d", obligation.DestinationChain)
		s.logger.ErrorWithChain(obligation.DestinationChain, "Skipping transfer for %s: %s", obligation.Recipient, message)
		metrics.TransfersExecuted.WithLabelValues(chainLabel, "failed").Inc()
		return ObligationResult{Obligation: obligation, Status: StatusFailed, Error: message}
	}

	request := provider.TransferRequest{
		Token:        strings.ToUpper(obligation.Token),
		Amount:       obligation.Amount,
		ChainID:      obligation.DestinationChain,
		Recipient:    obligation.RecipientAddress,
		SourceChains: s.cfg.ChainAllowlist,
	}

	s.emit(StageTransferring, obligation.ID, request.Token, obligation.Amount)

	// Best-effort dry run; failures are ignored
	_ = s.transfer.SimulateTransfer(ctx, request)

	started := time.Now()
	transferResult, err := s.transfer.Transfer(ctx, request)
	metrics.TransferProcessingTime.WithLabelValues(chainLabel).Observe(time.Since(started).Seconds())

	if err != nil || !transferResult.Success || transferResult.TxHash == "" {
		message := fmt.Sprintf("%v", ErrTransferFailed)
		if err != nil {
			message = fmt.Sprintf("%v: %v", ErrTransferFailed, err)
		} else if transferResult.TxHash == "" {
			message = fmt.Sprintf("%v: no transaction hash returned", ErrTransferFailed)
		}
		s.logger.ErrorWithChain(obligation.DestinationChain, "Transfer of %s %s to %s failed: %s",
			obligation.Amount, request.Token, obligation.Recipient, message)
		if cb, ok := s.breakers[obligation.DestinationChain]; ok {
			cb.RecordFailure()
		}
		metrics.TransfersExecuted.WithLabelValues(chainLabel, "failed").Inc()
		s.emit(StageFailed, obligation.ID, request.Token, message)
		return ObligationResult{Obligation: obligation, Status: StatusFailed, Error: message}
	}

	s.logger.NoticeWithChain(obligation.DestinationChain, "Paid %s %s to %s (tx: %s)",
		obligation.Amount, request.Token, obligation.Recipient, transferResult.TxHash)
	metrics.TransfersExecuted.WithLabelValues(chainLabel, "success").Inc()
	s.emit(StageSucceeded, obligation.ID, request.Token, transferResult.TxHash)

	s.persistRecord(ctx, obligation, request, transferResult)

	return ObligationResult{
		Obligation: obligation,
		Status:     StatusSucceeded,
		TxHash:     transferResult.TxHash,
		IntentID:   transferResult.IntentID,
	}
}

// persistRecord writes the ledger row for a successful transfer. Best
// effort: the on-chain effect already happened, so a write failure is a
// warning, never a transfer failure.
func (s *Sequencer) persistRecord(ctx context.Context, obligation models.Obligation, request provider.TransferRequest, transferResult provider.TransferResult) {
	record := &models.PaymentRecord{
		ID:               uuid.New(),
		ObligationID:     obligation.ID,
		ChainID:          obligation.DestinationChain,
		Token:            request.Token,
		TokenDecimals:    chains.GetTokenDecimals(request.Token),
		Amount:           obligation.Amount,
		RecipientAddress: obligation.RecipientAddress,
		TxHash:           transferResult.TxHash,
		IntentID:         transferResult.IntentID,
		DepositTxHash:    transferResult.DepositTxHash,
		Status:           models.PaymentStatusPending,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	if !chains.IsNativeToken(request.Token, obligation.DestinationChain) {
		record.TokenAddress = chains.GetUSDCAddress(obligation.DestinationChain)
	}

	saveResult, err := s.ledger.SavePaymentRecord(ctx, record)
	if err != nil || !saveResult.Success {
		s.logger.Error("Warning: %v for transfer %s: %v", ErrPersistenceFailed, transferResult.TxHash, err)
		metrics.PersistenceWarnings.Inc()
	}
}

func (s *Sequencer) markAllSkipped(obligations []models.Obligation, result *GroupResult, message string) {
	for _, obligation := range obligations {
		result.Skipped++
		result.Results = append(result.Results, ObligationResult{
			Obligation: obligation,
			Status:     StatusSkipped,
			Error:      message,
		})
	}
}

func swapDonorFor(token string) (string, error) {
	switch strings.ToUpper(token) {
	case "USDC":
		return "ETH", nil
	case "ETH":
		return "USDC", nil
	default:
		return "", fmt.Errorf("%w: no donor pair for %s", swap.ErrUnsupportedPair, token)
	}
}

func neededOnly(report ShortfallReport) map[string]decimal.Decimal {
	missing := make(map[string]decimal.Decimal)
	for token, needed := range report.Needed {
		if needed.IsPositive() {
			missing[token] = needed
		}
	}
	return missing
}

func formatMissing(report ShortfallReport) string {
	tokens := report.MissingTokens()
	parts := make([]string, 0, len(tokens))
	for _, token := range tokens {
		parts = append(parts, fmt.Sprintf("%s %s", report.Needed[token].String(), token))
	}
	return strings.Join(parts, ", ")
}
