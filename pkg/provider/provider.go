// Package provider defines the capability interfaces the orchestration core
// is built against. Every orchestrator takes its providers as explicit
// constructor arguments so tests can substitute fakes; there is no ambient
// wallet or SDK state.
package provider

import (
	"context"
	"time"

	"github.com/payrun-hq/payrunner/pkg/models"
)

// BalanceProvider serves unified cross-chain balance snapshots. Callers must
// check IsReady before calling GetUnifiedBalances; an unready provider and a
// zero balance are indistinguishable at the aggregation layer.
type BalanceProvider interface {
	IsReady() bool
	GetUnifiedBalances(ctx context.Context) ([]models.BalanceSnapshot, error)
}

// CallKind identifies the contract operation requested through the wallet
type CallKind string

const (
	CallKindApprove CallKind = "approve"
	CallKindSwap    CallKind = "swap"
)

// ContractCall describes one wallet-signed contract operation
type ContractCall struct {
	Kind         CallKind
	ChainID      int
	TokenAddress string // empty for the chain's native asset
	Spender      string // approval target / swap router
	AmountUnits  string // raw integer units
}

// TxHandle tracks an in-flight transaction until confirmation
type TxHandle interface {
	// AwaitConfirmation blocks until the transaction is mined and returns
	// its hash
	AwaitConfirmation(ctx context.Context) (string, error)
}

// WalletOperations is the wallet session. It is a single-writer resource:
// network switches and sends mutate the session's active chain and nonce
// sequence, so callers must never invoke it concurrently during a group run.
type WalletOperations interface {
	ActiveChainID(ctx context.Context) (int, error)
	SwitchChain(ctx context.Context, chainID int) error
	SendContractCall(ctx context.Context, call ContractCall) (TxHandle, error)
}

// TransferRequest is the shape handed to the transfer capability
type TransferRequest struct {
	Token        string `json:"token"`
	Amount       string `json:"amount"`
	ChainID      int    `json:"chain_id"`
	Recipient    string `json:"recipient"`
	SourceChains []int  `json:"source_chains"`
}

// TransferResult is the transfer capability's outcome. A transfer only
// counts as successful when Success is set and TxHash is non-empty.
type TransferResult struct {
	Success       bool   `json:"success"`
	TxHash        string `json:"tx_hash,omitempty"`
	IntentID      string `json:"intent_id,omitempty"`
	DepositTxHash string `json:"deposit_tx_hash,omitempty"`
}

// TransferCapability executes recipient payouts, multi-hop when the source
// chains differ from the destination
type TransferCapability interface {
	Transfer(ctx context.Context, req TransferRequest) (TransferResult, error)
	// SimulateTransfer is best-effort; failures are ignored by callers
	SimulateTransfer(ctx context.Context, req TransferRequest) error
}

// BridgeRequest asks the bridge capability to consolidate funds onto ChainID
type BridgeRequest struct {
	Token        string `json:"token"`
	Amount       string `json:"amount"`
	ChainID      int    `json:"chain_id"`
	SourceChains []int  `json:"source_chains"`
}

// BridgeResult is the bridge capability's outcome
type BridgeResult struct {
	Success     bool   `json:"success"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// BridgeCapability moves a token from a set of source chains onto one chain
type BridgeCapability interface {
	Bridge(ctx context.Context, req BridgeRequest) (BridgeResult, error)
}

// SaveResult reports a persistence write
type SaveResult struct {
	Success bool
	Record  *models.PaymentRecord
}

// Ledger is the persisted payment ledger. Append/update only, no deletes.
type Ledger interface {
	SavePaymentRecord(ctx context.Context, record *models.PaymentRecord) (SaveResult, error)
	GetPaymentByIntentID(ctx context.Context, intentID string) (*models.PaymentRecord, error)
	UpdatePayment(ctx context.Context, id string, patch models.PaymentPatch) error
}

// IntentSource serves cross-chain intent records for reconciliation
type IntentSource interface {
	GetMyIntents(ctx context.Context, page int) ([]models.Intent, error)
}

// PriceOracle converts token amounts to a reference-currency value
type PriceOracle interface {
	ToReference(amount float64, token string) float64
}

// SleepFunc pauses for d or until the context is cancelled. Fixed settle
// delays go through an injected SleepFunc so tests can skip them.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ContextSleep is the default SleepFunc
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
