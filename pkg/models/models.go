package models

import (
	"time"

	"github.com/google/uuid"
)

// Obligation is one recipient's required payout within a payment group.
// Amount is kept as a decimal string so precision is never lost to binary
// floating point before the math layer parses it.
type Obligation struct {
	ID               string `json:"id"`
	GroupID          string `json:"group_id"`
	Recipient        string `json:"recipient"`
	RecipientAddress string `json:"recipient_address"`
	Amount           string `json:"amount"`
	Token            string `json:"token"`
	DestinationChain int    `json:"destination_chain"`
}

// PaymentGroup is one batch of obligations settled together in a single run
type PaymentGroup struct {
	ID          string       `json:"id"`
	Obligations []Obligation `json:"obligations"`
}

// ChainBalance is one per-chain row of a token's balance breakdown
type ChainBalance struct {
	ChainID       int     `json:"chain_id"`
	Balance       string  `json:"balance"`
	BalanceInFiat float64 `json:"balance_in_fiat"`
}

// BalanceSnapshot is a point-in-time view of one token's balance across chains.
// It is never persisted; callers must re-fetch before acting on a stale read.
type BalanceSnapshot struct {
	Token     string         `json:"token"`
	Breakdown []ChainBalance `json:"breakdown"`
}

// SwapOutcome is the terminal result of a swap orchestration
type SwapOutcome struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BridgeOutcome is the terminal result of a bridge orchestration
type BridgeOutcome struct {
	Success     bool   `json:"success"`
	ExplorerURL string `json:"explorer_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Payment statuses for persisted ledger rows
const (
	PaymentStatusPending   = "pending"
	PaymentStatusConfirmed = "confirmed"
	PaymentStatusFailed    = "failed"
)

// PaymentRecord is one executed transfer in the persisted ledger. Rows are
// created right after a transfer attempt and updated when later hop hashes
// become known; they are never deleted.
type PaymentRecord struct {
	ID               uuid.UUID `json:"id" db:"id"`
	ObligationID     string    `json:"obligation_id" db:"obligation_id"`
	ChainID          int       `json:"chain_id" db:"chain_id"`
	Token            string    `json:"token" db:"token"`
	TokenAddress     string    `json:"token_address,omitempty" db:"token_address"`
	TokenDecimals    int       `json:"token_decimals" db:"token_decimals"`
	Amount           string    `json:"amount" db:"amount"`
	RecipientAddress string    `json:"recipient_address" db:"recipient_address"`
	TxHash           string    `json:"tx_hash,omitempty" db:"tx_hash"`
	IntentID         string    `json:"intent_id,omitempty" db:"intent_id"`
	DepositTxHash    string    `json:"deposit_tx_hash,omitempty" db:"deposit_tx_hash"`
	SolverTxHash     string    `json:"solver_tx_hash,omitempty" db:"solver_tx_hash"`
	Status           string    `json:"status" db:"status"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// PaymentPatch carries the updatable fields of a PaymentRecord. Nil fields
// are left untouched.
type PaymentPatch struct {
	TxHash        *string
	DepositTxHash *string
	SolverTxHash  *string
	Status        *string
}
