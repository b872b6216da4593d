package models

import "time"

// IntentLeg is one side of a cross-chain transfer intent
type IntentLeg struct {
	ChainID      int    `json:"chain_id"`
	TokenAddress string `json:"token_address"`
	Value        string `json:"value"` // raw integer units
}

// Intent is a cross-chain transfer descriptor as returned by the intent API.
// It is read-only from this system's perspective.
type Intent struct {
	ID          string    `json:"id"`
	Source      IntentLeg `json:"source"`
	Destination IntentLeg `json:"destination"`
	Deposited   bool      `json:"deposited"`
	Fulfilled   bool      `json:"fulfilled"`
	Refunded    bool      `json:"refunded"`
	DepositTx   string    `json:"deposit_tx,omitempty"`
	FulfillTx   string    `json:"fulfill_tx,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Intent display statuses derived from the deposited/fulfilled/refunded flags
const (
	IntentStatusPending    = "PENDING"
	IntentStatusProcessing = "PROCESSING"
	IntentStatusSuccess    = "SUCCESS"
	IntentStatusRefunded   = "REFUNDED"
	IntentStatusUnknown    = "UNKNOWN"
)

// NormalizedIntent is the display-ready view of an Intent: token addresses
// resolved to symbols, raw values scaled to decimal amounts, chain ids named.
type NormalizedIntent struct {
	ID          string `json:"id"`
	Token       string `json:"token"`
	SourceChain string `json:"source_chain"`
	DestChain   string `json:"dest_chain"`
	SourceAmt   string `json:"source_amount"`
	DestAmt     string `json:"dest_amount"`
	Fee         string `json:"fee,omitempty"` // set only when both legs share a token
	Status      string `json:"status"`
}
