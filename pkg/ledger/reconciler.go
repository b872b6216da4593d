package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/payrun-hq/payrunner/pkg/chains"
	"github.com/payrun-hq/payrunner/pkg/logger"
	"github.com/payrun-hq/payrunner/pkg/metrics"
	"github.com/payrun-hq/payrunner/pkg/models"
	"github.com/payrun-hq/payrunner/pkg/provider"
	"github.com/payrun-hq/payrunner/pkg/tokenmath"
)

// nativeUnitsThreshold splits unrecognized token addresses by raw value
// magnitude: amounts at wei scale are treated as the 18-decimal native
// asset, smaller ones as a 6-decimal token.
var nativeUnitsThreshold = decimal.New(1, 12)

// Reconciler correlates externally-fetched intent records with the
// persisted payment ledger and keeps later hop hashes and statuses current
type Reconciler struct {
	ledger  provider.Ledger
	intents provider.IntentSource
	logger  logger.Logger
}

// NewReconciler creates a ledger reconciler
func NewReconciler(ledger provider.Ledger, intents provider.IntentSource, log logger.Logger) *Reconciler {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Reconciler{
		ledger:  ledger,
		intents: intents,
		logger:  log,
	}
}

// legView is one normalized intent leg
type legView struct {
	symbol string
	amount decimal.Decimal
}

func normalizeLeg(leg models.IntentLeg) (legView, error) {
	symbol := chains.GetTokenSymbol(leg.TokenAddress)
	value, err := decimal.NewFromString(leg.Value)
	if err != nil {
		return legView{}, fmt.Errorf("bad leg value %q: %v", leg.Value, err)
	}

	if symbol == "" {
		if value.GreaterThanOrEqual(nativeUnitsThreshold) {
			symbol = "ETH"
		} else {
			symbol = "USDC"
		}
	}

	decimals := chains.GetTokenDecimals(symbol)
	amount, err := tokenmath.FromUnits(value.String(), decimals)
	if err != nil {
		return legView{}, err
	}
	return legView{symbol: symbol, amount: decimal.RequireFromString(amount)}, nil
}

// IntentStatus derives the display status from the intent's tri-state
// flags. A fulfillment reported without a deposit contradicts the intent
// lifecycle, so that combination maps to UNKNOWN rather than PENDING.
func IntentStatus(intent models.Intent) string {
	switch {
	case intent.Refunded:
		return models.IntentStatusRefunded
	case !intent.Deposited && !intent.Fulfilled:
		return models.IntentStatusPending
	case intent.Deposited && !intent.Fulfilled:
		return models.IntentStatusProcessing
	case intent.Deposited && intent.Fulfilled:
		return models.IntentStatusSuccess
	default:
		return models.IntentStatusUnknown
	}
}

// NormalizeIntent maps a raw intent into its display view: token addresses
// resolved to symbols, raw values scaled, chain ids named, and a fee
// computed only when both legs carry the same token. Cross-currency fees
// are never computed.
func NormalizeIntent(intent models.Intent) (models.NormalizedIntent, error) {
	source, err := normalizeLeg(intent.Source)
	if err != nil {
		return models.NormalizedIntent{}, fmt.Errorf("source leg of intent %s: %v", intent.ID, err)
	}
	dest, err := normalizeLeg(intent.Destination)
	if err != nil {
		return models.NormalizedIntent{}, fmt.Errorf("destination leg of intent %s: %v", intent.ID, err)
	}

	normalized := models.NormalizedIntent{
		ID:          intent.ID,
		Token:       dest.symbol,
		SourceChain: chainName(intent.Source.ChainID),
		DestChain:   chainName(intent.Destination.ChainID),
		SourceAmt:   source.amount.String(),
		DestAmt:     dest.amount.String(),
		Status:      IntentStatus(intent),
	}

	if source.symbol == dest.symbol {
		normalized.Fee = source.amount.Sub(dest.amount).String()
	}

	return normalized, nil
}

func chainName(chainID int) string {
	if name := chains.GetChainName(chainID); name != "" {
		return name
	}
	return "CHAIN_" + strconv.Itoa(chainID)
}

// Correlate looks up the persisted payment for an intent id. A missing row
// is not an error, only "no local record yet".
func (r *Reconciler) Correlate(ctx context.Context, intentID string) (*models.PaymentRecord, error) {
	return r.ledger.GetPaymentByIntentID(ctx, intentID)
}

// maxReconcilePages bounds one reconciliation pass against intent APIs
// that ignore the page parameter and keep serving the same rows
const maxReconcilePages = 100

// ReconcileOnce pages through the caller's intents and patches matching
// ledger rows with later hop hashes and terminal statuses
func (r *Reconciler) ReconcileOnce(ctx context.Context) error {
	lastFirstID := ""
	for page := 1; page <= maxReconcilePages; page++ {
		intents, err := r.intents.GetMyIntents(ctx, page)
		if err != nil {
			return fmt.Errorf("failed to fetch intents (page %d): %v", page, err)
		}
		if len(intents) == 0 {
			return nil
		}
		if intents[0].ID == lastFirstID {
			r.logger.Debug("Intent listing repeated page %d, stopping pass", page)
			return nil
		}
		lastFirstID = intents[0].ID

		for _, intent := range intents {
			if err := r.reconcileIntent(ctx, intent); err != nil {
				r.logger.Error("Failed to reconcile intent %s: %v", intent.ID, err)
			}
		}
	}
	return nil
}

func (r *Reconciler) reconcileIntent(ctx context.Context, intent models.Intent) error {
	record, err := r.ledger.GetPaymentByIntentID(ctx, intent.ID)
	if err != nil {
		return err
	}
	if record == nil {
		// No local row yet; the intent may predate this ledger or belong
		// to another flow
		return nil
	}

	patch := models.PaymentPatch{}
	changed := false

	if intent.DepositTx != "" && intent.DepositTx != record.DepositTxHash {
		patch.DepositTxHash = &intent.DepositTx
		changed = true
	}
	if intent.FulfillTx != "" && intent.FulfillTx != record.SolverTxHash {
		patch.SolverTxHash = &intent.FulfillTx
		changed = true
	}

	status := IntentStatus(intent)
	switch status {
	case models.IntentStatusSuccess:
		if record.Status != models.PaymentStatusConfirmed {
			confirmed := models.PaymentStatusConfirmed
			patch.Status = &confirmed
			changed = true
		}
	case models.IntentStatusRefunded:
		if record.Status != models.PaymentStatusFailed {
			failed := models.PaymentStatusFailed
			patch.Status = &failed
			changed = true
		}
	}

	if !changed {
		return nil
	}

	if err := r.ledger.UpdatePayment(ctx, record.ID.String(), patch); err != nil {
		return err
	}
	metrics.ReconciledIntents.WithLabelValues(status).Inc()
	r.logger.Debug("Reconciled intent %s onto payment %s (status %s)", intent.ID, record.ID, status)
	return nil
}
