package balance

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/payrun-hq/payrunner/pkg/logger"
	"github.com/payrun-hq/payrunner/pkg/models"
	"github.com/payrun-hq/payrunner/pkg/provider"
	"github.com/payrun-hq/payrunner/pkg/tokenmath"
)

// Aggregator reshapes unified balance snapshots from the balance provider.
// It never mutates provider state; snapshots are point-in-time reads with no
// consistency guarantee across fetches.
type Aggregator struct {
	provider provider.BalanceProvider
	oracle   provider.PriceOracle
	logger   logger.Logger
}

// NewAggregator creates a balance aggregator
func NewAggregator(balanceProvider provider.BalanceProvider, log logger.Logger) *Aggregator {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Aggregator{
		provider: balanceProvider,
		oracle:   provider.StaticOracle{},
		logger:   log,
	}
}

// SetOracle overrides the price oracle used to backfill fiat values
func (a *Aggregator) SetOracle(oracle provider.PriceOracle) {
	a.oracle = oracle
}

// IsReady reports whether the underlying provider can serve balances
func (a *Aggregator) IsReady() bool {
	return a.provider.IsReady()
}

// FetchUnified fetches the unified balance snapshot once and filters it down
// to the allowed tokens and chains. An unready provider or an empty provider
// response both yield an empty slice, never an error: callers must treat
// "not ready" and "zero balance" identically at this layer.
func (a *Aggregator) FetchUnified(ctx context.Context, tokenAllowlist []string, chainAllowlist []int) ([]models.BalanceSnapshot, error) {
	if !a.provider.IsReady() {
		a.logger.Debug("Balance provider not ready, returning empty snapshot")
		return []models.BalanceSnapshot{}, nil
	}

	snapshots, err := a.provider.GetUnifiedBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unified balances: %v", err)
	}

	allowedTokens := make(map[string]bool, len(tokenAllowlist))
	for _, token := range tokenAllowlist {
		allowedTokens[strings.ToUpper(token)] = true
	}
	allowedChains := make(map[int]bool, len(chainAllowlist))
	for _, chainID := range chainAllowlist {
		allowedChains[chainID] = true
	}

	filtered := []models.BalanceSnapshot{}
	for _, snapshot := range snapshots {
		if !allowedTokens[strings.ToUpper(snapshot.Token)] {
			continue
		}

		breakdown := []models.ChainBalance{}
		for _, row := range snapshot.Breakdown {
			if !allowedChains[row.ChainID] {
				continue
			}
			// Providers do not always price every row
			if row.BalanceInFiat == 0 {
				if amount, err := tokenmath.ParseAmount(row.Balance); err == nil {
					value, _ := amount.Float64()
					row.BalanceInFiat = a.oracle.ToReference(value, snapshot.Token)
				}
			}
			breakdown = append(breakdown, row)
		}
		if len(breakdown) == 0 {
			continue
		}

		filtered = append(filtered, models.BalanceSnapshot{
			Token:     strings.ToUpper(snapshot.Token),
			Breakdown: breakdown,
		})
	}

	a.logger.Debug("Fetched %d balance snapshots (%d after filtering)", len(snapshots), len(filtered))
	return filtered, nil
}

// TotalExcluding sums one token's per-chain balances across every chain not
// in excludedChainIDs. Used to compute the amount available to consolidate
// onto the settlement chain. Unparsable rows are skipped.
func TotalExcluding(balances []models.BalanceSnapshot, token string, excludedChainIDs []int) decimal.Decimal {
	excluded := make(map[int]bool, len(excludedChainIDs))
	for _, chainID := range excludedChainIDs {
		excluded[chainID] = true
	}

	total := decimal.Zero
	for _, snapshot := range balances {
		if !strings.EqualFold(snapshot.Token, token) {
			continue
		}
		for _, row := range snapshot.Breakdown {
			if excluded[row.ChainID] {
				continue
			}
			amount, err := tokenmath.ParseAmount(row.Balance)
			if err != nil {
				continue
			}
			total = total.Add(amount)
		}
	}
	return total
}

// NonzeroChainsExcluding returns the chain ids holding a nonzero balance of
// the token, excluding the listed chains, in breakdown order
func NonzeroChainsExcluding(balances []models.BalanceSnapshot, token string, excludedChainIDs []int) []int {
	excluded := make(map[int]bool, len(excludedChainIDs))
	for _, chainID := range excludedChainIDs {
		excluded[chainID] = true
	}

	var chainIDs []int
	for _, snapshot := range balances {
		if !strings.EqualFold(snapshot.Token, token) {
			continue
		}
		for _, row := range snapshot.Breakdown {
			if excluded[row.ChainID] {
				continue
			}
			amount, err := tokenmath.ParseAmount(row.Balance)
			if err != nil || amount.IsZero() {
				continue
			}
			chainIDs = append(chainIDs, row.ChainID)
		}
	}
	return chainIDs
}

// TotalsByToken aggregates a snapshot list into per-token totals across all
// included chains, keyed by upper-cased symbol
func TotalsByToken(balances []models.BalanceSnapshot) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, snapshot := range balances {
		token := strings.ToUpper(snapshot.Token)
		sum, exists := totals[token]
		if !exists {
			sum = decimal.Zero
		}
		for _, row := range snapshot.Breakdown {
			amount, err := tokenmath.ParseAmount(row.Balance)
			if err != nil {
				continue
			}
			sum = sum.Add(amount)
		}
		totals[token] = sum
	}
	return totals
}
