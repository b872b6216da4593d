package payroll

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/payrun-hq/payrunner/pkg/models"
	"github.com/payrun-hq/payrunner/pkg/tokenmath"
)

// RequirementTotals is the per-token sum of a group's payout obligations.
// Obligations with non-positive or unparsable amounts are never folded into
// the totals silently; they are reported in Invalid for the caller.
type RequirementTotals struct {
	Totals  map[string]decimal.Decimal
	Invalid []models.Obligation
}

// TotalsByToken groups obligations by upper-cased token symbol and sums
// their amounts. Pure function.
func TotalsByToken(obligations []models.Obligation) RequirementTotals {
	result := RequirementTotals{
		Totals: make(map[string]decimal.Decimal),
	}

	for _, obligation := range obligations {
		amount, err := tokenmath.ParseAmount(obligation.Amount)
		if err != nil || !amount.IsPositive() {
			result.Invalid = append(result.Invalid, obligation)
			continue
		}

		token := strings.ToUpper(obligation.Token)
		sum, exists := result.Totals[token]
		if !exists {
			sum = decimal.Zero
		}
		result.Totals[token] = sum.Add(amount)
	}

	return result
}
