package payroll

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ShortfallReport states, per token, how much additional balance must be
// acquired before payouts can proceed. A token is satisfied iff its Needed
// entry is zero; the group is payable iff every token is satisfied.
type ShortfallReport struct {
	// Needed is the additional amount required per token, buffer included,
	// zero when the token is already covered
	Needed map[string]decimal.Decimal

	// Available is the aggregated balance per token at resolution time
	Available map[string]decimal.Decimal
}

// Satisfied reports whether every required token is fully covered
func (r ShortfallReport) Satisfied() bool {
	for _, needed := range r.Needed {
		if needed.IsPositive() {
			return false
		}
	}
	return true
}

// MissingTokens returns the tokens with a nonzero shortfall, sorted
func (r ShortfallReport) MissingTokens() []string {
	var tokens []string
	for token, needed := range r.Needed {
		if needed.IsPositive() {
			tokens = append(tokens, token)
		}
	}
	sort.Strings(tokens)
	return tokens
}

// ResolveShortfall compares required totals against available balances.
// Buffers are fixed absolute reserves (gas headroom) added to the needed
// amount only when a deficit already exists: a token whose raw balance
// covers the requirement is never buffer-padded above it. Neither input map
// is mutated; tokens absent from available count as zero balance.
func ResolveShortfall(required, available, buffers map[string]decimal.Decimal) ShortfallReport {
	report := ShortfallReport{
		Needed:    make(map[string]decimal.Decimal, len(required)),
		Available: make(map[string]decimal.Decimal, len(required)),
	}

	for token, requiredAmount := range required {
		token = strings.ToUpper(token)

		availableAmount := decimal.Zero
		if amount, exists := lookupToken(available, token); exists {
			availableAmount = amount
		}
		report.Available[token] = availableAmount

		deficit := requiredAmount.Sub(availableAmount)
		if deficit.IsPositive() {
			buffer := decimal.Zero
			if amount, exists := lookupToken(buffers, token); exists {
				buffer = amount
			}
			report.Needed[token] = deficit.Add(buffer)
		} else {
			report.Needed[token] = decimal.Zero
		}
	}

	return report
}

func lookupToken(m map[string]decimal.Decimal, token string) (decimal.Decimal, bool) {
	if m == nil {
		return decimal.Zero, false
	}
	if amount, exists := m[token]; exists {
		return amount, true
	}
	for key, amount := range m {
		if strings.EqualFold(key, token) {
			return amount, true
		}
	}
	return decimal.Zero, false
}
