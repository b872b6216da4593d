package provider

import "github.com/payrun-hq/payrunner/pkg/tokenmath"

// StaticOracle is the default PriceOracle backed by the hard-coded rate
// table in tokenmath. It stands in for a live oracle and should only be
// relied on for display values.
type StaticOracle struct{}

var _ PriceOracle = (*StaticOracle)(nil)

func (StaticOracle) ToReference(amount float64, token string) float64 {
	return tokenmath.ToReferenceCurrency(amount, token)
}
