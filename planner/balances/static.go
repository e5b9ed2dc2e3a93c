package balances

import (
	"context"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/shopspring/decimal"
)

// StaticReader serves fixed balances keyed by chain key, for demos and local testing
type StaticReader struct {
	balances map[string]decimal.Decimal
}

func NewStaticReader(balances map[string]decimal.Decimal) *StaticReader {
	copied := make(map[string]decimal.Decimal, len(balances))
	for k, v := range balances {
		copied[k] = v
	}
	return &StaticReader{balances: copied}
}

// Balance returns the configured balance, zero for unknown chains
func (r *StaticReader) Balance(_ context.Context, chain models.Chain, _ string) decimal.Decimal {
	return r.balances[chain.Key]
}
