package router

import (
	"context"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/shopspring/decimal"
)

// FeeQuoter prices a single bridge transfer.
// Retries and fallbacks are the quoter's concern, the allocator never retries.
type FeeQuoter interface {
	Quote(
		ctx context.Context,
		source, target models.Chain,
		amount decimal.Decimal,
		token, owner string,
	) (models.FeeQuote, error)
}

// BalanceReader returns the owner's token balance on a chain, zero when it cannot be read
type BalanceReader interface {
	Balance(ctx context.Context, chain models.Chain, owner string) decimal.Decimal
}

// LaneFees reports the bridge fee percentage of a source -> target lane
type LaneFees interface {
	FeePercentage(source, target string) decimal.Decimal
}

// Strategy decides which candidates to draw from and how much.
// Candidates handed over always cover the needed amount in total.
type Strategy interface {
	Name() string
	Allocate(ctx context.Context, draft *Draft) []models.BridgeRoute
}

// Draft is the state of one allocation shared with the strategy
type Draft struct {
	Target     models.Chain
	Needed     decimal.Decimal
	Candidates []models.ChainBalance
	Token      string
	Owner      string
	Dust       decimal.Decimal

	quote func(ctx context.Context, candidate models.ChainBalance, amount decimal.Decimal) (models.BridgeRoute, error)
}

// Quote prices drawing amount from candidate to the draft's target
func (d *Draft) Quote(ctx context.Context, candidate models.ChainBalance, amount decimal.Decimal) (models.BridgeRoute, error) {
	return d.quote(ctx, candidate, amount)
}
