package router

import (
	"context"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentQuotes bounds in-flight quotes of one allocation
const maxConcurrentQuotes = 8

// ProportionalSplit draws from every candidate in proportion to its balance
type ProportionalSplit struct{}

func (ProportionalSplit) Name() string { return StrategyProportionalSplit }

func (ProportionalSplit) Allocate(ctx context.Context, d *Draft) []models.BridgeRoute {
	members := sortedByBalance(d.Candidates)
	shares := proportionalShares(d.Needed, members)

	// members whose share is dust drop out and the rest is split again
	kept := make([]models.ChainBalance, 0, len(members))
	for i, m := range members {
		if !shares[i].LessThan(d.Dust) {
			kept = append(kept, m)
		}
	}
	if len(kept) < len(members) {
		members = kept
		shares = proportionalShares(d.Needed, members)
	}

	results := quoteConcurrently(ctx, d, members, shares)

	routes := make([]models.BridgeRoute, 0, len(results))
	for i, r := range results {
		if r.err != nil {
			allocatorLog.Warn().Err(r.err).Str("chain", members[i].Chain).Msg("Skipping source chain")
			continue
		}
		if r.skipped {
			continue
		}
		routes = append(routes, r.route)
	}
	return routes
}

type quoteResult struct {
	route   models.BridgeRoute
	err     error
	skipped bool
}

// quoteConcurrently prices every member share in parallel, keeping member order.
// Shares below dust are marked skipped and never quoted.
func quoteConcurrently(
	ctx context.Context,
	d *Draft,
	members []models.ChainBalance,
	shares []decimal.Decimal,
) []quoteResult {
	results := make([]quoteResult, len(members))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQuotes)
	for i := range members {
		if shares[i].LessThan(d.Dust) || !shares[i].IsPositive() {
			results[i].skipped = true
			continue
		}
		g.Go(func() error {
			route, err := d.Quote(gctx, members[i], shares[i])
			results[i] = quoteResult{route: route, err: err}
			// a failed member never cancels its siblings
			return nil
		})
	}
	_ = g.Wait()

	return results
}
