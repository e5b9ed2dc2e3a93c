package router

import (
	"context"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/shopspring/decimal"
)

// Strategy names accepted by NewStrategy
const (
	StrategyGreedyByBalance   = "greedy_by_balance"
	StrategyGreedyByFee       = "greedy_by_fee"
	StrategyProportionalSplit = "proportional_split"
	StrategyExhaustiveSubset  = "exhaustive_subset"
)

// NewStrategy builds the named strategy. lanes is required by greedy_by_fee,
// maxCandidates bounds exhaustive_subset.
func NewStrategy(name string, lanes LaneFees, maxCandidates int) (Strategy, error) {
	switch name {
	case StrategyGreedyByBalance, "":
		return GreedyByBalance{}, nil
	case StrategyGreedyByFee:
		if lanes == nil {
			return nil, fmt.Errorf("%s needs a fee schedule", name)
		}
		return GreedyByFee{Lanes: lanes}, nil
	case StrategyProportionalSplit:
		return ProportionalSplit{}, nil
	case StrategyExhaustiveSubset:
		return NewExhaustiveSubset(maxCandidates), nil
	default:
		return nil, fmt.Errorf("unknown allocation strategy %q", name)
	}
}

// GreedyByBalance drains the largest holdings first
type GreedyByBalance struct{}

func (GreedyByBalance) Name() string { return StrategyGreedyByBalance }

func (GreedyByBalance) Allocate(ctx context.Context, d *Draft) []models.BridgeRoute {
	return greedyWalk(ctx, d, sortedByBalance(d.Candidates))
}

// GreedyByFee walks the cheapest lanes to the target first
type GreedyByFee struct {
	Lanes LaneFees
}

func (GreedyByFee) Name() string { return StrategyGreedyByFee }

func (s GreedyByFee) Allocate(ctx context.Context, d *Draft) []models.BridgeRoute {
	return greedyWalk(ctx, d, sortedByLaneFee(d.Candidates, d.Target.Key, s.Lanes))
}

// greedyWalk draws min(balance, remaining) from each candidate in order.
// Draws below dust are skipped, failed quotes are skipped and remaining only
// shrinks on a priced draw.
func greedyWalk(ctx context.Context, d *Draft, ordered []models.ChainBalance) []models.BridgeRoute {
	routes := make([]models.BridgeRoute, 0, len(ordered))
	remaining := d.Needed

	for _, candidate := range ordered {
		if !remaining.IsPositive() {
			break
		}

		amount := decimal.Min(candidate.Balance, remaining)
		if amount.LessThan(d.Dust) {
			allocatorLog.Debug().
				Str("chain", candidate.Chain).
				Str("amount", amount.String()).
				Msg("Skipping dust draw")
			continue
		}

		route, err := d.Quote(ctx, candidate, amount)
		if err != nil {
			allocatorLog.Warn().Err(err).Str("chain", candidate.Chain).Msg("Skipping source chain")
			continue
		}

		routes = append(routes, route)
		remaining = remaining.Sub(amount)
		allocatorLog.Debug().
			Str("chain", candidate.Chain).
			Str("amount", amount.String()).
			Str("remaining", remaining.String()).
			Msg("Added route")
	}

	return routes
}
