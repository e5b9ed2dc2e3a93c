package router

import (
	"context"
	"math/bits"
	"sync"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/metrics"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/shopspring/decimal"
)

const (
	// DefaultExhaustiveCandidates is the default subset search ceiling
	DefaultExhaustiveCandidates = 8
	// MaxExhaustiveCandidates caps the configurable ceiling
	MaxExhaustiveCandidates = 20
)

// ExhaustiveSubset searches every covering subset of candidates for the cheapest
// fully priced plan. Each subset splits the need proportionally to balance.
type ExhaustiveSubset struct {
	MaxCandidates int
	Fallback      Strategy
}

// NewExhaustiveSubset clamps maxCandidates into [1, MaxExhaustiveCandidates],
// zero or less selects DefaultExhaustiveCandidates
func NewExhaustiveSubset(maxCandidates int) ExhaustiveSubset {
	switch {
	case maxCandidates <= 0:
		maxCandidates = DefaultExhaustiveCandidates
	case maxCandidates > MaxExhaustiveCandidates:
		maxCandidates = MaxExhaustiveCandidates
	}
	return ExhaustiveSubset{MaxCandidates: maxCandidates, Fallback: GreedyByBalance{}}
}

func (ExhaustiveSubset) Name() string { return StrategyExhaustiveSubset }

type subsetPlan struct {
	routes []models.BridgeRoute
	fee    decimal.Decimal
}

func (s ExhaustiveSubset) Allocate(ctx context.Context, d *Draft) []models.BridgeRoute {
	fallback := s.Fallback
	if fallback == nil {
		fallback = GreedyByBalance{}
	}
	ceiling := min(s.MaxCandidates, MaxExhaustiveCandidates)
	if ceiling <= 0 {
		ceiling = DefaultExhaustiveCandidates
	}

	candidates := sortedByBalance(d.Candidates)
	if len(candidates) > ceiling {
		allocatorLog.Info().
			Int("candidates", len(candidates)).
			Int("ceiling", ceiling).
			Msg("Too many candidates for subset search, falling back")
		metrics.ExhaustiveFallbacks.Inc()
		return fallback.Allocate(ctx, d)
	}

	memo := newQuoteMemo(d)
	var best *subsetPlan

	for mask := uint32(1); mask < 1<<len(candidates); mask++ {
		if ctx.Err() != nil {
			break
		}

		members := make([]models.ChainBalance, 0, bits.OnesCount32(mask))
		for i, c := range candidates {
			if mask&(1<<i) != 0 {
				members = append(members, c)
			}
		}
		if sumBalances(members).LessThan(d.Needed) {
			continue
		}

		shares := proportionalShares(d.Needed, members)
		if hasDustShare(shares, d.Dust) {
			continue
		}

		plan, ok := s.priceSubset(ctx, memo, members, shares)
		if !ok {
			continue
		}
		if best == nil || plan.fee.LessThan(best.fee) ||
			(plan.fee.Equal(best.fee) && len(plan.routes) < len(best.routes)) {
			best = &plan
		}
	}

	if best == nil {
		allocatorLog.Info().Msg("No fully priced subset, falling back")
		metrics.ExhaustiveFallbacks.Inc()
		return fallback.Allocate(ctx, d)
	}
	return best.routes
}

// priceSubset quotes every member concurrently, ok is false when any member failed
func (ExhaustiveSubset) priceSubset(
	ctx context.Context,
	memo *quoteMemo,
	members []models.ChainBalance,
	shares []decimal.Decimal,
) (subsetPlan, bool) {
	results := quoteConcurrently(ctx, memo.draft(), members, shares)

	plan := subsetPlan{routes: make([]models.BridgeRoute, 0, len(results)), fee: decimal.Zero}
	for i, r := range results {
		if r.err != nil || r.skipped {
			allocatorLog.Debug().Err(r.err).Str("chain", members[i].Chain).Msg("Subset not fully priced")
			return subsetPlan{}, false
		}
		plan.routes = append(plan.routes, r.route)
		plan.fee = plan.fee.Add(r.route.Fee)
	}
	return plan, true
}

func hasDustShare(shares []decimal.Decimal, dust decimal.Decimal) bool {
	for _, share := range shares {
		if share.LessThan(dust) {
			return true
		}
	}
	return false
}

// quoteMemo reuses quotes of identical draws across subsets of one allocation
type quoteMemo struct {
	base  *Draft
	mu    sync.Mutex
	cache map[string]memoEntry
}

type memoEntry struct {
	route models.BridgeRoute
	err   error
}

func newQuoteMemo(d *Draft) *quoteMemo {
	return &quoteMemo{base: d, cache: make(map[string]memoEntry)}
}

// draft returns a copy of the base draft whose Quote goes through the memo
func (m *quoteMemo) draft() *Draft {
	d := *m.base
	d.quote = m.quote
	return &d
}

func (m *quoteMemo) quote(ctx context.Context, candidate models.ChainBalance, amount decimal.Decimal) (models.BridgeRoute, error) {
	key := candidate.Chain + ":" + amount.String()

	m.mu.Lock()
	entry, ok := m.cache[key]
	m.mu.Unlock()
	if ok {
		return entry.route, entry.err
	}

	route, err := m.base.Quote(ctx, candidate, amount)

	m.mu.Lock()
	m.cache[key] = memoEntry{route: route, err: err}
	m.mu.Unlock()
	return route, err
}
