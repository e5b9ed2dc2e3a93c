package router

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/metrics"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var allocatorLog zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	allocatorLog = zerolog.New(out).With().Timestamp().Str("component", "allocator").Logger()
}

var (
	// DefaultDustThreshold is the smallest draw worth bridging
	DefaultDustThreshold = decimal.RequireFromString("0.1")
	// FeeEpsilon replaces fees that round to zero or below
	FeeEpsilon = decimal.New(1, -6)
)

const defaultGasToken = "ETH"

// Allocator is the route allocation engine. It turns per-chain balances into a
// priced set of bridge routes towards the target chain.
type Allocator struct {
	chains   map[string]models.Chain
	quoter   FeeQuoter
	strategy Strategy
	dust     decimal.Decimal
}

// AllocatorOption configures an Allocator
type AllocatorOption func(*Allocator)

// WithStrategy replaces the default GreedyByBalance strategy
func WithStrategy(s Strategy) AllocatorOption {
	return func(a *Allocator) {
		if s != nil {
			a.strategy = s
		}
	}
}

// WithDustThreshold sets the minimum draw amount
func WithDustThreshold(d decimal.Decimal) AllocatorOption {
	return func(a *Allocator) {
		if !d.IsNegative() {
			a.dust = d
		}
	}
}

// NewAllocator creates an allocator over the supported chains
func NewAllocator(chains []models.Chain, quoter FeeQuoter, opts ...AllocatorOption) *Allocator {
	chainMap := make(map[string]models.Chain, len(chains))
	for _, chain := range chains {
		chainMap[chain.Key] = chain
	}
	a := &Allocator{
		chains:   chainMap,
		quoter:   quoter,
		strategy: GreedyByBalance{},
		dust:     DefaultDustThreshold,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// StrategyName returns the name of the active strategy
func (a *Allocator) StrategyName() string {
	return a.strategy.Name()
}

// FindOptimalRoutes plans how to bring requiredAmount of token to targetChain.
// It never fails: a source chain that cannot be priced is skipped and the
// outcome is reported through the InsufficientFunds and NoValidRoutes flags.
func (a *Allocator) FindOptimalRoutes(
	ctx context.Context,
	balances []models.ChainBalance,
	targetChain string,
	requiredAmount decimal.Decimal,
	tokenAddress, ownerAddress string,
) models.RouteResponse {
	targetBalance := balanceOf(balances, targetChain)
	resp := newRouteResponse(targetChain, requiredAmount, sumBalances(balances))
	resp.Strategy = a.strategy.Name()

	needed := decimal.Max(decimal.Zero, requiredAmount.Sub(targetBalance))
	if !needed.IsPositive() {
		resp.TotalAmount = targetBalance
		return finalize(resp)
	}

	candidates := make([]models.ChainBalance, 0, len(balances))
	for _, b := range balances {
		if b.Chain != targetChain && b.Balance.IsPositive() {
			candidates = append(candidates, b)
		}
	}
	metrics.AllocatorCandidates.Observe(float64(len(candidates)))

	// no quoting when the liquidity provably cannot cover the need
	candidateTotal := sumBalances(candidates)
	if candidateTotal.LessThan(needed) {
		allocatorLog.Info().
			Str("target", targetChain).
			Str("needed", needed.String()).
			Str("available", candidateTotal.String()).
			Msg("Insufficient funds across source chains")
		resp.TotalAmount = targetBalance.Add(candidateTotal)
		resp.InsufficientFunds = true
		return finalize(resp)
	}

	target, ok := a.chains[targetChain]
	if !ok {
		target = models.Chain{Key: targetChain}
	}

	draft := &Draft{
		Target:     target,
		Needed:     needed,
		Candidates: candidates,
		Token:      tokenAddress,
		Owner:      ownerAddress,
		Dust:       a.dust,
	}
	draft.quote = func(ctx context.Context, candidate models.ChainBalance, amount decimal.Decimal) (models.BridgeRoute, error) {
		return a.quoteRoute(ctx, target, candidate, amount, tokenAddress, ownerAddress)
	}

	routes := a.strategy.Allocate(ctx, draft)

	resp.Routes = append(resp.Routes, routes...)
	resp.TotalAmount = targetBalance
	for _, route := range routes {
		resp.TotalAmount = resp.TotalAmount.Add(route.Amount)
		resp.TotalFee = resp.TotalFee.Add(route.Fee)
		if route.EstimatedTime > resp.EstimatedTotalTime {
			resp.EstimatedTotalTime = route.EstimatedTime
		}
	}
	resp.InsufficientFunds = resp.TotalAmount.LessThan(requiredAmount)
	resp.NoValidRoutes = len(resp.Routes) == 0

	return finalize(resp)
}

// DirectFulfillment is the response when the target chain already holds enough
func DirectFulfillment(balances []models.ChainBalance, targetChain string, requiredAmount decimal.Decimal) models.RouteResponse {
	resp := newRouteResponse(targetChain, requiredAmount, sumBalances(balances))
	resp.TotalAmount = balanceOf(balances, targetChain)
	return finalize(resp)
}

// quoteRoute prices one draw. Panics inside the quoter are confined to this source chain.
func (a *Allocator) quoteRoute(
	ctx context.Context,
	target models.Chain,
	candidate models.ChainBalance,
	amount decimal.Decimal,
	tokenAddress, ownerAddress string,
) (route models.BridgeRoute, err error) {
	source, ok := a.chains[candidate.Chain]
	if !ok {
		return models.BridgeRoute{}, fmt.Errorf("%w: unknown source chain %s", ErrQuoteUnavailable, candidate.Chain)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrQuoteUnavailable, candidate.Chain, r)
		}
	}()

	quote, err := a.quoter.Quote(ctx, source, target, amount, tokenAddress, ownerAddress)
	if err != nil {
		return models.BridgeRoute{}, fmt.Errorf("%w: %s: %w", ErrQuoteUnavailable, candidate.Chain, err)
	}

	fee := quote.Total().Round(6)
	if !fee.IsPositive() {
		fee = FeeEpsilon
	}
	gasToken := source.NativeToken
	if gasToken == "" {
		gasToken = defaultGasToken
	}

	return models.BridgeRoute{
		SourceChain:   candidate.Chain,
		Amount:        amount,
		Fee:           fee,
		EstimatedTime: max(quote.EstimatedTime, 0),
		Protocol:      quote.Protocol,
		GasToken:      gasToken,
		SourceBalance: candidate.Balance,
	}, nil
}

func newRouteResponse(targetChain string, requiredAmount, available decimal.Decimal) models.RouteResponse {
	return models.RouteResponse{
		Routes:           []models.BridgeRoute{},
		TotalFee:         decimal.Zero,
		TotalAmount:      decimal.Zero,
		AvailableBalance: available,
		RequiredAmount:   requiredAmount,
		TargetChain:      targetChain,
	}
}

// finalize derives the shortfall
func finalize(resp models.RouteResponse) models.RouteResponse {
	resp.Shortfall = decimal.Max(decimal.Zero, resp.RequiredAmount.Sub(resp.TotalAmount))
	return resp
}
