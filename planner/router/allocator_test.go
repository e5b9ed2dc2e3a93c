package router_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/fees"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/router"
	"github.com/shopspring/decimal"
	"github.com/zeebo/assert"
)

func assertDecimal(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Fatalf("expected %s, got %s", want, got.String())
	}
}

func allStrategies() []router.Strategy {
	return []router.Strategy{
		router.GreedyByBalance{},
		router.GreedyByFee{Lanes: fees.DefaultSchedule()},
		router.ProportionalSplit{},
		router.NewExhaustiveSubset(router.DefaultExhaustiveCandidates),
	}
}

func TestAllocator_DirectFulfillment(t *testing.T) {
	for _, strategy := range allStrategies() {
		t.Run(strategy.Name(), func(t *testing.T) {
			quoter := &MockFeeQuoter{}
			allocator := router.NewAllocator(testChains, quoter, router.WithStrategy(strategy))

			balances := []models.ChainBalance{bal("polygon", "150"), bal("arbitrum", "20")}
			resp := allocator.FindOptimalRoutes(context.Background(), balances, "polygon", d("100"), testToken, testOwner)

			assert.Equal(t, len(resp.Routes), 0)
			assertDecimal(t, resp.TotalAmount, "150")
			assertDecimal(t, resp.TotalFee, "0")
			assertDecimal(t, resp.AvailableBalance, "170")
			assertDecimal(t, resp.Shortfall, "0")
			assert.False(t, resp.InsufficientFunds)
			assert.False(t, resp.NoValidRoutes)
			assert.Equal(t, quoter.Calls(), int64(0))
		})
	}
}

func TestAllocator_WorkedExample(t *testing.T) {
	quoter := &MockFeeQuoter{}
	allocator := router.NewAllocator(testChains, quoter)

	balances := []models.ChainBalance{
		bal("polygon", "40"),
		bal("arbitrum", "100"),
		bal("base", "0"),
		bal("gnosis", "10"),
	}
	resp := allocator.FindOptimalRoutes(context.Background(), balances, "polygon", d("100"), testToken, testOwner)

	assert.Equal(t, len(resp.Routes), 1)
	route := resp.Routes[0]
	assert.Equal(t, route.SourceChain, "arbitrum")
	assertDecimal(t, route.Amount, "60")
	assertDecimal(t, route.SourceBalance, "100")
	assertDecimal(t, route.Fee, "1.5")
	assert.Equal(t, route.GasToken, "ETH")
	assert.Equal(t, route.EstimatedTime, int64(300))

	assertDecimal(t, resp.TotalAmount, "100")
	assertDecimal(t, resp.TotalFee, "1.5")
	assertDecimal(t, resp.Shortfall, "0")
	assert.Equal(t, resp.EstimatedTotalTime, int64(300))
	assert.False(t, resp.InsufficientFunds)
	assert.False(t, resp.NoValidRoutes)
	assert.Equal(t, resp.Strategy, router.StrategyGreedyByBalance)
	assert.Equal(t, quoter.Calls(), int64(1))
}

func TestAllocator_AllZeroBalances(t *testing.T) {
	for _, strategy := range allStrategies() {
		t.Run(strategy.Name(), func(t *testing.T) {
			quoter := &MockFeeQuoter{}
			allocator := router.NewAllocator(testChains, quoter, router.WithStrategy(strategy))

			balances := []models.ChainBalance{
				bal("polygon", "0"),
				bal("arbitrum", "0"),
				bal("base", "0"),
				bal("gnosis", "0"),
			}
			resp := allocator.FindOptimalRoutes(context.Background(), balances, "polygon", d("50"), testToken, testOwner)

			assert.True(t, resp.InsufficientFunds)
			assert.False(t, resp.NoValidRoutes)
			assert.Equal(t, len(resp.Routes), 0)
			assertDecimal(t, resp.TotalAmount, "0")
			assertDecimal(t, resp.Shortfall, "50")
			assert.Equal(t, quoter.Calls(), int64(0))
		})
	}
}

func TestAllocator_ProvableInsufficiency(t *testing.T) {
	for _, strategy := range allStrategies() {
		t.Run(strategy.Name(), func(t *testing.T) {
			quoter := &MockFeeQuoter{}
			allocator := router.NewAllocator(testChains, quoter, router.WithStrategy(strategy))

			balances := []models.ChainBalance{
				bal("polygon", "10"),
				bal("arbitrum", "20"),
				bal("base", "5"),
			}
			resp := allocator.FindOptimalRoutes(context.Background(), balances, "polygon", d("100"), testToken, testOwner)

			assert.True(t, resp.InsufficientFunds)
			assert.False(t, resp.NoValidRoutes)
			assert.Equal(t, len(resp.Routes), 0)
			assertDecimal(t, resp.TotalAmount, "35")
			assertDecimal(t, resp.Shortfall, "65")
			assert.Equal(t, quoter.Calls(), int64(0))
		})
	}
}

func TestAllocator_Conservation(t *testing.T) {
	balances := []models.ChainBalance{
		bal("polygon", "12.5"),
		bal("arbitrum", "33"),
		bal("base", "41.25"),
		bal("gnosis", "27"),
	}
	sourceBalances := map[string]decimal.Decimal{}
	for _, b := range balances {
		sourceBalances[b.Chain] = b.Balance
	}

	for _, strategy := range allStrategies() {
		t.Run(strategy.Name(), func(t *testing.T) {
			allocator := router.NewAllocator(testChains, &MockFeeQuoter{}, router.WithStrategy(strategy))
			resp := allocator.FindOptimalRoutes(context.Background(), balances, "polygon", d("90"), testToken, testOwner)

			total := d("12.5")
			fee := decimal.Zero
			for _, route := range resp.Routes {
				assert.True(t, route.Amount.LessThanOrEqual(sourceBalances[route.SourceChain]))
				assert.True(t, route.Amount.GreaterThanOrEqual(router.DefaultDustThreshold))
				assert.True(t, route.Fee.IsPositive())
				total = total.Add(route.Amount)
				fee = fee.Add(route.Fee)
			}

			assert.True(t, resp.TotalAmount.Equal(total))
			assert.True(t, resp.TotalFee.Equal(fee))
			assertDecimal(t, resp.TotalAmount, "90")
			assert.True(t, resp.TotalAmount.GreaterThanOrEqual(d("12.5")))
			assert.False(t, resp.InsufficientFunds)
			assert.False(t, resp.NoValidRoutes)
		})
	}
}

func TestAllocator_FeeFloor(t *testing.T) {
	quoter := &MockFeeQuoter{
		quoteFunc: func(_ string, _ decimal.Decimal) (models.FeeQuote, error) {
			return models.FeeQuote{GasFee: d("0.0000001"), BridgeFee: decimal.Zero, EstimatedTime: -5, Protocol: "free"}, nil
		},
	}
	allocator := router.NewAllocator(testChains, quoter)

	balances := []models.ChainBalance{bal("polygon", "0"), bal("base", "80")}
	resp := allocator.FindOptimalRoutes(context.Background(), balances, "polygon", d("50"), testToken, testOwner)

	assert.Equal(t, len(resp.Routes), 1)
	assertDecimal(t, resp.Routes[0].Fee, "0.000001")
	assert.Equal(t, resp.Routes[0].EstimatedTime, int64(0))
	assertDecimal(t, resp.TotalFee, "0.000001")
}

func TestAllocator_DegradeOnQuoteFailure(t *testing.T) {
	quoter := flatFees(map[string]string{"base": "2", "gnosis": "1"})
	allocator := router.NewAllocator(testChains, quoter)

	balances := []models.ChainBalance{
		bal("polygon", "0"),
		bal("arbitrum", "100"),
		bal("base", "40"),
		bal("gnosis", "30"),
	}
	resp := allocator.FindOptimalRoutes(context.Background(), balances, "polygon", d("60"), testToken, testOwner)

	// arbitrum fails, base and gnosis cover the need
	assert.Equal(t, len(resp.Routes), 2)
	assert.Equal(t, resp.Routes[0].SourceChain, "base")
	assertDecimal(t, resp.Routes[0].Amount, "40")
	assert.Equal(t, resp.Routes[1].SourceChain, "gnosis")
	assertDecimal(t, resp.Routes[1].Amount, "20")
	assertDecimal(t, resp.TotalAmount, "60")
	assertDecimal(t, resp.TotalFee, "3")
	assert.False(t, resp.InsufficientFunds)
	assert.Equal(t, quoter.Calls(), int64(3))
}

func TestAllocator_AllQuotesFail(t *testing.T) {
	for _, strategy := range allStrategies() {
		t.Run(strategy.Name(), func(t *testing.T) {
			quoter := &MockFeeQuoter{
				quoteFunc: func(source string, _ decimal.Decimal) (models.FeeQuote, error) {
					return models.FeeQuote{}, errors.New("upstream down")
				},
			}
			allocator := router.NewAllocator(testChains, quoter, router.WithStrategy(strategy))

			balances := []models.ChainBalance{bal("polygon", "5"), bal("arbitrum", "100")}
			resp := allocator.FindOptimalRoutes(context.Background(), balances, "polygon", d("50"), testToken, testOwner)

			assert.Equal(t, len(resp.Routes), 0)
			assert.True(t, resp.NoValidRoutes)
			assert.True(t, resp.InsufficientFunds)
			assertDecimal(t, resp.TotalAmount, "5")
			assertDecimal(t, resp.Shortfall, "45")
		})
	}
}

func TestAllocator_QuotePanicIsConfined(t *testing.T) {
	quoter := &MockFeeQuoter{
		quoteFunc: func(source string, _ decimal.Decimal) (models.FeeQuote, error) {
			if source == "arbitrum" {
				panic("boom")
			}
			return models.FeeQuote{GasFee: d("1"), BridgeFee: d("1"), EstimatedTime: 60, Protocol: "mock"}, nil
		},
	}
	allocator := router.NewAllocator(testChains, quoter)

	balances := []models.ChainBalance{bal("polygon", "0"), bal("arbitrum", "100"), bal("base", "50")}
	resp := allocator.FindOptimalRoutes(context.Background(), balances, "polygon", d("30"), testToken, testOwner)

	assert.Equal(t, len(resp.Routes), 1)
	assert.Equal(t, resp.Routes[0].SourceChain, "base")
	assertDecimal(t, resp.TotalAmount, "30")
}

func TestAllocator_SkipsDustDraws(t *testing.T) {
	quoter := &MockFeeQuoter{}
	allocator := router.NewAllocator(testChains, quoter)

	balances := []models.ChainBalance{bal("polygon", "0"), bal("arbitrum", "60"), bal("gnosis", "10")}
	resp := allocator.FindOptimalRoutes(context.Background(), balances, "polygon", d("60.05"), testToken, testOwner)

	assert.Equal(t, len(resp.Routes), 1)
	assert.Equal(t, resp.Routes[0].SourceChain, "arbitrum")
	assert.True(t, resp.InsufficientFunds)
	assertDecimal(t, resp.Shortfall, "0.05")
	assert.Equal(t, quoter.Calls(), int64(1))
}

func TestAllocator_UnknownSourceChainIsSkipped(t *testing.T) {
	quoter := &MockFeeQuoter{}
	allocator := router.NewAllocator(testChains, quoter)

	balances := []models.ChainBalance{bal("polygon", "0"), bal("solana", "500"), bal("base", "50")}
	resp := allocator.FindOptimalRoutes(context.Background(), balances, "polygon", d("40"), testToken, testOwner)

	assert.Equal(t, len(resp.Routes), 1)
	assert.Equal(t, resp.Routes[0].SourceChain, "base")
	assert.Equal(t, quoter.Calls(), int64(1))
}

func TestAllocator_CustomDustThreshold(t *testing.T) {
	quoter := &MockFeeQuoter{}
	allocator := router.NewAllocator(testChains, quoter, router.WithDustThreshold(d("5")))

	balances := []models.ChainBalance{bal("polygon", "0"), bal("arbitrum", "50"), bal("base", "3")}
	resp := allocator.FindOptimalRoutes(context.Background(), balances, "polygon", d("53"), testToken, testOwner)

	assert.Equal(t, len(resp.Routes), 1)
	assert.True(t, resp.InsufficientFunds)
	assertDecimal(t, resp.TotalAmount, "50")
}

func TestDirectFulfillment(t *testing.T) {
	balances := []models.ChainBalance{bal("base", "70"), bal("gnosis", "5")}
	resp := router.DirectFulfillment(balances, "base", d("70"))

	assert.Equal(t, len(resp.Routes), 0)
	assertDecimal(t, resp.TotalAmount, "70")
	assertDecimal(t, resp.AvailableBalance, "75")
	assert.Equal(t, resp.TargetChain, "base")
	assert.False(t, resp.InsufficientFunds)
}
