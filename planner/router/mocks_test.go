package router_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/shopspring/decimal"
)

var testChains = []models.Chain{
	{Key: "polygon", Name: "Polygon", ChainID: 137, NativeToken: "MATIC", TokenDecimals: 6},
	{Key: "arbitrum", Name: "Arbitrum", ChainID: 42161, NativeToken: "ETH", TokenDecimals: 6},
	{Key: "base", Name: "Base", ChainID: 8453, NativeToken: "ETH", TokenDecimals: 6},
	{Key: "gnosis", Name: "Gnosis", ChainID: 100, NativeToken: "xDAI", TokenDecimals: 6},
}

const (
	testToken = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	testOwner = "0x1111111111111111111111111111111111111111"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func bal(chain, amount string) models.ChainBalance {
	return models.ChainBalance{Chain: chain, Balance: d(amount)}
}

// MockFeeQuoter implements router.FeeQuoter for testing
type MockFeeQuoter struct {
	calls     atomic.Int64
	quoteFunc func(source string, amount decimal.Decimal) (models.FeeQuote, error)
}

func (m *MockFeeQuoter) Quote(
	_ context.Context,
	source, _ models.Chain,
	amount decimal.Decimal,
	_, _ string,
) (models.FeeQuote, error) {
	m.calls.Add(1)
	if m.quoteFunc == nil {
		return models.FeeQuote{GasFee: d("0.5"), BridgeFee: d("1"), EstimatedTime: 300, Protocol: "mock"}, nil
	}
	return m.quoteFunc(source.Key, amount)
}

func (m *MockFeeQuoter) Calls() int64 {
	return m.calls.Load()
}

// flatFees quotes a fixed total fee per source chain, unknown chains fail
func flatFees(fees map[string]string) *MockFeeQuoter {
	return &MockFeeQuoter{
		quoteFunc: func(source string, _ decimal.Decimal) (models.FeeQuote, error) {
			fee, ok := fees[source]
			if !ok {
				return models.FeeQuote{}, fmt.Errorf("no route from %s", source)
			}
			return models.FeeQuote{GasFee: d(fee), BridgeFee: decimal.Zero, EstimatedTime: 120, Protocol: "mock"}, nil
		},
	}
}

// MockBalanceReader implements router.BalanceReader for testing
type MockBalanceReader struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	calls    atomic.Int64
}

func newMockReader(balances map[string]string) *MockBalanceReader {
	r := &MockBalanceReader{balances: make(map[string]decimal.Decimal, len(balances))}
	for chain, amount := range balances {
		r.balances[chain] = d(amount)
	}
	return r
}

func (m *MockBalanceReader) Balance(_ context.Context, chain models.Chain, _ string) decimal.Decimal {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[chain.Key]; ok {
		return b
	}
	return decimal.Zero
}

func (m *MockBalanceReader) Calls() int64 {
	return m.calls.Load()
}
