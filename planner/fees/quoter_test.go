package fees_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/cache"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/fees"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	socketquery "github.com/Cogwheel-Validator/spectra-bridge/planner/socket_query"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const owner = "0x1111111111111111111111111111111111111111"

type mockQuoteClient struct {
	route      socketquery.QuoteRoute
	err        error
	calls      int
	lastParams socketquery.QuoteParams
}

func (m *mockQuoteClient) GetQuote(_ context.Context, params socketquery.QuoteParams) (socketquery.QuoteRoute, error) {
	m.calls++
	m.lastParams = params
	return m.route, m.err
}

type mockGasPricer struct {
	price *big.Int
	err   error
}

func (m mockGasPricer) SuggestGasPrice(context.Context, string) (*big.Int, error) {
	return m.price, m.err
}

var (
	polygon = models.Chain{
		Key: "polygon", ChainID: 137, NativeToken: "MATIC", TokenDecimals: 6,
		TokenAddress: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
	}
	arbitrum = models.Chain{
		Key: "arbitrum", ChainID: 42161, NativeToken: "ETH", TokenDecimals: 6,
		TokenAddress:   "0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8",
		GasMultiplier:  decimal.NewFromInt(1),
		NativeTokenUSD: decimal.NewFromInt(3000),
	}
	base = models.Chain{
		Key: "base", ChainID: 8453, NativeToken: "ETH", TokenDecimals: 6,
		TokenAddress:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		GasMultiplier: decimal.NewFromInt(2),
	}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(dec(want)), "want %s, got %s", want, got)
}

func TestSchedule_FeePercentage(t *testing.T) {
	s := fees.DefaultSchedule()
	requireDecimal(t, "1", s.FeePercentage("arbitrum", "polygon"))
	requireDecimal(t, "0.1", s.FeePercentage("gnosis", "polygon"))
	requireDecimal(t, "1.5", s.FeePercentage("polygon", "arbitrum"))
	requireDecimal(t, "1.5", s.FeePercentage("unknown", "polygon"))
}

func TestSchedule_FallbackFloorsAtMinFee(t *testing.T) {
	gas, bridge := fees.DefaultSchedule().Fallback(arbitrum, "polygon", dec("60"), nil)
	// gas max(0.06, 0.06) and bridge 0.6
	requireDecimal(t, "0.5", gas)
	requireDecimal(t, "0.6", bridge)
}

func TestSchedule_FallbackVolumeDiscounts(t *testing.T) {
	s := fees.DefaultSchedule()

	gas, bridge := s.Fallback(base, "arbitrum", dec("2000"), nil)
	requireDecimal(t, "24", bridge) // 2000 * 1.5% * 0.8
	requireDecimal(t, "4", gas)     // 0.001 * 2 * 2000

	_, bridge = s.Fallback(base, "arbitrum", dec("600"), nil)
	requireDecimal(t, "8.1", bridge) // 600 * 1.5% * 0.9

	_, bridge = s.Fallback(base, "arbitrum", dec("500"), nil)
	requireDecimal(t, "7.5", bridge) // no discount at exactly 500
}

func TestSchedule_FallbackRoundsToSixDecimals(t *testing.T) {
	_, bridge := fees.DefaultSchedule().Fallback(base, "arbitrum", dec("100.0000001"), nil)
	requireDecimal(t, "1.5", bridge)
}

func TestSchedule_FallbackGasPriceAware(t *testing.T) {
	// 20 gwei * 250000 gas = 0.005 ETH at 3000 USD
	gas, _ := fees.DefaultSchedule().Fallback(arbitrum, "polygon", dec("60"), big.NewInt(20_000_000_000))
	requireDecimal(t, "15", gas)

	// without a native price the multiplier formula stays in place
	gas, _ = fees.DefaultSchedule().Fallback(base, "polygon", dec("1000"), big.NewInt(20_000_000_000))
	requireDecimal(t, "2", gas)
}

func TestQuoter_UsesExternalQuote(t *testing.T) {
	client := &mockQuoteClient{route: socketquery.QuoteRoute{
		TotalGasFeeUSD:    "1.2345678",
		TotalBridgeFeeUSD: "2",
		Protocol:          []byte(`"hop"`),
		ServiceTime:       120,
	}}
	q := fees.NewQuoter(client, fees.DefaultSchedule())

	quote, err := q.Quote(context.Background(), arbitrum, polygon, dec("60.1234567"), polygon.TokenAddress, owner)
	require.NoError(t, err)
	requireDecimal(t, "1.234568", quote.GasFee)
	requireDecimal(t, "2", quote.BridgeFee)
	require.Equal(t, int64(120), quote.EstimatedTime)
	require.Equal(t, "hop", quote.Protocol)

	require.Equal(t, int64(42161), client.lastParams.FromChainID)
	require.Equal(t, int64(137), client.lastParams.ToChainID)
	require.Equal(t, "60123456", client.lastParams.FromAmount)
	require.Equal(t, arbitrum.TokenAddress, client.lastParams.FromTokenAddress)
	require.Equal(t, polygon.TokenAddress, client.lastParams.ToTokenAddress)
	require.Equal(t, owner, client.lastParams.UserAddress)
}

func TestQuoter_LowExternalFeesUseFallback(t *testing.T) {
	for _, gasFee := range []string{"0.4", "0.5", ""} {
		client := &mockQuoteClient{route: socketquery.QuoteRoute{
			TotalGasFeeUSD:    gasFee,
			TotalBridgeFeeUSD: "3",
			Protocol:          []byte(`{"name":"stargate"}`),
		}}
		q := fees.NewQuoter(client, fees.DefaultSchedule())

		quote, err := q.Quote(context.Background(), arbitrum, polygon, dec("60"), polygon.TokenAddress, owner)
		require.NoError(t, err)
		requireDecimal(t, "0.5", quote.GasFee)
		requireDecimal(t, "0.6", quote.BridgeFee)
		require.Equal(t, "stargate", quote.Protocol)
		require.Equal(t, fees.DefaultEstimatedTime, quote.EstimatedTime)
	}
}

func TestQuoter_ExternalErrorUsesFallback(t *testing.T) {
	client := &mockQuoteClient{err: errors.New("HTTP 500")}
	q := fees.NewQuoter(client, fees.DefaultSchedule())

	quote, err := q.Quote(context.Background(), base, polygon, dec("100"), polygon.TokenAddress, owner)
	require.NoError(t, err)
	require.Equal(t, fees.ProtocolFallback, quote.Protocol)
	require.Equal(t, int64(300), quote.EstimatedTime)
	requireDecimal(t, "0.5", quote.BridgeFee) // 100 * 0.5% = 0.5
	requireDecimal(t, "0.5", quote.GasFee)
	requireDecimal(t, "1", quote.Total())
}

func TestQuoter_NilClientIsFallbackOnly(t *testing.T) {
	q := fees.NewQuoter(nil, fees.DefaultSchedule(), fees.WithGasPricer(mockGasPricer{err: errors.New("down")}))

	quote, err := q.Quote(context.Background(), arbitrum, polygon, dec("60"), polygon.TokenAddress, owner)
	require.NoError(t, err)
	require.Equal(t, fees.ProtocolFallback, quote.Protocol)
	requireDecimal(t, "0.5", quote.GasFee)
}

func TestQuoter_GasPricerFeedsFallback(t *testing.T) {
	q := fees.NewQuoter(nil, fees.DefaultSchedule(), fees.WithGasPricer(mockGasPricer{price: big.NewInt(20_000_000_000)}))

	quote, err := q.Quote(context.Background(), arbitrum, polygon, dec("60"), polygon.TokenAddress, owner)
	require.NoError(t, err)
	requireDecimal(t, "15", quote.GasFee)
}

func TestQuoter_ScheduleIsTheConfiguredTable(t *testing.T) {
	schedule := fees.DefaultSchedule()
	schedule.Percentages["optimism"] = map[string]decimal.Decimal{"polygon": dec("0.05")}
	q := fees.NewQuoter(nil, schedule)

	lanes := q.Schedule()
	requireDecimal(t, "0.05", lanes.FeePercentage("optimism", "polygon"))
	requireDecimal(t, "0.1", lanes.FeePercentage("gnosis", "polygon"))
	requireDecimal(t, "1.5", lanes.FeePercentage("polygon", "base"))
}

func TestQuoter_CachesQuotes(t *testing.T) {
	client := &mockQuoteClient{route: socketquery.QuoteRoute{TotalGasFeeUSD: "1", TotalBridgeFeeUSD: "1", ServiceTime: 60}}
	store := cache.NewMemoryStore(10, cache.DefaultTTL)
	q := fees.NewQuoter(client, fees.DefaultSchedule(), fees.WithCache(store, cache.DefaultTTL))

	first, err := q.Quote(context.Background(), arbitrum, polygon, dec("60"), polygon.TokenAddress, owner)
	require.NoError(t, err)
	second, err := q.Quote(context.Background(), arbitrum, polygon, dec("60"), polygon.TokenAddress, owner)
	require.NoError(t, err)

	require.Equal(t, 1, client.calls)
	requireDecimal(t, first.Total().String(), second.Total())
	require.Equal(t, first.EstimatedTime, second.EstimatedTime)

	_, err = store.Get(context.Background(), cache.BridgeFeeKey(42161, 137, dec("60"), polygon.TokenAddress))
	require.NoError(t, err)
}

func TestQuoter_RejectsNonPositiveAmount(t *testing.T) {
	q := fees.NewQuoter(nil, fees.DefaultSchedule())
	_, err := q.Quote(context.Background(), arbitrum, polygon, decimal.Zero, polygon.TokenAddress, owner)
	require.ErrorIs(t, err, fees.ErrInvalidAmount)
}
