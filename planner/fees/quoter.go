// Package fees prices bridge transfers, preferring the Socket aggregator and
// falling back to a deterministic local formula.
package fees

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/cache"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/metrics"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	socketquery "github.com/Cogwheel-Validator/spectra-bridge/planner/socket_query"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "fees").Logger()
}

const (
	// DefaultEstimatedTime in seconds when the aggregator gives none
	DefaultEstimatedTime int64 = 300
	ProtocolFallback           = "fallback"
	ProtocolUnknown            = "unknown"
)

// ErrInvalidAmount is returned for non-positive amounts
var ErrInvalidAmount = errors.New("amount must be positive")

// QuoteClient fetches the best external route for a transfer
type QuoteClient interface {
	GetQuote(ctx context.Context, params socketquery.QuoteParams) (socketquery.QuoteRoute, error)
}

// GasPricer reports a live gas price in wei for a chain key
type GasPricer interface {
	SuggestGasPrice(ctx context.Context, chainKey string) (*big.Int, error)
}

// Quoter implements the fee quoting collaborator of the route planner
type Quoter struct {
	client    QuoteClient
	schedule  Schedule
	store     cache.Store
	cacheTTL  time.Duration
	gasPricer GasPricer
}

type QuoterOption func(*Quoter)

// WithCache caches every quote under its bridge_fee key
func WithCache(store cache.Store, ttl time.Duration) QuoterOption {
	return func(q *Quoter) {
		q.store = store
		q.cacheTTL = ttl
	}
}

// WithGasPricer enables the gas-price-aware fallback gas fee
func WithGasPricer(p GasPricer) QuoterOption {
	return func(q *Quoter) {
		q.gasPricer = p
	}
}

// NewQuoter creates a quoter. client may be nil, then every quote uses the fallback formula.
func NewQuoter(client QuoteClient, schedule Schedule, opts ...QuoterOption) *Quoter {
	q := &Quoter{
		client:   client,
		schedule: schedule,
		cacheTTL: cache.DefaultTTL,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Schedule exposes the fee table, used to order lanes by cost
func (q *Quoter) Schedule() Schedule {
	return q.schedule
}

// Quote prices bridging amount of token from source to target for owner.
// The fallback formula always produces a number, so the only error is an invalid amount.
func (q *Quoter) Quote(
	ctx context.Context,
	source, target models.Chain,
	amount decimal.Decimal,
	token, owner string,
) (models.FeeQuote, error) {
	if !amount.IsPositive() {
		return models.FeeQuote{}, ErrInvalidAmount
	}

	key := cache.BridgeFeeKey(source.ChainID, target.ChainID, amount, token)
	if cached, ok := q.fromCache(ctx, key); ok {
		return cached, nil
	}

	quote := q.quote(ctx, source, target, amount, owner)
	q.toCache(ctx, key, quote)
	return quote, nil
}

func (q *Quoter) quote(ctx context.Context, source, target models.Chain, amount decimal.Decimal, owner string) models.FeeQuote {
	if q.client == nil {
		return q.fallbackQuote(ctx, source, target, amount)
	}

	start := time.Now()
	route, err := q.client.GetQuote(ctx, socketquery.QuoteParams{
		FromChainID:      source.ChainID,
		ToChainID:        target.ChainID,
		FromTokenAddress: source.TokenAddress,
		ToTokenAddress:   target.TokenAddress,
		FromAmount:       toBaseUnits(amount, source.TokenDecimals),
		UserAddress:      owner,
	})
	metrics.ExternalQuoteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn().Err(err).
			Str("from", source.Key).
			Str("to", target.Key).
			Msg("External quote failed, using fallback fees")
		return q.fallbackQuote(ctx, source, target, amount)
	}

	quote := models.FeeQuote{
		GasFee:        parseUSD(route.TotalGasFeeUSD).Round(6),
		BridgeFee:     parseUSD(route.TotalBridgeFeeUSD).Round(6),
		EstimatedTime: route.ServiceTime,
		Protocol:      route.ProtocolName(),
	}
	if quote.EstimatedTime <= 0 {
		quote.EstimatedTime = DefaultEstimatedTime
	}
	if quote.Protocol == "" {
		quote.Protocol = ProtocolUnknown
	}

	// implausibly cheap quotes keep the route's protocol and time but take the local fees
	if !quote.GasFee.GreaterThan(q.schedule.MinFee) || !quote.BridgeFee.GreaterThan(q.schedule.MinFee) {
		metrics.FeeQuotes.WithLabelValues("external_low").Inc()
		quote.GasFee, quote.BridgeFee = q.schedule.Fallback(source, target.Key, amount, q.gasPrice(ctx, source))
		return quote
	}

	metrics.FeeQuotes.WithLabelValues("external").Inc()
	return quote
}

func (q *Quoter) fallbackQuote(ctx context.Context, source, target models.Chain, amount decimal.Decimal) models.FeeQuote {
	metrics.FeeQuotes.WithLabelValues("fallback").Inc()
	gasFee, bridgeFee := q.schedule.Fallback(source, target.Key, amount, q.gasPrice(ctx, source))
	return models.FeeQuote{
		GasFee:        gasFee,
		BridgeFee:     bridgeFee,
		EstimatedTime: DefaultEstimatedTime,
		Protocol:      ProtocolFallback,
	}
}

// gasPrice returns nil when the gas-price-aware variant is off or the price is unavailable
func (q *Quoter) gasPrice(ctx context.Context, source models.Chain) *big.Int {
	if q.gasPricer == nil {
		return nil
	}
	price, err := q.gasPricer.SuggestGasPrice(ctx, source.Key)
	if err != nil {
		log.Debug().Err(err).Str("chain", source.Key).Msg("Gas price unavailable")
		return nil
	}
	return price
}

func (q *Quoter) fromCache(ctx context.Context, key string) (models.FeeQuote, bool) {
	if q.store == nil {
		return models.FeeQuote{}, false
	}
	raw, err := q.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Str("key", key).Msg("Quote cache read failed")
		}
		return models.FeeQuote{}, false
	}
	var quote models.FeeQuote
	if err := json.Unmarshal(raw, &quote); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Corrupt cached quote")
		return models.FeeQuote{}, false
	}
	metrics.CacheLookups.WithLabelValues("quote", "hit").Inc()
	return quote, true
}

func (q *Quoter) toCache(ctx context.Context, key string, quote models.FeeQuote) {
	if q.store == nil {
		return
	}
	metrics.CacheLookups.WithLabelValues("quote", "miss").Inc()
	raw, err := json.Marshal(quote)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode quote")
		return
	}
	if err := q.store.SetEx(ctx, key, raw, q.cacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Quote cache write failed")
	}
}

// toBaseUnits converts a token amount to integer base units, truncating the remainder
func toBaseUnits(amount decimal.Decimal, decimals int32) string {
	return amount.Shift(decimals).Truncate(0).String()
}

func parseUSD(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Debug().Err(err).Str("value", s).Msg("Unparseable fee value")
		return decimal.Zero
	}
	return d
}
