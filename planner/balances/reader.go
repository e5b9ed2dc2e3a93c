// Package balances reads the owner's ERC20 token balance on every supported chain.
package balances

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"strings"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/metrics"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "balances").Logger()
}

var (
	// ErrCallException marks a reverted contract call or one that returned no data
	ErrCallException = errors.New("call exception")
	// ErrNoClient is returned when no RPC client was dialed for a chain
	ErrNoClient = errors.New("no rpc client for chain")
)

var (
	balanceOfSelector = common.FromHex("0x70a08231")
	decimalsSelector  = common.FromHex("0x313ce567")
)

// Reader returns the owner's token balance on a chain.
// Implementations never fail, an undeterminable balance reads as zero.
type Reader interface {
	Balance(ctx context.Context, chain models.Chain, owner string) decimal.Decimal
}

// RetryConfig bounds the balance query retry loop
type RetryConfig struct {
	// MaxAttempts including the first one
	MaxAttempts uint
	// InitialInterval doubles after every failed attempt (1s, 2s, 4s...)
	InitialInterval time.Duration
	// AttemptTimeout bounds a single attempt
	AttemptTimeout time.Duration
}

// DefaultRetryConfig returns 3 attempts, 2^attempt second backoff and a 15s attempt timeout
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		AttemptTimeout:  15 * time.Second,
	}
}

// EVMReader queries balanceOf and decimals of the chain's token contract
type EVMReader struct {
	registry *Registry
	retry    RetryConfig
}

// NewEVMReader creates a reader backed by the shared client registry
func NewEVMReader(registry *Registry, retry RetryConfig) *EVMReader {
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	if retry.AttemptTimeout <= 0 {
		retry.AttemptTimeout = DefaultRetryConfig().AttemptTimeout
	}
	return &EVMReader{registry: registry, retry: retry}
}

// Balance returns the owner's balance on chain, or zero when it cannot be determined
func (r *EVMReader) Balance(ctx context.Context, chain models.Chain, owner string) decimal.Decimal {
	start := time.Now()
	balance, err := r.FetchBalance(ctx, chain, owner)
	metrics.BalanceQueryDuration.WithLabelValues(chain.Key).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BalanceQueries.WithLabelValues(chain.Key, "zero_fallback").Inc()
		log.Warn().Err(err).Str("chain", chain.Key).Msg("Balance unavailable, using zero")
		return decimal.Zero
	}
	metrics.BalanceQueries.WithLabelValues(chain.Key, "ok").Inc()
	return balance
}

// FetchBalance runs the retry loop and reports the final error instead of degrading to zero
func (r *EVMReader) FetchBalance(ctx context.Context, chain models.Chain, owner string) (decimal.Decimal, error) {
	client, ok := r.registry.Client(chain.Key)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoClient, chain.Key)
	}
	if !common.IsHexAddress(chain.TokenAddress) {
		return decimal.Zero, fmt.Errorf("invalid token address %q for %s", chain.TokenAddress, chain.Key)
	}
	if !common.IsHexAddress(owner) {
		return decimal.Zero, fmt.Errorf("invalid owner address %q", owner)
	}
	token := common.HexToAddress(chain.TokenAddress)
	holder := common.HexToAddress(owner)

	attempt := 0
	operation := func() (decimal.Decimal, error) {
		attempt++
		balance, err := r.queryOnce(ctx, client, token, holder)
		if err == nil {
			return balance, nil
		}

		log.Debug().Err(err).Str("chain", chain.Key).Int("attempt", attempt).Msg("Balance attempt failed")

		switch {
		case isCallException(err) && chain.ZeroOnCallException:
			log.Warn().Str("chain", chain.Key).Msg("Call exception treated as zero balance")
			return decimal.Zero, nil
		case isCallException(err), isTimeout(err):
			return decimal.Zero, err
		default:
			return decimal.Zero, backoff.Permanent(err)
		}
	}

	expBackOff := &backoff.ExponentialBackOff{
		InitialInterval:     r.retry.InitialInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Minute,
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackOff),
		backoff.WithMaxTries(r.retry.MaxAttempts),
	)
}

// queryOnce reads balanceOf and decimals concurrently under a single attempt timeout
func (r *EVMReader) queryOnce(
	ctx context.Context,
	client ChainClient,
	token, holder common.Address,
) (decimal.Decimal, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.retry.AttemptTimeout)
	defer cancel()

	var raw *big.Int
	var decimals int32

	g, gctx := errgroup.WithContext(attemptCtx)
	g.Go(func() error {
		data := append(append([]byte{}, balanceOfSelector...), common.LeftPadBytes(holder.Bytes(), 32)...)
		out, err := callContract(gctx, client, token, data)
		if err != nil {
			return fmt.Errorf("balanceOf: %w", err)
		}
		raw = new(big.Int).SetBytes(lastWord(out))
		return nil
	})
	g.Go(func() error {
		out, err := callContract(gctx, client, token, decimalsSelector)
		if err != nil {
			return fmt.Errorf("decimals: %w", err)
		}
		d := new(big.Int).SetBytes(lastWord(out))
		if !d.IsInt64() || d.Int64() > 77 {
			return fmt.Errorf("decimals: implausible value %s", d.String())
		}
		decimals = int32(d.Int64())
		return nil
	})
	if err := g.Wait(); err != nil {
		return decimal.Zero, err
	}

	return decimal.NewFromBigInt(raw, -decimals), nil
}

func callContract(ctx context.Context, client ChainClient, to common.Address, data []byte) ([]byte, error) {
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	// no code at the address or a silent failure, nothing to decode
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty return data", ErrCallException)
	}
	return out, nil
}

// lastWord returns the trailing 32 byte ABI word
func lastWord(out []byte) []byte {
	if len(out) <= 32 {
		return out
	}
	return out[len(out)-32:]
}

func isCallException(err error) bool {
	if errors.Is(err, ErrCallException) {
		return true
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
