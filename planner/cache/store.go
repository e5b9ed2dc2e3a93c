// Package cache provides the expiring key-value stores used for whole-response
// and per-quote caching. Two backends exist: Redis for shared deployments and an
// in-process LRU for single instances and tests.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "cache").Logger()
}

// DefaultTTL is the expiry applied to cached routes and quotes
const DefaultTTL = 300 * time.Second

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache miss")

// Store is a single-key get/set-with-expiry store. Writes are last-writer-wins.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// RoutesKey builds the whole-response cache key
func RoutesKey(owner, targetChain string, amount decimal.Decimal, token string) string {
	return fmt.Sprintf("routes:%s:%s:%s:%s", owner, targetChain, amount.String(), token)
}

// BridgeFeeKey builds the per-quote cache key
func BridgeFeeKey(fromChainID, toChainID int64, amount decimal.Decimal, token string) string {
	return fmt.Sprintf("bridge_fee:%d:%d:%s:%s", fromChainID, toChainID, amount.String(), token)
}

// New creates the store selected by backend ("redis" or "memory")
func New(backend, redisURL string, maxEntries int, ttl time.Duration) (Store, error) {
	switch backend {
	case "redis":
		return NewRedisStore(redisURL)
	case "memory", "":
		return NewMemoryStore(maxEntries, ttl), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
