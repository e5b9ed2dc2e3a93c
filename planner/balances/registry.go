package balances

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ChainClient is the subset of the Ethereum JSON-RPC API the planner needs
type ChainClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Registry holds one RPC client per chain for the lifetime of the process.
// Clients are dialed once at startup and shared by every request.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]ChainClient
	closers []func()
}

// NewRegistry wraps already constructed clients keyed by chain key
func NewRegistry(clients map[string]ChainClient) *Registry {
	if clients == nil {
		clients = make(map[string]ChainClient)
	}
	return &Registry{clients: clients}
}

// DialRegistry dials the first usable RPC URL of every chain.
// A chain without a reachable endpoint is left out and logged, its balance will read as zero.
func DialRegistry(ctx context.Context, chains []models.Chain) (*Registry, error) {
	r := NewRegistry(nil)

	for _, chain := range chains {
		var dialErr error
		for _, url := range chain.RPCURLs {
			client, err := ethclient.DialContext(ctx, url)
			if err != nil {
				dialErr = err
				log.Warn().Err(err).Str("chain", chain.Key).Str("url", url).Msg("Failed to dial RPC endpoint")
				continue
			}
			r.clients[chain.Key] = client
			r.closers = append(r.closers, client.Close)
			log.Info().Str("chain", chain.Key).Str("url", url).Msg("RPC client ready")
			dialErr = nil
			break
		}
		if dialErr != nil {
			log.Error().Err(dialErr).Str("chain", chain.Key).Msg("No RPC endpoint available")
		}
	}

	if len(r.clients) == 0 && len(chains) > 0 {
		return nil, fmt.Errorf("no chain RPC endpoint could be dialed")
	}
	return r, nil
}

// Client returns the client registered for chainKey
func (r *Registry) Client(chainKey string) (ChainClient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[chainKey]
	return c, ok
}

// SuggestGasPrice returns the current gas price in wei on chainKey
func (r *Registry) SuggestGasPrice(ctx context.Context, chainKey string) (*big.Int, error) {
	client, ok := r.Client(chainKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoClient, chainKey)
	}
	return client.SuggestGasPrice(ctx)
}

// Close releases every dialed client
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, closeFn := range r.closers {
		closeFn()
	}
	r.closers = nil
}
