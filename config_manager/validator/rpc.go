package validator

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/config_manager/input"
	"github.com/cenkalti/backoff/v5"
)

// ProbeConfig controls how hard endpoints are probed
type ProbeConfig struct {
	RetryAttempts uint
	RetryDelay    time.Duration
	// Timeout bounds each single JSON-RPC call
	Timeout time.Duration
	// SampleBlocks is the number of random block headers compared between endpoints
	SampleBlocks int
	// SampleDepth is how far below the lowest head the samples are drawn from
	SampleDepth uint64
	// MaxHeightLag is how many blocks an endpoint may trail the highest head without penalty
	MaxHeightLag uint64
}

// DefaultProbeConfig returns the settings used by the generator
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		RetryAttempts: 3,
		RetryDelay:    500 * time.Millisecond,
		Timeout:       10 * time.Second,
		SampleBlocks:  5,
		SampleDepth:   2000,
		MaxHeightLag:  50,
	}
}

// confirmationDepth keeps samples clear of blocks that may still reorg
const confirmationDepth = 64

// ValidateRpcEndpoints probes endpoints and returns the healthy ones in their input order.
// An endpoint must report expectedChainID, keep up with the highest head and agree
// with the majority on sampled block headers.
func ValidateRpcEndpoints(
	ctx context.Context,
	endpoints []input.APIEndpoint,
	expectedChainID int64,
	dial DialFunc,
	cfg ProbeConfig,
) []input.APIEndpoint {
	rpcValidities := initRpcValidity(endpoints)
	defer closeClients(rpcValidities)

	// Step 1: Collect chain id and head from all endpoints
	heights := collectRpcBasicData(ctx, rpcValidities, dial, cfg)

	// Step 2: Filter the endpoints by chain id and head lag
	maxHeight := getMaxHeight(heights)
	filterRpcEndpointsByBasicData(rpcValidities, maxHeight, expectedChainID, cfg.MaxHeightLag)

	// Step 3: Pick the sample heights below the lowest valid head
	blocks := sampleHeights(lowestValidHeight(rpcValidities), cfg)

	// Step 4: Fetch the sampled headers and compare them
	if len(blocks) > 0 {
		fetchRpcBlockData(ctx, rpcValidities, cfg, blocks)
		validateBlockData(rpcValidities)
	}

	// Step 5: Return the healthy endpoints
	healthy := make([]input.APIEndpoint, 0, len(endpoints))
	for _, endpoint := range endpoints {
		if v, ok := rpcValidities[endpoint.URL]; ok && v.valid {
			healthy = append(healthy, endpoint)
		}
	}
	return healthy
}

func initRpcValidity(endpoints []input.APIEndpoint) map[string]RpcValidity {
	rpcValidities := make(map[string]RpcValidity, len(endpoints))
	for _, endpoint := range endpoints {
		rpcValidities[endpoint.URL] = RpcValidity{
			Endpoint: endpoint,
			points:   startPoints,
			valid:    true,
		}
	}
	return rpcValidities
}

func closeClients(rpcValidities map[string]RpcValidity) {
	for _, endpoint := range rpcValidities {
		if endpoint.client != nil {
			endpoint.client.Close()
		}
	}
}

// withRetry runs op with a constant delay between attempts, each attempt under cfg.Timeout
func withRetry[T any](ctx context.Context, cfg ProbeConfig, op func(ctx context.Context) (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		return op(attemptCtx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(cfg.RetryDelay)),
		backoff.WithMaxTries(max(cfg.RetryAttempts, 1)),
	)
}

func collectRpcBasicData(
	ctx context.Context,
	rpcValidities map[string]RpcValidity,
	dial DialFunc,
	cfg ProbeConfig,
) []uint64 {
	heights := make([]uint64, 0, len(rpcValidities))
	for url, endpoint := range rpcValidities {
		client, err := dial(ctx, url)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("Failed to dial endpoint")
			endpoint.valid = false
			rpcValidities[url] = endpoint
			continue
		}
		endpoint.client = client

		chainID, err := withRetry(ctx, cfg, client.ChainID)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("Failed to query chain id")
			endpoint.valid = false
			rpcValidities[url] = endpoint
			continue
		}
		height, err := withRetry(ctx, cfg, client.BlockNumber)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("Failed to query block number")
			endpoint.valid = false
			rpcValidities[url] = endpoint
			continue
		}

		id := chainID.Int64()
		endpoint.chainID = &id
		endpoint.height = &height
		rpcValidities[url] = endpoint

		heights = append(heights, height)
	}
	return heights
}

/*
Filter the endpoints by the basic data

Parameters:
- rpcValidities - the map of the RPC endpoints and their validity
- maxHeight - the highest head reported by any endpoint
- expectedChainID - the chain id from the chain config
- maxLag - blocks an endpoint may trail maxHeight without a penalty
*/
func filterRpcEndpointsByBasicData(
	rpcValidities map[string]RpcValidity,
	maxHeight uint64,
	expectedChainID int64,
	maxLag uint64,
) {
	for url, endpoint := range rpcValidities {
		if !endpoint.valid {
			continue
		}

		if *endpoint.chainID != expectedChainID {
			log.Warn().
				Str("url", url).
				Int64("chain_id", *endpoint.chainID).
				Int64("expected", expectedChainID).
				Msg("Endpoint serves a different chain")
			endpoint.valid = false
			rpcValidities[url] = endpoint
			continue
		}

		if *endpoint.height+maxLag < maxHeight {
			endpoint.points -= mismatchPenalty
			log.Warn().
				Str("url", url).
				Uint64("behind", maxHeight-*endpoint.height).
				Int("penalty", mismatchPenalty).
				Msg("Endpoint is lagging")
		}

		if endpoint.points < minPoints {
			endpoint.valid = false
			log.Warn().Str("url", url).Int("points", endpoint.points).Msg("Endpoint marked invalid due to low points")
		}

		rpcValidities[url] = endpoint
	}
}

func lowestValidHeight(rpcValidities map[string]RpcValidity) uint64 {
	var lowest uint64
	for _, endpoint := range rpcValidities {
		if !endpoint.valid || endpoint.height == nil {
			continue
		}
		if lowest == 0 || *endpoint.height < lowest {
			lowest = *endpoint.height
		}
	}
	return lowest
}

// sampleHeights draws cfg.SampleBlocks random heights from
// [head-confirmationDepth-SampleDepth, head-confirmationDepth)
func sampleHeights(head uint64, cfg ProbeConfig) []uint64 {
	if head <= confirmationDepth || cfg.SampleBlocks <= 0 {
		return nil
	}
	top := head - confirmationDepth
	depth := min(max(cfg.SampleDepth, 1), top)

	heights := make([]uint64, 0, cfg.SampleBlocks)
	for range cfg.SampleBlocks {
		n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(depth))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to draw a random block height")
			continue
		}
		heights = append(heights, top-n.Uint64())
	}
	return heights
}

/*
Fetch the sampled block headers from the endpoints

Parameters:
- rpcValidities - the map of the RPC endpoints and their validity
- cfg - retry and timeout settings
- heights - the heights to fetch the headers for
*/
func fetchRpcBlockData(
	ctx context.Context,
	rpcValidities map[string]RpcValidity,
	cfg ProbeConfig,
	heights []uint64,
) {
	for url, endpoint := range rpcValidities {
		if !endpoint.valid {
			continue
		}

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			blockData = make(map[uint64]*BlockData, len(heights))
		)
		for _, height := range heights {
			wg.Add(1)
			go func() {
				defer wg.Done()
				header, err := withRetry(ctx, cfg, func(ctx context.Context) (*BlockData, error) {
					h, err := endpoint.client.HeaderByNumber(ctx, new(big.Int).SetUint64(height))
					if err != nil {
						return nil, err
					}
					return newBlockData(h), nil
				})
				if err != nil {
					log.Warn().Err(err).Str("url", url).Uint64("height", height).Msg("Failed to get block header")
					header = nil
				}
				mu.Lock()
				blockData[height] = header
				mu.Unlock()
			}()
		}
		wg.Wait()

		endpoint.blockData = blockData
		rpcValidities[url] = endpoint
	}
}
