package validator

import (
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

/*
The validator package is an in depth validation system for the EVM JSON-RPC endpoints
of a chain config.

Every endpoint starts with 100 points. Reporting the wrong chain id disqualifies it
outright, lagging behind the highest reported block or disagreeing with the majority
about a sampled block header costs points. Public RPC providers are often slightly
behind or load balanced over nodes at different heights, so small differences are
penalized instead of rejected.
*/

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "validator").Logger()
}

const (
	mismatchPenalty = 10
	startPoints     = 100
	minPoints       = 60
)

// getMostCommonValue returns the key with the highest count in the map
func getMostCommonValue[T comparable](counts map[T]int) T {
	if len(counts) == 0 {
		return *new(T)
	}

	maxCount := 0
	var mostCommon T
	for key, count := range counts {
		if count > maxCount {
			maxCount = count
			mostCommon = key
		}
	}
	return mostCommon
}

// getMaxHeight returns the maximum value from a slice of heights
func getMaxHeight(heights []uint64) uint64 {
	var highest uint64
	for _, h := range heights {
		highest = max(highest, h)
	}
	return highest
}

func newTracker() blockDataTracker {
	return blockDataTracker{
		hash:        make(map[common.Hash]int),
		parentHash:  make(map[common.Hash]int),
		stateRoot:   make(map[common.Hash]int),
		txHash:      make(map[common.Hash]int),
		receiptHash: make(map[common.Hash]int),
		coinbase:    make(map[common.Address]int),
		time:        make(map[uint64]int),
	}
}

/*
Validate the sampled block headers of the endpoints against the majority

Parameters:
- validities - the map of the endpoints and their validity, updated in place
*/
func validateBlockData(validities map[string]RpcValidity) {
	tracker := make(map[uint64]blockDataTracker)
	for _, endpoint := range validities {
		if !endpoint.IsValid() {
			continue
		}
		for height, blockData := range endpoint.GetBlockData() {
			if blockData == nil {
				continue
			}
			t, exists := tracker[height]
			if !exists {
				t = newTracker()
				tracker[height] = t
			}
			t.hash[blockData.Hash]++
			t.parentHash[blockData.ParentHash]++
			t.stateRoot[blockData.StateRoot]++
			t.txHash[blockData.TxHash]++
			t.receiptHash[blockData.ReceiptHash]++
			t.coinbase[blockData.Coinbase]++
			t.time[blockData.Time]++
		}
	}

	consensusMap := make(map[uint64]majorityConsensus, len(tracker))
	for height, t := range tracker {
		consensusMap[height] = majorityConsensus{
			hash:        getMostCommonValue(t.hash),
			parentHash:  getMostCommonValue(t.parentHash),
			stateRoot:   getMostCommonValue(t.stateRoot),
			txHash:      getMostCommonValue(t.txHash),
			receiptHash: getMostCommonValue(t.receiptHash),
			coinbase:    getMostCommonValue(t.coinbase),
			time:        getMostCommonValue(t.time),
		}
	}

	for url, endpoint := range validities {
		if !endpoint.IsValid() {
			continue
		}

		for height, blockData := range endpoint.GetBlockData() {
			if blockData == nil {
				endpoint.SetPoints(endpoint.GetPoints() - mismatchPenalty)
				log.Warn().
					Str("url", endpoint.GetURL()).
					Uint64("height", height).
					Int("penalty", mismatchPenalty).
					Msg("Missing block data")
				continue
			}

			consensus, exists := consensusMap[height]
			if !exists {
				continue
			}

			checks := []struct {
				name     string
				expected any
				actual   any
			}{
				{"hash", consensus.hash, blockData.Hash},
				{"parentHash", consensus.parentHash, blockData.ParentHash},
				{"stateRoot", consensus.stateRoot, blockData.StateRoot},
				{"txHash", consensus.txHash, blockData.TxHash},
				{"receiptHash", consensus.receiptHash, blockData.ReceiptHash},
				{"coinbase", consensus.coinbase, blockData.Coinbase},
				{"time", consensus.time, blockData.Time},
			}

			for _, check := range checks {
				if check.expected != check.actual {
					endpoint.SetPoints(endpoint.GetPoints() - mismatchPenalty)
					log.Warn().
						Str("url", endpoint.GetURL()).
						Uint64("height", height).
						Str("field", check.name).
						Interface("expected", check.expected).
						Interface("actual", check.actual).
						Msg("Block header mismatch")
				}
			}
		}

		if endpoint.GetPoints() < minPoints {
			endpoint.SetValid(false)
			log.Warn().Str("url", endpoint.GetURL()).Int("points", endpoint.GetPoints()).Msg("Endpoint marked invalid due to low points")
		}

		validities[url] = endpoint
	}
}
