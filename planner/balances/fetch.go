package balances

import (
	"context"
	"sync"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/shopspring/decimal"
)

// FetchAll queries every chain concurrently and returns the balances in chain order.
// A chain whose reader panics contributes zero.
func FetchAll(ctx context.Context, reader Reader, chains []models.Chain, owner string) []models.ChainBalance {
	results := make([]models.ChainBalance, len(chains))

	var wg sync.WaitGroup
	for i, chain := range chains {
		results[i] = models.ChainBalance{Chain: chain.Key, Balance: decimal.Zero}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("chain", chain.Key).Interface("panic", r).Msg("Balance query panicked")
				}
			}()
			results[i].Balance = reader.Balance(ctx, chain, owner)
		}()
	}
	wg.Wait()

	return results
}
