package router

import (
	"cmp"
	"slices"
	"strings"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/shopspring/decimal"
)

// balanceOf returns the first balance listed for chain, zero when absent
func balanceOf(balances []models.ChainBalance, chain string) decimal.Decimal {
	for _, b := range balances {
		if b.Chain == chain {
			return b.Balance
		}
	}
	return decimal.Zero
}

func sumBalances(balances []models.ChainBalance) decimal.Decimal {
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Balance)
	}
	return total
}

// byBalanceDesc orders largest holdings first, chain name breaks ties
func byBalanceDesc(a, b models.ChainBalance) int {
	if c := b.Balance.Cmp(a.Balance); c != 0 {
		return c
	}
	return strings.Compare(a.Chain, b.Chain)
}

// sortedByBalance returns a copy of candidates ordered by byBalanceDesc
func sortedByBalance(candidates []models.ChainBalance) []models.ChainBalance {
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, byBalanceDesc)
	return sorted
}

// sortedByLaneFee orders the cheapest lanes to target first, then by balance
func sortedByLaneFee(candidates []models.ChainBalance, target string, lanes LaneFees) []models.ChainBalance {
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b models.ChainBalance) int {
		pa := lanes.FeePercentage(a.Chain, target)
		pb := lanes.FeePercentage(b.Chain, target)
		return cmp.Or(pa.Cmp(pb), byBalanceDesc(a, b))
	})
	return sorted
}

// proportionalShares splits needed across members by balance share. The last
// member takes the remainder so the shares add up to needed exactly, and no
// share exceeds its member's balance.
func proportionalShares(needed decimal.Decimal, members []models.ChainBalance) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(members))
	total := sumBalances(members)
	if !total.IsPositive() {
		return shares
	}

	// members cannot cover the need, drain them all
	if total.LessThanOrEqual(needed) {
		for i, m := range members {
			shares[i] = m.Balance
		}
		return shares
	}

	assigned := decimal.Zero
	for i, m := range members {
		if i == len(members)-1 {
			shares[i] = decimal.Min(needed.Sub(assigned), m.Balance)
			break
		}
		share := decimal.Min(needed.Mul(m.Balance).Div(total), m.Balance)
		shares[i] = share
		assigned = assigned.Add(share)
	}
	return shares
}
