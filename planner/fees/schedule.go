package fees

import (
	"math/big"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/shopspring/decimal"
)

var (
	hundred        = decimal.NewFromInt(100)
	weiPerEther    = decimal.New(1, 18)
	minGasFeeShare = decimal.RequireFromString("0.001")

	volumeTierHigh     = decimal.NewFromInt(1000)
	volumeTierMid      = decimal.NewFromInt(500)
	volumeDiscountHigh = decimal.RequireFromString("0.8")
	volumeDiscountMid  = decimal.RequireFromString("0.9")
)

// Schedule holds the static fee configuration used by the fallback formula
type Schedule struct {
	// BaseGasFee is the gas fee per unit of amount before the chain multiplier
	BaseGasFee decimal.Decimal
	// DefaultFeePercentage applies to lanes missing from Percentages
	DefaultFeePercentage decimal.Decimal
	// MinFee floors both fee components
	MinFee decimal.Decimal
	// AvgGasUnits of a bridge transaction, used with a live gas price
	AvgGasUnits uint64
	// Percentages is keyed [source][target] in percent
	Percentages map[string]map[string]decimal.Decimal
}

// DefaultSchedule returns the fee table shipped with the planner
func DefaultSchedule() Schedule {
	return Schedule{
		BaseGasFee:           decimal.RequireFromString("0.001"),
		DefaultFeePercentage: decimal.RequireFromString("1.5"),
		MinFee:               decimal.RequireFromString("0.5"),
		AvgGasUnits:          250_000,
		Percentages: map[string]map[string]decimal.Decimal{
			"arbitrum": {"polygon": decimal.NewFromInt(1)},
			"base":     {"polygon": decimal.RequireFromString("0.5")},
			"gnosis":   {"polygon": decimal.RequireFromString("0.1")},
			"blast":    {"polygon": decimal.RequireFromString("0.2")},
		},
	}
}

// FeePercentage returns the bridge fee percentage of the source -> target lane
func (s Schedule) FeePercentage(source, target string) decimal.Decimal {
	if lanes, ok := s.Percentages[source]; ok {
		if pct, ok := lanes[target]; ok {
			return pct
		}
	}
	return s.DefaultFeePercentage
}

func volumeDiscount(amount decimal.Decimal) decimal.Decimal {
	switch {
	case amount.GreaterThan(volumeTierHigh):
		return volumeDiscountHigh
	case amount.GreaterThan(volumeTierMid):
		return volumeDiscountMid
	default:
		return decimal.NewFromInt(1)
	}
}

// Fallback prices a transfer locally. gasPriceWei is optional, when set and the
// source chain has a native token price the gas fee follows the live gas price.
func (s Schedule) Fallback(source models.Chain, target string, amount decimal.Decimal, gasPriceWei *big.Int) (gasFee, bridgeFee decimal.Decimal) {
	bridgeFee = amount.
		Mul(s.FeePercentage(source.Key, target)).
		Div(hundred).
		Mul(volumeDiscount(amount))

	multiplier := source.GasMultiplier
	if multiplier.IsZero() {
		multiplier = decimal.NewFromInt(1)
	}
	gasFee = decimal.Max(
		amount.Mul(minGasFeeShare),
		s.BaseGasFee.Mul(multiplier).Mul(amount),
	)

	if gasPriceWei != nil && gasPriceWei.Sign() > 0 && s.AvgGasUnits > 0 && source.NativeTokenUSD.IsPositive() {
		gasFee = decimal.NewFromBigInt(gasPriceWei, 0).
			Mul(decimal.NewFromInt(int64(s.AvgGasUnits))).
			Div(weiPerEther).
			Mul(source.NativeTokenUSD)
	}

	return s.floor(gasFee), s.floor(bridgeFee)
}

// floor rounds to 6 decimals and applies the minimum fee
func (s Schedule) floor(fee decimal.Decimal) decimal.Decimal {
	return decimal.Max(fee.Round(6), s.MinFee)
}
