package contract

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// The contract accounts in the asset's smallest unit with 18 decimals, the
// ERC-20 convention both platform default assets follow.
const assetDecimals = 18

// Interest rates travel as integer basis points: 5.00% becomes 500.
// Months are flattened to seconds on a 365-day year: 31,536,000 / 12.
const secondsPerMonth = 2_628_000

// ToSmallestUnit converts a fixed-point amount into the contract's integer
// accounting unit.
func ToSmallestUnit(amount decimal.Decimal) *big.Int {
	return amount.Shift(assetDecimals).BigInt()
}

// CollateralFor computes the collateral requirement as a multiple of
// principal. The platform default ratio is 1.5.
func CollateralFor(principal, ratio decimal.Decimal) decimal.Decimal {
	return principal.Mul(ratio)
}

// RateBasisPoints scales an annual percentage rate into the contract's
// basis-point convention.
func RateBasisPoints(rate decimal.Decimal) *big.Int {
	return rate.Mul(decimal.NewFromInt(100)).Round(0).BigInt()
}

// DurationSeconds converts a loan term in months into the contract's
// duration-in-seconds parameter.
func DurationSeconds(months uint32) *big.Int {
	return new(big.Int).Mul(big.NewInt(secondsPerMonth), big.NewInt(int64(months)))
}
