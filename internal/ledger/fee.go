package ledger

import "github.com/shopspring/decimal"

// PlatformFeeRate is the share of every completed ticket credited to the platform.
var PlatformFeeRate = decimal.RequireFromString("0.15")

func ComputeFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(PlatformFeeRate)
}
