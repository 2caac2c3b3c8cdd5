package model

import "github.com/shopspring/decimal"

// UzigExponent is the decimal scale of the native quote denomination.
const UzigExponent = 6

const NativeDenom = "uzig"

// ToDisplay converts a base-unit integer amount to display units given a
// token's exponent: display = base / 10^exponent.
func ToDisplay(base decimal.Decimal, exponent int) decimal.Decimal {
	return base.Shift(int32(-exponent))
}

// ClassifySize applies the native-quote notional thresholds from the trade
// sink: z < 1000 -> shrimp, z < 10000 -> shark, z >= 10000 -> whale. The
// caller passes the native-leg amount already converted to uzig display
// units (z = nativeLegAmountBase / 10^6).
func ClassifySize(z decimal.Decimal) SizeClass {
	switch {
	case z.LessThan(decimal.NewFromInt(1000)):
		return SizeShrimp
	case z.LessThan(decimal.NewFromInt(10000)):
		return SizeShark
	default:
		return SizeWhale
	}
}
