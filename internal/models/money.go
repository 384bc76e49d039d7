package models

import "github.com/shopspring/decimal"

func init() {
	// Amounts are rendered as JSON numbers, matching the public API.
	decimal.MarshalJSONWithoutQuotes = true
}

// ToKobo converts a naira amount into the integer subunit the gateway expects.
func ToKobo(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromKobo converts a gateway subunit amount back to naira.
func FromKobo(kobo int64) decimal.Decimal {
	return decimal.New(kobo, -2)
}

// Commission returns the platform cut for an order total, rounded to kobo.
func Commission(total decimal.Decimal) decimal.Decimal {
	return total.Mul(CommissionRate).Round(2)
}
