package services

import "github.com/shopspring/decimal"

// RoundMoney rounds a monetary value half-up at 2 decimal places. Every
// monetary field passes through this before any derived computation runs on
// it; deriving from unrounded inputs gives different cent-level results.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// RoundRate rounds a VAT percentage half-up at 1 decimal place.
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(1)
}
