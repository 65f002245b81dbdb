package domain

import "github.com/shopspring/decimal"

// Totals are computed once at engagement creation and never recalculated.
// Sub-cent results round half-up to two decimal places.

// OrderTotal derives the charge for a product purchase.
func OrderTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// BookingTotal derives the charge for a time-bound service reservation:
// unit price is per hour, billed pro rata by duration.
func BookingTotal(unitPrice decimal.Decimal, durationMinutes int) decimal.Decimal {
	hours := decimal.NewFromInt(int64(durationMinutes)).Div(decimal.NewFromInt(60))
	return unitPrice.Mul(hours).Round(2)
}
