package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// StoragePlaces bounds quantity, unit price and VAT rate to the decimal(18,4)
// storage scale.
const StoragePlaces int32 = 4

var (
	hundred    = decimal.NewFromInt(100)
	minorUnits = map[string]int32{
		"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
		"CLP": 0, "ISK": 0, "JPY": 0, "KRW": 0, "PYG": 0, "UGX": 0, "VND": 0, "XAF": 0, "XOF": 0,
	}
)

// MinorUnits returns the number of decimal places of the currency's minor
// unit. Unknown currencies use two.
func MinorUnits(currency string) int32 {
	if places, ok := minorUnits[strings.ToUpper(currency)]; ok {
		return places
	}
	return 2
}

// RoundMinor rounds half away from zero to the given number of places.
// Invoice amounts are never negative, so this is round-half-up.
func RoundMinor(amount decimal.Decimal, places int32) decimal.Decimal {
	return amount.Round(places)
}

// LineTotals is the rounded breakdown of a single line.
type LineTotals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Totals aggregates rounded line amounts. GrandTotal equals Subtotal plus TaxTotal exactly.
type Totals struct {
	Subtotal   decimal.Decimal
	TaxTotal   decimal.Decimal
	GrandTotal decimal.Decimal
}

// Calculate rounds the line subtotal first and derives tax from the rounded value.
func (li LineItem) Calculate(places int32) LineTotals {
	subtotal := RoundMinor(li.Quantity.Mul(li.UnitPrice), places)
	tax := RoundMinor(subtotal.Mul(li.VATRate).Div(hundred), places)
	return LineTotals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
}

// CalculateTotals sums per-line rounded amounts. Rounding never happens on the aggregate.
func CalculateTotals(items []LineItem, places int32) Totals {
	totals := Totals{Subtotal: decimal.Zero, TaxTotal: decimal.Zero}
	for _, item := range items {
		line := item.Calculate(places)
		totals.Subtotal = totals.Subtotal.Add(line.Subtotal)
		totals.TaxTotal = totals.TaxTotal.Add(line.Tax)
	}
	totals.GrandTotal = totals.Subtotal.Add(totals.TaxTotal)
	return totals
}

// Validate checks a line item against an invoice whose currency has the
// given number of minor-unit places.
func (li LineItem) Validate(places int32) error {
	if strings.TrimSpace(li.Description) == "" {
		return ErrInvalidDescription
	}
	if !li.Quantity.IsPositive() || exceedsPlaces(li.Quantity, StoragePlaces) {
		return ErrInvalidQuantity
	}
	if strings.TrimSpace(li.Unit) == "" {
		return ErrInvalidUnit
	}
	if li.UnitPrice.IsNegative() {
		return ErrInvalidUnitPrice
	}
	if exceedsPlaces(li.UnitPrice, min(places, StoragePlaces)) {
		return ErrInvalidUnitPricePrecision
	}
	if li.VATRate.IsNegative() || li.VATRate.GreaterThan(hundred) || exceedsPlaces(li.VATRate, StoragePlaces) {
		return ErrInvalidVATRate
	}
	return nil
}

func exceedsPlaces(d decimal.Decimal, places int32) bool {
	return !d.Equal(d.Truncate(places))
}
