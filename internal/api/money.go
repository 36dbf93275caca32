package api

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places every amount carries on the wire.
const MoneyPlaces = 2

// Money renders an amount the way NUMERIC(12,2) stores it, e.g. "300.00".
func Money(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}
