package utils

import "github.com/shopspring/decimal"

// FormatEUR renders an amount the way statements and notifications show it: "12.50 €".
func FormatEUR(amount decimal.Decimal) string {
	return amount.StringFixed(2) + " €"
}
