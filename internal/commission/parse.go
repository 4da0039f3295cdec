package commission

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseRate reads a stored percent. Empty or malformed input is absent.
func ParseRate(raw string) decimal.NullDecimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(strings.Replace(raw, ",", ".", 1))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ParseAmount reads a stored money value. Empty or malformed input is zero,
// so reporting over dirty historical rows keeps going.
func ParseAmount(raw string) decimal.Decimal {
	if v := ParseRate(raw); v.Valid {
		return v.Decimal
	}
	return decimal.Zero
}

// ValidRatePercent reports whether p is usable as a configured rate (0..100).
func ValidRatePercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(decimal.NewFromInt(100))
}
