// Package commission resolves the platform commission rate for an order and
// splits an items subtotal into platform commission and restaurant payout.
package commission

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultRatePercent applies when neither the order nor the restaurant carries a rate.
var DefaultRatePercent = decimal.NewFromInt(20)

type nameOverride struct {
	needles []string
	rate    decimal.Decimal
}

// Partners whose contract rate predates the commission_override column.
// Matched on the normalized restaurant name.
var legacyOverrides = []nameOverride{
	{needles: []string{"bonne pate"}, rate: decimal.Zero},
	{needles: []string{"all'ovale", "allovale", "all ovale"}, rate: decimal.NewFromInt(15)},
}

// Source tells where an effective rate came from.
type Source string

const (
	SourceOverride   Source = "override"
	SourceLegacyName Source = "legacy_name"
	SourceOrder      Source = "order"
	SourceRestaurant Source = "restaurant"
	SourceDefault    Source = "default"
)

// Rate is an effective commission rate in percent.
type Rate struct {
	Percent decimal.Decimal
	Source  Source
}

// Fixed reports whether the rate is a contract override. Fixed rates are
// always recomputed, never read back from a stored snapshot.
func (r Rate) Fixed() bool {
	return r.Source == SourceOverride || r.Source == SourceLegacyName
}

// RateInputs gathers everything that can influence the rate of one order.
type RateInputs struct {
	RestaurantName string
	Override       decimal.NullDecimal
	OrderRate      decimal.NullDecimal
	RestaurantRate decimal.NullDecimal
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// NormalizeName trims, lowercases and strips diacritics: "La Bonne Pâte" -> "la bonne pate".
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, stripMarks, norm.NFC)
	out, _, err := transform.String(t, name)
	if err != nil {
		out = name
	}
	out = strings.ReplaceAll(out, "’", "'")
	return strings.ToLower(strings.TrimSpace(out))
}

// FixedRateFromName returns the legacy contract rate matched by restaurant name.
func FixedRateFromName(name string) (decimal.Decimal, bool) {
	normalized := NormalizeName(name)
	if normalized == "" {
		return decimal.Decimal{}, false
	}
	for _, o := range legacyOverrides {
		for _, needle := range o.needles {
			if strings.Contains(normalized, needle) {
				return o.rate, true
			}
		}
	}
	return decimal.Decimal{}, false
}

// Resolve picks the effective rate: explicit override, legacy name match,
// order snapshot, restaurant default, then DefaultRatePercent. It never fails.
func Resolve(in RateInputs) Rate {
	if in.Override.Valid {
		return Rate{Percent: in.Override.Decimal, Source: SourceOverride}
	}
	if r, ok := FixedRateFromName(in.RestaurantName); ok {
		return Rate{Percent: r, Source: SourceLegacyName}
	}
	if in.OrderRate.Valid {
		return Rate{Percent: in.OrderRate.Decimal, Source: SourceOrder}
	}
	if in.RestaurantRate.Valid {
		return Rate{Percent: in.RestaurantRate.Decimal, Source: SourceRestaurant}
	}
	return Rate{Percent: DefaultRatePercent, Source: SourceDefault}
}

// EffectiveRatePercent resolves a rate from raw stored values. Malformed
// rates count as absent.
func EffectiveRatePercent(restaurantName, orderRate, restaurantRate string) decimal.Decimal {
	return Resolve(RateInputs{
		RestaurantName: restaurantName,
		OrderRate:      ParseRate(orderRate),
		RestaurantRate: ParseRate(restaurantRate),
	}).Percent
}
