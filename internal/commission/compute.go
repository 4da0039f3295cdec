package commission

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Breakdown is the split of an items subtotal between platform and restaurant.
type Breakdown struct {
	Rate       Rate
	Commission decimal.Decimal
	Payout     decimal.Decimal
}

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Compute splits total at ratePercent: commission = round2(total*rate/100),
// payout = round2(total-commission).
func Compute(total, ratePercent decimal.Decimal) (commission, payout decimal.Decimal) {
	commission = Round2(total.Mul(ratePercent).Div(hundred))
	payout = Round2(total.Sub(commission))
	return commission, payout
}

// Split is Compute carrying the rate provenance along.
func Split(total decimal.Decimal, rate Rate) Breakdown {
	c, p := Compute(total, rate.Percent)
	return Breakdown{Rate: rate, Commission: c, Payout: p}
}

// Snapshot is what a settled order already stores.
type Snapshot struct {
	Commission decimal.NullDecimal
	Payout     decimal.NullDecimal
}

// Settled reports whether both amounts have been persisted.
func (s Snapshot) Settled() bool {
	return s.Commission.Valid && s.Payout.Valid
}

// ResolvePayout returns the amounts to report for an order. A settled order
// keeps its stored amounts unless its rate is a fixed override, which always
// recomputes.
func ResolvePayout(total decimal.Decimal, rate Rate, stored Snapshot) Breakdown {
	if stored.Settled() && !rate.Fixed() {
		return Breakdown{Rate: rate, Commission: stored.Commission.Decimal, Payout: stored.Payout.Decimal}
	}
	return Split(total, rate)
}
