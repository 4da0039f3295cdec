package commission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "la bonne pate", NormalizeName("  La Bonne Pâte "))
	assert.Equal(t, "all'ovale pizza", NormalizeName("All’Ovale Pizza"))
	assert.Equal(t, "creperie eloise", NormalizeName("Crêperie Éloïse"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestFixedRateFromName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		rate    string
		matched bool
	}{
		{"Accented", "La Bonne Pâte", "0", true},
		{"Upper", "LA BONNE PATE", "0", true},
		{"Lower", "la bonne pate", "0", true},
		{"Ovale apostrophe", "All'Ovale Pizza", "15", true},
		{"Ovale joined", "Allovale", "15", true},
		{"Ovale spaced", "Chez All Ovale", "15", true},
		{"Other restaurant", "Sushi Bar", "", false},
		{"Empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, ok := FixedRateFromName(tt.input)
			assert.Equal(t, tt.matched, ok)
			if tt.matched {
				assert.True(t, d(tt.rate).Equal(rate), "got %s", rate)
			}
		})
	}
}

func TestResolve_Priority(t *testing.T) {
	t.Run("Override beats everything", func(t *testing.T) {
		r := Resolve(RateInputs{
			RestaurantName: "La Bonne Pâte",
			Override:       nd("12.5"),
			OrderRate:      nd("20"),
			RestaurantRate: nd("18"),
		})
		assert.True(t, d("12.5").Equal(r.Percent))
		assert.Equal(t, SourceOverride, r.Source)
		assert.True(t, r.Fixed())
	})

	t.Run("Legacy name beats order rate", func(t *testing.T) {
		r := Resolve(RateInputs{RestaurantName: "La Bonne Pâte", OrderRate: nd("20")})
		assert.True(t, decimal.Zero.Equal(r.Percent))
		assert.Equal(t, SourceLegacyName, r.Source)
		assert.True(t, r.Fixed())
	})

	t.Run("Order rate beats restaurant rate", func(t *testing.T) {
		r := Resolve(RateInputs{RestaurantName: "Sushi Bar", OrderRate: nd("17"), RestaurantRate: nd("25")})
		assert.True(t, d("17").Equal(r.Percent))
		assert.Equal(t, SourceOrder, r.Source)
		assert.False(t, r.Fixed())
	})

	t.Run("Restaurant rate", func(t *testing.T) {
		r := Resolve(RateInputs{RestaurantName: "Sushi Bar", RestaurantRate: nd("25")})
		assert.True(t, d("25").Equal(r.Percent))
		assert.Equal(t, SourceRestaurant, r.Source)
	})

	t.Run("Default when all absent", func(t *testing.T) {
		r := Resolve(RateInputs{})
		assert.True(t, DefaultRatePercent.Equal(r.Percent))
		assert.Equal(t, SourceDefault, r.Source)
	})
}

func TestEffectiveRatePercent_Total(t *testing.T) {
	// every combination of absent, malformed and valid inputs yields a number
	names := []string{"", "Sushi Bar", "La Bonne Pâte", "Allovale"}
	rates := []string{"", "abc", "NaN", "Infinity", "12", "7,5"}

	for _, name := range names {
		for _, orderRate := range rates {
			for _, restoRate := range rates {
				got := EffectiveRatePercent(name, orderRate, restoRate)
				again := EffectiveRatePercent(name, orderRate, restoRate)
				assert.True(t, got.Equal(again))
				assert.False(t, got.IsNegative())
			}
		}
	}

	assert.True(t, d("20").Equal(EffectiveRatePercent("Sushi Bar", "NaN", "abc")))
	assert.True(t, d("7.5").Equal(EffectiveRatePercent("Sushi Bar", "", "7,5")))
	assert.True(t, d("15").Equal(EffectiveRatePercent("All'Ovale Pizza", "20", "")))
}

func TestParse(t *testing.T) {
	assert.False(t, ParseRate("").Valid)
	assert.False(t, ParseRate("twenty").Valid)
	assert.True(t, d("20").Equal(ParseRate(" 20 ").Decimal))

	assert.True(t, decimal.Zero.Equal(ParseAmount("garbage")))
	assert.True(t, d("32.40").Equal(ParseAmount("32.40")))

	assert.True(t, ValidRatePercent(d("0")))
	assert.True(t, ValidRatePercent(d("100")))
	assert.False(t, ValidRatePercent(d("-1")))
	assert.False(t, ValidRatePercent(d("100.01")))
}

func TestCompute_Examples(t *testing.T) {
	t.Run("Default rate on 32.40", func(t *testing.T) {
		rate := EffectiveRatePercent("Sushi Bar", "", "")
		c, p := Compute(d("32.40"), rate)
		assert.Equal(t, "6.48", c.StringFixed(2))
		assert.Equal(t, "25.92", p.StringFixed(2))
	})

	t.Run("Bonne Pate forced to zero", func(t *testing.T) {
		rate := EffectiveRatePercent("La Bonne Pâte", "20", "")
		c, p := Compute(d("18.00"), rate)
		assert.Equal(t, "0.00", c.StringFixed(2))
		assert.Equal(t, "18.00", p.StringFixed(2))
	})

	t.Run("Half cent rounds up", func(t *testing.T) {
		// 10.05 * 15% = 1.5075 -> 1.51
		c, p := Compute(d("10.05"), d("15"))
		assert.Equal(t, "1.51", c.StringFixed(2))
		assert.Equal(t, "8.54", p.StringFixed(2))
	})
}

func TestCompute_SumsToRoundedTotal(t *testing.T) {
	cent := d("0.01")
	for total := int64(0); total <= 5000; total += 37 {
		for rate := int64(0); rate <= 100; rate += 3 {
			tot := decimal.New(total, -2).Add(d("0.003"))
			c, p := Compute(tot, decimal.NewFromInt(rate))
			diff := c.Add(p).Sub(Round2(tot)).Abs()
			assert.True(t, diff.LessThanOrEqual(cent), "total=%s rate=%d", tot, rate)
		}
	}
}

func TestResolvePayout(t *testing.T) {
	stored := Snapshot{Commission: nd("5.00"), Payout: nd("27.40")}

	t.Run("Settled order keeps stored amounts", func(t *testing.T) {
		b := ResolvePayout(d("32.40"), Rate{Percent: d("20"), Source: SourceOrder}, stored)
		assert.Equal(t, "5.00", b.Commission.StringFixed(2))
		assert.Equal(t, "27.40", b.Payout.StringFixed(2))
	})

	t.Run("Fixed rate always recomputes", func(t *testing.T) {
		b := ResolvePayout(d("32.40"), Rate{Percent: d("15"), Source: SourceLegacyName}, stored)
		assert.Equal(t, "4.86", b.Commission.StringFixed(2))
		assert.Equal(t, "27.54", b.Payout.StringFixed(2))
	})

	t.Run("Unsettled order computes", func(t *testing.T) {
		b := ResolvePayout(d("32.40"), Rate{Percent: d("20"), Source: SourceDefault}, Snapshot{Commission: nd("1")})
		assert.Equal(t, "6.48", b.Commission.StringFixed(2))
	})
}
