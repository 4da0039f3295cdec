package restaurant

import (
	"livraison-be/internal/commission"

	"github.com/shopspring/decimal"
)

type Restaurant struct {
	ID                 string              `json:"id"`
	Name               string              `json:"nom"`
	CommissionRate     decimal.NullDecimal `json:"commission_rate"`
	CommissionOverride decimal.NullDecimal `json:"commission_override"`
}

// RateInputs returns the restaurant side of commission resolution.
func (r *Restaurant) RateInputs() commission.RateInputs {
	return commission.RateInputs{
		RestaurantName: r.Name,
		Override:       r.CommissionOverride,
		RestaurantRate: r.CommissionRate,
	}
}
