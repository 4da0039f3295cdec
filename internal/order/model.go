package order

import (
	"time"

	"livraison-be/internal/commission"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID           string
	RestaurantID string

	// Total is the items subtotal; it never includes DeliveryFee.
	Total       decimal.Decimal
	DeliveryFee decimal.Decimal

	Status          Status
	PaymentStatus   string
	PaymentIntentID string

	CommissionRate   decimal.NullDecimal
	CommissionAmount decimal.NullDecimal
	RestaurantPayout decimal.NullDecimal

	DriverID         *string
	RestaurantPaidAt *time.Time

	RefundAmount       decimal.NullDecimal
	StripeRefundID     *string
	RefundedAt         *time.Time
	CancellationReason *string

	CreatedAt time.Time
	UpdatedAt time.Time

	// joined from restaurants
	RestaurantName     string
	RestaurantRate     decimal.NullDecimal
	RestaurantOverride decimal.NullDecimal
}

func (o *Order) HasDriver() bool {
	return o.DriverID != nil && *o.DriverID != ""
}

func (o *Order) RateInputs() commission.RateInputs {
	return commission.RateInputs{
		RestaurantName: o.RestaurantName,
		Override:       o.RestaurantOverride,
		OrderRate:      o.CommissionRate,
		RestaurantRate: o.RestaurantRate,
	}
}

func (o *Order) Snapshot() commission.Snapshot {
	return commission.Snapshot{Commission: o.CommissionAmount, Payout: o.RestaurantPayout}
}

// Payout resolves the commission split to report for this order.
func (o *Order) Payout() commission.Breakdown {
	return commission.ResolvePayout(o.Total, commission.Resolve(o.RateInputs()), o.Snapshot())
}

type LineItem struct {
	// UnitPrice already includes supplements.
	UnitPrice decimal.Decimal
	Quantity  int
}

// Actor is the authenticated caller of an order operation.
type Actor struct {
	UserID       string
	Role         string
	RestaurantID string
}

type RefundResult struct {
	RefundID string
	Amount   decimal.Decimal
	Reason   string
	Status   Status
}

// RefundUpdate is what a successful refund writes onto the order.
type RefundUpdate struct {
	Amount     decimal.Decimal
	RefundID   string
	RefundedAt time.Time
	Reason     string
}

type SettlementFilter struct {
	RestaurantID string
	From         time.Time
	To           time.Time
	// UnpaidOnly keeps orders without restaurant_paid_at.
	UnpaidOnly bool
}
