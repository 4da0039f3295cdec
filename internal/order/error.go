package order

import "errors"

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrUnauthorized  = errors.New("authentication required")
	ErrForbidden     = errors.New("not allowed to act on this order")
	ErrUnknownStatus = errors.New("unknown order status")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrStatusConflict means the order changed between read and write.
	ErrStatusConflict = errors.New("order status changed concurrently, reload and retry")

	ErrDriverRequired        = errors.New("a driver must accept the order before it goes out for delivery")
	ErrDriverAlreadyAssigned = errors.New("order already has a driver")
	ErrNotAssignable         = errors.New("order can no longer be accepted by a driver")

	ErrNotDelivered      = errors.New("order is not delivered yet")
	ErrRestaurantPaidOut = errors.New("restaurant payout already recorded")

	// refund guards
	ErrAlreadyDelivered  = errors.New("order already delivered, refund must go through support")
	ErrAlreadyDispatched = errors.New("order already out for delivery")
	ErrAlreadyCancelled  = errors.New("order already cancelled")
	ErrDriverAssigned    = errors.New("a driver has already accepted this order")
	ErrNotPaid           = errors.New("order has no captured payment to refund")
	ErrAlreadyRefunded   = errors.New("order already refunded")

	// ErrUseRefund is returned when a paid order is cancelled through a plain status change.
	ErrUseRefund = errors.New("paid orders are cancelled through the refund endpoint")

	// ErrPaymentStatusStale is returned when a payment event would overwrite a
	// refunded or captured payment with an older outcome.
	ErrPaymentStatusStale = errors.New("payment status update is older than the stored one")

	ErrRefundProvider     = errors.New("payment provider refused the refund")
	ErrRefundNotPersisted = errors.New("refund issued but order update failed, flagged for reconciliation")
)

// IsRefundGuard reports whether err is a refund eligibility failure.
func IsRefundGuard(err error) bool {
	for _, g := range []error{ErrAlreadyDelivered, ErrAlreadyDispatched, ErrAlreadyCancelled, ErrDriverAssigned, ErrNotPaid, ErrAlreadyRefunded} {
		if errors.Is(err, g) {
			return true
		}
	}
	return false
}
