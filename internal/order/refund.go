package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"livraison-be/internal/commission"
	"livraison-be/internal/logger"
	"livraison-be/internal/metrics"
	"livraison-be/internal/notify"
	"livraison-be/internal/payment"
	"livraison-be/internal/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultRefundReason = "Annulée par l'administration"

// CheckRefundable returns the first guard o fails, in the order an admin
// should see them.
func CheckRefundable(o *Order) error {
	switch {
	case o.Status == StatusDelivered:
		return ErrAlreadyDelivered
	case o.Status == StatusInDelivery:
		return ErrAlreadyDispatched
	case o.Status == StatusCancelled:
		return ErrAlreadyCancelled
	case o.HasDriver():
		return ErrDriverAssigned
	case o.PaymentStatus == payment.StatusRefunded:
		return ErrAlreadyRefunded
	case !payment.IsCaptured(o.PaymentStatus):
		return ErrNotPaid
	}
	return nil
}

// RefundAmount is the larger of the line item sum and the stored total,
// delivery fee included, rounded to the cent.
func RefundAmount(o *Order, items []LineItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	fromItems := subtotal.Add(o.DeliveryFee)
	fromTotal := o.Total.Add(o.DeliveryFee)
	return commission.Round2(decimal.Max(fromItems, fromTotal))
}

func refundIdempotencyKey(orderID string) string {
	return "refund-" + orderID
}

func (s *service) Refund(ctx context.Context, actor Actor, orderID, reason string) (*RefundResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Refund"),
		zap.String("order_id", orderID),
		zap.String("actor_id", actor.UserID),
	)

	// 1. Admin only
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	if actor.Role != utils.RoleAdmin {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("%w: orderId is required", ErrInvalidInput)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultRefundReason
	}

	// 2. Guards on the current row
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := CheckRefundable(o); err != nil {
		metrics.Refunds.WithLabelValues("blocked").Inc()
		log.Info("refund blocked", zap.String("status", string(o.Status)), zap.Error(err))
		return nil, err
	}
	if o.PaymentIntentID == "" {
		metrics.Refunds.WithLabelValues("blocked").Inc()
		return nil, ErrNotPaid
	}

	// 3. Amount
	items, err := s.repo.GetLineItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	amount := RefundAmount(o, items)

	// 4. Provider first; nothing is written if it refuses
	refund, err := s.paymentGate.CreateRefund(ctx, payment.RefundRequest{
		OrderID:         o.ID,
		PaymentIntentID: o.PaymentIntentID,
		Amount:          amount,
		Reason:          reason,
		IdempotencyKey:  refundIdempotencyKey(o.ID),
	})
	if err != nil {
		metrics.Refunds.WithLabelValues("provider_error").Inc()
		log.Error("provider refund failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRefundProvider, err)
	}

	// 5. Conditional update
	upd := RefundUpdate{
		Amount:     amount,
		RefundID:   refund.ID,
		RefundedAt: s.now(),
		Reason:     reason,
	}
	previous, err := s.repo.MarkRefunded(ctx, o.ID, upd, actor.UserID)
	if err != nil {
		return nil, s.handleUnpersistedRefund(ctx, log, o, upd, err)
	}

	final := StatusCancelled
	if previous == StatusRejected {
		final = StatusRejected
	}

	metrics.Refunds.WithLabelValues("ok").Inc()
	metrics.RefundedAmount.Add(amount.InexactFloat64())
	log.Info("order refunded",
		zap.String("refund_id", refund.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("previous_status", string(previous)),
	)

	// 6. Best effort
	s.notify(ctx, notify.Event{
		Type:         notify.TypeRefunded,
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		Status:       string(final),
		Amount:       &amount,
		Reason:       reason,
	})

	return &RefundResult{
		RefundID: refund.ID,
		Amount:   amount,
		Reason:   reason,
		Status:   final,
	}, nil
}

// handleUnpersistedRefund runs when the provider refunded but the order row
// was not updated. A concurrent call carrying the same provider refund is
// reported as already cancelled; anything else is recorded for reconciliation.
func (s *service) handleUnpersistedRefund(ctx context.Context, log *zap.Logger, o *Order, upd RefundUpdate, cause error) error {
	guardErr := error(nil)
	if errors.Is(cause, ErrStatusConflict) {
		if cur, err := s.repo.GetByID(ctx, o.ID); err == nil {
			if cur.StripeRefundID != nil && *cur.StripeRefundID == upd.RefundID {
				metrics.Refunds.WithLabelValues("duplicate").Inc()
				return ErrAlreadyCancelled
			}
			guardErr = CheckRefundable(cur)
		}
	}

	metrics.Refunds.WithLabelValues("unpersisted").Inc()
	log.Error("refund issued but order not updated",
		zap.String("refund_id", upd.RefundID),
		zap.String("amount", upd.Amount.StringFixed(2)),
		zap.Error(cause),
	)

	rec := payment.Reconciliation{
		OrderID:    o.ID,
		RefundID:   upd.RefundID,
		Amount:     upd.Amount,
		Reason:     upd.Reason,
		Error:      cause.Error(),
		DetectedAt: s.now(),
	}
	if err := s.paymentRepo.SaveReconciliation(ctx, rec); err != nil {
		log.Error("failed to record refund reconciliation", zap.Error(err))
	}

	amount := upd.Amount
	s.notify(ctx, notify.Event{
		Type:         notify.TypeRefundUnsettled,
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		Amount:       &amount,
		Reason:       cause.Error(),
	})

	if guardErr != nil {
		return fmt.Errorf("%w: %w", ErrRefundNotPersisted, guardErr)
	}
	return ErrRefundNotPersisted
}
