// Package notify fans order events out to interested parties.
package notify

import (
	"context"
	"time"

	"livraison-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type EventType string

const (
	TypeStatusChanged   EventType = "order.status_changed"
	TypeDriverAssigned  EventType = "order.driver_assigned"
	TypeRefunded        EventType = "order.refunded"
	TypeRestaurantPaid  EventType = "order.restaurant_paid"
	TypeRefundUnsettled EventType = "order.refund_unsettled"
)

type Event struct {
	Type         EventType        `json:"type"`
	OrderID      string           `json:"order_id"`
	RestaurantID string           `json:"restaurant_id,omitempty"`
	Status       string           `json:"status,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// Notifier delivers events. Callers treat delivery as best effort.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

type logNotifier struct{}

// NewLogNotifier writes every event to the request logger.
func NewLogNotifier() Notifier {
	return logNotifier{}
}

func (logNotifier) Notify(ctx context.Context, e Event) error {
	fields := []zap.Field{
		zap.String("event", string(e.Type)),
		zap.String("order_id", e.OrderID),
	}
	if e.RestaurantID != "" {
		fields = append(fields, zap.String("restaurant_id", e.RestaurantID))
	}
	if e.Status != "" {
		fields = append(fields, zap.String("status", e.Status))
	}
	if e.Amount != nil {
		fields = append(fields, zap.String("amount", e.Amount.StringFixed(2)))
	}
	logger.FromCtx(ctx).Info("order event", fields...)
	return nil
}

type multi []Notifier

// Multi delivers to every notifier and returns the first error after trying all.
func Multi(notifiers ...Notifier) Notifier {
	var out multi
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multi) Notify(ctx context.Context, e Event) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			logger.FromCtx(ctx).Warn("notifier failed",
				zap.String("event", string(e.Type)),
				zap.String("order_id", e.OrderID),
				zap.Error(err),
			)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
