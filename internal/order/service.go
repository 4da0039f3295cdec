package order

import (
	"context"
	"errors"
	"time"

	"livraison-be/internal/commission"
	"livraison-be/internal/logger"
	"livraison-be/internal/metrics"
	"livraison-be/internal/notify"
	"livraison-be/internal/payment"
	"livraison-be/internal/utils"

	"go.uber.org/zap"
)

type Service interface {
	GetOrder(ctx context.Context, actor Actor, id string) (*Order, error)
	ChangeStatus(ctx context.Context, actor Actor, id string, rawStatus string) (*Order, error)
	AcceptDelivery(ctx context.Context, actor Actor, id string) (*Order, error)

	GetPayout(ctx context.Context, actor Actor, id string) (*commission.Breakdown, error)
	Settle(ctx context.Context, actor Actor, id string) (*commission.Breakdown, error)
	MarkRestaurantPaid(ctx context.Context, actor Actor, id string) error

	Refund(ctx context.Context, actor Actor, orderID, reason string) (*RefundResult, error)

	// ApplyPaymentStatus records a provider-confirmed payment status.
	ApplyPaymentStatus(ctx context.Context, paymentIntentID, status string) (orderID string, err error)

	// Settlement batch operations for trusted operator tooling.
	ListDelivered(ctx context.Context, f SettlementFilter) ([]*Order, error)
	MarkRestaurantPaidBetween(ctx context.Context, f SettlementFilter) (int64, error)
}

type service struct {
	repo        Repository
	paymentRepo payment.Repository
	paymentGate payment.Gateway
	notifier    notify.Notifier
	now         func() time.Time
}

func NewService(repo Repository, payRepo payment.Repository, payGate payment.Gateway, notifier notify.Notifier) Service {
	if notifier == nil {
		notifier = notify.NewLogNotifier()
	}
	return &service{
		repo:        repo,
		paymentRepo: payRepo,
		paymentGate: payGate,
		notifier:    notifier,
		now:         time.Now,
	}
}

// targets each non-admin role may set
var roleTargets = map[string][]Status{
	utils.RoleRestaurant: {StatusAccepted, StatusPreparing, StatusReady, StatusRejected},
	utils.RoleDriver:     {StatusInDelivery, StatusDelivered},
}

func roleMaySet(role string, to Status) bool {
	if role == utils.RoleAdmin {
		return true
	}
	for _, st := range roleTargets[role] {
		if st == to {
			return true
		}
	}
	return false
}

// canAccess reports whether actor may see or act on o at all.
func canAccess(actor Actor, o *Order) bool {
	switch actor.Role {
	case utils.RoleAdmin:
		return true
	case utils.RoleRestaurant:
		return actor.RestaurantID != "" && actor.RestaurantID == o.RestaurantID
	case utils.RoleDriver:
		return o.HasDriver() && *o.DriverID == actor.UserID
	}
	return false
}

func (s *service) load(ctx context.Context, actor Actor, id string) (*Order, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	if id == "" {
		return nil, ErrInvalidInput
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(actor, o) {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *service) GetOrder(ctx context.Context, actor Actor, id string) (*Order, error) {
	return s.load(ctx, actor, id)
}

func (s *service) ChangeStatus(ctx context.Context, actor Actor, id string, rawStatus string) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ChangeStatus"),
		zap.String("order_id", id),
		zap.String("actor_id", actor.UserID),
	)

	to, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	o, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if !roleMaySet(actor.Role, to) {
		metrics.StatusTransitions.WithLabelValues(string(to), "forbidden").Inc()
		return nil, ErrForbidden
	}

	if err := Transition(o.Status, to); err != nil {
		metrics.StatusTransitions.WithLabelValues(string(to), "illegal").Inc()
		log.Info("illegal status transition rejected",
			zap.String("from", string(o.Status)),
			zap.String("to", string(to)),
		)
		return nil, err
	}

	if to == StatusInDelivery && !o.HasDriver() {
		metrics.StatusTransitions.WithLabelValues(string(to), "illegal").Inc()
		return nil, ErrDriverRequired
	}
	if to == StatusCancelled && payment.IsCaptured(o.PaymentStatus) {
		return nil, ErrUseRefund
	}

	if err := s.repo.UpdateStatus(ctx, o.ID, o.Status, to, actor.UserID); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			metrics.StatusTransitions.WithLabelValues(string(to), "conflict").Inc()
		}
		return nil, err
	}

	from := o.Status
	o.Status = to
	metrics.StatusTransitions.WithLabelValues(string(to), "ok").Inc()
	log.Info("order status changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	if to == StatusDelivered {
		if _, err := s.settle(ctx, o); err != nil {
			log.Warn("commission snapshot on delivery failed", zap.Error(err))
		}
	}

	s.notify(ctx, notify.Event{
		Type:         notify.TypeStatusChanged,
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		Status:       string(to),
	})

	return o, nil
}

func (s *service) AcceptDelivery(ctx context.Context, actor Actor, id string) (*Order, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	if actor.Role != utils.RoleDriver {
		return nil, ErrForbidden
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.HasDriver() {
		logger.FromCtx(ctx).Info("delivery already taken",
			zap.String("order_id", o.ID),
			zap.String("driver_id", utils.PtrString(o.DriverID)),
		)
		return nil, ErrDriverAlreadyAssigned
	}
	if o.Status.IsTerminal() || o.Status.Dispatched() {
		return nil, ErrNotAssignable
	}

	if err := s.repo.AssignDriver(ctx, o.ID, actor.UserID); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			// another driver won or the order moved on
			return nil, ErrDriverAlreadyAssigned
		}
		return nil, err
	}

	o.DriverID = &actor.UserID
	logger.FromCtx(ctx).Info("driver assigned",
		zap.String("order_id", o.ID),
		zap.String("driver_id", actor.UserID),
	)

	s.notify(ctx, notify.Event{
		Type:         notify.TypeDriverAssigned,
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		Status:       string(o.Status),
	})

	return o, nil
}

func (s *service) GetPayout(ctx context.Context, actor Actor, id string) (*commission.Breakdown, error) {
	o, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == utils.RoleDriver {
		return nil, ErrForbidden
	}

	b := o.Payout()
	return &b, nil
}

func (s *service) Settle(ctx context.Context, actor Actor, id string) (*commission.Breakdown, error) {
	o, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != utils.RoleAdmin {
		return nil, ErrForbidden
	}
	return s.settle(ctx, o)
}

// settle persists the commission snapshot of a delivered order.
func (s *service) settle(ctx context.Context, o *Order) (*commission.Breakdown, error) {
	if o.Status != StatusDelivered {
		return nil, ErrNotDelivered
	}
	if o.RestaurantPaidAt != nil {
		return nil, ErrRestaurantPaidOut
	}

	b := o.Payout()
	if err := s.repo.SaveCommission(ctx, o.ID, b); err != nil {
		return nil, err
	}

	o.CommissionRate.Decimal, o.CommissionRate.Valid = b.Rate.Percent, true
	o.CommissionAmount.Decimal, o.CommissionAmount.Valid = b.Commission, true
	o.RestaurantPayout.Decimal, o.RestaurantPayout.Valid = b.Payout, true

	metrics.CommissionSettled.Add(b.Commission.InexactFloat64())
	logger.FromCtx(ctx).Info("commission settled",
		zap.String("order_id", o.ID),
		zap.String("rate", b.Rate.Percent.String()),
		zap.String("rate_source", string(b.Rate.Source)),
		zap.String("commission", b.Commission.StringFixed(2)),
		zap.String("payout", b.Payout.StringFixed(2)),
	)
	return &b, nil
}

func (s *service) MarkRestaurantPaid(ctx context.Context, actor Actor, id string) error {
	o, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if actor.Role != utils.RoleAdmin {
		return ErrForbidden
	}
	if o.Status != StatusDelivered {
		return ErrNotDelivered
	}
	if o.RestaurantPaidAt != nil {
		return ErrRestaurantPaidOut
	}

	// snapshot first so the paid amount is frozen
	b, err := s.settle(ctx, o)
	if err != nil {
		return err
	}

	if err := s.repo.MarkRestaurantPaid(ctx, o.ID, s.now()); err != nil {
		return err
	}

	payout := b.Payout
	s.notify(ctx, notify.Event{
		Type:         notify.TypeRestaurantPaid,
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		Amount:       &payout,
	})
	return nil
}

func (s *service) ApplyPaymentStatus(ctx context.Context, paymentIntentID, status string) (string, error) {
	if paymentIntentID == "" || status == "" {
		return "", ErrInvalidInput
	}
	return s.repo.UpdatePaymentStatus(ctx, paymentIntentID, status)
}

func (s *service) ListDelivered(ctx context.Context, f SettlementFilter) ([]*Order, error) {
	if !f.From.Before(f.To) {
		return nil, ErrInvalidInput
	}
	return s.repo.ListForSettlement(ctx, f)
}

func (s *service) MarkRestaurantPaidBetween(ctx context.Context, f SettlementFilter) (int64, error) {
	if !f.From.Before(f.To) || f.RestaurantID == "" {
		return 0, ErrInvalidInput
	}

	// freeze amounts before flagging the batch as paid
	orders, err := s.repo.ListForSettlement(ctx, SettlementFilter{
		RestaurantID: f.RestaurantID,
		From:         f.From,
		To:           f.To,
		UnpaidOnly:   true,
	})
	if err != nil {
		return 0, err
	}
	for _, o := range orders {
		if _, err := s.settle(ctx, o); err != nil {
			return 0, err
		}
	}

	return s.repo.MarkRestaurantPaidBetween(ctx, f, s.now())
}

func (s *service) notify(ctx context.Context, e notify.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}
	if err := s.notifier.Notify(ctx, e); err != nil {
		logger.FromCtx(ctx).Warn("order notification failed",
			zap.String("event", string(e.Type)),
			zap.String("order_id", e.OrderID),
			zap.Error(err),
		)
	}
}
