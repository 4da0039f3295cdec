package restaurant

import (
	"context"

	"livraison-be/internal/commission"
	"livraison-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service interface {
	GetRestaurant(ctx context.Context, id string) (*Restaurant, error)
	SetCommissionOverride(ctx context.Context, id string, override decimal.NullDecimal) error
	Quote(ctx context.Context, id string, total decimal.Decimal) (*commission.Breakdown, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetRestaurant(ctx context.Context, id string) (*Restaurant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) SetCommissionOverride(ctx context.Context, id string, override decimal.NullDecimal) error {
	if override.Valid && !commission.ValidRatePercent(override.Decimal) {
		return ErrInvalidRate
	}

	if err := s.repo.UpdateCommissionOverride(ctx, id, override); err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("commission override updated",
		zap.String("restaurant_id", id),
		zap.Bool("cleared", !override.Valid),
		zap.String("override", override.Decimal.String()),
	)
	return nil
}

// Quote previews the split of a new order's subtotal at the restaurant's current rate.
func (s *service) Quote(ctx context.Context, id string, total decimal.Decimal) (*commission.Breakdown, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	b := commission.Split(total, commission.Resolve(res.RateInputs()))
	return &b, nil
}
