package restaurant

import (
	"context"
	"database/sql"
	"errors"

	"livraison-be/internal/commission"
	"livraison-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Restaurant, error)
	UpdateCommissionOverride(ctx context.Context, id string, override decimal.NullDecimal) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id string) (*Restaurant, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetByID"),
		zap.String("restaurant_id", id),
	)

	var (
		res              Restaurant
		rate, overrideRt sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, nom, commission_rate, commission_override
		FROM restaurants
		WHERE id = $1
	`, id).Scan(&res.ID, &res.Name, &rate, &overrideRt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRestaurantNotFound
	}
	if err != nil {
		log.Error("failed to load restaurant", zap.Error(err))
		return nil, err
	}

	res.CommissionRate = parseStoredRate(log, "commission_rate", rate)
	res.CommissionOverride = parseStoredRate(log, "commission_override", overrideRt)

	return &res, nil
}

func (r *repository) UpdateCommissionOverride(ctx context.Context, id string, override decimal.NullDecimal) error {
	var arg interface{}
	if override.Valid {
		arg = override.Decimal.String()
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE restaurants
		SET commission_override = $1
		WHERE id = $2
	`, arg, id)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrRestaurantNotFound
	}
	return nil
}

func parseStoredRate(log *zap.Logger, column string, raw sql.NullString) decimal.NullDecimal {
	if !raw.Valid {
		return decimal.NullDecimal{}
	}
	v := commission.ParseRate(raw.String)
	if !v.Valid {
		log.Warn("ignoring malformed stored rate", zap.String("column", column), zap.String("value", raw.String))
	}
	return v
}
