package restaurant

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "nom", "commission_rate", "commission_override"}).
			AddRow("r-1", "Sushi Bar", "18.5", nil)
		mock.ExpectQuery(`SELECT id, nom, commission_rate, commission_override FROM restaurants WHERE id = \$1`).
			WithArgs("r-1").
			WillReturnRows(rows)

		res, err := repo.GetByID(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, "Sushi Bar", res.Name)
		assert.True(t, res.CommissionRate.Valid)
		assert.True(t, decimal.RequireFromString("18.5").Equal(res.CommissionRate.Decimal))
		assert.False(t, res.CommissionOverride.Valid)
	})

	t.Run("Malformed rate is treated as absent", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "nom", "commission_rate", "commission_override"}).
			AddRow("r-2", "Broken", "n/a", "15")
		mock.ExpectQuery(`SELECT .* FROM restaurants`).WithArgs("r-2").WillReturnRows(rows)

		res, err := repo.GetByID(ctx, "r-2")
		require.NoError(t, err)
		assert.False(t, res.CommissionRate.Valid)
		assert.True(t, res.CommissionOverride.Valid)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM restaurants`).WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id", "nom", "commission_rate", "commission_override"}))

		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrRestaurantNotFound)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM restaurants`).WithArgs("r-3").WillReturnError(errors.New("db down"))

		_, err := repo.GetByID(ctx, "r-3")
		assert.EqualError(t, err, "db down")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateCommissionOverride(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	t.Run("Set", func(t *testing.T) {
		mock.ExpectExec(`UPDATE restaurants SET commission_override = \$1 WHERE id = \$2`).
			WithArgs("15", "r-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateCommissionOverride(ctx, "r-1", decimal.NewNullDecimal(decimal.NewFromInt(15)))
		assert.NoError(t, err)
	})

	t.Run("Clear", func(t *testing.T) {
		mock.ExpectExec(`UPDATE restaurants`).
			WithArgs(nil, "r-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateCommissionOverride(ctx, "r-1", decimal.NullDecimal{}))
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectExec(`UPDATE restaurants`).
			WithArgs(nil, "nope").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.UpdateCommissionOverride(ctx, "nope", decimal.NullDecimal{}), ErrRestaurantNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
