package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"livraison-be/internal/commission"
	"livraison-be/internal/logger"
	"livraison-be/internal/payment"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	GetLineItems(ctx context.Context, orderID string) ([]LineItem, error)

	UpdateStatus(ctx context.Context, id string, from, to Status, actorID string) error
	AssignDriver(ctx context.Context, id, driverID string) error

	// MarkRefunded persists a refund only if the order is still refundable and
	// returns the status it had just before.
	MarkRefunded(ctx context.Context, id string, u RefundUpdate, actorID string) (Status, error)

	SaveCommission(ctx context.Context, id string, b commission.Breakdown) error
	MarkRestaurantPaid(ctx context.Context, id string, at time.Time) error
	MarkRestaurantPaidBetween(ctx context.Context, f SettlementFilter, at time.Time) (int64, error)
	ListForSettlement(ctx context.Context, f SettlementFilter) ([]*Order, error)

	UpdatePaymentStatus(ctx context.Context, paymentIntentID, status string) (orderID string, err error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// refund is blocked once the order is in one of these
var refundBlockedStatuses = []string{
	string(StatusDelivered),
	string(StatusInDelivery),
	string(StatusCancelled),
}

var capturedPaymentStatuses = []string{payment.StatusPaid, payment.StatusSucceeded}

// statuses a late webhook may not write over a captured payment
var uncapturedPaymentStatuses = []string{payment.StatusFailed, payment.StatusCancelled}

var assignableStatuses = []string{
	string(StatusPending),
	string(StatusAccepted),
	string(StatusPreparing),
	string(StatusReady),
}

const orderColumns = `
	c.id, c.restaurant_id, c.total, c.frais_livraison, c.statut, c.payment_status,
	c.stripe_payment_intent_id, c.commission_rate, c.commission_amount, c.restaurant_payout,
	c.livreur_id, c.restaurant_paid_at, c.refund_amount, c.stripe_refund_id, c.refunded_at,
	c.cancellation_reason, c.created_at, c.updated_at,
	r.nom, r.commission_rate, r.commission_override`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanOrder reads numeric columns as text so malformed historical values
// degrade to zero/absent with a warning instead of failing the read.
func scanOrder(log *zap.Logger, row rowScanner) (*Order, error) {
	var (
		o                                   Order
		total, fee                          sql.NullString
		status                              string
		paymentStatus, intentID             sql.NullString
		rate, amount, payout, refundAmount  sql.NullString
		driverID, refundID, reason          sql.NullString
		paidAt, refundedAt                  sql.NullTime
		restoName, restoRate, restoOverride sql.NullString
	)

	err := row.Scan(
		&o.ID, &o.RestaurantID, &total, &fee, &status, &paymentStatus,
		&intentID, &rate, &amount, &payout,
		&driverID, &paidAt, &refundAmount, &refundID, &refundedAt,
		&reason, &o.CreatedAt, &o.UpdatedAt,
		&restoName, &restoRate, &restoOverride,
	)
	if err != nil {
		return nil, err
	}

	log = log.With(zap.String("order_id", o.ID))

	o.Total = amountOrZero(log, "total", total)
	o.DeliveryFee = amountOrZero(log, "frais_livraison", fee)
	o.CommissionRate = nullableDecimal(log, "commission_rate", rate)
	o.CommissionAmount = nullableDecimal(log, "commission_amount", amount)
	o.RestaurantPayout = nullableDecimal(log, "restaurant_payout", payout)
	o.RefundAmount = nullableDecimal(log, "refund_amount", refundAmount)
	o.RestaurantRate = nullableDecimal(log, "restaurants.commission_rate", restoRate)
	o.RestaurantOverride = nullableDecimal(log, "restaurants.commission_override", restoOverride)

	if st, err := ParseStatus(status); err == nil {
		o.Status = st
	} else {
		log.Warn("unknown stored order status", zap.String("statut", status))
		o.Status = Status(status)
	}

	o.PaymentStatus = strings.ToLower(paymentStatus.String)
	o.PaymentIntentID = intentID.String
	o.RestaurantName = restoName.String
	if driverID.Valid {
		o.DriverID = &driverID.String
	}
	if refundID.Valid {
		o.StripeRefundID = &refundID.String
	}
	if reason.Valid {
		o.CancellationReason = &reason.String
	}
	if paidAt.Valid {
		o.RestaurantPaidAt = &paidAt.Time
	}
	if refundedAt.Valid {
		o.RefundedAt = &refundedAt.Time
	}

	return &o, nil
}

func amountOrZero(log *zap.Logger, column string, raw sql.NullString) decimal.Decimal {
	if !raw.Valid {
		return decimal.Zero
	}
	v := commission.ParseRate(raw.String)
	if !v.Valid {
		log.Warn("malformed stored amount coerced to zero", zap.String("column", column), zap.String("value", raw.String))
		return decimal.Zero
	}
	return v.Decimal
}

func nullableDecimal(log *zap.Logger, column string, raw sql.NullString) decimal.NullDecimal {
	if !raw.Valid {
		return decimal.NullDecimal{}
	}
	v := commission.ParseRate(raw.String)
	if !v.Valid {
		log.Warn("malformed stored value treated as absent", zap.String("column", column), zap.String("value", raw.String))
	}
	return v
}

func (r *repository) GetByID(ctx context.Context, id string) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetByID"),
	)

	row := r.db.QueryRowContext(ctx, `
		SELECT`+orderColumns+`
		FROM commandes c
		JOIN restaurants r ON r.id = c.restaurant_id
		WHERE c.id = $1
	`, id)

	o, err := scanOrder(log, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		log.Error("failed to load order", zap.String("order_id", id), zap.Error(err))
		return nil, err
	}
	return o, nil
}

func (r *repository) GetLineItems(ctx context.Context, orderID string) ([]LineItem, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetLineItems"),
		zap.String("order_id", orderID),
	)

	rows, err := r.db.QueryContext(ctx, `
		SELECT prix_unitaire, quantite
		FROM details_commande
		WHERE commande_id = $1
	`, orderID)
	if err != nil {
		log.Error("failed to query line items", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var (
			price sql.NullString
			qty   sql.NullInt64
		)
		if err := rows.Scan(&price, &qty); err != nil {
			log.Error("failed to scan line item", zap.Error(err))
			return nil, err
		}
		items = append(items, LineItem{
			UnitPrice: amountOrZero(log, "prix_unitaire", price),
			Quantity:  int(qty.Int64),
		})
	}
	if err := rows.Err(); err != nil {
		log.Error("rows iteration error", zap.Error(err))
		return nil, err
	}

	return items, nil
}

// withTx runs fn in a transaction, rolling back unless fn and Commit succeed.
func (r *repository) withTx(ctx context.Context, log *zap.Logger, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", zap.Error(err))
		return err
	}
	committed = true
	return nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, id string, from, to Status, actorID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_history (commande_id, from_statut, to_statut, changed_by)
		VALUES ($1, $2, $3, $4)
	`, id, string(from), string(to), actorID)
	return err
}

func (r *repository) UpdateStatus(ctx context.Context, id string, from, to Status, actorID string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "UpdateStatus"),
		zap.String("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	return r.withTx(ctx, log, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE commandes
			SET statut = $1, updated_at = NOW()
			WHERE id = $2
			  AND statut = $3
			  AND ($1 <> 'en_livraison' OR livreur_id IS NOT NULL)
		`, string(to), id, string(from))
		if err != nil {
			log.Error("failed to update status", zap.Error(err))
			return err
		}

		affected, _ := res.RowsAffected()
		if affected == 0 {
			return ErrStatusConflict
		}

		if err := insertHistory(ctx, tx, id, from, to, actorID); err != nil {
			log.Error("failed to insert status history", zap.Error(err))
			return err
		}
		return nil
	})
}

func (r *repository) AssignDriver(ctx context.Context, id, driverID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE commandes
		SET livreur_id = $1, updated_at = NOW()
		WHERE id = $2
		  AND livreur_id IS NULL
		  AND statut = ANY($3)
	`, driverID, id, pq.Array(assignableStatuses))
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *repository) MarkRefunded(ctx context.Context, id string, u RefundUpdate, actorID string) (Status, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "MarkRefunded"),
		zap.String("order_id", id),
		zap.String("refund_id", u.RefundID),
	)

	var previous Status
	err := r.withTx(ctx, log, func(tx *sql.Tx) error {
		// prev locks the row and exposes the status the update replaced
		var prev string
		err := tx.QueryRowContext(ctx, `
			UPDATE commandes c
			SET statut = CASE WHEN prev.statut = 'refusee' THEN prev.statut ELSE 'annulee' END,
			    payment_status = 'refunded',
			    refund_amount = $2,
			    stripe_refund_id = $3,
			    refunded_at = $4,
			    cancellation_reason = $5,
			    updated_at = NOW()
			FROM (SELECT id, statut FROM commandes WHERE id = $1 FOR UPDATE) prev
			WHERE c.id = prev.id
			  AND c.statut <> ALL($6)
			  AND c.livreur_id IS NULL
			  AND c.payment_status = ANY($7)
			RETURNING prev.statut
		`,
			id,
			u.Amount.StringFixed(2),
			u.RefundID,
			u.RefundedAt,
			u.Reason,
			pq.Array(refundBlockedStatuses),
			pq.Array(capturedPaymentStatuses),
		).Scan(&prev)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStatusConflict
		}
		if err != nil {
			log.Error("failed to persist refund", zap.Error(err))
			return err
		}

		previous = Status(prev)
		if previous == StatusRejected {
			return nil
		}
		if err := insertHistory(ctx, tx, id, previous, StatusCancelled, actorID); err != nil {
			log.Error("failed to insert status history", zap.Error(err))
			return err
		}
		return nil
	})

	return previous, err
}

func (r *repository) SaveCommission(ctx context.Context, id string, b commission.Breakdown) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE commandes
		SET commission_rate = $1,
		    commission_amount = $2,
		    restaurant_payout = $3,
		    updated_at = NOW()
		WHERE id = $4
		  AND statut = 'livree'
		  AND restaurant_paid_at IS NULL
	`, b.Rate.Percent.String(), b.Commission.StringFixed(2), b.Payout.StringFixed(2), id)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrRestaurantPaidOut
	}
	return nil
}

func (r *repository) MarkRestaurantPaid(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE commandes
		SET restaurant_paid_at = $1, updated_at = NOW()
		WHERE id = $2
		  AND statut = 'livree'
		  AND restaurant_paid_at IS NULL
	`, at, id)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrRestaurantPaidOut
	}
	return nil
}

func (r *repository) MarkRestaurantPaidBetween(ctx context.Context, f SettlementFilter, at time.Time) (int64, error) {
	if f.RestaurantID == "" {
		return 0, fmt.Errorf("%w: restaurant id is required", ErrInvalidInput)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE commandes
		SET restaurant_paid_at = $1, updated_at = NOW()
		WHERE restaurant_id = $2
		  AND statut = 'livree'
		  AND restaurant_paid_at IS NULL
		  AND commission_amount IS NOT NULL
		  AND restaurant_payout IS NOT NULL
		  AND created_at >= $3
		  AND created_at < $4
	`, at, f.RestaurantID, f.From, f.To)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *repository) ListForSettlement(ctx context.Context, f SettlementFilter) ([]*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListForSettlement"),
	)

	var (
		where = []string{"c.statut = 'livree'", "c.created_at >= $1", "c.created_at < $2"}
		args  = []interface{}{f.From, f.To}
	)
	if f.RestaurantID != "" {
		args = append(args, f.RestaurantID)
		where = append(where, fmt.Sprintf("c.restaurant_id = $%d", len(args)))
	}
	if f.UnpaidOnly {
		where = append(where, "c.restaurant_paid_at IS NULL")
	}

	query := `SELECT` + orderColumns + `
		FROM commandes c
		JOIN restaurants r ON r.id = c.restaurant_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY r.nom, c.created_at`

	log.Debug("listing orders for settlement", zap.Any("args", args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(log, rows)
		if err != nil {
			log.Error("failed to scan order row", zap.Error(err))
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		log.Error("rows iteration error", zap.Error(err))
		return nil, err
	}

	return orders, nil
}

// UpdatePaymentStatus never overwrites a refunded order.
func (r *repository) UpdatePaymentStatus(ctx context.Context, paymentIntentID, status string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		UPDATE commandes
		SET payment_status = $1, updated_at = NOW()
		WHERE stripe_payment_intent_id = $2
		  AND (payment_status IS NULL OR payment_status <> 'refunded')
		  AND NOT (payment_status = ANY($3) AND $1 = ANY($4))
		RETURNING id
	`, status, paymentIntentID, pq.Array(capturedPaymentStatuses), pq.Array(uncapturedPaymentStatuses)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	// nothing updated: tell a missing order from a guarded one
	err = r.db.QueryRowContext(ctx, `
		SELECT id FROM commandes WHERE stripe_payment_intent_id = $1
	`, paymentIntentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return id, ErrPaymentStatusStale
}
