package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

type Repository interface {
	SavePaymentWebhook(
		ctx context.Context,
		provider string,
		eventID string,
		eventType string,
		externalID string,
		payload json.RawMessage,
		signatureValid bool,
	) (webhookID int64, isDuplicate bool, err error)

	MarkWebhookProcessed(ctx context.Context, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error

	SaveReconciliation(ctx context.Context, rec Reconciliation) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SavePaymentWebhook(
	ctx context.Context,
	provider string,
	eventID string,
	eventType string,
	externalID string,
	payload json.RawMessage,
	signatureValid bool,
) (int64, bool, error) {

	const q = `
	INSERT INTO payment_webhooks (
		provider,
		event_id,
		event_type,
		external_id,
		signature_valid,
		payload
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (provider, event_id)
	DO UPDATE SET process_error = NULL
	WHERE payment_webhooks.processed_at IS NULL
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		q,
		provider,
		eventID,
		eventType,
		externalID,
		signatureValid,
		[]byte(payload),
	).Scan(&id)

	if err != nil {
		// Already processed → idempotent success. A stored but unprocessed
		// event comes back with its id so the retry is applied again.
		if errors.Is(err, sql.ErrNoRows) {
			return 0, true, nil
		}
		return 0, false, err
	}

	return id, false, nil
}

func (r *repository) MarkWebhookProcessed(
	ctx context.Context,
	webhookID int64,
) error {

	const q = `
	UPDATE payment_webhooks
	SET processed_at = now()
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID)
	return err
}

func (r *repository) MarkWebhookFailed(
	ctx context.Context,
	webhookID int64,
	reason string,
) error {

	const q = `
	UPDATE payment_webhooks
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID, reason)
	return err
}

// SaveReconciliation is written on a separate statement from the failed
// refund update, so it can succeed when that update did not.
func (r *repository) SaveReconciliation(ctx context.Context, rec Reconciliation) error {
	const q = `
	INSERT INTO refund_reconciliations (
		commande_id,
		stripe_refund_id,
		amount,
		reason,
		error,
		detected_at
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (stripe_refund_id) DO NOTHING;
	`

	_, err := r.db.ExecContext(
		ctx,
		q,
		rec.OrderID,
		rec.RefundID,
		rec.Amount.StringFixed(2),
		rec.Reason,
		rec.Error,
		rec.DetectedAt,
	)
	return err
}
