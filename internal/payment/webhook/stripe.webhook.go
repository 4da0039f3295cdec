package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"livraison-be/internal/logger"
	"livraison-be/internal/order"
	"livraison-be/internal/payment"
	"livraison-be/internal/utils"

	"go.uber.org/zap"
)

const (
	SignatureHeader = "Stripe-Signature"
	maxBodyBytes    = 1 << 16
)

// payment_intent events mapped onto commandes.payment_status
var intentStatuses = map[string]string{
	"payment_intent.succeeded":      payment.StatusSucceeded,
	"payment_intent.payment_failed": payment.StatusFailed,
	"payment_intent.canceled":       payment.StatusCancelled,
}

type Handler struct {
	OrderSvc    order.Service
	Gateway     payment.Gateway
	PaymentRepo payment.Repository
}

func NewWebhookHandler(orderSvc order.Service, gateway payment.Gateway, payRepo payment.Repository) *Handler {
	return &Handler{
		OrderSvc:    orderSvc,
		Gateway:     gateway,
		PaymentRepo: payRepo,
	}
}

// PaymentWebhookHandler handles POST /webhook/stripe.
func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "webhook"),
		zap.String("provider", payment.ProviderStripe),
	)

	// 1. Read and verify
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := h.Gateway.VerifySignature(body, r.Header.Get(SignatureHeader)); err != nil {
		log.Warn("webhook signature rejected", zap.Error(err))
		utils.WriteJSONError(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event payment.Event
	if err := json.Unmarshal(body, &event); err != nil || event.ID == "" {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	var intent payment.IntentObject
	if len(event.Data.Object) > 0 {
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
			utils.WriteJSONError(w, "invalid event object", http.StatusBadRequest)
			return
		}
	}

	log = log.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("payment_intent", intent.ID),
	)

	// 2. Store once
	webhookID, duplicate, err := h.PaymentRepo.SavePaymentWebhook(
		ctx,
		payment.ProviderStripe,
		event.ID,
		event.Type,
		intent.ID,
		json.RawMessage(body),
		true,
	)
	if err != nil {
		log.Error("failed to store webhook", zap.Error(err))
		utils.WriteJSONError(w, "failed to store webhook", http.StatusInternalServerError)
		return
	}
	if duplicate {
		log.Info("webhook already processed")
		w.WriteHeader(http.StatusOK)
		return
	}

	// 3. Apply
	status, handled := intentStatuses[event.Type]
	if !handled {
		log.Debug("webhook event type not handled")
		h.markProcessed(r, log, webhookID)
		w.WriteHeader(http.StatusOK)
		return
	}

	orderID, err := h.OrderSvc.ApplyPaymentStatus(ctx, intent.ID, status)
	if err != nil {
		if errors.Is(err, order.ErrPaymentStatusStale) {
			// out-of-order delivery; the stored status is newer
			log.Info("stale payment event ignored", zap.String("order_id", orderID), zap.String("payment_status", status))
			h.markProcessed(r, log, webhookID)
			w.WriteHeader(http.StatusOK)
			return
		}

		if markErr := h.PaymentRepo.MarkWebhookFailed(ctx, webhookID, err.Error()); markErr != nil {
			log.Error("failed to mark webhook failed", zap.Error(markErr))
		}

		if errors.Is(err, order.ErrOrderNotFound) {
			// unknown intent; retrying will not help
			log.Warn("no order to update for payment intent")
			w.WriteHeader(http.StatusOK)
			return
		}

		log.Error("failed to apply payment status", zap.Error(err))
		utils.WriteJSONError(w, "failed to update order", http.StatusInternalServerError)
		return
	}

	log.Info("payment status applied", zap.String("order_id", orderID), zap.String("payment_status", status))

	// 4. Done
	h.markProcessed(r, log, webhookID)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) markProcessed(r *http.Request, log *zap.Logger, webhookID int64) {
	if err := h.PaymentRepo.MarkWebhookProcessed(r.Context(), webhookID); err != nil {
		log.Error("failed to mark webhook processed", zap.Error(err))
	}
}
