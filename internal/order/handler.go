package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"livraison-be/internal/commission"
	"livraison-be/internal/logger"
	"livraison-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{Svc: svc}
}

// ActorFromContext builds the caller identity set by the auth middleware.
func ActorFromContext(ctx context.Context) Actor {
	id, _ := utils.GetUserIDFromContext(ctx)
	return Actor{
		UserID:       id,
		Role:         utils.GetUserRoleFromContext(ctx),
		RestaurantID: utils.GetRestaurantIDFromContext(ctx),
	}
}

// StatusCode maps service errors onto HTTP status codes.
func StatusCode(err error) int {
	var illegal *IllegalTransitionError
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRefundNotPersisted), errors.Is(err, ErrRefundProvider):
		return http.StatusInternalServerError
	case IsRefundGuard(err),
		errors.As(err, &illegal),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnknownStatus),
		errors.Is(err, ErrUseRefund),
		errors.Is(err, ErrDriverRequired),
		errors.Is(err, ErrDriverAlreadyAssigned),
		errors.Is(err, ErrNotAssignable),
		errors.Is(err, ErrNotDelivered),
		errors.Is(err, ErrRestaurantPaidOut):
		return http.StatusBadRequest
	case errors.Is(err, ErrStatusConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("order request failed", zap.String("path", r.URL.Path), zap.Error(err))
		if !errors.Is(err, ErrRefundNotPersisted) && !errors.Is(err, ErrRefundProvider) {
			msg = "internal error"
		}
	}
	utils.WriteJSONError(w, msg, code)
}

type orderResponse struct {
	ID                 string     `json:"id"`
	RestaurantID       string     `json:"restaurantId"`
	RestaurantName     string     `json:"restaurantName"`
	Status             Status     `json:"statut"`
	PaymentStatus      string     `json:"paymentStatus"`
	Total              string     `json:"total"`
	DeliveryFee        string     `json:"fraisLivraison"`
	DriverID           *string    `json:"livreurId,omitempty"`
	RefundAmount       *string    `json:"refundAmount,omitempty"`
	StripeRefundID     *string    `json:"stripeRefundId,omitempty"`
	CancellationReason *string    `json:"cancellationReason,omitempty"`
	RestaurantPaidAt   *time.Time `json:"restaurantPaidAt,omitempty"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func toOrderResponse(o *Order) orderResponse {
	resp := orderResponse{
		ID:                 o.ID,
		RestaurantID:       o.RestaurantID,
		RestaurantName:     o.RestaurantName,
		Status:             o.Status,
		PaymentStatus:      o.PaymentStatus,
		Total:              o.Total.StringFixed(2),
		DeliveryFee:        o.DeliveryFee.StringFixed(2),
		DriverID:           o.DriverID,
		StripeRefundID:     o.StripeRefundID,
		CancellationReason: o.CancellationReason,
		RestaurantPaidAt:   o.RestaurantPaidAt,
		UpdatedAt:          o.UpdatedAt,
	}
	if o.RefundAmount.Valid {
		resp.RefundAmount = utils.StrPtr(o.RefundAmount.Decimal.StringFixed(2))
	}
	return resp
}

type payoutResponse struct {
	Rate       string            `json:"rate"`
	RateSource commission.Source `json:"rateSource"`
	Commission string            `json:"commission"`
	Payout     string            `json:"payout"`
	Display    map[string]string `json:"display"`
}

func toPayoutResponse(b *commission.Breakdown) payoutResponse {
	return payoutResponse{
		Rate:       b.Rate.Percent.String(),
		RateSource: b.Rate.Source,
		Commission: b.Commission.StringFixed(2),
		Payout:     b.Payout.StringFixed(2),
		Display: map[string]string{
			"commission": utils.FormatEUR(b.Commission),
			"payout":     utils.FormatEUR(b.Payout),
		},
	}
}

// maxRequestBytes bounds JSON request bodies.
const maxRequestBytes = 1 << 14

// decodeJSON reads a bounded JSON body into v and answers 400/413 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		utils.WriteJSONError(w, "request body too large", http.StatusRequestEntityTooLarge)
		return false
	}
	utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
	return false
}

// withOrder tags the request logger with the {id} URL param.
func withOrder(r *http.Request, id string) *http.Request {
	return r.WithContext(logger.WithOrder(r.Context(), id))
}

type refundRequest struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// Refund handles POST /api/orders/refund.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OrderID == "" {
		utils.WriteJSONError(w, "orderId is required", http.StatusBadRequest)
		return
	}
	r = withOrder(r, req.OrderID)

	res, err := h.Svc.Refund(r.Context(), ActorFromContext(r.Context()), req.OrderID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"refund": map[string]interface{}{
			"id":     res.RefundID,
			"amount": res.Amount.StringFixed(2),
			"reason": res.Reason,
			"status": res.Status,
		},
	})
}

type statusRequest struct {
	Status string `json:"statut"`
}

// ChangeStatus handles POST /api/orders/{id}/status.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	r = withOrder(r, id)

	o, err := h.Svc.ChangeStatus(r.Context(), ActorFromContext(r.Context()), id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

// AcceptDelivery handles POST /api/orders/{id}/driver.
func (h *Handler) AcceptDelivery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r = withOrder(r, id)

	o, err := h.Svc.AcceptDelivery(r.Context(), ActorFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r = withOrder(r, id)

	o, err := h.Svc.GetOrder(r.Context(), ActorFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) GetPayout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r = withOrder(r, id)

	b, err := h.Svc.GetPayout(r.Context(), ActorFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, toPayoutResponse(b))
}

func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r = withOrder(r, id)

	b, err := h.Svc.Settle(r.Context(), ActorFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, toPayoutResponse(b))
}

func (h *Handler) MarkRestaurantPaid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r = withOrder(r, id)

	if err := h.Svc.MarkRestaurantPaid(r.Context(), ActorFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
