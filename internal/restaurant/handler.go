package restaurant

import (
	"encoding/json"
	"errors"
	"net/http"

	"livraison-be/internal/logger"
	"livraison-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	Svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{Svc: svc}
}

type overrideRequest struct {
	// null clears the override
	Override *decimal.Decimal `json:"override"`
}

// SetCommissionOverride handles PUT /api/restaurants/{id}/commission-override.
func (h *Handler) SetCommissionOverride(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req overrideRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	var override decimal.NullDecimal
	if req.Override != nil {
		override = decimal.NewNullDecimal(*req.Override)
	}

	err := h.Svc.SetCommissionOverride(r.Context(), id, override)
	switch {
	case err == nil:
		utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	case errors.Is(err, ErrInvalidRate):
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrRestaurantNotFound):
		utils.WriteJSONError(w, err.Error(), http.StatusNotFound)
	default:
		logger.FromCtx(r.Context()).Error("failed to update commission override", zap.String("restaurant_id", id), zap.Error(err))
		utils.WriteJSONError(w, "internal error", http.StatusInternalServerError)
	}
}
