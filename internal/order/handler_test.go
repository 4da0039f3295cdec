package order

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"livraison-be/internal/logger"
	"livraison-be/internal/payment"
	"livraison-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(svc Service) http.Handler {
	h := NewHandler(svc)
	r := chi.NewRouter()
	r.Post("/api/orders/refund", h.Refund)
	r.Get("/api/orders/{id}", h.GetOrder)
	r.Post("/api/orders/{id}/status", h.ChangeStatus)
	r.Post("/api/orders/{id}/driver", h.AcceptDelivery)
	r.Get("/api/orders/{id}/payout", h.GetPayout)
	r.Post("/api/orders/{id}/settle", h.Settle)
	r.Post("/api/orders/{id}/restaurant-paid", h.MarkRestaurantPaid)
	return r
}

func asActor(req *http.Request, a Actor) *http.Request {
	return req.WithContext(utils.SetUserContext(req.Context(), a.UserID, a.Role, a.RestaurantID))
}

func TestHandler_Refund(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetByID", mock.Anything, "o-1").Return(newOrder(StatusAccepted), nil)
		f.repo.On("GetLineItems", mock.Anything, "o-1").Return([]LineItem{{UnitPrice: dec("11.00"), Quantity: 2}}, nil)
		f.gateway.On("CreateRefund", mock.Anything, mock.Anything).Return(&payment.Refund{ID: "re_1"}, nil)
		f.repo.On("MarkRefunded", mock.Anything, "o-1", mock.Anything, "admin-1").Return(StatusAccepted, nil)

		body := bytes.NewBufferString(`{"orderId":"o-1","reason":"client injoignable"}`)
		req := asActor(httptest.NewRequest(http.MethodPost, "/api/orders/refund", body), admin)
		w := httptest.NewRecorder()
		newTestRouter(f.svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool `json:"success"`
			Refund  struct {
				ID     string `json:"id"`
				Amount string `json:"amount"`
				Reason string `json:"reason"`
			} `json:"refund"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "re_1", resp.Refund.ID)
		assert.Equal(t, "24.50", resp.Refund.Amount)
		assert.Equal(t, "client injoignable", resp.Refund.Reason)
	})

	t.Run("Delivered order is a bad request", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetByID", mock.Anything, "o-1").Return(newOrder(StatusDelivered), nil)

		req := asActor(httptest.NewRequest(http.MethodPost, "/api/orders/refund", bytes.NewBufferString(`{"orderId":"o-1"}`)), admin)
		w := httptest.NewRecorder()
		newTestRouter(f.svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), ErrAlreadyDelivered.Error())
	})

	t.Run("Missing order id", func(t *testing.T) {
		req := asActor(httptest.NewRequest(http.MethodPost, "/api/orders/refund", bytes.NewBufferString(`{}`)), admin)
		w := httptest.NewRecorder()
		newTestRouter(newFixture().svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/orders/refund", bytes.NewBufferString(`{"orderId":"o-1"}`))
		w := httptest.NewRecorder()
		newTestRouter(newFixture().svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Not admin", func(t *testing.T) {
		req := asActor(httptest.NewRequest(http.MethodPost, "/api/orders/refund", bytes.NewBufferString(`{"orderId":"o-1"}`)), restoOwner)
		w := httptest.NewRecorder()
		newTestRouter(newFixture().svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Provider failure", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetByID", mock.Anything, "o-1").Return(newOrder(StatusAccepted), nil)
		f.repo.On("GetLineItems", mock.Anything, "o-1").Return([]LineItem{}, nil)
		f.gateway.On("CreateRefund", mock.Anything, mock.Anything).Return(nil, errors.New("stripe error: no such payment_intent"))

		req := asActor(httptest.NewRequest(http.MethodPost, "/api/orders/refund", bytes.NewBufferString(`{"orderId":"o-1"}`)), admin)
		w := httptest.NewRecorder()
		newTestRouter(f.svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "no such payment_intent")
	})
}

func TestHandler_ChangeStatus(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetByID", mock.Anything, "o-1").Return(newOrder(StatusPending), nil)
		f.repo.On("UpdateStatus", mock.Anything, "o-1", StatusPending, StatusAccepted, "owner-1").Return(nil)

		req := asActor(httptest.NewRequest(http.MethodPost, "/api/orders/o-1/status", bytes.NewBufferString(`{"statut":"acceptee"}`)), restoOwner)
		w := httptest.NewRecorder()
		newTestRouter(f.svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "acceptee", resp["statut"])
		assert.Equal(t, "22.00", resp["total"])
	})

	t.Run("Illegal transition", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetByID", mock.Anything, "o-1").Return(newOrder(StatusDelivered), nil)

		req := asActor(httptest.NewRequest(http.MethodPost, "/api/orders/o-1/status", bytes.NewBufferString(`{"statut":"en_attente"}`)), admin)
		w := httptest.NewRecorder()
		newTestRouter(f.svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Conflict", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetByID", mock.Anything, "o-1").Return(newOrder(StatusPending), nil)
		f.repo.On("UpdateStatus", mock.Anything, "o-1", StatusPending, StatusAccepted, "owner-1").Return(ErrStatusConflict)

		req := asActor(httptest.NewRequest(http.MethodPost, "/api/orders/o-1/status", bytes.NewBufferString(`{"statut":"acceptee"}`)), restoOwner)
		w := httptest.NewRecorder()
		newTestRouter(f.svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Not found", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetByID", mock.Anything, "nope").Return(nil, ErrOrderNotFound)

		req := asActor(httptest.NewRequest(http.MethodPost, "/api/orders/nope/status", bytes.NewBufferString(`{"statut":"acceptee"}`)), admin)
		w := httptest.NewRecorder()
		newTestRouter(f.svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_GetPayout(t *testing.T) {
	f := newFixture()
	o := newOrder(StatusDelivered)
	o.Total = dec("32.40")
	f.repo.On("GetByID", mock.Anything, "o-1").Return(o, nil)

	req := asActor(httptest.NewRequest(http.MethodGet, "/api/orders/o-1/payout", nil), restoOwner)
	w := httptest.NewRecorder()
	newTestRouter(f.svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp payoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "20", resp.Rate)
	assert.Equal(t, "6.48", resp.Commission)
	assert.Equal(t, "25.92", resp.Payout)
	assert.Equal(t, "25.92 €", resp.Display["payout"])
}

func TestHandler_AcceptDelivery(t *testing.T) {
	f := newFixture()
	f.repo.On("GetByID", mock.Anything, "o-1").Return(newOrder(StatusReady), nil)
	f.repo.On("AssignDriver", mock.Anything, "o-1", "drv-1").Return(ErrStatusConflict)

	req := asActor(httptest.NewRequest(http.MethodPost, "/api/orders/o-1/driver", nil), driver1)
	w := httptest.NewRecorder()
	newTestRouter(f.svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), ErrDriverAlreadyAssigned.Error())
}

func TestHandler_MarkRestaurantPaid(t *testing.T) {
	f := newFixture()
	o := newOrder(StatusDelivered)
	o.RestaurantPaidAt = &fixedNow
	f.repo.On("GetByID", mock.Anything, "o-1").Return(o, nil)

	req := asActor(httptest.NewRequest(http.MethodPost, "/api/orders/o-1/restaurant-paid", nil), admin)
	w := httptest.NewRecorder()
	newTestRouter(f.svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{ErrOrderNotFound, http.StatusNotFound},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotPaid, http.StatusBadRequest},
		{&IllegalTransitionError{From: StatusDelivered, To: StatusPending}, http.StatusBadRequest},
		{fmt.Errorf("%w: %w", ErrRefundNotPersisted, ErrDriverAssigned), http.StatusInternalServerError},
		{fmt.Errorf("%w: boom", ErrRefundProvider), http.StatusInternalServerError},
		{ErrStatusConflict, http.StatusConflict},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, StatusCode(tt.err))
		})
	}
}

func TestHandler_BodyLimit(t *testing.T) {
	huge := `{"orderId":"o-1","reason":"` + strings.Repeat("x", maxRequestBytes) + `"}`

	t.Run("Refund", func(t *testing.T) {
		f := newFixture()
		req := asActor(httptest.NewRequest(http.MethodPost, "/api/orders/refund", strings.NewReader(huge)), admin)
		w := httptest.NewRecorder()
		newTestRouter(f.svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		f.gateway.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything)
	})

	t.Run("ChangeStatus", func(t *testing.T) {
		f := newFixture()
		body := `{"statut":"acceptee","pad":"` + strings.Repeat("x", maxRequestBytes) + `"}`
		req := asActor(httptest.NewRequest(http.MethodPost, "/api/orders/o-1/status", strings.NewReader(body)), admin)
		w := httptest.NewRecorder()
		newTestRouter(f.svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		f.repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})
}

func TestHandler_LogsCarryOrderID(t *testing.T) {
	core, observed := observer.New(zapcore.ErrorLevel)
	defer logger.Replace(zap.New(core))()

	f := newFixture()
	f.repo.On("GetByID", mock.Anything, "o-1").Return(nil, errors.New("db down"))

	req := asActor(httptest.NewRequest(http.MethodGet, "/api/orders/o-1/payout", nil), admin)
	w := httptest.NewRecorder()
	newTestRouter(f.svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	logs := observed.FilterMessage("order request failed").All()
	require.Len(t, logs, 1)
	assert.Equal(t, "o-1", logs[0].ContextMap()["order_id"])
}
