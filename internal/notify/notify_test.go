package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"livraison-be/internal/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Notify(ctx context.Context, e Event) error {
	s.calls++
	return s.err
}

func TestLogNotifier(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	defer logger.Replace(zap.New(core))()

	amount := decimal.RequireFromString("24.50")
	err := NewLogNotifier().Notify(context.Background(), Event{
		Type:    TypeRefunded,
		OrderID: "o-1",
		Amount:  &amount,
	})
	require.NoError(t, err)

	logs := observed.TakeAll()
	require.Len(t, logs, 1)
	assert.Equal(t, "order.refunded", logs[0].ContextMap()["event"])
	assert.Equal(t, "24.50", logs[0].ContextMap()["amount"])
}

func TestMulti(t *testing.T) {
	t.Run("Delivers to all even after a failure", func(t *testing.T) {
		failing := &stubNotifier{err: errors.New("down")}
		ok := &stubNotifier{}

		err := Multi(failing, nil, ok).Notify(context.Background(), Event{Type: TypeStatusChanged, OrderID: "o-1"})

		assert.EqualError(t, err, "down")
		assert.Equal(t, 1, failing.calls)
		assert.Equal(t, 1, ok.calls)
	})

	t.Run("Empty is a no-op", func(t *testing.T) {
		assert.NoError(t, Multi().Notify(context.Background(), Event{}))
	})
}

func TestWebhookNotifier(t *testing.T) {
	t.Run("Posts JSON", func(t *testing.T) {
		var got Event
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "req-1", r.Header.Get(logger.RequestIDHeader))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		ctx := logger.WithRequestID(context.Background(), "req-1")
		err := NewWebhookNotifier(srv.URL).Notify(ctx, Event{
			Type:       TypeStatusChanged,
			OrderID:    "o-9",
			Status:     "acceptee",
			OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		})

		require.NoError(t, err)
		assert.Equal(t, "o-9", got.OrderID)
		assert.Equal(t, "acceptee", got.Status)
	})

	t.Run("Non 2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer srv.Close()

		err := NewWebhookNotifier(srv.URL).Notify(context.Background(), Event{Type: TypeRefunded})
		assert.ErrorContains(t, err, "502")
	})
}
