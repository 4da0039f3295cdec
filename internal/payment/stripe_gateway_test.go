package payment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRoundTripper allows us to mock the HTTP response
type MockRoundTripper func(req *http.Request) *http.Response

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type MockRoundTripperWithError func(req *http.Request) (*http.Response, error)

func (f MockRoundTripperWithError) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func TestStripeGateway_CreateRefund(t *testing.T) {
	gw := NewStripeGateway("sk_test_123", "", false).(*stripeGateway)

	in := RefundRequest{
		OrderID:         "o-1",
		PaymentIntentID: "pi_123",
		Amount:          decimal.RequireFromString("24.50"),
		Reason:          "restaurant closed",
		IdempotencyKey:  "refund-o-1",
	}

	t.Run("Success", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, "https://api.stripe.com/v1/refunds", req.URL.String())
			assert.Equal(t, "Bearer sk_test_123", req.Header.Get("Authorization"))
			assert.Equal(t, "refund-o-1", req.Header.Get("Idempotency-Key"))

			require.NoError(t, req.ParseForm())
			assert.Equal(t, "pi_123", req.PostForm.Get("payment_intent"))
			assert.Equal(t, "2450", req.PostForm.Get("amount"))
			assert.Equal(t, "o-1", req.PostForm.Get("metadata[order_id]"))
			assert.Equal(t, "restaurant closed", req.PostForm.Get("metadata[cancellation_reason]"))

			return jsonResponse(http.StatusOK, `{"id":"re_1","amount":2450,"currency":"eur","status":"succeeded"}`)
		})

		refund, err := gw.CreateRefund(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "re_1", refund.ID)
		assert.Equal(t, "24.50", refund.Amount.StringFixed(2))
		assert.Equal(t, "succeeded", refund.Status)
	})

	t.Run("Pending is accepted", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"id":"re_2","amount":2450,"currency":"eur","status":"pending"}`)
		})

		refund, err := gw.CreateRefund(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "pending", refund.Status)
	})

	t.Run("Failed status", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"id":"re_3","amount":2450,"currency":"eur","status":"failed"}`)
		})

		_, err := gw.CreateRefund(context.Background(), in)
		assert.ErrorIs(t, err, ErrRefundRejected)
	})

	t.Run("API error", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusBadRequest, `{"error":{"message":"Charge ch_1 has already been refunded."}}`)
		})

		_, err := gw.CreateRefund(context.Background(), in)
		assert.EqualError(t, err, "stripe error: Charge ch_1 has already been refunded.")
	})

	t.Run("Network error", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripperWithError(func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})

		_, err := gw.CreateRefund(context.Background(), in)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("Missing intent", func(t *testing.T) {
		noIntent := in
		noIntent.PaymentIntentID = ""

		_, err := gw.CreateRefund(context.Background(), noIntent)
		assert.ErrorIs(t, err, ErrMissingIntent)
	})
}

func TestToCents(t *testing.T) {
	assert.Equal(t, int64(2450), toCents(decimal.RequireFromString("24.5")))
	assert.Equal(t, int64(1), toCents(decimal.RequireFromString("0.005")))
	assert.Equal(t, int64(0), toCents(decimal.Zero))
}

func TestStripeGateway_VerifySignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	gw := NewStripeGateway("sk", "whsec_test", false).(*stripeGateway)
	gw.now = func() time.Time { return now }

	payload := []byte(`{"id":"evt_1"}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	valid := signPayload("whsec_test", ts, payload)

	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{"Valid", fmt.Sprintf("t=%s,v1=%s", ts, valid), false},
		{"Valid among several", fmt.Sprintf("t=%s,v1=deadbeef,v1=%s", ts, valid), false},
		{"Wrong signature", fmt.Sprintf("t=%s,v1=deadbeef", ts), true},
		{"Missing timestamp", "v1=" + valid, true},
		{"Stale timestamp", fmt.Sprintf("t=%d,v1=%s", now.Add(-time.Hour).Unix(), signPayload("whsec_test", strconv.FormatInt(now.Add(-time.Hour).Unix(), 10), payload)), true},
		{"Empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gw.VerifySignature(payload, tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSignature)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("No secret configured in development", func(t *testing.T) {
		dev := NewStripeGateway("sk", "", true).(*stripeGateway)
		assert.NoError(t, dev.VerifySignature(payload, ""))
	})

	t.Run("No secret configured outside development", func(t *testing.T) {
		prod := NewStripeGateway("sk", "", false).(*stripeGateway)
		err := prod.VerifySignature(payload, fmt.Sprintf("t=%s,v1=%s", ts, valid))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}
