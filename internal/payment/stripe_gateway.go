package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"livraison-be/internal/logger"
	"livraison-be/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	stripeBaseURL      = "https://api.stripe.com"
	signatureTolerance = 5 * time.Minute
)

type stripeGateway struct {
	secretKey     string
	webhookSecret string
	allowUnsigned bool
	httpClient    *http.Client
	now           func() time.Time
}

// NewStripeGateway builds the Stripe client. allowUnsigned lets webhooks
// through without a configured signing secret and must only be set in
// development.
func NewStripeGateway(secretKey, webhookSecret string, allowUnsigned bool) Gateway {
	if secretKey == "" {
		logger.L().Warn("Stripe secret key is empty")
	}
	if webhookSecret == "" {
		if allowUnsigned {
			logger.L().Warn("Stripe webhook secret is empty, accepting unsigned webhooks")
		} else {
			logger.L().Warn("Stripe webhook secret is empty, all webhooks will be rejected")
		}
	}

	return &stripeGateway{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		allowUnsigned: allowUnsigned,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		now: time.Now,
	}
}

// ----------------- CreateRefund -----------------

func (s *stripeGateway) CreateRefund(ctx context.Context, in RefundRequest) (refund *Refund, err error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_id", in.OrderID),
		zap.String("payment_intent", in.PaymentIntentID),
		zap.String("amount", in.Amount.StringFixed(2)),
	)

	timer := metrics.StartTimer()
	defer func() { timer.ObserveGateway("refund", err) }()

	if in.PaymentIntentID == "" {
		return nil, ErrMissingIntent
	}

	form := url.Values{}
	form.Set("payment_intent", in.PaymentIntentID)
	form.Set("amount", strconv.FormatInt(toCents(in.Amount), 10))
	form.Set("reason", "requested_by_customer")
	form.Set("metadata[order_id]", in.OrderID)
	if in.Reason != "" {
		form.Set("metadata[cancellation_reason]", in.Reason)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, stripeBaseURL+"/v1/refunds", strings.NewReader(form.Encode()))
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if in.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", in.IdempotencyKey)
	}

	log.Info("Sending refund request to Stripe")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Error("Stripe request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body", zap.Error(err))
		return nil, fmt.Errorf("failed to read stripe response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("Stripe returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, fmt.Errorf("stripe error: %s", stripeErrorMessage(bodyBytes))
	}

	var res struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		log.Error("Failed decoding Stripe response", zap.Error(err))
		return nil, err
	}

	if res.Status == "failed" || res.Status == "canceled" {
		log.Error("Stripe refund not accepted", zap.String("refund_id", res.ID), zap.String("status", res.Status))
		return nil, fmt.Errorf("%w: status %s", ErrRefundRejected, res.Status)
	}

	log.Info("Stripe refund created",
		zap.String("refund_id", res.ID),
		zap.String("status", res.Status),
	)

	return &Refund{
		ID:       res.ID,
		Amount:   decimal.New(res.Amount, -2),
		Currency: res.Currency,
		Status:   res.Status,
	}, nil
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

func stripeErrorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return string(body)
}

// ----------------- Verify Signature -----------------

// VerifySignature checks a Stripe-Signature header ("t=...,v1=...") against
// HMAC-SHA256 of "t.payload".
func (s *stripeGateway) VerifySignature(payload []byte, header string) error {
	if s.webhookSecret == "" {
		if s.allowUnsigned {
			return nil
		}
		return fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}

	var (
		timestamp  string
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if age := s.now().Sub(time.Unix(ts, 0)); age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := signPayload(s.webhookSecret, timestamp, payload)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func signPayload(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
