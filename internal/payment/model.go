package payment

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const ProviderStripe = "STRIPE"

// Payment statuses stored on commandes.payment_status.
const (
	StatusPaid      = "paid"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
)

// IsCaptured reports whether a payment status means money was taken.
func IsCaptured(status string) bool {
	return status == StatusPaid || status == StatusSucceeded
}

type RefundRequest struct {
	OrderID         string
	PaymentIntentID string
	Amount          decimal.Decimal
	Reason          string
	IdempotencyKey  string
}

type Refund struct {
	ID       string
	Amount   decimal.Decimal
	Currency string
	Status   string
}

// Event is a provider webhook envelope.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// IntentObject is the data.object of payment_intent.* events.
type IntentObject struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

// Reconciliation records a refund the provider accepted but the database
// could not persist.
type Reconciliation struct {
	OrderID    string
	RefundID   string
	Amount     decimal.Decimal
	Reason     string
	Error      string
	DetectedAt time.Time
}
