package payment

import (
	"context"
)

// Gateway is the payment provider boundary used by the order refund flow and
// the provider webhook.
type Gateway interface {
	// CreateRefund refunds captured money. Calls sharing an IdempotencyKey
	// produce at most one refund at the provider.
	CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error)
	VerifySignature(payload []byte, signatureHeader string) error
}
