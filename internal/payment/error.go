package payment

import "errors"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrRefundRejected   = errors.New("refund rejected by payment provider")
	ErrMissingIntent    = errors.New("order has no payment intent to refund")
)
