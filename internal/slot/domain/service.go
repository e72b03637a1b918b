package domain

import "context"

type ApplyDeltaRequest struct {
	SubscriptionID string
	ComponentID    string
	Delta          int64
}

// ApplyDeltaResponse reports the slot count billing currently recognizes.
// After a decrease this is still the pre-decrease count: the decrease sits
// in the ledger with a period-end effective time and takes hold when the
// next period is billed.
type ApplyDeltaResponse struct {
	TransactionID string
	ActiveSlots   int64
	// InvoiceID is set when an increase cut a mid-period proration invoice.
	InvoiceID string
}

type ActiveSlotsRequest struct {
	SubscriptionID string
	ComponentID    string
}

type Service interface {
	ApplyDelta(ctx context.Context, req ApplyDeltaRequest) (ApplyDeltaResponse, error)
	ActiveSlots(ctx context.Context, req ActiveSlotsRequest) (int64, error)
}
