package domain

import (
	"context"
	"time"

	"github.com/railzwaylabs/metron/pkg/db/pagination"
)

type ComponentSpec struct {
	Name      string
	FeeType   string
	RateCents int64
	// Quantity is the committed quantity for RATE components and the opening
	// seat count for SLOT components.
	Quantity int64
}

type CreateSubscriptionRequest struct {
	CustomerID    string
	PlanName      string
	Currency      string
	BillingPeriod string
	BillingDay    int
	NetTermsDays  int
	// Start is the billing start; zero means now.
	Start      time.Time
	Components []ComponentSpec
}

type CreateSubscriptionResponse struct {
	Subscription Subscription
	Components   []Component
	// InvoiceID is the opening draft invoice covering [start, first billing
	// day occurrence).
	InvoiceID string
}

type ListSubscriptionsRequest struct {
	PageToken string
	PageSize  int32
}

type ListSubscriptionsResponse struct {
	Subscriptions []Subscription
	PageInfo      pagination.PageInfo
}

type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (CreateSubscriptionResponse, error)
	Get(ctx context.Context, id string) (Subscription, error)
	List(ctx context.Context, req ListSubscriptionsRequest) (ListSubscriptionsResponse, error)

	// Cancel takes effect at the end of the current period: the subscription
	// moves to PENDING_CANCELLATION and its open invoices are voided.
	Cancel(ctx context.Context, id string) (Subscription, error)
}
