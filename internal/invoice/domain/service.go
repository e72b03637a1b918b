package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/metron/pkg/db/pagination"
)

type ListInvoicesRequest struct {
	CustomerID     string
	SubscriptionID string
	Status         string
	PageToken      string
	PageSize       int32
}

type ListInvoicesResponse struct {
	Invoices []Invoice
	PageInfo pagination.PageInfo
}

// Service drives invoices through their lifecycle. Get/List/Render are
// org-scoped (org comes from the request context); the sweep and transition
// operations are system-scoped and consumed by the scheduler.
type Service interface {
	Get(ctx context.Context, id string) (Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) (ListInvoicesResponse, error)
	RenderPDF(ctx context.Context, id string) ([]byte, error)

	// Void cancels an open invoice. Finalized invoices are immutable and
	// cannot be voided.
	Void(ctx context.Context, id string) (Invoice, error)

	// AdvancePending performs the bulk DRAFT -> PENDING transition for every
	// invoice inside its grace window and reports the number of rows moved.
	AdvancePending(ctx context.Context) (int64, error)

	SweepToFinalize(ctx context.Context, cursor snowflake.ID, limit int) (Sweep, error)
	SweepOutdated(ctx context.Context, cursor snowflake.ID, limit int) (Sweep, error)
	SweepToIssue(ctx context.Context, cursor snowflake.ID, limit int) (Sweep, error)

	// Finalize, Recompute and Issue apply one guarded transition to one
	// invoice. The bool reports whether this call made the transition; false
	// with a nil error means a concurrent worker already did.
	Finalize(ctx context.Context, invoice *Invoice) (bool, error)
	Recompute(ctx context.Context, invoice *Invoice) (bool, error)
	Issue(ctx context.Context, invoice *Invoice) (bool, error)
}
