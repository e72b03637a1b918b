package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/metron/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ListFilter struct {
	CustomerID     snowflake.ID
	SubscriptionID snowflake.ID
	Status         InvoiceStatus
}

// Sweep is one cursor page of a background scan. NextCursor is only
// meaningful when HasMore is set; every scan orders by invoice id ascending
// so a sweep is restartable at any batch boundary.
type Sweep struct {
	Items      []Invoice
	NextCursor snowflake.ID
	HasMore    bool
}

// Repository is the connection-scoped store behind the lifecycle engine.
// Every transition is a guarded conditional update: the WHERE clause re-checks
// the expected source state and the returned count is 0 when a concurrent
// actor won the race. Zero rows affected is a normal outcome, never an error.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*Invoice, error)

	// MarkPendingBatch moves every DRAFT invoice whose invoice date has
	// passed but whose grace window is still open to PENDING, scanning
	// candidates in pages of batchSize. Orgs without an invoicing_configs
	// row fall back to defaultGraceHours.
	MarkPendingBatch(ctx context.Context, db *gorm.DB, now time.Time, defaultGraceHours, batchSize int) (int64, error)

	ListToFinalize(ctx context.Context, db *gorm.DB, now time.Time, defaultGraceHours int, cursor snowflake.ID, limit int) (Sweep, error)
	ListOutdated(ctx context.Context, db *gorm.DB, now time.Time, cursor snowflake.ID, limit int) (Sweep, error)
	ListToIssue(ctx context.Context, db *gorm.DB, maxAttempts int, cursor snowflake.ID, limit int) (Sweep, error)

	Finalize(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, now time.Time) (int64, error)
	Void(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, now time.Time) (int64, error)
	VoidOpenBySubscription(ctx context.Context, db *gorm.DB, orgID, subscriptionID snowflake.ID, now time.Time) (int64, error)

	UpdateLines(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, lines datatypes.JSON, amountCents int64, now time.Time) (int64, error)

	IssueSuccess(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, now time.Time) (int64, error)
	IssueError(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, message string, now time.Time) (int64, error)

	FindConfig(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*InvoicingConfig, error)
	UpsertConfig(ctx context.Context, db *gorm.DB, cfg *InvoicingConfig) error
}
