// Package domain holds the invoice model and the contracts of the invoice
// lifecycle engine.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/railzwaylabs/metron/internal/proration"
	"gorm.io/datatypes"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusFinalized InvoiceStatus = "FINALIZED"
	InvoiceStatusVoid      InvoiceStatus = "VOID"
)

type ExternalStatus string

const (
	ExternalStatusNotIssued  ExternalStatus = "NOT_ISSUED"
	ExternalStatusIssued     ExternalStatus = "ISSUED"
	ExternalStatusIssueError ExternalStatus = "ISSUE_ERROR"
)

// ProviderManual marks invoices that are delivered out of band; the issue
// sweep never picks them up.
const ProviderManual = "manual"

// NewInvoiceNumber returns a sortable, globally unique invoice number.
func NewInvoiceNumber() string {
	return "INV-" + ulid.Make().String()
}

type Invoice struct {
	ID                 snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID              snowflake.ID      `gorm:"not null;index" json:"org_id"`
	CustomerID         snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	SubscriptionID     *snowflake.ID     `gorm:"index" json:"subscription_id,omitempty"`
	InvoiceNumber      string            `gorm:"type:text;not null;uniqueIndex" json:"invoice_number"`
	Currency           string            `gorm:"type:text;not null" json:"currency"`
	Status             InvoiceStatus     `gorm:"type:text;not null;index" json:"status"`
	ExternalStatus     ExternalStatus    `gorm:"type:text;not null" json:"external_status"`
	InvoicingProvider  string            `gorm:"type:text;not null" json:"invoicing_provider"`
	LineItems          datatypes.JSON    `gorm:"type:json" json:"line_items"`
	AmountCents        int64             `gorm:"not null" json:"amount_cents"`
	InvoiceDate        time.Time         `gorm:"not null;index" json:"invoice_date"`
	PeriodStart        time.Time         `gorm:"not null" json:"period_start"`
	PeriodEnd          time.Time         `gorm:"not null" json:"period_end"`
	FinalizedAt        *time.Time        `json:"finalized_at,omitempty"`
	DataUpdatedAt      *time.Time        `json:"data_updated_at,omitempty"`
	Issued             bool              `gorm:"not null;default:false" json:"issued"`
	IssueAttempts      int               `gorm:"not null;default:0" json:"issue_attempts"`
	LastIssueError     *string           `json:"last_issue_error,omitempty"`
	LastIssueAttemptAt *time.Time        `json:"last_issue_attempt_at,omitempty"`
	Metadata           datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt          time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

func (i *Invoice) Lines() ([]proration.Line, error) {
	if len(i.LineItems) == 0 {
		return nil, nil
	}
	var lines []proration.Line
	if err := json.Unmarshal(i.LineItems, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// SetLines replaces the line items and recomputes the invoice total.
func (i *Invoice) SetLines(lines []proration.Line) error {
	raw, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	var total int64
	for _, line := range lines {
		total += line.TotalCents
	}
	i.LineItems = datatypes.JSON(raw)
	i.AmountCents = total
	return nil
}

// InvoicingConfig is the per-org invoicing policy consumed by the lifecycle
// sweeps.
type InvoicingConfig struct {
	OrgID            snowflake.ID `gorm:"primaryKey" json:"org_id"`
	GracePeriodHours int          `gorm:"not null" json:"grace_period_hours"`
	Provider         string       `gorm:"type:text;not null" json:"provider"`
	UpdatedAt        time.Time    `gorm:"not null" json:"updated_at"`
}

func (InvoicingConfig) TableName() string { return "invoicing_configs" }
