package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Lifecycle actions recorded on the trail.
const (
	ActionSubscriptionCreated  = "subscription.created"
	ActionSubscriptionCanceled = "subscription.canceled"
	ActionSlotDeltaApplied     = "slot.applied"
	ActionInvoiceFinalized     = "invoice.finalized"
	ActionInvoiceIssued        = "invoice.issued"
	ActionInvoiceVoided        = "invoice.voided"
)

// Event is one append-only audit trail entry. Events are never updated or
// deleted; the export service is the only reader.
type Event struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	OrgID      snowflake.ID      `gorm:"index:idx_audit_events_org"`
	Action     string            `gorm:"size:64;index:idx_audit_events_action"`
	TargetType string            `gorm:"size:32"`
	TargetID   snowflake.ID
	Metadata   datatypes.JSONMap
	CreatedAt  time.Time
}

func (Event) TableName() string { return "audit_events" }

// Recorder appends events. Recording is best effort at call sites: a failed
// audit write is logged, never propagated into the billing path.
type Recorder interface {
	Record(ctx context.Context, event Event)
}
