package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SlotTransaction is one append-only ledger entry for a seat-based
// subscription component. Active slots at time T is the sum of every delta
// whose EffectiveAt is at or before T; ties at the same timestamp resolve in
// insertion (id) order. PrevActiveSlots and ActiveSlots snapshot the count
// around the transaction's own effective instant, for audit.
type SlotTransaction struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	OrgID           snowflake.ID `gorm:"index:idx_slot_transactions_org"`
	SubscriptionID  snowflake.ID `gorm:"index:idx_slot_transactions_component"`
	ComponentID     snowflake.ID `gorm:"index:idx_slot_transactions_component"`
	Delta           int64
	PrevActiveSlots int64
	ActiveSlots     int64
	EffectiveAt     time.Time
	CreatedAt       time.Time
}

func (SlotTransaction) TableName() string {
	return "slot_transactions"
}
