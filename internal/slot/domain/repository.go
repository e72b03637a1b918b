package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// LockComponent takes a row lock on the component so concurrent ledger
	// writers serialize their read-then-append. Must run inside a
	// transaction.
	LockComponent(ctx context.Context, db *gorm.DB, orgID, componentID snowflake.ID) error

	Append(ctx context.Context, db *gorm.DB, tx *SlotTransaction) error

	// ActiveSlotsAt sums every delta effective at or before at.
	ActiveSlotsAt(ctx context.Context, db *gorm.DB, orgID, subscriptionID, componentID snowflake.ID, at time.Time) (int64, error)

	ListByComponent(ctx context.Context, db *gorm.DB, orgID, subscriptionID, componentID snowflake.ID) ([]*SlotTransaction, error)
}
