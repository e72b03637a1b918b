package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/metron/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	InsertComponents(ctx context.Context, db *gorm.DB, components []*Component) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Subscription, error)
	FindComponents(ctx context.Context, db *gorm.DB, orgID, subscriptionID snowflake.ID) ([]*Component, error)
	FindComponent(ctx context.Context, db *gorm.DB, orgID, componentID snowflake.ID) (*Component, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, page pagination.Pagination) ([]*Subscription, error)

	// AdvancePeriod moves the committed period window forward, guarded on the
	// expected current start so concurrent rollers cannot double-advance.
	AdvancePeriod(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, expectedStart, newStart, newEnd time.Time, now time.Time) (int64, error)

	// Cancel marks the subscription canceled at effectiveAt, guarded on
	// status ACTIVE.
	Cancel(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, effectiveAt, now time.Time) (int64, error)
}
