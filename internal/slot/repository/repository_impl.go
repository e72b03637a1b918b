package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	slotdomain "github.com/railzwaylabs/metron/internal/slot/domain"
	subscriptiondomain "github.com/railzwaylabs/metron/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() slotdomain.Repository {
	return &repo{}
}

func (r *repo) LockComponent(ctx context.Context, db *gorm.DB, orgID, componentID snowflake.ID) error {
	var id snowflake.ID
	return db.WithContext(ctx).
		Model(&subscriptiondomain.Component{}).
		Select("id").
		Where("org_id = ? AND id = ?", orgID, componentID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scan(&id).Error
}

func (r *repo) Append(ctx context.Context, db *gorm.DB, tx *slotdomain.SlotTransaction) error {
	return db.WithContext(ctx).Create(tx).Error
}

func (r *repo) ActiveSlotsAt(ctx context.Context, db *gorm.DB, orgID, subscriptionID, componentID snowflake.ID, at time.Time) (int64, error) {
	var total *int64
	err := db.WithContext(ctx).
		Model(&slotdomain.SlotTransaction{}).
		Select("SUM(delta)").
		Where("org_id = ? AND subscription_id = ? AND component_id = ?", orgID, subscriptionID, componentID).
		Where("effective_at <= ?", at).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repo) ListByComponent(ctx context.Context, db *gorm.DB, orgID, subscriptionID, componentID snowflake.ID) ([]*slotdomain.SlotTransaction, error) {
	var items []*slotdomain.SlotTransaction
	err := db.WithContext(ctx).
		Where("org_id = ? AND subscription_id = ? AND component_id = ?", orgID, subscriptionID, componentID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}
