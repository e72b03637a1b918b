package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/railzwaylabs/metron/internal/subscription/domain"
	"github.com/railzwaylabs/metron/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Create(subscription).Error
}

func (r *repo) InsertComponents(ctx context.Context, db *gorm.DB, components []*subscriptiondomain.Component) error {
	if len(components) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(components).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Limit(1).
		Find(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindComponents(ctx context.Context, db *gorm.DB, orgID, subscriptionID snowflake.ID) ([]*subscriptiondomain.Component, error) {
	var components []*subscriptiondomain.Component
	err := db.WithContext(ctx).
		Where("org_id = ? AND subscription_id = ?", orgID, subscriptionID).
		Order("id ASC").
		Find(&components).Error
	return components, err
}

func (r *repo) FindComponent(ctx context.Context, db *gorm.DB, orgID, componentID snowflake.ID) (*subscriptiondomain.Component, error) {
	var component subscriptiondomain.Component
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, componentID).
		Limit(1).
		Find(&component).Error
	if err != nil {
		return nil, err
	}
	if component.ID == 0 {
		return nil, nil
	}
	return &component, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, page pagination.Pagination) ([]*subscriptiondomain.Subscription, error) {
	query := db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("org_id = ?", orgID)

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		after, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		query = query.Where("id > ?", after)
	}
	if page.PageSize > 0 {
		query = query.Limit(page.PageSize + 1)
	}

	var items []*subscriptiondomain.Subscription
	if err := query.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) AdvancePeriod(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, expectedStart, newStart, newEnd time.Time, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("id = ? AND org_id = ? AND current_period_start = ?", id, orgID, expectedStart).
		Updates(map[string]any{
			"current_period_start": newStart,
			"current_period_end":   newEnd,
			"updated_at":           now,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) Cancel(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, effectiveAt, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("id = ? AND org_id = ? AND status = ?", id, orgID, subscriptiondomain.SubscriptionStatusActive).
		Updates(map[string]any{
			"status":      subscriptiondomain.SubscriptionStatusPendingCancellation,
			"cancel_at":   effectiveAt,
			"canceled_at": now,
			"updated_at":  now,
		})
	return result.RowsAffected, result.Error
}
