package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/railzwaylabs/metron/internal/invoice/domain"
	"github.com/railzwaylabs/metron/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Limit(1).
		Find(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter invoicedomain.ListFilter, page pagination.Pagination) ([]*invoicedomain.Invoice, error) {
	query := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("org_id = ?", orgID)

	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.SubscriptionID != 0 {
		query = query.Where("subscription_id = ?", filter.SubscriptionID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

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
		// Over-fetch one row so the caller can detect another page.
		query = query.Limit(page.PageSize + 1)
	}

	var items []*invoicedomain.Invoice
	if err := query.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkPendingBatch(ctx context.Context, db *gorm.DB, now time.Time, defaultGraceHours, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	// Candidates are paged by id so the scan stays bounded no matter how
	// many drafts are past their invoice date.
	var moved int64
	var cursor snowflake.ID
	for {
		var candidates []invoicedomain.Invoice
		if err := db.WithContext(ctx).
			Select("id", "org_id", "invoice_date").
			Where("id > ? AND status = ? AND invoice_date < ?", cursor, invoicedomain.InvoiceStatusDraft, now).
			Order("id ASC").
			Limit(batchSize).
			Find(&candidates).Error; err != nil {
			return moved, err
		}
		if len(candidates) == 0 {
			return moved, nil
		}
		cursor = candidates[len(candidates)-1].ID

		grace, err := r.graceByOrg(ctx, db, candidates, defaultGraceHours)
		if err != nil {
			return moved, err
		}

		ids := make([]snowflake.ID, 0, len(candidates))
		for _, inv := range candidates {
			deadline := inv.InvoiceDate.Add(time.Duration(grace[inv.OrgID]) * time.Hour)
			if !now.After(deadline) {
				ids = append(ids, inv.ID)
			}
		}
		if len(ids) > 0 {
			// Guarded on DRAFT so a concurrent finalize or void wins cleanly.
			result := db.WithContext(ctx).
				Model(&invoicedomain.Invoice{}).
				Where("id IN ? AND status = ?", ids, invoicedomain.InvoiceStatusDraft).
				Updates(map[string]any{
					"status":     invoicedomain.InvoiceStatusPending,
					"updated_at": now,
				})
			if result.Error != nil {
				return moved, result.Error
			}
			moved += result.RowsAffected
		}

		if len(candidates) < batchSize {
			return moved, nil
		}
	}
}

func (r *repo) ListToFinalize(ctx context.Context, db *gorm.DB, now time.Time, defaultGraceHours int, cursor snowflake.ID, limit int) (invoicedomain.Sweep, error) {
	scanned, err := r.scanPage(ctx, db, cursor, limit, func(q *gorm.DB) *gorm.DB {
		return q.Where("status NOT IN ?", terminalStatuses()).
			Where("invoice_date < ?", now)
	})
	if err != nil {
		return invoicedomain.Sweep{}, err
	}

	grace, err := r.graceByOrg(ctx, db, scanned.Items, defaultGraceHours)
	if err != nil {
		return invoicedomain.Sweep{}, err
	}

	eligible := scanned.Items[:0]
	for _, inv := range scanned.Items {
		deadline := inv.InvoiceDate.Add(time.Duration(grace[inv.OrgID]) * time.Hour)
		if now.After(deadline) {
			eligible = append(eligible, inv)
		}
	}
	scanned.Items = eligible
	return scanned, nil
}

func (r *repo) ListOutdated(ctx context.Context, db *gorm.DB, now time.Time, cursor snowflake.ID, limit int) (invoicedomain.Sweep, error) {
	staleAfter := now.Add(-time.Hour)
	return r.scanPage(ctx, db, cursor, limit, func(q *gorm.DB) *gorm.DB {
		return q.Where("status NOT IN ?", terminalStatuses()).
			Where("data_updated_at IS NULL OR invoice_date < ?", staleAfter)
	})
}

func (r *repo) ListToIssue(ctx context.Context, db *gorm.DB, maxAttempts int, cursor snowflake.ID, limit int) (invoicedomain.Sweep, error) {
	return r.scanPage(ctx, db, cursor, limit, func(q *gorm.DB) *gorm.DB {
		return q.Where("status = ?", invoicedomain.InvoiceStatusFinalized).
			Where("invoicing_provider <> ?", invoicedomain.ProviderManual).
			Where("issued = ?", false).
			Where("issue_attempts < ?", maxAttempts)
	})
}

func (r *repo) Finalize(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND org_id = ? AND status NOT IN ?", id, orgID, terminalStatuses()).
		Updates(map[string]any{
			"status":          invoicedomain.InvoiceStatusFinalized,
			"finalized_at":    now,
			"data_updated_at": now,
			"updated_at":      now,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) Void(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND org_id = ? AND status IN ?", id, orgID, openStatuses()).
		Updates(map[string]any{
			"status":     invoicedomain.InvoiceStatusVoid,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) VoidOpenBySubscription(ctx context.Context, db *gorm.DB, orgID, subscriptionID snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("org_id = ? AND subscription_id = ? AND status IN ?", orgID, subscriptionID, openStatuses()).
		Updates(map[string]any{
			"status":     invoicedomain.InvoiceStatusVoid,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) UpdateLines(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, lines datatypes.JSON, amountCents int64, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND org_id = ? AND status IN ?", id, orgID, openStatuses()).
		Updates(map[string]any{
			"line_items":      lines,
			"amount_cents":    amountCents,
			"data_updated_at": now,
			"updated_at":      now,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) IssueSuccess(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND org_id = ? AND status = ? AND issued = ?", id, orgID, invoicedomain.InvoiceStatusFinalized, false).
		Updates(map[string]any{
			"issued":                true,
			"external_status":       invoicedomain.ExternalStatusIssued,
			"issue_attempts":        gorm.Expr("issue_attempts + 1"),
			"last_issue_attempt_at": now,
			"updated_at":            now,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) IssueError(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, message string, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND org_id = ? AND status = ? AND issued = ?", id, orgID, invoicedomain.InvoiceStatusFinalized, false).
		Updates(map[string]any{
			"external_status":       invoicedomain.ExternalStatusIssueError,
			"last_issue_error":      message,
			"issue_attempts":        gorm.Expr("issue_attempts + 1"),
			"last_issue_attempt_at": now,
			"updated_at":            now,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) FindConfig(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*invoicedomain.InvoicingConfig, error) {
	var cfg invoicedomain.InvoicingConfig
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Limit(1).
		Find(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.OrgID == 0 {
		return nil, nil
	}
	return &cfg, nil
}

func (r *repo) UpsertConfig(ctx context.Context, db *gorm.DB, cfg *invoicedomain.InvoicingConfig) error {
	result := db.WithContext(ctx).
		Model(&invoicedomain.InvoicingConfig{}).
		Where("org_id = ?", cfg.OrgID).
		Updates(map[string]any{
			"grace_period_hours": cfg.GracePeriodHours,
			"provider":           cfg.Provider,
			"updated_at":         cfg.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Create(cfg).Error
}

// scanPage reads one cursor page ordered by id ascending, over-fetching one
// row to detect whether the sweep has more work.
func (r *repo) scanPage(ctx context.Context, db *gorm.DB, cursor snowflake.ID, limit int, scope func(*gorm.DB) *gorm.DB) (invoicedomain.Sweep, error) {
	query := scope(db.WithContext(ctx).Model(&invoicedomain.Invoice{}))
	if cursor != 0 {
		query = query.Where("id > ?", cursor)
	}

	var items []invoicedomain.Invoice
	if err := query.Order("id ASC").Limit(limit + 1).Find(&items).Error; err != nil {
		return invoicedomain.Sweep{}, err
	}

	sweep := invoicedomain.Sweep{Items: items}
	if len(items) > limit {
		sweep.Items = items[:limit]
		sweep.HasMore = true
		sweep.NextCursor = items[limit-1].ID
	}
	return sweep, nil
}

func (r *repo) graceByOrg(ctx context.Context, db *gorm.DB, invoices []invoicedomain.Invoice, defaultGraceHours int) (map[snowflake.ID]int, error) {
	grace := make(map[snowflake.ID]int, len(invoices))
	orgIDs := make([]snowflake.ID, 0, len(invoices))
	for _, inv := range invoices {
		if _, seen := grace[inv.OrgID]; !seen {
			grace[inv.OrgID] = defaultGraceHours
			orgIDs = append(orgIDs, inv.OrgID)
		}
	}
	if len(orgIDs) == 0 {
		return grace, nil
	}

	var configs []invoicedomain.InvoicingConfig
	if err := db.WithContext(ctx).
		Where("org_id IN ?", orgIDs).
		Find(&configs).Error; err != nil {
		return nil, err
	}
	for _, cfg := range configs {
		grace[cfg.OrgID] = cfg.GracePeriodHours
	}
	return grace, nil
}

func terminalStatuses() []invoicedomain.InvoiceStatus {
	return []invoicedomain.InvoiceStatus{invoicedomain.InvoiceStatusFinalized, invoicedomain.InvoiceStatusVoid}
}

func openStatuses() []invoicedomain.InvoiceStatus {
	return []invoicedomain.InvoiceStatus{invoicedomain.InvoiceStatusDraft, invoicedomain.InvoiceStatusPending}
}
