package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/railzwaylabs/metron/internal/audit/domain"
	"github.com/railzwaylabs/metron/internal/clock"
	"github.com/railzwaylabs/metron/internal/config"
	"github.com/railzwaylabs/metron/internal/invoice/domain"
	"github.com/railzwaylabs/metron/internal/invoice/render"
	configdomain "github.com/railzwaylabs/metron/internal/invoicingconfig/domain"
	"github.com/railzwaylabs/metron/internal/issuer"
	"github.com/railzwaylabs/metron/internal/orgcontext"
	"github.com/railzwaylabs/metron/internal/proration"
	slotdomain "github.com/railzwaylabs/metron/internal/slot/domain"
	subscriptiondomain "github.com/railzwaylabs/metron/internal/subscription/domain"
	"github.com/railzwaylabs/metron/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Issue errors are persisted on the invoice row; cap them so one huge
// provider response cannot bloat the table.
const maxIssueErrorLen = 1024

type Service struct {
	db  *gorm.DB
	log *zap.Logger
	cfg config.Config

	clock            clock.Clock
	repo             domain.Repository
	subscriptionRepo subscriptiondomain.Repository
	slotRepo         slotdomain.Repository
	issuers          *issuer.Registry
	configSvc        configdomain.Service
	audit            auditdomain.Recorder
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock

	Repo             domain.Repository
	SubscriptionRepo subscriptiondomain.Repository
	SlotRepo         slotdomain.Repository
	Issuers          *issuer.Registry
	ConfigSvc        configdomain.Service
	Audit            auditdomain.Recorder
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("invoice.service"),
		cfg: p.Cfg,

		clock:            p.Clock,
		repo:             p.Repo,
		subscriptionRepo: p.SubscriptionRepo,
		slotRepo:         p.SlotRepo,
		issuers:          p.Issuers,
		configSvc:        p.ConfigSvc,
		audit:            p.Audit,
	}
}

func (s *Service) Get(ctx context.Context, id string) (domain.Invoice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Invoice{}, domain.ErrInvalidOrganization
	}

	invoiceID, err := snowflake.ParseString(id)
	if err != nil {
		return domain.Invoice{}, domain.ErrInvalidInvoice
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if item == nil {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoicesRequest) (domain.ListInvoicesResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListInvoicesResponse{}, domain.ErrInvalidOrganization
	}

	var filter domain.ListFilter
	if req.CustomerID != "" {
		id, err := snowflake.ParseString(req.CustomerID)
		if err != nil {
			return domain.ListInvoicesResponse{}, domain.ErrInvalidInvoice
		}
		filter.CustomerID = id
	}
	if req.SubscriptionID != "" {
		id, err := snowflake.ParseString(req.SubscriptionID)
		if err != nil {
			return domain.ListInvoicesResponse{}, domain.ErrInvalidInvoice
		}
		filter.SubscriptionID = id
	}
	if req.Status != "" {
		filter.Status = domain.InvoiceStatus(req.Status)
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListInvoicesResponse{}, err
	}

	info := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Invoice) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String(), CreatedAt: item.CreatedAt.Format(time.RFC3339Nano)})
		return token
	})

	if len(items) > int(pageSize) {
		items = items[:pageSize]
	}
	resp := domain.ListInvoicesResponse{Invoices: make([]domain.Invoice, 0, len(items))}
	for _, item := range items {
		resp.Invoices = append(resp.Invoices, *item)
	}
	if info != nil {
		resp.PageInfo = *info
	}
	return resp, nil
}

func (s *Service) RenderPDF(ctx context.Context, id string) ([]byte, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return render.PDF(&item)
}

func (s *Service) Void(ctx context.Context, id string) (domain.Invoice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Invoice{}, domain.ErrInvalidOrganization
	}

	invoiceID, err := snowflake.ParseString(id)
	if err != nil {
		return domain.Invoice{}, domain.ErrInvalidInvoice
	}

	now := s.clock.Now(ctx)
	rows, err := s.repo.Void(ctx, s.db, orgID, invoiceID, now)
	if err != nil {
		return domain.Invoice{}, err
	}
	if rows == 0 {
		// Either missing or already finalized/void; disambiguate for the caller.
		item, err := s.repo.FindByID(ctx, s.db, orgID, invoiceID)
		if err != nil {
			return domain.Invoice{}, err
		}
		if item == nil {
			return domain.Invoice{}, domain.ErrInvoiceNotFound
		}
		return domain.Invoice{}, domain.ErrInvoiceImmutable
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	s.log.Info("invoice voided", zap.String("invoice_id", id))
	s.audit.Record(ctx, auditdomain.Event{
		OrgID:      orgID,
		Action:     auditdomain.ActionInvoiceVoided,
		TargetType: "invoice",
		TargetID:   invoiceID,
	})
	return *item, nil
}

func (s *Service) AdvancePending(ctx context.Context) (int64, error) {
	now := s.clock.Now(ctx)
	moved, err := s.repo.MarkPendingBatch(ctx, s.db, now, s.cfg.Invoicing.DefaultGracePeriodHours, s.cfg.Scheduler.BatchSize)
	if err != nil {
		return 0, err
	}
	if moved > 0 {
		s.log.Info("advanced draft invoices", zap.Int64("count", moved))
	}
	return moved, nil
}

func (s *Service) SweepToFinalize(ctx context.Context, cursor snowflake.ID, limit int) (domain.Sweep, error) {
	now := s.clock.Now(ctx)
	return s.repo.ListToFinalize(ctx, s.db, now, s.cfg.Invoicing.DefaultGracePeriodHours, cursor, limit)
}

func (s *Service) SweepOutdated(ctx context.Context, cursor snowflake.ID, limit int) (domain.Sweep, error) {
	return s.repo.ListOutdated(ctx, s.db, s.clock.Now(ctx), cursor, limit)
}

func (s *Service) SweepToIssue(ctx context.Context, cursor snowflake.ID, limit int) (domain.Sweep, error) {
	return s.repo.ListToIssue(ctx, s.db, s.cfg.Scheduler.MaxIssueAttempts, cursor, limit)
}

// Finalize freezes one invoice. Stale data is recomputed first so the frozen
// amounts reflect the ledger as of finalization. The transition itself is a
// guarded update; losing the race to another worker is not an error.
func (s *Service) Finalize(ctx context.Context, invoice *domain.Invoice) (bool, error) {
	now := s.clock.Now(ctx)

	if s.isOutdated(invoice, now) {
		if _, err := s.Recompute(ctx, invoice); err != nil {
			return false, err
		}
	}

	rows, err := s.repo.Finalize(ctx, s.db, invoice.OrgID, invoice.ID, now)
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}
	s.log.Info("invoice finalized",
		zap.String("invoice_id", invoice.ID.String()),
		zap.Int64("amount_cents", invoice.AmountCents),
	)
	s.audit.Record(ctx, auditdomain.Event{
		OrgID:      invoice.OrgID,
		Action:     auditdomain.ActionInvoiceFinalized,
		TargetType: "invoice",
		TargetID:   invoice.ID,
		Metadata:   map[string]any{"amount_cents": invoice.AmountCents},
	})
	return true, nil
}

// Recompute re-prices the invoice's component lines against the current
// subscription and slot ledger. Full-period lines refresh their seat count
// from the ledger; mid-period proration lines keep the delta they were cut
// for. The write is guarded on the invoice still being open.
func (s *Service) Recompute(ctx context.Context, invoice *domain.Invoice) (bool, error) {
	now := s.clock.Now(ctx)

	lines, err := invoice.Lines()
	if err != nil {
		return false, err
	}

	refreshed, err := s.refreshLines(ctx, invoice, lines)
	if err != nil {
		return false, err
	}

	next := domain.Invoice{}
	if err := next.SetLines(refreshed); err != nil {
		return false, err
	}

	rows, err := s.repo.UpdateLines(ctx, s.db, invoice.OrgID, invoice.ID, next.LineItems, next.AmountCents, now)
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	invoice.LineItems = next.LineItems
	invoice.AmountCents = next.AmountCents
	invoice.DataUpdatedAt = &now
	return true, nil
}

// Issue delivers one finalized invoice to its provider. Both outcomes bump
// the attempt counter; only the guarded success update flips issued, so two
// workers racing on the same invoice cannot double-issue.
func (s *Service) Issue(ctx context.Context, invoice *domain.Invoice) (bool, error) {
	if invoice.Status != domain.InvoiceStatusFinalized ||
		invoice.Issued ||
		invoice.InvoicingProvider == domain.ProviderManual ||
		invoice.IssueAttempts >= s.cfg.Scheduler.MaxIssueAttempts {
		return false, domain.ErrIssueNotEligible
	}

	provider, ok := s.issuers.Lookup(invoice.InvoicingProvider)
	if !ok {
		return false, domain.ErrUnknownProvider
	}

	now := s.clock.Now(ctx)
	if err := provider.Issue(ctx, invoice); err != nil {
		message := err.Error()
		if len(message) > maxIssueErrorLen {
			message = message[:maxIssueErrorLen]
		}
		if _, recordErr := s.repo.IssueError(ctx, s.db, invoice.OrgID, invoice.ID, message, now); recordErr != nil {
			return false, recordErr
		}
		s.log.Warn("invoice issue failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("provider", invoice.InvoicingProvider),
			zap.Error(err),
		)
		return false, nil
	}

	rows, err := s.repo.IssueSuccess(ctx, s.db, invoice.OrgID, invoice.ID, now)
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}
	s.log.Info("invoice issued",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("provider", invoice.InvoicingProvider),
	)
	s.audit.Record(ctx, auditdomain.Event{
		OrgID:      invoice.OrgID,
		Action:     auditdomain.ActionInvoiceIssued,
		TargetType: "invoice",
		TargetID:   invoice.ID,
		Metadata:   map[string]any{"provider": invoice.InvoicingProvider},
	})
	return true, nil
}

func (s *Service) isOutdated(invoice *domain.Invoice, now time.Time) bool {
	if invoice.DataUpdatedAt == nil {
		return true
	}
	return now.After(invoice.InvoiceDate.Add(time.Hour))
}

func (s *Service) refreshLines(ctx context.Context, invoice *domain.Invoice, lines []proration.Line) ([]proration.Line, error) {
	if invoice.SubscriptionID == nil {
		return lines, nil
	}

	subscription, err := s.subscriptionRepo.FindByID(ctx, s.db, invoice.OrgID, *invoice.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return lines, nil
	}

	components, err := s.subscriptionRepo.FindComponents(ctx, s.db, invoice.OrgID, *invoice.SubscriptionID)
	if err != nil {
		return nil, err
	}
	byID := make(map[snowflake.ID]*subscriptiondomain.Component, len(components))
	for _, c := range components {
		byID[c.ID] = c
	}

	refreshed := make([]proration.Line, 0, len(lines))
	for _, line := range lines {
		component, ok := byID[line.ComponentID]
		if !ok {
			refreshed = append(refreshed, line)
			continue
		}

		quantity := component.Quantity
		switch {
		case component.SeatBased() && line.PeriodFrom.Equal(invoice.PeriodStart):
			quantity, err = s.slotRepo.ActiveSlotsAt(ctx, s.db, invoice.OrgID, *invoice.SubscriptionID, component.ID, line.PeriodFrom)
			if err != nil {
				return nil, err
			}
		case component.SeatBased():
			// Mid-period proration line: the quantity is the committed delta,
			// not a ledger read.
			if line.Quantity != nil {
				quantity = *line.Quantity
			}
		}

		next, err := proration.ComputeLine(proration.LineParams{
			Name:        component.Name,
			ComponentID: component.ID,
			RateCents:   component.RateCents,
			Quantity:    quantity,
			PeriodStart: invoice.PeriodStart,
			Period:      subscription.BillingPeriod,
			From:        line.PeriodFrom,
			To:          line.PeriodTo,
		})
		if err != nil {
			return nil, err
		}
		if next != nil {
			refreshed = append(refreshed, *next)
		}
	}
	return refreshed, nil
}
