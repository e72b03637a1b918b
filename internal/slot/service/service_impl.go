package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/railzwaylabs/metron/internal/audit/domain"
	"github.com/railzwaylabs/metron/internal/clock"
	invoicedomain "github.com/railzwaylabs/metron/internal/invoice/domain"
	configdomain "github.com/railzwaylabs/metron/internal/invoicingconfig/domain"
	"github.com/railzwaylabs/metron/internal/orgcontext"
	"github.com/railzwaylabs/metron/internal/proration"
	"github.com/railzwaylabs/metron/internal/slot/domain"
	subscriptiondomain "github.com/railzwaylabs/metron/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo             domain.Repository
	subscriptionRepo subscriptiondomain.Repository
	invoiceRepo      invoicedomain.Repository
	configSvc        configdomain.Service
	audit            auditdomain.Recorder
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock

	Repo             domain.Repository
	SubscriptionRepo subscriptiondomain.Repository
	InvoiceRepo      invoicedomain.Repository
	ConfigSvc        configdomain.Service
	Audit            auditdomain.Recorder
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("slot.service"),
		genID: p.GenID,
		clock: p.Clock,

		repo:             p.Repo,
		subscriptionRepo: p.SubscriptionRepo,
		invoiceRepo:      p.InvoiceRepo,
		configSvc:        p.ConfigSvc,
		audit:            p.Audit,
	}
}

// ApplyDelta appends one ledger transaction. Increases take effect now and
// cut a proration invoice for the remainder of the period; decreases are
// stamped with the period end so they bill from the next period. A rejected
// decrease leaves both the ledger and the invoice table untouched.
func (s *Service) ApplyDelta(ctx context.Context, req domain.ApplyDeltaRequest) (domain.ApplyDeltaResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ApplyDeltaResponse{}, invoicedomain.ErrInvalidOrganization
	}
	if req.Delta == 0 {
		return domain.ApplyDeltaResponse{}, domain.ErrZeroDelta
	}

	subscription, component, err := s.resolve(ctx, orgID, req.SubscriptionID, req.ComponentID)
	if err != nil {
		return domain.ApplyDeltaResponse{}, err
	}

	now := s.clock.Now(ctx)
	var resp domain.ApplyDeltaResponse

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serialize concurrent writers on the component row before reading
		// the ledger; without it two decreases can both pass the floor
		// check against the same stale sum.
		if err := s.repo.LockComponent(ctx, tx, orgID, component.ID); err != nil {
			return err
		}

		effectiveAt := now
		if req.Delta < 0 {
			effectiveAt = subscription.CurrentPeriodEnd
		}

		// PrevActiveSlots is read at the entry's own effective instant; for a
		// decrease that is the period end, so already-deferred decreases
		// stack correctly in the floor check.
		prev, err := s.repo.ActiveSlotsAt(ctx, tx, orgID, subscription.ID, component.ID, effectiveAt)
		if err != nil {
			return err
		}
		if req.Delta < 0 && prev+req.Delta < 0 {
			return domain.ErrInsufficientSlots
		}

		entry := &domain.SlotTransaction{
			ID:              s.genID.Generate(),
			OrgID:           orgID,
			SubscriptionID:  subscription.ID,
			ComponentID:     component.ID,
			Delta:           req.Delta,
			PrevActiveSlots: prev,
			ActiveSlots:     prev + req.Delta,
			EffectiveAt:     effectiveAt,
			CreatedAt:       now,
		}
		if err := s.repo.Append(ctx, tx, entry); err != nil {
			return err
		}
		resp.TransactionID = entry.ID.String()

		if req.Delta > 0 {
			invoiceID, err := s.prorationInvoice(ctx, tx, subscription, component, req.Delta, now)
			if err != nil {
				return err
			}
			resp.InvoiceID = invoiceID.String()
		}

		active, err := s.repo.ActiveSlotsAt(ctx, tx, orgID, subscription.ID, component.ID, now)
		if err != nil {
			return err
		}
		resp.ActiveSlots = active
		return nil
	})
	if err != nil {
		return domain.ApplyDeltaResponse{}, err
	}

	s.log.Info("slot delta applied",
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("component_id", component.ID.String()),
		zap.Int64("delta", req.Delta),
		zap.Int64("active_slots", resp.ActiveSlots),
	)
	s.audit.Record(ctx, auditdomain.Event{
		OrgID:      orgID,
		Action:     auditdomain.ActionSlotDeltaApplied,
		TargetType: "subscription_component",
		TargetID:   component.ID,
		Metadata:   map[string]any{"delta": req.Delta, "active_slots": resp.ActiveSlots},
	})
	return resp, nil
}

func (s *Service) ActiveSlots(ctx context.Context, req domain.ActiveSlotsRequest) (int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, invoicedomain.ErrInvalidOrganization
	}

	subscription, component, err := s.resolve(ctx, orgID, req.SubscriptionID, req.ComponentID)
	if err != nil {
		return 0, err
	}
	return s.repo.ActiveSlotsAt(ctx, s.db, orgID, subscription.ID, component.ID, s.clock.Now(ctx))
}

func (s *Service) resolve(ctx context.Context, orgID snowflake.ID, subscriptionID, componentID string) (*subscriptiondomain.Subscription, *subscriptiondomain.Component, error) {
	subID, err := snowflake.ParseString(subscriptionID)
	if err != nil {
		return nil, nil, subscriptiondomain.ErrInvalidSubscription
	}
	compID, err := snowflake.ParseString(componentID)
	if err != nil {
		return nil, nil, domain.ErrInvalidComponent
	}

	subscription, err := s.subscriptionRepo.FindByID(ctx, s.db, orgID, subID)
	if err != nil {
		return nil, nil, err
	}
	if subscription == nil {
		return nil, nil, subscriptiondomain.ErrSubscriptionNotFound
	}

	component, err := s.subscriptionRepo.FindComponent(ctx, s.db, orgID, compID)
	if err != nil {
		return nil, nil, err
	}
	if component == nil || component.SubscriptionID != subscription.ID {
		return nil, nil, domain.ErrComponentNotFound
	}
	if !component.SeatBased() {
		return nil, nil, domain.ErrComponentNotSeated
	}
	return subscription, component, nil
}

// prorationInvoice cuts a draft invoice charging the added seats from now to
// the end of the current period. It is dated at the period start so it rides
// the same grace window as the period's main invoice.
func (s *Service) prorationInvoice(ctx context.Context, tx *gorm.DB, subscription *subscriptiondomain.Subscription, component *subscriptiondomain.Component, delta int64, now time.Time) (snowflake.ID, error) {
	line, err := proration.ComputeLine(proration.LineParams{
		Name:        component.Name,
		ComponentID: component.ID,
		RateCents:   component.RateCents,
		Quantity:    delta,
		PeriodStart: subscription.CurrentPeriodStart,
		Period:      subscription.BillingPeriod,
		From:        now,
		To:          subscription.CurrentPeriodEnd,
	})
	if err != nil {
		return 0, err
	}

	cfg, err := s.configSvc.Get(ctx, subscription.OrgID)
	if err != nil {
		return 0, err
	}

	subscriptionID := subscription.ID
	invoice := &invoicedomain.Invoice{
		ID:                s.genID.Generate(),
		OrgID:             subscription.OrgID,
		CustomerID:        subscription.CustomerID,
		SubscriptionID:    &subscriptionID,
		Currency:          subscription.Currency,
		Status:            invoicedomain.InvoiceStatusDraft,
		ExternalStatus:    invoicedomain.ExternalStatusNotIssued,
		InvoicingProvider: cfg.Provider,
		InvoiceDate:       subscription.CurrentPeriodStart,
		PeriodStart:       subscription.CurrentPeriodStart,
		PeriodEnd:         subscription.CurrentPeriodEnd,
		DataUpdatedAt:     &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	invoice.InvoiceNumber = invoicedomain.NewInvoiceNumber()

	var lines []proration.Line
	if line != nil {
		lines = append(lines, *line)
	}
	if err := invoice.SetLines(lines); err != nil {
		return 0, err
	}
	if err := s.invoiceRepo.Insert(ctx, tx, invoice); err != nil {
		return 0, err
	}
	return invoice.ID, nil
}
