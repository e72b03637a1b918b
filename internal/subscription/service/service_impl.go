package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/railzwaylabs/metron/internal/audit/domain"
	"github.com/railzwaylabs/metron/internal/clock"
	invoicedomain "github.com/railzwaylabs/metron/internal/invoice/domain"
	configdomain "github.com/railzwaylabs/metron/internal/invoicingconfig/domain"
	"github.com/railzwaylabs/metron/internal/orgcontext"
	"github.com/railzwaylabs/metron/internal/proration"
	slotdomain "github.com/railzwaylabs/metron/internal/slot/domain"
	"github.com/railzwaylabs/metron/internal/subscription/domain"
	"github.com/railzwaylabs/metron/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCurrency = "USD"

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo        domain.Repository
	invoiceRepo invoicedomain.Repository
	slotRepo    slotdomain.Repository
	configSvc   configdomain.Service
	audit       auditdomain.Recorder
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock

	Repo        domain.Repository
	InvoiceRepo invoicedomain.Repository
	SlotRepo    slotdomain.Repository
	ConfigSvc   configdomain.Service
	Audit       auditdomain.Recorder
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		clock: p.Clock,

		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		slotRepo:    p.SlotRepo,
		configSvc:   p.ConfigSvc,
		audit:       p.Audit,
	}
}

// Create opens the subscription, seeds the slot ledger with each SLOT
// component's opening quantity, and cuts the opening draft invoice, all in
// one transaction. The opening invoice covers [start, first billing day) and
// is prorated when that is shorter than a full committed period.
func (s *Service) Create(ctx context.Context, req domain.CreateSubscriptionRequest) (domain.CreateSubscriptionResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.CreateSubscriptionResponse{}, invoicedomain.ErrInvalidOrganization
	}

	customerID, err := snowflake.ParseString(req.CustomerID)
	if err != nil {
		return domain.CreateSubscriptionResponse{}, domain.ErrInvalidCustomer
	}

	period, err := proration.ParseBillingPeriod(req.BillingPeriod)
	if err != nil {
		return domain.CreateSubscriptionResponse{}, err
	}
	if len(req.Components) == 0 {
		return domain.CreateSubscriptionResponse{}, domain.ErrMissingComponents
	}
	if req.BillingDay < 1 || req.BillingDay > 31 {
		return domain.CreateSubscriptionResponse{}, domain.ErrInvalidBillingDay
	}
	for _, spec := range req.Components {
		switch domain.ComponentFeeType(spec.FeeType) {
		case domain.FeeTypeRate:
		case domain.FeeTypeSlot:
			if spec.Quantity <= 0 {
				return domain.CreateSubscriptionResponse{}, domain.ErrSlotQuantityRequired
			}
		default:
			return domain.CreateSubscriptionResponse{}, domain.ErrInvalidComponentFeeType
		}
	}

	now := s.clock.Now(ctx)
	start := req.Start
	if start.IsZero() {
		start = now
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	subscription := &domain.Subscription{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		CustomerID:    customerID,
		PlanName:      req.PlanName,
		Status:        domain.SubscriptionStatusActive,
		Currency:      currency,
		BillingPeriod: period,
		BillingDay:    req.BillingDay,
		NetTermsDays:  req.NetTermsDays,
		BillingStart:  start,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	subscription.CurrentPeriodStart = start
	subscription.CurrentPeriodEnd = subscription.FirstPeriodEnd()

	components := make([]*domain.Component, 0, len(req.Components))
	for _, spec := range req.Components {
		components = append(components, &domain.Component{
			ID:             s.genID.Generate(),
			OrgID:          orgID,
			SubscriptionID: subscription.ID,
			Name:           spec.Name,
			FeeType:        domain.ComponentFeeType(spec.FeeType),
			RateCents:      spec.RateCents,
			Quantity:       spec.Quantity,
			CreatedAt:      now,
		})
	}

	cfg, err := s.configSvc.Get(ctx, orgID)
	if err != nil {
		return domain.CreateSubscriptionResponse{}, err
	}

	var invoiceID snowflake.ID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, subscription); err != nil {
			return err
		}
		if err := s.repo.InsertComponents(ctx, tx, components); err != nil {
			return err
		}

		for _, component := range components {
			if !component.SeatBased() {
				continue
			}
			entry := &slotdomain.SlotTransaction{
				ID:              s.genID.Generate(),
				OrgID:           orgID,
				SubscriptionID:  subscription.ID,
				ComponentID:     component.ID,
				Delta:           component.Quantity,
				PrevActiveSlots: 0,
				ActiveSlots:     component.Quantity,
				EffectiveAt:     start,
				CreatedAt:       now,
			}
			if err := s.slotRepo.Append(ctx, tx, entry); err != nil {
				return err
			}
		}

		invoice, err := s.openingInvoice(subscription, components, cfg.Provider, now)
		if err != nil {
			return err
		}
		if err := s.invoiceRepo.Insert(ctx, tx, invoice); err != nil {
			return err
		}
		invoiceID = invoice.ID
		return nil
	})
	if err != nil {
		return domain.CreateSubscriptionResponse{}, err
	}

	s.log.Info("subscription created",
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("customer_id", customerID.String()),
		zap.String("invoice_id", invoiceID.String()),
	)
	s.audit.Record(ctx, auditdomain.Event{
		OrgID:      orgID,
		Action:     auditdomain.ActionSubscriptionCreated,
		TargetType: "subscription",
		TargetID:   subscription.ID,
		Metadata:   map[string]any{"invoice_id": invoiceID.String()},
	})

	resp := domain.CreateSubscriptionResponse{
		Subscription: *subscription,
		InvoiceID:    invoiceID.String(),
	}
	for _, component := range components {
		resp.Components = append(resp.Components, *component)
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Subscription, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Subscription{}, invoicedomain.ErrInvalidOrganization
	}

	subscriptionID, err := snowflake.ParseString(id)
	if err != nil {
		return domain.Subscription{}, domain.ErrInvalidSubscription
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, subscriptionID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if item == nil {
		return domain.Subscription{}, domain.ErrSubscriptionNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListSubscriptionsRequest) (domain.ListSubscriptionsResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListSubscriptionsResponse{}, invoicedomain.ErrInvalidOrganization
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, orgID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListSubscriptionsResponse{}, err
	}

	info := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Subscription) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String(), CreatedAt: item.CreatedAt.Format(time.RFC3339Nano)})
		return token
	})
	if len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	resp := domain.ListSubscriptionsResponse{Subscriptions: make([]domain.Subscription, 0, len(items))}
	for _, item := range items {
		resp.Subscriptions = append(resp.Subscriptions, *item)
	}
	if info != nil {
		resp.PageInfo = *info
	}
	return resp, nil
}

// Cancel stops the subscription at the end of the current period and voids
// its open invoices. The status update is guarded on ACTIVE, so a repeated
// cancel reports ErrAlreadyCanceled instead of moving timestamps around.
func (s *Service) Cancel(ctx context.Context, id string) (domain.Subscription, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Subscription{}, invoicedomain.ErrInvalidOrganization
	}

	subscriptionID, err := snowflake.ParseString(id)
	if err != nil {
		return domain.Subscription{}, domain.ErrInvalidSubscription
	}

	subscription, err := s.repo.FindByID(ctx, s.db, orgID, subscriptionID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if subscription == nil {
		return domain.Subscription{}, domain.ErrSubscriptionNotFound
	}

	now := s.clock.Now(ctx)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.repo.Cancel(ctx, tx, orgID, subscriptionID, subscription.CurrentPeriodEnd, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrAlreadyCanceled
		}

		voided, err := s.invoiceRepo.VoidOpenBySubscription(ctx, tx, orgID, subscriptionID, now)
		if err != nil {
			return err
		}
		if voided > 0 {
			s.log.Info("voided open invoices on cancel",
				zap.String("subscription_id", id),
				zap.Int64("count", voided),
			)
		}
		return nil
	})
	if err != nil {
		return domain.Subscription{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, subscriptionID)
	if err != nil {
		return domain.Subscription{}, err
	}
	s.audit.Record(ctx, auditdomain.Event{
		OrgID:      orgID,
		Action:     auditdomain.ActionSubscriptionCanceled,
		TargetType: "subscription",
		TargetID:   subscriptionID,
	})
	return *item, nil
}

func (s *Service) openingInvoice(subscription *domain.Subscription, components []*domain.Component, provider string, now time.Time) (*invoicedomain.Invoice, error) {
	lines := make([]proration.Line, 0, len(components))
	for _, component := range components {
		line, err := proration.ComputeLine(proration.LineParams{
			Name:        component.Name,
			ComponentID: component.ID,
			RateCents:   component.RateCents,
			Quantity:    component.Quantity,
			PeriodStart: subscription.CurrentPeriodStart,
			Period:      subscription.BillingPeriod,
			From:        subscription.CurrentPeriodStart,
			To:          subscription.CurrentPeriodEnd,
		})
		if err != nil {
			return nil, err
		}
		if line != nil {
			lines = append(lines, *line)
		}
	}

	subscriptionID := subscription.ID
	invoice := &invoicedomain.Invoice{
		ID:                s.genID.Generate(),
		OrgID:             subscription.OrgID,
		CustomerID:        subscription.CustomerID,
		SubscriptionID:    &subscriptionID,
		InvoiceNumber:     invoicedomain.NewInvoiceNumber(),
		Currency:          subscription.Currency,
		Status:            invoicedomain.InvoiceStatusDraft,
		ExternalStatus:    invoicedomain.ExternalStatusNotIssued,
		InvoicingProvider: provider,
		InvoiceDate:       subscription.CurrentPeriodStart,
		PeriodStart:       subscription.CurrentPeriodStart,
		PeriodEnd:         subscription.CurrentPeriodEnd,
		DataUpdatedAt:     &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := invoice.SetLines(lines); err != nil {
		return nil, err
	}
	return invoice, nil
}
