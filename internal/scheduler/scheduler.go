// Package scheduler drives invoices through their lifecycle in the
// background. Each job is a cursor-paginated sweep over the invoice table;
// the per-invoice transitions are guarded updates, so any number of workers
// can run the same sweep concurrently and each eligible invoice transitions
// exactly once.
package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/railzwaylabs/metron/internal/clock"
	"github.com/railzwaylabs/metron/internal/config"
	invoicedomain "github.com/railzwaylabs/metron/internal/invoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	jobAdvancePending    = "advance_pending"
	jobFinalizeInvoices  = "finalize_invoices"
	jobRecomputeInvoices = "recompute_invoices"
	jobIssueInvoices     = "issue_invoices"
)

type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     config.Config
	clock   clock.Clock
	genID   *snowflake.Node
	metrics *metrics

	invoiceSvc invoicedomain.Service
}

type Param struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	Clock      clock.Clock
	GenID      *snowflake.Node
	Registry   *prometheus.Registry
	InvoiceSvc invoicedomain.Service
}

func New(p Param) *Scheduler {
	return &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler"),
		cfg:     p.Cfg,
		clock:   p.Clock,
		genID:   p.GenID,
		metrics: newMetrics(p.Registry),

		invoiceSvc: p.InvoiceSvc,
	}
}

// RunForever runs every job once per interval until the context is canceled.
func (s *Scheduler) RunForever(ctx context.Context) error {
	interval := s.cfg.Scheduler.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", zap.Duration("interval", interval))
	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs all four jobs in dependency order: drafts advance before the
// finalize sweep, data is recomputed before issuance reads frozen amounts.
func (s *Scheduler) RunOnce(ctx context.Context) {
	jobs := []struct {
		name string
		run  func(context.Context) error
	}{
		{jobAdvancePending, s.AdvancePendingJob},
		{jobRecomputeInvoices, s.RecomputeInvoicesJob},
		{jobFinalizeInvoices, s.FinalizeInvoicesJob},
		{jobIssueInvoices, s.IssueInvoicesJob},
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		if err := job.run(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("job failed", zap.String("job", job.name), zap.Error(err))
		}
	}
}

func (s *Scheduler) AdvancePendingJob(ctx context.Context) error {
	run, owner, err := s.ensureJobRun(ctx, jobAdvancePending)
	if err != nil {
		return err
	}
	if owner {
		s.log.Info("job started", zap.String("job", jobAdvancePending))
	}
	defer s.finishJobRun(ctx, run)

	start := time.Now()
	moved, err := s.invoiceSvc.AdvancePending(ctx)
	s.metrics.duration.WithLabelValues(jobAdvancePending).Observe(time.Since(start).Seconds())
	if err != nil {
		run.Errors++
		s.metrics.errors.WithLabelValues(jobAdvancePending).Inc()
		return err
	}

	run.Batches++
	run.Processed += int(moved)
	run.Transitions += int(moved)
	s.metrics.sweeps.WithLabelValues(jobAdvancePending).Inc()
	s.metrics.transitions.WithLabelValues(jobAdvancePending).Add(float64(moved))
	return nil
}

func (s *Scheduler) FinalizeInvoicesJob(ctx context.Context) error {
	return s.sweep(ctx, jobFinalizeInvoices, s.invoiceSvc.SweepToFinalize, s.invoiceSvc.Finalize)
}

func (s *Scheduler) RecomputeInvoicesJob(ctx context.Context) error {
	return s.sweep(ctx, jobRecomputeInvoices, s.invoiceSvc.SweepOutdated, s.invoiceSvc.Recompute)
}

func (s *Scheduler) IssueInvoicesJob(ctx context.Context) error {
	return s.sweep(ctx, jobIssueInvoices, s.invoiceSvc.SweepToIssue, s.invoiceSvc.Issue)
}

type sweepFunc func(ctx context.Context, cursor snowflake.ID, limit int) (invoicedomain.Sweep, error)

type transitionFunc func(ctx context.Context, invoice *invoicedomain.Invoice) (bool, error)

// sweep walks one eligibility predicate to exhaustion in bounded batches.
// The cursor makes the walk restartable; a failed transition is counted and
// skipped so one bad invoice cannot wedge the backlog behind it.
func (s *Scheduler) sweep(ctx context.Context, job string, list sweepFunc, apply transitionFunc) error {
	run, owner, err := s.ensureJobRun(ctx, job)
	if err != nil {
		return err
	}
	if owner {
		s.log.Info("job started", zap.String("job", job))
	}
	defer s.finishJobRun(ctx, run)

	batchSize := s.cfg.Scheduler.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	var cursor snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		page, err := list(ctx, cursor, batchSize)
		if err != nil {
			run.Errors++
			s.metrics.errors.WithLabelValues(job).Inc()
			return err
		}

		for i := range page.Items {
			invoice := &page.Items[i]
			applied, err := apply(ctx, invoice)
			run.Processed++
			s.metrics.swept.WithLabelValues(job).Inc()
			switch {
			case err != nil:
				run.Errors++
				s.metrics.errors.WithLabelValues(job).Inc()
				s.log.Warn("transition failed",
					zap.String("job", job),
					zap.String("invoice_id", invoice.ID.String()),
					zap.Error(err),
				)
			case applied:
				run.Transitions++
				s.metrics.transitions.WithLabelValues(job).Inc()
			default:
				run.Noops++
				s.metrics.noops.WithLabelValues(job).Inc()
			}
		}

		run.Batches++
		s.metrics.duration.WithLabelValues(job).Observe(time.Since(start).Seconds())

		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	s.metrics.sweeps.WithLabelValues(job).Inc()
	return nil
}
