package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/railzwaylabs/metron/internal/clock"
	"github.com/railzwaylabs/metron/internal/config"
	invoicedomain "github.com/railzwaylabs/metron/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// scriptedService serves canned sweep pages and records which transitions
// were requested.
type scriptedService struct {
	advanceMoved int64
	advanceErr   error

	finalizePages []invoicedomain.Sweep
	finalizeCalls []snowflake.ID
	// finalizeResult maps invoice id to (applied, error).
	finalizeApplied map[snowflake.ID]bool
	finalizeErrs    map[snowflake.ID]error

	issuePages     []invoicedomain.Sweep
	recomputePages []invoicedomain.Sweep
}

func (s *scriptedService) Get(context.Context, string) (invoicedomain.Invoice, error) {
	return invoicedomain.Invoice{}, nil
}

func (s *scriptedService) List(context.Context, invoicedomain.ListInvoicesRequest) (invoicedomain.ListInvoicesResponse, error) {
	return invoicedomain.ListInvoicesResponse{}, nil
}

func (s *scriptedService) RenderPDF(context.Context, string) ([]byte, error) { return nil, nil }

func (s *scriptedService) Void(context.Context, string) (invoicedomain.Invoice, error) {
	return invoicedomain.Invoice{}, nil
}

func (s *scriptedService) AdvancePending(context.Context) (int64, error) {
	return s.advanceMoved, s.advanceErr
}

func (s *scriptedService) SweepToFinalize(_ context.Context, cursor snowflake.ID, _ int) (invoicedomain.Sweep, error) {
	return s.nextPage(&s.finalizePages), nil
}

func (s *scriptedService) SweepOutdated(context.Context, snowflake.ID, int) (invoicedomain.Sweep, error) {
	return s.nextPage(&s.recomputePages), nil
}

func (s *scriptedService) SweepToIssue(context.Context, snowflake.ID, int) (invoicedomain.Sweep, error) {
	return s.nextPage(&s.issuePages), nil
}

func (s *scriptedService) Finalize(_ context.Context, invoice *invoicedomain.Invoice) (bool, error) {
	s.finalizeCalls = append(s.finalizeCalls, invoice.ID)
	if err := s.finalizeErrs[invoice.ID]; err != nil {
		return false, err
	}
	return s.finalizeApplied[invoice.ID], nil
}

func (s *scriptedService) Recompute(context.Context, *invoicedomain.Invoice) (bool, error) {
	return true, nil
}

func (s *scriptedService) Issue(context.Context, *invoicedomain.Invoice) (bool, error) {
	return true, nil
}

func (s *scriptedService) nextPage(pages *[]invoicedomain.Sweep) invoicedomain.Sweep {
	if len(*pages) == 0 {
		return invoicedomain.Sweep{}
	}
	page := (*pages)[0]
	*pages = (*pages)[1:]
	return page
}

func newTestScheduler(t *testing.T, svc invoicedomain.Service) (*Scheduler, *gorm.DB, *clock.Manual, *prometheus.Registry) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&JobRun{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	registry := prometheus.NewRegistry()
	s := New(Param{
		DB:  db,
		Log: zap.NewNop(),
		Cfg: config.Config{Scheduler: config.SchedulerConfig{
			Interval:         time.Minute,
			BatchSize:        2,
			MaxIssueAttempts: 3,
		}},
		Clock:      clk,
		GenID:      node,
		Registry:   registry,
		InvoiceSvc: svc,
	})
	return s, db, clk, registry
}

func gatherFamily(t *testing.T, registry *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

func invoicesPage(node *snowflake.Node, n int) []invoicedomain.Invoice {
	items := make([]invoicedomain.Invoice, n)
	for i := range items {
		items[i] = invoicedomain.Invoice{ID: node.Generate(), OrgID: node.Generate()}
	}
	return items
}

func TestSweep_WalksAllPagesAndCountsOutcomes(t *testing.T) {
	node, _ := snowflake.NewNode(9)
	first := invoicesPage(node, 2)
	second := invoicesPage(node, 1)

	svc := &scriptedService{
		finalizePages: []invoicedomain.Sweep{
			{Items: first, HasMore: true, NextCursor: first[1].ID},
			{Items: second},
		},
		finalizeApplied: map[snowflake.ID]bool{
			first[0].ID:  true,
			first[1].ID:  false, // lost the race, a noop
			second[0].ID: false,
		},
		finalizeErrs: map[snowflake.ID]error{
			second[0].ID: errors.New("db timeout"),
		},
	}

	s, db, _, registry := newTestScheduler(t, svc)
	require.NoError(t, s.FinalizeInvoicesJob(context.Background()))

	// All three invoices were visited despite the per-invoice failure.
	assert.Len(t, svc.finalizeCalls, 3)

	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.transitions.WithLabelValues(jobFinalizeInvoices)))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.noops.WithLabelValues(jobFinalizeInvoices)))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.errors.WithLabelValues(jobFinalizeInvoices)))
	assert.Equal(t, float64(3), testutil.ToFloat64(s.metrics.swept.WithLabelValues(jobFinalizeInvoices)))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.sweeps.WithLabelValues(jobFinalizeInvoices)))

	// One histogram sample per batch.
	family := gatherFamily(t, registry, "metron_scheduler_batch_seconds")
	require.NotNil(t, family)
	require.Len(t, family.GetMetric(), 1)
	assert.Equal(t, uint64(2), family.GetMetric()[0].GetHistogram().GetSampleCount())

	var run JobRun
	require.NoError(t, db.Where("job_name = ?", jobFinalizeInvoices).First(&run).Error)
	assert.Equal(t, 2, run.Batches)
	assert.Equal(t, 3, run.Processed)
	assert.Equal(t, 1, run.Transitions)
	assert.Equal(t, 1, run.Noops)
	assert.Equal(t, 1, run.Errors)
	require.NotNil(t, run.FinishedAt)
}

func TestAdvancePendingJob_RecordsBulkMove(t *testing.T) {
	svc := &scriptedService{advanceMoved: 7}
	s, db, _, _ := newTestScheduler(t, svc)

	require.NoError(t, s.AdvancePendingJob(context.Background()))
	assert.Equal(t, float64(7), testutil.ToFloat64(s.metrics.transitions.WithLabelValues(jobAdvancePending)))

	var run JobRun
	require.NoError(t, db.Where("job_name = ?", jobAdvancePending).First(&run).Error)
	assert.Equal(t, 7, run.Transitions)
}

func TestJobRun_SharedWindowRow(t *testing.T) {
	svc := &scriptedService{advanceMoved: 1}
	s, db, clk, _ := newTestScheduler(t, svc)

	// Two passes inside the same scheduler window share one bookkeeping row.
	require.NoError(t, s.AdvancePendingJob(context.Background()))
	clk.Advance(10 * time.Second)
	require.NoError(t, s.AdvancePendingJob(context.Background()))

	var count int64
	require.NoError(t, db.Model(&JobRun{}).Where("job_name = ?", jobAdvancePending).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var run JobRun
	require.NoError(t, db.Where("job_name = ?", jobAdvancePending).First(&run).Error)
	assert.Equal(t, 2, run.Transitions)

	// The next window opens a fresh row.
	clk.Advance(time.Minute)
	require.NoError(t, s.AdvancePendingJob(context.Background()))
	require.NoError(t, db.Model(&JobRun{}).Where("job_name = ?", jobAdvancePending).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestRunOnce_RunsEveryJob(t *testing.T) {
	svc := &scriptedService{advanceMoved: 1}
	s, db, _, _ := newTestScheduler(t, svc)

	s.RunOnce(context.Background())

	var names []string
	require.NoError(t, db.Model(&JobRun{}).Order("id ASC").Pluck("job_name", &names).Error)
	assert.Equal(t, []string{jobAdvancePending, jobRecomputeInvoices, jobFinalizeInvoices, jobIssueInvoices}, names)
}

func TestRunOnce_StopsOnCanceledContext(t *testing.T) {
	svc := &scriptedService{}
	s, db, _, _ := newTestScheduler(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.RunOnce(ctx)

	var count int64
	require.NoError(t, db.Model(&JobRun{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRunForever_StopsOnCancel(t *testing.T) {
	svc := &scriptedService{}
	s, _, _, _ := newTestScheduler(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunForever(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler kept running after cancel")
	}
}

func TestJobRun_PrivateRowPersistsCounters(t *testing.T) {
	svc := &scriptedService{}
	s, db, _, _ := newTestScheduler(t, svc)

	ctx := context.Background()
	run := &JobRun{
		ID:        s.genID.Generate(),
		JobName:   jobFinalizeInvoices,
		StartedAt: s.clock.Now(ctx),
	}
	require.NoError(t, s.insertPrivateJobRun(ctx, run))

	run.Batches, run.Processed, run.Transitions = 1, 4, 2
	s.finishJobRun(ctx, run)

	// The private row exists, so the counters survive instead of updating
	// zero rows.
	var stored JobRun
	require.NoError(t, db.First(&stored, "id = ?", run.ID).Error)
	assert.Equal(t, 1, stored.Batches)
	assert.Equal(t, 4, stored.Processed)
	assert.Equal(t, 2, stored.Transitions)
	require.NotNil(t, stored.FinishedAt)
}
