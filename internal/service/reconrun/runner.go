package reconrun

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainerrors "github.com/contaflow/sii-reconciliation-backend/internal/domain/errors"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
	"github.com/contaflow/sii-reconciliation-backend/internal/service/dashboard"
	"github.com/contaflow/sii-reconciliation-backend/internal/service/taxrecon"
)

// TaxReconciler runs the SII-versus-ERP comparison for one company/period
type TaxReconciler interface {
	Reconcile(ctx context.Context, companyID uuid.UUID, period values.Period) ([]taxrecon.Detail, error)
}

// DashboardBuilder assembles the bank reconciliation view for one company
type DashboardBuilder interface {
	Build(ctx context.Context, companyID uuid.UUID) (*dashboard.Snapshot, error)
}

// CompanyResult is the outcome of one company's run. TaxErr and
// DashboardErr are independent: a failed SII fetch does not discard the
// bank view, and vice versa.
type CompanyResult struct {
	CompanyID    uuid.UUID
	TaxDetails   []taxrecon.Detail
	TaxErr       error
	Dashboard    *dashboard.Snapshot
	DashboardErr error
	Elapsed      time.Duration
}

// Failed reports whether either half of the run failed
func (r CompanyResult) Failed() bool {
	return r.TaxErr != nil || r.DashboardErr != nil
}

// Runner executes reconciliation runs across companies with bounded
// parallelism. One slow or failing company never blocks or poisons the
// others.
type Runner struct {
	tax         TaxReconciler
	dashboards  DashboardBuilder
	concurrency int
	logger      *zap.Logger
}

// NewRunner creates a reconciliation runner. Concurrency below one is
// clamped to one.
func NewRunner(tax TaxReconciler, dashboards DashboardBuilder, concurrency int, logger *zap.Logger) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		tax:         tax,
		dashboards:  dashboards,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run reconciles every company for the period. Results come back in
// company ID order regardless of completion order. The error is non-nil
// only when the run could not start or the context was cancelled;
// per-company failures live inside the results.
func (r *Runner) Run(ctx context.Context, companyIDs []uuid.UUID, period values.Period) ([]CompanyResult, error) {
	if len(companyIDs) == 0 {
		return []CompanyResult{}, nil
	}

	start := time.Now()
	r.logger.Info("reconciliation run starting",
		zap.String("period", period.String()),
		zap.Int("companies", len(companyIDs)),
		zap.Int("concurrency", r.concurrency))

	jobs := make(chan uuid.UUID)
	results := make(chan CompanyResult, len(companyIDs))

	var wg sync.WaitGroup
	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for companyID := range jobs {
				results <- r.runCompany(ctx, companyID, period)
			}
		}()
	}

	var cancelled error
feed:
	for _, companyID := range companyIDs {
		select {
		case jobs <- companyID:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	collected := make([]CompanyResult, 0, len(companyIDs))
	failures := 0
	for result := range results {
		if result.Failed() {
			failures++
		}
		collected = append(collected, result)
	}
	sort.Slice(collected, func(i, j int) bool {
		return collected[i].CompanyID.String() < collected[j].CompanyID.String()
	})

	r.logger.Info("reconciliation run finished",
		zap.String("period", period.String()),
		zap.Int("companies", len(collected)),
		zap.Int("failures", failures),
		zap.Duration("elapsed", time.Since(start)))

	if cancelled != nil {
		return collected, domainerrors.Wrap(cancelled, "reconciliation run cancelled")
	}
	return collected, nil
}

// runCompany executes both halves of one company's run. The halves are
// sequential per company; parallelism lives at the company level.
func (r *Runner) runCompany(ctx context.Context, companyID uuid.UUID, period values.Period) CompanyResult {
	start := time.Now()
	result := CompanyResult{CompanyID: companyID}

	result.TaxDetails, result.TaxErr = r.tax.Reconcile(ctx, companyID, period)
	if result.TaxErr != nil {
		r.logger.Warn("tax reconciliation failed",
			zap.String("company_id", companyID.String()),
			zap.String("period", period.String()),
			zap.Error(result.TaxErr))
	}

	result.Dashboard, result.DashboardErr = r.dashboards.Build(ctx, companyID)
	if result.DashboardErr != nil {
		r.logger.Warn("dashboard build failed",
			zap.String("company_id", companyID.String()),
			zap.Error(result.DashboardErr))
	}

	result.Elapsed = time.Since(start)
	return result
}
