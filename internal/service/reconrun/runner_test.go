package reconrun

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainerrors "github.com/contaflow/sii-reconciliation-backend/internal/domain/errors"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
	"github.com/contaflow/sii-reconciliation-backend/internal/service/dashboard"
	"github.com/contaflow/sii-reconciliation-backend/internal/service/taxrecon"
)

type stubTax struct {
	mu      sync.Mutex
	fail    map[uuid.UUID]error
	calls   []uuid.UUID
	active  int32
	maxSeen int32
	block   time.Duration
}

func (s *stubTax) Reconcile(_ context.Context, companyID uuid.UUID, _ values.Period) ([]taxrecon.Detail, error) {
	current := atomic.AddInt32(&s.active, 1)
	defer atomic.AddInt32(&s.active, -1)
	for {
		seen := atomic.LoadInt32(&s.maxSeen)
		if current <= seen || atomic.CompareAndSwapInt32(&s.maxSeen, seen, current) {
			break
		}
	}
	if s.block > 0 {
		time.Sleep(s.block)
	}

	s.mu.Lock()
	s.calls = append(s.calls, companyID)
	s.mu.Unlock()

	if err, ok := s.fail[companyID]; ok {
		return nil, err
	}
	return []taxrecon.Detail{}, nil
}

type stubDashboards struct {
	fail map[uuid.UUID]error
}

func (s *stubDashboards) Build(_ context.Context, companyID uuid.UUID) (*dashboard.Snapshot, error) {
	if err, ok := s.fail[companyID]; ok {
		return nil, err
	}
	return &dashboard.Snapshot{CompanyID: companyID}, nil
}

func testPeriod(t *testing.T) values.Period {
	t.Helper()
	period, err := values.ParsePeriod("2025-10")
	require.NoError(t, err)
	return period
}

func TestRunner_AllCompaniesSucceed(t *testing.T) {
	companies := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	tax := &stubTax{}
	runner := NewRunner(tax, &stubDashboards{}, 2, zap.NewNop())

	results, err := runner.Run(context.Background(), companies, testPeriod(t))
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, result := range results {
		assert.False(t, result.Failed())
		assert.NotNil(t, result.Dashboard)
	}
}

func TestRunner_FailuresAreIsolated(t *testing.T) {
	healthy := uuid.New()
	taxBroken := uuid.New()
	dashBroken := uuid.New()

	tax := &stubTax{fail: map[uuid.UUID]error{taxBroken: domainerrors.NewTransportError("sii timeout")}}
	dashboards := &stubDashboards{fail: map[uuid.UUID]error{dashBroken: domainerrors.NewInternalError("db down")}}
	runner := NewRunner(tax, dashboards, 2, zap.NewNop())

	results, err := runner.Run(context.Background(), []uuid.UUID{healthy, taxBroken, dashBroken}, testPeriod(t))
	require.NoError(t, err)
	require.Len(t, results, 3)

	byCompany := make(map[uuid.UUID]CompanyResult, len(results))
	for _, result := range results {
		byCompany[result.CompanyID] = result
	}

	assert.False(t, byCompany[healthy].Failed())

	assert.Error(t, byCompany[taxBroken].TaxErr)
	assert.NoError(t, byCompany[taxBroken].DashboardErr)
	assert.NotNil(t, byCompany[taxBroken].Dashboard, "tax failure must not discard the bank view")

	assert.NoError(t, byCompany[dashBroken].TaxErr)
	assert.Error(t, byCompany[dashBroken].DashboardErr)
}

func TestRunner_BoundedConcurrency(t *testing.T) {
	companies := make([]uuid.UUID, 8)
	for i := range companies {
		companies[i] = uuid.New()
	}

	tax := &stubTax{block: 20 * time.Millisecond}
	runner := NewRunner(tax, &stubDashboards{}, 3, zap.NewNop())

	results, err := runner.Run(context.Background(), companies, testPeriod(t))
	require.NoError(t, err)
	assert.Len(t, results, 8)
	assert.LessOrEqual(t, atomic.LoadInt32(&tax.maxSeen), int32(3))
}

func TestRunner_DeterministicResultOrder(t *testing.T) {
	companies := make([]uuid.UUID, 6)
	for i := range companies {
		companies[i] = uuid.New()
	}

	runner := NewRunner(&stubTax{}, &stubDashboards{}, 4, zap.NewNop())
	first, err := runner.Run(context.Background(), companies, testPeriod(t))
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), companies, testPeriod(t))
	require.NoError(t, err)

	for i := range first {
		assert.Equal(t, first[i].CompanyID, second[i].CompanyID)
	}
}

func TestRunner_EmptyCompanyList(t *testing.T) {
	runner := NewRunner(&stubTax{}, &stubDashboards{}, 2, zap.NewNop())
	results, err := runner.Run(context.Background(), nil, testPeriod(t))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunner_CancelledContext(t *testing.T) {
	companies := make([]uuid.UUID, 20)
	for i := range companies {
		companies[i] = uuid.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tax := &stubTax{block: 10 * time.Millisecond}
	runner := NewRunner(tax, &stubDashboards{}, 1, zap.NewNop())

	results, err := runner.Run(ctx, companies, testPeriod(t))
	require.Error(t, err)
	assert.Less(t, len(results), len(companies))
}

func TestRunner_ConcurrencyClamped(t *testing.T) {
	runner := NewRunner(&stubTax{}, &stubDashboards{}, 0, zap.NewNop())
	results, err := runner.Run(context.Background(), []uuid.UUID{uuid.New()}, testPeriod(t))
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
