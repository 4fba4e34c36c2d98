package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
	domainsii "github.com/contaflow/sii-reconciliation-backend/internal/domain/sii"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
	"github.com/contaflow/sii-reconciliation-backend/internal/infrastructure/config"
)

func setupRcvCache(t *testing.T, ttl time.Duration) (*RcvCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := &config.RedisConfig{
		URL:          mr.Addr(),
		PoolSize:     5,
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	base, err := NewRedisCache(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { base.Close() })

	return NewRcvCache(base, ttl, zaptest.NewLogger(t)), mr
}

func sampleRecords(t *testing.T) []domainsii.RcvRecord {
	t.Helper()
	return []domainsii.RcvRecord{
		{
			Period:          values.MustParsePeriod("2025-10"),
			DocumentType:    billing.TypeFactura,
			Folio:           100,
			CounterpartRut:  values.MustParseRut("12345678-5"),
			CounterpartName: "Proveedor SpA",
			Amount:          values.NewCLP(50000),
			Direction:       domainsii.DirectionPurchase,
		},
		{
			Period:          values.MustParsePeriod("2025-10"),
			DocumentType:    billing.TypeNotaCredito,
			Folio:           12,
			CounterpartRut:  values.MustParseRut("12345678-5"),
			CounterpartName: "Proveedor SpA",
			Amount:          values.NewCLP(8000),
			Direction:       domainsii.DirectionPurchase,
		},
	}
}

func TestRcvCache_RoundTrip(t *testing.T) {
	cache, _ := setupRcvCache(t, time.Hour)
	companyID := uuid.New()
	period := values.MustParsePeriod("2025-10")
	records := sampleRecords(t)

	_, hit, err := cache.Get(context.Background(), companyID, period, domainsii.DirectionPurchase)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(context.Background(), companyID, period, domainsii.DirectionPurchase, records))

	got, hit, err := cache.Get(context.Background(), companyID, period, domainsii.DirectionPurchase)
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 2)

	// Value objects must survive the JSON round trip intact.
	assert.True(t, got[0].CounterpartRut.Equal(records[0].CounterpartRut))
	assert.True(t, got[0].Period.Equal(records[0].Period))
	assert.True(t, got[0].Amount.Equal(records[0].Amount))
	assert.Equal(t, billing.TypeNotaCredito, got[1].DocumentType)
}

func TestRcvCache_KeysAreScoped(t *testing.T) {
	cache, _ := setupRcvCache(t, time.Hour)
	companyA := uuid.New()
	companyB := uuid.New()
	period := values.MustParsePeriod("2025-10")
	records := sampleRecords(t)

	require.NoError(t, cache.Set(context.Background(), companyA, period, domainsii.DirectionPurchase, records))

	_, hit, err := cache.Get(context.Background(), companyB, period, domainsii.DirectionPurchase)
	require.NoError(t, err)
	assert.False(t, hit, "companies must not share cached ledgers")

	_, hit, err = cache.Get(context.Background(), companyA, period, domainsii.DirectionSale)
	require.NoError(t, err)
	assert.False(t, hit, "ledger sides must not share cache entries")

	_, hit, err = cache.Get(context.Background(), companyA, period.Next(), domainsii.DirectionPurchase)
	require.NoError(t, err)
	assert.False(t, hit, "periods must not share cache entries")
}

func TestRcvCache_TTLExpiry(t *testing.T) {
	cache, mr := setupRcvCache(t, time.Minute)
	companyID := uuid.New()
	period := values.MustParsePeriod("2025-10")

	require.NoError(t, cache.Set(context.Background(), companyID, period, domainsii.DirectionPurchase, sampleRecords(t)))

	mr.FastForward(2 * time.Minute)

	_, hit, err := cache.Get(context.Background(), companyID, period, domainsii.DirectionPurchase)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRcvCache_Invalidate(t *testing.T) {
	cache, _ := setupRcvCache(t, time.Hour)
	companyID := uuid.New()
	period := values.MustParsePeriod("2025-10")

	require.NoError(t, cache.Set(context.Background(), companyID, period, domainsii.DirectionPurchase, sampleRecords(t)))
	require.NoError(t, cache.Invalidate(context.Background(), companyID, period, domainsii.DirectionPurchase))

	_, hit, err := cache.Get(context.Background(), companyID, period, domainsii.DirectionPurchase)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRcvCache_EmptyLedgerIsCached(t *testing.T) {
	cache, _ := setupRcvCache(t, time.Hour)
	companyID := uuid.New()
	period := values.MustParsePeriod("2025-10")

	require.NoError(t, cache.Set(context.Background(), companyID, period, domainsii.DirectionSale, []domainsii.RcvRecord{}))

	got, hit, err := cache.Get(context.Background(), companyID, period, domainsii.DirectionSale)
	require.NoError(t, err)
	assert.True(t, hit, "an empty ledger is a valid cached result")
	assert.Empty(t, got)
}
