package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainsii "github.com/contaflow/sii-reconciliation-backend/internal/domain/sii"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
)

// RcvCache stores fetched RCV ledgers keyed by company, period and
// direction. The authority republishes ledgers rarely within a period, so
// a TTL-bounded copy spares repeated fetches during a reconciliation run.
type RcvCache struct {
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewRcvCache creates an RCV ledger cache with the given TTL
func NewRcvCache(cache Cache, ttl time.Duration, logger *zap.Logger) *RcvCache {
	return &RcvCache{cache: cache, ttl: ttl, logger: logger}
}

// Get returns the cached ledger, or (nil, false, nil) on a miss
func (c *RcvCache) Get(ctx context.Context, companyID uuid.UUID, period values.Period, direction domainsii.RcvDirection) ([]domainsii.RcvRecord, bool, error) {
	var records []domainsii.RcvRecord
	err := c.cache.GetJSON(ctx, rcvKey(companyID, period, direction), &records)
	if err != nil {
		var notFound ErrCacheKeyNotFound
		if errors.As(err, &notFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return records, true, nil
}

// Set stores the ledger under the configured TTL
func (c *RcvCache) Set(ctx context.Context, companyID uuid.UUID, period values.Period, direction domainsii.RcvDirection, records []domainsii.RcvRecord) error {
	key := rcvKey(companyID, period, direction)
	if err := c.cache.SetJSON(ctx, key, records, c.ttl); err != nil {
		return err
	}

	c.logger.Debug("rcv ledger cached",
		zap.String("key", key),
		zap.Int("records", len(records)),
		zap.Duration("ttl", c.ttl))
	return nil
}

// Invalidate drops the cached ledger for one side of a period
func (c *RcvCache) Invalidate(ctx context.Context, companyID uuid.UUID, period values.Period, direction domainsii.RcvDirection) error {
	return c.cache.Delete(ctx, rcvKey(companyID, period, direction))
}

func rcvKey(companyID uuid.UUID, period values.Period, direction domainsii.RcvDirection) string {
	return fmt.Sprintf("%s%s:%s:%s", RcvPrefix, companyID, period, direction)
}
