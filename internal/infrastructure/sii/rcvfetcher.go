package sii

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainerrors "github.com/contaflow/sii-reconciliation-backend/internal/domain/errors"
	domainsii "github.com/contaflow/sii-reconciliation-backend/internal/domain/sii"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
)

// RcvClient is the ledger slice of the authority client
type RcvClient interface {
	GetRCV(ctx context.Context, token string, rut values.Rut, period values.Period, direction domainsii.RcvDirection) ([]domainsii.RcvRecord, error)
}

// TokenProvider supplies and invalidates per-company session tokens
type TokenProvider interface {
	Token(ctx context.Context, companyID uuid.UUID) (domainsii.Token, error)
	Invalidate(companyID uuid.UUID)
}

// RcvCache stores fetched ledgers keyed by company, period and direction.
// A miss returns (nil, false, nil).
type RcvCache interface {
	Get(ctx context.Context, companyID uuid.UUID, period values.Period, direction domainsii.RcvDirection) ([]domainsii.RcvRecord, bool, error)
	Set(ctx context.Context, companyID uuid.UUID, period values.Period, direction domainsii.RcvDirection, records []domainsii.RcvRecord) error
}

// RcvFetcher combines the token source, the authority client and the
// cache behind the engine's fetch port. A token rejected mid-session is
// invalidated and the fetch retried once with a fresh one.
type RcvFetcher struct {
	client RcvClient
	tokens TokenProvider
	cache  RcvCache
	logger *zap.Logger
}

// NewRcvFetcher creates a ledger fetcher. cache may be nil to disable
// caching.
func NewRcvFetcher(client RcvClient, tokens TokenProvider, cache RcvCache, logger *zap.Logger) *RcvFetcher {
	return &RcvFetcher{client: client, tokens: tokens, cache: cache, logger: logger}
}

// FetchRCV returns the authority-reported records for one ledger side
func (f *RcvFetcher) FetchRCV(ctx context.Context, companyID uuid.UUID, rut values.Rut, period values.Period, direction domainsii.RcvDirection) ([]domainsii.RcvRecord, error) {
	if f.cache != nil {
		records, hit, err := f.cache.Get(ctx, companyID, period, direction)
		if err != nil {
			// Cache trouble degrades to a direct fetch.
			f.logger.Warn("rcv cache read failed",
				zap.String("company_id", companyID.String()),
				zap.String("period", period.String()),
				zap.Error(err))
		} else if hit {
			return records, nil
		}
	}

	records, err := f.fetch(ctx, companyID, rut, period, direction)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, companyID, period, direction, records); err != nil {
			f.logger.Warn("rcv cache write failed",
				zap.String("company_id", companyID.String()),
				zap.String("period", period.String()),
				zap.Error(err))
		}
	}
	return records, nil
}

func (f *RcvFetcher) fetch(ctx context.Context, companyID uuid.UUID, rut values.Rut, period values.Period, direction domainsii.RcvDirection) ([]domainsii.RcvRecord, error) {
	token, err := f.tokens.Token(ctx, companyID)
	if err != nil {
		return nil, err
	}

	records, err := f.client.GetRCV(ctx, token.Value, rut, period, direction)
	if err == nil {
		return records, nil
	}
	if !domainerrors.IsType(err, domainerrors.ErrorTypeAuth) {
		return nil, err
	}

	// The authority no longer honors the cached token; restart the
	// handshake once.
	f.tokens.Invalidate(companyID)
	token, err = f.tokens.Token(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return f.client.GetRCV(ctx, token.Value, rut, period, direction)
}
