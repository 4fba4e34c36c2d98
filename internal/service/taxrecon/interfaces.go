package taxrecon

import (
	"context"

	"github.com/google/uuid"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/sii"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
)

// RcvFetcher retrieves the tax authority's reported ledger for a period.
// Implementations handle authentication and caching behind this port.
type RcvFetcher interface {
	// FetchRCV returns the authority-reported records for one ledger side
	FetchRCV(ctx context.Context, companyID uuid.UUID, rut values.Rut, period values.Period, direction sii.RcvDirection) ([]sii.RcvRecord, error)
}

// DocumentRepository loads internally issued documents
type DocumentRepository interface {
	// FindByCompanyAndPeriod returns all documents issued within the period
	FindByCompanyAndPeriod(ctx context.Context, companyID uuid.UUID, period values.Period) ([]*billing.Document, error)
}

// CompanyRegistry resolves tenant metadata the engine needs for SII calls
type CompanyRegistry interface {
	// RutFor returns the taxpayer identifier of a company
	RutFor(ctx context.Context, companyID uuid.UUID) (values.Rut, error)
}
