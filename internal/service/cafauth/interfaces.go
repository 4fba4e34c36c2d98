package cafauth

import (
	"context"

	"github.com/google/uuid"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
)

// Repository persists folio authorizations. FindActiveByType returns every
// CAF of the company and document type whose status is still active; time
// window filtering happens in the service.
type Repository interface {
	Save(ctx context.Context, caf *billing.Caf) error
	FindActiveByType(ctx context.Context, companyID uuid.UUID, tipoDte billing.DocumentType) ([]*billing.Caf, error)
}
