package cafauth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
	domainerrors "github.com/contaflow/sii-reconciliation-backend/internal/domain/errors"
)

// Service manages folio authorizations: registering new ranges and
// resolving which CAF covers a folio at issuance time.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a CAF authorization service
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// FindActiveForFolio resolves the CAF authorizing the given folio right
// now. A folio with no covering CAF is a normal outcome and returns
// (nil, nil); more than one covering CAF means the stored ranges are
// inconsistent and surfaces as a conflict.
func (s *Service) FindActiveForFolio(ctx context.Context, companyID uuid.UUID, tipoDte billing.DocumentType, folio int64) (*billing.Caf, error) {
	if folio <= 0 {
		return nil, domainerrors.NewValidationError("INVALID_FOLIO",
			fmt.Sprintf("folio must be positive: %d", folio))
	}

	candidates, err := s.repo.FindActiveByType(ctx, companyID, tipoDte)
	if err != nil {
		return nil, domainerrors.Wrap(err, "loading active CAFs")
	}

	now := s.now()
	var matches []*billing.Caf
	for _, caf := range candidates {
		if caf.ContainsFolio(folio) && caf.ActiveAt(now) {
			matches = append(matches, caf)
		}
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		s.logger.Error("overlapping CAFs cover the same folio",
			zap.String("company_id", companyID.String()),
			zap.String("tipo_dte", tipoDte.String()),
			zap.Int64("folio", folio),
			zap.Int("matches", len(matches)))
		return nil, domainerrors.NewCafConflictError(
			fmt.Sprintf("%d active CAFs cover folio %d for %s", len(matches), folio, tipoDte))
	}
}

// Save registers a new folio authorization. A range that intersects any
// other active range of the same company and document type is rejected
// before it reaches storage.
func (s *Service) Save(ctx context.Context, caf *billing.Caf) error {
	if caf == nil {
		return domainerrors.ErrInvalidInput
	}

	existing, err := s.repo.FindActiveByType(ctx, caf.CompanyID, caf.TipoDte)
	if err != nil {
		return domainerrors.Wrap(err, "loading active CAFs")
	}

	for _, other := range existing {
		if other.ID == caf.ID {
			continue
		}
		if caf.Overlaps(other) {
			return domainerrors.NewCafConflictError(
				fmt.Sprintf("folio range [%d, %d] overlaps active CAF %s [%d, %d]",
					caf.FolioStart, caf.FolioEnd, other.ID, other.FolioStart, other.FolioEnd))
		}
	}

	if err := s.repo.Save(ctx, caf); err != nil {
		return domainerrors.Wrap(err, "saving CAF")
	}

	s.logger.Info("CAF registered",
		zap.String("caf_id", caf.ID.String()),
		zap.String("company_id", caf.CompanyID.String()),
		zap.String("tipo_dte", caf.TipoDte.String()),
		zap.Int64("folio_start", caf.FolioStart),
		zap.Int64("folio_end", caf.FolioEnd))
	return nil
}
