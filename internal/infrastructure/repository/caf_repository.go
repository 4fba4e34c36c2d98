package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
	domainerrors "github.com/contaflow/sii-reconciliation-backend/internal/domain/errors"
)

// CafRepository persists folio authorizations. Overlap protection is
// transactional: concurrent saves for the same (company, tipo_dte) are
// serialized by locking the existing rows before checking ranges.
type CafRepository struct {
	pool *pgxpool.Pool
}

// NewCafRepository creates a CAF repository
func NewCafRepository(pool *pgxpool.Pool) *CafRepository {
	return &CafRepository{pool: pool}
}

// Save inserts a CAF after verifying its folio range does not intersect
// any active range of the same company and document type.
func (r *CafRepository) Save(ctx context.Context, caf *billing.Caf) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the sibling rows so two overlapping saves cannot both pass
	// the range check.
	lockQuery := `
		SELECT folio_start, folio_end, id
		FROM cafs
		WHERE company_id = $1 AND tipo_dte = $2 AND status = $3
		FOR UPDATE
	`
	rows, err := tx.Query(ctx, lockQuery, caf.CompanyID, int(caf.TipoDte), int(billing.CafStatusActive))
	if err != nil {
		return fmt.Errorf("failed to lock sibling CAFs: %w", err)
	}

	type lockedRange struct {
		start, end int64
		id         uuid.UUID
	}
	var siblings []lockedRange
	for rows.Next() {
		var lr lockedRange
		if err := rows.Scan(&lr.start, &lr.end, &lr.id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan sibling CAF: %w", err)
		}
		siblings = append(siblings, lr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read sibling CAFs: %w", err)
	}

	for _, sibling := range siblings {
		if sibling.id == caf.ID {
			continue
		}
		if caf.FolioStart <= sibling.end && sibling.start <= caf.FolioEnd {
			return domainerrors.NewCafConflictError(
				fmt.Sprintf("folio range [%d, %d] overlaps active CAF %s [%d, %d]",
					caf.FolioStart, caf.FolioEnd, sibling.id, sibling.start, sibling.end))
		}
	}

	upsert := `
		INSERT INTO cafs (
			id, company_id, tipo_dte, folio_start, folio_end,
			active_from, active_until, status, signature_ref, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
	`
	_, err = tx.Exec(ctx, upsert,
		caf.ID, caf.CompanyID, int(caf.TipoDte), caf.FolioStart, caf.FolioEnd,
		caf.ActiveFrom, caf.ActiveUntil, int(caf.Status), caf.SignatureRef, caf.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save CAF: %w", err)
	}

	return tx.Commit(ctx)
}

// FindActiveByType returns every active-status CAF of the company and
// document type. Activation window filtering is the service's job.
func (r *CafRepository) FindActiveByType(ctx context.Context, companyID uuid.UUID, tipoDte billing.DocumentType) ([]*billing.Caf, error) {
	query := `
		SELECT id, company_id, tipo_dte, folio_start, folio_end,
		       active_from, active_until, status, signature_ref, created_at
		FROM cafs
		WHERE company_id = $1 AND tipo_dte = $2 AND status = $3
		ORDER BY folio_start
	`

	rows, err := r.pool.Query(ctx, query, companyID, int(tipoDte), int(billing.CafStatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query CAFs: %w", err)
	}
	defer rows.Close()

	cafs := make([]*billing.Caf, 0)
	for rows.Next() {
		var caf billing.Caf
		var tipo, status int
		err := rows.Scan(
			&caf.ID, &caf.CompanyID, &tipo, &caf.FolioStart, &caf.FolioEnd,
			&caf.ActiveFrom, &caf.ActiveUntil, &status, &caf.SignatureRef, &caf.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan CAF: %w", err)
		}
		caf.TipoDte = billing.DocumentType(tipo)
		caf.Status = billing.CafStatus(status)
		cafs = append(cafs, &caf)
	}
	return cafs, rows.Err()
}
