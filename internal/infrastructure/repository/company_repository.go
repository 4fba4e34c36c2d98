package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	domainerrors "github.com/contaflow/sii-reconciliation-backend/internal/domain/errors"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
)

// CompanyRepository resolves tenant metadata. Companies are provisioned
// out of band; this layer only reads them.
type CompanyRepository struct {
	pool *pgxpool.Pool
}

// NewCompanyRepository creates a company repository
func NewCompanyRepository(pool *pgxpool.Pool) *CompanyRepository {
	return &CompanyRepository{pool: pool}
}

// RutFor returns the taxpayer identifier of a company
func (r *CompanyRepository) RutFor(ctx context.Context, companyID uuid.UUID) (values.Rut, error) {
	var rut values.Rut
	err := r.pool.QueryRow(ctx,
		`SELECT rut FROM companies WHERE id = $1`, companyID,
	).Scan(&rut)
	if err != nil {
		if IsNotFound(err) {
			return values.Rut{}, domainerrors.ErrCompanyNotFound
		}
		return values.Rut{}, fmt.Errorf("failed to query company: %w", err)
	}
	return rut, nil
}

// ActiveCompanyIDs returns every tenant enrolled in reconciliation runs
func (r *CompanyRepository) ActiveCompanyIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM companies WHERE active = true ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan company id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
