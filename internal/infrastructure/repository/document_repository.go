package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
	domainerrors "github.com/contaflow/sii-reconciliation-backend/internal/domain/errors"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
)

// DocumentRepository persists issued documents using PostgreSQL.
// Uniqueness of (company_id, type, folio, issuer_rut) is enforced by a
// database constraint and surfaces as a DuplicateDocument error.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository creates a document repository
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// Save inserts a document
func (r *DocumentRepository) Save(ctx context.Context, doc *billing.Document) error {
	query := `
		INSERT INTO documents (
			id, company_id, type, folio, issuer_rut, counterpart_rut,
			issue_date, amount_clp, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		doc.ID, doc.CompanyID, int(doc.Type), doc.Folio,
		doc.IssuerRut.String(), doc.CounterpartRut.String(),
		doc.IssueDate, doc.Amount.Amount(), doc.CreatedAt,
	)
	if err != nil {
		if IsDuplicateKeyViolation(err) {
			return domainerrors.NewDuplicateDocumentError(
				fmt.Sprintf("document %s already exists", doc.Key()))
		}
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// SaveAll inserts documents atomically: one duplicate rejects the batch
func (r *DocumentRepository) SaveAll(ctx context.Context, docs []*billing.Document) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO documents (
			id, company_id, type, folio, issuer_rut, counterpart_rut,
			issue_date, amount_clp, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, doc := range docs {
		_, err := tx.Exec(ctx, query,
			doc.ID, doc.CompanyID, int(doc.Type), doc.Folio,
			doc.IssuerRut.String(), doc.CounterpartRut.String(),
			doc.IssueDate, doc.Amount.Amount(), doc.CreatedAt,
		)
		if err != nil {
			if IsDuplicateKeyViolation(err) {
				return domainerrors.NewDuplicateDocumentError(
					fmt.Sprintf("document %s already exists", doc.Key()))
			}
			return fmt.Errorf("failed to save document %s: %w", doc.Key(), err)
		}
	}

	return tx.Commit(ctx)
}

// FindByCompanyAndPeriod returns all documents issued within the period
func (r *DocumentRepository) FindByCompanyAndPeriod(ctx context.Context, companyID uuid.UUID, period values.Period) ([]*billing.Document, error) {
	query := `
		SELECT id, company_id, type, folio, issuer_rut, counterpart_rut,
		       issue_date, amount_clp, created_at
		FROM documents
		WHERE company_id = $1 AND issue_date >= $2 AND issue_date < $3
		ORDER BY type, folio
	`

	rows, err := r.pool.Query(ctx, query, companyID, period.Start(), period.End())
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*billing.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// FindByKey returns the document with the given per-company identity
func (r *DocumentRepository) FindByKey(ctx context.Context, companyID uuid.UUID, key billing.DocumentKey) (*billing.Document, error) {
	query := `
		SELECT id, company_id, type, folio, issuer_rut, counterpart_rut,
		       issue_date, amount_clp, created_at
		FROM documents
		WHERE company_id = $1 AND type = $2 AND folio = $3 AND issuer_rut = $4
	`

	row := r.pool.QueryRow(ctx, query, companyID, int(key.Type), key.Folio, key.IssuerRut.String())
	doc, err := scanDocument(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, domainerrors.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*billing.Document, error) {
	var doc billing.Document
	var docType int
	var amountCLP int64

	err := row.Scan(
		&doc.ID, &doc.CompanyID, &docType, &doc.Folio,
		&doc.IssuerRut, &doc.CounterpartRut,
		&doc.IssueDate, &amountCLP, &doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Type = billing.DocumentType(docType)
	doc.Amount = values.NewCLP(amountCLP)
	return &doc, nil
}
