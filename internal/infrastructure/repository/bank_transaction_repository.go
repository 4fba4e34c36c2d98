package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/bank"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
)

// BankTransactionRepository persists bank statement lines and implements
// the unmatched-snapshot read the matcher and dashboard depend on.
type BankTransactionRepository struct {
	pool *pgxpool.Pool
}

// NewBankTransactionRepository creates a bank transaction repository
func NewBankTransactionRepository(pool *pgxpool.Pool) *BankTransactionRepository {
	return &BankTransactionRepository{pool: pool}
}

// Save inserts a bank transaction
func (r *BankTransactionRepository) Save(ctx context.Context, tx *bank.Transaction) error {
	query := `
		INSERT INTO bank_transactions (
			id, company_id, date, amount_clp, description, reconciled, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		tx.ID, tx.CompanyID, tx.Date, tx.Amount.Amount(),
		tx.Description, tx.Reconciled, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save bank transaction: %w", err)
	}
	return nil
}

// FindUnmatched returns the company's unreconciled statement lines
func (r *BankTransactionRepository) FindUnmatched(ctx context.Context, companyID uuid.UUID) ([]*bank.Transaction, error) {
	rows, err := r.pool.Query(ctx, unmatchedTransactionsQuery, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unmatched transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// UnmatchedSnapshot returns the unmatched transactions and unmatched
// invoices of a company from one repeatable-read transaction, so neither
// list can observe a match the other missed.
func (r *BankTransactionRepository) UnmatchedSnapshot(ctx context.Context, companyID uuid.UUID) ([]*bank.Transaction, []*billing.Document, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txRows, err := tx.Query(ctx, unmatchedTransactionsQuery, companyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query unmatched transactions: %w", err)
	}
	transactions, err := scanTransactions(txRows)
	if err != nil {
		return nil, nil, err
	}

	invoiceQuery := `
		SELECT d.id, d.company_id, d.type, d.folio, d.issuer_rut, d.counterpart_rut,
		       d.issue_date, d.amount_clp, d.created_at
		FROM documents d
		WHERE d.company_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM bank_matches m WHERE m.document_id = d.id
		  )
		ORDER BY d.issue_date, d.folio
	`
	invRows, err := tx.Query(ctx, invoiceQuery, companyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query unmatched invoices: %w", err)
	}
	defer invRows.Close()

	invoices := make([]*billing.Document, 0)
	for invRows.Next() {
		doc, err := scanDocument(invRows)
		if err != nil {
			return nil, nil, err
		}
		invoices = append(invoices, doc)
	}
	if err := invRows.Err(); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit snapshot transaction: %w", err)
	}
	return transactions, invoices, nil
}

// ConfirmMatch records an accepted pairing and flags the transaction
// reconciled, atomically.
func (r *BankTransactionRepository) ConfirmMatch(ctx context.Context, transactionID, documentID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO bank_matches (bank_transaction_id, document_id, matched_at)
		VALUES ($1, $2, now())
	`, transactionID, documentID)
	if err != nil {
		return fmt.Errorf("failed to record match: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE bank_transactions SET reconciled = true WHERE id = $1
	`, transactionID)
	if err != nil {
		return fmt.Errorf("failed to flag transaction reconciled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

const unmatchedTransactionsQuery = `
	SELECT id, company_id, date, amount_clp, description, reconciled, created_at
	FROM bank_transactions
	WHERE company_id = $1 AND reconciled = false
	ORDER BY date, id
`

func scanTransactions(rows pgx.Rows) ([]*bank.Transaction, error) {
	defer rows.Close()

	transactions := make([]*bank.Transaction, 0)
	for rows.Next() {
		var tx bank.Transaction
		var amountCLP int64
		err := rows.Scan(
			&tx.ID, &tx.CompanyID, &tx.Date, &amountCLP,
			&tx.Description, &tx.Reconciled, &tx.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank transaction: %w", err)
		}
		tx.Amount = values.NewCLP(amountCLP)
		transactions = append(transactions, &tx)
	}
	return transactions, rows.Err()
}
