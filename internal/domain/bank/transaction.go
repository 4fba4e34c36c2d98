package bank

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
)

// Transaction is one line from a bank feed. Amounts keep their sign:
// deposits positive, charges negative. The matcher compares against the
// absolute value.
type Transaction struct {
	ID          uuid.UUID    `json:"id"`
	CompanyID   uuid.UUID    `json:"company_id"`
	Date        time.Time    `json:"date"`
	Amount      values.Money `json:"amount"`
	Description string       `json:"description"`
	Reconciled  bool         `json:"reconciled"`

	CreatedAt time.Time `json:"created_at"`
}

// NewTransaction creates a validated bank transaction
func NewTransaction(companyID uuid.UUID, date time.Time, amount values.Money, description string) (*Transaction, error) {
	if companyID == uuid.Nil {
		return nil, fmt.Errorf("company ID cannot be nil")
	}

	if date.IsZero() {
		return nil, fmt.Errorf("transaction date is required")
	}

	if amount.IsZero() {
		return nil, fmt.Errorf("transaction amount cannot be zero")
	}

	return &Transaction{
		ID:          uuid.New(),
		CompanyID:   companyID,
		Date:        date,
		Amount:      amount,
		Description: description,
		Reconciled:  false,
		CreatedAt:   time.Now(),
	}, nil
}

// AbsoluteAmount returns the unsigned amount for matching against invoices
func (t *Transaction) AbsoluteAmount() values.Money {
	return t.Amount.Abs()
}

// IsDeposit reports whether money came into the account
func (t *Transaction) IsDeposit() bool {
	return t.Amount.IsPositive()
}

// MarkReconciled flags the line as matched. Persisting the flag is the
// caller's responsibility; the matcher itself never mutates transactions.
func (t *Transaction) MarkReconciled() {
	t.Reconciled = true
}
