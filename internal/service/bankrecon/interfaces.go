package bankrecon

import (
	"context"

	"github.com/google/uuid"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/bank"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
)

// UnmatchedReader loads the unmatched working set of a company. Both lists
// must come from a single point-in-time read so a transaction and its
// cleared twin never straddle the snapshot.
type UnmatchedReader interface {
	UnmatchedSnapshot(ctx context.Context, companyID uuid.UUID) ([]*bank.Transaction, []*billing.Document, error)
}

// Confidence classifies how plausible a suggested pairing is. Ordered:
// higher value means stronger correspondence.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "HIGH"
	case ConfidenceMedium:
		return "MEDIUM"
	case ConfidenceLow:
		return "LOW"
	default:
		return "unknown"
	}
}

// MatchSuggestion proposes pairing one bank transaction with one invoice.
// Derived data, regenerated on demand; confirming and persisting a match
// is the caller's job.
type MatchSuggestion struct {
	BankTransactionID uuid.UUID    `json:"bank_transaction_id"`
	InvoiceID         uuid.UUID    `json:"invoice_id"`
	AmountDifference  values.Money `json:"amount_difference"`
	DaysDifference    int          `json:"days_difference"`
	Confidence        Confidence   `json:"confidence"`
}
