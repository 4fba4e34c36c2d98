package dashboard

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/bank"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
	domainerrors "github.com/contaflow/sii-reconciliation-backend/internal/domain/errors"
	"github.com/contaflow/sii-reconciliation-backend/internal/service/bankrecon"
)

// Snapshot is the single per-company reconciliation view handed to the
// presentation layer. All three collections come from one point-in-time
// read.
type Snapshot struct {
	CompanyID                 uuid.UUID                   `json:"company_id"`
	UnmatchedBankTransactions []*bank.Transaction         `json:"unmatched_bank_transactions"`
	UnmatchedInvoices         []*billing.Document         `json:"unmatched_invoices"`
	Suggestions               []bankrecon.MatchSuggestion `json:"suggestions"`
}

// Suggester scores pre-loaded unmatched sets
type Suggester interface {
	SuggestFromSets(transactions []*bank.Transaction, invoices []*billing.Document) []bankrecon.MatchSuggestion
}

// Aggregator composes the unmatched sets and the matcher's suggestions.
// Pure composition: no business logic of its own.
type Aggregator struct {
	reader    bankrecon.UnmatchedReader
	suggester Suggester
	logger    *zap.Logger
}

// NewAggregator creates a dashboard aggregator
func NewAggregator(reader bankrecon.UnmatchedReader, suggester Suggester, logger *zap.Logger) *Aggregator {
	return &Aggregator{reader: reader, suggester: suggester, logger: logger}
}

// Build loads both unmatched sets in one snapshot read and scores them.
// Feeding the matcher the same sets keeps the view internally consistent.
func (a *Aggregator) Build(ctx context.Context, companyID uuid.UUID) (*Snapshot, error) {
	transactions, invoices, err := a.reader.UnmatchedSnapshot(ctx, companyID)
	if err != nil {
		return nil, domainerrors.Wrap(err, "loading unmatched snapshot")
	}

	suggestions := a.suggester.SuggestFromSets(transactions, invoices)

	a.logger.Debug("dashboard snapshot built",
		zap.String("company_id", companyID.String()),
		zap.Int("unmatched_transactions", len(transactions)),
		zap.Int("unmatched_invoices", len(invoices)),
		zap.Int("suggestions", len(suggestions)))

	return &Snapshot{
		CompanyID:                 companyID,
		UnmatchedBankTransactions: transactions,
		UnmatchedInvoices:         invoices,
		Suggestions:               suggestions,
	}, nil
}
