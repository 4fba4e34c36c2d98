package bankrecon

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/bank"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
)

var (
	issuerRut      = values.MustParseRut("76543210-3")
	counterpartRut = values.MustParseRut("12345678-5")
)

type stubReader struct {
	transactions []*bank.Transaction
	invoices     []*billing.Document
	err          error
}

func (s *stubReader) UnmatchedSnapshot(context.Context, uuid.UUID) ([]*bank.Transaction, []*billing.Document, error) {
	return s.transactions, s.invoices, s.err
}

func testTransaction(t *testing.T, companyID uuid.UUID, amount int64, date string) *bank.Transaction {
	t.Helper()
	day, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	tx, err := bank.NewTransaction(companyID, day, values.NewCLP(amount), "abono")
	require.NoError(t, err)
	return tx
}

func testInvoice(t *testing.T, companyID uuid.UUID, folio, amount int64, date string) *billing.Document {
	t.Helper()
	day, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	doc, err := billing.NewDocument(companyID, billing.TypeFactura, folio, issuerRut, counterpartRut, day, values.NewCLP(amount))
	require.NoError(t, err)
	return doc
}

func newTestMatcher(t *testing.T, reader UnmatchedReader) *Matcher {
	t.Helper()
	m, err := NewMatcher(reader, DefaultMatcherConfig(), zap.NewNop())
	require.NoError(t, err)
	return m
}

func TestMatcher_HighConfidence(t *testing.T) {
	companyID := uuid.New()
	tx := testTransaction(t, companyID, 100000, "2025-10-05")
	inv := testInvoice(t, companyID, 100, 100000, "2025-10-03")

	reader := &stubReader{transactions: []*bank.Transaction{tx}, invoices: []*billing.Document{inv}}
	suggestions, err := newTestMatcher(t, reader).SuggestMatches(context.Background(), companyID)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)

	s := suggestions[0]
	assert.Equal(t, tx.ID, s.BankTransactionID)
	assert.Equal(t, inv.ID, s.InvoiceID)
	assert.True(t, s.AmountDifference.IsZero())
	assert.Equal(t, 2, s.DaysDifference)
	assert.Equal(t, ConfidenceHigh, s.Confidence)
}

func TestMatcher_ConfidenceTiers(t *testing.T) {
	companyID := uuid.New()

	tests := []struct {
		name       string
		txAmount   int64
		txDate     string
		invAmount  int64
		invDate    string
		want       Confidence
		discarded  bool
	}{
		{"exact amount same day", 50000, "2025-10-10", 50000, "2025-10-10", ConfidenceHigh, false},
		{"exact amount at high window edge", 50000, "2025-10-15", 50000, "2025-10-10", ConfidenceHigh, false},
		{"exact amount outside high window", 50000, "2025-10-21", 50000, "2025-10-10", ConfidenceMedium, false},
		{"small diff within medium", 50800, "2025-10-12", 50000, "2025-10-10", ConfidenceMedium, false},
		{"medium diff wide window", 53000, "2025-10-20", 50000, "2025-10-10", ConfidenceLow, false},
		{"small diff beyond medium days", 50500, "2025-11-05", 50000, "2025-10-10", ConfidenceLow, false},
		{"charge matches by absolute value", -50000, "2025-10-11", 50000, "2025-10-10", ConfidenceHigh, false},
		{"amount diff beyond low tolerance", 60000, "2025-10-10", 50000, "2025-10-10", 0, true},
		{"date beyond low window", 50000, "2025-12-10", 50000, "2025-10-10", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := testTransaction(t, companyID, tt.txAmount, tt.txDate)
			inv := testInvoice(t, companyID, 1, tt.invAmount, tt.invDate)

			reader := &stubReader{transactions: []*bank.Transaction{tx}, invoices: []*billing.Document{inv}}
			suggestions, err := newTestMatcher(t, reader).SuggestMatches(context.Background(), companyID)
			require.NoError(t, err)

			if tt.discarded {
				assert.Empty(t, suggestions)
				return
			}
			require.Len(t, suggestions, 1)
			assert.Equal(t, tt.want, suggestions[0].Confidence)
		})
	}
}

func TestMatcher_OrderingContract(t *testing.T) {
	companyID := uuid.New()

	tx := testTransaction(t, companyID, 50000, "2025-10-10")
	invoices := []*billing.Document{
		testInvoice(t, companyID, 1, 47000, "2025-10-09"), // LOW, diff 3000
		testInvoice(t, companyID, 2, 50000, "2025-10-08"), // HIGH, diff 0
		testInvoice(t, companyID, 3, 49500, "2025-10-09"), // MEDIUM, diff 500
		testInvoice(t, companyID, 4, 49800, "2025-10-01"), // MEDIUM, diff 200
	}

	reader := &stubReader{transactions: []*bank.Transaction{tx}, invoices: invoices}
	suggestions, err := newTestMatcher(t, reader).SuggestMatches(context.Background(), companyID)
	require.NoError(t, err)
	require.Len(t, suggestions, 4)

	assert.Equal(t, ConfidenceHigh, suggestions[0].Confidence)
	assert.Equal(t, invoices[1].ID, suggestions[0].InvoiceID)

	assert.Equal(t, ConfidenceMedium, suggestions[1].Confidence)
	assert.Equal(t, invoices[3].ID, suggestions[1].InvoiceID, "smaller amount difference first within a tier")

	assert.Equal(t, ConfidenceMedium, suggestions[2].Confidence)
	assert.Equal(t, invoices[2].ID, suggestions[2].InvoiceID)

	assert.Equal(t, ConfidenceLow, suggestions[3].Confidence)
}

func TestMatcher_MultipleSuggestionsPerTransaction(t *testing.T) {
	companyID := uuid.New()

	tx := testTransaction(t, companyID, 50000, "2025-10-10")
	invoices := []*billing.Document{
		testInvoice(t, companyID, 1, 50000, "2025-10-09"),
		testInvoice(t, companyID, 2, 50000, "2025-10-11"),
	}

	reader := &stubReader{transactions: []*bank.Transaction{tx}, invoices: invoices}
	suggestions, err := newTestMatcher(t, reader).SuggestMatches(context.Background(), companyID)
	require.NoError(t, err)
	assert.Len(t, suggestions, 2)
}

func TestMatcher_EmptyResultIsNotAnError(t *testing.T) {
	reader := &stubReader{}
	suggestions, err := newTestMatcher(t, reader).SuggestMatches(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, suggestions)
	assert.Empty(t, suggestions)
}

func TestMatcher_NeverExceedsThresholds(t *testing.T) {
	companyID := uuid.New()
	cfg := DefaultMatcherConfig()

	transactions := []*bank.Transaction{
		testTransaction(t, companyID, 48000, "2025-10-01"),
		testTransaction(t, companyID, 52000, "2025-10-20"),
		testTransaction(t, companyID, 150000, "2025-10-10"),
	}
	invoices := []*billing.Document{
		testInvoice(t, companyID, 1, 50000, "2025-10-10"),
		testInvoice(t, companyID, 2, 100000, "2025-06-01"),
	}

	reader := &stubReader{transactions: transactions, invoices: invoices}
	suggestions, err := newTestMatcher(t, reader).SuggestMatches(context.Background(), companyID)
	require.NoError(t, err)

	for _, s := range suggestions {
		assert.True(t, s.AmountDifference.Amount().Abs().LessThanOrEqual(cfg.LowAmountTolerance),
			"suggestion exceeds the widest amount tolerance")
		assert.LessOrEqual(t, s.DaysDifference, cfg.LowMaxDays,
			"suggestion exceeds the widest day window")
	}
}

func TestMatcher_DoesNotMutateInputs(t *testing.T) {
	companyID := uuid.New()
	tx := testTransaction(t, companyID, 50000, "2025-10-10")
	inv := testInvoice(t, companyID, 1, 50000, "2025-10-10")

	reader := &stubReader{transactions: []*bank.Transaction{tx}, invoices: []*billing.Document{inv}}
	_, err := newTestMatcher(t, reader).SuggestMatches(context.Background(), companyID)
	require.NoError(t, err)

	assert.False(t, tx.Reconciled, "matcher must not flip reconciled state")
}

func TestMatcherConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MatcherConfig)
		wantErr bool
	}{
		{"defaults valid", func(*MatcherConfig) {}, false},
		{"negative window", func(c *MatcherConfig) { c.HighMaxDays = -1 }, true},
		{"medium narrower than high", func(c *MatcherConfig) { c.MediumMaxDays = 2 }, true},
		{"low narrower than medium", func(c *MatcherConfig) { c.LowMaxDays = 10 }, true},
		{"negative tolerance", func(c *MatcherConfig) { c.MediumAmountTolerance = decimal.NewFromInt(-1) }, true},
		{"low tolerance below medium", func(c *MatcherConfig) { c.LowAmountTolerance = decimal.NewFromInt(500) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMatcherConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
