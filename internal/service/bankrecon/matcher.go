package bankrecon

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/bank"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
	domainerrors "github.com/contaflow/sii-reconciliation-backend/internal/domain/errors"
)

// MatcherConfig holds the confidence thresholds. Business parameters, not
// constants: defaults below are the values agreed with the accounting team
// and can be overridden per deployment.
type MatcherConfig struct {
	// HighMaxDays bounds the date window for HIGH confidence (exact amount)
	HighMaxDays int `koanf:"high_max_days"`

	// MediumAmountTolerance is the max absolute CLP difference for MEDIUM
	MediumAmountTolerance decimal.Decimal `koanf:"medium_amount_tolerance"`

	// MediumMaxDays bounds the date window for MEDIUM confidence
	MediumMaxDays int `koanf:"medium_max_days"`

	// LowAmountTolerance is the max absolute CLP difference still surfaced
	LowAmountTolerance decimal.Decimal `koanf:"low_amount_tolerance"`

	// LowMaxDays is the widest date window; beyond it candidates are dropped
	LowMaxDays int `koanf:"low_max_days"`
}

// DefaultMatcherConfig returns the agreed default thresholds
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		HighMaxDays:           5,
		MediumAmountTolerance: decimal.NewFromInt(1000),
		MediumMaxDays:         15,
		LowAmountTolerance:    decimal.NewFromInt(5000),
		LowMaxDays:            45,
	}
}

// Validate checks threshold coherence: each tier must be at least as wide
// as the one above it.
func (c MatcherConfig) Validate() error {
	if c.HighMaxDays < 0 || c.MediumMaxDays < 0 || c.LowMaxDays < 0 {
		return fmt.Errorf("day windows cannot be negative")
	}
	if c.MediumMaxDays < c.HighMaxDays {
		return fmt.Errorf("medium day window (%d) narrower than high (%d)", c.MediumMaxDays, c.HighMaxDays)
	}
	if c.LowMaxDays < c.MediumMaxDays {
		return fmt.Errorf("low day window (%d) narrower than medium (%d)", c.LowMaxDays, c.MediumMaxDays)
	}
	if c.MediumAmountTolerance.IsNegative() || c.LowAmountTolerance.IsNegative() {
		return fmt.Errorf("amount tolerances cannot be negative")
	}
	if c.LowAmountTolerance.LessThan(c.MediumAmountTolerance) {
		return fmt.Errorf("low amount tolerance below medium tolerance")
	}
	return nil
}

// Matcher proposes payment/invoice pairings from unmatched bank lines and
// unmatched invoices. Pure candidate generation and scoring: it never
// mutates reconciled state.
type Matcher struct {
	reader UnmatchedReader
	config MatcherConfig
	logger *zap.Logger
}

// NewMatcher creates a bank reconciliation matcher
func NewMatcher(reader UnmatchedReader, config MatcherConfig, logger *zap.Logger) (*Matcher, error) {
	if err := config.Validate(); err != nil {
		return nil, domainerrors.Wrap(err, "invalid matcher config")
	}
	return &Matcher{reader: reader, config: config, logger: logger}, nil
}

// SuggestMatches scores every unmatched transaction against every unmatched
// invoice of the company. An empty result is a valid outcome, not an error.
func (m *Matcher) SuggestMatches(ctx context.Context, companyID uuid.UUID) ([]MatchSuggestion, error) {
	transactions, invoices, err := m.reader.UnmatchedSnapshot(ctx, companyID)
	if err != nil {
		return nil, domainerrors.Wrap(err, "loading unmatched snapshot")
	}

	suggestions := m.SuggestFromSets(transactions, invoices)

	m.logger.Debug("bank matching completed",
		zap.String("company_id", companyID.String()),
		zap.Int("transactions", len(transactions)),
		zap.Int("invoices", len(invoices)),
		zap.Int("suggestions", len(suggestions)))

	return suggestions, nil
}

// SuggestFromSets scores pre-loaded sets. The dashboard aggregator uses
// this form so both its lists and the suggestions come from one snapshot.
// Ordering contract: descending confidence, then ascending absolute amount
// difference, then ascending day difference.
func (m *Matcher) SuggestFromSets(transactions []*bank.Transaction, invoices []*billing.Document) []MatchSuggestion {
	suggestions := make([]MatchSuggestion, 0)

	for _, tx := range transactions {
		for _, inv := range invoices {
			if suggestion, ok := m.score(tx, inv); ok {
				suggestions = append(suggestions, suggestion)
			}
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		absA := a.AmountDifference.Amount().Abs()
		absB := b.AmountDifference.Amount().Abs()
		if cmp := absA.Cmp(absB); cmp != 0 {
			return cmp < 0
		}
		return a.DaysDifference < b.DaysDifference
	})

	return suggestions
}

// score classifies one candidate pair, or discards it when it falls
// outside every threshold.
func (m *Matcher) score(tx *bank.Transaction, inv *billing.Document) (MatchSuggestion, bool) {
	if tx.Amount.Currency() != inv.Amount.Currency() {
		return MatchSuggestion{}, false
	}

	amountDiff, err := tx.AbsoluteAmount().Sub(inv.Amount)
	if err != nil {
		return MatchSuggestion{}, false
	}

	days := daysBetween(tx.Date, inv.IssueDate)
	absDiff := amountDiff.Amount().Abs()

	var confidence Confidence
	switch {
	case amountDiff.IsZero() && days <= m.config.HighMaxDays:
		confidence = ConfidenceHigh
	case absDiff.LessThanOrEqual(m.config.MediumAmountTolerance) && days <= m.config.MediumMaxDays:
		confidence = ConfidenceMedium
	case absDiff.LessThanOrEqual(m.config.LowAmountTolerance) && days <= m.config.LowMaxDays:
		confidence = ConfidenceLow
	default:
		return MatchSuggestion{}, false
	}

	return MatchSuggestion{
		BankTransactionID: tx.ID,
		InvoiceID:         inv.ID,
		AmountDifference:  amountDiff,
		DaysDifference:    days,
		Confidence:        confidence,
	}, true
}

// daysBetween counts whole calendar days between two instants, ignoring
// the time of day.
func daysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)

	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return int(diff / (24 * time.Hour))
}
