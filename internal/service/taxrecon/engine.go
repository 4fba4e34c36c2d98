package taxrecon

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
	domainerrors "github.com/contaflow/sii-reconciliation-backend/internal/domain/errors"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/sii"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
)

// Engine compares authority-reported RCV records against internal
// documents for one company and period. Side-effect-free: it never writes
// to its sources, so a run can be repeated at will.
type Engine struct {
	rcv       RcvFetcher
	documents DocumentRepository
	companies CompanyRegistry
	logger    *zap.Logger
}

// NewEngine creates a tax reconciliation engine
func NewEngine(rcv RcvFetcher, documents DocumentRepository, companies CompanyRegistry, logger *zap.Logger) *Engine {
	return &Engine{
		rcv:       rcv,
		documents: documents,
		companies: companies,
		logger:    logger,
	}
}

type documentKey struct {
	docType     billing.DocumentType
	folio       int64
	counterpart values.Rut
}

// sideEntry accumulates the per-key amounts of one source. Amounts are kept
// as a list, not a sum: a folio appearing twice on one side is a fault that
// must stay visible, so entries are paired one-to-one across sides.
type sideEntry struct {
	sii     []values.Money
	erp     []values.Money
	siiName string
}

// Reconcile classifies every (documentType, folio, counterpartRut) key
// present in either the RCV ledger or the internal records for the period.
// Output ordering is deterministic: documentType, folio, counterpart RUT.
func (e *Engine) Reconcile(ctx context.Context, companyID uuid.UUID, period values.Period) ([]Detail, error) {
	ctx, span := otel.Tracer("taxrecon").Start(ctx, "Engine.Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("company_id", companyID.String()),
		attribute.String("period", period.String()),
	)

	rut, err := e.companies.RutFor(ctx, companyID)
	if err != nil {
		return nil, domainerrors.Wrap(err, "resolving company rut")
	}

	records, err := e.fetchBothSides(ctx, companyID, rut, period)
	if err != nil {
		return nil, err
	}

	docs, err := e.documents.FindByCompanyAndPeriod(ctx, companyID, period)
	if err != nil {
		return nil, domainerrors.Wrap(err, "loading internal documents")
	}

	entries := make(map[documentKey]*sideEntry)

	for _, rec := range records {
		key := documentKey{docType: rec.DocumentType, folio: rec.Folio, counterpart: rec.CounterpartRut}
		entry := getEntry(entries, key)
		entry.sii = append(entry.sii, rec.Amount)
		if entry.siiName == "" {
			entry.siiName = rec.CounterpartName
		}
	}

	for _, doc := range docs {
		key := documentKey{docType: doc.Type, folio: doc.Folio, counterpart: doc.CounterpartRut}
		entry := getEntry(entries, key)
		entry.erp = append(entry.erp, doc.Amount)
	}

	details := e.classify(companyID, period, entries)

	e.logger.Info("tax reconciliation completed",
		zap.String("company_id", companyID.String()),
		zap.String("period", period.String()),
		zap.Int("rcv_records", len(records)),
		zap.Int("erp_documents", len(docs)),
		zap.Int("details", len(details)))

	return details, nil
}

func (e *Engine) fetchBothSides(ctx context.Context, companyID uuid.UUID, rut values.Rut, period values.Period) ([]sii.RcvRecord, error) {
	purchases, err := e.rcv.FetchRCV(ctx, companyID, rut, period, sii.DirectionPurchase)
	if err != nil {
		return nil, domainerrors.Wrap(err, "fetching purchase ledger")
	}

	sales, err := e.rcv.FetchRCV(ctx, companyID, rut, period, sii.DirectionSale)
	if err != nil {
		return nil, domainerrors.Wrap(err, "fetching sale ledger")
	}

	return append(purchases, sales...), nil
}

func (e *Engine) classify(companyID uuid.UUID, period values.Period, entries map[documentKey]*sideEntry) []Detail {
	keys := make([]documentKey, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.docType != b.docType {
			return a.docType < b.docType
		}
		if a.folio != b.folio {
			return a.folio < b.folio
		}
		return a.counterpart.Number() < b.counterpart.Number()
	})

	var details []Detail
	for _, key := range keys {
		entry := entries[key]
		details = append(details, classifyEntry(companyID, period, key, entry)...)
	}
	return details
}

// classifyEntry pairs the amounts of both sides one-to-one. Sorting each
// side first keeps the pairing deterministic; leftover entries on either
// side surface as MISSING_* rows so duplicate folios are never collapsed.
func classifyEntry(companyID uuid.UUID, period values.Period, key documentKey, entry *sideEntry) []Detail {
	sortAmounts(entry.sii)
	sortAmounts(entry.erp)

	count := len(entry.sii)
	if len(entry.erp) > count {
		count = len(entry.erp)
	}

	details := make([]Detail, 0, count)
	for i := 0; i < count; i++ {
		detail := Detail{
			ID:              detailID(companyID, period, key, i),
			CompanyID:       companyID,
			Period:          period,
			DocumentType:    key.docType,
			Folio:           key.folio,
			CounterpartRut:  key.counterpart,
			CounterpartName: entry.siiName,
			AmountSii:       values.ZeroCLP(),
			AmountErp:       values.ZeroCLP(),
		}

		hasSii := i < len(entry.sii)
		hasErp := i < len(entry.erp)

		if hasSii {
			detail.AmountSii = entry.sii[i]
		}
		if hasErp {
			detail.AmountErp = entry.erp[i]
		}

		switch {
		case hasSii && hasErp && detail.AmountSii.Equal(detail.AmountErp):
			detail.Status = StatusMatch
		case hasSii && hasErp:
			detail.Status = StatusMismatch
		case hasSii:
			detail.Status = StatusMissingInErp
		default:
			detail.Status = StatusMissingInSii
		}

		diff, err := detail.AmountSii.Sub(detail.AmountErp)
		if err != nil {
			// Mixed currencies on one key cannot net out; surface as mismatch
			// with the SII amount as the difference.
			detail.Status = StatusMismatch
			diff = detail.AmountSii
		}
		detail.Difference = diff

		details = append(details, detail)
	}

	return details
}

func getEntry(entries map[documentKey]*sideEntry, key documentKey) *sideEntry {
	entry, ok := entries[key]
	if !ok {
		entry = &sideEntry{}
		entries[key] = entry
	}
	return entry
}

func sortAmounts(amounts []values.Money) {
	sort.SliceStable(amounts, func(i, j int) bool {
		return amounts[i].Amount().Cmp(amounts[j].Amount()) < 0
	})
}
