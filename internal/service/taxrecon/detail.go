package taxrecon

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
)

// Status classifies one reconciled document. Closed set: every key present
// on either side gets exactly one of these.
type Status int

const (
	StatusMatch Status = iota
	StatusMissingInErp
	StatusMissingInSii
	StatusMismatch
)

func (s Status) String() string {
	switch s {
	case StatusMatch:
		return "MATCH"
	case StatusMissingInErp:
		return "MISSING_IN_ERP"
	case StatusMissingInSii:
		return "MISSING_IN_SII"
	case StatusMismatch:
		return "MISMATCH"
	default:
		return "unknown"
	}
}

// Detail is one row of a tax reconciliation run. Derived data: regenerated
// per run, never a source of truth.
type Detail struct {
	ID              uuid.UUID            `json:"id"`
	CompanyID       uuid.UUID            `json:"company_id"`
	Period          values.Period        `json:"period"`
	DocumentType    billing.DocumentType `json:"document_type"`
	Folio           int64                `json:"folio"`
	CounterpartRut  values.Rut           `json:"counterpart_rut"`
	CounterpartName string               `json:"counterpart_name"`
	AmountSii       values.Money         `json:"amount_sii"`
	AmountErp       values.Money         `json:"amount_erp"`
	Status          Status               `json:"status"`
	Difference      values.Money         `json:"difference"`
}

// detailID derives a stable identifier so repeated runs over unchanged
// input produce byte-identical output.
func detailID(companyID uuid.UUID, period values.Period, key documentKey, ordinal int) uuid.UUID {
	name := fmt.Sprintf("%s/%s/%d/%d/%s/%d", companyID, period, int(key.docType), key.folio, key.counterpart, ordinal)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
}
