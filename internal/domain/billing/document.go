package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
)

// DocumentType is the electronic tax document type code (tipo DTE).
type DocumentType int

const (
	TypeFactura          DocumentType = 33
	TypeFacturaExenta    DocumentType = 34
	TypeBoleta           DocumentType = 39
	TypeFacturaCompra    DocumentType = 46
	TypeNotaDebito       DocumentType = 56
	TypeNotaCredito      DocumentType = 61
	TypeBoletaHonorarios DocumentType = 70
)

func (d DocumentType) String() string {
	switch d {
	case TypeFactura:
		return "factura"
	case TypeFacturaExenta:
		return "factura_exenta"
	case TypeBoleta:
		return "boleta"
	case TypeFacturaCompra:
		return "factura_compra"
	case TypeNotaDebito:
		return "nota_debito"
	case TypeNotaCredito:
		return "nota_credito"
	case TypeBoletaHonorarios:
		return "boleta_honorarios"
	default:
		return "unknown"
	}
}

// IsValid reports whether the code is a known document type
func (d DocumentType) IsValid() bool {
	switch d {
	case TypeFactura, TypeFacturaExenta, TypeBoleta, TypeFacturaCompra,
		TypeNotaDebito, TypeNotaCredito, TypeBoletaHonorarios:
		return true
	default:
		return false
	}
}

// DocumentKey uniquely identifies a document within a company.
type DocumentKey struct {
	Type      DocumentType `json:"type"`
	Folio     int64        `json:"folio"`
	IssuerRut values.Rut   `json:"issuer_rut"`
}

func (k DocumentKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Type, k.Folio, k.IssuerRut)
}

// Document is an internally issued invoice or fee receipt. Immutable once
// issued except for cancellation, which is handled outside this core.
type Document struct {
	ID             uuid.UUID    `json:"id"`
	CompanyID      uuid.UUID    `json:"company_id"`
	Type           DocumentType `json:"type"`
	Folio          int64        `json:"folio"`
	IssuerRut      values.Rut   `json:"issuer_rut"`
	CounterpartRut values.Rut   `json:"counterpart_rut"`
	IssueDate      time.Time    `json:"issue_date"`
	Amount         values.Money `json:"amount"`

	CreatedAt time.Time `json:"created_at"`
}

// NewDocument creates a validated Document. Zero amounts are legal; negative
// amounts are not (credit notes carry their own document type instead).
func NewDocument(companyID uuid.UUID, docType DocumentType, folio int64, issuer, counterpart values.Rut, issueDate time.Time, amount values.Money) (*Document, error) {
	if companyID == uuid.Nil {
		return nil, fmt.Errorf("company ID cannot be nil")
	}

	if !docType.IsValid() {
		return nil, fmt.Errorf("invalid document type: %d", int(docType))
	}

	if folio <= 0 {
		return nil, fmt.Errorf("folio must be positive: %d", folio)
	}

	if issuer.IsZero() {
		return nil, fmt.Errorf("issuer rut is required")
	}

	if counterpart.IsZero() {
		return nil, fmt.Errorf("counterpart rut is required")
	}

	if issueDate.IsZero() {
		return nil, fmt.Errorf("issue date is required")
	}

	if amount.IsNegative() {
		return nil, fmt.Errorf("document amount cannot be negative: %s", amount)
	}

	return &Document{
		ID:             uuid.New(),
		CompanyID:      companyID,
		Type:           docType,
		Folio:          folio,
		IssuerRut:      issuer,
		CounterpartRut: counterpart,
		IssueDate:      issueDate,
		Amount:         amount,
		CreatedAt:      time.Now(),
	}, nil
}

// Key returns the per-company unique identity of the document
func (d *Document) Key() DocumentKey {
	return DocumentKey{Type: d.Type, Folio: d.Folio, IssuerRut: d.IssuerRut}
}

// Period returns the tax period the document belongs to
func (d *Document) Period() values.Period {
	return values.PeriodOf(d.IssueDate)
}
