package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
)

var (
	testIssuer      = values.MustParseRut("76543210-3")
	testCounterpart = values.MustParseRut("12345678-5")
)

func TestNewDocument(t *testing.T) {
	companyID := uuid.New()
	issueDate := time.Date(2025, time.October, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		companyID   uuid.UUID
		docType     DocumentType
		folio       int64
		issuer      values.Rut
		counterpart values.Rut
		issueDate   time.Time
		amount      values.Money
		wantErr     bool
	}{
		{
			name:      "valid factura",
			companyID: companyID, docType: TypeFactura, folio: 100,
			issuer: testIssuer, counterpart: testCounterpart,
			issueDate: issueDate, amount: values.NewCLP(50000),
		},
		{
			name:      "zero amount is legal",
			companyID: companyID, docType: TypeNotaCredito, folio: 7,
			issuer: testIssuer, counterpart: testCounterpart,
			issueDate: issueDate, amount: values.ZeroCLP(),
		},
		{
			name:      "nil company",
			companyID: uuid.Nil, docType: TypeFactura, folio: 100,
			issuer: testIssuer, counterpart: testCounterpart,
			issueDate: issueDate, amount: values.NewCLP(50000),
			wantErr: true,
		},
		{
			name:      "unknown document type",
			companyID: companyID, docType: DocumentType(99), folio: 100,
			issuer: testIssuer, counterpart: testCounterpart,
			issueDate: issueDate, amount: values.NewCLP(50000),
			wantErr: true,
		},
		{
			name:      "non-positive folio",
			companyID: companyID, docType: TypeFactura, folio: 0,
			issuer: testIssuer, counterpart: testCounterpart,
			issueDate: issueDate, amount: values.NewCLP(50000),
			wantErr: true,
		},
		{
			name:      "missing issuer",
			companyID: companyID, docType: TypeFactura, folio: 100,
			issuer: values.Rut{}, counterpart: testCounterpart,
			issueDate: issueDate, amount: values.NewCLP(50000),
			wantErr: true,
		},
		{
			name:      "negative amount",
			companyID: companyID, docType: TypeFactura, folio: 100,
			issuer: testIssuer, counterpart: testCounterpart,
			issueDate: issueDate, amount: values.NewCLP(-1),
			wantErr: true,
		},
		{
			name:      "zero issue date",
			companyID: companyID, docType: TypeFactura, folio: 100,
			issuer: testIssuer, counterpart: testCounterpart,
			issueDate: time.Time{}, amount: values.NewCLP(50000),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewDocument(tt.companyID, tt.docType, tt.folio, tt.issuer, tt.counterpart, tt.issueDate, tt.amount)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, doc.ID)
			assert.Equal(t, tt.folio, doc.Folio)
		})
	}
}

func TestDocument_Key(t *testing.T) {
	doc, err := NewDocument(uuid.New(), TypeFactura, 100, testIssuer, testCounterpart,
		time.Date(2025, time.October, 3, 0, 0, 0, 0, time.UTC), values.NewCLP(50000))
	require.NoError(t, err)

	key := doc.Key()
	assert.Equal(t, TypeFactura, key.Type)
	assert.Equal(t, int64(100), key.Folio)
	assert.True(t, testIssuer.Equal(key.IssuerRut))
	assert.Equal(t, "factura/100/76543210-3", key.String())
}

func TestDocument_Period(t *testing.T) {
	doc, err := NewDocument(uuid.New(), TypeBoletaHonorarios, 55, testIssuer, testCounterpart,
		time.Date(2025, time.October, 31, 23, 0, 0, 0, time.UTC), values.NewCLP(120000))
	require.NoError(t, err)

	assert.Equal(t, "2025-10", doc.Period().String())
}

func TestDocumentType_String(t *testing.T) {
	assert.Equal(t, "factura", TypeFactura.String())
	assert.Equal(t, "boleta_honorarios", TypeBoletaHonorarios.String())
	assert.Equal(t, "unknown", DocumentType(12).String())
	assert.False(t, DocumentType(12).IsValid())
}
