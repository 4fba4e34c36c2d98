package sii

import (
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
)

// RcvDirection distinguishes the purchase ledger from the sale ledger
type RcvDirection int

const (
	DirectionPurchase RcvDirection = iota
	DirectionSale
)

func (d RcvDirection) String() string {
	switch d {
	case DirectionPurchase:
		return "purchase"
	case DirectionSale:
		return "sale"
	default:
		return "unknown"
	}
}

// RcvRecord is one document as the tax authority reported it for a period.
// Read-only: fetched per period, never persisted by the core.
type RcvRecord struct {
	Period          values.Period        `json:"period"`
	DocumentType    billing.DocumentType `json:"document_type"`
	Folio           int64                `json:"folio"`
	CounterpartRut  values.Rut           `json:"counterpart_rut"`
	CounterpartName string               `json:"counterpart_name"`
	Amount          values.Money         `json:"amount"`
	Direction       RcvDirection         `json:"direction"`
}
