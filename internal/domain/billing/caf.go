package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CafStatus is the lifecycle state of a folio authorization
type CafStatus int

const (
	CafStatusActive CafStatus = iota
	CafStatusExhausted
	CafStatusRevoked
)

func (s CafStatus) String() string {
	switch s {
	case CafStatusActive:
		return "active"
	case CafStatusExhausted:
		return "exhausted"
	case CafStatusRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Caf is a signed authorization for a range of folios a company may issue
// for one document type. The signing material itself lives with the
// credential provider; only a reference is kept here.
type Caf struct {
	ID           uuid.UUID    `json:"id"`
	CompanyID    uuid.UUID    `json:"company_id"`
	TipoDte      DocumentType `json:"tipo_dte"`
	FolioStart   int64        `json:"folio_start"`
	FolioEnd     int64        `json:"folio_end"`
	ActiveFrom   time.Time    `json:"active_from"`
	ActiveUntil  time.Time    `json:"active_until"`
	Status       CafStatus    `json:"status"`
	SignatureRef string       `json:"signature_ref"`

	CreatedAt time.Time `json:"created_at"`
}

// NewCaf creates a validated folio authorization
func NewCaf(companyID uuid.UUID, tipoDte DocumentType, folioStart, folioEnd int64, activeFrom, activeUntil time.Time, signatureRef string) (*Caf, error) {
	if companyID == uuid.Nil {
		return nil, fmt.Errorf("company ID cannot be nil")
	}

	if !tipoDte.IsValid() {
		return nil, fmt.Errorf("invalid document type: %d", int(tipoDte))
	}

	if folioStart <= 0 {
		return nil, fmt.Errorf("folio range start must be positive: %d", folioStart)
	}

	if folioEnd < folioStart {
		return nil, fmt.Errorf("folio range end %d precedes start %d", folioEnd, folioStart)
	}

	if activeFrom.IsZero() || activeUntil.IsZero() {
		return nil, fmt.Errorf("activation window is required")
	}

	if !activeUntil.After(activeFrom) {
		return nil, fmt.Errorf("activation window ends before it starts")
	}

	if signatureRef == "" {
		return nil, fmt.Errorf("signature reference is required")
	}

	return &Caf{
		ID:           uuid.New(),
		CompanyID:    companyID,
		TipoDte:      tipoDte,
		FolioStart:   folioStart,
		FolioEnd:     folioEnd,
		ActiveFrom:   activeFrom,
		ActiveUntil:  activeUntil,
		Status:       CafStatusActive,
		SignatureRef: signatureRef,
		CreatedAt:    time.Now(),
	}, nil
}

// ContainsFolio reports whether folio falls inside the authorized range
func (c *Caf) ContainsFolio(folio int64) bool {
	return folio >= c.FolioStart && folio <= c.FolioEnd
}

// ActiveAt reports whether the CAF can authorize issuance at the given
// instant: active status and inside the activation window.
func (c *Caf) ActiveAt(now time.Time) bool {
	if c.Status != CafStatusActive {
		return false
	}
	return !now.Before(c.ActiveFrom) && now.Before(c.ActiveUntil)
}

// Overlaps reports whether two folio ranges intersect. Only meaningful for
// CAFs of the same company and document type.
func (c *Caf) Overlaps(other *Caf) bool {
	return c.FolioStart <= other.FolioEnd && other.FolioStart <= c.FolioEnd
}

// Revoke marks the CAF unusable for further issuance
func (c *Caf) Revoke() {
	c.Status = CafStatusRevoked
}

// Exhaust marks the CAF's folio range fully consumed
func (c *Caf) Exhaust() {
	c.Status = CafStatusExhausted
}
