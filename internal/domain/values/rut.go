package values

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Rut represents a Chilean taxpayer identifier (Rol Único Tributario).
// Stored normalized: body without separators plus uppercase check digit.
type Rut struct {
	number int64
	dv     byte
}

// NewRut creates a Rut from its numeric body and check digit, validating the
// modulo-11 check digit.
func NewRut(number int64, dv byte) (Rut, error) {
	if number <= 0 {
		return Rut{}, fmt.Errorf("rut number must be positive: %d", number)
	}

	dv = upperDV(dv)
	expected := computeDV(number)
	if dv != expected {
		return Rut{}, fmt.Errorf("invalid rut check digit for %d: got %c, want %c", number, dv, expected)
	}

	return Rut{number: number, dv: dv}, nil
}

// ParseRut parses common RUT formats: "76543210-K", "76.543.210-K", "76543210K".
func ParseRut(s string) (Rut, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(s))
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")

	if len(cleaned) < 2 {
		return Rut{}, fmt.Errorf("rut too short: %q", s)
	}

	body := cleaned[:len(cleaned)-1]
	dv := cleaned[len(cleaned)-1]

	number, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		return Rut{}, fmt.Errorf("invalid rut body %q: %w", s, err)
	}

	return NewRut(number, dv)
}

// MustParseRut parses a RUT and panics on error (for constants/tests)
func MustParseRut(s string) Rut {
	r, err := ParseRut(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Number returns the numeric body
func (r Rut) Number() int64 {
	return r.number
}

// IsZero reports whether the Rut is the zero value
func (r Rut) IsZero() bool {
	return r.number == 0
}

// Equal checks two Ruts for equality
func (r Rut) Equal(other Rut) bool {
	return r.number == other.number && r.dv == other.dv
}

// String returns the canonical "76543210-K" form
func (r Rut) String() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d-%c", r.number, r.dv)
}

// Formatted returns the dotted display form "76.543.210-K"
func (r Rut) Formatted() string {
	if r.IsZero() {
		return ""
	}

	digits := strconv.FormatInt(r.number, 10)
	var b strings.Builder
	pre := len(digits) % 3
	if pre > 0 {
		b.WriteString(digits[:pre])
	}
	for i := pre; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	b.WriteByte('-')
	b.WriteByte(r.dv)
	return b.String()
}

// MarshalText implements encoding.TextMarshaler using the canonical form
func (r Rut) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *Rut) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*r = Rut{}
		return nil
	}
	rut, err := ParseRut(string(data))
	if err != nil {
		return err
	}
	*r = rut
	return nil
}

// Database scanning (implements sql.Scanner)
func (r *Rut) Scan(value interface{}) error {
	if value == nil {
		*r = Rut{}
		return nil
	}

	switch v := value.(type) {
	case string:
		rut, err := ParseRut(v)
		if err != nil {
			return err
		}
		*r = rut
		return nil
	case []byte:
		return r.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Rut", value)
	}
}

// Database value (implements driver.Valuer)
func (r Rut) Value() (driver.Value, error) {
	if r.IsZero() {
		return nil, nil
	}
	return r.String(), nil
}

// computeDV derives the modulo-11 check digit for a RUT body.
func computeDV(number int64) byte {
	sum := 0
	factor := 2
	for number > 0 {
		sum += int(number%10) * factor
		number /= 10
		factor++
		if factor > 7 {
			factor = 2
		}
	}

	switch rest := 11 - sum%11; rest {
	case 11:
		return '0'
	case 10:
		return 'K'
	default:
		return byte('0' + rest)
	}
}

func upperDV(dv byte) byte {
	if dv == 'k' {
		return 'K'
	}
	return dv
}
