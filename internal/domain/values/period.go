package values

import (
	"fmt"
	"time"
)

// Period identifies a monthly tax period ("2025-10"). The SII reports RCV
// ledgers per period, and reconciliation runs are scoped to one.
type Period struct {
	year  int
	month time.Month
}

// NewPeriod creates a Period from year and month
func NewPeriod(year int, month time.Month) (Period, error) {
	if year < 2000 || year > 2100 {
		return Period{}, fmt.Errorf("period year out of range: %d", year)
	}
	if month < time.January || month > time.December {
		return Period{}, fmt.Errorf("invalid period month: %d", month)
	}
	return Period{year: year, month: month}, nil
}

// ParsePeriod parses the canonical "YYYY-MM" form
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	return NewPeriod(t.Year(), t.Month())
}

// MustParsePeriod parses a period and panics on error (for constants/tests)
func MustParsePeriod(s string) Period {
	p, err := ParsePeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PeriodOf returns the period containing t
func PeriodOf(t time.Time) Period {
	return Period{year: t.Year(), month: t.Month()}
}

// Year returns the period's year
func (p Period) Year() int {
	return p.year
}

// Month returns the period's month
func (p Period) Month() time.Month {
	return p.month
}

// IsZero reports whether the period is the zero value
func (p Period) IsZero() bool {
	return p.year == 0
}

// String returns the canonical "YYYY-MM" form
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.year, int(p.month))
}

// MarshalText implements encoding.TextMarshaler using the canonical form
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Period) UnmarshalText(data []byte) error {
	parsed, err := ParsePeriod(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Start returns midnight UTC on the first day of the period
func (p Period) Start() time.Time {
	return time.Date(p.year, p.month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns midnight UTC on the first day of the next period.
// The period covers [Start, End).
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Contains reports whether t falls within the period
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start()) && t.Before(p.End())
}

// Next returns the following period
func (p Period) Next() Period {
	end := p.End()
	return Period{year: end.Year(), month: end.Month()}
}

// Before reports whether p precedes other
func (p Period) Before(other Period) bool {
	if p.year != other.year {
		return p.year < other.year
	}
	return p.month < other.month
}

// Equal checks two periods for equality
func (p Period) Equal(other Period) bool {
	return p.year == other.year && p.month == other.month
}
