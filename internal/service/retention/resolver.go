package retention

import "github.com/shopspring/decimal"

// Progressive retention schedule for fee receipts (boletas de honorarios).
// The regulatory phase-in fixes a rate per year; outside the table the
// resolver extrapolates deliberately: legacy floor before the phase-in,
// final cap after it.
var schedule = map[int]decimal.Decimal{
	2024: decimal.RequireFromString("0.1375"),
	2025: decimal.RequireFromString("0.1450"),
	2026: decimal.RequireFromString("0.1525"),
	2027: decimal.RequireFromString("0.1600"),
}

var (
	legacyFloor = decimal.RequireFromString("0.1300")
	futureCap   = decimal.RequireFromString("0.1700")
)

// Rate returns the retention rate fraction for a tax year. Total over all
// integer years: there is no error path.
func Rate(year int) decimal.Decimal {
	if rate, ok := schedule[year]; ok {
		return rate
	}
	if year < 2024 {
		return legacyFloor
	}
	return futureCap
}
