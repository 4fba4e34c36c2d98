package values

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "2025-10", false},
		{"january", "2024-01", false},
		{"invalid month", "2025-13", true},
		{"missing month", "2025", true},
		{"garbage", "october", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePeriod(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, p.String())
		})
	}
}

func TestPeriod_Bounds(t *testing.T) {
	p := MustParsePeriod("2025-10")

	assert.Equal(t, time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC), p.Start())
	assert.Equal(t, time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC), p.End())

	assert.True(t, p.Contains(time.Date(2025, time.October, 15, 12, 0, 0, 0, time.UTC)))
	assert.True(t, p.Contains(p.Start()))
	assert.False(t, p.Contains(p.End()))
	assert.False(t, p.Contains(time.Date(2025, time.September, 30, 23, 59, 59, 0, time.UTC)))
}

func TestPeriod_NextAndOrdering(t *testing.T) {
	dec := MustParsePeriod("2024-12")
	jan := dec.Next()

	assert.Equal(t, "2025-01", jan.String())
	assert.True(t, dec.Before(jan))
	assert.False(t, jan.Before(dec))
	assert.True(t, jan.Equal(MustParsePeriod("2025-01")))
}

func TestPeriodOf(t *testing.T) {
	p := PeriodOf(time.Date(2025, time.October, 5, 10, 30, 0, 0, time.UTC))
	assert.Equal(t, "2025-10", p.String())
}
