package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateVPB(t *testing.T) {
	tests := []struct {
		name   string
		profit float64
		want   float64
	}{
		{"zero profit", 0, 0},
		{"loss", -5000, 0},
		{"small profit in low bracket", 10_000, 1900},
		{"exactly at threshold", 200_000, 38_000},
		{"above threshold", 250_000, 38_000 + 12_900},
		{"just over threshold", 200_001, 38_000.26},
		{"cent rounding", 100.10, 19.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateVPB(tt.profit), 1e-9)
		})
	}
}

func TestBreakdownVPB(t *testing.T) {
	b := BreakdownVPB(250_000)
	assert.Equal(t, 250_000.0, b.TaxableProfit)
	assert.Equal(t, 200_000.0, b.LowBracket)
	assert.Equal(t, 38_000.0, b.LowBracketTax)
	assert.Equal(t, 50_000.0, b.HighBracket)
	assert.Equal(t, 12_900.0, b.HighBracketTax)
	assert.Equal(t, 50_900.0, b.TotalVPB)
	assert.InDelta(t, 20.4, b.EffectiveRate, 1e-9) // 50900/250000 = 20.36%, one decimal
}

func TestBreakdownVPBLowBracketOnly(t *testing.T) {
	b := BreakdownVPB(80_000)
	assert.Equal(t, 80_000.0, b.LowBracket)
	assert.Equal(t, 0.0, b.HighBracket)
	assert.Equal(t, 15_200.0, b.TotalVPB)
	assert.InDelta(t, 19.0, b.EffectiveRate, 1e-9)
}

func TestBreakdownVPBLoss(t *testing.T) {
	b := BreakdownVPB(-1000)
	assert.Equal(t, 0.0, b.TotalVPB)
	assert.Equal(t, 0.0, b.EffectiveRate)
}

func TestFilingDeadline(t *testing.T) {
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), FilingDeadline(2024))
}
