package reports

import (
	"time"

	"github.com/username/boxshift/backend/src/utils"
)

// VPB (vennootschapsbelasting) rates for 2024/2025:
// 19% over the first €200.000, 25.8% over everything above.
const (
	vpbThreshold = 200_000.0
	vpbLowRate   = 0.19
	vpbHighRate  = 0.258
)

// CalculateVPB returns the corporate tax due over a taxable profit.
// No VPB is due when the profit is zero or negative.
func CalculateVPB(taxableProfit float64) float64 {
	if taxableProfit <= 0 {
		return 0.0
	}
	if taxableProfit <= vpbThreshold {
		return utils.RoundCents(taxableProfit * vpbLowRate)
	}
	return utils.RoundCents(vpbThreshold*vpbLowRate + (taxableProfit-vpbThreshold)*vpbHighRate)
}

// VPBBreakdown is the per-bracket detail of one VPB calculation.
type VPBBreakdown struct {
	TaxableProfit  float64 `json:"taxable_profit"`
	LowBracket     float64 `json:"low_bracket"`
	LowBracketTax  float64 `json:"low_bracket_tax"`
	HighBracket    float64 `json:"high_bracket"`
	HighBracketTax float64 `json:"high_bracket_tax"`
	TotalVPB       float64 `json:"total_vpb"`
	EffectiveRate  float64 `json:"effective_rate"`
}

// BreakdownVPB returns the detailed bracket calculation for a taxable profit.
func BreakdownVPB(taxableProfit float64) VPBBreakdown {
	if taxableProfit <= 0 {
		return VPBBreakdown{TaxableProfit: utils.RoundCents(taxableProfit)}
	}

	lowBracket := taxableProfit
	highBracket := 0.0
	if taxableProfit > vpbThreshold {
		lowBracket = vpbThreshold
		highBracket = taxableProfit - vpbThreshold
	}

	lowTax := lowBracket * vpbLowRate
	highTax := highBracket * vpbHighRate
	total := lowTax + highTax

	return VPBBreakdown{
		TaxableProfit:  utils.RoundCents(taxableProfit),
		LowBracket:     utils.RoundCents(lowBracket),
		LowBracketTax:  utils.RoundCents(lowTax),
		HighBracket:    utils.RoundCents(highBracket),
		HighBracketTax: utils.RoundCents(highTax),
		TotalVPB:       utils.RoundCents(total),
		EffectiveRate:  utils.RoundFloat(total/taxableProfit*100, 1),
	}
}

// FilingDeadline is the statutory VPB filing deadline for a fiscal year:
// June 1 of the following year.
func FilingDeadline(year int) time.Time {
	return time.Date(year+1, time.June, 1, 0, 0, 0, 0, time.UTC)
}
