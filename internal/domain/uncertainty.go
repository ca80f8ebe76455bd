package domain

import "math"

// WarningBandsInverted marks a forecast where some step has p10 > p50 or
// p50 > p90. The ordering is reported, not corrected.
const WarningBandsInverted = "bands_inverted"

const (
	trendDamping         = 0.5
	stdDevBandFactor     = 0.5
	cvBandFactor         = 0.15
	bandWideningPerStep  = 0.1
	minSeasonalResiduals = 3
)

// Bands are the additive offsets applied around the mid forecast before
// horizon widening.
type Bands struct {
	TrendAdj float64
	Q10      float64
	Q90      float64
}

// EstimateBands derives the trend adjustment and the p10/p90 offsets from the
// full history.
//
//	n > 12 with >= 3 seasonal residuals y[i]-y[i-12]: 10th/90th percentiles
//	n == 12: -/+ mean*cv*0.15
//	otherwise: -/+ 0.5*stdDev
func EstimateBands(history []float64) Bands {
	n := len(history)
	m, sd := meanStdDev(history)

	b := Bands{
		TrendAdj: trendDamping * Slope(history),
		Q10:      -stdDevBandFactor * sd,
		Q90:      stdDevBandFactor * sd,
	}

	switch {
	case n > SeasonLength:
		residuals := make([]float64, 0, n-SeasonLength)
		for i := SeasonLength; i < n; i++ {
			residuals = append(residuals, history[i]-history[i-SeasonLength])
		}
		if len(residuals) >= minSeasonalResiduals {
			b.Q10 = Percentile(residuals, 0.10)
			b.Q90 = Percentile(residuals, 0.90)
		}
	case n == SeasonLength:
		cv := 0.0
		if m > 0 {
			cv = sd / m
		}
		b.Q10 = -m * cv * cvBandFactor
		b.Q90 = m * cv * cvBandFactor
	}
	return b
}

// Apply turns the mid forecast into banded values. At step i the trend
// contributes TrendAdj*(i+1) and the offsets widen by (1+0.1i); every value
// is floored at zero.
func (b Bands) Apply(mid []float64) (p10, p50, p90 []float64) {
	p10 = make([]float64, len(mid))
	p50 = make([]float64, len(mid))
	p90 = make([]float64, len(mid))
	for i, v := range mid {
		centre := v + b.TrendAdj*float64(i+1)
		widen := 1 + bandWideningPerStep*float64(i)
		p50[i] = math.Max(0, finiteOr(centre, 0))
		p10[i] = math.Max(0, finiteOr(centre+b.Q10*widen, 0))
		p90[i] = math.Max(0, finiteOr(centre+b.Q90*widen, 0))
	}
	return p10, p50, p90
}

// bandsInverted reports whether any forecast step violates p10 <= p50 <= p90.
func bandsInverted(points []ForecastPoint) bool {
	for _, p := range points {
		if p.P10 > p.P50 || p.P50 > p.P90 {
			return true
		}
	}
	return false
}
