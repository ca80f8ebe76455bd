package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// MonthlyTotal is an auxiliary production total for a calendar month (1-12),
// summed over all sources and years.
type MonthlyTotal struct {
	Month int     `json:"month"`
	Total float64 `json:"total"`
}

// NeighborhoodUsage is the single consumption figure available at
// neighborhood granularity.
type NeighborhoodUsage struct {
	AvgConsumption float64 `json:"avg_consumption"`
	Subscribers    float64 `json:"subscribers"`
}

// BuildMonthlySeries deduplicates rows by month (last write wins) and sorts
// them ascending. Labels are normalized to zero-padded "YYYY-MM".
func BuildMonthlySeries(rows []TimeSeriesPoint) ([]TimeSeriesPoint, error) {
	byPeriod := make(map[string]float64, len(rows))
	for _, r := range rows {
		year, month, err := parseMonth(r.Period)
		if err != nil {
			return nil, err
		}
		byPeriod[formatMonth(year, month)] = r.Value
	}
	return sortedSeries(byPeriod), nil
}

// MonthlyWeights derives the share of a year attributed to each month from
// the production totals. Months with no positive total, or all months when
// production is empty, weigh 1/12.
func MonthlyWeights(production []MonthlyTotal) [12]float64 {
	var totals [12]float64
	for _, p := range production {
		if p.Month >= 1 && p.Month <= 12 {
			totals[p.Month-1] += p.Total
		}
	}

	var sumAll float64
	for _, v := range totals {
		sumAll += v
	}
	if sumAll == 0 {
		sumAll = 1
	}

	var weights [12]float64
	for i, v := range totals {
		if v > 0 {
			weights[i] = v / sumAll
		} else {
			weights[i] = 1.0 / 12
		}
	}
	return weights
}

// SynthesizeFromAnnual spreads each annual total over its twelve months using
// MonthlyWeights. Annual rows are keyed by "YYYY" (last write wins). Returns
// an empty series when there are no annual rows.
func SynthesizeFromAnnual(annual []TimeSeriesPoint, production []MonthlyTotal) ([]TimeSeriesPoint, error) {
	byYear := make(map[int]float64, len(annual))
	for _, r := range annual {
		year, err := strconv.Atoi(strings.TrimSpace(r.Period))
		if err != nil || year < 0 {
			return nil, fmt.Errorf("%w: annual %q", ErrInvalidPeriod, r.Period)
		}
		byYear[year] = r.Value
	}
	if len(byYear) == 0 {
		return []TimeSeriesPoint{}, nil
	}

	weights := MonthlyWeights(production)
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	slices.Sort(years)

	out := make([]TimeSeriesPoint, 0, len(years)*12)
	for _, y := range years {
		for m := 1; m <= 12; m++ {
			out = append(out, TimeSeriesPoint{
				Period: formatMonth(y, m),
				Value:  byYear[y] * weights[m-1],
			})
		}
	}
	return out, nil
}

// FlatTrailingSeries returns twelve monthly points ending at the month of now,
// each carrying value.
func FlatTrailingSeries(value float64, now time.Time) []TimeSeriesPoint {
	current := now.Year()*12 + int(now.Month()) - 1
	out := make([]TimeSeriesPoint, 0, 12)
	for back := 11; back >= 0; back-- {
		idx := current - back
		out = append(out, TimeSeriesPoint{Period: formatMonth(idx/12, idx%12+1), Value: value})
	}
	return out
}

// AssembleDemandSeries builds the best available monthly series for req. When
// the primary series has fewer than twelve points it is replaced by the
// annual synthesis, which may itself be empty. The boolean reports whether
// the synthesis was used.
func AssembleDemandSeries(req DemandRequest, now time.Time) ([]TimeSeriesPoint, bool, error) {
	var primary []TimeSeriesPoint
	switch req.Scope {
	case ScopeNeighborhood:
		var value float64
		if req.Usage != nil {
			value = req.Usage.AvgConsumption * req.Usage.Subscribers
		}
		primary = FlatTrailingSeries(value, now)
	default:
		var err error
		primary, err = BuildMonthlySeries(req.Monthly)
		if err != nil {
			return nil, false, err
		}
	}

	if len(primary) >= minSeasonalPoints {
		return primary, false, nil
	}

	synth, err := SynthesizeFromAnnual(req.Annual, req.ProductionByMonth)
	if err != nil {
		return nil, false, err
	}
	return synth, true, nil
}

func sortedSeries(byPeriod map[string]float64) []TimeSeriesPoint {
	periods := make([]string, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	slices.Sort(periods)

	out := make([]TimeSeriesPoint, len(periods))
	for i, p := range periods {
		out[i] = TimeSeriesPoint{Period: p, Value: byPeriod[p]}
	}
	return out
}

func seriesValues(points []TimeSeriesPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
