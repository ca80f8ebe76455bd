package domain

import (
	"errors"
	"strings"
)

// Scope is the entity granularity of a demand forecast.
type Scope string

const (
	ScopeDistrict     Scope = "district"
	ScopeNeighborhood Scope = "neighborhood"
)

const (
	DefaultHorizon = 6
	MaxHorizon     = 18

	demandUnit      = "m3"
	demandFrequency = "monthly"
)

// ErrMissingName is returned when a demand request names no entity.
var ErrMissingName = errors.New("name is required")

// DemandRequest carries the pre-aggregated rows for one entity. Annual and
// ProductionByMonth feed the fallback synthesis; Usage is the neighborhood
// consumption figure.
type DemandRequest struct {
	Scope             Scope              `json:"scope"`
	Name              string             `json:"name"`
	Horizon           int                `json:"horizon"`
	Monthly           []TimeSeriesPoint  `json:"monthly"`
	Annual            []TimeSeriesPoint  `json:"annual,omitempty"`
	ProductionByMonth []MonthlyTotal     `json:"production_by_month,omitempty"`
	Usage             *NeighborhoodUsage `json:"usage,omitempty"`
}

// NormalizeScope maps a free-form scope to a known Scope, defaulting to district.
func NormalizeScope(s Scope) Scope {
	if strings.EqualFold(strings.TrimSpace(string(s)), string(ScopeNeighborhood)) {
		return ScopeNeighborhood
	}
	return ScopeDistrict
}

// ClampHorizon bounds a requested horizon to [1, MaxHorizon]. An unset (zero)
// horizon uses DefaultHorizon.
func ClampHorizon(h int) int {
	if h == 0 {
		return DefaultHorizon
	}
	return max(1, min(h, MaxHorizon))
}

// ForecastDemand assembles the monthly series for req, selects a model,
// forecasts the mid-point, and wraps it in p10/p50/p90 bands. An empty
// history is not an error: it yields an empty forecast tagged sma3.
func ForecastDemand(req DemandRequest) (ForecastResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return ForecastResult{}, ErrMissingName
	}
	req.Scope = NormalizeScope(req.Scope)
	horizon := ClampHorizon(req.Horizon)

	history, synthesized, err := AssembleDemandSeries(req, clock.Now())
	if err != nil {
		return ForecastResult{}, err
	}

	values := seriesValues(history)
	model := SelectModel(len(values))
	result := ForecastResult{
		Unit:        demandUnit,
		Frequency:   demandFrequency,
		History:     history,
		Forecast:    []ForecastPoint{},
		Model:       model,
		NumPoints:   len(values),
		Synthesized: synthesized,
	}
	if len(history) == 0 {
		return result, nil
	}

	result.DataRange = DataRange{Start: history[0].Period, End: history[len(history)-1].Period}

	mid := ForecastMid(model, values, horizon)
	p10, p50, p90 := EstimateBands(values).Apply(mid)

	last := result.DataRange.End
	result.Forecast = make([]ForecastPoint, len(mid))
	for i := range mid {
		// History labels are normalized by BuildMonthlySeries, so this cannot fail.
		label, _ := AddMonths(last, i+1)
		result.Forecast[i] = ForecastPoint{Period: label, P10: p10[i], P50: p50[i], P90: p90[i]}
	}

	if bandsInverted(result.Forecast) {
		result.Warnings = append(result.Warnings, WarningBandsInverted)
	}
	return result, nil
}
