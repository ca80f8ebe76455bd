package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// TimeSeriesPoint is one labeled observation. Period is "YYYY-MM" for monthly
// series and "YYYY" for annual totals. Negative values are not rejected.
type TimeSeriesPoint struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

// ForecastPoint is one forecast step with additive uncertainty bands.
type ForecastPoint struct {
	Period string  `json:"period"`
	P10    float64 `json:"p10"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
}

// DataRange is the first and last history label; both are empty for an empty history.
type DataRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ForecastResult is the demand forecast handed to the API layer.
type ForecastResult struct {
	Unit        string            `json:"unit"`
	Frequency   string            `json:"frequency"`
	History     []TimeSeriesPoint `json:"history"`
	Forecast    []ForecastPoint   `json:"forecast"`
	Model       Model             `json:"model"`
	DataRange   DataRange         `json:"data_range"`
	NumPoints   int               `json:"num_points"`
	Synthesized bool              `json:"synthesized"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// DamFillSample is a single reservoir reading.
type DamFillSample struct {
	DamName     string    `json:"dam_name"`
	Date        time.Time `json:"date"`
	FillPercent float64   `json:"fill_percent"`
}

// sampleDateLayouts are tried in order when decoding a sample date. Daily
// aggregates carry a bare calendar date, read as UTC midnight.
var sampleDateLayouts = []string{time.DateOnly, time.RFC3339Nano}

// UnmarshalJSON accepts "2006-01-02" as well as RFC 3339 timestamps for Date.
func (s *DamFillSample) UnmarshalJSON(data []byte) error {
	type plain DamFillSample
	aux := struct {
		*plain
		Date string `json:"date"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Date == "" {
		s.Date = time.Time{}
		return nil
	}
	for _, layout := range sampleDateLayouts {
		if t, err := time.Parse(layout, aux.Date); err == nil {
			s.Date = t
			return nil
		}
	}
	return fmt.Errorf("invalid sample date %q: want YYYY-MM-DD or RFC 3339", aux.Date)
}

// DepletionItem is the per-dam projection. DaysToThreshold is nil when the
// dam is not trending toward the threshold.
type DepletionItem struct {
	DamName         string  `json:"dam_name"`
	CurrentFill     float64 `json:"current_fill"`
	SlopePerDay     float64 `json:"slope_per_day"`
	DaysToThreshold *int    `json:"days_to_threshold"`
}

// DepletionResult aggregates the per-dam projections.
type DepletionResult struct {
	Threshold    float64         `json:"threshold"`
	Scenario     Scenario        `json:"scenario"`
	Window       int             `json:"window"`
	EarliestDays *int            `json:"earliest_days"`
	EarliestDam  *string         `json:"earliest_dam"`
	Items        []DepletionItem `json:"items"`
}
