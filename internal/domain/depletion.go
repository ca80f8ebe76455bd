package domain

import (
	"math"
	"slices"
	"strings"
)

// Scenario names the rainfall assumption of a depletion projection. Only
// ScenarioLow alters the trend; any other value uses the raw slope.
type Scenario string

const ScenarioLow Scenario = "low"

const (
	DefaultDepletionThreshold = 20.0
	DefaultDepletionWindow    = 21
	MinDepletionWindow        = 5
	MaxDepletionWindow        = 90

	// fallbackDepletionWindow is retried when the requested window holds
	// fewer than two dam-day rows.
	fallbackDepletionWindow = 90
	minSlopePoints          = 3

	minLowDrift      = 0.05
	lowDriftDamping  = 0.5
	lowDriftFallback = 0.1

	// maxProjectedDays bounds day counts so they fit any int.
	maxProjectedDays = math.MaxInt32
)

// DepletionRequest carries the raw dam samples for a projection. A nil
// Threshold, zero Window, or empty Scenario take the defaults.
type DepletionRequest struct {
	Threshold *float64        `json:"threshold,omitempty"`
	Window    int             `json:"window,omitempty"`
	Scenario  Scenario        `json:"scenario,omitempty"`
	Samples   []DamFillSample `json:"samples"`
}

// dayFill is one dam's average fill on a UTC calendar day ("2006-01-02").
type dayFill struct {
	day  string
	fill float64
}

// ProjectDepletion extrapolates each dam's recent fill trend to the threshold
// and reports the earliest dam to reach it.
func ProjectDepletion(req DepletionRequest) DepletionResult {
	threshold := DefaultDepletionThreshold
	if req.Threshold != nil && !math.IsNaN(*req.Threshold) {
		threshold = Clamp(*req.Threshold, 0, 100)
	}
	window := ClampWindow(req.Window)
	scenario := req.Scenario
	if strings.TrimSpace(string(scenario)) == "" {
		scenario = ScenarioLow
	}

	daily := averageByDamDay(req.Samples)
	series := windowSeries(daily, window)
	if countRows(series) < 2 {
		window = fallbackDepletionWindow
		series = windowSeries(daily, window)
	}

	result := DepletionResult{
		Threshold: threshold,
		Scenario:  scenario,
		Window:    window,
		Items:     []DepletionItem{},
	}

	dams := make([]string, 0, len(series))
	for dam := range series {
		dams = append(dams, dam)
	}
	slices.Sort(dams)

	for _, dam := range dams {
		points := series[dam]
		if len(points) == 0 {
			continue
		}
		result.Items = append(result.Items, projectDam(dam, points, threshold, scenario))
	}

	for _, item := range result.Items {
		if item.DaysToThreshold == nil {
			continue
		}
		if result.EarliestDays == nil || *item.DaysToThreshold < *result.EarliestDays {
			days, name := *item.DaysToThreshold, item.DamName
			result.EarliestDays = &days
			result.EarliestDam = &name
		}
	}
	return result
}

// ClampWindow bounds a rolling window in days to [5, 90]; zero or negative
// requests use DefaultDepletionWindow.
func ClampWindow(w int) int {
	if w <= 0 {
		return DefaultDepletionWindow
	}
	return max(MinDepletionWindow, min(MaxDepletionWindow, w))
}

func projectDam(dam string, points []dayFill, threshold float64, scenario Scenario) DepletionItem {
	fills := make([]float64, len(points))
	for i, p := range points {
		fills[i] = p.fill
	}
	current := fills[len(fills)-1]

	slope := 0.0
	if len(fills) >= minSlopePoints {
		slope = Slope(fills)
	}

	drift := slope
	if scenario == ScenarioLow {
		drift = lowScenarioDrift(slope, meanDelta(fills))
	}

	return DepletionItem{
		DamName:         dam,
		CurrentFill:     current,
		SlopePerDay:     slope,
		DaysToThreshold: daysToThreshold(current, threshold, drift),
	}
}

// lowScenarioDrift forces a negative drift of at least max(0.05, |meanDelta|/2),
// using 0.1 when the mean delta is zero.
func lowScenarioDrift(slope, meanDelta float64) float64 {
	magnitude := lowDriftDamping * math.Abs(meanDelta)
	if magnitude == 0 || math.IsNaN(magnitude) {
		magnitude = lowDriftFallback
	}
	return math.Min(slope, -math.Max(minLowDrift, magnitude))
}

func daysToThreshold(current, threshold, drift float64) *int {
	if current <= threshold {
		days := 0
		return &days
	}
	if drift >= 0 {
		return nil
	}
	d := (current - threshold) / -drift
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 || d > maxProjectedDays {
		return nil
	}
	days := int(math.Ceil(d))
	return &days
}

// meanDelta is the arithmetic mean of successive differences.
func meanDelta(fills []float64) float64 {
	if len(fills) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(fills); i++ {
		sum += fills[i] - fills[i-1]
	}
	return sum / float64(len(fills)-1)
}

// averageByDamDay averages samples per dam per UTC day. Non-finite fills are
// dropped.
func averageByDamDay(samples []DamFillSample) map[string]map[string]float64 {
	type acc struct {
		sum   float64
		count int
	}
	accs := make(map[string]map[string]*acc)
	for _, s := range samples {
		if math.IsNaN(s.FillPercent) || math.IsInf(s.FillPercent, 0) {
			continue
		}
		day := s.Date.UTC().Format("2006-01-02")
		byDay, ok := accs[s.DamName]
		if !ok {
			byDay = make(map[string]*acc)
			accs[s.DamName] = byDay
		}
		a, ok := byDay[day]
		if !ok {
			a = &acc{}
			byDay[day] = a
		}
		a.sum += s.FillPercent
		a.count++
	}

	out := make(map[string]map[string]float64, len(accs))
	for dam, byDay := range accs {
		out[dam] = make(map[string]float64, len(byDay))
		for day, a := range byDay {
			out[dam][day] = a.sum / float64(a.count)
		}
	}
	return out
}

// windowSeries keeps the most recent window distinct days across all dams and
// returns each dam's rows in chronological order.
func windowSeries(daily map[string]map[string]float64, window int) map[string][]dayFill {
	seen := make(map[string]struct{})
	for _, byDay := range daily {
		for day := range byDay {
			seen[day] = struct{}{}
		}
	}
	days := make([]string, 0, len(seen))
	for day := range seen {
		days = append(days, day)
	}
	slices.Sort(days)
	if len(days) > window {
		days = days[len(days)-window:]
	}

	out := make(map[string][]dayFill, len(daily))
	for dam, byDay := range daily {
		for _, day := range days {
			if fill, ok := byDay[day]; ok {
				out[dam] = append(out[dam], dayFill{day: day, fill: fill})
			}
		}
	}
	return out
}

func countRows(series map[string][]dayFill) int {
	var n int
	for _, points := range series {
		n += len(points)
	}
	return n
}
