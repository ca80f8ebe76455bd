package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var depletionStart = time.Date(2024, time.July, 1, 8, 0, 0, 0, time.UTC)

// damSeries produces one sample per consecutive day starting at offset.
func damSeries(name string, offset int, fills ...float64) []DamFillSample {
	out := make([]DamFillSample, len(fills))
	for i, f := range fills {
		out[i] = DamFillSample{DamName: name, Date: depletionStart.AddDate(0, 0, offset+i), FillPercent: f}
	}
	return out
}

func threshold(v float64) *float64 { return &v }

func itemByName(t *testing.T, result DepletionResult, name string) DepletionItem {
	t.Helper()
	for _, it := range result.Items {
		if it.DamName == name {
			return it
		}
	}
	require.Failf(t, "dam not found", "%s", name)
	return DepletionItem{}
}

func TestProjectDepletion_LowScenarioConstantDecline(t *testing.T) {
	result := ProjectDepletion(DepletionRequest{
		Threshold: threshold(20),
		Scenario:  ScenarioLow,
		Samples:   damSeries("A", 0, 34, 33, 32, 31, 30),
	})

	item := itemByName(t, result, "A")
	assert.InDelta(t, -1.0, item.SlopePerDay, 1e-9)
	assert.Equal(t, 30.0, item.CurrentFill)
	require.NotNil(t, item.DaysToThreshold)
	assert.Equal(t, 10, *item.DaysToThreshold)

	require.NotNil(t, result.EarliestDays)
	assert.Equal(t, 10, *result.EarliestDays)
	require.NotNil(t, result.EarliestDam)
	assert.Equal(t, "A", *result.EarliestDam)
}

func TestProjectDepletion_AlreadyBelowThreshold(t *testing.T) {
	for _, scenario := range []Scenario{ScenarioLow, "normal"} {
		result := ProjectDepletion(DepletionRequest{
			Threshold: threshold(20),
			Scenario:  scenario,
			Samples:   damSeries("B", 0, 10, 12, 15),
		})
		item := itemByName(t, result, "B")
		require.NotNil(t, item.DaysToThreshold, scenario)
		assert.Equal(t, 0, *item.DaysToThreshold, scenario)
	}
}

func TestProjectDepletion_NonLowScenarioNotTrendingDown(t *testing.T) {
	tests := []struct {
		name  string
		fills []float64
	}{
		{"rising", []float64{40, 41, 42, 43}},
		{"flat", []float64{40, 40, 40, 40}},
		{"two points use zero slope", []float64{40, 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ProjectDepletion(DepletionRequest{
				Threshold: threshold(20),
				Scenario:  "normal",
				Samples:   damSeries("C", 0, tt.fills...),
			})
			item := itemByName(t, result, "C")
			assert.Nil(t, item.DaysToThreshold)
			assert.Nil(t, result.EarliestDays)
			assert.Nil(t, result.EarliestDam)
		})
	}
}

func TestProjectDepletion_LowScenarioForcesNegativeDrift(t *testing.T) {
	t.Run("rising dam uses half the mean delta", func(t *testing.T) {
		// slope 4, mean delta 4 -> drift min(4, -2) = -2
		result := ProjectDepletion(DepletionRequest{Threshold: threshold(20), Samples: damSeries("D", 0, 40, 44, 48)})
		item := itemByName(t, result, "D")
		require.NotNil(t, item.DaysToThreshold)
		assert.Equal(t, 14, *item.DaysToThreshold)
	})

	t.Run("flat dam falls back to 0.1 per day", func(t *testing.T) {
		result := ProjectDepletion(DepletionRequest{Threshold: threshold(20), Samples: damSeries("E", 0, 50, 50, 50)})
		item := itemByName(t, result, "E")
		require.NotNil(t, item.DaysToThreshold)
		assert.InDelta(t, 300, *item.DaysToThreshold, 1)
	})

	t.Run("small delta floored at 0.05 per day", func(t *testing.T) {
		result := ProjectDepletion(DepletionRequest{Threshold: threshold(20), Samples: damSeries("F", 0, 50, 50.02, 50.04)})
		item := itemByName(t, result, "F")
		require.NotNil(t, item.DaysToThreshold)
		assert.InDelta(t, 601, *item.DaysToThreshold, 1)
	})

	t.Run("two points still get a drift", func(t *testing.T) {
		result := ProjectDepletion(DepletionRequest{Threshold: threshold(20), Samples: damSeries("G", 0, 30, 28)})
		item := itemByName(t, result, "G")
		assert.Equal(t, 0.0, item.SlopePerDay)
		require.NotNil(t, item.DaysToThreshold)
		assert.Equal(t, 8, *item.DaysToThreshold)
	})
}

func TestProjectDepletion_AveragesSamplesPerDay(t *testing.T) {
	samples := damSeries("H", 0, 40, 38, 36)
	samples = append(samples, DamFillSample{DamName: "H", Date: depletionStart.AddDate(0, 0, 2).Add(6 * time.Hour), FillPercent: 34})

	result := ProjectDepletion(DepletionRequest{Threshold: threshold(20), Scenario: "normal", Samples: samples})

	item := itemByName(t, result, "H")
	assert.Equal(t, 35.0, item.CurrentFill)
}

func TestProjectDepletion_RollingWindow(t *testing.T) {
	fills := append(repeat(100, 25), 60, 59, 58, 57, 56)

	result := ProjectDepletion(DepletionRequest{Threshold: threshold(20), Window: 5, Scenario: "normal", Samples: damSeries("I", 0, fills...)})

	assert.Equal(t, 5, result.Window)
	item := itemByName(t, result, "I")
	assert.InDelta(t, -1.0, item.SlopePerDay, 1e-9)
	require.NotNil(t, item.DaysToThreshold)
	assert.Equal(t, 36, *item.DaysToThreshold)
}

func TestProjectDepletion_WindowIsSharedAcrossDams(t *testing.T) {
	// Dam K only reports on old days, so a short window drops it entirely.
	samples := append(damSeries("J", 10, 50, 49, 48, 47, 46), damSeries("K", 0, 70, 69, 68)...)

	result := ProjectDepletion(DepletionRequest{Threshold: threshold(20), Window: 5, Scenario: "normal", Samples: samples})

	require.Len(t, result.Items, 1)
	assert.Equal(t, "J", result.Items[0].DamName)
}

func TestProjectDepletion_WidensSparseWindow(t *testing.T) {
	result := ProjectDepletion(DepletionRequest{Window: 5, Samples: damSeries("L", 0, 45)})

	assert.Equal(t, 90, result.Window)
	require.Len(t, result.Items, 1)
}

func TestProjectDepletion_EarliestDam(t *testing.T) {
	samples := append(damSeries("Alpha", 0, 34, 33, 32, 31, 30), damSeries("Beta", 0, 18, 17, 16)...)
	samples = append(samples, damSeries("Gamma", 0, 60, 61, 62)...)
	samples = append(samples, damSeries("Delta", 0, 10, 10, 10)...)

	result := ProjectDepletion(DepletionRequest{Threshold: threshold(20), Scenario: "normal", Samples: samples})

	require.Len(t, result.Items, 4)
	assert.Equal(t, []string{"Alpha", "Beta", "Delta", "Gamma"}, []string{
		result.Items[0].DamName, result.Items[1].DamName, result.Items[2].DamName, result.Items[3].DamName,
	})
	assert.Nil(t, itemByName(t, result, "Gamma").DaysToThreshold)
	require.NotNil(t, result.EarliestDays)
	assert.Equal(t, 0, *result.EarliestDays)
	assert.Equal(t, "Beta", *result.EarliestDam)
}

func TestProjectDepletion_Defaults(t *testing.T) {
	result := ProjectDepletion(DepletionRequest{})

	assert.Equal(t, DefaultDepletionThreshold, result.Threshold)
	assert.Equal(t, ScenarioLow, result.Scenario)
	assert.NotNil(t, result.Items)
	assert.Empty(t, result.Items)
	assert.Nil(t, result.EarliestDays)
	assert.Nil(t, result.EarliestDam)

	result = ProjectDepletion(DepletionRequest{Threshold: threshold(150)})
	assert.Equal(t, 100.0, result.Threshold)
}

func TestProjectDepletion_DropsNonFiniteSamples(t *testing.T) {
	samples := damSeries("M", 0, 34, 33, 32, 31, 30)
	samples = append(samples, DamFillSample{DamName: "M", Date: depletionStart.AddDate(0, 0, 4), FillPercent: math.NaN()})

	result := ProjectDepletion(DepletionRequest{Threshold: threshold(20), Samples: samples})

	item := itemByName(t, result, "M")
	assert.Equal(t, 30.0, item.CurrentFill)
	require.NotNil(t, item.DaysToThreshold)
	assert.Equal(t, 10, *item.DaysToThreshold)
}

func TestClampWindow(t *testing.T) {
	assert.Equal(t, 21, ClampWindow(0))
	assert.Equal(t, 5, ClampWindow(2))
	assert.Equal(t, 90, ClampWindow(365))
	assert.Equal(t, 30, ClampWindow(30))
}

func TestLowScenarioDrift(t *testing.T) {
	assert.Equal(t, -1.0, lowScenarioDrift(-1, -1))
	assert.Equal(t, -0.5, lowScenarioDrift(-0.2, -1))
	assert.Equal(t, -0.1, lowScenarioDrift(0, 0))
	assert.Equal(t, -0.05, lowScenarioDrift(0.3, 0.02))
}

func TestProjectDepletion_DateOnlyMatchesTimestamps(t *testing.T) {
	var decoded []DamFillSample
	require.NoError(t, json.Unmarshal([]byte(`[
		{"dam_name": "A", "date": "2024-07-01", "fill_percent": 34},
		{"dam_name": "A", "date": "2024-07-02", "fill_percent": 33},
		{"dam_name": "A", "date": "2024-07-03", "fill_percent": 32},
		{"dam_name": "A", "date": "2024-07-04", "fill_percent": 31},
		{"dam_name": "A", "date": "2024-07-05", "fill_percent": 30}
	]`), &decoded))

	fromDates := ProjectDepletion(DepletionRequest{Threshold: threshold(20), Samples: decoded})
	fromTimestamps := ProjectDepletion(DepletionRequest{Threshold: threshold(20), Samples: damSeries("A", 0, 34, 33, 32, 31, 30)})

	assert.Equal(t, fromTimestamps, fromDates)
}
