package domain

// Model tags the smoothing strategy used for a demand forecast.
type Model string

const (
	ModelSeasonalNaive Model = "seasonal_naive"
	ModelHoltLinear    Model = "holt_linear"
	ModelSMA3          Model = "sma3"
)

const (
	minSeasonalPoints = 12
	minHoltPoints     = 6
)

// SelectModel picks the strategy for a series of n points. The thresholds are
// checked longest first and apply equally to native and synthesized series.
func SelectModel(n int) Model {
	switch {
	case n >= minSeasonalPoints:
		return ModelSeasonalNaive
	case n >= minHoltPoints:
		return ModelHoltLinear
	default:
		return ModelSMA3
	}
}

// ForecastMid produces the mid-point forecast for horizon steps using model.
func ForecastMid(model Model, y []float64, horizon int) []float64 {
	switch model {
	case ModelSeasonalNaive:
		return SeasonalNaive(y, SeasonLength, horizon)
	case ModelHoltLinear:
		fit, _ := HoltLinearBest(y, horizon)
		return fit.Forecast
	default:
		return smaForecast(y, horizon)
	}
}

// smaForecast repeats the mean of the last up to three points.
func smaForecast(y []float64, horizon int) []float64 {
	level := mean(y[max(0, len(y)-3):])
	out := make([]float64, max(0, horizon))
	for i := range out {
		out[i] = level
	}
	return out
}
