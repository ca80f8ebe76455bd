package domain

import (
	"math"
	"slices"
)

// SeasonLength is the monthly seasonal period.
const SeasonLength = 12

// smoothingGrid is the candidate set searched for every smoothing constant.
var smoothingGrid = []float64{0.2, 0.3, 0.4, 0.5}

var (
	defaultHoltParams    = SmoothingParams{Alpha: 0.3, Beta: 0.2}
	defaultWintersParams = SmoothingParams{Alpha: 0.3, Beta: 0.2, Gamma: 0.3}
)

// SmoothingParams are the level (Alpha), trend (Beta), and seasonal (Gamma)
// smoothing constants. Gamma is unused by Holt linear.
type SmoothingParams struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma,omitempty"`
}

// SmoothingFit holds the in-sample one-step fitted values and the forecast.
type SmoothingFit struct {
	Fitted   []float64
	Forecast []float64
}

// SeasonalNaive repeats the last season scaled by recent growth. With fewer
// than seasonLen points it repeats the last observation.
//
// growth is the mean of the last min(3, seasonLen) points over the mean of the
// season block starting 2*seasonLen points before the end (clamped to the
// start of the series). Step i is max(0, y[n-seasonLen+i%seasonLen] *
// growth^((i+1)/seasonLen)).
func SeasonalNaive(y []float64, seasonLen, horizon int) []float64 {
	seasonLen = max(1, seasonLen)
	out := make([]float64, max(0, horizon))
	n := len(y)
	if n == 0 {
		return out
	}
	if n < seasonLen {
		for i := range out {
			out[i] = y[n-1]
		}
		return out
	}

	lastSeason := y[n-seasonLen:]
	recentMean := mean(lastSeason[seasonLen-min(3, seasonLen):])
	priorStart := max(0, n-2*seasonLen)
	priorMean := mean(y[priorStart : priorStart+seasonLen])

	growth := 1.0
	if priorMean > 0 {
		// A negative ratio would make fractional powers NaN.
		growth = math.Max(0, finiteOr(recentMean/priorMean, 1))
	}

	for i := range out {
		base := lastSeason[i%seasonLen]
		scale := math.Pow(growth, float64(i+1)/float64(seasonLen))
		out[i] = math.Max(0, finiteOr(base*scale, 0))
	}
	return out
}

// HoltLinear runs double exponential smoothing. The level starts at y[0] and
// the trend at y[1]-y[0] (0 for a single point). Forecast step k is
// max(0, level + k*trend).
func HoltLinear(y []float64, horizon int, p SmoothingParams) SmoothingFit {
	horizon = max(0, horizon)
	n := len(y)
	if n == 0 {
		return SmoothingFit{Fitted: []float64{}, Forecast: make([]float64, horizon)}
	}

	level := y[0]
	trend := 0.0
	if n >= 2 {
		trend = y[1] - y[0]
	}

	fitted := make([]float64, n)
	for t, actual := range y {
		prevLevel, prevTrend := level, trend
		fitted[t] = prevLevel + prevTrend
		level = p.Alpha*actual + (1-p.Alpha)*(prevLevel+prevTrend)
		trend = p.Beta*(level-prevLevel) + (1-p.Beta)*prevTrend
	}

	forecast := make([]float64, horizon)
	for k := range forecast {
		forecast[k] = math.Max(0, finiteOr(level+trend*float64(k+1), 0))
	}
	return SmoothingFit{Fitted: fitted, Forecast: forecast}
}

// initialTrend is the change between the first two season means. A zero
// second-season mean is treated as missing and gives a flat start.
func initialTrend(seasonAverages []float64) float64 {
	if len(seasonAverages) < 2 || seasonAverages[1] == 0 {
		return 0
	}
	return seasonAverages[1] - seasonAverages[0]
}

// HoltLinearBest grid-searches Alpha and Beta by MAPE over the last
// min(12, n) points and returns the winning fit.
func HoltLinearBest(y []float64, horizon int) (SmoothingFit, SmoothingParams) {
	best, ok := gridSearch(2, func(c []float64) float64 {
		fit := HoltLinear(y, horizon, SmoothingParams{Alpha: c[0], Beta: c[1]})
		return mape(y, fit.Fitted, 12)
	})
	params := defaultHoltParams
	if ok {
		params = SmoothingParams{Alpha: best[0], Beta: best[1]}
	}
	return HoltLinear(y, horizon, params), params
}

// HoltWinters runs additive triple exponential smoothing. Fewer than two full
// seasons degenerate to a flat repeat of the last value.
func HoltWinters(y []float64, seasonLen, horizon int, p SmoothingParams) SmoothingFit {
	seasonLen = max(1, seasonLen)
	horizon = max(0, horizon)
	n := len(y)
	if n < 2*seasonLen {
		last := 0.0
		if n > 0 {
			last = y[n-1]
		}
		forecast := make([]float64, horizon)
		for i := range forecast {
			forecast[i] = last
		}
		return SmoothingFit{Fitted: slices.Clone(y), Forecast: forecast}
	}

	seasonCount := n / seasonLen
	seasonAverages := make([]float64, seasonCount)
	for s := range seasonAverages {
		seasonAverages[s] = mean(y[s*seasonLen : (s+1)*seasonLen])
	}

	level := seasonAverages[0]
	trend := initialTrend(seasonAverages)

	// Each initial seasonal offset is the position's mean across complete
	// seasons minus the mean of those seasons' averages.
	seasonals := make([]float64, seasonLen)
	for i := range seasonals {
		vals := make([]float64, 0, seasonCount)
		for s := 0; s < seasonCount; s++ {
			vals = append(vals, y[s*seasonLen+i])
		}
		seasonals[i] = mean(vals) - mean(seasonAverages[:len(vals)])
	}

	fitted := make([]float64, n)
	for t, actual := range y {
		sIdx := t % seasonLen
		prevLevel, prevTrend, prevSeason := level, trend, seasonals[sIdx]
		fitted[t] = math.Max(0, prevLevel+prevTrend+prevSeason)
		level = p.Alpha*(actual-prevSeason) + (1-p.Alpha)*(prevLevel+prevTrend)
		trend = p.Beta*(level-prevLevel) + (1-p.Beta)*prevTrend
		seasonals[sIdx] = p.Gamma*(actual-level) + (1-p.Gamma)*prevSeason
	}

	forecast := make([]float64, horizon)
	for i := range forecast {
		k := i + 1
		season := seasonals[(n+k-1)%seasonLen]
		forecast[i] = math.Max(0, finiteOr(level+trend*float64(k)+season, 0))
	}
	return SmoothingFit{Fitted: fitted, Forecast: forecast}
}

// HoltWintersBest grid-searches Alpha, Beta, and Gamma by MAPE over the last
// min(seasonLen, n) points and returns the winning fit.
func HoltWintersBest(y []float64, seasonLen, horizon int) (SmoothingFit, SmoothingParams) {
	best, ok := gridSearch(3, func(c []float64) float64 {
		fit := HoltWinters(y, seasonLen, horizon, SmoothingParams{Alpha: c[0], Beta: c[1], Gamma: c[2]})
		return mape(y, fit.Fitted, seasonLen)
	})
	params := defaultWintersParams
	if ok {
		params = SmoothingParams{Alpha: best[0], Beta: best[1], Gamma: best[2]}
	}
	return HoltWinters(y, seasonLen, horizon, params), params
}

// gridSearch enumerates the cartesian product of smoothingGrid over dims
// constants and returns the first combination with the lowest finite score.
func gridSearch(dims int, score func(candidate []float64) float64) ([]float64, bool) {
	var best []float64
	bestScore := math.Inf(1)
	candidate := make([]float64, dims)

	var walk func(d int)
	walk = func(d int) {
		if d == dims {
			if s := score(candidate); s < bestScore {
				bestScore = s
				best = slices.Clone(candidate)
			}
			return
		}
		for _, v := range smoothingGrid {
			candidate[d] = v
			walk(d + 1)
		}
	}
	walk(0)

	return best, best != nil
}

// mape is the mean absolute percentage error over the last window points,
// skipping non-positive actuals. +Inf when no point qualifies.
func mape(actual, fitted []float64, window int) float64 {
	start := max(0, len(actual)-window)
	var sum float64
	var count int
	for i := start; i < len(actual); i++ {
		if actual[i] > 0 {
			sum += math.Abs((actual[i] - fitted[i]) / actual[i])
			count++
		}
	}
	if count == 0 {
		return math.Inf(1)
	}
	return sum / float64(count)
}
