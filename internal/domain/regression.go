package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidPeriod is returned for month labels that are not "YYYY-MM".
var ErrInvalidPeriod = errors.New("invalid period label")

// Slope returns the ordinary-least-squares slope of values against their
// 0-based index. Returns 0 for fewer than two points or a non-finite fit.
func Slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, values, nil, false)
	return finiteOr(beta, 0)
}

// Percentile returns the p-th percentile (0..1) of values using linear
// interpolation between the two ranks bracketing (len-1)*p. The input is not
// modified. Returns 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	idx := float64(len(sorted)-1) * Clamp(p, 0, 1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	w := idx - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// MovingAverage returns the trailing simple moving average of values. The
// first window-1 entries average over the points available so far.
func MovingAverage(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	for i := range values {
		start := max(0, i-window+1)
		out[i] = mean(values[start : i+1])
	}
	return out
}

// ExponentialMovingAverage smooths values with factor alpha, seeded with the
// first value.
func ExponentialMovingAverage(values []float64, alpha float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	prev := values[0]
	for i, v := range values {
		prev = alpha*v + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// EMAResidualSigma is the root mean square of one-step-ahead EMA residuals.
// Returns 0 for fewer than three points.
func EMAResidualSigma(values []float64, alpha float64) float64 {
	if len(values) < 3 {
		return 0
	}
	ema := ExponentialMovingAverage(values, alpha)
	var sumSq float64
	for i := 1; i < len(values); i++ {
		r := values[i] - ema[i-1]
		sumSq += r * r
	}
	return finiteOr(math.Sqrt(sumSq/float64(len(values)-1)), 0)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// AddMonths shifts a "YYYY-MM" label by k months.
func AddMonths(label string, k int) (string, error) {
	year, month, err := parseMonth(label)
	if err != nil {
		return "", err
	}
	total := year*12 + (month - 1) + k
	return formatMonth(total/12, total%12+1), nil
}

// MonthLabel formats t as "YYYY-MM".
func MonthLabel(t time.Time) string {
	return t.Format("2006-01")
}

func parseMonth(label string) (int, int, error) {
	y, m, ok := strings.Cut(strings.TrimSpace(label), "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, label)
	}
	year, errY := strconv.Atoi(y)
	month, errM := strconv.Atoi(m)
	if errY != nil || errM != nil || year < 0 || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, label)
	}
	return year, month, nil
}

func formatMonth(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values) / float64(len(values))
}

// meanStdDev returns the population mean and standard deviation.
func meanStdDev(values []float64) (float64, float64) {
	switch len(values) {
	case 0:
		return 0, 0
	case 1:
		return values[0], 0
	}
	m, sd := stat.PopMeanStdDev(values, nil)
	return finiteOr(m, 0), finiteOr(sd, 0)
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
