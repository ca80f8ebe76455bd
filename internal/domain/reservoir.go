package domain

import (
	"math"
	"slices"
)

const (
	DefaultTrendDays = 30
	MaxTrendDays     = 365

	trendSmoothingWindow = 7
)

// ReservoirRequest asks for the fill overview of all dams.
type ReservoirRequest struct {
	Days    int             `json:"days,omitempty"`
	Samples []DamFillSample `json:"samples"`
}

// DamFill is a dam's average fill on the latest reported day.
type DamFill struct {
	DamName string  `json:"dam_name"`
	Fill    float64 `json:"fill"`
}

// DailyFill is the average fill across dams on one day, with a trailing
// seven-day moving average.
type DailyFill struct {
	Date     string  `json:"date"`
	AvgFill  float64 `json:"avg_fill"`
	Smoothed float64 `json:"smoothed"`
}

// ReservoirSummary is the dashboard overview of reservoir levels.
type ReservoirSummary struct {
	LatestDate  string      `json:"latest_date,omitempty"`
	AverageFill *float64    `json:"average_fill"`
	Latest      []DamFill   `json:"latest"`
	Trend       []DailyFill `json:"trend"`
}

// SummarizeReservoirs computes the latest-day average fill, the latest fill
// per dam sorted by name, and the daily average trend over the last days
// distinct days (default 30, at most 365).
func SummarizeReservoirs(req ReservoirRequest) ReservoirSummary {
	days := req.Days
	if days <= 0 {
		days = DefaultTrendDays
	}
	days = min(days, MaxTrendDays)

	summary := ReservoirSummary{Latest: []DamFill{}, Trend: []DailyFill{}}

	type acc struct {
		sum   float64
		count int
	}
	byDay := make(map[string]*acc)
	byDamOnDay := make(map[string]map[string]*acc)
	for _, s := range req.Samples {
		if math.IsNaN(s.FillPercent) || math.IsInf(s.FillPercent, 0) {
			continue
		}
		day := s.Date.UTC().Format("2006-01-02")
		if byDay[day] == nil {
			byDay[day] = &acc{}
		}
		byDay[day].sum += s.FillPercent
		byDay[day].count++

		if byDamOnDay[day] == nil {
			byDamOnDay[day] = make(map[string]*acc)
		}
		if byDamOnDay[day][s.DamName] == nil {
			byDamOnDay[day][s.DamName] = &acc{}
		}
		byDamOnDay[day][s.DamName].sum += s.FillPercent
		byDamOnDay[day][s.DamName].count++
	}
	if len(byDay) == 0 {
		return summary
	}

	dates := make([]string, 0, len(byDay))
	for day := range byDay {
		dates = append(dates, day)
	}
	slices.Sort(dates)

	latest := dates[len(dates)-1]
	summary.LatestDate = latest
	avg := byDay[latest].sum / float64(byDay[latest].count)
	summary.AverageFill = &avg

	dams := make([]string, 0, len(byDamOnDay[latest]))
	for dam := range byDamOnDay[latest] {
		dams = append(dams, dam)
	}
	slices.Sort(dams)
	for _, dam := range dams {
		a := byDamOnDay[latest][dam]
		summary.Latest = append(summary.Latest, DamFill{DamName: dam, Fill: a.sum / float64(a.count)})
	}

	if len(dates) > days {
		dates = dates[len(dates)-days:]
	}
	averages := make([]float64, len(dates))
	for i, day := range dates {
		averages[i] = byDay[day].sum / float64(byDay[day].count)
	}
	smoothed := MovingAverage(averages, trendSmoothingWindow)
	for i, day := range dates {
		summary.Trend = append(summary.Trend, DailyFill{Date: day, AvgFill: averages[i], Smoothed: smoothed[i]})
	}
	return summary
}
