// Package insights builds the headline numbers and narrative shown above
// the dashboard charts.
package insights

import (
	"fmt"
	"math"
	"sort"
	"time"

	"webtraffic/internal/models"
	"webtraffic/internal/timeseries"
)

const trendWindow = 7

// Summarize computes the dashboard summary for observations, which need
// not be sorted. Fields that cannot be computed for the range are left
// empty or nil.
func Summarize(observations []models.Observation) *models.Insights {
	sorted := make([]models.Observation, len(observations))
	copy(sorted, observations)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Date.Before(sorted[b].Date)
	})

	summary := &models.Insights{
		Days:        len(sorted),
		UnusualDays: []models.UnusualDay{},
		Narrative:   []string{},
	}
	if len(sorted) == 0 {
		return summary
	}

	values := make([]float64, len(sorted))
	for i, o := range sorted {
		values[i] = float64(o.UniqueVisits)
	}

	summary.RecordDay, summary.LowestDay = extremes(sorted)
	summary.DailyAverage = int64(timeseries.Mean(values))
	summary.WeeklyTrend = weeklyTrend(values)
	summary.BusiestWeekday = busiestWeekday(sorted)
	summary.StrongestMonth = strongestMonth(sorted)

	q := timeseries.Quantiles(values, 0.25, 0.5, 0.75)
	summary.Median = int64(q[1])
	summary.InterquartileRange = int64(q[2] - q[0])

	if r := timeseries.Autocorr(values, 1); !math.IsNaN(r) {
		summary.Lag1Autocorr = &r
	}
	summary.MostDispersedDay = mostDispersedWeekday(sorted)
	summary.UnusualDays = UnusualDays(sorted)
	summary.Narrative = narrative(summary)

	return summary
}

// extremes returns the first day with the most and the first with the fewest unique visits.
func extremes(sorted []models.Observation) (record, lowest *models.DayStat) {
	hi, lo := 0, 0
	for i, o := range sorted {
		if o.UniqueVisits > sorted[hi].UniqueVisits {
			hi = i
		}
		if o.UniqueVisits < sorted[lo].UniqueVisits {
			lo = i
		}
	}
	return &models.DayStat{Date: sorted[hi].Date, Value: sorted[hi].UniqueVisits},
		&models.DayStat{Date: sorted[lo].Date, Value: sorted[lo].UniqueVisits}
}

// weeklyTrend is the change of the 7-day mean over the last 7 rows.
func weeklyTrend(values []float64) *float64 {
	if len(values) < 2*trendWindow {
		return nil
	}
	rolling := timeseries.RollingMean(values, trendWindow)
	trend := rolling[len(rolling)-1] - rolling[len(rolling)-1-trendWindow]
	return &trend
}

func byWeekday(sorted []models.Observation) [7][]float64 {
	var groups [7][]float64
	for _, o := range sorted {
		i := models.WeekdayIndex(o.Date.Weekday())
		groups[i] = append(groups[i], float64(o.UniqueVisits))
	}
	return groups
}

// busiestWeekday has the highest mean unique visits; ties go to the earlier weekday.
func busiestWeekday(sorted []models.Observation) string {
	best, bestMean := -1, 0.0
	for i, g := range byWeekday(sorted) {
		if len(g) == 0 {
			continue
		}
		if m := timeseries.Mean(g); best < 0 || m > bestMean {
			best, bestMean = i, m
		}
	}
	if best < 0 {
		return ""
	}
	return models.Weekdays[best].String()
}

func mostDispersedWeekday(sorted []models.Observation) string {
	best, bestStd := -1, 0.0
	for i, g := range byWeekday(sorted) {
		if len(g) < 2 {
			continue
		}
		if s := timeseries.StdDev(g); best < 0 || s > bestStd {
			best, bestStd = i, s
		}
	}
	if best < 0 {
		return ""
	}
	return models.Weekdays[best].String()
}

// strongestMonth is the abbreviated calendar month with the highest mean unique visits.
func strongestMonth(sorted []models.Observation) string {
	var sums, counts [12]float64
	for _, o := range sorted {
		m := int(o.Date.Month()) - 1
		sums[m] += float64(o.UniqueVisits)
		counts[m]++
	}

	best, bestMean := -1, 0.0
	for m := 0; m < 12; m++ {
		if counts[m] == 0 {
			continue
		}
		if mean := sums[m] / counts[m]; best < 0 || mean > bestMean {
			best, bestMean = m, mean
		}
	}
	if best < 0 {
		return ""
	}
	return time.Month(best + 1).String()[:3]
}

func narrative(s *models.Insights) []string {
	var lines []string

	if s.WeeklyTrend != nil {
		direction := "increased"
		if *s.WeeklyTrend <= 0 {
			direction = "decreased"
		}
		lines = append(lines, fmt.Sprintf("Over the last week visits %s by %d on average.",
			direction, int64(math.Abs(*s.WeeklyTrend))))
	}
	if s.BusiestWeekday != "" {
		lines = append(lines, fmt.Sprintf("The day with the highest traffic is usually %s.", s.BusiestWeekday))
	}
	if s.StrongestMonth != "" {
		lines = append(lines, fmt.Sprintf("The strongest month on average is %s.", s.StrongestMonth))
	}
	lines = append(lines,
		fmt.Sprintf("The median of unique visits is %d.", s.Median),
		fmt.Sprintf("The interquartile range is %d.", s.InterquartileRange),
	)
	if s.Lag1Autocorr != nil {
		lines = append(lines, fmt.Sprintf("The first autocorrelation value is %.2f.", *s.Lag1Autocorr))
	}
	if s.MostDispersedDay != "" {
		lines = append(lines, fmt.Sprintf("The day with the highest visit dispersion is %s.", s.MostDispersedDay))
	}
	if n := len(s.UnusualDays); n > 0 {
		lines = append(lines, fmt.Sprintf("%d day(s) had unique visits more than %.0f standard deviations from the mean.",
			n, ZScoreThreshold))
	}

	return lines
}
