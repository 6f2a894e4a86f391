package insights

import (
	"math"

	"webtraffic/internal/models"
	"webtraffic/internal/timeseries"
)

// ZScoreThreshold is how many standard deviations from the mean a day must sit to be unusual.
const ZScoreThreshold = 2.0

// CalculateZScore calculates the z-score of value given mean and standard deviation
func CalculateZScore(value, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (value - mean) / stdDev
}

// IsOutlier reports whether |z| exceeds ZScoreThreshold
func IsOutlier(zScore float64) bool {
	return math.Abs(zScore) > ZScoreThreshold
}

// calculateSeverityFromZScore grades an outlier by how far past the threshold it is
func calculateSeverityFromZScore(zScore float64) string {
	absZScore := math.Abs(zScore)
	if absZScore > 3.0 {
		return "high"
	} else if absZScore > 2.5 {
		return "medium"
	}
	return "low"
}

// UnusualDays flags days whose unique visits are outliers against the
// mean and sample standard deviation of the given observations, in date order.
func UnusualDays(observations []models.Observation) []models.UnusualDay {
	unusual := []models.UnusualDay{}
	if len(observations) < 3 {
		return unusual
	}

	values := make([]float64, len(observations))
	for i, o := range observations {
		values[i] = float64(o.UniqueVisits)
	}
	mean := timeseries.Mean(values)
	stdDev := timeseries.StdDev(values)
	if stdDev == 0 {
		return unusual
	}

	for _, o := range observations {
		z := CalculateZScore(float64(o.UniqueVisits), mean, stdDev)
		if !IsOutlier(z) {
			continue
		}
		unusual = append(unusual, models.UnusualDay{
			Date:     o.Date,
			Value:    o.UniqueVisits,
			ZScore:   z,
			Severity: calculateSeverityFromZScore(z),
		})
	}
	return unusual
}
