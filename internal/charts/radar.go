package charts

import "webtraffic/internal/models"

// RadarSeries is one closed polygon: the first category and value are
// repeated at the end so the outline joins up.
type RadarSeries struct {
	Name       string    `json:"name"`
	Categories []string  `json:"categories"`
	Values     []float64 `json:"values"`
}

// Radar builds one closed polygon per forecast series, in result order.
func Radar(result *models.ForecastResult) []RadarSeries {
	if result == nil {
		return []RadarSeries{}
	}

	names := models.WeekdayNames()
	out := make([]RadarSeries, 0, len(result.Series))
	for _, name := range result.Series {
		profile, ok := result.Profiles[name]
		if !ok {
			continue
		}
		out = append(out, closePolygon(name, names, profile))
	}
	return out
}

func closePolygon(name string, categories []string, profile models.WeekdayProfile) RadarSeries {
	rs := RadarSeries{
		Name:       name,
		Categories: make([]string, 0, len(categories)+1),
		Values:     make([]float64, 0, len(profile)+1),
	}
	rs.Categories = append(rs.Categories, categories...)
	rs.Categories = append(rs.Categories, categories[0])
	rs.Values = append(rs.Values, profile[:]...)
	rs.Values = append(rs.Values, profile[0])
	return rs
}
