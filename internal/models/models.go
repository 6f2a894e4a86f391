package models

import "time"

// Field names of the numeric observation columns, as they appear in the
// dataset header once dots are replaced by underscores.
const (
	FieldPageLoads       = "Page_Loads"
	FieldUniqueVisits    = "Unique_Visits"
	FieldFirstTimeVisits = "First_Time_Visits"
	FieldReturningVisits = "Returning_Visits"
)

// Observation is one day of website traffic
type Observation struct {
	Row             int       `json:"row"`
	Day             string    `json:"day"`
	DayOfWeek       int       `json:"day_of_week"` // 1=Sunday .. 7=Saturday
	Date            time.Time `json:"date"`
	PageLoads       int64     `json:"page_loads"`
	UniqueVisits    int64     `json:"unique_visits"`
	FirstTimeVisits int64     `json:"first_time_visits"`
	ReturningVisits int64     `json:"returning_visits"`
}

// Value returns the numeric field with the given name and whether the name is known.
func (o Observation) Value(field string) (float64, bool) {
	switch field {
	case FieldPageLoads:
		return float64(o.PageLoads), true
	case FieldUniqueVisits:
		return float64(o.UniqueVisits), true
	case FieldFirstTimeVisits:
		return float64(o.FirstTimeVisits), true
	case FieldReturningVisits:
		return float64(o.ReturningVisits), true
	}
	return 0, false
}

// Weekdays is the canonical Monday-first ordering used by every weekday aggregate.
var Weekdays = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// WeekdayIndex maps a time.Weekday onto its Monday-first position.
func WeekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// WeekdayNames returns the full weekday names, Monday first.
func WeekdayNames() []string {
	names := make([]string, len(Weekdays))
	for i, d := range Weekdays {
		names[i] = d.String()
	}
	return names
}

// WeekdayProfile holds one value per weekday, Monday first
type WeekdayProfile [7]float64

// ForecastPoint is a single day of a point forecast
type ForecastPoint struct {
	Date    time.Time `json:"date"`
	Weekday string    `json:"weekday"`
	Value   float64   `json:"value"`
}

// ForecastResult is the weekday-aggregated forecast for every target series
type ForecastResult struct {
	Start    time.Time                  `json:"start"`
	End      time.Time                  `json:"end"`
	Horizon  int                        `json:"horizon"`
	Series   []string                   `json:"series"`
	Profiles map[string]WeekdayProfile  `json:"profiles"`
	Daily    map[string][]ForecastPoint `json:"daily"`
}

// DayStat points at a single notable day
type DayStat struct {
	Date  time.Time `json:"date"`
	Value int64     `json:"value"`
}

// UnusualDay is a day whose unique visits sit far from the mean of the range
type UnusualDay struct {
	Date     time.Time `json:"date"`
	Value    int64     `json:"value"`
	ZScore   float64   `json:"z_score"`
	Severity string    `json:"severity"` // "low", "medium", "high"
}

// Insights is the summary shown above the charts
type Insights struct {
	Days               int          `json:"days"`
	RecordDay          *DayStat     `json:"record_day,omitempty"`
	LowestDay          *DayStat     `json:"lowest_day,omitempty"`
	DailyAverage       int64        `json:"daily_average"`
	WeeklyTrend        *float64     `json:"weekly_trend,omitempty"`
	BusiestWeekday     string       `json:"busiest_weekday,omitempty"`
	StrongestMonth     string       `json:"strongest_month,omitempty"`
	Median             int64        `json:"median"`
	InterquartileRange int64        `json:"interquartile_range"`
	Lag1Autocorr       *float64     `json:"lag1_autocorrelation,omitempty"`
	MostDispersedDay   string       `json:"most_dispersed_weekday,omitempty"`
	UnusualDays        []UnusualDay `json:"unusual_days"`
	Narrative          []string     `json:"narrative"`
}
