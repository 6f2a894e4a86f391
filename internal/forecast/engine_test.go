package forecast

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"webtraffic/internal/arima"
	"webtraffic/internal/metrics"
	"webtraffic/internal/models"
	"webtraffic/internal/timeseries"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// noisySeries returns n days of roughly 100 visits starting 2019-01-01.
func noisySeries(name string, n int, seed int64) *timeseries.Series {
	rng := rand.New(rand.NewSource(seed))
	dates := make([]time.Time, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		dates[i] = day(2019, 1, 1+i)
		values[i] = math.Round(100 + 5*rng.NormFloat64())
	}
	return &timeseries.Series{Name: name, Dates: dates, Values: values}
}

func noisyObservations(n int, seed int64) []models.Observation {
	rng := rand.New(rand.NewSource(seed))
	observations := make([]models.Observation, n)
	for i := range observations {
		first := int64(math.Round(100 + 5*rng.NormFloat64()))
		returning := int64(math.Round(30 + 3*rng.NormFloat64()))
		observations[i] = models.Observation{
			Row:             i + 1,
			Date:            day(2019, 1, 1+i),
			FirstTimeVisits: first,
			ReturningVisits: returning,
			UniqueVisits:    first + returning,
		}
	}
	return observations
}

// seasonalSeries returns n days with a strong weekly cycle around 1000 visits.
func seasonalSeries(name string, n int, seed int64) *timeseries.Series {
	rng := rand.New(rand.NewSource(seed))
	dates := make([]time.Time, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		dates[i] = day(2020, 3, 1+i)
		values[i] = 1000 + 500*math.Sin(2*math.Pi*float64(i)/7) + 80*rng.NormFloat64()
	}
	return &timeseries.Series{Name: name, Dates: dates, Values: values}
}

func fitSamples(t *testing.T, series string) uint64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.ModelFitDuration.WithLabelValues(series).(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("Failed to read fit histogram: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func nonZero(p models.WeekdayProfile) int {
	n := 0
	for _, v := range p {
		if v != 0 {
			n++
		}
	}
	return n
}

func TestValidateHorizon(t *testing.T) {
	tests := []struct {
		horizon int
		wantErr bool
	}{
		{0, true},
		{-3, true},
		{1, false},
		{30, false},
		{90, false},
		{91, true},
	}

	for _, tt := range tests {
		err := ValidateHorizon(tt.horizon)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateHorizon(%d) error = %v, wantErr %v", tt.horizon, err, tt.wantErr)
		}
		var horizonErr *HorizonError
		if tt.wantErr && !errors.As(err, &horizonErr) {
			t.Errorf("ValidateHorizon(%d) error = %T, want *HorizonError", tt.horizon, err)
		}
	}
}

func TestForecastSeries_SevenFiniteNonZeroValues(t *testing.T) {
	engine := NewEngine(nil)

	profile, points, err := engine.ForecastSeries(noisySeries("First_Time_Visits", 400, 1), 7)
	if err != nil {
		t.Fatalf("ForecastSeries() error = %v", err)
	}
	if len(points) != 7 {
		t.Fatalf("ForecastSeries() returned %d points, want 7", len(points))
	}
	for i, v := range profile {
		if math.IsNaN(v) || math.IsInf(v, 0) || v == 0 {
			t.Errorf("profile[%s] = %v, want finite non-zero", models.Weekdays[i], v)
		}
		if v < 50 || v > 150 {
			t.Errorf("profile[%s] = %v, want close to 100", models.Weekdays[i], v)
		}
	}
}

func TestForecastSeries_SingleDay(t *testing.T) {
	s := noisySeries("Returning_Visits", 60, 2)
	last := s.LastDate()
	next := last.AddDate(0, 0, 1)

	profile, points, err := NewEngine(nil).ForecastSeries(s, 1)
	if err != nil {
		t.Fatalf("ForecastSeries() error = %v", err)
	}

	if got := nonZero(profile); got != 1 {
		t.Errorf("non-zero weekdays = %d, want 1", got)
	}
	if profile[models.WeekdayIndex(next.Weekday())] == 0 {
		t.Errorf("profile for %s is zero, want the forecast value", next.Weekday())
	}
	if !points[0].Date.Equal(next) {
		t.Errorf("first forecast date = %v, want %v", points[0].Date, next)
	}
	if points[0].Weekday != next.Weekday().String() {
		t.Errorf("first forecast weekday = %s, want %s", points[0].Weekday, next.Weekday())
	}
}

func TestForecastSeries_AbsentWeekdaysAreZero(t *testing.T) {
	// 2019-01-01 + 99 days is Wednesday 2019-04-10; forecasting 3 days covers Thu, Fri, Sat
	s := noisySeries("First_Time_Visits", 100, 3)

	profile, _, err := NewEngine(nil).ForecastSeries(s, 3)
	if err != nil {
		t.Fatalf("ForecastSeries() error = %v", err)
	}

	for i, wd := range models.Weekdays {
		covered := wd == time.Thursday || wd == time.Friday || wd == time.Saturday
		if covered && profile[i] == 0 {
			t.Errorf("profile[%s] = 0, want forecast value", wd)
		}
		if !covered && profile[i] != 0 {
			t.Errorf("profile[%s] = %v, want exactly 0", wd, profile[i])
		}
	}
}

func TestForecastSeries_NinetyContiguousDays(t *testing.T) {
	s := noisySeries("First_Time_Visits", 200, 4)
	start := s.LastDate().AddDate(0, 0, 1)

	_, points, err := NewEngine(nil).ForecastSeries(s, 90)
	if err != nil {
		t.Fatalf("ForecastSeries() error = %v", err)
	}
	if len(points) != 90 {
		t.Fatalf("got %d points, want 90", len(points))
	}
	for i, p := range points {
		want := start.AddDate(0, 0, i)
		if !p.Date.Equal(want) {
			t.Fatalf("points[%d].Date = %v, want %v", i, p.Date, want)
		}
	}
}

func TestForecastSeries_InsufficientData(t *testing.T) {
	engine := NewEngine(nil)

	tests := []struct {
		name string
		n    int
	}{
		{"empty", 0},
		{"three points", 3},
		{"one short", 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := noisySeries("First_Time_Visits", tt.n, 5)
			_, _, err := engine.ForecastSeries(s, 7)

			var insufficient *InsufficientDataError
			if !errors.As(err, &insufficient) {
				t.Fatalf("ForecastSeries() error = %v, want *InsufficientDataError", err)
			}
			if insufficient.Have != tt.n || insufficient.Need != 16 {
				t.Errorf("InsufficientDataError = have %d need %d, want have %d need 16",
					insufficient.Have, insufficient.Need, tt.n)
			}
			if insufficient.Series != "First_Time_Visits" {
				t.Errorf("InsufficientDataError.Series = %s, want First_Time_Visits", insufficient.Series)
			}
		})
	}
}

func TestForecastSeries_MissingValuesDropped(t *testing.T) {
	s := noisySeries("First_Time_Visits", 20, 6)
	for i := 0; i < 5; i++ {
		s.Values[i*3] = math.NaN()
	}

	_, _, err := NewEngine(nil).ForecastSeries(s, 7)

	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) || insufficient.Have != 15 {
		t.Errorf("ForecastSeries() error = %v, want InsufficientDataError with 15 observations", err)
	}
}

func TestForecastSeries_FitFailure(t *testing.T) {
	dates := make([]time.Time, 40)
	values := make([]float64, 40)
	for i := range values {
		dates[i] = day(2020, 1, 1+i)
		values[i] = 250
	}
	s := &timeseries.Series{Name: "Returning_Visits", Dates: dates, Values: values}

	_, _, err := NewEngine(nil).ForecastSeries(s, 7)

	var fitErr *ModelFitError
	if !errors.As(err, &fitErr) {
		t.Fatalf("ForecastSeries() error = %v, want *ModelFitError", err)
	}
	if !errors.Is(err, arima.ErrSingularFit) {
		t.Errorf("ModelFitError should wrap arima.ErrSingularFit, got %v", fitErr.Err)
	}
}

func TestForecastSeries_ShortSeasonalHistory(t *testing.T) {
	engine := NewEngine(nil)
	for _, n := range []int{16, 18, 20} {
		for seed := int64(1); seed <= 50; seed++ {
			s := seasonalSeries("Unique_Visits", n, seed)

			profile, points, err := engine.ForecastSeries(s, 7)
			if err != nil {
				t.Fatalf("ForecastSeries() n=%d seed=%d error = %v", n, seed, err)
			}
			if len(points) != 7 {
				t.Fatalf("ForecastSeries() n=%d seed=%d returned %d points, want 7", n, seed, len(points))
			}
			for i, v := range profile {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Errorf("n=%d seed=%d profile[%d] = %v, want finite", n, seed, i, v)
				}
			}
		}
	}
}

func TestForecastSeries_FitDurationRecordedOnFailure(t *testing.T) {
	dates := make([]time.Time, 30)
	values := make([]float64, 30)
	for i := range values {
		dates[i] = day(2020, 1, 1+i)
		values[i] = 42
	}
	s := &timeseries.Series{Name: "flat_fit_duration", Dates: dates, Values: values}

	before := fitSamples(t, s.Name)
	if _, _, err := NewEngine(nil).ForecastSeries(s, 7); err == nil {
		t.Fatal("ForecastSeries() on a constant series should fail")
	}
	if got := fitSamples(t, s.Name); got-before != 1 {
		t.Errorf("fit duration samples grew by %d, want 1", got-before)
	}
}

func TestForecastSeries_UnsortedInput(t *testing.T) {
	sorted := noisySeries("First_Time_Visits", 120, 7)
	shuffled := sorted.Copy()
	rng := rand.New(rand.NewSource(8))
	rng.Shuffle(shuffled.Len(), func(i, j int) {
		shuffled.Dates[i], shuffled.Dates[j] = shuffled.Dates[j], shuffled.Dates[i]
		shuffled.Values[i], shuffled.Values[j] = shuffled.Values[j], shuffled.Values[i]
	})
	before := shuffled.Copy()

	engine := NewEngine(nil)
	want, _, err := engine.ForecastSeries(sorted, 14)
	if err != nil {
		t.Fatalf("ForecastSeries(sorted) error = %v", err)
	}
	got, _, err := engine.ForecastSeries(shuffled, 14)
	if err != nil {
		t.Fatalf("ForecastSeries(shuffled) error = %v", err)
	}

	if got != want {
		t.Errorf("shuffled profile = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(shuffled, before) {
		t.Error("ForecastSeries() modified the caller's series")
	}
}

func TestForecast(t *testing.T) {
	observations := noisyObservations(400, 9)

	result, err := NewEngine(nil).Forecast(observations, 30)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	if len(result.Profiles) != 2 {
		t.Fatalf("Forecast() returned %d profiles, want 2", len(result.Profiles))
	}
	for _, name := range DefaultSeries {
		profile, ok := result.Profiles[name]
		if !ok {
			t.Errorf("missing profile for %s", name)
			continue
		}
		if nonZero(profile) != 7 {
			t.Errorf("%s has %d non-zero weekdays, want 7", name, nonZero(profile))
		}
		if len(result.Daily[name]) != 30 {
			t.Errorf("%s has %d daily points, want 30", name, len(result.Daily[name]))
		}
	}

	last := observations[len(observations)-1].Date
	if !result.Start.Equal(last.AddDate(0, 0, 1)) {
		t.Errorf("Start = %v, want %v", result.Start, last.AddDate(0, 0, 1))
	}
	if !result.End.Equal(last.AddDate(0, 0, 30)) {
		t.Errorf("End = %v, want %v", result.End, last.AddDate(0, 0, 30))
	}
}

func TestForecast_Deterministic(t *testing.T) {
	observations := noisyObservations(250, 10)
	engine := NewEngine(nil)

	first, err := engine.Forecast(observations, 21)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	second, err := engine.Forecast(observations, 21)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("Forecast() returned different results for identical input")
	}
}

func TestForecast_Errors(t *testing.T) {
	engine := NewEngine(nil)

	if _, err := engine.Forecast(noisyObservations(100, 11), 91); Status(err) != "invalid_horizon" {
		t.Errorf("Forecast(h=91) error = %v, want HorizonError", err)
	}
	if _, err := engine.Forecast(noisyObservations(3, 11), 7); Status(err) != "insufficient_data" {
		t.Errorf("Forecast(3 rows) error = %v, want InsufficientDataError", err)
	}
	if _, err := NewEngine([]string{"Bounce_Rate"}).Forecast(noisyObservations(100, 11), 7); Status(err) != "error" {
		t.Errorf("Forecast(unknown field) error = %v, want plain error", err)
	}
}

func TestWeekdayMeans(t *testing.T) {
	// 2024-01-01 is a Monday
	points := []models.ForecastPoint{
		{Date: day(2024, 1, 1), Value: 10},
		{Date: day(2024, 1, 2), Value: 20},
		{Date: day(2024, 1, 8), Value: 30},
		{Date: day(2024, 1, 7), Value: 7},
	}

	got := WeekdayMeans(points)
	want := models.WeekdayProfile{20, 20, 0, 0, 0, 0, 7}
	if got != want {
		t.Errorf("WeekdayMeans() = %v, want %v", got, want)
	}
}
