// Package forecast projects visit series forward with a fixed-order ARIMA
// model and folds the daily forecasts into Monday-first weekday profiles.
package forecast

import (
	"errors"
	"fmt"
	"time"

	"webtraffic/internal/arima"
	"webtraffic/internal/config"
	"webtraffic/internal/metrics"
	"webtraffic/internal/models"
	"webtraffic/internal/timeseries"
)

// DefaultOrder is the ARIMA order fitted to every series. It is fixed and
// not selected per series.
var DefaultOrder = arima.Order{P: 5, D: 1, Q: 0}

// DefaultHorizon is the number of days forecast when none is requested.
const DefaultHorizon = 30

// DefaultSeries are the observation fields forecast when none are configured.
var DefaultSeries = []string{models.FieldFirstTimeVisits, models.FieldReturningVisits}

// Engine forecasts a set of observation fields. It holds no mutable state
// and may be shared between goroutines.
type Engine struct {
	order  arima.Order
	series []string
}

// NewEngine creates an engine for the given fields, or DefaultSeries when empty.
func NewEngine(series []string) *Engine {
	if len(series) == 0 {
		series = DefaultSeries
	}
	names := make([]string, len(series))
	copy(names, series)
	return &Engine{order: DefaultOrder, series: names}
}

// Series returns the forecast target fields.
func (e *Engine) Series() []string {
	names := make([]string, len(e.series))
	copy(names, e.series)
	return names
}

// MinObservations is the shortest series the engine will fit.
func (e *Engine) MinObservations() int {
	return e.order.P + e.order.D + 10
}

// ValidateHorizon checks h against the supported range.
func ValidateHorizon(h int) error {
	if h < config.MinHorizon || h > config.MaxHorizon {
		return &HorizonError{Horizon: h}
	}
	return nil
}

// Forecast fits every target field of observations independently and
// returns their weekday profiles. Any failing series fails the call.
func (e *Engine) Forecast(observations []models.Observation, horizon int) (result *models.ForecastResult, err error) {
	defer func() {
		metrics.RecordForecastRun(Status(err), horizon)
	}()

	if err := ValidateHorizon(horizon); err != nil {
		return nil, err
	}

	result = &models.ForecastResult{
		Horizon:  horizon,
		Series:   e.Series(),
		Profiles: make(map[string]models.WeekdayProfile, len(e.series)),
		Daily:    make(map[string][]models.ForecastPoint, len(e.series)),
	}

	for _, name := range e.series {
		s, err := timeseries.FromObservations(observations, name)
		if err != nil {
			return nil, fmt.Errorf("failed to build series: %w", err)
		}

		profile, points, err := e.ForecastSeries(s, horizon)
		if err != nil {
			return nil, err
		}
		result.Profiles[name] = profile
		result.Daily[name] = points

		first, last := points[0].Date, points[len(points)-1].Date
		if result.Start.IsZero() || first.Before(result.Start) {
			result.Start = first
		}
		if last.After(result.End) {
			result.End = last
		}
	}

	return result, nil
}

// ForecastSeries fits one series and forecasts horizon days starting the
// day after its last observation. The series is sorted and cleaned on a
// copy; the caller's values are left untouched.
func (e *Engine) ForecastSeries(s *timeseries.Series, horizon int) (models.WeekdayProfile, []models.ForecastPoint, error) {
	var profile models.WeekdayProfile

	if err := ValidateHorizon(horizon); err != nil {
		return profile, nil, err
	}

	clean := s.Sorted().DropMissing()
	if need := e.MinObservations(); clean.Len() < need {
		return profile, nil, &InsufficientDataError{Series: s.Name, Have: clean.Len(), Need: need}
	}

	fitStart := time.Now()
	defer func() {
		metrics.RecordModelFit(s.Name, time.Since(fitStart))
	}()

	model := arima.New(e.order.P, e.order.D, e.order.Q)
	if err := model.Fit(clean.Values); err != nil {
		return profile, nil, &ModelFitError{Series: s.Name, Err: err}
	}
	values, err := model.Predict(horizon)
	if err != nil {
		return profile, nil, &ModelFitError{Series: s.Name, Err: err}
	}

	points := dailyPoints(clean.LastDate(), values)
	return WeekdayMeans(points), points, nil
}

// dailyPoints dates each forecast value on consecutive days after last.
func dailyPoints(last time.Time, values []float64) []models.ForecastPoint {
	y, m, d := last.Date()
	points := make([]models.ForecastPoint, len(values))
	for i, v := range values {
		date := time.Date(y, m, d+i+1, 0, 0, 0, 0, time.UTC)
		points[i] = models.ForecastPoint{
			Date:    date,
			Weekday: date.Weekday().String(),
			Value:   v,
		}
	}
	return points
}

// WeekdayMeans averages points per weekday, Monday first. Weekdays with no
// point are 0.
func WeekdayMeans(points []models.ForecastPoint) models.WeekdayProfile {
	var sums models.WeekdayProfile
	var counts [7]int
	for _, p := range points {
		i := models.WeekdayIndex(p.Date.Weekday())
		sums[i] += p.Value
		counts[i]++
	}

	var profile models.WeekdayProfile
	for i := range profile {
		if counts[i] > 0 {
			profile[i] = sums[i] / float64(counts[i])
		}
	}
	return profile
}

// Status maps a forecast error onto a short metrics label.
func Status(err error) string {
	var horizonErr *HorizonError
	var insufficientErr *InsufficientDataError
	var fitErr *ModelFitError

	switch {
	case err == nil:
		return "success"
	case errors.As(err, &horizonErr):
		return "invalid_horizon"
	case errors.As(err, &insufficientErr):
		return "insufficient_data"
	case errors.As(err, &fitErr):
		return "fit_failed"
	default:
		return "error"
	}
}
