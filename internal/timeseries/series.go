// Package timeseries provides the date-indexed series used by the forecast
// engine and the descriptive charts, plus the small set of statistics they need.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"webtraffic/internal/models"
)

// Series is a named projection of observations onto one numeric field.
type Series struct {
	Name   string
	Dates  []time.Time
	Values []float64
}

// New creates a series with explicit dates.
func New(name string, dates []time.Time, values []float64) (*Series, error) {
	if len(dates) != len(values) {
		return nil, errors.New("dates and values must have the same length")
	}
	return &Series{
		Name:   name,
		Dates:  dates,
		Values: values,
	}, nil
}

// FromObservations projects observations onto field, sorted by date with
// missing values dropped. The observations are not modified.
func FromObservations(observations []models.Observation, field string) (*Series, error) {
	dates := make([]time.Time, 0, len(observations))
	values := make([]float64, 0, len(observations))
	for _, o := range observations {
		v, ok := o.Value(field)
		if !ok {
			return nil, fmt.Errorf("unknown observation field %q", field)
		}
		dates = append(dates, o.Date)
		values = append(values, v)
	}

	s := &Series{Name: field, Dates: dates, Values: values}
	return s.Sorted().DropMissing(), nil
}

// Len returns the length of the series.
func (s *Series) Len() int {
	return len(s.Values)
}

// Sorted returns a copy ordered by ascending date. Ties keep their input order.
func (s *Series) Sorted() *Series {
	idx := make([]int, len(s.Values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return s.Dates[idx[a]].Before(s.Dates[idx[b]])
	})

	dates := make([]time.Time, len(idx))
	values := make([]float64, len(idx))
	for i, j := range idx {
		dates[i] = s.Dates[j]
		values[i] = s.Values[j]
	}
	return &Series{Name: s.Name, Dates: dates, Values: values}
}

// DropMissing returns a copy without NaN or infinite values.
func (s *Series) DropMissing() *Series {
	dates := make([]time.Time, 0, len(s.Values))
	values := make([]float64, 0, len(s.Values))
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		dates = append(dates, s.Dates[i])
		values = append(values, v)
	}
	return &Series{Name: s.Name, Dates: dates, Values: values}
}

// LastDate returns the date of the final element, or the zero time for an empty series.
func (s *Series) LastDate() time.Time {
	if len(s.Dates) == 0 {
		return time.Time{}
	}
	return s.Dates[len(s.Dates)-1]
}

// Copy creates a deep copy of the series.
func (s *Series) Copy() *Series {
	values := make([]float64, len(s.Values))
	copy(values, s.Values)

	dates := make([]time.Time, len(s.Dates))
	copy(dates, s.Dates)

	return &Series{
		Name:   s.Name,
		Dates:  dates,
		Values: values,
	}
}

// DiffN returns the n-th order difference of values. It is empty when
// there are not more than n values.
func DiffN(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	for d := 0; d < n; d++ {
		if len(out) <= 1 {
			return []float64{}
		}
		next := make([]float64, len(out)-1)
		for i := 1; i < len(out); i++ {
			next[i-1] = out[i] - out[i-1]
		}
		out = next
	}
	return out
}

// RollingMean returns a trailing mean with the same length as values.
// Positions before the window fills are NaN.
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(window)
	}
	return out
}

// Mean calculates the arithmetic mean. Empty input yields 0.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev is the sample standard deviation (n-1 denominator).
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// Quantile returns the q-quantile (0..1) with linear interpolation between
// order statistics. Empty input yields NaN.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return quantileSorted(sorted, q)
}

// Quantiles computes several quantiles with a single sort.
func Quantiles(values []float64, qs ...float64) []float64 {
	out := make([]float64, len(qs))
	if len(values) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	for i, q := range qs {
		out[i] = quantileSorted(sorted, q)
	}
	return out
}

func quantileSorted(sorted []float64, q float64) float64 {
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Median returns the 0.5 quantile.
func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}
