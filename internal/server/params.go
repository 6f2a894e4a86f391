package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"webtraffic/internal/dataset"
	"webtraffic/internal/forecast"
)

// paramError is a malformed query parameter.
type paramError struct {
	name string
	msg  string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid %s parameter: %s", e.name, e.msg)
}

// dateRange resolves start and end from the query. Missing values fall back
// to the configured defaults, clamped to the loaded data, and then to the
// full span of the data.
func (s *Server) dateRange(r *http.Request) (start, end time.Time, err error) {
	q := r.URL.Query()

	defStart, defEnd := s.defaultRange()

	start = defStart
	if raw := q.Get("start"); raw != "" {
		if start, err = dataset.ParseDate(raw); err != nil {
			return time.Time{}, time.Time{}, &paramError{name: "start", msg: err.Error()}
		}
	}

	end = defEnd
	if raw := q.Get("end"); raw != "" {
		if end, err = dataset.ParseDate(raw); err != nil {
			return time.Time{}, time.Time{}, &paramError{name: "end", msg: err.Error()}
		}
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, &dataset.InvalidRangeError{Start: start, End: end}
	}
	return start, end, nil
}

func (s *Server) defaultRange() (time.Time, time.Time) {
	first, last, ok := s.data.Span()
	if !ok {
		return time.Time{}, time.Time{}
	}

	start, end := first, last
	if s.cfg != nil {
		// validated at load time
		cfgStart, cfgEnd, _ := s.cfg.DefaultRange()
		if !cfgStart.IsZero() && cfgStart.After(first) {
			start = cfgStart
		}
		if !cfgEnd.IsZero() && cfgEnd.Before(last) {
			end = cfgEnd
		}
	}
	if start.After(end) {
		return first, last
	}
	return start, end
}

// horizon reads the days parameter, defaulting to the configured horizon.
func (s *Server) horizon(r *http.Request) (int, error) {
	h := forecast.DefaultHorizon
	if s.cfg != nil && s.cfg.Forecast.DefaultHorizon != 0 {
		h = s.cfg.Forecast.DefaultHorizon
	}

	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, &paramError{name: "days", msg: fmt.Sprintf("%q is not an integer", raw)}
		}
		h = v
	}

	if err := forecast.ValidateHorizon(h); err != nil {
		return 0, err
	}
	return h, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var pErr *paramError
	var rangeErr *dataset.InvalidRangeError
	var horizonErr *forecast.HorizonError
	var insufficientErr *forecast.InsufficientDataError

	switch {
	case errors.As(err, &pErr), errors.As(err, &rangeErr), errors.As(err, &horizonErr):
		return http.StatusBadRequest
	case errors.As(err, &insufficientErr):
		return http.StatusUnprocessableEntity
	default:
		// includes *forecast.ModelFitError
		return http.StatusInternalServerError
	}
}
