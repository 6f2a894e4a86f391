package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"webtraffic/internal/charts"
	"webtraffic/internal/dataset"
	"webtraffic/internal/events"
	"webtraffic/internal/forecast"
	"webtraffic/internal/insights"
	"webtraffic/internal/models"
)

const (
	publishTimeout = 2 * time.Second
	defaultRuns    = 20
	maxRuns        = 100
)

// writeJSON encodes payload, adding the dataset warning when there is one
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload map[string]interface{}) {
	if warning := s.data.Warning(); warning != "" {
		payload["warning"] = warning
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
	}
	s.writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

func (s *Server) writePNG(w http.ResponseWriter, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		if errors.Is(err, charts.ErrNoData) {
			s.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"error": "no data in the selected range"})
			return
		}
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

// filtered returns the observations in the requested range.
func (s *Server) filtered(r *http.Request) (start, end time.Time, observations []models.Observation, err error) {
	start, end, err = s.dateRange(r)
	if err != nil {
		return
	}
	observations, err = s.data.Filter(start, end)
	return
}

func rangePayload(start, end time.Time) map[string]interface{} {
	payload := map[string]interface{}{}
	if !start.IsZero() {
		payload["start"] = start.Format(dataset.DateLayout)
	}
	if !end.IsZero() {
		payload["end"] = end.Format(dataset.DateLayout)
	}
	return payload
}

// runForecast forecasts the filtered range and publishes the outcome in the background.
func (s *Server) runForecast(start, end time.Time, observations []models.Observation, horizon int) (*models.ForecastResult, error) {
	event := events.NewRunEvent(start, end, horizon, s.engine.Series())
	began := time.Now()

	result, err := s.engine.Forecast(observations, horizon)

	event.Complete(forecast.Status(err), result, err, time.Since(began))
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Printf("Failed to publish forecast run %s: %v", event.ID, err)
		}
	}()

	return result, err
}

// handleHealth returns the server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"status":       "healthy",
		"time":         time.Now().UTC().String(),
		"source":       s.data.Source(),
		"observations": s.data.Len(),
	}
	if first, last, ok := s.data.Span(); ok {
		payload["first_date"] = first.Format(dataset.DateLayout)
		payload["last_date"] = last.Format(dataset.DateLayout)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// handleObservations returns the rows of the selected range
func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	start, end, observations, err := s.filtered(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	payload := rangePayload(start, end)
	payload["count"] = len(observations)
	payload["observations"] = observations
	s.writeJSON(w, http.StatusOK, payload)
}

// handleSummary returns the insight cards and narrative
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	start, end, observations, err := s.filtered(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	payload := rangePayload(start, end)
	payload["summary"] = insights.Summarize(observations)
	s.writeJSON(w, http.StatusOK, payload)
}

// chartPayload renders one descriptive chart by name.
func chartPayload(name string, observations []models.Observation) (interface{}, bool) {
	switch name {
	case "heatmap":
		return charts.Heatmap(observations), true
	case "boxplot":
		return charts.Boxplot(observations), true
	case "violin":
		return charts.Violin(observations), true
	case "histogram":
		return charts.Histogram(observations, charts.DefaultBins), true
	case "moving-average":
		return charts.MovingAverage(observations, charts.DefaultWindow), true
	case "acf":
		return charts.Correlogram(observations, charts.DefaultLags), true
	}
	return nil, false
}

var chartNames = []string{"heatmap", "boxplot", "violin", "histogram", "moving-average", "acf"}

// handleChart returns the JSON payload of a descriptive chart
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := chartPayload(name, nil); !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":  "unknown chart " + strconv.Quote(name),
			"charts": chartNames,
		})
		return
	}

	start, end, observations, err := s.filtered(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	data, _ := chartPayload(name, observations)
	payload := rangePayload(start, end)
	payload["chart"] = name
	payload["data"] = data
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleMovingAveragePNG(w http.ResponseWriter, r *http.Request) {
	_, _, observations, err := s.filtered(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writePNG(w, func(buf *bytes.Buffer) error {
		return charts.RenderMovingAveragePNG(buf, charts.MovingAverage(observations, charts.DefaultWindow))
	})
}

func (s *Server) handleCorrelogramPNG(w http.ResponseWriter, r *http.Request) {
	_, _, observations, err := s.filtered(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writePNG(w, func(buf *bytes.Buffer) error {
		return charts.RenderCorrelogramPNG(buf, charts.Correlogram(observations, charts.DefaultLags))
	})
}

func (s *Server) handleForecastPNG(w http.ResponseWriter, r *http.Request) {
	start, end, observations, err := s.filtered(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	horizon, err := s.horizon(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.runForecast(start, end, observations, horizon)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writePNG(w, func(buf *bytes.Buffer) error {
		return charts.RenderForecastPNG(buf, observations, result)
	})
}

// handleForecast returns the weekday profiles and their radar polygons
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	start, end, observations, err := s.filtered(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	horizon, err := s.horizon(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.runForecast(start, end, observations, horizon)
	if err != nil {
		s.writeError(w, err)
		return
	}

	payload := rangePayload(start, end)
	payload["horizon"] = horizon
	payload["weekdays"] = models.WeekdayNames()
	payload["forecast"] = result
	payload["radar"] = charts.Radar(result)
	s.writeJSON(w, http.StatusOK, payload)
}

// handleRuns lists recent forecast runs from the event stream
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRuns
	if raw := r.URL.Query().Get("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l < 1 || l > maxRuns {
			s.writeError(w, &paramError{name: "limit", msg: "must be an integer between 1 and " + strconv.Itoa(maxRuns)})
			return
		}
		limit = l
	}

	runs, err := s.publisher.Recent(r.Context(), int64(limit))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

// handleDashboard returns everything the dashboard page shows. A forecast
// failure is reported in forecast_error and does not fail the page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	start, end, observations, err := s.filtered(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	horizon, err := s.horizon(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	payload := rangePayload(start, end)
	payload["summary"] = insights.Summarize(observations)

	chartData := make(map[string]interface{}, len(chartNames))
	for _, name := range chartNames {
		chartData[name], _ = chartPayload(name, observations)
	}
	payload["charts"] = chartData
	payload["observations"] = observations
	payload["horizon"] = horizon

	result, err := s.runForecast(start, end, observations, horizon)
	if err != nil {
		payload["forecast_error"] = err.Error()
	} else {
		payload["forecast"] = result
		payload["radar"] = charts.Radar(result)
	}

	s.writeJSON(w, http.StatusOK, payload)
}
