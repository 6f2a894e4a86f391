package server

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"webtraffic/internal/config"
	"webtraffic/internal/dataset"
	"webtraffic/internal/events"
	"webtraffic/internal/forecast"
	"webtraffic/internal/models"
)

// recordingPublisher keeps published events in memory
type recordingPublisher struct {
	mu        sync.Mutex
	events    []events.RunEvent
	published chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{published: make(chan struct{}, 16)}
}

func (p *recordingPublisher) Publish(_ context.Context, e events.RunEvent) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	p.published <- struct{}{}
	return nil
}

func (p *recordingPublisher) Recent(context.Context, int64) ([]events.RunEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.RunEvent, len(p.events))
	copy(out, p.events)
	return out, nil
}

func (p *recordingPublisher) Close() error { return nil }

func testObservations(n int) []models.Observation {
	rng := rand.New(rand.NewSource(42))
	observations := make([]models.Observation, n)
	for i := range observations {
		first := int64(math.Round(100 + 5*rng.NormFloat64()))
		returning := int64(math.Round(30 + 3*rng.NormFloat64()))
		observations[i] = models.Observation{
			Row:             i + 1,
			Date:            time.Date(2019, 1, 1+i, 0, 0, 0, 0, time.UTC),
			PageLoads:       (first + returning) * 2,
			UniqueVisits:    first + returning,
			FirstTimeVisits: first,
			ReturningVisits: returning,
		}
	}
	return observations
}

func newTestServer(t *testing.T, data *dataset.Dataset, pub events.Publisher) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Forecast.DefaultHorizon = 30
	return NewServer(cfg, data, forecast.NewEngine(nil), pub)
}

func do(t *testing.T, s *Server, target string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w.Result()
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, dataset.New(testObservations(30), "test"), nil)

	resp := do(t, s, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("handleHealth() status = %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("handleHealth() content-type = %v, want application/json", ct)
	}

	body := decode(t, resp)
	if body["status"] != "healthy" {
		t.Errorf("handleHealth() status in body = %v, want healthy", body["status"])
	}
	if body["observations"] != float64(30) {
		t.Errorf("handleHealth() observations = %v, want 30", body["observations"])
	}
	if body["first_date"] != "2019-01-01" {
		t.Errorf("handleHealth() first_date = %v, want 2019-01-01", body["first_date"])
	}
}

func TestWarningEchoed(t *testing.T) {
	s := newTestServer(t, dataset.Empty("missing.csv", "The file \"missing.csv\" was not found."), nil)

	body := decode(t, do(t, s, "/health"))
	if body["warning"] == nil {
		t.Error("handleHealth() should echo the dataset warning")
	}

	resp := do(t, s, "/forecast")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("handleForecast() on empty dataset status = %v, want %v", resp.StatusCode, http.StatusUnprocessableEntity)
	}
	if body := decode(t, resp); body["warning"] == nil || body["error"] == nil {
		t.Errorf("handleForecast() body = %v, want error and warning", body)
	}
}

func TestHandleObservations(t *testing.T) {
	s := newTestServer(t, dataset.New(testObservations(60), "test"), nil)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCount  float64
	}{
		{"default range", "/observations", http.StatusOK, 60},
		{"inclusive range", "/observations?start=2019-01-05&end=2019-01-10", http.StatusOK, 6},
		{"open end", "/observations?start=2019-02-25", http.StatusOK, 5},
		{"bad start", "/observations?start=01/05/2019", http.StatusBadRequest, 0},
		{"inverted range", "/observations?start=2019-02-01&end=2019-01-01", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, s, tt.target)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %v, want %v", resp.StatusCode, tt.wantStatus)
			}
			body := decode(t, resp)
			if tt.wantStatus != http.StatusOK {
				if body["error"] == nil {
					t.Error("error body should carry an error message")
				}
				return
			}
			if body["count"] != tt.wantCount {
				t.Errorf("count = %v, want %v", body["count"], tt.wantCount)
			}
		})
	}
}

func TestHandleForecast(t *testing.T) {
	pub := newRecordingPublisher()
	s := newTestServer(t, dataset.New(testObservations(400), "test"), pub)

	resp := do(t, s, "/forecast?days=7")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("handleForecast() status = %v, want %v", resp.StatusCode, http.StatusOK)
	}
	body := decode(t, resp)

	radar, ok := body["radar"].([]interface{})
	if !ok || len(radar) != 2 {
		t.Fatalf("radar = %v, want 2 polygons", body["radar"])
	}
	for _, p := range radar {
		values := p.(map[string]interface{})["values"].([]interface{})
		if len(values) != 8 || values[0] != values[7] {
			t.Errorf("radar values = %v, want 8 values closed on Monday", values)
		}
	}

	result := body["forecast"].(map[string]interface{})
	profiles := result["profiles"].(map[string]interface{})
	for _, name := range forecast.DefaultSeries {
		profile, ok := profiles[name].([]interface{})
		if !ok || len(profile) != 7 {
			t.Errorf("profile %s = %v, want 7 values", name, profiles[name])
		}
	}

	select {
	case <-pub.published:
	case <-time.After(2 * time.Second):
		t.Fatal("forecast run was not published")
	}
	runs, _ := pub.Recent(context.Background(), 10)
	if runs[0].Status != "success" || runs[0].Horizon != 7 {
		t.Errorf("published run = %+v, want a successful 7 day run", runs[0])
	}
}

func TestHandleForecast_Errors(t *testing.T) {
	s := newTestServer(t, dataset.New(testObservations(100), "test"), nil)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"zero horizon", "/forecast?days=0", http.StatusBadRequest},
		{"horizon too long", "/forecast?days=91", http.StatusBadRequest},
		{"non integer horizon", "/forecast?days=abc", http.StatusBadRequest},
		{"inverted range", "/forecast?start=2019-03-01&end=2019-02-01", http.StatusBadRequest},
		{"three days", "/forecast?start=2019-02-01&end=2019-02-03", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, s, tt.target)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %v, want %v", resp.StatusCode, tt.wantStatus)
			}
			if body := decode(t, resp); body["error"] == nil {
				t.Error("error body should carry an error message")
			}
		})
	}
}

func TestHandleDashboard_ForecastErrorDoesNotFailPage(t *testing.T) {
	s := newTestServer(t, dataset.New(testObservations(100), "test"), nil)

	resp := do(t, s, "/dashboard?start=2019-02-01&end=2019-02-05")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("handleDashboard() status = %v, want %v", resp.StatusCode, http.StatusOK)
	}

	body := decode(t, resp)
	if body["forecast_error"] == nil {
		t.Error("handleDashboard() should report forecast_error for a 5 day range")
	}
	if body["forecast"] != nil {
		t.Error("handleDashboard() should not include a forecast on failure")
	}
	if body["summary"] == nil || body["charts"] == nil {
		t.Error("handleDashboard() should still include summary and charts")
	}
}

func TestHandleDashboard(t *testing.T) {
	s := newTestServer(t, dataset.New(testObservations(200), "test"), nil)

	body := decode(t, do(t, s, "/dashboard?days=14"))
	if body["forecast_error"] != nil {
		t.Fatalf("forecast_error = %v", body["forecast_error"])
	}
	chartData := body["charts"].(map[string]interface{})
	for _, name := range chartNames {
		if chartData[name] == nil {
			t.Errorf("charts[%s] missing", name)
		}
	}
	if body["horizon"] != float64(14) {
		t.Errorf("horizon = %v, want 14", body["horizon"])
	}
}

func TestHandleChart(t *testing.T) {
	s := newTestServer(t, dataset.New(testObservations(60), "test"), nil)

	for _, name := range chartNames {
		resp := do(t, s, "/charts/"+name)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("/charts/%s status = %v, want %v", name, resp.StatusCode, http.StatusOK)
		}
		resp.Body.Close()
	}

	resp := do(t, s, "/charts/pie")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("/charts/pie status = %v, want %v", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestHandlePNGCharts(t *testing.T) {
	s := newTestServer(t, dataset.New(testObservations(120), "test"), nil)

	for _, target := range []string{"/charts/moving-average.png", "/charts/acf.png", "/charts/forecast.png?days=10"} {
		resp := do(t, s, target)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %v, want %v", target, resp.StatusCode, http.StatusOK)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s content-type = %v, want image/png", target, ct)
		}
		resp.Body.Close()
	}
}

func TestHandleRuns(t *testing.T) {
	s := newTestServer(t, dataset.New(testObservations(30), "test"), nil)

	body := decode(t, do(t, s, "/forecast/runs"))
	if body["count"] != float64(0) {
		t.Errorf("count = %v, want 0", body["count"])
	}

	resp := do(t, s, "/forecast/runs?limit=1000")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("limit=1000 status = %v, want %v", resp.StatusCode, http.StatusBadRequest)
	}
	resp.Body.Close()
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, dataset.New(testObservations(30), "test"), nil)

	do(t, s, "/health").Body.Close()
	resp := do(t, s, "/metrics")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %v, want %v", resp.StatusCode, http.StatusOK)
	}
}

func TestDefaultRangeClampedToData(t *testing.T) {
	data := dataset.New(testObservations(60), "test")
	cfg := &config.Config{}
	cfg.Dashboard.DefaultStart = "2018-06-01"
	cfg.Dashboard.DefaultEnd = "2019-01-31"
	s := NewServer(cfg, data, forecast.NewEngine(nil), nil)

	start, end := s.defaultRange()
	if start.Format(dataset.DateLayout) != "2019-01-01" {
		t.Errorf("start = %v, want 2019-01-01", start)
	}
	if end.Format(dataset.DateLayout) != "2019-01-31" {
		t.Errorf("end = %v, want 2019-01-31", end)
	}
}
