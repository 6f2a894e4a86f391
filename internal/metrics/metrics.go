package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Forecast metrics
var (
	ForecastRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtraffic_forecast_runs_total",
			Help: "Forecast requests by outcome",
		},
		[]string{"status"},
	)

	// ModelFitDuration covers fitting and predicting a single series
	ModelFitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webtraffic_model_fit_duration_seconds",
			Help:    "Duration of ARIMA fit and prediction per series in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"series"},
	)

	ForecastHorizon = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webtraffic_forecast_horizon_days",
			Help:    "Requested forecast horizons in days",
			Buckets: []float64{1, 7, 14, 30, 60, 90},
		},
	)
)

// Dataset metrics
var (
	DatasetRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webtraffic_dataset_rows",
			Help: "Number of observations in the loaded dataset",
		},
	)

	DatasetLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtraffic_dataset_loads_total",
			Help: "Dataset loads by outcome",
		},
		[]string{"status"},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtraffic_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webtraffic_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Database metrics
var (
	// DBQueriesTotal tracks the total number of database queries
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtraffic_db_queries_total",
			Help: "Total number of database queries executed",
		},
		[]string{"query_type", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webtraffic_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webtraffic_db_connections_open",
			Help: "Number of established connections both in use and idle",
		},
	)
)

// Process metrics
var (
	AppInfo = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webtraffic_app_info",
			Help: "Application information (always 1)",
		},
	)

	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webtraffic_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webtraffic_events_published_total",
			Help: "Forecast run events sent to the event stream by outcome",
		},
		[]string{"status"},
	)
)

func init() {
	AppInfo.Set(1)
	AppStartTime.SetToCurrentTime()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordForecastRun counts a forecast request. status is "success" or the
// kind of failure, e.g. "insufficient_data".
func RecordForecastRun(status string, horizon int) {
	ForecastRunsTotal.WithLabelValues(status).Inc()
	if horizon > 0 {
		ForecastHorizon.Observe(float64(horizon))
	}
}

// RecordModelFit records the time spent fitting one series
func RecordModelFit(series string, duration time.Duration) {
	ModelFitDuration.WithLabelValues(series).Observe(duration.Seconds())
}

// RecordDatasetLoad records the outcome of loading the dataset
func RecordDatasetLoad(rows int, ok bool) {
	status := "success"
	if !ok {
		status = "degraded"
	}
	DatasetLoadsTotal.WithLabelValues(status).Inc()
	DatasetRows.Set(float64(rows))
}

// RecordHTTPRequest records a served request
func RecordHTTPRequest(route string, code int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordDBQuery records a database query execution
func RecordDBQuery(queryType, table string, duration time.Duration, err error) {
	DBQueriesTotal.WithLabelValues(queryType, table, statusLabel(err)).Inc()
	DBQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(open int) {
	DBConnectionsOpen.Set(float64(open))
}

// RecordEventPublish records an attempt to publish a forecast run event
func RecordEventPublish(err error) {
	EventsPublishedTotal.WithLabelValues(statusLabel(err)).Inc()
}
