// Package events records forecast runs on a Redis stream so other
// services can follow what the dashboard computed.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"webtraffic/internal/models"
)

const TypeForecastRun = "forecast_run"

// RunEvent describes one forecast request and its outcome.
type RunEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Start      string    `json:"start,omitempty"`
	End        string    `json:"end,omitempty"`
	Horizon    int       `json:"horizon"`
	Series     []string  `json:"series"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`

	// Profiles is only set for successful runs
	Profiles map[string]models.WeekdayProfile `json:"profiles,omitempty"`
}

// NewRunEvent stamps a run with a fresh id and the current time.
func NewRunEvent(start, end time.Time, horizon int, series []string) RunEvent {
	e := RunEvent{
		ID:        uuid.NewString(),
		Type:      TypeForecastRun,
		Timestamp: time.Now().UTC(),
		Horizon:   horizon,
		Series:    series,
	}
	if !start.IsZero() {
		e.Start = start.Format("2006-01-02")
	}
	if !end.IsZero() {
		e.End = end.Format("2006-01-02")
	}
	return e
}

// Complete fills in the outcome of the run.
func (e *RunEvent) Complete(status string, result *models.ForecastResult, err error, elapsed time.Duration) {
	e.Status = status
	e.DurationMs = elapsed.Milliseconds()
	if err != nil {
		e.Error = err.Error()
	}
	if result != nil {
		e.Profiles = result.Profiles
	}
}

// Publisher sends run events somewhere.
type Publisher interface {
	Publish(ctx context.Context, event RunEvent) error
	Recent(ctx context.Context, count int64) ([]RunEvent, error)
	Close() error
}

// NopPublisher drops every event. It is used when Redis is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, RunEvent) error { return nil }

func (NopPublisher) Recent(context.Context, int64) ([]RunEvent, error) {
	return []RunEvent{}, nil
}

func (NopPublisher) Close() error { return nil }
