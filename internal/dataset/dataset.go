// Package dataset owns the visits dataset: loading it once, holding it
// immutably and slicing it by date range.
package dataset

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"webtraffic/internal/config"
	"webtraffic/internal/metrics"
	"webtraffic/internal/models"
)

// ObservationReader is a stored source of observations, such as the MySQL store.
type ObservationReader interface {
	GetObservations() ([]models.Observation, error)
}

// Dataset is the loaded set of observations. It is never modified after
// construction and is safe to share between goroutines.
type Dataset struct {
	observations []models.Observation
	source       string
	warning      string
	loadedAt     time.Time
}

// New builds a dataset from observations, sorted by date. When a date
// repeats, the first row wins.
func New(observations []models.Observation, source string) *Dataset {
	sorted := make([]models.Observation, len(observations))
	copy(sorted, observations)
	for i := range sorted {
		sorted[i].Date = DateOnly(sorted[i].Date)
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Date.Before(sorted[b].Date)
	})

	unique := sorted[:0]
	for _, o := range sorted {
		if len(unique) > 0 && unique[len(unique)-1].Date.Equal(o.Date) {
			log.Printf("Warning: duplicate date %s in %s, keeping first row", o.Date.Format(DateLayout), source)
			continue
		}
		unique = append(unique, o)
	}

	return &Dataset{
		observations: unique,
		source:       source,
		loadedAt:     time.Now(),
	}
}

// Empty returns a dataset with no rows carrying a user-visible warning.
func Empty(source, warning string) *Dataset {
	return &Dataset{source: source, warning: warning, loadedAt: time.Now()}
}

// Load reads the configured source once. A missing or unreadable source is
// not fatal: it yields an empty dataset whose Warning explains what happened.
func Load(cfg *config.Config, store ObservationReader) *Dataset {
	var ds *Dataset

	switch cfg.Dataset.Source {
	case config.SourceMySQL:
		if store == nil {
			ds = Empty(config.SourceMySQL, "The mysql dataset source is configured but no database is available.")
			break
		}
		observations, err := store.GetObservations()
		if err != nil {
			loadErr := &LoadError{Source: config.SourceMySQL, Err: err}
			log.Printf("Warning: %v", loadErr)
			ds = Empty(config.SourceMySQL, loadErr.Error())
			break
		}
		ds = New(observations, config.SourceMySQL)

	default:
		observations, err := LoadCSV(cfg.Dataset.Path)
		if err != nil {
			log.Printf("Warning: %v", err)
			ds = Empty(cfg.Dataset.Path, warningFor(cfg.Dataset.Path, err))
			break
		}
		ds = New(observations, cfg.Dataset.Path)
	}

	metrics.RecordDatasetLoad(ds.Len(), ds.Warning() == "")
	if ds.Len() > 0 {
		first, last, _ := ds.Span()
		log.Printf("✓ Loaded %d observations from %s (%s to %s)",
			ds.Len(), ds.Source(), first.Format(DateLayout), last.Format(DateLayout))
	}
	return ds
}

func warningFor(path string, err error) string {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Sprintf("The file %q was not found.", path)
	}
	return fmt.Sprintf("An error occurred while loading the data: %v", err)
}

// Len is the number of observations.
func (d *Dataset) Len() int {
	return len(d.observations)
}

// Source names where the observations came from.
func (d *Dataset) Source() string {
	return d.source
}

// Warning is non-empty when loading degraded to an empty dataset.
func (d *Dataset) Warning() string {
	return d.warning
}

// LoadedAt is when the dataset was built.
func (d *Dataset) LoadedAt() time.Time {
	return d.loadedAt
}

// Observations returns a copy of all rows in date order.
func (d *Dataset) Observations() []models.Observation {
	out := make([]models.Observation, len(d.observations))
	copy(out, d.observations)
	return out
}

// Span returns the first and last dates; ok is false for an empty dataset.
func (d *Dataset) Span() (first, last time.Time, ok bool) {
	if len(d.observations) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return d.observations[0].Date, d.observations[len(d.observations)-1].Date, true
}

// Filter returns the rows between start and end inclusive.
func (d *Dataset) Filter(start, end time.Time) ([]models.Observation, error) {
	return Filter(d.observations, start, end)
}
