package dataset

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"webtraffic/internal/config"
	"webtraffic/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fakeStore struct {
	observations []models.Observation
	err          error
}

func (f *fakeStore) GetObservations() ([]models.Observation, error) {
	return f.observations, f.err
}

func TestNewSortsAndDeduplicates(t *testing.T) {
	input := []models.Observation{
		{Row: 3, Date: day(2020, 1, 3), UniqueVisits: 30},
		{Row: 1, Date: day(2020, 1, 1), UniqueVisits: 10},
		{Row: 2, Date: day(2020, 1, 2), UniqueVisits: 20},
		{Row: 4, Date: day(2020, 1, 1), UniqueVisits: 99},
	}

	ds := New(input, "test")

	if ds.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", ds.Len())
	}
	got := ds.Observations()
	for i, want := range []int{1, 2, 3} {
		if got[i].Row != want {
			t.Errorf("Observations()[%d].Row = %d, want %d", i, got[i].Row, want)
		}
	}
	if input[0].Row != 3 {
		t.Error("New() modified the caller's slice")
	}

	first, last, ok := ds.Span()
	if !ok || !first.Equal(day(2020, 1, 1)) || !last.Equal(day(2020, 1, 3)) {
		t.Errorf("Span() = %v, %v, %v", first, last, ok)
	}
}

func TestObservationsReturnsCopy(t *testing.T) {
	ds := New([]models.Observation{{Row: 1, Date: day(2020, 1, 1)}}, "test")
	got := ds.Observations()
	got[0].Row = 42

	if ds.Observations()[0].Row != 1 {
		t.Error("Observations() exposed internal storage")
	}
}

func TestLoadCSVSource(t *testing.T) {
	cfg := &config.Config{}
	cfg.Dataset.Source = config.SourceCSV
	cfg.Dataset.Path = writeTempCSV(t, sampleCSV)

	ds := Load(cfg, nil)
	if ds.Warning() != "" {
		t.Errorf("Warning() = %q, want empty", ds.Warning())
	}
	if ds.Len() != 3 {
		t.Errorf("Len() = %d, want 3", ds.Len())
	}
}

func TestLoadMissingFileDegrades(t *testing.T) {
	cfg := &config.Config{}
	cfg.Dataset.Source = config.SourceCSV
	cfg.Dataset.Path = filepath.Join(t.TempDir(), "nope.csv")

	ds := Load(cfg, nil)
	if ds.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ds.Len())
	}
	if !strings.Contains(ds.Warning(), "not found") {
		t.Errorf("Warning() = %q, want a not found message", ds.Warning())
	}
	if _, _, ok := ds.Span(); ok {
		t.Error("Span() ok = true for empty dataset")
	}
}

func TestLoadMySQLSource(t *testing.T) {
	cfg := &config.Config{}
	cfg.Dataset.Source = config.SourceMySQL

	tests := []struct {
		name        string
		store       ObservationReader
		wantLen     int
		wantWarning bool
	}{
		{
			name: "rows",
			store: &fakeStore{observations: []models.Observation{
				{Row: 1, Date: day(2020, 1, 1)},
				{Row: 2, Date: day(2020, 1, 2)},
			}},
			wantLen: 2,
		},
		{
			name:        "query error",
			store:       &fakeStore{err: errors.New("connection refused")},
			wantWarning: true,
		},
		{
			name:        "no store",
			store:       nil,
			wantWarning: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := Load(cfg, tt.store)
			if ds.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", ds.Len(), tt.wantLen)
			}
			if (ds.Warning() != "") != tt.wantWarning {
				t.Errorf("Warning() = %q, wantWarning %v", ds.Warning(), tt.wantWarning)
			}
		})
	}
}
