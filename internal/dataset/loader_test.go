package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleCSV = `Row,Day,Day.Of.Week,Date,Page.Loads,Unique.Visits,First.Time.Visits,Returning.Visits
1,Sunday,1,9/14/2014,"2,146","1,582","1,430",152
2,Monday,2,9/15/2014,"3,621","2,528","2,297",231
3,Tuesday,3,9/16/2014,"3,698","2,630","2,352",278
`

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daily-website-visitors.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp csv: %v", err)
	}
	return path
}

func TestReadCSV(t *testing.T) {
	observations, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	if len(observations) != 3 {
		t.Fatalf("ReadCSV() returned %d rows, want 3", len(observations))
	}

	first := observations[0]
	if first.PageLoads != 2146 {
		t.Errorf("PageLoads = %d, want 2146", first.PageLoads)
	}
	if first.UniqueVisits != 1582 {
		t.Errorf("UniqueVisits = %d, want 1582", first.UniqueVisits)
	}
	if first.FirstTimeVisits != 1430 {
		t.Errorf("FirstTimeVisits = %d, want 1430", first.FirstTimeVisits)
	}
	if first.ReturningVisits != 152 {
		t.Errorf("ReturningVisits = %d, want 152", first.ReturningVisits)
	}
	if first.Day != "Sunday" || first.DayOfWeek != 1 {
		t.Errorf("Day = %s/%d, want Sunday/1", first.Day, first.DayOfWeek)
	}

	want := time.Date(2014, time.September, 14, 0, 0, 0, 0, time.UTC)
	if !first.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", first.Date, want)
	}
}

func TestReadCSVSkipsMalformedRows(t *testing.T) {
	input := `Row,Day,Day.Of.Week,Date,Page.Loads,Unique.Visits,First.Time.Visits,Returning.Visits
1,Sunday,1,9/14/2014,"2,146","1,582","1,430",152
2,Monday,2,not-a-date,"3,621","2,528","2,297",231
3,Tuesday,3,9/16/2014,lots,"2,630","2,352",278
4,Wednesday,4,9/17/2014,"3,638","2,614","2,327",287
`
	observations, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("ReadCSV() returned %d rows, want 2", len(observations))
	}
	if observations[1].Row != 4 {
		t.Errorf("second row = %d, want 4", observations[1].Row)
	}
}

func TestReadCSVMissingColumn(t *testing.T) {
	input := "Row,Day,Date\n1,Sunday,9/14/2014\n"
	if _, err := ReadCSV(strings.NewReader(input)); err == nil {
		t.Error("ReadCSV() expected error for missing columns, got nil")
	}
}

func TestNormalizeColumn(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Day.Of.Week", "Day_Of_Week"},
		{"First.Time.Visits", "First_Time_Visits"},
		{" Row ", "Row"},
		{"Page_Loads", "Page_Loads"},
	}

	for _, tt := range tests {
		if got := NormalizeColumn(tt.in); got != tt.want {
			t.Errorf("NormalizeColumn(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"2,146", 2146, false},
		{"152", 152, false},
		{" 1,000,000 ", 1000000, false},
		{"", 0, true},
		{"-5", 0, true},
		{"12.5", 0, true},
	}

	for _, tt := range tests {
		got, err := parseCount(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCount(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLoadCSV(t *testing.T) {
	path := writeTempCSV(t, sampleCSV)

	observations, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	if len(observations) != 3 {
		t.Errorf("LoadCSV() returned %d rows, want 3", len(observations))
	}
}

func TestLoadCSVMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.csv")

	_, err := LoadCSV(path)
	if err == nil {
		t.Fatal("LoadCSV() expected error, got nil")
	}

	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("LoadCSV() error = %T, want *LoadError", err)
	}
	if loadErr.Source != path {
		t.Errorf("LoadError.Source = %s, want %s", loadErr.Source, path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadCSV() error should wrap os.ErrNotExist, got %v", err)
	}
}
