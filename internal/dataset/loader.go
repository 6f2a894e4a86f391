package dataset

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"webtraffic/internal/models"
)

const (
	// DateLayout is the date-only layout used in query parameters and logs.
	DateLayout = "2006-01-02"

	// csvDateLayout matches the M/D/YYYY dates of the source file.
	csvDateLayout = "1/2/2006"
)

const (
	colRow             = "Row"
	colDay             = "Day"
	colDayOfWeek       = "Day_Of_Week"
	colDate            = "Date"
	colPageLoads       = models.FieldPageLoads
	colUniqueVisits    = models.FieldUniqueVisits
	colFirstTimeVisits = models.FieldFirstTimeVisits
	colReturningVisits = models.FieldReturningVisits
)

var requiredColumns = []string{
	colRow, colDay, colDayOfWeek, colDate,
	colPageLoads, colUniqueVisits, colFirstTimeVisits, colReturningVisits,
}

// LoadCSV reads the visits file at path. Any failure is returned as a *LoadError.
func LoadCSV(path string) ([]models.Observation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	defer file.Close()

	observations, err := ReadCSV(file)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	return observations, nil
}

// ReadCSV parses the fixed visits schema. Every column is read as text so
// that thousands separators can be stripped before numeric conversion.
// Rows that fail to parse are skipped and logged.
func ReadCSV(r io.Reader) ([]models.Observation, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", df.Err)
	}

	columns := make(map[string][]string, df.Ncol())
	for _, name := range df.Names() {
		col := df.Col(name)
		if col.Err != nil {
			return nil, fmt.Errorf("failed to read column %s: %w", name, col.Err)
		}
		columns[NormalizeColumn(name)] = col.Records()
	}

	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing required column %s", name)
		}
	}

	n := df.Nrow()
	observations := make([]models.Observation, 0, n)
	skipped := 0
	for i := 0; i < n; i++ {
		o, err := parseRow(columns, i)
		if err != nil {
			// +2: header line and 1-based numbering
			log.Printf("Skipping csv line %d: %v", i+2, err)
			skipped++
			continue
		}
		observations = append(observations, o)
	}

	if skipped > 0 {
		log.Printf("Warning: skipped %d of %d csv rows", skipped, n)
	}
	if n > 0 && len(observations) == 0 {
		return nil, errors.New("no valid rows found in csv")
	}

	return observations, nil
}

// NormalizeColumn maps a header such as "Page.Loads" onto "Page_Loads".
func NormalizeColumn(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), ".", "_")
}

func parseRow(columns map[string][]string, i int) (models.Observation, error) {
	var o models.Observation
	var err error

	rowNum, err := parseCount(columns[colRow][i])
	if err != nil {
		return o, fmt.Errorf("row: %w", err)
	}
	o.Row = int(rowNum)

	o.Day = strings.TrimSpace(columns[colDay][i])

	dow, err := parseCount(columns[colDayOfWeek][i])
	if err != nil {
		return o, fmt.Errorf("day of week: %w", err)
	}
	if dow < 1 || dow > 7 {
		return o, fmt.Errorf("day of week %d out of range 1-7", dow)
	}
	o.DayOfWeek = int(dow)

	o.Date, err = ParseCSVDate(columns[colDate][i])
	if err != nil {
		return o, err
	}

	counts := []struct {
		column string
		dst    *int64
	}{
		{colPageLoads, &o.PageLoads},
		{colUniqueVisits, &o.UniqueVisits},
		{colFirstTimeVisits, &o.FirstTimeVisits},
		{colReturningVisits, &o.ReturningVisits},
	}
	for _, c := range counts {
		v, err := parseCount(columns[c.column][i])
		if err != nil {
			return o, fmt.Errorf("%s: %w", c.column, err)
		}
		*c.dst = v
	}

	return o, nil
}

// parseCount converts a non-negative integer that may contain thousands separators ("2,146").
func parseCount(raw string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q", raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative count %q", raw)
	}
	return v, nil
}

// ParseCSVDate parses the source M/D/YYYY format into a UTC date.
func ParseCSVDate(raw string) (time.Time, error) {
	t, err := time.Parse(csvDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return t, nil
}

// ParseDate parses a YYYY-MM-DD query date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return t, nil
}
