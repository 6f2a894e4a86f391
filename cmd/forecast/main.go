package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"webtraffic/internal/charts"
	"webtraffic/internal/config"
	"webtraffic/internal/database"
	"webtraffic/internal/dataset"
	"webtraffic/internal/forecast"
	"webtraffic/internal/models"
	"webtraffic/internal/timeseries"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	startStr := flag.String("start", "", "first day of history (YYYY-MM-DD)")
	endStr := flag.String("end", "", "last day of history (YYYY-MM-DD)")
	days := flag.Int("days", 0, "forecast horizon in days (defaults to forecast.default_horizon)")
	seriesList := flag.String("series", "", "comma separated fields to forecast (defaults to forecast.series)")
	pngDir := flag.String("png", "", "directory to write forecast.png into")
	workers := flag.Int("workers", 4, "number of series fitted concurrently")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var store dataset.ObservationReader
	if cfg.Dataset.Source == config.SourceMySQL {
		db, err := database.NewDB(config.GetDatabaseDSN())
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		store = db
	}

	data := dataset.Load(cfg, store)
	if data.Len() == 0 {
		log.Fatalf("No observations loaded: %s", data.Warning())
	}

	start, end, err := resolveRange(data, *startStr, *endStr)
	if err != nil {
		log.Fatalf("Invalid range: %v", err)
	}
	observations, err := data.Filter(start, end)
	if err != nil {
		log.Fatalf("Invalid range: %v", err)
	}

	horizon := *days
	if horizon == 0 {
		horizon = cfg.Forecast.DefaultHorizon
	}
	if err := forecast.ValidateHorizon(horizon); err != nil {
		log.Fatalf("%v", err)
	}

	series := cfg.Forecast.Series
	if *seriesList != "" {
		series = strings.Split(*seriesList, ",")
	}
	engine := forecast.NewEngine(series)

	log.Printf("Forecasting %d days from %d observations (%s to %s)",
		horizon, len(observations), start.Format(dataset.DateLayout), end.Format(dataset.DateLayout))

	result, failed := runForecasts(engine, observations, horizon, *workers)
	printProfiles(result)

	if *pngDir != "" && len(result.Daily) > 0 {
		if err := writeForecastPNG(*pngDir, observations, result); err != nil {
			log.Printf("Failed to write chart: %v", err)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func resolveRange(data *dataset.Dataset, startStr, endStr string) (time.Time, time.Time, error) {
	start, end, _ := data.Span()
	var err error
	if startStr != "" {
		if start, err = dataset.ParseDate(startStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endStr != "" {
		if end, err = dataset.ParseDate(endStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}

// SeriesResult holds the outcome for a single series
type SeriesResult struct {
	Series         string
	Profile        models.WeekdayProfile
	Points         []models.ForecastPoint
	Error          error
	ProcessingTime time.Duration
}

// runForecasts fits every series on a small worker pool and collects the
// successful ones into a single result. It returns the number of failures.
func runForecasts(engine *forecast.Engine, observations []models.Observation, horizon, numWorkers int) (*models.ForecastResult, int) {
	names := engine.Series()
	if numWorkers > len(names) {
		numWorkers = len(names)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	jobs := make(chan string, len(names))
	results := make(chan SeriesResult, len(names))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go worker(engine, observations, horizon, jobs, results, &wg)
	}

	for _, name := range names {
		jobs <- name
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	byName := make(map[string]SeriesResult, len(names))
	done, failed := 0, 0
	for r := range results {
		done++
		if r.Error != nil {
			log.Printf("[%d/%d] ❌ %s: %v (%.1fms)", done, len(names), r.Series, r.Error, msec(r.ProcessingTime))
			failed++
			continue
		}
		log.Printf("[%d/%d] ✓ %s (%.1fms)", done, len(names), r.Series, msec(r.ProcessingTime))
		byName[r.Series] = r
	}

	// keep the configured order regardless of completion order
	result := &models.ForecastResult{
		Horizon:  horizon,
		Profiles: make(map[string]models.WeekdayProfile),
		Daily:    make(map[string][]models.ForecastPoint),
	}
	for _, name := range names {
		r, ok := byName[name]
		if !ok {
			continue
		}
		result.Series = append(result.Series, name)
		result.Profiles[name] = r.Profile
		result.Daily[name] = r.Points
		result.Start = r.Points[0].Date
		result.End = r.Points[len(r.Points)-1].Date
	}
	return result, failed
}

func worker(engine *forecast.Engine, observations []models.Observation, horizon int,
	jobs <-chan string, results chan<- SeriesResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for name := range jobs {
		startTime := time.Now()

		s, err := timeseries.FromObservations(observations, name)
		if err != nil {
			results <- SeriesResult{Series: name, Error: err, ProcessingTime: time.Since(startTime)}
			continue
		}

		profile, points, err := engine.ForecastSeries(s, horizon)
		results <- SeriesResult{
			Series:         name,
			Profile:        profile,
			Points:         points,
			Error:          err,
			ProcessingTime: time.Since(startTime),
		}
	}
}

func msec(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func printProfiles(result *models.ForecastResult) {
	if len(result.Series) == 0 {
		fmt.Println("No forecasts produced.")
		return
	}

	fmt.Printf("\n=== Mean forecast by weekday, %s to %s ===\n",
		result.Start.Format(dataset.DateLayout), result.End.Format(dataset.DateLayout))
	fmt.Printf("%-10s", "")
	for _, name := range result.Series {
		fmt.Printf(" %18s", name)
	}
	fmt.Println()

	for i, wd := range models.Weekdays {
		fmt.Printf("%-10s", wd)
		for _, name := range result.Series {
			fmt.Printf(" %18.1f", result.Profiles[name][i])
		}
		fmt.Println()
	}
}

func writeForecastPNG(dir string, observations []models.Observation, result *models.ForecastResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, "forecast.png")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := charts.RenderForecastPNG(f, observations, result); err != nil {
		return err
	}
	log.Printf("✓ Wrote %s", path)
	return nil
}
