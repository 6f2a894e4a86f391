package main

import (
	"flag"
	"log"

	"webtraffic/internal/config"
	"webtraffic/internal/database"
	"webtraffic/internal/dataset"
)

const batchSize = 500

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	csvPath := flag.String("csv", "", "csv file to import (defaults to dataset.path from the config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	path := *csvPath
	if path == "" {
		path = cfg.Dataset.Path
	}
	if path == "" {
		log.Fatalf("No csv file given: pass -csv or set dataset.path")
	}

	db, err := database.NewDB(config.GetDatabaseDSN())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	observations, err := dataset.LoadCSV(path)
	if err != nil {
		log.Fatalf("Failed to read csv: %v", err)
	}
	log.Printf("Read %d observations from %s", len(observations), path)

	count := 0
	failed := 0
	for start := 0; start < len(observations); start += batchSize {
		end := start + batchSize
		if end > len(observations) {
			end = len(observations)
		}

		if err := db.StoreObservations(observations[start:end]); err != nil {
			log.Printf("Failed to store rows %d-%d: %v", start+1, end, err)
			failed += end - start
			continue
		}
		count += end - start
		log.Printf("Inserted %d/%d observations...", count, len(observations))
	}

	total, first, last, err := db.CountObservations()
	if err != nil {
		log.Fatalf("Failed to count observations: %v", err)
	}

	log.Printf("Import complete! Stored %d observations, %d failed", count, failed)
	log.Printf("✓ Table now holds %d days (%s to %s)", total,
		first.Format(dataset.DateLayout), last.Format(dataset.DateLayout))
}
