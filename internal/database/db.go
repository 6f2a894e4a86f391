package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"webtraffic/internal/metrics"
	"webtraffic/internal/models"
)

const observationColumns = `row_num, day_name, day_of_week, date, page_loads, unique_visits, first_time_visits, returning_visits`

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// NewDB opens the connection and creates the schema.
// dsn format: "username:password@tcp(host:port)/dbname?parseTime=true"
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func (db *DB) initSchema() error {
	// MySQL doesn't support multiple statements in one Exec
	statements := []string{
		`CREATE TABLE IF NOT EXISTS observations (
			date DATE NOT NULL PRIMARY KEY,
			row_num INT NOT NULL,
			day_name VARCHAR(16) NOT NULL,
			day_of_week TINYINT NOT NULL,
			page_loads BIGINT NOT NULL,
			unique_visits BIGINT NOT NULL,
			first_time_visits BIGINT NOT NULL,
			returning_visits BIGINT NOT NULL,
			imported_at DATETIME(6) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (db *DB) updatePoolStats() {
	metrics.UpdateDBConnectionStats(db.conn.Stats().OpenConnections)
}

// StoreObservations upserts observations keyed by date in a single transaction.
func (db *DB) StoreObservations(observations []models.Observation) error {
	if len(observations) == 0 {
		log.Printf("No observations to store")
		return nil
	}
	defer db.updatePoolStats()

	queryStart := time.Now()
	err := db.storeObservations(observations)
	metrics.RecordDBQuery("INSERT", "observations", time.Since(queryStart), err)
	if err != nil {
		return err
	}

	log.Printf("✓ Stored %d observations", len(observations))
	return nil
}

func (db *DB) storeObservations(observations []models.Observation) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // ignored after commit

	stmt, err := tx.Prepare(`INSERT INTO observations (` + observationColumns + `, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			row_num = VALUES(row_num),
			day_name = VALUES(day_name),
			day_of_week = VALUES(day_of_week),
			page_loads = VALUES(page_loads),
			unique_visits = VALUES(unique_visits),
			first_time_visits = VALUES(first_time_visits),
			returning_visits = VALUES(returning_visits),
			imported_at = VALUES(imported_at)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, o := range observations {
		_, err = stmt.Exec(o.Row, o.Day, o.DayOfWeek, o.Date.Format("2006-01-02"),
			o.PageLoads, o.UniqueVisits, o.FirstTimeVisits, o.ReturningVisits, now)
		if err != nil {
			return fmt.Errorf("failed to insert observation for %s: %w", o.Date.Format("2006-01-02"), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetObservations returns every stored observation ordered by date
func (db *DB) GetObservations() ([]models.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations ORDER BY date`
	return db.queryObservations(query)
}

// GetObservationsBetween returns observations with start <= date <= end, ordered by date
func (db *DB) GetObservationsBetween(start, end time.Time) ([]models.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations WHERE date BETWEEN ? AND ? ORDER BY date`
	return db.queryObservations(query, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

func (db *DB) queryObservations(query string, args ...interface{}) ([]models.Observation, error) {
	defer db.updatePoolStats()

	queryStart := time.Now()
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		metrics.RecordDBQuery("SELECT", "observations", time.Since(queryStart), err)
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.Row, &o.Day, &o.DayOfWeek, &o.Date,
			&o.PageLoads, &o.UniqueVisits, &o.FirstTimeVisits, &o.ReturningVisits); err != nil {
			metrics.RecordDBQuery("SELECT", "observations", time.Since(queryStart), err)
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		o.Date = o.Date.UTC()
		observations = append(observations, o)
	}

	err = rows.Err()
	metrics.RecordDBQuery("SELECT", "observations", time.Since(queryStart), err)
	return observations, err
}

// CountObservations returns the number of stored days and the first and last date.
// Both dates are zero when the table is empty.
func (db *DB) CountObservations() (count int, first, last time.Time, err error) {
	queryStart := time.Now()
	var minDate, maxDate sql.NullTime
	row := db.conn.QueryRow(`SELECT COUNT(*), MIN(date), MAX(date) FROM observations`)
	err = row.Scan(&count, &minDate, &maxDate)
	metrics.RecordDBQuery("SELECT", "observations", time.Since(queryStart), err)
	if err != nil {
		return 0, time.Time{}, time.Time{}, fmt.Errorf("failed to count observations: %w", err)
	}
	if minDate.Valid {
		first = minDate.Time.UTC()
	}
	if maxDate.Valid {
		last = maxDate.Time.UTC()
	}
	return count, first, last, nil
}

// Ping checks that the database is reachable
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
