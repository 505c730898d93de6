package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// HistoryEntry is one recorded parse in the local history database.
type HistoryEntry struct {
	ID            int64
	CreatedAt     time.Time
	TripID        string
	LegCount      int
	MissingFields string
	RawText       string
	ParsedJSON    string
}

// HistoryDB wraps a SQLite database holding local parse history,
// used by the CLI so past parses can be inspected without a server.
type HistoryDB struct {
	db *sql.DB
}

// OpenHistory opens or creates a SQLite history database at the given path.
func OpenHistory(path string) (*HistoryDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS parses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT DEFAULT (datetime('now')),
		trip_id TEXT NOT NULL,
		leg_count INTEGER NOT NULL,
		missing_fields TEXT,
		raw_text TEXT NOT NULL,
		parsed_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_parses_trip_id ON parses(trip_id);
	CREATE INDEX IF NOT EXISTS idx_parses_created ON parses(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &HistoryDB{db: db}, nil
}

// Close closes the database connection.
func (d *HistoryDB) Close() error {
	return d.db.Close()
}

// Insert records one parse and returns its row id.
func (d *HistoryDB) Insert(tripID string, legCount int, missingFields []string, rawText string, parsed interface{}) (int64, error) {
	parsedJSON, err := json.Marshal(parsed)
	if err != nil {
		return 0, fmt.Errorf("marshal parsed data: %w", err)
	}

	result, err := d.db.Exec(`
		INSERT INTO parses (trip_id, leg_count, missing_fields, raw_text, parsed_json)
		VALUES (?, ?, ?, ?, ?)
	`, tripID, legCount, strings.Join(missingFields, ","), rawText, string(parsedJSON))
	if err != nil {
		return 0, fmt.Errorf("insert parse: %w", err)
	}

	return result.LastInsertId()
}

// Recent returns the most recent parses, newest first.
func (d *HistoryDB) Recent(limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.Query(`
		SELECT id, created_at, trip_id, leg_count, missing_fields, raw_text, parsed_json
		FROM parses ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query parses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanHistory(rows)
}

// ByTripID returns all parses recorded for a trip id, newest first.
func (d *HistoryDB) ByTripID(tripID string) ([]HistoryEntry, error) {
	rows, err := d.db.Query(`
		SELECT id, created_at, trip_id, leg_count, missing_fields, raw_text, parsed_json
		FROM parses WHERE trip_id = ? ORDER BY id DESC
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("query parses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanHistory(rows)
}

func scanHistory(rows *sql.Rows) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var ts, missing sql.NullString
		err := rows.Scan(&e.ID, &ts, &e.TripID, &e.LegCount, &missing, &e.RawText, &e.ParsedJSON)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if ts.Valid {
			e.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", ts.String)
		}
		if missing.Valid {
			e.MissingFields = missing.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// HistoryStats contains aggregate statistics about recorded parses.
type HistoryStats struct {
	TotalParses      int
	WithMissing      int
	TopMissingFields map[string]int
}

// GetStats returns statistics about the recorded parses.
func (d *HistoryDB) GetStats() (*HistoryStats, error) {
	stats := &HistoryStats{
		TopMissingFields: make(map[string]int),
	}

	row := d.db.QueryRow("SELECT COUNT(*) FROM parses")
	if err := row.Scan(&stats.TotalParses); err != nil {
		return nil, err
	}

	row = d.db.QueryRow("SELECT COUNT(*) FROM parses WHERE missing_fields != '' AND missing_fields IS NOT NULL")
	if err := row.Scan(&stats.WithMissing); err != nil {
		return nil, err
	}

	// Top missing fields - requires parsing the comma-separated values.
	rows, err := d.db.Query("SELECT missing_fields FROM parses WHERE missing_fields != '' AND missing_fields IS NOT NULL")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var fields string
		if err := rows.Scan(&fields); err != nil {
			return nil, err
		}
		for _, f := range strings.Split(fields, ",") {
			f = strings.TrimSpace(f)
			if f != "" {
				stats.TopMissingFields[f]++
			}
		}
	}

	return stats, rows.Err()
}
