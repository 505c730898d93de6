package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for parse auditing.
type ClickHouseDB struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseDB) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	err := d.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS parse_events (
			trip_id         LowCardinality(String),
			source          LowCardinality(String),
			leg_count       UInt8,
			missing_fields  String,
			raw_text        String,
			parsed_json     String,
			duration_ms     Float64,
			created_at      DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(created_at)
		ORDER BY (source, trip_id, created_at)
		SETTINGS index_granularity = 8192`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	// Add bloom filter index for full-text search (ignore error if already exists).
	_ = d.conn.Exec(ctx, `ALTER TABLE parse_events ADD INDEX IF NOT EXISTS idx_raw_text_bloom raw_text TYPE tokenbf_v1(32768, 3, 0) GRANULARITY 1`)

	return nil
}

// ParseEvent records one parse attempt for auditing.
type ParseEvent struct {
	TripID        string
	Source        string
	LegCount      uint8
	MissingFields []string
	RawText       string
	ParsedData    interface{}
	Duration      time.Duration
}

// InsertParseEvent stores a single parse event.
func (d *ClickHouseDB) InsertParseEvent(ctx context.Context, e ParseEvent) error {
	parsedJSON, err := json.Marshal(e.ParsedData)
	if err != nil {
		return fmt.Errorf("marshal parsed data: %w", err)
	}

	missingFields := strings.Join(e.MissingFields, ",")

	err = d.conn.Exec(ctx, `
		INSERT INTO parse_events (trip_id, source, leg_count, missing_fields, raw_text, parsed_json, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.TripID, e.Source, e.LegCount, missingFields, e.RawText, string(parsedJSON),
		float64(e.Duration)/float64(time.Millisecond))
	if err != nil {
		return fmt.Errorf("insert parse event: %w", err)
	}

	return nil
}

// ParseEventRow is a stored parse event as read back from ClickHouse.
type ParseEventRow struct {
	TripID        string
	Source        string
	LegCount      uint8
	MissingFields string
	RawText       string
	ParsedJSON    string
	DurationMs    float64
	CreatedAt     time.Time
}

// ParseEventQuery contains filtering options for querying parse events.
type ParseEventQuery struct {
	TripID     string
	Source     string
	HasMissing bool
	Limit      int
	Offset     int
}

// QueryParseEvents retrieves parse events matching the given parameters,
// newest first.
func (d *ClickHouseDB) QueryParseEvents(ctx context.Context, p ParseEventQuery) ([]ParseEventRow, error) {
	var conditions []string
	var args []interface{}

	if p.TripID != "" {
		conditions = append(conditions, "trip_id = ?")
		args = append(args, p.TripID)
	}
	if p.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, p.Source)
	}
	if p.HasMissing {
		conditions = append(conditions, "missing_fields != ''")
	}

	query := `SELECT trip_id, source, leg_count, missing_fields, raw_text, parsed_json, duration_ms, created_at FROM parse_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, p.Offset)

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query parse events: %w", err)
	}
	defer rows.Close()

	var events []ParseEventRow
	for rows.Next() {
		var e ParseEventRow
		err := rows.Scan(&e.TripID, &e.Source, &e.LegCount, &e.MissingFields,
			&e.RawText, &e.ParsedJSON, &e.DurationMs, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return events, nil
}

// ParseStats contains aggregate statistics about parse events.
type ParseStats struct {
	TotalEvents uint64
	BySource    map[string]uint64
	WithMissing uint64
}

// GetParseStats returns statistics about stored parse events.
func (d *ClickHouseDB) GetParseStats(ctx context.Context) (*ParseStats, error) {
	stats := &ParseStats{
		BySource: make(map[string]uint64),
	}

	row := d.conn.QueryRow(ctx, "SELECT count() FROM parse_events")
	if err := row.Scan(&stats.TotalEvents); err != nil {
		return nil, err
	}

	rows, err := d.conn.Query(ctx, "SELECT source, count() FROM parse_events GROUP BY source ORDER BY count() DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var count uint64
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scan source stats: %w", err)
		}
		stats.BySource[source] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source stats: %w", err)
	}

	row = d.conn.QueryRow(ctx, "SELECT count() FROM parse_events WHERE missing_fields != ''")
	if err := row.Scan(&stats.WithMissing); err != nil {
		return nil, err
	}

	return stats, nil
}
