package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"load_parser/internal/load"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool for load storage.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS dispatchers (
		id              BIGSERIAL PRIMARY KEY,
		name            TEXT NOT NULL,
		telegram_id     BIGINT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS loads (
		id                      BIGSERIAL PRIMARY KEY,
		trip_id                 TEXT NOT NULL,
		pick_up_facility_id     TEXT NOT NULL DEFAULT '',
		drop_off_facility_id    TEXT NOT NULL DEFAULT '',
		pick_up_address         TEXT NOT NULL DEFAULT '',
		drop_off_address        TEXT NOT NULL DEFAULT '',
		pick_up_time            TIMESTAMPTZ NOT NULL,
		drop_off_time           TIMESTAMPTZ NOT NULL,
		pick_up_time_str        TEXT NOT NULL DEFAULT '',
		drop_off_time_str       TEXT NOT NULL DEFAULT '',
		rate                    NUMERIC(12,2) NOT NULL DEFAULT 0,
		rate_per_mile           NUMERIC(12,2) NOT NULL DEFAULT 0,
		distance                DOUBLE PRECISION NOT NULL DEFAULT 0,
		assigned_driver         TEXT NOT NULL DEFAULT '',
		is_team_load            BOOLEAN NOT NULL DEFAULT FALSE,
		dispatcher_id           BIGINT REFERENCES dispatchers(id),
		created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_loads_trip_id ON loads(trip_id);
	CREATE INDEX IF NOT EXISTS idx_loads_dispatcher ON loads(dispatcher_id);
	CREATE INDEX IF NOT EXISTS idx_loads_created ON loads(created_at);

	CREATE TABLE IF NOT EXISTS legs (
		id                      BIGSERIAL PRIMARY KEY,
		load_id                 BIGINT NOT NULL REFERENCES loads(id) ON DELETE CASCADE,
		seq                     INTEGER NOT NULL,
		leg_id                  TEXT NOT NULL,
		pick_up_facility_id     TEXT NOT NULL DEFAULT '',
		drop_off_facility_id    TEXT NOT NULL DEFAULT '',
		pick_up_address         TEXT NOT NULL DEFAULT '',
		drop_off_address        TEXT NOT NULL DEFAULT '',
		pick_up_time            TIMESTAMPTZ NOT NULL,
		drop_off_time           TIMESTAMPTZ NOT NULL,
		pick_up_time_str        TEXT NOT NULL DEFAULT '',
		drop_off_time_str       TEXT NOT NULL DEFAULT '',
		fuel_sur_charge         NUMERIC(12,2) NOT NULL DEFAULT 0,
		distance                DOUBLE PRECISION NOT NULL DEFAULT 0,
		assigned_driver         TEXT NOT NULL DEFAULT '',
		UNIQUE(load_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_legs_load ON legs(load_id);
	CREATE INDEX IF NOT EXISTS idx_legs_leg_id ON legs(leg_id);
	`

	_, err := d.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// StoredLoad is a persisted trip with its database identity and legs.
type StoredLoad struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	load.Trip
	Legs []StoredLeg `json:"legs"`
}

// StoredLeg is a persisted leg with its database identity.
type StoredLeg struct {
	ID     int64 `json:"id"`
	LoadID int64 `json:"load_id"`
	load.Leg
}

// InsertLoad stores a parsed load: the trip row plus its legs in input
// order, in one transaction. Returns the new load id.
func (d *PostgresDB) InsertLoad(ctx context.Context, p *load.ParsedLoad) (int64, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t := p.Trip
	var loadID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO loads (trip_id, pick_up_facility_id, drop_off_facility_id,
			pick_up_address, drop_off_address, pick_up_time, drop_off_time,
			pick_up_time_str, drop_off_time_str, rate, rate_per_mile, distance,
			assigned_driver, is_team_load, dispatcher_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`, t.TripID, t.PickUpFacilityID, t.DropOffFacilityID,
		t.PickUpAddress, t.DropOffAddress, t.PickUpTime, t.DropOffTime,
		t.PickUpTimeStr, t.DropOffTimeStr, t.Rate.String(), t.RatePerMile.String(), t.Distance,
		t.AssignedDriver, t.IsTeamLoad, t.DispatcherID).Scan(&loadID)
	if err != nil {
		return 0, fmt.Errorf("insert load: %w", err)
	}

	for i, leg := range p.Legs {
		_, err = tx.Exec(ctx, `
			INSERT INTO legs (load_id, seq, leg_id, pick_up_facility_id,
				drop_off_facility_id, pick_up_address, drop_off_address,
				pick_up_time, drop_off_time, pick_up_time_str, drop_off_time_str,
				fuel_sur_charge, distance, assigned_driver)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, loadID, i, leg.LegID, leg.PickUpFacilityID,
			leg.DropOffFacilityID, leg.PickUpAddress, leg.DropOffAddress,
			leg.PickUpTime, leg.DropOffTime, leg.PickUpTimeStr, leg.DropOffTimeStr,
			leg.FuelSurCharge.String(), leg.Distance, leg.AssignedDriver)
		if err != nil {
			return 0, fmt.Errorf("insert leg %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return loadID, nil
}

const loadColumns = `id, trip_id, pick_up_facility_id, drop_off_facility_id,
	pick_up_address, drop_off_address, pick_up_time, drop_off_time,
	pick_up_time_str, drop_off_time_str, rate::text, rate_per_mile::text,
	distance, assigned_driver, is_team_load, dispatcher_id, created_at`

func scanLoad(row pgx.Row) (*StoredLoad, error) {
	var l StoredLoad
	var rate, ratePerMile string
	err := row.Scan(&l.ID, &l.TripID, &l.PickUpFacilityID, &l.DropOffFacilityID,
		&l.PickUpAddress, &l.DropOffAddress, &l.PickUpTime, &l.DropOffTime,
		&l.PickUpTimeStr, &l.DropOffTimeStr, &rate, &ratePerMile,
		&l.Distance, &l.AssignedDriver, &l.IsTeamLoad, &l.DispatcherID, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if l.Rate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("decode rate: %w", err)
	}
	if l.RatePerMile, err = decimal.NewFromString(ratePerMile); err != nil {
		return nil, fmt.Errorf("decode rate_per_mile: %w", err)
	}
	return &l, nil
}

// GetLoad retrieves a load with its legs. Returns (nil, nil) when the id
// does not exist.
func (d *PostgresDB) GetLoad(ctx context.Context, id int64) (*StoredLoad, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+loadColumns+` FROM loads WHERE id = $1`, id)
	l, err := scanLoad(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if l.Legs, err = d.legsForLoad(ctx, l.ID); err != nil {
		return nil, err
	}
	return l, nil
}

// ListLoads retrieves loads newest-first with their legs.
func (d *PostgresDB) ListLoads(ctx context.Context, limit, offset int) ([]StoredLoad, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.pool.Query(ctx, `SELECT `+loadColumns+`
		FROM loads ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query loads: %w", err)
	}
	defer rows.Close()

	var loads []StoredLoad
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, fmt.Errorf("scan load: %w", err)
		}
		loads = append(loads, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range loads {
		if loads[i].Legs, err = d.legsForLoad(ctx, loads[i].ID); err != nil {
			return nil, err
		}
	}
	return loads, nil
}

// legsForLoad retrieves a load's legs in stored input order.
func (d *PostgresDB) legsForLoad(ctx context.Context, loadID int64) ([]StoredLeg, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, load_id, leg_id, pick_up_facility_id, drop_off_facility_id,
			pick_up_address, drop_off_address, pick_up_time, drop_off_time,
			pick_up_time_str, drop_off_time_str, fuel_sur_charge::text,
			distance, assigned_driver
		FROM legs WHERE load_id = $1 ORDER BY seq
	`, loadID)
	if err != nil {
		return nil, fmt.Errorf("query legs: %w", err)
	}
	defer rows.Close()

	var legs []StoredLeg
	for rows.Next() {
		var leg StoredLeg
		var fuel string
		err := rows.Scan(&leg.ID, &leg.LoadID, &leg.LegID, &leg.PickUpFacilityID,
			&leg.DropOffFacilityID, &leg.PickUpAddress, &leg.DropOffAddress,
			&leg.PickUpTime, &leg.DropOffTime, &leg.PickUpTimeStr, &leg.DropOffTimeStr,
			&fuel, &leg.Distance, &leg.AssignedDriver)
		if err != nil {
			return nil, fmt.Errorf("scan leg: %w", err)
		}
		if leg.FuelSurCharge, err = decimal.NewFromString(fuel); err != nil {
			return nil, fmt.Errorf("decode fuel_sur_charge: %w", err)
		}
		legs = append(legs, leg)
	}
	return legs, rows.Err()
}

// SetDispatcher reassigns a load to a dispatcher.
func (d *PostgresDB) SetDispatcher(ctx context.Context, loadID, dispatcherID int64) error {
	tag, err := d.pool.Exec(ctx, `UPDATE loads SET dispatcher_id = $1 WHERE id = $2`, dispatcherID, loadID)
	if err != nil {
		return fmt.Errorf("set dispatcher: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("load %d not found", loadID)
	}
	return nil
}

// Dispatcher is a dispatcher record.
type Dispatcher struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	TelegramID *int64 `json:"telegram_id,omitempty"`
}

// CreateDispatcher inserts a dispatcher and returns its id.
func (d *PostgresDB) CreateDispatcher(ctx context.Context, disp Dispatcher) (int64, error) {
	var id int64
	err := d.pool.QueryRow(ctx, `
		INSERT INTO dispatchers (name, telegram_id) VALUES ($1, $2) RETURNING id
	`, disp.Name, disp.TelegramID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert dispatcher: %w", err)
	}
	return id, nil
}

// GetDispatcher retrieves a dispatcher by id. Returns (nil, nil) when
// the id does not exist.
func (d *PostgresDB) GetDispatcher(ctx context.Context, id int64) (*Dispatcher, error) {
	var disp Dispatcher
	err := d.pool.QueryRow(ctx, `
		SELECT id, name, telegram_id FROM dispatchers WHERE id = $1
	`, id).Scan(&disp.ID, &disp.Name, &disp.TelegramID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &disp, nil
}

// ListDispatchers retrieves all dispatchers ordered by id.
func (d *PostgresDB) ListDispatchers(ctx context.Context) ([]Dispatcher, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, name, telegram_id FROM dispatchers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query dispatchers: %w", err)
	}
	defer rows.Close()

	var dispatchers []Dispatcher
	for rows.Next() {
		var disp Dispatcher
		if err := rows.Scan(&disp.ID, &disp.Name, &disp.TelegramID); err != nil {
			return nil, fmt.Errorf("scan dispatcher: %w", err)
		}
		dispatchers = append(dispatchers, disp)
	}
	return dispatchers, rows.Err()
}
