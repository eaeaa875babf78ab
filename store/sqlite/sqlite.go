/*
Package sqlite provides the SQLite-backed implementation of engine.Store.

PURPOSE:
  Persists the five entity collections (configuration, employees with
  trajectories, rides, export batches, deadline exceptions) in SQLite.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

APPEND-ONLY ENFORCEMENT:
  The rides table is append-only until export:
  - INSERT via AppendRide only
  - the single UPDATE in this package is MarkProcessed, which flips the
    processed flag once and stamps the batch id and export timestamp
  - no DELETE statements exist for rides or export_batches

MONEY AND DATES:
  Currency and distance values are stored as TEXT and parsed with
  shopspring/decimal, so no precision is lost to floating point.
  Dates are stored as YYYY-MM-DD strings, timestamps as RFC3339.

WAL MODE:
  The database is opened with WAL for better concurrency: readers don't
  block, a single writer at a time, better crash recovery.

USAGE:
  st, err := sqlite.New("./data/commute.db")
  if err != nil { log.Fatal(err) }
  defer st.Close()
  svc := engine.NewService(st)

SEE ALSO:
  - engine/store.go: interface definitions
  - engine/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/commute-engine/engine"
)

// Store implements engine.TxStore using SQLite.
type Store struct {
	db *sql.DB
	q  querier
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database. The schema is migrated and the default
// configuration seeded on first open.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, q: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Configuration (singleton row)
	CREATE TABLE IF NOT EXISTS config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		be_rate TEXT NOT NULL,
		be_limit_type TEXT NOT NULL,
		be_yearly_limit TEXT NOT NULL,
		be_monthly_limit TEXT NOT NULL,
		be_enforce_mode TEXT NOT NULL,
		nl_own_rate TEXT NOT NULL,
		nl_company_rate TEXT NOT NULL,
		deadline_day INTEGER NOT NULL,
		max_rides_per_day INTEGER NOT NULL
	);

	-- Master directory
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		country TEXT NOT NULL,
		bike_type TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trajectories (
		employee_id TEXT NOT NULL REFERENCES employees(id),
		name TEXT NOT NULL,
		one_way_km TEXT NOT NULL,
		PRIMARY KEY (employee_id, name)
	);

	-- Ride ledger (append-only until export)
	CREATE TABLE IF NOT EXISTS rides (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		employee_name TEXT NOT NULL,
		country TEXT NOT NULL,
		bike_type TEXT NOT NULL,
		ride_date TEXT NOT NULL,
		trajectory TEXT NOT NULL,
		ride_type TEXT NOT NULL,
		distance_km TEXT NOT NULL,
		amount TEXT NOT NULL,
		rate_applied TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		export_batch_id INTEGER,
		exported_at TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot paths: daily cap counting and period totals
	CREATE INDEX IF NOT EXISTS idx_rides_employee_date
		ON rides(employee_id, ride_date);
	CREATE INDEX IF NOT EXISTS idx_rides_processed
		ON rides(processed);
	CREATE INDEX IF NOT EXISTS idx_rides_batch
		ON rides(export_batch_id) WHERE export_batch_id IS NOT NULL;

	-- Export history (append-only)
	CREATE TABLE IF NOT EXISTS export_batches (
		batch_id INTEGER PRIMARY KEY,
		exported_at TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		ride_count INTEGER NOT NULL,
		total_amount TEXT NOT NULL
	);

	-- Deadline exceptions (one active entry per employee)
	CREATE TABLE IF NOT EXISTS deadline_exceptions (
		employee_id TEXT PRIMARY KEY,
		expires_on TEXT NOT NULL,
		granted_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Seed the default configuration on first open.
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM config`).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return s.SaveConfig(context.Background(), engine.DefaultConfig())
	}
	return nil
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	child := &Store{db: s.db, q: tx}
	if err := fn(child); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func (s *Store) LoadConfig(ctx context.Context) (engine.Config, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT be_rate, be_limit_type, be_yearly_limit, be_monthly_limit,
		       be_enforce_mode, nl_own_rate, nl_company_rate,
		       deadline_day, max_rides_per_day
		FROM config WHERE id = 1`)

	var beRate, beYear, beMonth, nlOwn, nlCompany, limitType, mode string
	var cfg engine.Config
	err := row.Scan(&beRate, &limitType, &beYear, &beMonth, &mode,
		&nlOwn, &nlCompany, &cfg.DeadlineDay, &cfg.MaxRidesPerDay)
	if err == sql.ErrNoRows {
		return engine.DefaultConfig(), nil
	}
	if err != nil {
		return engine.Config{}, err
	}

	cfg.BELimitType = engine.LimitType(limitType)
	cfg.BEEnforceMode = engine.EnforceMode(mode)
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&cfg.BERate, beRate},
		{&cfg.BEYearlyLimit, beYear},
		{&cfg.BEMonthlyLimit, beMonth},
		{&cfg.NLOwnRate, nlOwn},
		{&cfg.NLCompanyRate, nlCompany},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return engine.Config{}, fmt.Errorf("corrupt config value %q: %w", f.src, err)
		}
		*f.dst = d
	}
	return cfg, nil
}

func (s *Store) SaveConfig(ctx context.Context, cfg engine.Config) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO config (id, be_rate, be_limit_type, be_yearly_limit, be_monthly_limit,
			be_enforce_mode, nl_own_rate, nl_company_rate, deadline_day, max_rides_per_day)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			be_rate = excluded.be_rate,
			be_limit_type = excluded.be_limit_type,
			be_yearly_limit = excluded.be_yearly_limit,
			be_monthly_limit = excluded.be_monthly_limit,
			be_enforce_mode = excluded.be_enforce_mode,
			nl_own_rate = excluded.nl_own_rate,
			nl_company_rate = excluded.nl_company_rate,
			deadline_day = excluded.deadline_day,
			max_rides_per_day = excluded.max_rides_per_day`,
		cfg.BERate.String(), string(cfg.BELimitType), cfg.BEYearlyLimit.String(),
		cfg.BEMonthlyLimit.String(), string(cfg.BEEnforceMode),
		cfg.NLOwnRate.String(), cfg.NLCompanyRate.String(),
		cfg.DeadlineDay, cfg.MaxRidesPerDay)
	return err
}

// =============================================================================
// MASTER DIRECTORY
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, e engine.Employee) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO employees (id, name, country, bike_type, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			country = excluded.country,
			bike_type = excluded.bike_type`,
		string(e.ID), e.Name, string(e.Country), string(e.BikeType),
		createdAt.Format(time.RFC3339))
	if err != nil {
		return err
	}

	for name, km := range e.Trajectories {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO trajectories (employee_id, name, one_way_km)
			VALUES (?, ?, ?)
			ON CONFLICT(employee_id, name) DO NOTHING`,
			string(e.ID), name, km.String())
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, name, country, bike_type, created_at
		FROM employees WHERE id = ?`, string(id))

	var e engine.Employee
	var createdAt string
	err := row.Scan((*string)(&e.ID), &e.Name, (*string)(&e.Country), (*string)(&e.BikeType), &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	e.Trajectories = map[string]decimal.Decimal{}
	rows, err := s.q.QueryContext(ctx, `
		SELECT name, one_way_km FROM trajectories WHERE employee_id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name, kmStr string
		if err := rows.Scan(&name, &kmStr); err != nil {
			return nil, err
		}
		km, err := decimal.NewFromString(kmStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt trajectory distance %q: %w", kmStr, err)
		}
		e.Trajectories[name] = km
	}
	return &e, rows.Err()
}

func (s *Store) ListEmployees(ctx context.Context) ([]engine.Employee, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id FROM employees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []engine.EmployeeID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, engine.EmployeeID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]engine.Employee, 0, len(ids))
	for _, id := range ids {
		e, err := s.GetEmployee(ctx, id)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

// =============================================================================
// RIDE LEDGER
// =============================================================================

const rideColumns = `id, employee_id, employee_name, country, bike_type,
	ride_date, trajectory, ride_type, distance_km, amount, rate_applied,
	processed, export_batch_id, exported_at`

func (s *Store) AppendRide(ctx context.Context, r engine.Ride) error {
	var exportedAt any
	if !r.ExportedAt.IsZero() {
		exportedAt = r.ExportedAt.Format(time.RFC3339)
	}
	var batchID any
	if r.ExportBatchID != 0 {
		batchID = r.ExportBatchID
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO rides (id, employee_id, employee_name, country, bike_type,
			ride_date, trajectory, ride_type, distance_km, amount, rate_applied,
			processed, export_batch_id, exported_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID), string(r.EmployeeID), r.EmployeeName, string(r.Country),
		string(r.BikeType), r.Date.String(), r.Trajectory, string(r.RideType),
		r.DistanceKM.String(), r.Amount.String(), r.RateApplied.String(),
		boolToInt(r.Processed), batchID, exportedAt,
		r.CreatedAt.Format(time.RFC3339))
	return err
}

func (s *Store) RidesByEmployee(ctx context.Context, id engine.EmployeeID) ([]engine.Ride, error) {
	return s.queryRides(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE employee_id = ? ORDER BY ride_date, created_at`, string(id))
}

func (s *Store) RidesInRange(ctx context.Context, id engine.EmployeeID, p engine.Period) ([]engine.Ride, error) {
	return s.queryRides(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE employee_id = ? AND ride_date >= ? AND ride_date <= ?
		ORDER BY ride_date, created_at`,
		string(id), p.Start.String(), p.End.String())
}

func (s *Store) RidesOnDate(ctx context.Context, id engine.EmployeeID, d engine.Date) ([]engine.Ride, error) {
	return s.queryRides(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE employee_id = ? AND ride_date = ?`, string(id), d.String())
}

func (s *Store) UnprocessedRides(ctx context.Context) ([]engine.Ride, error) {
	return s.queryRides(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE processed = 0 ORDER BY ride_date, created_at`)
}

func (s *Store) RidesByBatch(ctx context.Context, batchID int) ([]engine.Ride, error) {
	return s.queryRides(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE export_batch_id = ? ORDER BY ride_date, created_at`, batchID)
}

// MarkProcessed is the only UPDATE in this package: it flips the processed
// flag exactly once and stamps the batch id and export timestamp. Already
// processed rides are never touched again.
func (s *Store) MarkProcessed(ctx context.Context, ids []engine.RideID, batchID int, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, 0, len(ids)+2)
	args = append(args, batchID, at.Format(time.RFC3339))
	for _, id := range ids {
		args = append(args, string(id))
	}
	_, err := s.q.ExecContext(ctx, `
		UPDATE rides SET processed = 1, export_batch_id = ?, exported_at = ?
		WHERE processed = 0 AND id IN (`+placeholders+`)`, args...)
	return err
}

func (s *Store) queryRides(ctx context.Context, query string, args ...any) ([]engine.Ride, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Ride
	for rows.Next() {
		var r engine.Ride
		var rideDate, distKM, amount, rate string
		var processed int
		var batchID sql.NullInt64
		var exportedAt sql.NullString
		err := rows.Scan((*string)(&r.ID), (*string)(&r.EmployeeID), &r.EmployeeName,
			(*string)(&r.Country), (*string)(&r.BikeType), &rideDate, &r.Trajectory,
			(*string)(&r.RideType), &distKM, &amount, &rate,
			&processed, &batchID, &exportedAt)
		if err != nil {
			return nil, err
		}

		if r.Date, err = engine.ParseDate(rideDate); err != nil {
			return nil, err
		}
		if r.DistanceKM, err = decimal.NewFromString(distKM); err != nil {
			return nil, fmt.Errorf("corrupt distance %q: %w", distKM, err)
		}
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
		}
		if r.RateApplied, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("corrupt rate %q: %w", rate, err)
		}
		r.Processed = processed == 1
		if batchID.Valid {
			r.ExportBatchID = int(batchID.Int64)
		}
		if exportedAt.Valid {
			r.ExportedAt, _ = time.Parse(time.RFC3339, exportedAt.String)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// EXPORT HISTORY
// =============================================================================

func (s *Store) AppendExportBatch(ctx context.Context, b engine.ExportBatch) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO export_batches (batch_id, exported_at, period_start, period_end, ride_count, total_amount)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.BatchID, b.ExportedAt.Format(time.RFC3339),
		b.PeriodStart.String(), b.PeriodEnd.String(),
		b.RideCount, b.TotalAmount.String())
	return err
}

func (s *Store) ListExportBatches(ctx context.Context) ([]engine.ExportBatch, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT batch_id, exported_at, period_start, period_end, ride_count, total_amount
		FROM export_batches ORDER BY batch_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.ExportBatch
	for rows.Next() {
		var b engine.ExportBatch
		var exportedAt, start, end, total string
		if err := rows.Scan(&b.BatchID, &exportedAt, &start, &end, &b.RideCount, &total); err != nil {
			return nil, err
		}
		b.ExportedAt, _ = time.Parse(time.RFC3339, exportedAt)
		if b.PeriodStart, err = engine.ParseDate(start); err != nil {
			return nil, err
		}
		if b.PeriodEnd, err = engine.ParseDate(end); err != nil {
			return nil, err
		}
		if b.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("corrupt batch total %q: %w", total, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// =============================================================================
// DEADLINE EXCEPTIONS
// =============================================================================

func (s *Store) SaveDeadlineException(ctx context.Context, ex engine.DeadlineException) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO deadline_exceptions (employee_id, expires_on, granted_at)
		VALUES (?, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET
			expires_on = excluded.expires_on,
			granted_at = excluded.granted_at`,
		string(ex.EmployeeID), ex.ExpiresOn.String(), ex.GrantedAt.Format(time.RFC3339))
	return err
}

// ActiveDeadlineException prunes an expired entry on read.
func (s *Store) ActiveDeadlineException(ctx context.Context, id engine.EmployeeID, today engine.Date) (*engine.DeadlineException, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT employee_id, expires_on, granted_at
		FROM deadline_exceptions WHERE employee_id = ?`, string(id))

	var ex engine.DeadlineException
	var expiresOn, grantedAt string
	err := row.Scan((*string)(&ex.EmployeeID), &expiresOn, &grantedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if ex.ExpiresOn, err = engine.ParseDate(expiresOn); err != nil {
		return nil, err
	}
	ex.GrantedAt, _ = time.Parse(time.RFC3339, grantedAt)

	if !ex.Active(today) {
		_, err := s.q.ExecContext(ctx, `
			DELETE FROM deadline_exceptions WHERE employee_id = ?`, string(id))
		return nil, err
	}
	return &ex, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
