package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/limpurb/fiscal-cli/internal/db"
	"github.com/limpurb/fiscal-cli/internal/model"
)

// PostgresStore implements Store using pgxpool. One connection is
// checked out per statement and returned on every exit path; nothing
// is cached across requests.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; tests hand in a mock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool exposes the underlying pool for the bulk helpers.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ingest_rows (
	file_type   TEXT NOT NULL,
	record_key  TEXT NOT NULL,
	setor       TEXT NOT NULL DEFAULT '',
	ref_date    TIMESTAMPTZ,
	raw         JSONB NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (file_type, record_key)
);

CREATE INDEX IF NOT EXISTS idx_ingest_rows_setor ON ingest_rows(setor);
CREATE INDEX IF NOT EXISTS idx_ingest_rows_ref_date ON ingest_rows(ref_date);

CREATE TABLE IF NOT EXISTS schedule_entries (
	service       TEXT NOT NULL,
	setor         TEXT NOT NULL,
	expected_date DATE NOT NULL,
	PRIMARY KEY (service, setor, expected_date)
);

CREATE TABLE IF NOT EXISTS plan_execution (
	period_start DATE NOT NULL,
	period_end   DATE NOT NULL,
	percent      DOUBLE PRECISION NOT NULL,
	saved_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (period_start, period_end)
);

CREATE TABLE IF NOT EXISTS tickets (
	protocol    TEXT PRIMARY KEY,
	service     TEXT NOT NULL DEFAULT '',
	opened_at   TIMESTAMPTZ NOT NULL,
	resolved_at TIMESTAMPTZ,
	deadline    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_tickets_opened_at ON tickets(opened_at);

CREATE TABLE IF NOT EXISTS inspections (
	bulletin     TEXT PRIMARY KEY,
	setor        TEXT NOT NULL DEFAULT '',
	inspected_at TIMESTAMPTZ NOT NULL,
	conform      BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_inspections_inspected_at ON inspections(inspected_at);

CREATE TABLE IF NOT EXISTS complaints (
	protocol      TEXT PRIMARY KEY,
	service       TEXT NOT NULL DEFAULT '',
	registered_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_complaints_registered_at ON complaints(registered_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const upsertRowSQL = `
INSERT INTO ingest_rows (file_type, record_key, setor, ref_date, raw, imported_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (file_type, record_key)
DO UPDATE SET setor = EXCLUDED.setor, ref_date = EXCLUDED.ref_date, raw = EXCLUDED.raw, imported_at = now()
RETURNING (xmax = 0)`

func (s *PostgresStore) UpsertRow(ctx context.Context, row model.Row) (bool, error) {
	rawJSON, err := json.Marshal(row.Raw)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal raw row")
	}

	var inserted bool
	err = s.pool.QueryRow(ctx, upsertRowSQL,
		string(row.FileType), row.RecordKey, row.Setor, row.RefDate, rawJSON,
	).Scan(&inserted)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert row %s/%s", row.FileType, row.RecordKey)
	}
	return inserted, nil
}

func (s *PostgresStore) ListRows(ctx context.Context, ft model.FileType) ([]model.Row, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record_key, setor, ref_date, raw FROM ingest_rows WHERE file_type = $1`,
		string(ft),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s rows", ft)
	}
	defer rows.Close()

	var out []model.Row
	for rows.Next() {
		r := model.Row{FileType: ft}
		var rawJSON []byte
		if err := rows.Scan(&r.RecordKey, &r.Setor, &r.RefDate, &rawJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ingest row")
		}
		if err := json.Unmarshal(rawJSON, &r.Raw); err != nil {
			return nil, eris.Wrap(err, "postgres: decode raw row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate ingest rows")
}

func (s *PostgresStore) UpsertScheduleEntries(ctx context.Context, entries []model.ScheduleEntry) (int64, error) {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.Service, e.Setor, e.ExpectedDate})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "schedule_entries",
		Columns:      []string{"service", "setor", "expected_date"},
		ConflictKeys: []string{"service", "setor", "expected_date"},
		UpdateCols:   []string{"expected_date"},
	}, rows)
}

func (s *PostgresStore) ListSchedule(ctx context.Context) ([]model.ScheduleEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT service, setor, expected_date FROM schedule_entries ORDER BY expected_date`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list schedule")
	}
	defer rows.Close()

	var out []model.ScheduleEntry
	for rows.Next() {
		var e model.ScheduleEntry
		if err := rows.Scan(&e.Service, &e.Setor, &e.ExpectedDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan schedule entry")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate schedule")
}

func (s *PostgresStore) SavePlanExecution(ctx context.Context, start, end time.Time, percent float64) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO plan_execution (period_start, period_end, percent, saved_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (period_start, period_end) DO UPDATE SET percent = EXCLUDED.percent, saved_at = now()`,
		start, end, percent,
	)
	return eris.Wrap(err, "postgres: save plan execution")
}

func (s *PostgresStore) GetPlanExecution(ctx context.Context, start, end time.Time) (*float64, error) {
	var pct float64
	err := s.pool.QueryRow(ctx,
		`SELECT percent FROM plan_execution WHERE period_start = $1 AND period_end = $2`,
		start, end,
	).Scan(&pct)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get plan execution")
	}
	return &pct, nil
}

func (s *PostgresStore) UpsertTickets(ctx context.Context, tickets []model.Ticket) (int64, error) {
	rows := make([][]any, 0, len(tickets))
	for _, tk := range tickets {
		rows = append(rows, []any{tk.Protocol, tk.Service, tk.OpenedAt, tk.ResolvedAt, tk.Deadline})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "tickets",
		Columns:      []string{"protocol", "service", "opened_at", "resolved_at", "deadline"},
		ConflictKeys: []string{"protocol"},
	}, rows)
}

func (s *PostgresStore) UpsertInspections(ctx context.Context, inspections []model.Inspection) (int64, error) {
	rows := make([][]any, 0, len(inspections))
	for _, in := range inspections {
		rows = append(rows, []any{in.Bulletin, in.Setor, in.InspectedAt, in.Conform})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "inspections",
		Columns:      []string{"bulletin", "setor", "inspected_at", "conform"},
		ConflictKeys: []string{"bulletin"},
	}, rows)
}

func (s *PostgresStore) UpsertComplaints(ctx context.Context, complaints []model.Complaint) (int64, error) {
	rows := make([][]any, 0, len(complaints))
	for _, c := range complaints {
		rows = append(rows, []any{c.Protocol, c.Service, c.RegisteredAt})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "complaints",
		Columns:      []string{"protocol", "service", "registered_at"},
		ConflictKeys: []string{"protocol"},
	}, rows)
}

const countPeriodSQL = `
SELECT
	(SELECT count(*) FROM tickets WHERE opened_at >= $1 AND opened_at < $2),
	(SELECT count(*) FROM tickets WHERE opened_at >= $1 AND opened_at < $2
		AND resolved_at IS NOT NULL AND (deadline IS NULL OR resolved_at <= deadline)),
	(SELECT count(*) FROM inspections WHERE inspected_at >= $1 AND inspected_at < $2),
	(SELECT count(*) FROM inspections WHERE inspected_at >= $1 AND inspected_at < $2 AND conform),
	(SELECT count(*) FROM ingest_rows WHERE file_type = 'selimp' AND ref_date >= $1 AND ref_date < $2),
	(SELECT count(*) FROM complaints WHERE registered_at >= $1 AND registered_at < $2)`

// CountPeriod tallies the collaborator records for a scoring period.
// The range is inclusive of start and exclusive of the day after end.
func (s *PostgresStore) CountPeriod(ctx context.Context, start, end time.Time) (model.PeriodCounts, error) {
	var c model.PeriodCounts
	endExclusive := end.AddDate(0, 0, 1)
	err := s.pool.QueryRow(ctx, countPeriodSQL, start, endExclusive).Scan(
		&c.TicketsTotal, &c.TicketsOnTime,
		&c.InspectionsTotal, &c.InspectionsOK,
		&c.ServicesRendered, &c.ComplaintsTotal,
	)
	if err != nil {
		return model.PeriodCounts{}, eris.Wrap(err, "postgres: count period")
	}
	return c, nil
}
