package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fred-refresh/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresTable is the table PostgresStore reads and appends to.
const PostgresTable = "fred_records"

// PostgresStore keeps records in a Postgres table written with COPY.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to connString, pings it, and creates the records
// table if needed.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	// One writer per run; a small pool is enough.
	pgxCfg.MaxConns = 2
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS fred_records (
	id               BIGSERIAL PRIMARY KEY,
	series_id        TEXT NOT NULL,
	name             TEXT NOT NULL,
	description      TEXT NOT NULL,
	category         TEXT NOT NULL,
	units            TEXT NOT NULL,
	update_frequency TEXT NOT NULL,
	date             DATE NOT NULL,
	value            DOUBLE PRECISION,
	yay_message      TEXT NOT NULL,
	meh_message      TEXT NOT NULL,
	nay_message      TEXT NOT NULL,
	last_updated     TIMESTAMPTZ NOT NULL,
	fred_title       TEXT NOT NULL DEFAULT '',
	fred_frequency   TEXT NOT NULL DEFAULT '',
	fred_units       TEXT NOT NULL DEFAULT '',
	fred_notes       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_fred_records_series_date ON fred_records (series_id, date);
`

// Migrate creates the records table and index if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const postgresSelect = `SELECT series_id, name, description, category, units, update_frequency,
	date, value, yay_message, meh_message, nay_message, last_updated,
	fred_title, fred_frequency, fred_units, fred_notes
	FROM fred_records ORDER BY id`

// LoadAll returns every record in insertion order.
func (s *PostgresStore) LoadAll(ctx context.Context) ([]model.StoredRecord, error) {
	rows, err := s.pool.Query(ctx, postgresSelect)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load records")
	}
	defer rows.Close()

	var out []model.StoredRecord
	for rows.Next() {
		var (
			r              model.StoredRecord
			category, freq string
		)
		if err := rows.Scan(
			&r.SeriesID, &r.Name, &r.Description, &category, &r.Units, &freq,
			&r.Date, &r.Value, &r.YayMessage, &r.MehMessage, &r.NayMessage, &r.LastUpdated,
			&r.Provenance.Title, &r.Provenance.Frequency, &r.Provenance.Units, &r.Provenance.Notes,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		r.Category = model.Category(category)
		r.UpdateFrequency = model.Frequency(freq)
		r.Date = model.Truncate(r.Date)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate records")
	}
	return out, nil
}

// copyRows converts a batch into COPY rows in Columns order.
func copyRows(records []model.StoredRecord) [][]any {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		var value any
		if r.Value != nil {
			value = *r.Value
		}
		rows = append(rows, []any{
			r.SeriesID, r.Name, r.Description, string(r.Category), r.Units, string(r.UpdateFrequency),
			r.Date, value, r.YayMessage, r.MehMessage, r.NayMessage, r.LastUpdated,
			r.Provenance.Title, r.Provenance.Frequency, r.Provenance.Units, r.Provenance.Notes,
		})
	}
	return rows
}

// Append copies the batch into the table inside one transaction.
func (s *PostgresStore) Append(ctx context.Context, records []model.StoredRecord) error {
	seriesID, err := checkBatch(records)
	if err != nil {
		return &WriteError{Target: PostgresTable, SeriesID: seriesID, Err: err}
	}
	wrap := func(err error, msg string) error {
		return &WriteError{Target: PostgresTable, SeriesID: seriesID, Err: eris.Wrap(err, msg)}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := tx.CopyFrom(ctx, pgx.Identifier{PostgresTable}, Columns, pgx.CopyFromRows(copyRows(records)))
	if err != nil {
		return wrap(err, "postgres: COPY INTO "+PostgresTable)
	}
	if n != int64(len(records)) {
		return &WriteError{Target: PostgresTable, SeriesID: seriesID,
			Err: eris.Errorf("postgres: copied %d of %d rows", n, len(records))}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrap(err, "postgres: commit")
	}

	zap.L().Info("appended records",
		zap.String("component", "store.postgres"),
		zap.String("series", seriesID),
		zap.Int64("count", n),
	)
	return nil
}
