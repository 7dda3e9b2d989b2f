package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fred-refresh/internal/model"
)

// SQLiteStore keeps records in a single fred_records table of a SQLite
// database. The table has no uniqueness constraint, so a forced refresh may
// store the same (series, date) twice.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLite opens a SQLite database at the given path, configures WAL mode,
// and creates the records table if needed.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	s := &SQLiteStore{db: db, path: dsn}
	if err := s.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS fred_records (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	series_id        TEXT NOT NULL,
	name             TEXT NOT NULL,
	description      TEXT NOT NULL,
	category         TEXT NOT NULL,
	units            TEXT NOT NULL,
	update_frequency TEXT NOT NULL,
	date             TEXT NOT NULL,
	value            REAL,
	yay_message      TEXT NOT NULL,
	meh_message      TEXT NOT NULL,
	nay_message      TEXT NOT NULL,
	last_updated     TEXT NOT NULL,
	fred_title       TEXT NOT NULL DEFAULT '',
	fred_frequency   TEXT NOT NULL DEFAULT '',
	fred_units       TEXT NOT NULL DEFAULT '',
	fred_notes       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_fred_records_series_date ON fred_records(series_id, date);
`

// Migrate creates the records table and index if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteSelect = `SELECT series_id, name, description, category, units, update_frequency,
	date, value, yay_message, meh_message, nay_message, last_updated,
	fred_title, fred_frequency, fred_units, fred_notes
	FROM fred_records ORDER BY id`

// LoadAll returns every record in insertion order.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]model.StoredRecord, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelect)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load records")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.StoredRecord
	for rows.Next() {
		var (
			r                 model.StoredRecord
			category, freq    string
			date, lastUpdated string
			value             sql.NullFloat64
		)
		if err := rows.Scan(
			&r.SeriesID, &r.Name, &r.Description, &category, &r.Units, &freq,
			&date, &value, &r.YayMessage, &r.MehMessage, &r.NayMessage, &lastUpdated,
			&r.Provenance.Title, &r.Provenance.Frequency, &r.Provenance.Units, &r.Provenance.Notes,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}

		d, err := model.ParseDate(date)
		if err != nil {
			zap.L().Warn("skipping unreadable row", zap.String("component", "store.sqlite"), zap.Error(err))
			continue
		}
		r.Date = d
		r.Category = model.Category(category)
		r.UpdateFrequency = model.Frequency(freq)
		r.LastUpdated = parseTimestamp(lastUpdated)
		if value.Valid {
			v := value.Float64
			r.Value = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate records")
	}
	return out, nil
}

const sqliteInsert = `INSERT INTO fred_records (series_id, name, description, category, units, update_frequency,
	date, value, yay_message, meh_message, nay_message, last_updated,
	fred_title, fred_frequency, fred_units, fred_notes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Append inserts the batch inside one transaction.
func (s *SQLiteStore) Append(ctx context.Context, records []model.StoredRecord) error {
	seriesID, err := checkBatch(records)
	if err != nil {
		return &WriteError{Target: s.path, SeriesID: seriesID, Err: err}
	}
	wrap := func(err error, msg string) error {
		return &WriteError{Target: s.path, SeriesID: seriesID, Err: eris.Wrap(err, msg)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		return wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range records {
		var value any
		if r.Value != nil {
			value = *r.Value
		}
		if _, err := stmt.ExecContext(ctx,
			r.SeriesID, r.Name, r.Description, string(r.Category), r.Units, string(r.UpdateFrequency),
			model.FormatDate(r.Date), value, r.YayMessage, r.MehMessage, r.NayMessage,
			r.LastUpdated.UTC().Format(time.RFC3339Nano),
			r.Provenance.Title, r.Provenance.Frequency, r.Provenance.Units, r.Provenance.Notes,
		); err != nil {
			return wrap(err, "sqlite: insert record")
		}
	}

	if err := tx.Commit(); err != nil {
		return wrap(err, "sqlite: commit")
	}

	zap.L().Info("appended records",
		zap.String("component", "store.sqlite"),
		zap.String("series", seriesID),
		zap.Int("count", len(records)),
	)
	return nil
}
