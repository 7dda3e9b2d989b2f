package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fred-refresh/internal/config"
)

// Supported store drivers.
const (
	DriverCSV      = "csv"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the RecordStore selected by cfg.Driver. The CSV and SQLite
// drivers use cfg.Path; the Postgres driver uses cfg.DatabaseURL.
func Open(ctx context.Context, cfg config.StoreConfig) (RecordStore, error) {
	switch cfg.Driver {
	case "", DriverCSV:
		if cfg.Path == "" {
			return nil, eris.New("store: csv driver requires store.path")
		}
		return NewCSV(cfg.Path), nil
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, eris.New("store: sqlite driver requires store.path")
		}
		s, err := NewSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires store.database_url")
		}
		s, err := NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q (valid: csv, sqlite, postgres)", cfg.Driver)
	}
}
