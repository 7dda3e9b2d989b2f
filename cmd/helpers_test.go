package main

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fred-refresh/internal/config"
)

const testSchema = `{
  "schema_version": "1.0",
  "metrics_to_track": [
    {"id": "MORTGAGE30US", "name": "30-Year Mortgage Rate", "description": "Average 30-year fixed rate",
     "category": "housing", "units": "Percent", "update_frequency": "weekly",
     "yay_message": "down", "meh_message": "flat", "nay_message": "up"},
    {"id": "UNRATE", "name": "Unemployment Rate", "description": "Civilian unemployment rate",
     "category": "employment", "units": "Percent", "update_frequency": "monthly",
     "yay_message": "low", "meh_message": "steady", "nay_message": "high"}
  ]
}`

type fakeObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// fakeFRED serves observations per series id; ids missing from the map get a
// 400 error response.
func fakeFRED(t *testing.T, series map[string][]fakeObservation) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("series_id")
		obs, ok := series[id]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error_code": 400, "error_message": "Bad Request. The series does not exist."}`))
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/series/observations"):
			start := r.URL.Query().Get("observation_start")
			var out []fakeObservation
			for _, o := range obs {
				if o.Date >= start {
					out = append(out, o)
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"observations": out})
		case strings.HasSuffix(r.URL.Path, "/series"):
			_ = json.NewEncoder(w).Encode(map[string]any{"seriess": []map[string]any{{
				"id": id, "title": id + " title", "frequency": "Weekly", "units": "Percent", "notes": "n",
			}}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0o644))

	return &config.Config{
		Fred: config.FredConfig{
			APIKey:      "test-key",
			BaseURL:     baseURL,
			Timeout:     5 * time.Second,
			MaxAttempts: 1,
		},
		Refresh: config.RefreshConfig{WindowStart: "2024-01-01"},
		Store:   config.StoreConfig{Driver: "csv", Path: filepath.Join(dir, "data", "fred_data.csv")},
		Schema:  config.SchemaConfig{Path: schemaPath},
		Log:     config.LogConfig{Level: "info", Format: "json"},
	}
}

// legacySQLiteStore points c at a SQLite file whose records table lacks most
// columns, so the store opens but cannot be loaded.
func legacySQLiteStore(t *testing.T, c *config.Config) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fred.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.ExecContext(context.Background(),
		`CREATE TABLE fred_records (id INTEGER PRIMARY KEY, series_id TEXT, date TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	c.Store = config.StoreConfig{Driver: "sqlite", Path: path}
}
