// Package store persists refreshed FRED observations in an append-only
// record set. Rows are only ever added; no update or delete exists.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fred-refresh/internal/model"
)

// Columns is the fixed column order of the persisted record set.
var Columns = []string{
	"series_id",
	"name",
	"description",
	"category",
	"units",
	"update_frequency",
	"date",
	"value",
	"yay_message",
	"meh_message",
	"nay_message",
	"last_updated",
	"fred_title",
	"fred_frequency",
	"fred_units",
	"fred_notes",
}

// RecordStore is an append-only record set.
type RecordStore interface {
	// LoadAll returns every stored record in write order. A store that does
	// not exist yet is empty, not an error.
	LoadAll(ctx context.Context) ([]model.StoredRecord, error)

	// Append writes one series' batch. The batch is written whole or not at
	// all. Failures are returned as *WriteError.
	Append(ctx context.Context, records []model.StoredRecord) error

	// Close releases the underlying resources.
	Close() error
}

// WriteError reports a failed batch append.
type WriteError struct {
	Target   string
	SeriesID string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("store: append %s to %s: %v", e.SeriesID, e.Target, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ErrEmptyBatch is returned by Append for a batch without records.
var ErrEmptyBatch = eris.New("store: empty batch")

// checkBatch enforces the Append precondition: a non-empty batch whose
// records all belong to one series. It returns that series id.
func checkBatch(records []model.StoredRecord) (string, error) {
	if len(records) == 0 {
		return "", ErrEmptyBatch
	}
	id := records[0].SeriesID
	for _, r := range records[1:] {
		if r.SeriesID != id {
			return id, eris.Errorf("store: batch mixes series %s and %s", id, r.SeriesID)
		}
	}
	return id, nil
}

// Snapshot indexes the last stored date of each series.
type Snapshot struct {
	last map[string]time.Time
	rows int
}

// NewSnapshot builds a snapshot from a full LoadAll result.
func NewSnapshot(records []model.StoredRecord) *Snapshot {
	s := &Snapshot{last: make(map[string]time.Time)}
	s.Observe(records...)
	return s
}

// LastDate returns the maximum stored date for seriesID, and false if the
// series has no records.
func (s *Snapshot) LastDate(seriesID string) (time.Time, bool) {
	d, ok := s.last[seriesID]
	return d, ok
}

// Observe folds committed records into the snapshot.
func (s *Snapshot) Observe(records ...model.StoredRecord) {
	for _, r := range records {
		if d, ok := s.last[r.SeriesID]; !ok || r.Date.After(d) {
			s.last[r.SeriesID] = r.Date
		}
	}
	s.rows += len(records)
}

// Len returns the number of records the snapshot has seen.
func (s *Snapshot) Len() int { return s.rows }

// Series returns the number of distinct series in the snapshot.
func (s *Snapshot) Series() int { return len(s.last) }
