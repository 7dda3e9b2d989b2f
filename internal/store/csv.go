package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fred-refresh/internal/model"
)

// timestampLayouts are accepted when reading last_updated. The first is the
// layout written by this package.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// CSVStore keeps records in a flat, comma-delimited file with a header row.
type CSVStore struct {
	path string
}

// NewCSV returns a CSVStore at path. The file is created on first Append.
func NewCSV(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the file backing the store.
func (s *CSVStore) Path() string { return s.path }

// LoadAll reads every row. A missing file or an unreadable header yields no
// records; malformed rows and rows with an unreadable series id or date are
// skipped.
func (s *CSVStore) LoadAll(_ context.Context) ([]model.StoredRecord, error) {
	log := zap.L().With(zap.String("component", "store.csv"), zap.String("path", s.path))

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info("no existing data file, starting fresh")
			return nil, nil
		}
		log.Warn("cannot open data file, treating as empty", zap.Error(err))
		return nil, nil
	}
	defer f.Close() //nolint:errcheck

	records, err := decodeCSV(f)
	if err != nil {
		log.Warn("cannot parse data file, treating as empty", zap.Error(err))
		return nil, nil
	}

	log.Info("loaded existing records", zap.Int("count", len(records)))
	return records, nil
}

func decodeCSV(r io.Reader) ([]model.StoredRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: read header")
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	for _, required := range []string{"series_id", "date"} {
		if _, ok := idx[required]; !ok {
			return nil, eris.Errorf("store: header missing %q column", required)
		}
	}

	var out []model.StoredRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				zap.L().Warn("skipping malformed row", zap.Int("line", pe.StartLine), zap.Error(err))
				continue
			}
			return nil, eris.Wrap(err, "store: read row")
		}
		line, _ := reader.FieldPos(0)

		rec, err := decodeRow(row, idx)
		if err != nil {
			zap.L().Warn("skipping unreadable row", zap.Int("line", line), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeRow(row []string, idx map[string]int) (model.StoredRecord, error) {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	rec := model.StoredRecord{
		SeriesID:        get("series_id"),
		Name:            get("name"),
		Description:     get("description"),
		Category:        model.Category(get("category")),
		Units:           get("units"),
		UpdateFrequency: model.Frequency(get("update_frequency")),
		YayMessage:      get("yay_message"),
		MehMessage:      get("meh_message"),
		NayMessage:      get("nay_message"),
		Provenance: model.Provenance{
			Title:     get("fred_title"),
			Frequency: get("fred_frequency"),
			Units:     get("fred_units"),
			Notes:     get("fred_notes"),
		},
	}
	if rec.SeriesID == "" {
		return rec, eris.New("store: empty series_id")
	}

	d, err := model.ParseDate(get("date"))
	if err != nil {
		return rec, err
	}
	rec.Date = d
	rec.Value = parseValue(get("value"))
	rec.LastUpdated = parseTimestamp(get("last_updated"))
	return rec, nil
}

// parseValue maps an empty or non-numeric cell to a missing value.
func parseValue(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func encodeRow(r model.StoredRecord) []string {
	return []string{
		r.SeriesID,
		r.Name,
		r.Description,
		string(r.Category),
		r.Units,
		string(r.UpdateFrequency),
		model.FormatDate(r.Date),
		formatValue(r.Value),
		r.YayMessage,
		r.MehMessage,
		r.NayMessage,
		r.LastUpdated.UTC().Format(time.RFC3339Nano),
		r.Provenance.Title,
		r.Provenance.Frequency,
		r.Provenance.Units,
		r.Provenance.Notes,
	}
}

// Append encodes the whole batch in memory and writes it to the end of the
// file in one call. The header is written only when the file is new or empty.
func (s *CSVStore) Append(_ context.Context, records []model.StoredRecord) error {
	seriesID, err := checkBatch(records)
	if err != nil {
		return &WriteError{Target: s.path, SeriesID: seriesID, Err: err}
	}
	wrap := func(err error, msg string) error {
		return &WriteError{Target: s.path, SeriesID: seriesID, Err: eris.Wrap(err, msg)}
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return wrap(err, "store: create data dir")
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return wrap(err, "store: open data file")
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return wrap(err, "store: stat data file")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		if err := w.Write(Columns); err != nil {
			return wrap(err, "store: encode header")
		}
	} else {
		// A file edited by hand may lack the final newline.
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err != nil {
			return wrap(err, "store: read data file tail")
		}
		if last[0] != '\n' {
			buf.WriteByte('\n')
		}
	}
	for _, r := range records {
		if err := w.Write(encodeRow(r)); err != nil {
			return wrap(err, "store: encode row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return wrap(err, "store: encode batch")
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return wrap(err, "store: write batch")
	}
	if err := f.Sync(); err != nil {
		return wrap(err, "store: sync data file")
	}

	zap.L().Info("appended records",
		zap.String("component", "store.csv"),
		zap.String("series", seriesID),
		zap.Int("count", len(records)),
		zap.String("path", s.path),
	)
	return nil
}

// Close is a no-op; the file is opened per call.
func (s *CSVStore) Close() error { return nil }
