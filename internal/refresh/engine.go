// Package refresh synchronizes tracked FRED series into the record store,
// one metric at a time.
package refresh

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fred-refresh/internal/model"
	"github.com/sells-group/fred-refresh/internal/store"
	"github.com/sells-group/fred-refresh/pkg/fred"
)

// DefaultWindowStart is the first date requested for a series without
// history, and for every series on a forced run.
var DefaultWindowStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ErrNoMetricsSelected is returned when a requested subset matches none of
// the configured metrics.
var ErrNoMetricsSelected = eris.New("refresh: no valid metrics selected")

// LoadError reports a store that could not be read before the first metric.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return "refresh: load store: " + e.Err.Error() }

func (e *LoadError) Unwrap() error { return e.Err }

// Options configures an Engine.
type Options struct {
	WindowStart time.Time
	MetricPause time.Duration
	Now         func() time.Time
}

// RunOpts configures a single run.
type RunOpts struct {
	Force   bool     // refetch the whole window and skip the new-point filter
	Metrics []string // restrict to these ids; empty means all
}

// Summary is the outcome of a run. Results follow run order.
type Summary struct {
	RunID       string
	Results     []model.SyncResult
	Succeeded   int
	Failed      int
	PointsAdded int
	Elapsed     time.Duration
}

// OK reports whether every metric succeeded.
func (s *Summary) OK() bool { return s.Failed == 0 }

func (s *Summary) add(r model.SyncResult) {
	s.Results = append(s.Results, r)
	if r.Success {
		s.Succeeded++
		s.PointsAdded += r.PointsAdded
		return
	}
	s.Failed++
}

// Engine runs refresh passes against one client and one store.
type Engine struct {
	client fred.Client
	store  store.RecordStore
	opts   Options
}

// NewEngine creates a new refresh engine.
func NewEngine(client fred.Client, st store.RecordStore, opts Options) *Engine {
	if opts.WindowStart.IsZero() {
		opts.WindowStart = DefaultWindowStart
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{client: client, store: st, opts: opts}
}

// Select returns the metrics to run in configuration order. With no
// requested ids every metric is selected. Requested ids that match nothing
// are returned as unknown.
func Select(metrics []model.MetricDescriptor, requested []string) (selected []model.MetricDescriptor, unknown []string) {
	want := make(map[string]bool, len(requested))
	for _, id := range requested {
		if id = strings.TrimSpace(id); id != "" {
			want[id] = true
		}
	}
	if len(want) == 0 {
		return metrics, nil
	}

	found := make(map[string]bool, len(want))
	for _, m := range metrics {
		if want[m.ID] {
			selected = append(selected, m)
			found[m.ID] = true
		}
	}
	for _, id := range requested {
		id = strings.TrimSpace(id)
		if id != "" && !found[id] {
			unknown = append(unknown, id)
			found[id] = true
		}
	}
	return selected, unknown
}

// Run refreshes the selected metrics sequentially. Every selected metric is
// attempted and reported in the summary; a failing metric never stops the
// run. Run itself only fails before the first metric starts: when nothing is
// selected, or with a *LoadError when the store cannot be loaded.
func (e *Engine) Run(ctx context.Context, metrics []model.MetricDescriptor, opts RunOpts) (*Summary, error) {
	runID := uuid.New().String()
	log := zap.L().With(zap.String("component", "refresh.engine"), zap.String("run_id", runID))
	start := time.Now()

	selected, unknown := Select(metrics, opts.Metrics)
	for _, id := range unknown {
		log.Warn("requested metric is not configured", zap.String("series", id))
	}
	if len(selected) == 0 {
		return nil, ErrNoMetricsSelected
	}

	existing, err := e.store.LoadAll(ctx)
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	snap := store.NewSnapshot(existing)

	log.Info("starting refresh",
		zap.Int("metrics", len(selected)),
		zap.Bool("force", opts.Force),
		zap.Int("existing_records", snap.Len()),
		zap.Int("existing_series", snap.Series()),
	)

	summary := &Summary{RunID: runID}
	for i, m := range selected {
		res := e.syncMetric(ctx, log, m, snap, opts.Force)
		summary.add(res)

		if i < len(selected)-1 {
			e.pause(ctx)
		}
	}
	summary.Elapsed = time.Since(start)

	log.Info("refresh complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("points_added", summary.PointsAdded),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

func (e *Engine) syncMetric(ctx context.Context, log *zap.Logger, m model.MetricDescriptor, snap *store.Snapshot, force bool) model.SyncResult {
	mLog := log.With(zap.String("series", m.ID))
	from := ResolveStartDate(m.ID, snap, force, e.opts.WindowStart)

	fetched, err := e.client.FetchObservations(ctx, m.ID, from)
	if err != nil {
		mLog.Error("fetch failed", zap.Error(err))
		return model.SyncResult{MetricID: m.ID, Err: err}
	}
	if len(fetched) == 0 {
		mLog.Info("no observations returned", zap.String("start", model.FormatDate(from)))
		return model.SyncResult{MetricID: m.ID, Success: true}
	}

	fresh := fetched
	if !force {
		fresh = FilterNew(m.ID, fetched, snap)
	}
	if len(fresh) == 0 {
		mLog.Info("already up to date", zap.Int("fetched", len(fetched)))
		return model.SyncResult{MetricID: m.ID, Success: true}
	}

	prov := model.ProvenanceFromMetadata(e.client.FetchMetadata(ctx, m.ID))
	fetchedAt := e.opts.Now().UTC()

	batch := make([]model.StoredRecord, 0, len(fresh))
	for _, o := range fresh {
		batch = append(batch, model.NewStoredRecord(m, o, prov, fetchedAt))
	}

	if err := e.store.Append(ctx, batch); err != nil {
		var we *store.WriteError
		if !errors.As(err, &we) {
			err = &store.WriteError{Target: "store", SeriesID: m.ID, Err: err}
		}
		mLog.Error("append failed", zap.Error(err))
		return model.SyncResult{MetricID: m.ID, Err: err}
	}
	snap.Observe(batch...)

	mLog.Info("metric refreshed",
		zap.Int("fetched", len(fetched)),
		zap.Int("added", len(batch)),
		zap.String("latest", model.FormatDate(batch[len(batch)-1].Date)),
	)
	return model.SyncResult{MetricID: m.ID, Success: true, PointsAdded: len(batch)}
}

// pause waits MetricPause between metrics. Cancellation ends the wait early;
// the next fetch then reports the cancellation.
func (e *Engine) pause(ctx context.Context) {
	if e.opts.MetricPause <= 0 {
		return
	}
	t := time.NewTimer(e.opts.MetricPause)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
