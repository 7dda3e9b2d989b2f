package refresh

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fred-refresh/internal/model"
	"github.com/sells-group/fred-refresh/internal/store"
	"github.com/sells-group/fred-refresh/pkg/fred"
	"github.com/sells-group/fred-refresh/pkg/fred/mocks"
)

var fixedNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func metric(id string) model.MetricDescriptor {
	return model.MetricDescriptor{
		ID:              id,
		Name:            id + " name",
		Description:     id + " description",
		Category:        model.CategoryHousing,
		Units:           "Percent",
		UpdateFrequency: model.Daily,
		YayMessage:      "yay",
		MehMessage:      "meh",
		NayMessage:      "nay",
	}
}

var xMeta = map[string]string{"title": "X title", "frequency": "Daily", "units": "Percent", "notes": "notes"}

func newEngine(t *testing.T, client fred.Client) (*Engine, *store.CSVStore) {
	t.Helper()
	st := store.NewCSV(filepath.Join(t.TempDir(), "fred_data.csv"))
	e := NewEngine(client, st, Options{
		WindowStart: DefaultWindowStart,
		Now:         func() time.Time { return fixedNow },
	})
	return e, st
}

func loadDates(t *testing.T, st store.RecordStore, id string) []time.Time {
	t.Helper()
	recs, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	var out []time.Time
	for _, r := range recs {
		if r.SeriesID == id {
			out = append(out, r.Date)
		}
	}
	return out
}

func TestRun_ScenarioA_EmptyStore(t *testing.T) {
	client := mocks.NewMockClient(t)
	e, st := newEngine(t, client)

	fetched := obsRange(day(2024, 1, 1), day(2024, 1, 5))
	fetched[2].Value = nil // 2024-01-03 reported as "."

	client.On("FetchObservations", mock.Anything, "X", day(2024, 1, 1)).Return(fetched, nil).Once()
	client.On("FetchMetadata", mock.Anything, "X").Return(xMeta).Once()

	sum, err := e.Run(context.Background(), []model.MetricDescriptor{metric("X")}, RunOpts{})
	require.NoError(t, err)
	assert.True(t, sum.OK())
	assert.Equal(t, 5, sum.PointsAdded)
	require.Len(t, sum.Results, 1)
	assert.Equal(t, model.SyncResult{MetricID: "X", Success: true, PointsAdded: 5}, sum.Results[0])
	assert.NotEmpty(t, sum.RunID)

	recs, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 5)
	assert.Nil(t, recs[2].Value)
	assert.Equal(t, day(2024, 1, 3), recs[2].Date)
	assert.Equal(t, "X title", recs[0].Provenance.Title)
	assert.True(t, fixedNow.Equal(recs[0].LastUpdated))

	last, ok := store.NewSnapshot(recs).LastDate("X")
	require.True(t, ok)
	assert.Equal(t, day(2024, 1, 5), last)
}

func TestRun_ScenarioB_BoundaryOverlap(t *testing.T) {
	client := mocks.NewMockClient(t)
	e, st := newEngine(t, client)
	ctx := context.Background()

	client.On("FetchObservations", mock.Anything, "X", day(2024, 1, 1)).
		Return(obsRange(day(2024, 1, 1), day(2024, 1, 5)), nil).Once()
	client.On("FetchObservations", mock.Anything, "X", day(2024, 1, 6)).
		Return(obsRange(day(2024, 1, 5), day(2024, 1, 8)), nil).Once()
	client.On("FetchMetadata", mock.Anything, "X").Return(xMeta).Twice()

	_, err := e.Run(ctx, []model.MetricDescriptor{metric("X")}, RunOpts{})
	require.NoError(t, err)

	sum, err := e.Run(ctx, []model.MetricDescriptor{metric("X")}, RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.PointsAdded)

	dates := loadDates(t, st, "X")
	require.Len(t, dates, 8)
	assert.Equal(t, []time.Time{day(2024, 1, 6), day(2024, 1, 7), day(2024, 1, 8)}, dates[5:])
}

func TestRun_Idempotent(t *testing.T) {
	client := mocks.NewMockClient(t)
	e, st := newEngine(t, client)
	ctx := context.Background()

	series := obsRange(day(2024, 1, 1), day(2024, 1, 4))
	client.On("FetchObservations", mock.Anything, "X", day(2024, 1, 1)).Return(series, nil).Once()
	// The source keeps returning the last known point on later requests.
	client.On("FetchObservations", mock.Anything, "X", day(2024, 1, 5)).Return(series[3:], nil).Once()
	client.On("FetchMetadata", mock.Anything, "X").Return(xMeta).Once()

	_, err := e.Run(ctx, []model.MetricDescriptor{metric("X")}, RunOpts{})
	require.NoError(t, err)

	sum, err := e.Run(ctx, []model.MetricDescriptor{metric("X")}, RunOpts{})
	require.NoError(t, err)
	assert.True(t, sum.OK())
	assert.Equal(t, 0, sum.PointsAdded)
	assert.Len(t, loadDates(t, st, "X"), 4)
}

func TestRun_NoDuplicateDates(t *testing.T) {
	client := mocks.NewMockClient(t)
	e, st := newEngine(t, client)
	ctx := context.Background()

	client.On("FetchObservations", mock.Anything, "X", day(2024, 1, 1)).
		Return(obsRange(day(2024, 1, 1), day(2024, 1, 3)), nil).Once()
	client.On("FetchObservations", mock.Anything, "X", day(2024, 1, 4)).
		Return(obsRange(day(2024, 1, 1), day(2024, 1, 6)), nil).Once()
	client.On("FetchObservations", mock.Anything, "X", day(2024, 1, 7)).
		Return(obsRange(day(2024, 1, 2), day(2024, 1, 7)), nil).Once()
	client.On("FetchMetadata", mock.Anything, "X").Return(xMeta)

	for range 3 {
		_, err := e.Run(ctx, []model.MetricDescriptor{metric("X")}, RunOpts{})
		require.NoError(t, err)
	}

	seen := map[time.Time]bool{}
	for _, d := range loadDates(t, st, "X") {
		assert.False(t, seen[d], "duplicate date %s", d)
		seen[d] = true
	}
	assert.Len(t, seen, 7)
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	client := mocks.NewMockClient(t)
	e, st := newEngine(t, client)

	fetchErr := &fred.FetchError{SeriesID: "B", Err: errors.New("fred: unexpected status 400: Bad Request")}
	client.On("FetchObservations", mock.Anything, "A", DefaultWindowStart).Return(obsRange(day(2024, 1, 1), day(2024, 1, 2)), nil).Once()
	client.On("FetchObservations", mock.Anything, "B", DefaultWindowStart).Return(nil, fetchErr).Once()
	client.On("FetchObservations", mock.Anything, "C", DefaultWindowStart).Return(obsRange(day(2024, 1, 1), day(2024, 1, 3)), nil).Once()
	client.On("FetchMetadata", mock.Anything, "A").Return(map[string]string{}).Once()
	client.On("FetchMetadata", mock.Anything, "C").Return(map[string]string{}).Once()

	sum, err := e.Run(context.Background(), []model.MetricDescriptor{metric("A"), metric("B"), metric("C")}, RunOpts{})
	require.NoError(t, err)

	assert.False(t, sum.OK())
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Results, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{sum.Results[0].MetricID, sum.Results[1].MetricID, sum.Results[2].MetricID})

	var fe *fred.FetchError
	require.ErrorAs(t, sum.Results[1].Err, &fe)
	assert.Equal(t, "B", fe.SeriesID)
	assert.Equal(t, 0, sum.Results[1].PointsAdded)

	assert.Len(t, loadDates(t, st, "A"), 2)
	assert.Empty(t, loadDates(t, st, "B"))
	assert.Len(t, loadDates(t, st, "C"), 3)
}

func TestRun_ForceAppendsDuplicates(t *testing.T) {
	client := mocks.NewMockClient(t)
	e, st := newEngine(t, client)
	ctx := context.Background()

	series := obsRange(day(2024, 1, 1), day(2024, 1, 3))
	client.On("FetchObservations", mock.Anything, "X", DefaultWindowStart).Return(series, nil).Twice()
	client.On("FetchMetadata", mock.Anything, "X").Return(xMeta).Twice()

	_, err := e.Run(ctx, []model.MetricDescriptor{metric("X")}, RunOpts{})
	require.NoError(t, err)

	sum, err := e.Run(ctx, []model.MetricDescriptor{metric("X")}, RunOpts{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.PointsAdded)
	assert.Len(t, loadDates(t, st, "X"), 6)
}

func TestRun_EmptyFetchSkipsMetadataAndWrite(t *testing.T) {
	client := mocks.NewMockClient(t)
	e, st := newEngine(t, client)

	client.On("FetchObservations", mock.Anything, "X", DefaultWindowStart).Return([]model.Observation{}, nil).Once()

	sum, err := e.Run(context.Background(), []model.MetricDescriptor{metric("X")}, RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, model.SyncResult{MetricID: "X", Success: true}, sum.Results[0])
	client.AssertNotCalled(t, "FetchMetadata", mock.Anything, "X")
	assert.NoFileExists(t, st.Path())
}

// failingStore accepts LoadAll and rejects every Append.
type failingStore struct {
	appends int
}

func (s *failingStore) LoadAll(context.Context) ([]model.StoredRecord, error) { return nil, nil }

func (s *failingStore) Append(_ context.Context, records []model.StoredRecord) error {
	s.appends++
	return &store.WriteError{Target: "broken", SeriesID: records[0].SeriesID, Err: errors.New("disk full")}
}

func (s *failingStore) Close() error { return nil }

func TestRun_StoreWriteFailure(t *testing.T) {
	client := mocks.NewMockClient(t)
	st := &failingStore{}
	e := NewEngine(client, st, Options{})

	client.On("FetchObservations", mock.Anything, "X", DefaultWindowStart).Return(obsRange(day(2024, 1, 1), day(2024, 1, 2)), nil).Once()
	client.On("FetchObservations", mock.Anything, "Y", DefaultWindowStart).Return(obsRange(day(2024, 1, 1), day(2024, 1, 2)), nil).Once()
	client.On("FetchMetadata", mock.Anything, mock.Anything).Return(map[string]string{})

	sum, err := e.Run(context.Background(), []model.MetricDescriptor{metric("X"), metric("Y")}, RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 2, st.appends)

	var we *store.WriteError
	require.ErrorAs(t, sum.Results[0].Err, &we)
	assert.Equal(t, "X", we.SeriesID)
}

// loadFailStore fails LoadAll.
type loadFailStore struct{ failingStore }

func (s *loadFailStore) LoadAll(context.Context) ([]model.StoredRecord, error) {
	return nil, errors.New("connection refused")
}

func TestRun_LoadFailureIsFatal(t *testing.T) {
	client := mocks.NewMockClient(t)
	e := NewEngine(client, &loadFailStore{}, Options{})

	_, err := e.Run(context.Background(), []model.MetricDescriptor{metric("X")}, RunOpts{})
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.EqualError(t, err, "refresh: load store: connection refused")
	client.AssertNotCalled(t, "FetchObservations", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_MetricFilter(t *testing.T) {
	client := mocks.NewMockClient(t)
	e, _ := newEngine(t, client)

	var order []string
	client.On("FetchObservations", mock.Anything, mock.Anything, DefaultWindowStart).
		Run(func(args mock.Arguments) { order = append(order, args.String(1)) }).
		Return([]model.Observation{}, nil)

	metrics := []model.MetricDescriptor{metric("A"), metric("B"), metric("C")}
	sum, err := e.Run(context.Background(), metrics, RunOpts{Metrics: []string{"C", " A", "NOPE"}})
	require.NoError(t, err)

	// Configuration order wins over request order.
	assert.Equal(t, []string{"A", "C"}, order)
	assert.Len(t, sum.Results, 2)
}

func TestRun_NoMetricsSelected(t *testing.T) {
	client := mocks.NewMockClient(t)
	e, _ := newEngine(t, client)

	_, err := e.Run(context.Background(), []model.MetricDescriptor{metric("A")}, RunOpts{Metrics: []string{"NOPE"}})
	assert.ErrorIs(t, err, ErrNoMetricsSelected)

	_, err = e.Run(context.Background(), nil, RunOpts{})
	assert.ErrorIs(t, err, ErrNoMetricsSelected)
}

func TestRun_PausesBetweenMetrics(t *testing.T) {
	client := mocks.NewMockClient(t)
	st := store.NewCSV(filepath.Join(t.TempDir(), "fred_data.csv"))
	e := NewEngine(client, st, Options{MetricPause: 40 * time.Millisecond})

	client.On("FetchObservations", mock.Anything, mock.Anything, DefaultWindowStart).Return([]model.Observation{}, nil)

	start := time.Now()
	_, err := e.Run(context.Background(), []model.MetricDescriptor{metric("A"), metric("B"), metric("C")}, RunOpts{})
	require.NoError(t, err)
	// Two pauses for three metrics; none after the last.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRun_CancelledContextStillResolvesEveryMetric(t *testing.T) {
	client := mocks.NewMockClient(t)
	e, _ := newEngine(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client.On("FetchObservations", mock.Anything, mock.Anything, DefaultWindowStart).
		Return(func(ctx context.Context, id string, _ time.Time) ([]model.Observation, error) {
			return nil, &fred.FetchError{SeriesID: id, Err: ctx.Err()}
		})

	sum, err := e.Run(ctx, []model.MetricDescriptor{metric("A"), metric("B")}, RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Failed)
	for _, r := range sum.Results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestSelect(t *testing.T) {
	metrics := []model.MetricDescriptor{metric("A"), metric("B")}

	got, unknown := Select(metrics, nil)
	assert.Equal(t, metrics, got)
	assert.Empty(t, unknown)

	got, unknown = Select(metrics, []string{"", " "})
	assert.Equal(t, metrics, got)
	assert.Empty(t, unknown)

	got, unknown = Select(metrics, []string{"B", "Z", "Z"})
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].ID)
	assert.Equal(t, []string{"Z"}, unknown)
}
