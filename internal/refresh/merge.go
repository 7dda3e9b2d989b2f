package refresh

import (
	"time"

	"github.com/sells-group/fred-refresh/internal/model"
	"github.com/sells-group/fred-refresh/internal/store"
)

// ResolveStartDate returns the first date to request for seriesID: the day
// after its last stored date, or windowStart when forced or without history.
func ResolveStartDate(seriesID string, snap *store.Snapshot, force bool, windowStart time.Time) time.Time {
	if force {
		return windowStart
	}
	last, ok := snap.LastDate(seriesID)
	if !ok {
		return windowStart
	}
	return last.AddDate(0, 0, 1)
}

// FilterNew keeps the fetched observations dated strictly after the last
// stored date of seriesID, preserving order. Without history the input is
// returned unchanged.
func FilterNew(seriesID string, fetched []model.Observation, snap *store.Snapshot) []model.Observation {
	last, ok := snap.LastDate(seriesID)
	if !ok {
		return fetched
	}
	out := make([]model.Observation, 0, len(fetched))
	for _, o := range fetched {
		if o.Date.After(last) {
			out = append(out, o)
		}
	}
	return out
}
