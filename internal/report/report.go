// Package report summarizes the contents of the record store: coverage,
// freshness, missing values, and recent fetch activity.
package report

import (
	"sort"
	"time"

	"github.com/sells-group/fred-refresh/internal/model"
)

// Level grades how fresh a series or category is.
type Level string

// Freshness levels.
const (
	LevelOK    Level = "OK"
	LevelWarn  Level = "WARN"
	LevelStale Level = "STALE"
)

// Report limits.
const (
	MaxLastDates     = 10
	MaxMissingValues = 5
	MaxRecent        = 5
	RecentWindow     = 7 * 24 * time.Hour
)

// SeriesAge is the last stored date of one series.
type SeriesAge struct {
	SeriesID string
	Last     time.Time
	AgeDays  int
	Level    Level
}

// CategoryAge is the last stored date across a category.
type CategoryAge struct {
	Category model.Category
	Last     time.Time
	AgeDays  int
	Level    Level
}

// MissingCount counts the records of a series without a value.
type MissingCount struct {
	SeriesID string
	Missing  int
	Total    int
}

// Percent returns the missing share as a percentage.
func (m MissingCount) Percent() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Missing) / float64(m.Total) * 100
}

// RecentCount counts the records of a series fetched within RecentWindow.
type RecentCount struct {
	SeriesID string
	Records  int
}

// Status is a point-in-time summary of the store.
type Status struct {
	Now     time.Time
	Records int
	Metrics int
	First   time.Time
	Last    time.Time

	Expected int
	Missing  []string // expected but never stored
	Extra    []string // stored but not configured

	LastDates     []SeriesAge
	MissingValues []MissingCount
	Categories    []CategoryAge
	Recent        []RecentCount
}

// Empty reports whether the store held no records.
func (s *Status) Empty() bool { return s.Records == 0 }

// Build summarizes records as of now against the configured ids.
func Build(records []model.StoredRecord, expectedIDs []string, now time.Time) *Status {
	s := &Status{Now: now, Records: len(records)}

	expected := make(map[string]bool, len(expectedIDs))
	for _, id := range expectedIDs {
		expected[id] = true
	}
	s.Expected = len(expected)

	var (
		lastBySeries   = make(map[string]time.Time)
		lastByCategory = make(map[model.Category]time.Time)
		missing        = make(map[string]*MissingCount)
		recent         = make(map[string]*RecentCount)
		recentOrder    []string
		cutoff         = now.Add(-RecentWindow)
	)
	for i, r := range records {
		if i == 0 || r.Date.Before(s.First) {
			s.First = r.Date
		}
		if i == 0 || r.Date.After(s.Last) {
			s.Last = r.Date
		}
		if d, ok := lastBySeries[r.SeriesID]; !ok || r.Date.After(d) {
			lastBySeries[r.SeriesID] = r.Date
		}
		if r.Category != "" {
			if d, ok := lastByCategory[r.Category]; !ok || r.Date.After(d) {
				lastByCategory[r.Category] = r.Date
			}
		}

		mc, ok := missing[r.SeriesID]
		if !ok {
			mc = &MissingCount{SeriesID: r.SeriesID}
			missing[r.SeriesID] = mc
		}
		mc.Total++
		if r.Value == nil {
			mc.Missing++
		}

		if !r.LastUpdated.IsZero() && !r.LastUpdated.Before(cutoff) {
			rc, ok := recent[r.SeriesID]
			if !ok {
				rc = &RecentCount{SeriesID: r.SeriesID}
				recent[r.SeriesID] = rc
				recentOrder = append(recentOrder, r.SeriesID)
			}
			rc.Records++
		}
	}
	s.Metrics = len(lastBySeries)

	for _, id := range expectedIDs {
		if _, ok := lastBySeries[id]; !ok && !contains(s.Missing, id) {
			s.Missing = append(s.Missing, id)
		}
	}
	sort.Strings(s.Missing)
	for id := range lastBySeries {
		if !expected[id] {
			s.Extra = append(s.Extra, id)
		}
	}
	sort.Strings(s.Extra)

	for id, d := range lastBySeries {
		age := ageDays(now, d)
		s.LastDates = append(s.LastDates, SeriesAge{SeriesID: id, Last: d, AgeDays: age, Level: seriesLevel(now, d, age)})
	}
	sort.Slice(s.LastDates, func(i, j int) bool {
		a, b := s.LastDates[i], s.LastDates[j]
		if !a.Last.Equal(b.Last) {
			return a.Last.After(b.Last)
		}
		return a.SeriesID < b.SeriesID
	})

	for _, mc := range missing {
		if mc.Missing > 0 {
			s.MissingValues = append(s.MissingValues, *mc)
		}
	}
	sort.Slice(s.MissingValues, func(i, j int) bool {
		a, b := s.MissingValues[i], s.MissingValues[j]
		if a.Missing != b.Missing {
			return a.Missing > b.Missing
		}
		return a.SeriesID < b.SeriesID
	})

	for c, d := range lastByCategory {
		age := ageDays(now, d)
		s.Categories = append(s.Categories, CategoryAge{Category: c, Last: d, AgeDays: age, Level: categoryLevel(age)})
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		a, b := s.Categories[i], s.Categories[j]
		if !a.Last.Equal(b.Last) {
			return a.Last.After(b.Last)
		}
		return a.Category < b.Category
	})

	for _, id := range recentOrder {
		s.Recent = append(s.Recent, *recent[id])
	}
	return s
}

// ageDays is the number of whole days from d to now.
func ageDays(now, d time.Time) int {
	return int(now.Sub(d) / (24 * time.Hour))
}

// seriesLevel is OK within 30 days, WARN within 60, STALE beyond.
func seriesLevel(now, d time.Time, age int) Level {
	switch {
	case !d.Before(now.AddDate(0, 0, -30)):
		return LevelOK
	case age <= 60:
		return LevelWarn
	default:
		return LevelStale
	}
}

// categoryLevel is OK within a week, WARN within 30 days, STALE beyond.
func categoryLevel(age int) Level {
	switch {
	case age <= 7:
		return LevelOK
	case age <= 30:
		return LevelWarn
	default:
		return LevelStale
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
