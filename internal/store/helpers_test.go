package store

import (
	"time"

	"github.com/sells-group/fred-refresh/internal/model"
)

var fetchedAt = time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testMetric(id string) model.MetricDescriptor {
	return model.MetricDescriptor{
		ID:              id,
		Name:            id + " name",
		Description:     id + " description, with a comma",
		Category:        model.CategoryHousing,
		Units:           "Percent",
		UpdateFrequency: model.Weekly,
		YayMessage:      "Rates are falling",
		MehMessage:      "Rates are flat",
		NayMessage:      "Rates are \"rising\"",
	}
}

// recordsFor builds one record per date for id; a zero value marks the
// observation as missing.
func recordsFor(id string, values map[time.Time]float64, dates ...time.Time) []model.StoredRecord {
	m := testMetric(id)
	prov := model.Provenance{Title: id + " title", Frequency: "Weekly", Units: "Percent", Notes: "line one\nline two"}
	out := make([]model.StoredRecord, 0, len(dates))
	for _, d := range dates {
		obs := model.Observation{Date: d}
		if v, ok := values[d]; ok && v != 0 {
			obs.Value = model.Float(v)
		}
		out = append(out, model.NewStoredRecord(m, obs, prov, fetchedAt))
	}
	return out
}
