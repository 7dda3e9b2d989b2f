package model

import "time"

// Provenance holds the source-reported series metadata attached to each
// stored row.
type Provenance struct {
	Title     string `json:"fred_title"`
	Frequency string `json:"fred_frequency"`
	Units     string `json:"fred_units"`
	Notes     string `json:"fred_notes"`
}

// ProvenanceFromMetadata picks the provenance fields out of a FRED series
// metadata mapping. Missing keys become empty strings.
func ProvenanceFromMetadata(meta map[string]string) Provenance {
	return Provenance{
		Title:     meta["title"],
		Frequency: meta["frequency"],
		Units:     meta["units"],
		Notes:     meta["notes"],
	}
}

// StoredRecord is the unit of persistence: a descriptor, one observation,
// and the provenance of the fetch that produced it. Records are written once
// and never changed.
type StoredRecord struct {
	SeriesID        string     `json:"series_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Category        Category   `json:"category"`
	Units           string     `json:"units"`
	UpdateFrequency Frequency  `json:"update_frequency"`
	Date            time.Time  `json:"date"`
	Value           *float64   `json:"value"`
	YayMessage      string     `json:"yay_message"`
	MehMessage      string     `json:"meh_message"`
	NayMessage      string     `json:"nay_message"`
	LastUpdated     time.Time  `json:"last_updated"`
	Provenance      Provenance `json:"provenance"`
}

// NewStoredRecord combines a descriptor, an observation, and provenance into
// a record stamped with fetchedAt.
func NewStoredRecord(m MetricDescriptor, obs Observation, prov Provenance, fetchedAt time.Time) StoredRecord {
	return StoredRecord{
		SeriesID:        m.ID,
		Name:            m.Name,
		Description:     m.Description,
		Category:        m.Category,
		Units:           m.Units,
		UpdateFrequency: m.UpdateFrequency,
		Date:            obs.Date,
		Value:           obs.Value,
		YayMessage:      m.YayMessage,
		MehMessage:      m.MehMessage,
		NayMessage:      m.NayMessage,
		LastUpdated:     fetchedAt,
		Provenance:      prov,
	}
}
