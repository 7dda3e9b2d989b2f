// Package model defines the domain types shared by the refresh engine, the
// record store, and the schema loader.
package model

// Category groups metrics by the household concern they describe.
type Category string

const (
	CategoryHousing    Category = "housing"
	CategoryAutomotive Category = "automotive"
	CategoryEmployment Category = "employment"
	CategoryInflation  Category = "inflation"
	CategoryHealthcare Category = "healthcare"
	CategoryEducation  Category = "education"
	CategoryRetirement Category = "retirement"
	CategoryUtilities  Category = "utilities"
	CategoryWages      Category = "wages"
	CategoryEmergency  Category = "emergency"
)

// Categories lists every valid Category in display order.
var Categories = []Category{
	CategoryHousing,
	CategoryAutomotive,
	CategoryEmployment,
	CategoryInflation,
	CategoryHealthcare,
	CategoryEducation,
	CategoryRetirement,
	CategoryUtilities,
	CategoryWages,
	CategoryEmergency,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Frequency describes how often a metric is published upstream.
type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annually  Frequency = "annually"
)

// Frequencies lists every valid Frequency, shortest interval first.
var Frequencies = []Frequency{Daily, Weekly, Monthly, Quarterly, Annually}

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	for _, v := range Frequencies {
		if f == v {
			return true
		}
	}
	return false
}

// MetricDescriptor describes one tracked FRED series as configured in the
// schema file. Descriptors are loaded once per run and never modified.
type MetricDescriptor struct {
	ID              string    `json:"id" yaml:"id"`
	Name            string    `json:"name" yaml:"name"`
	Description     string    `json:"description" yaml:"description"`
	Category        Category  `json:"category" yaml:"category"`
	Units           string    `json:"units" yaml:"units"`
	UpdateFrequency Frequency `json:"update_frequency" yaml:"update_frequency"`
	YayMessage      string    `json:"yay_message" yaml:"yay_message"`
	MehMessage      string    `json:"meh_message" yaml:"meh_message"`
	NayMessage      string    `json:"nay_message" yaml:"nay_message"`
}
