// Package schema loads and validates the metric configuration file that
// lists the FRED series to track.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fred-refresh/internal/model"
)

// Format is the encoding of a schema file.
type Format string

// Supported schema formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrNoMetrics is returned when metrics_to_track is missing or empty.
var ErrNoMetrics = eris.New("schema: no metrics_to_track")

// Problem is one validation failure of a metric entry.
type Problem struct {
	Index   int
	ID      string
	Message string
}

func (p Problem) String() string {
	if p.ID == "" {
		return fmt.Sprintf("Metric %d: %s", p.Index, p.Message)
	}
	return fmt.Sprintf("Metric %d (%s): %s", p.Index, p.ID, p.Message)
}

// Schema is a decoded metric configuration. Metrics holds the valid entries
// in file order; entries with any problem are left out.
type Schema struct {
	Version     string
	Description string
	Entries     int
	Metrics     []model.MetricDescriptor
	Problems    []Problem
	Warnings    []string
}

// Valid reports whether every entry passed validation.
func (s *Schema) Valid() bool { return len(s.Problems) == 0 }

// IDs returns the ids of the valid metrics in file order.
func (s *Schema) IDs() []string {
	ids := make([]string, len(s.Metrics))
	for i, m := range s.Metrics {
		ids[i] = m.ID
	}
	return ids
}

// Categories returns the distinct categories of the valid metrics, sorted.
func (s *Schema) Categories() []string {
	seen := make(map[string]bool)
	for _, m := range s.Metrics {
		seen[string(m.Category)] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// FormatFor picks the format from the file extension. Anything other than
// .yaml or .yml is read as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads and validates the schema file at path.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", path)
	}
	s, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, eris.Wrapf(err, "schema: load %s", path)
	}
	return s, nil
}

// Parse decodes and validates a schema document.
func Parse(data []byte, format Format) (*Schema, error) {
	var doc map[string]any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrap(err, "schema: decode yaml")
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrap(err, "schema: decode json")
		}
	}
	if doc == nil {
		return nil, eris.New("schema: document is empty")
	}

	s := &Schema{}
	if v, ok := doc["schema_version"]; ok {
		s.Version = fmt.Sprint(v)
	} else {
		s.Warnings = append(s.Warnings, "Missing 'schema_version' field")
	}
	if d, ok := doc["description"].(string); ok {
		s.Description = d
	}

	raw, ok := doc["metrics_to_track"]
	if !ok || raw == nil {
		return nil, ErrNoMetrics
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil, eris.New("schema: 'metrics_to_track' must be an array")
	}
	if len(entries) == 0 {
		return nil, ErrNoMetrics
	}
	s.Entries = len(entries)

	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		m, problems := validateEntry(i, e)
		if m.ID != "" {
			if seen[m.ID] {
				problems = append(problems, Problem{Index: i, ID: m.ID, Message: "Duplicate series ID"})
			} else {
				seen[m.ID] = true
			}
		}
		if len(problems) > 0 {
			s.Problems = append(s.Problems, problems...)
			continue
		}
		s.Metrics = append(s.Metrics, m.descriptor())
	}
	return s, nil
}
