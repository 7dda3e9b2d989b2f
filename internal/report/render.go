package report

import (
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/fred-refresh/internal/model"
)

var rule = strings.Repeat("=", 60)

// writer remembers the first write error so rendering can stay linear.
type writer struct {
	w   io.Writer
	p   *message.Printer
	err error
}

func (w *writer) printf(format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = w.p.Fprintf(w.w, format, args...)
}

// Render writes the report as plain text.
func (s *Status) Render(out io.Writer) error {
	w := &writer{w: out, p: message.NewPrinter(language.English)}

	if s.Empty() {
		w.printf("No data found in store\n")
		return w.err
	}

	title := cases.Title(language.English)

	w.printf("%s\nFRED DATA STATUS REPORT\n%s\n", rule, rule)

	w.printf("\nBASIC STATISTICS\n")
	w.printf("   Total records: %d\n", s.Records)
	w.printf("   Unique metrics: %d\n", s.Metrics)
	w.printf("   Date range: %s to %s\n", model.FormatDate(s.First), model.FormatDate(s.Last))

	w.printf("\nMETRIC COVERAGE\n")
	w.printf("   Expected metrics: %d\n", s.Expected)
	w.printf("   Actual metrics: %d\n", s.Metrics)
	if len(s.Missing) > 0 {
		w.printf("   Missing metrics: %s\n", strings.Join(s.Missing, ", "))
	} else {
		w.printf("   All expected metrics present\n")
	}
	if len(s.Extra) > 0 {
		w.printf("   Extra metrics: %s\n", strings.Join(s.Extra, ", "))
	}

	w.printf("\nLAST UPDATE DATES\n")
	for i, a := range s.LastDates {
		if i == MaxLastDates {
			w.printf("   ... and %d more metrics\n", len(s.LastDates)-MaxLastDates)
			break
		}
		w.printf("   %-7s %s: %s (%d days ago)\n", "["+string(a.Level)+"]", a.SeriesID, model.FormatDate(a.Last), a.AgeDays)
	}

	w.printf("\nMISSING VALUES\n")
	if len(s.MissingValues) == 0 {
		w.printf("   No missing values found\n")
	} else {
		w.printf("   Found missing values in %d metrics:\n", len(s.MissingValues))
		for i, m := range s.MissingValues {
			if i == MaxMissingValues {
				w.printf("   ... and %d more metrics with missing values\n", len(s.MissingValues)-MaxMissingValues)
				break
			}
			w.printf("   %s: %d/%d missing (%.1f%%)\n", m.SeriesID, m.Missing, m.Total, m.Percent())
		}
	}

	w.printf("\nFRESHNESS BY CATEGORY\n")
	if len(s.Categories) == 0 {
		w.printf("   Category information not available\n")
	}
	for _, c := range s.Categories {
		w.printf("   %-7s %s: %s (%d days ago)\n", "["+string(c.Level)+"]", title.String(string(c.Category)), model.FormatDate(c.Last), c.AgeDays)
	}

	w.printf("\nRECENT ACTIVITY (last 7 days)\n")
	if len(s.Recent) == 0 {
		w.printf("   No updates in the last 7 days\n")
	} else {
		w.printf("   %d metrics updated:\n", len(s.Recent))
		for i, r := range s.Recent {
			if i == MaxRecent {
				w.printf("      ... and %d more\n", len(s.Recent)-MaxRecent)
				break
			}
			w.printf("      - %s: %d new data points\n", r.SeriesID, r.Records)
		}
	}

	w.printf("\n%s\nEnd of report\n", rule)
	return w.err
}
