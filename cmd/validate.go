package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fred-refresh/internal/config"
	"github.com/sells-group/fred-refresh/internal/schema"
)

var errSchemaInvalid = eris.New("schema validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the metric schema file",
	Long: `Checks every entry of the schema: required fields, series id format,
message and description lengths, category and frequency values, and duplicate
ids. Exits non-zero when any entry is invalid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyPathFlags(cmd, cfg)
		return runValidate(cfg.Schema.Path, cmd.OutOrStdout())
	},
}

func init() {
	validateCmd.Flags().String("schema-file", "", "path to the metric schema file (overrides schema.path)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(path string, out io.Writer) error {
	s, err := schema.Load(path)
	if err != nil {
		return &config.ConfigurationError{Reason: "load schema", Err: err}
	}
	formatValidation(out, path, s)
	if !s.Valid() {
		return errSchemaInvalid
	}
	return nil
}

func formatValidation(out io.Writer, path string, s *schema.Schema) {
	_, _ = fmt.Fprintf(out, "Schema: %s\n", path)
	_, _ = fmt.Fprintf(out, "  Total metrics: %d\n", s.Entries)
	_, _ = fmt.Fprintf(out, "  Valid metrics: %d\n", len(s.Metrics))
	_, _ = fmt.Fprintf(out, "  Categories: %s\n", strings.Join(s.Categories(), ", "))

	if len(s.Warnings) > 0 {
		_, _ = fmt.Fprintf(out, "\nWarnings (%d):\n", len(s.Warnings))
		for _, w := range s.Warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	if len(s.Problems) > 0 {
		_, _ = fmt.Fprintf(out, "\nErrors (%d):\n", len(s.Problems))
		for _, p := range s.Problems {
			_, _ = fmt.Fprintf(out, "  - %s\n", p)
		}
		return
	}
	_, _ = fmt.Fprintln(out, "\nSchema validation passed")
}
