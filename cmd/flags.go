package main

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fred-refresh/internal/config"
	"github.com/sells-group/fred-refresh/internal/schema"
	"github.com/sells-group/fred-refresh/pkg/fred"
)

// addPathFlags registers the store and schema path overrides.
func addPathFlags(cmd *cobra.Command) {
	cmd.Flags().String("csv-file", "", "path to the data store file (overrides store.path)")
	cmd.Flags().String("schema-file", "", "path to the metric schema file (overrides schema.path)")
}

// applyPathFlags copies explicitly set path flags into c.
func applyPathFlags(cmd *cobra.Command, c *config.Config) {
	if cmd.Flags().Changed("csv-file") {
		c.Store.Path, _ = cmd.Flags().GetString("csv-file")
	}
	if cmd.Flags().Changed("schema-file") {
		c.Schema.Path, _ = cmd.Flags().GetString("schema-file")
	}
}

// splitMetrics parses a comma-separated id list, dropping blanks.
func splitMetrics(raw string) []string {
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// loadSchema reads the metric schema. An unreadable schema is a
// configuration error; invalid entries are logged and skipped.
func loadSchema(path string) (*schema.Schema, error) {
	s, err := schema.Load(path)
	if err != nil {
		return nil, &config.ConfigurationError{Reason: "load schema", Err: err}
	}
	log := zap.L().With(zap.String("component", "schema"), zap.String("path", path))
	for _, w := range s.Warnings {
		log.Warn(w)
	}
	for _, p := range s.Problems {
		log.Warn("skipping invalid metric", zap.Int("index", p.Index), zap.String("series", p.ID), zap.String("problem", p.Message))
	}
	log.Info("loaded schema", zap.Int("entries", s.Entries), zap.Int("valid", len(s.Metrics)))
	return s, nil
}

// newFredClient builds the FRED client from configuration.
func newFredClient(fc config.FredConfig, apiKey string) fred.Client {
	opts := []fred.Option{
		fred.WithMinInterval(fc.MinInterval),
		fred.WithTimeout(fc.Timeout),
		fred.WithMaxAttempts(fc.MaxAttempts),
	}
	if fc.BaseURL != "" {
		opts = append(opts, fred.WithBaseURL(fc.BaseURL))
	}
	if fc.RetryBackoff > 0 {
		opts = append(opts, fred.WithRetryBackoff(fc.RetryBackoff))
	}
	return fred.NewClient(apiKey, opts...)
}
