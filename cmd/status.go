package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fred-refresh/internal/config"
	"github.com/sells-group/fred-refresh/internal/report"
	"github.com/sells-group/fred-refresh/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report coverage and freshness of stored data",
	Long: `Summarizes the record store: totals, expected versus stored metrics, last
dates per series, missing values, freshness per category, and recent fetches.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyPathFlags(cmd, cfg)
		return runStatus(cmd.Context(), cfg, cmd.OutOrStdout(), time.Now().UTC())
	},
}

func init() {
	addPathFlags(statusCmd)
	rootCmd.AddCommand(statusCmd)
}

func runStatus(ctx context.Context, c *config.Config, out io.Writer, now time.Time) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Store.Driver == store.DriverCSV {
		if _, err := os.Stat(c.Store.Path); errors.Is(err, fs.ErrNotExist) {
			_, _ = fmt.Fprintf(out, "Data file not found: %s\nRun `fred-refresh refresh` first.\n", c.Store.Path)
			return nil
		}
	}

	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return &config.ConfigurationError{Reason: "open store", Err: err}
	}
	defer st.Close() //nolint:errcheck

	records, err := st.LoadAll(ctx)
	if err != nil {
		return &config.ConfigurationError{Reason: "load store", Err: err}
	}

	var expected []string
	if s, err := loadSchema(c.Schema.Path); err != nil {
		zap.L().Warn("cannot load schema, coverage will list every stored metric as extra", zap.Error(err))
	} else {
		expected = s.IDs()
	}

	_, _ = fmt.Fprintf(out, "Loaded %d records from %s\n\n", len(records), storeLabel(c.Store))
	return report.Build(records, expected, now).Render(out)
}

func storeLabel(sc config.StoreConfig) string {
	if sc.Driver == store.DriverPostgres {
		return "postgres table " + store.PostgresTable
	}
	return sc.Path
}
