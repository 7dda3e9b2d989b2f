package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fred-refresh/internal/config"
	"github.com/sells-group/fred-refresh/internal/refresh"
	"github.com/sells-group/fred-refresh/internal/store"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch new observations for the tracked metrics",
	Long: `Fetches observations for each metric in the schema, starting the day after
its last stored date, and appends only dates newer than what is stored.

Use --metrics to restrict the run to some series (configuration order is kept).
Use --force to refetch the whole window and append it without filtering;
this intentionally stores duplicate dates.

Exit status is 0 when every metric succeeded, 1 when any metric failed, and 2
for configuration errors such as a missing API key or an unreadable store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := parseRefreshOpts(cmd)
		applyPathFlags(cmd, cfg)
		return runRefresh(cmd.Context(), cfg, opts, cmd.OutOrStdout())
	},
}

func init() {
	refreshCmd.Flags().Bool("force", false, "refetch the full window and append without filtering")
	refreshCmd.Flags().String("metrics", "", "comma-separated series ids to refresh (default: all)")
	addPathFlags(refreshCmd)
	rootCmd.AddCommand(refreshCmd)
}

func parseRefreshOpts(cmd *cobra.Command) refresh.RunOpts {
	force, _ := cmd.Flags().GetBool("force")
	raw, _ := cmd.Flags().GetString("metrics")
	return refresh.RunOpts{Force: force, Metrics: splitMetrics(raw)}
}

func runRefresh(ctx context.Context, c *config.Config, opts refresh.RunOpts, out io.Writer) error {
	log := zap.L().With(zap.String("command", "refresh"))

	if err := c.Validate(); err != nil {
		return err
	}
	window, err := c.WindowStartDate()
	if err != nil {
		return err
	}

	apiKey, err := config.LoadAPIKey(c)
	if err != nil {
		return err
	}

	sch, err := loadSchema(c.Schema.Path)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return &config.ConfigurationError{Reason: "open store", Err: err}
	}
	defer st.Close() //nolint:errcheck

	engine := refresh.NewEngine(newFredClient(c.Fred, apiKey), st, refresh.Options{
		WindowStart: window,
		MetricPause: c.Refresh.MetricPause,
	})

	log.Info("starting refresh",
		zap.String("store", c.Store.Driver),
		zap.Strings("metrics", opts.Metrics),
		zap.Bool("force", opts.Force),
	)

	summary, err := engine.Run(ctx, sch.Metrics, opts)
	if err != nil {
		var le *refresh.LoadError
		if errors.As(err, &le) {
			return &config.ConfigurationError{Reason: "load store", Err: err}
		}
		return eris.Wrap(err, "refresh")
	}

	formatSummary(out, summary)
	if !summary.OK() {
		return errRunFailed
	}
	return nil
}

// formatSummary writes the per-metric result table and the totals line.
func formatSummary(out io.Writer, s *refresh.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "METRIC\tSTATUS\tPOINTS\tERROR")
	_, _ = fmt.Fprintln(w, "------\t------\t------\t-----")

	for _, r := range s.Results {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.MetricID, status, r.PointsAdded, truncate(r.Error(), 80))
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nRefresh complete: %d succeeded, %d failed, %d points added in %s\n",
		s.Succeeded, s.Failed, s.PointsAdded, s.Elapsed.Round(time.Millisecond))
}

// truncate shortens s to at most limit runes.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
