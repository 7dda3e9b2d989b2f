package main

import (
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fred-refresh/internal/config"
)

var cfg *config.Config

// errRunFailed marks a run that finished with at least one failed metric.
var errRunFailed = eris.New("one or more metrics failed to refresh")

var rootCmd = &cobra.Command{
	Use:   "fred-refresh",
	Short: "Incremental FRED time-series sync",
	Long: `Fetches new observations for the tracked FRED series and appends them to a
local append-only record store, skipping dates that are already stored.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return &config.ConfigurationError{Reason: "init logger", Err: err}
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &config.ConfigurationError{Reason: "invalid arguments", Err: err}
	})
}

// exitCode maps a command error to the process exit status: 0 on success,
// 2 for configuration problems, 1 for everything else.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *config.ConfigurationError
	if errors.As(err, &ce) {
		return 2
	}
	return 1
}

func main() {
	err := rootCmd.Execute()
	os.Exit(exitCode(err))
}
