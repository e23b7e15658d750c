package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ringvec/ingest"
)

var (
	genCount    int
	genInterval time.Duration
	genSeed     uint64
)

var genLogsCmd = &cobra.Command{
	Use:   "gen-logs",
	Short: "Write synthetic log lines to stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err := ingest.NewLogGenerator(genSeed).Stream(ctx, cmd.OutOrStdout(), genCount, genInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	genLogsCmd.Flags().IntVarP(&genCount, "count", "n", 0, "number of lines (0 = until interrupted)")
	genLogsCmd.Flags().DurationVar(&genInterval, "interval", 100*time.Millisecond, "pause between lines")
	genLogsCmd.Flags().Uint64Var(&genSeed, "seed", uint64(time.Now().UnixNano()), "random seed")
	rootCmd.AddCommand(genLogsCmd)
}
