package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...commands.Version=v1.2.3".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ringvec %s\n", Version)
		if verbose {
			fmt.Fprintf(out, "  go:     %s\n", runtime.Version())
			if configFrom != "" {
				fmt.Fprintf(out, "  config: %s\n", configFrom)
			} else {
				fmt.Fprintf(out, "  config: (defaults)\n")
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
