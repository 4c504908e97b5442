// atlasd is Atlas's daemon core: a single-host, long-running process
// that exposes JSON-RPC over a Unix domain socket, dispatches requests
// across the ingest/search/consolidate/watch/admin lanes, and fans
// events back to subscribed clients (spec.md §1).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atlas-daemon/atlasd/logger"
)

var verbosity int

var rootCmd = &cobra.Command{
	Use:   "atlasd",
	Short: "Atlas daemon core",
	Long: `atlasd is the Atlas knowledge daemon: a local, always-on process
that ingests text artifacts into a vector store, serves semantic search
to co-located clients over a Unix domain socket, and periodically
consolidates near-duplicate content.

Examples:
  atlasd start                 # run the daemon in the foreground
  atlasd status                # query a running daemon over its socket
  atlasd stop                  # signal a running daemon to shut down`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := levelFromVerbosity(verbosity)
		return logger.Initialize(false, level)
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase output verbosity (repeat for more detail)")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	// Last-resort net below daemon.Daemon.Run's own recover: catches a
	// panic in command setup or a non-"start" subcommand, which never
	// reaches the daemon's Stop funnel because no Daemon was built.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, "atlasd: fatal:", r)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
