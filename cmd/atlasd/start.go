package main

import (
	"context"
	"os"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
	"github.com/spf13/cobra"

	"github.com/atlas-daemon/atlasd/daemon"
	"github.com/atlas-daemon/atlasd/errors"
	"github.com/atlas-daemon/atlasd/logger"
	"github.com/atlas-daemon/atlasd/version"
)

var startWatchRoots []string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the foreground",
	Long: `Start atlasd in the foreground: bind the Unix domain socket, start
the System Pressure Monitor and (if --watch is given) the File Watcher,
and serve JSON-RPC requests until interrupted.

The operator's own supervisor (systemd, launchd, a process manager) owns
backgrounding and restart policy; atlasd itself never forks.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringSliceVar(&startWatchRoots, "watch", nil, "ingest roots to auto-watch for changes (repeatable)")
}

func runStart(cmd *cobra.Command, args []string) error {
	paths, err := daemon.DefaultPaths()
	if err != nil {
		return errors.Wrap(err, "resolve daemon paths")
	}

	d, err := daemon.New(daemon.Config{
		Paths:      paths,
		WatchRoots: startWatchRoots,
		Version:    version.Get().Version,
	}, daemon.Collaborators{
		Storage: daemon.UnconfiguredStorage{},
		Embed:   daemon.UnconfiguredEmbeddings{},
		LLM:     daemon.UnconfiguredLLM{},
		Ingest:  daemon.UnconfiguredIngest{},
		Agent:   daemon.UnconfiguredAgent{},
	})
	if err != nil {
		return errors.WithHint(err, "check that no other atlasd instance owns this socket/pid path")
	}

	printBanner(paths.SocketPath, paths.PIDPath)

	if err := d.Run(context.Background()); err != nil {
		return errors.Wrap(err, "daemon run")
	}
	return nil
}

func printBanner(socketPath, pidPath string) {
	_ = pterm.DefaultBigText.WithLetters(putils.LettersFromStringWithStyle("atlasd", pterm.NewStyle(pterm.FgCyan))).Render()
	pterm.Info.Printfln("socket: %s", socketPath)
	pterm.Info.Printfln("pid file: %s", pidPath)
	pterm.Info.Printfln("pid: %d", os.Getpid())
	pterm.Success.Println("press Ctrl+C for graceful shutdown")
	logger.Infow("atlasd starting", "pid", os.Getpid(), "socket", socketPath)
}
