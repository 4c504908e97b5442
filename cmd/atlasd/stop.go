package main

import (
	"os"
	"strconv"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/atlas-daemon/atlasd/daemon"
	"github.com/atlas-daemon/atlasd/errors"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Signal a running daemon to shut down",
	Long: `Read the PID file in the daemon runtime directory and send it
SIGTERM, triggering atlasd's own ordered shutdown (spec.md §4.9). This
command does not itself tear anything down; it only delivers the
signal atlasd's own signal handler already listens for.`,
	RunE: runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	paths, err := daemon.DefaultPaths()
	if err != nil {
		return errors.Wrap(err, "resolve daemon paths")
	}

	data, err := os.ReadFile(paths.PIDPath)
	if err != nil {
		if os.IsNotExist(err) {
			pterm.Warning.Println("no pid file found; atlasd does not appear to be running")
			return nil
		}
		return errors.Wrap(err, "read pid file")
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return errors.Wrapf(err, "parse pid file %q", paths.PIDPath)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return errors.Wrapf(err, "find process %d", pid)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return errors.WithHint(errors.Wrapf(err, "signal process %d", pid), "the pid file may be stale; remove it manually if the process no longer exists")
	}

	pterm.Success.Printfln("sent SIGTERM to atlasd (pid %d)", pid)
	return nil
}
