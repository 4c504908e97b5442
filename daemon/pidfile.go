package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/atlas-daemon/atlasd/errors"
)

// Paths are the filesystem artifacts in the daemon runtime directory
// (spec.md §3, §6): the PID file and the Unix domain socket.
type Paths struct {
	RuntimeDir string
	SocketPath string
	PIDPath    string
}

// DefaultPaths resolves the runtime directory from ATLAS_DIR (default
// "<user_home>/.atlas/daemon") and the socket path from ATLAS_SOCK
// (spec.md §6's recognized environment variables), deriving the PID
// file path from the runtime directory.
func DefaultPaths() (Paths, error) {
	dir := os.Getenv("ATLAS_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, errors.Wrap(err, "resolve user home directory")
		}
		dir = filepath.Join(home, ".atlas", "daemon")
	}

	socket := os.Getenv("ATLAS_SOCK")
	if socket == "" {
		socket = filepath.Join(dir, "atlas.sock")
	}

	return Paths{
		RuntimeDir: dir,
		SocketPath: socket,
		PIDPath:    filepath.Join(dir, "atlas.pid"),
	}, nil
}

// EnsureRuntimeDir creates the runtime directory if absent.
func (p Paths) EnsureRuntimeDir() error {
	if err := os.MkdirAll(p.RuntimeDir, 0o700); err != nil {
		return errors.Wrap(err, "ensure daemon runtime directory")
	}
	return nil
}

// checkLivePID reports whether the pid named in p.PIDPath belongs to a
// live process (spec.md §3: "if the PID file exists and names a live
// process, the daemon is considered running"), grounded on the liveness
// probe pattern of sending signal 0 to test process existence without
// actually signaling it.
func (p Paths) checkLivePID() (pid int, live bool) {
	data, err := os.ReadFile(p.PIDPath)
	if err != nil {
		return 0, false
	}
	pid, err = strconv.Atoi(string(data))
	if err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return pid, false
	}
	return pid, true
}

// AcquirePIDLock implements spec.md §4.9 steps 2-3: refuse to start if a
// live daemon already owns the PID file; otherwise remove any stale PID
// or socket file and write our own PID.
func (p Paths) AcquirePIDLock() error {
	if pid, live := p.checkLivePID(); live {
		return errors.Newf("another atlasd instance is already running (pid %d)", pid)
	}

	if err := os.Remove(p.PIDPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove stale pid file")
	}
	if err := os.Remove(p.SocketPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove stale socket file")
	}

	if err := os.WriteFile(p.PIDPath, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errors.Wrap(err, "write pid file")
	}
	return nil
}

// ReleasePIDLock removes the PID file. Idempotent: removing an
// already-absent file is a no-op (spec.md §8, "Idempotence").
func (p Paths) ReleasePIDLock() error {
	if err := os.Remove(p.PIDPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove pid file")
	}
	return nil
}
