// Package daemon runs `tuberdash serve` in the background: pid file
// bookkeeping, stopping the detached process and installing it as a
// per-user service.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/freshly/tuberdash/internal/config"
)

// ServiceName is the unit, agent and task name the service is installed under.
const ServiceName = "tuberdash-serve"

// ErrNotRunning is returned by Stop when no live process owns the pid file.
var ErrNotRunning = errors.New("dev server is not running")

// Paths locates the pid and log files of the background server.
type Paths struct {
	Dir string
}

// Default returns the paths under ~/.tuberdash.
func Default() Paths {
	return Paths{Dir: config.ConfigDirPath()}
}

func (p Paths) Pid() string {
	return filepath.Join(p.Dir, config.ServePidFile)
}

func (p Paths) Log() string {
	return filepath.Join(p.Dir, config.ServeLogFile)
}

// WritePid records pid atomically with 0600 permissions.
func (p Paths) WritePid(pid int) error {
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return err
	}
	tmp := p.Pid() + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)+"\n"), 0600); err != nil {
		return err
	}
	return os.Rename(tmp, p.Pid())
}

func (p Paths) ReadPid() (int, error) {
	data, err := os.ReadFile(p.Pid())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", p.Pid())
	}
	return pid, nil
}

func (p Paths) RemovePid() {
	os.Remove(p.Pid())
}

// Running returns the recorded pid and whether that process is alive.
func (p Paths) Running() (int, bool) {
	pid, err := p.ReadPid()
	if err != nil {
		return 0, false
	}
	if !processAlive(pid) {
		return pid, false
	}
	return pid, true
}

// Stop terminates the recorded process and removes the pid file. A stale
// pid file is cleaned up and reported as ErrNotRunning.
func (p Paths) Stop() error {
	pid, running := p.Running()
	if !running {
		p.RemovePid()
		return ErrNotRunning
	}
	if err := terminate(pid); err != nil {
		return fmt.Errorf("stop dev server (pid %d): %w", pid, err)
	}
	p.RemovePid()
	return nil
}

// serviceArgs is the command line the installed service runs.
func serviceArgs(exe string, args []string) []string {
	return append([]string{exe, "serve"}, args...)
}
