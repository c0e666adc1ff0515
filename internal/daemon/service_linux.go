package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/freshly/tuberdash/internal/config"
)

func unitPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "systemd", "user", ServiceName+".service")
}

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=tuberdash development GraphQL server
After=network.target

[Service]
Type=simple
ExecStart={{.ExecStart}}
Environment={{.EnvVar}}=1
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`))

// EnableService installs and starts a systemd user unit running
// `tuberdash serve args...`.
func EnableService(args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot determine executable path: %w", err)
	}
	path := unitPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = unitTemplate.Execute(f, struct {
		ExecStart string
		EnvVar    string
	}{
		ExecStart: strings.Join(serviceArgs(exe, args), " "),
		EnvVar:    config.EnvServeDaemon,
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if out, err := exec.Command("systemctl", "--user", "daemon-reload").CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl daemon-reload: %s: %w", strings.TrimSpace(string(out)), err)
	}
	if out, err := exec.Command("systemctl", "--user", "enable", "--now", ServiceName+".service").CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl enable: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// DisableService stops and removes the unit.
func DisableService() error {
	unit := ServiceName + ".service"
	exec.Command("systemctl", "--user", "disable", "--now", unit).Run()
	if err := os.Remove(unitPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file: %w", err)
	}
	exec.Command("systemctl", "--user", "daemon-reload").Run()
	return nil
}
