package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// EnableService registers a scheduled task that runs
// `tuberdash serve args...` at logon.
func EnableService(args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot determine executable path: %w", err)
	}
	argv := serviceArgs(exe, args)
	argv[0] = `"` + exe + `"`
	out, err := exec.Command("schtasks", "/create",
		"/tn", ServiceName,
		"/sc", "onlogon",
		"/tr", strings.Join(argv, " "),
		"/f",
	).CombinedOutput()
	if err != nil {
		return fmt.Errorf("schtasks create: %s: %w", string(out), err)
	}
	return nil
}

// DisableService removes the scheduled task.
func DisableService() error {
	out, err := exec.Command("schtasks", "/delete", "/tn", ServiceName, "/f").CombinedOutput()
	if err != nil {
		return fmt.Errorf("schtasks delete: %s: %w", string(out), err)
	}
	return nil
}
