//go:build !linux && !darwin && !windows

package daemon

import (
	"fmt"
	"runtime"
)

func EnableService(args []string) error {
	return fmt.Errorf("installing a service is not supported on %s", runtime.GOOS)
}

func DisableService() error {
	return fmt.Errorf("installing a service is not supported on %s", runtime.GOOS)
}
