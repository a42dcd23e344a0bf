//go:build !windows

package setup

import (
	"errors"
	"fmt"
	"os"
)

var errNotElevated = errors.New("writing secrets under /etc requires root privileges")

// CheckElevation reports whether the process may write the system-wide
// secrets file.
func CheckElevation(mode InstallMode) error {
	if mode == ModeUser || os.Geteuid() == 0 {
		return nil
	}
	return fmt.Errorf("%w\n\nRun with sudo:\n  sudo %s init --mode system\nor keep the secrets per user:\n  %s init --mode user",
		errNotElevated, os.Args[0], os.Args[0])
}
