//go:build windows

package setup

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

var errNotElevated = errors.New("writing secrets under %ProgramData% requires Administrator privileges")

// CheckElevation reports whether the process may write the system-wide
// secrets file. The pseudo token of the current process needs no Close.
func CheckElevation(mode InstallMode) error {
	if mode == ModeUser {
		return nil
	}
	if windows.GetCurrentProcessToken().IsElevated() {
		return nil
	}
	return fmt.Errorf("%w\n\nFrom an elevated prompt run:\n  %s init --mode system\nor keep the secrets per user:\n  %s init --mode user",
		errNotElevated, os.Args[0], os.Args[0])
}
