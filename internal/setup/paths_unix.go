//go:build !windows

package setup

import (
	"os"
	"path/filepath"
)

func ResolvePaths(mode InstallMode) Paths {
	if mode == ModeUser {
		home, _ := os.UserHomeDir()
		base := filepath.Join(home, ".fwsecrets")
		return Paths{
			ConfigDir:  base,
			ConfigPath: filepath.Join(base, "secrets.yaml"),
			HeaderPath: filepath.Join(base, "secrets.h"),
		}
	}
	return Paths{
		ConfigDir:  "/etc/fwsecrets",
		ConfigPath: "/etc/fwsecrets/secrets.yaml",
		HeaderPath: "/etc/fwsecrets/secrets.h",
	}
}
