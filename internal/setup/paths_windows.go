//go:build windows

package setup

import (
	"os"
	"path/filepath"
)

func ResolvePaths(mode InstallMode) Paths {
	root := os.Getenv("ProgramData")
	if mode == ModeUser {
		root = os.Getenv("LOCALAPPDATA")
	}
	base := filepath.Join(root, "fwsecrets")
	return Paths{
		ConfigDir:  base,
		ConfigPath: filepath.Join(base, "secrets.yaml"),
		HeaderPath: filepath.Join(base, "secrets.h"),
	}
}
