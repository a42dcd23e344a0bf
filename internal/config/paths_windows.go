//go:build windows

package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths() []string {
	local := os.Getenv("LOCALAPPDATA")
	programData := os.Getenv("ProgramData")
	return []string{
		filepath.Join(local, "fwsecrets", "secrets.yaml"),
		filepath.Join(programData, "fwsecrets", "secrets.yaml"),
	}
}
