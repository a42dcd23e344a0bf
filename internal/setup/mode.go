package setup

import (
	"fmt"
	"strings"
)

// InstallMode selects where the secrets file is written.
type InstallMode int

const (
	ModeSystem InstallMode = iota
	ModeUser
)

func (m InstallMode) String() string {
	switch m {
	case ModeSystem:
		return "system"
	case ModeUser:
		return "user"
	default:
		return "unknown"
	}
}

// ParseMode accepts "system" or "user", case-insensitively.
func ParseMode(s string) (InstallMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "system":
		return ModeSystem, nil
	case "user":
		return ModeUser, nil
	default:
		return 0, fmt.Errorf("invalid install mode %q (expected \"system\" or \"user\")", s)
	}
}

// Paths are the install locations for one mode.
type Paths struct {
	ConfigDir  string
	ConfigPath string
	HeaderPath string
}
