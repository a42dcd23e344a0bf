//go:build unix

package config

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// CheckFilePermissions rejects a secrets file that other users can read or
// that belongs to someone else.
func CheckFilePermissions(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if mode := uint32(st.Mode) & 0o077; mode != 0 {
		return fmt.Errorf("%s is accessible by group or others (mode %#o), run: chmod 600 %s",
			path, uint32(st.Mode)&0o777, path)
	}
	if uid := uint32(unix.Geteuid()); st.Uid != uid && uid != 0 {
		return fmt.Errorf("%s is owned by uid %d, not the current user (%d)", path, st.Uid, uid)
	}
	return nil
}
