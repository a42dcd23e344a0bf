//go:build !unix

package config

// CheckFilePermissions is a no-op where POSIX modes don't apply.
func CheckFilePermissions(path string) error {
	return nil
}
