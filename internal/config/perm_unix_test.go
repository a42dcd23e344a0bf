//go:build unix

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wifi: {}\n"), 0600))
	assert.NoError(t, CheckFilePermissions(path))

	require.NoError(t, os.Chmod(path, 0644))
	assert.Error(t, CheckFilePermissions(path))

	assert.Error(t, CheckFilePermissions(filepath.Join(t.TempDir(), "missing")))
}
