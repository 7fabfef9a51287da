//
// SPDX-License-Identifier: GPL-3.0-or-later
//

package listener

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSymbolicMode(t *testing.T) {
	mode, err := ParseSymbolicMode("rwxr-x---")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), mode)
}

func TestParseSymbolicModeAllPermissions(t *testing.T) {
	mode, err := ParseSymbolicMode("rwxrwxrwx")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o777), mode)
}

func TestParseSymbolicModeInvalidLength(t *testing.T) {
	_, err := ParseSymbolicMode("rwx")
	assert.Error(t, err)
}

func TestParseSymbolicModeInvalidChar(t *testing.T) {
	_, err := ParseSymbolicMode("rZxr-x---")
	assert.Error(t, err)
}

func TestBindUnixRemovesStaleSocket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sock")

	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	ln, err := BindUnix(path, "")
	require.NoError(t, err)
	defer ln.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.ModeSocket, info.Mode().Type())
}

func TestBindUnixAppliesPermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sock")

	ln, err := BindUnix(path, "rwxr-x---")
	require.NoError(t, err)
	defer ln.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
}
