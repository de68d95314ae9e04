//go:build !windows

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRejectsGroupReadableFile(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("passphrase: x\n"), 0600))
	require.NoError(t, os.Chmod(path, 0644))

	_, err := Load("")
	assert.ErrorIs(t, err, ErrInsecure)
}

func TestLoadRejectsSymlink(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)

	target := filepath.Join(t.TempDir(), "real.yaml")
	require.NoError(t, os.WriteFile(target, []byte("passphrase: x\n"), 0600))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, FileName)))

	_, err := Load("")
	assert.ErrorIs(t, err, ErrSymlink)
}
