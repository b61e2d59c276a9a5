package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	paths, err := InitDirectories(tmpDir)
	require.NoError(t, err)
	assert.NotNil(t, paths)

	// Verify all directories were created
	assert.DirExists(t, paths.BaseDir)
	assert.DirExists(t, paths.ContentDir)
	assert.DirExists(t, paths.MetadataDir)
	assert.DirExists(t, paths.SpoolDir)
}

func TestInitDirectories_FileInTheWay(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, DirContent), []byte("x"), 0644))

	_, err := InitDirectories(tmpDir)
	assert.Error(t, err)
}

func TestCleanSpool(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "dexterity-spool-1"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "dexterity-spool-2"), []byte("b"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "keep"), 0755))

	removed, err := CleanSpool(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
