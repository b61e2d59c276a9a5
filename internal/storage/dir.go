package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// SubDirectories defines the storage subdirectories
	DirContent  = "content"
	DirMetadata = "metadata"
	DirSpool    = "spool"
)

// StoragePaths holds all storage directory paths
type StoragePaths struct {
	BaseDir     string
	ContentDir  string
	MetadataDir string
	SpoolDir    string
}

// InitDirectories creates and validates all storage directories
func InitDirectories(baseDir string) (*StoragePaths, error) {
	baseDir = filepath.Clean(baseDir)

	paths := &StoragePaths{
		BaseDir:     baseDir,
		ContentDir:  filepath.Join(baseDir, DirContent),
		MetadataDir: filepath.Join(baseDir, DirMetadata),
		SpoolDir:    filepath.Join(baseDir, DirSpool),
	}

	dirs := []string{
		paths.BaseDir,
		paths.ContentDir,
		paths.MetadataDir,
		paths.SpoolDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Validate directories exist and are writable
	for _, dir := range dirs {
		if err := validateDirectory(dir); err != nil {
			return nil, fmt.Errorf("directory validation failed for %s: %w", dir, err)
		}
	}

	return paths, nil
}

// validateDirectory checks if a directory exists and is writable
func validateDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("directory does not exist: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory: %s", path)
	}

	// Check write permissions by attempting to create a temp file
	testFile := filepath.Join(path, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	file.Close()
	os.Remove(testFile)

	return nil
}

// CleanSpool removes leftover spool files of a previous run
func CleanSpool(spoolDir string) (int, error) {
	entries, err := os.ReadDir(spoolDir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(spoolDir, e.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
