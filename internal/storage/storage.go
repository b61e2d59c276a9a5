package storage

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/flowmesh/dexterity/internal/storage/contentstore"
	"github.com/flowmesh/dexterity/internal/storage/metastore"
	"github.com/rs/zerolog"
)

// Storage represents the complete storage system: type descriptors in
// the metadata store and content records in the content store
type Storage struct {
	paths        *StoragePaths
	metaStore    *metastore.Store
	contentStore *contentstore.Store
	log          zerolog.Logger
	mu           sync.RWMutex
	closed       bool
}

// New creates a new storage system with default settings
func New(dataDir string) (*Storage, error) {
	return NewBuilder().WithDataDir(dataDir).Build()
}

// MetaStore returns the metadata store
func (s *Storage) MetaStore() *metastore.Store {
	return s.metaStore
}

// ContentStore returns the content store
func (s *Storage) ContentStore() *contentstore.Store {
	return s.contentStore
}

// Paths returns the storage paths
func (s *Storage) Paths() *StoragePaths {
	return s.paths
}

// Close gracefully shuts down the storage system
func (s *Storage) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.log.Info().Msg("Closing storage...")

	var lastErr error

	if err := s.contentStore.Close(); err != nil {
		s.log.Error().Err(err).Msg("Failed to close content store")
		lastErr = err
	}

	// Flush metadata store
	if err := s.metaStore.Flush(); err != nil {
		s.log.Error().Err(err).Msg("Failed to flush metadata store")
		lastErr = err
	}

	s.closed = true
	s.log.Info().Msg("Storage closed")

	return lastErr
}

// Validate validates the storage system integrity
func (s *Storage) Validate() error {
	for _, dir := range []string{s.paths.BaseDir, s.paths.ContentDir, s.paths.MetadataDir} {
		if err := validateStorageDirectory(dir); err != nil {
			return fmt.Errorf("directory %s invalid: %w", dir, err)
		}
	}

	// Try to load metadata
	if err := s.metaStore.Load(); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load metadata: %w", err)
		}
		// Metadata file doesn't exist yet, that's okay
	}

	return nil
}

// validateStorageDirectory checks if a directory exists and is accessible
func validateStorageDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}
