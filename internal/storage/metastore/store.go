package metastore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowmesh/dexterity/internal/logger"
)

const (
	// DefaultMetadataFile is the default filename for metadata persistence
	DefaultMetadataFile = "resources.json"
)

// Store manages resource metadata with in-memory cache and disk persistence
type Store struct {
	mu        sync.RWMutex
	resources map[string]*Resource
	filePath  string
	dirty     bool
	log       zerolog.Logger
}

// NewStore creates a new metadata store
func NewStore(metadataDir string) (*Store, error) {
	filePath := filepath.Join(metadataDir, DefaultMetadataFile)

	store := &Store{
		resources: make(map[string]*Resource),
		filePath:  filePath,
		log:       logger.WithComponent("metastore"),
	}

	if err := store.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load metadata: %w", err)
		}
		store.log.Info().Str("file", filePath).Msg("Metadata file does not exist, will be created on first write")
	}

	return store, nil
}

// CreateResource stores a new resource
func (s *Store) CreateResource(res *Resource) error {
	if err := res.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := res.GetPath()
	if _, exists := s.resources[path]; exists {
		return ResourceExistsError{Path: path}
	}

	now := time.Now()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	s.resources[path] = copyResource(res)
	s.dirty = true

	if err := s.flush(); err != nil {
		delete(s.resources, path)
		return fmt.Errorf("failed to persist resource: %w", err)
	}

	s.log.Info().Str("path", path).Str("kind", string(res.Kind)).Msg("Resource created")
	return nil
}

// PutResource creates or replaces a resource, keeping its creation time
func (s *Store) PutResource(res *Resource) error {
	if err := res.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := res.GetPath()
	previous, existed := s.resources[path]

	stored := copyResource(res)
	stored.UpdatedAt = time.Now()
	if existed {
		stored.CreatedAt = previous.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.UpdatedAt
	}

	s.resources[path] = stored
	s.dirty = true

	if err := s.flush(); err != nil {
		if existed {
			s.resources[path] = previous
		} else {
			delete(s.resources, path)
		}
		return fmt.Errorf("failed to persist resource: %w", err)
	}

	s.log.Debug().Str("path", path).Msg("Resource stored")
	return nil
}

// GetResource retrieves a resource by path
func (s *Store) GetResource(path string) (*Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, exists := s.resources[path]
	if !exists {
		return nil, ResourceNotFoundError{Path: path}
	}

	return copyResource(res), nil
}

// ListResources lists resources matching the filters, ordered by creation
// time then name
func (s *Store) ListResources(site string, kind ResourceKind) ([]*Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*Resource, 0, len(s.resources))
	for path, res := range s.resources {
		if site != "" && res.Site != site {
			continue
		}
		if kind != "" && res.Kind != kind {
			continue
		}
		if res.GetPath() != path {
			continue
		}
		results = append(results, copyResource(res))
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.Before(results[j].CreatedAt)
		}
		return results[i].Name < results[j].Name
	})

	return results, nil
}

// UpdateResource updates an existing resource
func (s *Store) UpdateResource(path string, updater func(*Resource) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, exists := s.resources[path]
	if !exists {
		return ResourceNotFoundError{Path: path}
	}

	updated := copyResource(res)
	if err := updater(updated); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	if updated.GetPath() != path {
		return InvalidResourceError{Field: "name", Reason: "cannot change in an update"}
	}

	updated.UpdatedAt = time.Now()
	s.resources[path] = updated
	s.dirty = true

	if err := s.flush(); err != nil {
		s.resources[path] = res
		return fmt.Errorf("failed to persist update: %w", err)
	}

	s.log.Info().Str("path", path).Msg("Resource updated")
	return nil
}

// DeleteResource removes a resource
func (s *Store) DeleteResource(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, exists := s.resources[path]
	if !exists {
		return ResourceNotFoundError{Path: path}
	}

	delete(s.resources, path)
	s.dirty = true

	if err := s.flush(); err != nil {
		s.resources[path] = res
		s.log.Error().Err(err).Str("path", path).Msg("Failed to persist resource deletion")
		return fmt.Errorf("failed to persist deletion: %w", err)
	}

	s.log.Info().Str("path", path).Msg("Resource deleted")
	return nil
}

// Load loads metadata from disk
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var resources map[string]*Resource
	if err := json.Unmarshal(data, &resources); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if resources == nil {
		resources = make(map[string]*Resource)
	}

	s.resources = resources
	s.dirty = false

	s.log.Info().
		Str("file", s.filePath).
		Int("count", len(s.resources)).
		Msg("Metadata loaded from disk")

	return nil
}

// Flush persists metadata to disk
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.flush()
}

// flush persists to disk without locking (assumes lock is held)
func (s *Store) flush() error {
	if !s.dirty {
		return nil
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	data, err := json.MarshalIndent(s.resources, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	// Write to temporary file first, then rename (atomic write)
	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	if err := os.Rename(tmpFile, s.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename metadata file: %w", err)
	}

	s.dirty = false
	return nil
}

// copyResource creates a deep copy of a resource
func copyResource(res *Resource) *Resource {
	copied := *res
	if res.Spec != nil {
		copied.Spec = make(json.RawMessage, len(res.Spec))
		copy(copied.Spec, res.Spec)
	}
	return &copied
}
