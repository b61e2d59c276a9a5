package storage

import (
	"fmt"

	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/storage/contentstore"
	"github.com/flowmesh/dexterity/internal/storage/metastore"
	"github.com/rs/zerolog"
)

// Builder provides a fluent interface for building Storage instances
type Builder struct {
	config    *Config
	metaStore *metastore.Store
	log       zerolog.Logger
}

// NewBuilder creates a new Storage builder
func NewBuilder() *Builder {
	return &Builder{
		config: DefaultConfig(),
		log:    logger.WithComponent("storage.builder"),
	}
}

// WithConfig sets the configuration
func (b *Builder) WithConfig(config *Config) *Builder {
	b.config = config
	return b
}

// WithDataDir sets the data directory (convenience method)
func (b *Builder) WithDataDir(dataDir string) *Builder {
	if b.config == nil {
		b.config = DefaultConfig()
	}
	b.config.DataDir = dataDir
	return b
}

// WithSyncWrites sets whether content writes are synced
func (b *Builder) WithSyncWrites(sync bool) *Builder {
	if b.config == nil {
		b.config = DefaultConfig()
	}
	b.config.SyncWrites = sync
	return b
}

// WithMetaStore sets a custom metadata store (optional, will create default if not set)
func (b *Builder) WithMetaStore(metaStore *metastore.Store) *Builder {
	b.metaStore = metaStore
	return b
}

// Build creates and initializes the Storage instance
func (b *Builder) Build() (*Storage, error) {
	if b.config == nil {
		b.config = DefaultConfig()
	}

	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	paths, err := InitDirectories(b.config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize directories: %w", err)
	}

	if removed, err := CleanSpool(paths.SpoolDir); err != nil {
		b.log.Warn().Err(err).Msg("Failed to clean spool directory")
	} else if removed > 0 {
		b.log.Info().Int("files", removed).Msg("Removed stale spool files")
	}

	// Initialize metadata store if not provided
	if b.metaStore == nil {
		metaStore, err := metastore.NewStore(paths.MetadataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create metadata store: %w", err)
		}
		b.metaStore = metaStore
	}

	contentStore, err := contentstore.Open(paths.ContentDir, contentstore.Options{Sync: b.config.SyncWrites})
	if err != nil {
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}

	storage := &Storage{
		paths:        paths,
		metaStore:    b.metaStore,
		contentStore: contentStore,
		log:          logger.WithComponent("storage"),
	}

	b.log.Info().
		Str("data_dir", b.config.DataDir).
		Msg("Storage built successfully")

	return storage, nil
}
