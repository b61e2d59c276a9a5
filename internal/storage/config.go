package storage

import "fmt"

// Config holds configuration for the storage system
type Config struct {
	// DataDir is the base directory for storage
	DataDir string

	// SyncWrites flushes content writes to disk before acknowledging them
	SyncWrites bool
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:    "./data",
		SyncWrites: true,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return ErrInvalidConfig{Field: "DataDir", Reason: "cannot be empty"}
	}
	return nil
}

// ErrInvalidConfig indicates an invalid storage configuration
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid storage config %s: %s", e.Field, e.Reason)
}
