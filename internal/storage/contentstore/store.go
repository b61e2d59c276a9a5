// Package contentstore persists content records in a Pebble database
// keyed by physical path.
package contentstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"

	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/logger"
)

func init() {
	// Field values travel as interface values
	gob.Register(time.Time{})
}

// Options configures the store
type Options struct {
	// Sync flushes every write to disk before it is acknowledged
	Sync bool
}

// Store manages content records
type Store struct {
	db     *pebble.DB
	dir    string
	wo     *pebble.WriteOptions
	log    zerolog.Logger
	mu     sync.RWMutex
	closed bool
}

// Open opens or creates the store in dir
func Open(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}

	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open Pebble DB: %w", err)
	}

	wo := pebble.NoSync
	if opts.Sync {
		wo = pebble.Sync
	}

	s := &Store{
		db:  db,
		dir: dir,
		wo:  wo,
		log: logger.WithComponent("contentstore"),
	}
	s.log.Info().Str("dir", dir).Msg("Content store opened")
	return s, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		s.log.Error().Err(err).Msg("Failed to close Pebble DB")
		return err
	}
	s.log.Info().Msg("Content store closed")
	return nil
}

// RecordPath returns the physical path a record is stored under
func RecordPath(rec content.Record) string {
	switch rec.ParentPath {
	case "":
		return "/"
	case "/":
		return "/" + rec.ID
	default:
		return rec.ParentPath + "/" + rec.ID
	}
}

func checkPath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return InvalidPathError{Path: path, Reason: "must be absolute"}
	}
	if path != "/" && strings.HasSuffix(path, "/") {
		return InvalidPathError{Path: path, Reason: "trailing slash"}
	}
	return nil
}

// descendantPrefix is the key prefix shared by everything below path
func descendantPrefix(path string) []byte {
	if path == "/" {
		return []byte("/")
	}
	return []byte(path + "/")
}

// upperBound returns the smallest key greater than every key with prefix
func upperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// encodeRecord encodes a record using GOB
func encodeRecord(rec content.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeRecord decodes a GOB encoded record
func decodeRecord(data []byte) (content.Record, error) {
	var rec content.Record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return content.Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}

func (s *Store) checkOpen() error {
	if s.closed {
		return StoreClosedError{}
	}
	return nil
}

// Put stores a record under its physical path
func (s *Store) Put(ctx context.Context, rec content.Record) error {
	path := RecordPath(rec)
	_, span := startSpan(ctx, "put", path)
	defer span.End()

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.db.Set([]byte(path), data, s.wo); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to store %s: %w", path, err)
	}
	return nil
}

// Get returns the record stored at path
func (s *Store) Get(ctx context.Context, path string) (content.Record, error) {
	_, span := startSpan(ctx, "get", path)
	defer span.End()

	if err := checkPath(path); err != nil {
		return content.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return content.Record{}, err
	}

	value, closer, err := s.db.Get([]byte(path))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return content.Record{}, RecordNotFoundError{Path: path}
		}
		span.RecordError(err)
		return content.Record{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer closer.Close()

	// Decode before the closer frees the value
	return decodeRecord(value)
}

// Delete removes the record at path and every record below it
func (s *Store) Delete(ctx context.Context, path string) error {
	_, span := startSpan(ctx, "delete", path)
	defer span.End()

	if err := checkPath(path); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete([]byte(path), nil); err != nil {
		return err
	}
	prefix := descendantPrefix(path)
	if err := batch.DeleteRange(prefix, upperBound(prefix), nil); err != nil {
		return err
	}
	if err := batch.Commit(s.wo); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// List returns the records below path, ordered by path
func (s *Store) List(ctx context.Context, path string) ([]content.Record, error) {
	_, span := startSpan(ctx, "list", path)
	defer span.End()

	if err := checkPath(path); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	prefix := descendantPrefix(path)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var out []content.Record
	for iter.First(); iter.Valid(); iter.Next() {
		if string(iter.Key()) == path {
			continue
		}
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			s.log.Warn().Err(err).Str("key", string(iter.Key())).Msg("Skipping undecodable record")
			continue
		}
		out = append(out, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return out, nil
}
