package contentstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/schema"
)

// Save stamps the modification time of obj and stores its record
func (s *Store) Save(ctx context.Context, obj *content.Content) error {
	obj.Touch(time.Now().UTC())
	return s.Put(ctx, obj.Record())
}

// SaveTree saves obj and every descendant
func (s *Store) SaveTree(ctx context.Context, obj *content.Content) error {
	return obj.Walk(func(c *content.Content) error {
		return s.Put(ctx, c.Record())
	})
}

// Move re-keys the subtree at oldPath under the record now held by obj.
// The caller has already renamed or re-parented obj.
func (s *Store) Move(ctx context.Context, oldPath string, obj *content.Content) error {
	if err := s.Delete(ctx, oldPath); err != nil {
		return err
	}
	return s.SaveTree(ctx, obj)
}

// Loader restores objects from records
type Loader struct {
	Types   content.SchemaLookup
	Resolve func(name string) (*schema.Schema, error)
}

// LoadTree restores the object at path with its descendants. Children
// listed by a record but missing from the store are skipped.
func (s *Store) LoadTree(ctx context.Context, path string, loader Loader) (*content.Content, error) {
	rec, err := s.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	obj, err := content.Restore(rec, loader.Types, loader.Resolve)
	if err != nil {
		return nil, err
	}

	for _, id := range rec.Children {
		childPath := RecordPath(content.Record{ParentPath: path, ID: id})
		child, err := s.LoadTree(ctx, childPath, loader)
		if err != nil {
			var notFound RecordNotFoundError
			if errors.As(err, &notFound) {
				s.log.Warn().Str("path", childPath).Msg("Child record missing")
				continue
			}
			return nil, err
		}
		if err := obj.AddChild(child); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", childPath, err)
		}
	}
	return obj, nil
}
