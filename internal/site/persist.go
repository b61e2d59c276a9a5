package site

import (
	"context"
	"fmt"

	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/event"
	"github.com/flowmesh/dexterity/internal/storage/contentstore"
)

// subscribePersistence keeps the content store in step with the tree.
// Containers are saved along with their children since their records
// list the child order.
func (s *Site) subscribePersistence() {
	bus := s.env.Bus
	bus.Subscribe(event.KindAdded, s.persistAdded)
	bus.Subscribe(event.KindModified, s.persistModified)
	bus.Subscribe(event.KindMoved, s.persistMoved)
	bus.Subscribe(event.KindRemoved, s.persistRemoved)
}

func (s *Site) persistAdded(ctx context.Context, subject any, _ event.Event) error {
	obj, ok := subject.(*content.Content)
	if !ok {
		return nil
	}
	cs := s.store.ContentStore()
	if err := cs.SaveTree(ctx, obj); err != nil {
		return fmt.Errorf("failed to save %s: %w", obj.PhysicalPath(), err)
	}
	return s.saveParent(ctx, obj.Parent())
}

func (s *Site) persistModified(ctx context.Context, subject any, _ event.Event) error {
	obj, ok := subject.(*content.Content)
	if !ok {
		return nil
	}
	if err := s.store.ContentStore().Save(ctx, obj); err != nil {
		return fmt.Errorf("failed to save %s: %w", obj.PhysicalPath(), err)
	}
	return nil
}

func (s *Site) persistMoved(ctx context.Context, subject any, ev event.Event) error {
	obj, ok := subject.(*content.Content)
	if !ok {
		return nil
	}
	moved := ev.(event.Moved)
	oldPath := contentstore.RecordPath(content.Record{ParentPath: moved.OldParent, ID: moved.OldName})
	if err := s.store.ContentStore().Move(ctx, oldPath, obj); err != nil {
		return fmt.Errorf("failed to move %s: %w", oldPath, err)
	}
	if err := s.saveParent(ctx, obj.Parent()); err != nil {
		return err
	}
	if moved.OldParent != moved.NewParent {
		return s.saveParentPath(ctx, moved.OldParent)
	}
	return nil
}

func (s *Site) persistRemoved(ctx context.Context, subject any, ev event.Event) error {
	if _, ok := subject.(*content.Content); !ok {
		return nil
	}
	removed := ev.(event.Removed)
	oldPath := contentstore.RecordPath(content.Record{ParentPath: removed.OldParent, ID: removed.OldName})
	if err := s.store.ContentStore().Delete(ctx, oldPath); err != nil {
		return fmt.Errorf("failed to delete %s: %w", oldPath, err)
	}
	return s.saveParentPath(ctx, removed.OldParent)
}

func (s *Site) saveParent(ctx context.Context, parent *content.Content) error {
	if parent == nil {
		return nil
	}
	if err := s.store.ContentStore().Put(ctx, parent.Record()); err != nil {
		return fmt.Errorf("failed to save %s: %w", parent.PhysicalPath(), err)
	}
	return nil
}

// saveParentPath saves the container at path. Containers no longer in
// the tree, such as the parent of a removed subtree, are skipped.
func (s *Site) saveParentPath(ctx context.Context, path string) error {
	if s.root == nil {
		return nil
	}
	parent, err := s.root.Traverse(path)
	if err != nil {
		return nil
	}
	return s.saveParent(ctx, parent)
}
