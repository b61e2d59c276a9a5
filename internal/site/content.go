package site

import (
	"context"
	"maps"
	"slices"

	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/dav"
	"github.com/flowmesh/dexterity/internal/event"
	"github.com/flowmesh/dexterity/internal/fti"
	"github.com/flowmesh/dexterity/internal/security"
	"github.com/flowmesh/dexterity/internal/tracing"
)

// Construct creates an object of typeID named id in the container at
// containerPath
func (s *Site) Construct(ctx context.Context, containerPath, typeID, id string, values map[string]any) (obj *content.Content, err error) {
	ctx, span := tracing.StartTypeSpan(ctx, "construct", typeID)
	defer func() { tracing.EndSpan(span, err) }()

	container, err := s.Traverse(containerPath)
	if err != nil {
		return nil, err
	}
	obj, err = s.tool.Construct(ctx, container, typeID, id, values)
	if s.metrics != nil {
		s.metrics.Types.RecordConstruct(typeID, err)
	}
	return obj, err
}

// Update sets field values of obj. The caller needs the modify
// permission on obj and the write permission of every field.
func (s *Site) Update(ctx context.Context, obj *content.Content, values map[string]any) (changes []event.Description, err error) {
	ctx, span := tracing.StartContentSpan(ctx, "site", "update", obj.PortalType(), obj.PhysicalPath())
	defer func() { tracing.EndSpan(span, err) }()

	if !security.Check(ctx, s.env.Checker, s.env.Permissions, dav.PermissionModify, obj) {
		return nil, security.ForbiddenError{Permission: dav.PermissionModify, Target: obj.PhysicalPath()}
	}
	names := slices.Sorted(maps.Keys(values))
	if err := content.CheckWritable(ctx, s.env.Checker, s.env.Permissions, obj, names); err != nil {
		return nil, err
	}

	changes, err = content.ApplyFields(obj, values)
	if err != nil || len(changes) == 0 {
		return nil, err
	}
	if err := s.env.Bus.Notify(ctx, obj, event.Modified{Descriptions: changes}); err != nil {
		return nil, err
	}
	return changes, nil
}

// Rename changes the id of obj inside its container
func (s *Site) Rename(ctx context.Context, obj *content.Content, newID string) error {
	parent := obj.Parent()
	if parent == nil {
		return dav.MethodNotAllowedError{Method: "RENAME", Reason: "cannot rename the site root"}
	}
	if !security.Check(ctx, s.env.Checker, s.env.Permissions, dav.PermissionModify, parent) {
		return security.ForbiddenError{Permission: dav.PermissionModify, Target: parent.PhysicalPath()}
	}

	oldID := obj.ID()
	if oldID == newID {
		return nil
	}
	if err := parent.RenameChild(oldID, newID); err != nil {
		return err
	}
	ev := event.Moved{
		OldParent: parent.PhysicalPath(),
		OldName:   oldID,
		NewParent: parent.PhysicalPath(),
		NewName:   newID,
	}
	return s.env.Bus.Notify(ctx, obj, ev)
}

// Delete removes obj from its container
func (s *Site) Delete(ctx context.Context, obj *content.Content) error {
	return s.dav.Delete(ctx, obj)
}

// Readable returns the field values of obj the caller may read
func (s *Site) Readable(ctx context.Context, obj *content.Content) map[string]any {
	return content.NewAttributeValidator(s.env.Checker, s.env.Permissions).Readable(ctx, obj)
}

// Search queries the catalog
func (s *Site) Search(q content.Query) []content.Brain {
	return s.catalog.Search(q)
}

// PermissionManage guards type administration
const PermissionManage = "cmf.ManagePortal"

// CheckManage verifies the caller may administer types
func (s *Site) CheckManage(ctx context.Context) error {
	if !security.Check(ctx, s.env.Checker, s.env.Permissions, PermissionManage, nil) {
		return security.ForbiddenError{Permission: PermissionManage, Target: fti.ToolPath}
	}
	return nil
}

// AddType creates a content type
func (s *Site) AddType(ctx context.Context, props fti.Properties) (*fti.Descriptor, error) {
	if err := s.CheckManage(ctx); err != nil {
		return nil, err
	}
	d, err := s.tool.Add(ctx, props)
	if err != nil {
		return nil, err
	}
	s.updateRegistered()
	return d, nil
}

// UpdateType edits properties of a content type with a single
// modification
func (s *Site) UpdateType(ctx context.Context, id string, values map[string]any) (*fti.Descriptor, error) {
	if err := s.CheckManage(ctx); err != nil {
		return nil, err
	}
	d, ok := s.tool.Get(id)
	if !ok {
		return nil, fti.NotFoundError{TypeID: id}
	}
	if err := d.EditProperties(ctx, values); err != nil {
		return nil, err
	}
	return d, nil
}

// RemoveType deletes a content type. Existing objects keep their
// portal type.
func (s *Site) RemoveType(ctx context.Context, id string) error {
	if err := s.CheckManage(ctx); err != nil {
		return err
	}
	if err := s.tool.Remove(ctx, id); err != nil {
		return err
	}
	s.updateRegistered()
	return nil
}

// RenameType changes the identifier of a content type
func (s *Site) RenameType(ctx context.Context, oldID, newID string) (*fti.Descriptor, error) {
	if err := s.CheckManage(ctx); err != nil {
		return nil, err
	}
	return s.tool.Rename(ctx, oldID, newID)
}
