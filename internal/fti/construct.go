package fti

import (
	"context"
	"fmt"

	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/event"
	"github.com/flowmesh/dexterity/internal/security"
)

// AllowedIn reports whether container accepts objects of typeID.
// Containers without a known type accept globally allowed types only.
func (t *Tool) AllowedIn(container *content.Content, typeID string) bool {
	if _, ok := t.Get(container.PortalType()); ok {
		return t.AllowType(container.PortalType(), typeID)
	}
	d, ok := t.Get(typeID)
	return ok && d.Properties().GlobalAllow
}

// Construct creates an object of typeID named id inside container. The
// type must be allowed there and the caller must hold its add
// permission. values initialize the fields before the object is added.
func (t *Tool) Construct(ctx context.Context, container *content.Content, typeID, id string, values map[string]any) (*content.Content, error) {
	if !container.IsContainer() {
		return nil, content.NotContainerError{Path: container.PhysicalPath()}
	}
	d, ok := t.Get(typeID)
	if !ok {
		return nil, NotFoundError{TypeID: typeID}
	}
	if !t.AllowedIn(container, typeID) {
		return nil, DisallowedTypeError{Container: container.PhysicalPath(), TypeID: typeID}
	}
	if !d.IsConstructionAllowed(ctx, container) {
		return nil, security.ForbiddenError{
			Permission: d.Properties().AddPermission,
			Target:     container.PhysicalPath(),
		}
	}

	if _, exists := container.Child(id); exists {
		return nil, content.ExistsError{Container: container.PhysicalPath(), ID: id}
	}

	factory, err := t.FactoryFor(typeID)
	if err != nil {
		return nil, err
	}
	obj, err := factory.Create(id)
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		if _, err := content.ApplyFields(obj, values); err != nil {
			return nil, err
		}
	}

	if err := t.env.Bus.Notify(ctx, obj, event.Created{}); err != nil {
		return nil, err
	}
	if err := container.AddChild(obj); err != nil {
		return nil, err
	}
	ev := event.Added{NewParent: container.PhysicalPath(), NewName: id}
	if err := t.env.Bus.Notify(ctx, obj, ev); err != nil {
		return nil, fmt.Errorf("failed to finish construction of %s: %w", id, err)
	}

	t.log.Debug().Str("portal_type", typeID).Str("path", obj.PhysicalPath()).Msg("Constructed content")
	return obj, nil
}
