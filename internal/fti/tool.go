package fti

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flowmesh/dexterity/internal/component"
	"github.com/flowmesh/dexterity/internal/event"
	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/schema"
	"github.com/flowmesh/dexterity/internal/storage/metastore"
)

// ToolPath is the container path reported in type lifecycle events
const ToolPath = "/portal_types"

// Tool is the types tool: the container of type descriptors of a site.
// It persists descriptors in the metastore and is the authoritative
// source of the schema cache.
type Tool struct {
	env       *Environment
	store     *metastore.Store
	registry  *component.Registry
	lifecycle *Lifecycle
	log       zerolog.Logger

	mu    sync.RWMutex
	types map[string]*Descriptor
	order []string
}

// NewTool creates a types tool. Components of the types are registered
// in registry.
func NewTool(env *Environment, store *metastore.Store, registry *component.Registry) *Tool {
	t := &Tool{
		env:      env,
		store:    store,
		registry: registry,
		log:      logger.WithComponent("types-tool"),
		types:    make(map[string]*Descriptor),
	}
	t.lifecycle = newLifecycle(t)
	return t
}

// Environment returns the collaborators shared by the descriptors
func (t *Tool) Environment() *Environment {
	return t.env
}

// Registry returns the component registry of the site
func (t *Tool) Registry() *component.Registry {
	return t.registry
}

// Subscribe registers the lifecycle and persistence handlers on the bus
// of the environment. Lifecycle handlers run before persistence.
func (t *Tool) Subscribe() {
	bus := t.env.Bus
	bus.Subscribe(event.KindAdded, t.lifecycle.Added)
	bus.Subscribe(event.KindRemoved, t.lifecycle.Removed)
	bus.Subscribe(event.KindMoved, t.lifecycle.Renamed)
	bus.Subscribe(event.KindModified, t.lifecycle.Modified)
	bus.Subscribe(event.KindModified, t.persistModified)
}

// Load restores the persisted descriptors of the site and registers
// their components
func (t *Tool) Load() error {
	resources, err := t.store.ListResources(t.env.SiteID, metastore.ResourceType)
	if err != nil {
		return fmt.Errorf("failed to list types: %w", err)
	}

	for _, res := range resources {
		var props Properties
		if err := json.Unmarshal(res.Spec, &props); err != nil {
			return fmt.Errorf("failed to decode type %s: %w", res.Name, err)
		}
		d, err := NewDescriptor(t.env, props)
		if err != nil {
			return fmt.Errorf("failed to restore type %s: %w", res.Name, err)
		}

		t.mu.Lock()
		t.types[d.ID()] = d
		t.order = append(t.order, d.ID())
		t.mu.Unlock()

		if err := t.lifecycle.register(d); err != nil {
			return err
		}
		t.env.Cache.Invalidate(d.ID())
	}

	t.log.Info().Int("types", len(resources)).Msg("Loaded type descriptors")
	return nil
}

// Add creates a descriptor from props, persists it and notifies its
// addition
func (t *Tool) Add(ctx context.Context, props Properties) (*Descriptor, error) {
	d, err := NewDescriptor(t.env, props)
	if err != nil {
		return nil, err
	}
	id := d.ID()

	t.mu.Lock()
	if _, exists := t.types[id]; exists {
		t.mu.Unlock()
		return nil, ExistsError{TypeID: id}
	}
	if err := t.save(d, true); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.types[id] = d
	t.order = append(t.order, id)
	t.mu.Unlock()

	// Drops any negative entry recorded while the type did not exist
	t.env.Cache.Invalidate(id)

	if err := t.env.Bus.Notify(ctx, d, event.Added{NewParent: ToolPath, NewName: id}); err != nil {
		return nil, err
	}

	t.log.Info().Str("portal_type", id).Msg("Added type")
	return d, nil
}

// Remove deletes a descriptor and notifies its removal
func (t *Tool) Remove(ctx context.Context, id string) error {
	t.mu.Lock()
	d, ok := t.types[id]
	if !ok {
		t.mu.Unlock()
		return NotFoundError{TypeID: id}
	}
	if err := t.store.DeleteResource(t.resourcePath(id)); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to delete type %s: %w", id, err)
	}
	delete(t.types, id)
	t.order = removeString(t.order, id)
	t.mu.Unlock()

	if err := t.env.Bus.Notify(ctx, d, event.Removed{OldParent: ToolPath, OldName: id}); err != nil {
		return err
	}

	t.log.Info().Str("portal_type", id).Msg("Removed type")
	return nil
}

// Rename changes the identifier of a type. When the factory name follows
// the identifier it is updated first, producing its own modification;
// the move notification follows.
func (t *Tool) Rename(ctx context.Context, oldID, newID string) (*Descriptor, error) {
	d, ok := t.Get(oldID)
	if !ok {
		return nil, NotFoundError{TypeID: oldID}
	}
	if oldID == newID {
		return d, nil
	}
	if _, exists := t.Get(newID); exists {
		return nil, ExistsError{TypeID: newID}
	}
	if _, err := NewDescriptor(t.env, Properties{ID: newID}); err != nil {
		return nil, err
	}

	if d.Factory() == oldID {
		if err := d.UpdateProperty(ctx, PropFactory, newID); err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	if _, exists := t.types[newID]; exists {
		t.mu.Unlock()
		return nil, ExistsError{TypeID: newID}
	}
	d.setID(newID)
	if err := t.save(d, true); err != nil {
		d.setID(oldID)
		t.mu.Unlock()
		return nil, err
	}
	if err := t.store.DeleteResource(t.resourcePath(oldID)); err != nil {
		t.log.Warn().Err(err).Str("portal_type", oldID).Msg("Failed to delete renamed type record")
	}
	delete(t.types, oldID)
	t.types[newID] = d
	for i, id := range t.order {
		if id == oldID {
			t.order[i] = newID
		}
	}
	t.mu.Unlock()

	t.env.Cache.Invalidate(newID)

	ev := event.Moved{OldParent: ToolPath, OldName: oldID, NewParent: ToolPath, NewName: newID}
	if err := t.env.Bus.Notify(ctx, d, ev); err != nil {
		return nil, err
	}

	t.log.Info().Str("old_id", oldID).Str("new_id", newID).Msg("Renamed type")
	return d, nil
}

// Get returns the descriptor of a type
func (t *Tool) Get(id string) (*Descriptor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.types[id]
	return d, ok
}

// List returns the descriptors in creation order
func (t *Tool) List() []*Descriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Descriptor, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.types[id])
	}
	return out
}

// AllowType reports whether objects of containerType may contain
// objects of typeID
func (t *Tool) AllowType(containerType, typeID string) bool {
	d, ok := t.Get(containerType)
	if !ok {
		return false
	}
	return d.AllowType(typeID, t.Get)
}

// LookupSchema implements schema.Source
func (t *Tool) LookupSchema(typeID string) (*schema.Schema, error) {
	d, ok := t.Get(typeID)
	if !ok {
		return nil, nil
	}
	return d.LookupSchema()
}

// LookupSubtypes implements schema.Source
func (t *Tool) LookupSubtypes(typeID string) ([]*schema.Schema, error) {
	d, ok := t.Get(typeID)
	if !ok {
		return nil, nil
	}
	return d.LookupSubtypes(), nil
}

// LookupBehaviorSchemata implements schema.Source
func (t *Tool) LookupBehaviorSchemata(typeID string) ([]*schema.Schema, error) {
	d, ok := t.Get(typeID)
	if !ok {
		return nil, nil
	}
	return d.LookupBehaviorSchemata(), nil
}

// FactoryFor returns the registered factory component of a type
func (t *Tool) FactoryFor(typeID string) (*Factory, error) {
	d, ok := t.Get(typeID)
	if !ok {
		return nil, NotFoundError{TypeID: typeID}
	}
	reg, ok := t.registry.Lookup(CapabilityFactory, d.Factory())
	if !ok {
		return nil, ConfigurationError{TypeID: typeID, Reason: fmt.Sprintf("no factory %q registered", d.Factory())}
	}
	f, ok := reg.Component.(*Factory)
	if !ok {
		return nil, ConfigurationError{TypeID: typeID, Reason: fmt.Sprintf("factory %q has type %T", d.Factory(), reg.Component)}
	}
	return f, nil
}

func (t *Tool) newFactory(typeID string) *Factory {
	return &Factory{TypeID: typeID, tool: t}
}

func (t *Tool) persistModified(_ context.Context, subject any, _ event.Event) error {
	d, ok := subject.(*Descriptor)
	if !ok {
		return nil
	}
	if current, ok := t.Get(d.ID()); !ok || current != d {
		return nil
	}
	return t.save(d, false)
}

// save writes the descriptor record; create fails on an existing record
func (t *Tool) save(d *Descriptor, create bool) error {
	spec, err := json.Marshal(d.Properties())
	if err != nil {
		return fmt.Errorf("failed to encode type %s: %w", d.ID(), err)
	}
	res := &metastore.Resource{
		Site: t.env.SiteID,
		Kind: metastore.ResourceType,
		Name: d.ID(),
		Spec: spec,
	}

	if create {
		err = t.store.CreateResource(res)
	} else {
		err = t.store.PutResource(res)
	}
	if err != nil {
		var exists metastore.ResourceExistsError
		if errors.As(err, &exists) {
			return ExistsError{TypeID: d.ID()}
		}
		return fmt.Errorf("failed to save type %s: %w", d.ID(), err)
	}
	return nil
}

func (t *Tool) resourcePath(id string) string {
	return metastore.ResourcePath(t.env.SiteID, metastore.ResourceType, id)
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
