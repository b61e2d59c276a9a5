package fti

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/flowmesh/dexterity/internal/event"
	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/schema"
)

// Component capabilities registered for every type
const (
	CapabilityDescriptor = "dexterity.fti"
	CapabilityFactory    = "dexterity.factory"
)

// DynamicInfo tags registrations made by the type lifecycle. Only
// registrations carrying it are ever removed by it.
const DynamicInfo = "dexterity.dynamic"

// LifecycleObserver receives lifecycle activity
type LifecycleObserver interface {
	LifecycleEvent(kind string)
	SchemaRecompiled(typeID string)
}

// Lifecycle keeps component registrations and the schema cache in step
// with type descriptor events
type Lifecycle struct {
	tool     *Tool
	observer LifecycleObserver
	log      zerolog.Logger
}

func newLifecycle(tool *Tool) *Lifecycle {
	return &Lifecycle{
		tool: tool,
		log:  logger.WithComponent("fti-lifecycle"),
	}
}

// Lifecycle returns the lifecycle handlers of the tool
func (t *Tool) Lifecycle() *Lifecycle {
	return t.lifecycle
}

// SetObserver installs an activity observer. Call before first use.
func (l *Lifecycle) SetObserver(o LifecycleObserver) {
	l.observer = o
}

// Added registers the components of a new type
func (l *Lifecycle) Added(_ context.Context, subject any, _ event.Event) error {
	d, ok := subject.(*Descriptor)
	if !ok {
		return nil
	}
	l.observe("added")
	return l.register(d)
}

// Removed unregisters the components of a removed type
func (l *Lifecycle) Removed(_ context.Context, subject any, ev event.Event) error {
	d, ok := subject.(*Descriptor)
	if !ok {
		return nil
	}
	removed, ok := ev.(event.Removed)
	if !ok {
		return nil
	}
	l.observe("removed")
	l.unregister(d, removed.OldName)
	return nil
}

// Renamed moves the registrations of a type from its old identifier to
// the new one. Moves to another container are ignored.
func (l *Lifecycle) Renamed(_ context.Context, subject any, ev event.Event) error {
	d, ok := subject.(*Descriptor)
	if !ok {
		return nil
	}
	moved, ok := ev.(event.Moved)
	if !ok || !moved.Renamed() {
		return nil
	}
	l.observe("renamed")
	l.unregister(d, moved.OldName)
	return l.register(d)
}

// Modified reacts to property changes: a new factory name is
// re-registered, and schema affecting changes resync the generated
// schema and invalidate the cache
func (l *Lifecycle) Modified(_ context.Context, subject any, ev event.Event) error {
	d, ok := subject.(*Descriptor)
	if !ok {
		return nil
	}
	modified, ok := ev.(event.Modified)
	if !ok {
		return nil
	}
	l.observe("modified")

	changed := modified.Changed()
	typeID := d.ID()
	registry := l.tool.registry

	if old, ok := changed[PropFactory]; ok {
		oldFactory, _ := old.(string)
		l.unregisterFactory(oldFactory)

		factory := d.Factory()
		if _, exists := registry.Lookup(CapabilityFactory, factory); !exists {
			if err := registry.Register(l.tool.newFactory(typeID), CapabilityFactory, factory, DynamicInfo); err != nil {
				return err
			}
		}
	}

	_, behaviors := changed[PropBehaviors]
	_, static := changed[PropSchema]
	_, source := changed[PropModelSource]
	_, file := changed[PropModelFile]
	if !behaviors && !static && !source && !file {
		return nil
	}

	// Static schemas are resolved by name; only dynamic types own a
	// generated schema
	if d.HasDynamicSchema() && (source || file || static) {
		if err := l.resync(d); err != nil {
			return err
		}
	}

	l.tool.env.Cache.Invalidate(typeID)
	return nil
}

// resync recompiles the generated schema of a dynamic type. A type left
// without any model loses its binding.
func (l *Lifecycle) resync(d *Descriptor) error {
	typeID := d.ID()
	props := d.Properties()
	if props.ModelSource == "" && props.ModelFile == "" {
		l.tool.env.Generated.Clear(d.SchemaName())
		l.log.Debug().Str("portal_type", typeID).Msg("Cleared generated schema")
		return nil
	}
	model, err := d.LookupModel()
	if err != nil {
		return err
	}
	l.tool.env.Generated.Set(d.SchemaName(), model.Schema())
	if l.observer != nil {
		l.observer.SchemaRecompiled(typeID)
	}
	l.log.Debug().Str("portal_type", typeID).Msg("Resynced generated schema")
	return nil
}

// register adds the descriptor and factory components of d unless
// components are already registered under those names
func (l *Lifecycle) register(d *Descriptor) error {
	registry := l.tool.registry
	typeID := d.ID()

	if _, exists := registry.Lookup(CapabilityDescriptor, typeID); !exists {
		if err := registry.Register(d, CapabilityDescriptor, typeID, DynamicInfo); err != nil {
			return err
		}
	}

	factory := d.Factory()
	if _, exists := registry.Lookup(CapabilityFactory, factory); !exists {
		if err := registry.Register(l.tool.newFactory(typeID), CapabilityFactory, factory, DynamicInfo); err != nil {
			return err
		}
	}

	l.log.Debug().Str("portal_type", typeID).Str("factory", factory).Msg("Registered type components")
	return nil
}

// unregister removes the local registrations of a type known as oldName
func (l *Lifecycle) unregister(d *Descriptor, oldName string) {
	env := l.tool.env
	env.Cache.Invalidate(oldName)
	env.Generated.Clear(schema.SchemaName(env.SiteID, oldName))
	l.tool.registry.Unregister(CapabilityDescriptor, oldName)
	l.unregisterFactory(d.Factory())

	l.log.Debug().Str("portal_type", oldName).Msg("Unregistered type components")
}

// unregisterFactory removes a factory registered by the lifecycle,
// unless a registered type still uses it
func (l *Lifecycle) unregisterFactory(name string) {
	registry := l.tool.registry

	for _, reg := range registry.All(CapabilityDescriptor) {
		if other, ok := reg.Component.(*Descriptor); ok && other.Factory() == name {
			return
		}
	}

	reg, ok := registry.LookupLocal(CapabilityFactory, name)
	if !ok || reg.Info != DynamicInfo {
		return
	}
	registry.Unregister(CapabilityFactory, name)
}

func (l *Lifecycle) observe(kind string) {
	if l.observer != nil {
		l.observer.LifecycleEvent(kind)
	}
}
