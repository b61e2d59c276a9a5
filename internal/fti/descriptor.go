package fti

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/flowmesh/dexterity/internal/behavior"
	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/event"
	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/schema"
	"github.com/flowmesh/dexterity/internal/security"
)

// Environment bundles the site-wide collaborators a descriptor consults
type Environment struct {
	SiteID      string
	Named       *schema.Named
	Generated   *schema.Generated
	Loader      *schema.Loader
	Behaviors   *behavior.Registry
	Checker     security.Checker
	Permissions *security.Permissions
	Bus         *event.Bus
	Cache       *schema.Cache
}

// Descriptor is the persistent configuration of one content type
type Descriptor struct {
	env *Environment

	mu    sync.RWMutex
	props Properties

	// static schema memo, dropped when the schema property changes
	static atomic.Pointer[schema.Schema]
}

// NewDescriptor creates a descriptor from props, filling the factory
// and add view defaults when they are not given
func NewDescriptor(env *Environment, props Properties) (*Descriptor, error) {
	if err := content.CheckID(props.ID); err != nil {
		return nil, err
	}
	if props.Klass != "" && !props.Klass.Valid() {
		return nil, InvalidPropertyError{Name: PropKlass, Reason: "must be item or container"}
	}

	return &Descriptor{
		env:   env,
		props: props.clone().withDefaults(),
	}, nil
}

// ID returns the type identifier
func (d *Descriptor) ID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.props.ID
}

func (d *Descriptor) setID(id string) {
	d.mu.Lock()
	d.props.ID = id
	d.mu.Unlock()
}

func (d *Descriptor) logger() zerolog.Logger {
	return logger.WithPortalType("fti", d.ID())
}

// Properties returns a snapshot of the descriptor state
func (d *Descriptor) Properties() Properties {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.props.clone()
}

// Property returns the current value of the named property
func (d *Descriptor) Property(name string) (any, error) {
	if name == PropID {
		return d.ID(), nil
	}
	p, ok := lookupProperty(name)
	if !ok {
		return nil, InvalidPropertyError{Name: name, Reason: "unknown property"}
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return p.get(&d.props), nil
}

func (d *Descriptor) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.props.Title
}

func (d *Descriptor) Factory() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.props.Factory
}

func (d *Descriptor) Klass() content.Kind {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.props.Klass
}

func (d *Descriptor) Behaviors() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.props.Behaviors...)
}

// HasDynamicSchema reports whether the type schema is generated from a
// model rather than named statically
func (d *Descriptor) HasDynamicSchema() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.props.Schema == ""
}

// SchemaName returns the generated schema name of the type
func (d *Descriptor) SchemaName() string {
	return schema.SchemaName(d.env.SiteID, d.ID())
}

// LookupSchema returns the main schema of the type. Static schemas are
// resolved by name once and memoized; dynamic schemas come from the
// generated registry, compiled from the model on first use.
func (d *Descriptor) LookupSchema() (*schema.Schema, error) {
	d.mu.RLock()
	name := d.props.Schema
	d.mu.RUnlock()

	if name != "" {
		if s := d.static.Load(); s != nil {
			return s, nil
		}
		s, err := d.env.Named.Resolve(name)
		if err != nil {
			return nil, ConfigurationError{TypeID: d.ID(), Reason: err.Error()}
		}
		d.static.Store(s)
		return s, nil
	}

	generated := d.SchemaName()
	if s, ok := d.env.Generated.Get(generated); ok {
		return s, nil
	}

	model, err := d.LookupModel()
	if err != nil {
		return nil, err
	}
	return d.env.Generated.Set(generated, model.Schema()), nil
}

// LookupModel returns the model of the type: the inline source first,
// then the model file, then a one-slot model around the static schema
func (d *Descriptor) LookupModel() (*schema.Model, error) {
	d.mu.RLock()
	source, file, static := d.props.ModelSource, d.props.ModelFile, d.props.Schema
	id := d.props.ID
	d.mu.RUnlock()

	switch {
	case source != "":
		model, err := d.env.Loader.LoadString(source)
		if err != nil {
			return nil, ConfigurationError{TypeID: id, Reason: err.Error()}
		}
		return model, nil
	case file != "":
		model, err := d.env.Loader.LoadFile(file, true)
		if err != nil {
			return nil, ConfigurationError{TypeID: id, Reason: err.Error()}
		}
		return model, nil
	case static != "":
		s, err := d.LookupSchema()
		if err != nil {
			return nil, err
		}
		return schema.NewSchemaOnlyModel(s), nil
	}

	return nil, ConfigurationError{TypeID: id, Reason: "no schema, model source or model file"}
}

// LookupSubtypes returns the marker interfaces of the enabled behaviors
func (d *Descriptor) LookupSubtypes() []*schema.Schema {
	var out []*schema.Schema
	for _, b := range d.behaviors() {
		if b.Marker != nil {
			out = append(out, b.Marker)
		}
	}
	return out
}

// LookupBehaviorSchemata returns the field-bearing interfaces of the
// enabled behaviors
func (d *Descriptor) LookupBehaviorSchemata() []*schema.Schema {
	var out []*schema.Schema
	for _, b := range d.behaviors() {
		if b.Interface.Len() > 0 {
			out = append(out, b.Interface)
		}
	}
	return out
}

func (d *Descriptor) behaviors() []*behavior.Behavior {
	names := d.Behaviors()
	out := make([]*behavior.Behavior, 0, len(names))
	for _, name := range names {
		b, ok := d.env.Behaviors.Lookup(name)
		if !ok {
			log := d.logger()
			log.Warn().Str("behavior", name).Msg("Behavior not found")
			continue
		}
		out = append(out, b)
	}
	return out
}

// IsConstructionAllowed reports whether the caller may add an object
// of this type to container
func (d *Descriptor) IsConstructionAllowed(ctx context.Context, container any) bool {
	d.mu.RLock()
	perm := d.props.AddPermission
	d.mu.RUnlock()

	if perm == "" {
		return false
	}
	return security.Check(ctx, d.env.Checker, d.env.Permissions, perm, container)
}

// AllowType reports whether objects of this type may contain objects of
// typeID. Unfiltered types accept any globally allowed or unknown type;
// lookup resolves type identifiers.
func (d *Descriptor) AllowType(typeID string, lookup func(string) (*Descriptor, bool)) bool {
	d.mu.RLock()
	allowed := d.props.AllowedContentTypes
	filter := d.props.FilterContentTypes
	d.mu.RUnlock()

	for _, t := range allowed {
		if t == typeID {
			return true
		}
	}
	if filter {
		return false
	}

	other, ok := lookup(typeID)
	if !ok {
		return true
	}
	return other.Properties().GlobalAllow
}

// UpdateProperty sets one property and notifies a modification with
// its previous value when the value changed
func (d *Descriptor) UpdateProperty(ctx context.Context, name string, value any) error {
	desc, changed, err := d.setProperty(name, value)
	if err != nil || !changed {
		return err
	}
	return d.notify(ctx, desc)
}

// ManageChangeProperties sets several properties, notifying one
// modification per changed property in property order
func (d *Descriptor) ManageChangeProperties(ctx context.Context, values map[string]any) error {
	if err := checkPropertyNames(values); err != nil {
		return err
	}
	for _, p := range properties {
		value, ok := values[p.name]
		if !ok {
			continue
		}
		if err := d.UpdateProperty(ctx, p.name, value); err != nil {
			return err
		}
	}
	return nil
}

// EditProperties sets several properties and notifies a single
// modification describing every changed property
func (d *Descriptor) EditProperties(ctx context.Context, values map[string]any) error {
	if err := checkPropertyNames(values); err != nil {
		return err
	}

	var descs []event.Description
	for _, p := range properties {
		value, ok := values[p.name]
		if !ok {
			continue
		}
		desc, changed, err := d.setProperty(p.name, value)
		if err != nil {
			return err
		}
		if changed {
			descs = append(descs, desc)
		}
	}
	if len(descs) == 0 {
		return nil
	}
	return d.notify(ctx, descs...)
}

func checkPropertyNames(values map[string]any) error {
	for name := range values {
		if _, ok := lookupProperty(name); !ok {
			return InvalidPropertyError{Name: name, Reason: "unknown property"}
		}
	}
	return nil
}

func (d *Descriptor) setProperty(name string, value any) (event.Description, bool, error) {
	p, ok := lookupProperty(name)
	if !ok {
		return event.Description{}, false, InvalidPropertyError{Name: name, Reason: "unknown property"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	old := p.get(&d.props)
	next := d.props.clone()
	if err := p.set(&next, value); err != nil {
		return event.Description{}, false, err
	}
	if propertyEqual(old, p.get(&next)) {
		return event.Description{}, false, nil
	}
	d.props = next
	if name == PropSchema {
		d.static.Store(nil)
	}
	return event.Description{Attribute: name, OldValue: old}, true, nil
}

func (d *Descriptor) notify(ctx context.Context, descs ...event.Description) error {
	if d.env.Bus == nil {
		return nil
	}
	if err := d.env.Bus.Notify(ctx, d, event.Modified{Descriptions: descs}); err != nil {
		return fmt.Errorf("type %s: %w", d.ID(), err)
	}
	return nil
}
