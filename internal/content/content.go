package content

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/flowmesh/dexterity/internal/schema"
)

// Kind selects the base behavior of a content object
type Kind string

const (
	KindItem      Kind = "item"
	KindContainer Kind = "container"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	return k == KindItem || k == KindContainer
}

var (
	// IContent is provided by every content object
	IContent = schema.Marker("dexterity.IDexterityContent")
	// IItem is provided by non-folderish content
	IItem = schema.Marker("dexterity.IDexterityItem")
	// IContainer is provided by folderish content
	IContainer = schema.Marker("dexterity.IDexterityContainer")
)

// KindInterfaces returns the interfaces implied by a kind
func KindInterfaces(k Kind) []*schema.Schema {
	if k == KindContainer {
		return []*schema.Schema{IContainer, IContent}
	}
	return []*schema.Schema{IItem, IContent}
}

// SchemaLookup resolves type schemas. *schema.Cache implements it.
type SchemaLookup interface {
	Get(typeID string) *schema.Schema
	Schemata(typeID string) []*schema.Schema
}

// Content is a content object: a core record of field values composed
// with ordered children for containers.
type Content struct {
	uid     string
	kind    Kind
	types   SchemaLookup
	created time.Time

	mu                  sync.RWMutex
	id                  string
	portalType          string
	parent              *Content
	fields              map[string]any
	modified            time.Time
	workflowState       string
	workflowInitialized bool

	provides atomic.Pointer[Provides]
	spec     atomic.Pointer[specCache]

	children *Children
}

// New creates a content object. types may be nil for objects that never
// fall back to schema defaults.
func New(id, portalType string, kind Kind, types SchemaLookup) *Content {
	now := time.Now().UTC()
	c := &Content{
		uid:        uuid.New().String(),
		kind:       kind,
		types:      types,
		created:    now,
		id:         id,
		portalType: portalType,
		fields:     make(map[string]any),
		modified:   now,
	}
	if kind == KindContainer {
		c.children = newChildren()
	}
	return c
}

// UID returns the immutable unique identifier
func (c *Content) UID() string { return c.uid }

// Kind returns the base kind
func (c *Content) Kind() Kind { return c.kind }

// IsContainer reports whether the object can hold children
func (c *Content) IsContainer() bool { return c.kind == KindContainer }

// Created returns the creation time
func (c *Content) Created() time.Time { return c.created }

// ID returns the object id within its parent
func (c *Content) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// PortalType returns the content type identifier, empty until the
// factory binds it
func (c *Content) PortalType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.portalType
}

// SetPortalType binds the content type identifier
func (c *Content) SetPortalType(typeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.portalType = typeID
}

// Parent returns the containing object or nil
func (c *Content) Parent() *Content {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parent
}

// PhysicalPath returns the slash separated path from the root
func (c *Content) PhysicalPath() string {
	var parts []string
	for cur := c; cur != nil; cur = cur.Parent() {
		if cur.Parent() == nil {
			break
		}
		parts = append(parts, cur.ID())
	}
	if len(parts) == 0 {
		return "/"
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

// Get returns an attribute: the stored value, else the schema default,
// else AttributeNotFoundError
func (c *Content) Get(name string) (any, error) {
	c.mu.RLock()
	v, ok := c.fields[name]
	portalType := c.portalType
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	if c.types != nil && portalType != "" {
		if f := schema.FindField(name, c.types.Schemata(portalType)...); f != nil {
			return cloneDefault(f.Default), nil
		}
	}

	return nil, AttributeNotFoundError{Name: name}
}

// cloneDefault copies mutable default values so callers cannot change the
// schema through the object
func cloneDefault(v any) any {
	switch t := v.(type) {
	case []string:
		return slices.Clone(t)
	case []byte:
		return slices.Clone(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneDefault(e)
		}
		return out
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneDefault(e)
		}
		return out
	}
	return v
}

// Value is Get without the error
func (c *Content) Value(name string) any {
	v, _ := c.Get(name)
	return v
}

// Title returns the title attribute as a string
func (c *Content) Title() string {
	s, _ := c.Value("title").(string)
	return s
}

// Has reports whether a value is stored for name
func (c *Content) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.fields[name]
	return ok
}

// Set stores an attribute value as is
func (c *Content) Set(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields[name] = value
}

// Delete drops a stored attribute value
func (c *Content) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.fields, name)
}

// Fields returns a copy of the stored values
func (c *Content) Fields() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.fields)
}

// Schemata returns the schema and behavior schemata of the object's type
func (c *Content) Schemata() []*schema.Schema {
	portalType := c.PortalType()
	if c.types == nil || portalType == "" {
		return nil
	}
	return c.types.Schemata(portalType)
}

// ModificationTime returns the persistence version stamp
func (c *Content) ModificationTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modified
}

// Touch stamps the modification time. Called by storage on save.
func (c *Content) Touch(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modified = t
}

// WorkflowState returns the workflow state
func (c *Content) WorkflowState() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.workflowState
}

// DirectlyProvides returns the per-object interface declaration or nil
func (c *Content) DirectlyProvides() *Provides {
	return c.provides.Load()
}

// SetDirectlyProvides replaces the per-object interface declaration
func (c *Content) SetDirectlyProvides(p *Provides) {
	c.provides.Store(p)
}

// AlsoProvides adds interfaces to the per-object declaration
func (c *Content) AlsoProvides(ifaces ...*schema.Schema) {
	c.provides.Store(c.provides.Load().With(ifaces...))
}

// NoLongerProvides removes interfaces from the per-object declaration
func (c *Content) NoLongerProvides(names ...string) {
	c.provides.Store(c.provides.Load().Without(names...))
}
