package content

import (
	"slices"

	"github.com/flowmesh/dexterity/internal/schema"
)

// Provides is an immutable per-object interface declaration. Objects
// compare declarations by identity, so every change stores a new value.
type Provides struct {
	interfaces []*schema.Schema
}

// NewProvides builds a declaration from interfaces, dropping duplicates
func NewProvides(ifaces ...*schema.Schema) *Provides {
	return &Provides{interfaces: dedupe(ifaces)}
}

// Interfaces returns the declared interfaces in order
func (p *Provides) Interfaces() []*schema.Schema {
	if p == nil {
		return nil
	}
	return slices.Clone(p.interfaces)
}

// Names returns the declared interface names in order
func (p *Provides) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, len(p.interfaces))
	for i, s := range p.interfaces {
		names[i] = s.Name()
	}
	return names
}

// With returns a declaration extended by ifaces
func (p *Provides) With(ifaces ...*schema.Schema) *Provides {
	return NewProvides(append(p.Interfaces(), ifaces...)...)
}

// Without returns a declaration without the named interfaces
func (p *Provides) Without(names ...string) *Provides {
	kept := slices.DeleteFunc(p.Interfaces(), func(s *schema.Schema) bool {
		return slices.Contains(names, s.Name())
	})
	return NewProvides(kept...)
}

// Specification is the resolved, ordered list of interfaces an object
// provides
type Specification struct {
	interfaces []*schema.Schema
	index      map[string]struct{}
}

func newSpecification(ifaces []*schema.Schema) *Specification {
	ifaces = dedupe(ifaces)
	spec := &Specification{
		interfaces: ifaces,
		index:      make(map[string]struct{}, len(ifaces)),
	}
	for _, s := range ifaces {
		spec.index[s.Name()] = struct{}{}
	}
	return spec
}

// Interfaces returns the provided interfaces, most specific first
func (s *Specification) Interfaces() []*schema.Schema {
	return slices.Clone(s.interfaces)
}

// Names returns the provided interface names in order
func (s *Specification) Names() []string {
	names := make([]string, len(s.interfaces))
	for i, iface := range s.interfaces {
		names[i] = iface.Name()
	}
	return names
}

// Provides reports whether the named interface is part of the
// specification
func (s *Specification) Provides(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Len returns the number of interfaces
func (s *Specification) Len() int {
	return len(s.interfaces)
}

// Equal compares specifications by interface names
func (s *Specification) Equal(other *Specification) bool {
	return slices.Equal(s.Names(), other.Names())
}

func dedupe(ifaces []*schema.Schema) []*schema.Schema {
	seen := make(map[string]bool, len(ifaces))
	out := make([]*schema.Schema, 0, len(ifaces))
	for _, s := range ifaces {
		if s == nil || seen[s.Name()] {
			continue
		}
		seen[s.Name()] = true
		out = append(out, s)
	}
	return out
}

type specCache struct {
	mtime   int64
	counter int64
	direct  *Provides
	spec    *Specification
}

// TypeSchemas is the view of the schema cache used for resolution.
// *schema.Cache implements it.
type TypeSchemas interface {
	Get(typeID string) *schema.Schema
	Subtypes(typeID string) []*schema.Schema
	Counter(typeID string) int64
}

// ResolveObserver receives resolution outcomes: "hit", "miss" or
// "uncached"
type ResolveObserver interface {
	SpecResolved(outcome string)
}

// Resolver computes the interfaces provided by content objects, combining
// their static interfaces with the schema and subtypes of their type.
type Resolver struct {
	types    TypeSchemas
	observer ResolveObserver
}

// NewResolver creates a resolver over the schema cache
func NewResolver(types TypeSchemas) *Resolver {
	return &Resolver{types: types}
}

// SetObserver installs a resolution observer. Call before first use.
func (r *Resolver) SetObserver(o ResolveObserver) {
	r.observer = o
}

// ProvidedBy returns the specification of obj. The result is memoized on
// the object and reused while its modification time, its type's cache
// counter and its direct declaration are unchanged.
func (r *Resolver) ProvidedBy(obj *Content) *Specification {
	portalType := obj.PortalType()
	direct := obj.DirectlyProvides()

	counter := int64(-1)
	if portalType != "" {
		counter = r.types.Counter(portalType)
	}
	mtime := obj.ModificationTime().UnixNano()

	if portalType != "" {
		if cached := obj.spec.Load(); cached != nil &&
			cached.mtime == mtime &&
			cached.counter == counter &&
			cached.direct == direct {
			r.observe("hit")
			return cached.spec
		}
	}

	base := KindInterfaces(obj.Kind())
	if direct != nil {
		base = append(direct.Interfaces(), base...)
	}

	var dynamic []*schema.Schema
	if portalType != "" {
		if s := r.types.Get(portalType); s != nil {
			dynamic = append(dynamic, s)
		}
		dynamic = append(dynamic, r.types.Subtypes(portalType)...)
	}

	if len(dynamic) == 0 {
		// Not cached: the schema may not be resolvable yet
		r.observe("uncached")
		return newSpecification(base)
	}

	spec := newSpecification(append(dynamic, base...))
	obj.spec.Store(&specCache{
		mtime:   mtime,
		counter: counter,
		direct:  direct,
		spec:    spec,
	})
	r.observe("miss")
	return spec
}

func (r *Resolver) observe(outcome string) {
	if r.observer != nil {
		r.observer.SpecResolved(outcome)
	}
}
