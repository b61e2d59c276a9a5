package component

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flowmesh/dexterity/internal/logger"
)

// Registration is one named component registered for a capability
type Registration struct {
	// Provided is the capability the component is registered for
	Provided string
	// Name distinguishes components providing the same capability
	Name string
	// Component is the registered value
	Component any
	// Info tags the origin of the registration
	Info string
}

type key struct {
	provided string
	name     string
}

// Registry is a hierarchical component registry. Lookups fall back to
// base registries, depth first in declaration order; mutations only ever
// touch the local registry.
type Registry struct {
	name  string
	bases []*Registry
	log   zerolog.Logger

	mu   sync.RWMutex
	regs map[key]Registration
}

// NewRegistry creates a registry layered on bases
func NewRegistry(name string, bases ...*Registry) *Registry {
	return &Registry{
		name:  name,
		bases: bases,
		log:   logger.WithComponent("registry").With().Str("registry", name).Logger(),
		regs:  make(map[key]Registration),
	}
}

// Name returns the registry name
func (r *Registry) Name() string {
	return r.name
}

// Register adds or replaces the local registration (provided, name)
func (r *Registry) Register(component any, provided, name, info string) error {
	if provided == "" {
		return fmt.Errorf("registration requires a provided capability")
	}
	if component == nil {
		return fmt.Errorf("cannot register a nil component for %s/%s", provided, name)
	}

	r.mu.Lock()
	r.regs[key{provided, name}] = Registration{
		Provided:  provided,
		Name:      name,
		Component: component,
		Info:      info,
	}
	r.mu.Unlock()

	r.log.Debug().Str("provided", provided).Str("name", name).Str("info", info).Msg("Registered component")
	return nil
}

// Unregister removes the local registration (provided, name). It reports
// whether anything was removed and never fails.
func (r *Registry) Unregister(provided, name string) bool {
	r.mu.Lock()
	_, ok := r.regs[key{provided, name}]
	delete(r.regs, key{provided, name})
	r.mu.Unlock()

	if ok {
		r.log.Debug().Str("provided", provided).Str("name", name).Msg("Unregistered component")
	}
	return ok
}

// LookupLocal returns the registration held by this registry only
func (r *Registry) LookupLocal(provided, name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[key{provided, name}]
	return reg, ok
}

// Lookup returns the closest registration, consulting bases on a miss
func (r *Registry) Lookup(provided, name string) (Registration, bool) {
	if reg, ok := r.LookupLocal(provided, name); ok {
		return reg, true
	}
	for _, base := range r.bases {
		if reg, ok := base.Lookup(provided, name); ok {
			return reg, true
		}
	}
	return Registration{}, false
}

// Query returns the component of the closest registration or nil
func (r *Registry) Query(provided, name string) any {
	reg, ok := r.Lookup(provided, name)
	if !ok {
		return nil
	}
	return reg.Component
}

// Registrations lists the local registrations sorted by capability and name
func (r *Registry) Registrations() []Registration {
	r.mu.RLock()
	out := make([]Registration, 0, len(r.regs))
	for _, reg := range r.regs {
		out = append(out, reg)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Provided != out[j].Provided {
			return out[i].Provided < out[j].Provided
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// All lists every registration for a capability visible from this
// registry. Local registrations shadow base registrations of the same name.
func (r *Registry) All(provided string) []Registration {
	seen := make(map[string]bool)
	var out []Registration
	r.collect(provided, seen, &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) collect(provided string, seen map[string]bool, out *[]Registration) {
	for _, reg := range r.Registrations() {
		if reg.Provided != provided || seen[reg.Name] {
			continue
		}
		seen[reg.Name] = true
		*out = append(*out, reg)
	}
	for _, base := range r.bases {
		base.collect(provided, seen, out)
	}
}
