package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Named resolves dotted schema names used by static type definitions
type Named struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewNamed creates an empty named-schema registry
func NewNamed() *Named {
	return &Named{schemas: make(map[string]*Schema)}
}

// Register adds s under its name. Registering a different schema under an
// existing name fails.
func (n *Named) Register(s *Schema) error {
	if s.Name() == "" {
		return fmt.Errorf("cannot register an unnamed schema")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if existing, ok := n.schemas[s.Name()]; ok && existing != s {
		return fmt.Errorf("schema %s already registered", s.Name())
	}
	n.schemas[s.Name()] = s
	return nil
}

// MustRegister is Register that panics on conflict
func (n *Named) MustRegister(schemas ...*Schema) {
	for _, s := range schemas {
		if err := n.Register(s); err != nil {
			panic(err)
		}
	}
}

// Resolve returns the schema registered under name
func (n *Named) Resolve(name string) (*Schema, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	s, ok := n.schemas[name]
	if !ok {
		return nil, NotFoundError{Name: name}
	}
	return s, nil
}

// Names returns all registered names, sorted
func (n *Named) Names() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	names := make([]string, 0, len(n.schemas))
	for name := range n.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
