package behavior

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"github.com/flowmesh/dexterity/internal/schema"
)

// ResourcePackage is the package name under which built-in models are
// resolvable as "dexterity:models/<file>"
const ResourcePackage = "dexterity"

// Models holds the built-in behavior model documents
//
//go:embed models/*.yaml
var Models embed.FS

// Behavior is a reusable capability attachable to content types.
// Interface carries the behavior's fields; Marker, when set, is an
// additional interface provided by every object of a type using it.
type Behavior struct {
	Name        string
	Title       string
	Description string
	Interface   *schema.Schema
	Marker      *schema.Schema
}

// Registry holds the available behaviors by name
type Registry struct {
	mu        sync.RWMutex
	behaviors map[string]*Behavior
}

// NewRegistry creates an empty behavior registry
func NewRegistry() *Registry {
	return &Registry{behaviors: make(map[string]*Behavior)}
}

// Register adds a behavior
func (r *Registry) Register(b *Behavior) error {
	if b.Name == "" {
		return fmt.Errorf("behavior name cannot be empty")
	}
	if b.Interface == nil {
		return fmt.Errorf("behavior %s has no interface", b.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.behaviors[b.Name]; exists {
		return fmt.Errorf("behavior %s already registered", b.Name)
	}
	r.behaviors[b.Name] = b
	return nil
}

// Lookup returns the named behavior
func (r *Registry) Lookup(name string) (*Behavior, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.behaviors[name]
	return b, ok
}

// List returns all behaviors sorted by name
func (r *Registry) List() []*Behavior {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Behavior, 0, len(r.behaviors))
	for _, b := range r.behaviors {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type builtin struct {
	name   string
	file   string
	marker string
}

var builtins = []builtin{
	{name: "dexterity.behaviors.IBasic", file: "models/basic.yaml"},
	{name: "dexterity.behaviors.IOwnership", file: "models/ownership.yaml"},
	{name: "dexterity.behaviors.IPublication", file: "models/publication.yaml"},
	{name: "dexterity.behaviors.IExcludeFromNavigation", file: "models/navigation.yaml"},
	{name: "dexterity.behaviors.INameFromTitle", marker: "dexterity.behaviors.INameFromTitle"},
}

// RegisterBuiltins loads the built-in behaviors through loader and
// registers them, together with their interfaces, in reg and named
func RegisterBuiltins(reg *Registry, named *schema.Named, loader *schema.Loader) error {
	loader.AddResourceRoot(ResourcePackage, Models)

	for _, def := range builtins {
		b := &Behavior{Name: def.name}

		if def.file != "" {
			model, err := loader.LoadFile(ResourcePackage+":"+def.file, false)
			if err != nil {
				return fmt.Errorf("behavior %s: %w", def.name, err)
			}
			b.Interface = model.Schema().Renamed(def.name)
			b.Title = b.Interface.Title()
		} else {
			b.Interface = schema.Marker(def.name)
		}
		if def.marker != "" {
			b.Marker = b.Interface
		}

		if err := named.Register(b.Interface); err != nil {
			return err
		}
		if err := reg.Register(b); err != nil {
			return err
		}
	}
	return nil
}
