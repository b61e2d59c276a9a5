package content

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Brain is the catalog record of one object
type Brain struct {
	UID         string
	Path        string
	PortalType  string
	Title       string
	ReviewState string
	Provides    []string
	Modified    time.Time
}

// Query filters catalog records. Empty fields match everything.
type Query struct {
	PortalType string
	PathPrefix string
	Provides   string
}

// Catalog indexes content objects
type Catalog interface {
	Index(obj *Content, spec *Specification)
	Unindex(path string)
	Search(q Query) []Brain
}

// MemoryCatalog is an in-process Catalog
type MemoryCatalog struct {
	mu     sync.RWMutex
	brains map[string]Brain
}

// NewMemoryCatalog creates an empty catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{brains: make(map[string]Brain)}
}

// Index records or refreshes obj
func (c *MemoryCatalog) Index(obj *Content, spec *Specification) {
	brain := Brain{
		UID:         obj.UID(),
		Path:        obj.PhysicalPath(),
		PortalType:  obj.PortalType(),
		Title:       obj.Title(),
		ReviewState: obj.WorkflowState(),
		Modified:    obj.ModificationTime(),
	}
	if spec != nil {
		brain.Provides = spec.Names()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.brains[brain.Path] = brain
}

// Unindex drops the record at path and below
func (c *MemoryCatalog) Unindex(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p := range c.brains {
		if p == path || strings.HasPrefix(p, strings.TrimSuffix(path, "/")+"/") {
			delete(c.brains, p)
		}
	}
}

// Search returns the matching records sorted by path
func (c *MemoryCatalog) Search(q Query) []Brain {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Brain
	for _, b := range c.brains {
		if q.PortalType != "" && b.PortalType != q.PortalType {
			continue
		}
		if q.PathPrefix != "" && b.Path != q.PathPrefix &&
			!strings.HasPrefix(b.Path, strings.TrimSuffix(q.PathPrefix, "/")+"/") {
			continue
		}
		if q.Provides != "" && !contains(b.Provides, q.Provides) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
