package content

import (
	"fmt"
	"maps"
	"time"

	"github.com/flowmesh/dexterity/internal/schema"
)

// Record is the persisted state of one content object
type Record struct {
	UID                 string
	ID                  string
	PortalType          string
	Kind                Kind
	ParentPath          string
	Fields              map[string]any
	Created             time.Time
	Modified            time.Time
	WorkflowState       string
	WorkflowInitialized bool
	Provides            []string
	Children            []string
}

// Record snapshots the object
func (c *Content) Record() Record {
	c.mu.RLock()
	rec := Record{
		UID:                 c.uid,
		ID:                  c.id,
		PortalType:          c.portalType,
		Kind:                c.kind,
		Fields:              maps.Clone(c.fields),
		Created:             c.created,
		Modified:            c.modified,
		WorkflowState:       c.workflowState,
		WorkflowInitialized: c.workflowInitialized,
	}
	parent := c.parent
	c.mu.RUnlock()

	if parent != nil {
		rec.ParentPath = parent.PhysicalPath()
	}
	rec.Provides = c.DirectlyProvides().Names()
	rec.Children = c.ChildIDs()
	return rec
}

// Restore rebuilds an object from its record. Direct interfaces are
// resolved by name; children are attached by the caller.
func Restore(rec Record, types SchemaLookup, resolve func(name string) (*schema.Schema, error)) (*Content, error) {
	if !rec.Kind.Valid() {
		return nil, fmt.Errorf("record %s: unknown kind %q", rec.UID, rec.Kind)
	}

	c := New(rec.ID, rec.PortalType, rec.Kind, types)
	c.uid = rec.UID
	c.created = rec.Created
	c.modified = rec.Modified
	c.workflowState = rec.WorkflowState
	c.workflowInitialized = rec.WorkflowInitialized
	if rec.Fields != nil {
		c.fields = maps.Clone(rec.Fields)
	}

	if len(rec.Provides) > 0 {
		ifaces := make([]*schema.Schema, 0, len(rec.Provides))
		for _, name := range rec.Provides {
			s, err := resolve(name)
			if err != nil {
				return nil, fmt.Errorf("record %s: %w", rec.UID, err)
			}
			ifaces = append(ifaces, s)
		}
		c.SetDirectlyProvides(NewProvides(ifaces...))
	}
	return c, nil
}
