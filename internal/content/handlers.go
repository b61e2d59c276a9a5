package content

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/flowmesh/dexterity/internal/event"
	"github.com/flowmesh/dexterity/internal/logger"
)

// Handlers keeps the catalog and workflow in step with content events
type Handlers struct {
	resolver *Resolver
	catalog  Catalog
	workflow Workflow
	log      zerolog.Logger
}

// NewHandlers creates the content event handlers
func NewHandlers(resolver *Resolver, catalog Catalog, workflow Workflow) *Handlers {
	return &Handlers{
		resolver: resolver,
		catalog:  catalog,
		workflow: workflow,
		log:      logger.WithComponent("content"),
	}
}

// Subscribe registers the handlers on bus
func (h *Handlers) Subscribe(bus *event.Bus) {
	bus.Subscribe(event.KindAdded, h.FinishConstruction)
	bus.Subscribe(event.KindModified, h.ReindexOnModify)
	bus.Subscribe(event.KindMoved, h.ReindexOnMove)
	bus.Subscribe(event.KindRemoved, h.UnindexOnRemove)
}

// FinishConstruction initializes the workflow of newly added content
// once, then indexes the object
func (h *Handlers) FinishConstruction(ctx context.Context, subject any, _ event.Event) error {
	obj, ok := subject.(*Content)
	if !ok {
		return nil
	}

	if !obj.WorkflowInitialized() {
		if err := h.workflow.NotifyCreated(ctx, obj); err != nil {
			return fmt.Errorf("workflow: %w", err)
		}
		obj.markWorkflowInitialized()
	}

	h.reindex(obj)
	return nil
}

// ReindexOnModify refreshes the catalog record of modified content
func (h *Handlers) ReindexOnModify(_ context.Context, subject any, _ event.Event) error {
	if obj, ok := subject.(*Content); ok {
		h.reindex(obj)
	}
	return nil
}

// ReindexOnMove re-catalogs a moved subtree under its new path
func (h *Handlers) ReindexOnMove(_ context.Context, subject any, ev event.Event) error {
	obj, ok := subject.(*Content)
	if !ok {
		return nil
	}
	moved := ev.(event.Moved)
	h.catalog.Unindex(joinPath(moved.OldParent, moved.OldName))
	return obj.Walk(func(c *Content) error {
		h.reindex(c)
		return nil
	})
}

// UnindexOnRemove drops the records of removed content
func (h *Handlers) UnindexOnRemove(_ context.Context, subject any, ev event.Event) error {
	if _, ok := subject.(*Content); !ok {
		return nil
	}
	removed := ev.(event.Removed)
	h.catalog.Unindex(joinPath(removed.OldParent, removed.OldName))
	return nil
}

func (h *Handlers) reindex(obj *Content) {
	h.catalog.Index(obj, h.resolver.ProvidedBy(obj))
	h.log.Debug().Str("path", obj.PhysicalPath()).Msg("Reindexed content")
}
