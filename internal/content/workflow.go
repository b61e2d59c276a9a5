package content

import "context"

// Workflow is notified when content enters the site
type Workflow interface {
	NotifyCreated(ctx context.Context, obj *Content) error
}

// SimpleWorkflow puts new content into a fixed initial state
type SimpleWorkflow struct {
	InitialState string
}

// NewSimpleWorkflow creates a workflow with the "private" initial state
func NewSimpleWorkflow() *SimpleWorkflow {
	return &SimpleWorkflow{InitialState: "private"}
}

// NotifyCreated sets the initial state
func (w *SimpleWorkflow) NotifyCreated(_ context.Context, obj *Content) error {
	obj.SetWorkflowState(w.InitialState)
	return nil
}

// SetWorkflowState sets the workflow state
func (c *Content) SetWorkflowState(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workflowState = state
}

// WorkflowInitialized reports whether the workflow saw the object
func (c *Content) WorkflowInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.workflowInitialized
}

func (c *Content) markWorkflowInitialized() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workflowInitialized = true
}
