package content

import (
	"slices"
	"strings"
	"sync"
)

// Children is the ordered child collection of a container
type Children struct {
	mu    sync.RWMutex
	order []string
	items map[string]*Content
}

func newChildren() *Children {
	return &Children{items: make(map[string]*Content)}
}

// CheckID validates an object id
func CheckID(id string) error {
	switch {
	case id == "":
		return InvalidIDError{ID: id, Reason: "empty"}
	case id == "." || id == "..":
		return InvalidIDError{ID: id, Reason: "reserved"}
	case strings.ContainsAny(id, "/\\"):
		return InvalidIDError{ID: id, Reason: "contains a path separator"}
	case strings.HasPrefix(id, "_"), strings.HasPrefix(id, "@@"), strings.HasPrefix(id, "++"):
		return InvalidIDError{ID: id, Reason: "reserved prefix"}
	}
	return nil
}

// AddChild appends child under its id
func (c *Content) AddChild(child *Content) error {
	if c.children == nil {
		return NotContainerError{Path: c.PhysicalPath()}
	}
	id := child.ID()
	if err := CheckID(id); err != nil {
		return err
	}

	c.children.mu.Lock()
	if _, exists := c.children.items[id]; exists {
		c.children.mu.Unlock()
		return ExistsError{Container: c.PhysicalPath(), ID: id}
	}
	c.children.items[id] = child
	c.children.order = append(c.children.order, id)
	c.children.mu.Unlock()

	child.mu.Lock()
	child.parent = c
	child.mu.Unlock()
	return nil
}

// RemoveChild detaches and returns the child with id
func (c *Content) RemoveChild(id string) (*Content, error) {
	if c.children == nil {
		return nil, NotContainerError{Path: c.PhysicalPath()}
	}

	c.children.mu.Lock()
	child, ok := c.children.items[id]
	if !ok {
		c.children.mu.Unlock()
		return nil, NotFoundError{Path: joinPath(c.PhysicalPath(), id)}
	}
	delete(c.children.items, id)
	c.children.order = slices.DeleteFunc(c.children.order, func(s string) bool { return s == id })
	c.children.mu.Unlock()

	child.mu.Lock()
	child.parent = nil
	child.mu.Unlock()
	return child, nil
}

// RenameChild changes a child id in place, keeping its position
func (c *Content) RenameChild(oldID, newID string) error {
	if c.children == nil {
		return NotContainerError{Path: c.PhysicalPath()}
	}
	if err := CheckID(newID); err != nil {
		return err
	}

	c.children.mu.Lock()
	defer c.children.mu.Unlock()

	child, ok := c.children.items[oldID]
	if !ok {
		return NotFoundError{Path: joinPath(c.PhysicalPath(), oldID)}
	}
	if oldID == newID {
		return nil
	}
	if _, exists := c.children.items[newID]; exists {
		return ExistsError{Container: c.PhysicalPath(), ID: newID}
	}

	delete(c.children.items, oldID)
	c.children.items[newID] = child
	c.children.order[slices.Index(c.children.order, oldID)] = newID

	child.mu.Lock()
	child.id = newID
	child.mu.Unlock()
	return nil
}

// MoveChild moves a child to position pos, clamped to the valid range
func (c *Content) MoveChild(id string, pos int) error {
	if c.children == nil {
		return NotContainerError{Path: c.PhysicalPath()}
	}

	c.children.mu.Lock()
	defer c.children.mu.Unlock()

	idx := slices.Index(c.children.order, id)
	if idx < 0 {
		return NotFoundError{Path: joinPath(c.PhysicalPath(), id)}
	}
	order := slices.Delete(c.children.order, idx, idx+1)
	pos = max(0, min(pos, len(order)))
	c.children.order = slices.Insert(order, pos, id)
	return nil
}

// Child returns the child with id
func (c *Content) Child(id string) (*Content, bool) {
	if c.children == nil {
		return nil, false
	}
	c.children.mu.RLock()
	defer c.children.mu.RUnlock()
	child, ok := c.children.items[id]
	return child, ok
}

// ChildIDs returns the child ids in order
func (c *Content) ChildIDs() []string {
	if c.children == nil {
		return nil
	}
	c.children.mu.RLock()
	defer c.children.mu.RUnlock()
	return slices.Clone(c.children.order)
}

// ChildValues returns the children in order
func (c *Content) ChildValues() []*Content {
	if c.children == nil {
		return nil
	}
	c.children.mu.RLock()
	defer c.children.mu.RUnlock()
	out := make([]*Content, 0, len(c.children.order))
	for _, id := range c.children.order {
		out = append(out, c.children.items[id])
	}
	return out
}

// Traverse resolves a slash separated path relative to c
func (c *Content) Traverse(path string) (*Content, error) {
	cur := c
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		next, ok := cur.Child(part)
		if !ok {
			return nil, NotFoundError{Path: joinPath(cur.PhysicalPath(), part)}
		}
		cur = next
	}
	return cur, nil
}

// Walk visits c and its descendants depth first, parents before children
func (c *Content) Walk(fn func(*Content) error) error {
	if err := fn(c); err != nil {
		return err
	}
	for _, child := range c.ChildValues() {
		if err := child.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

func joinPath(parent, id string) string {
	if parent == "/" {
		return "/" + id
	}
	return parent + "/" + id
}
