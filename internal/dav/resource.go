package dav

import (
	"net/http"
	"strings"

	"github.com/flowmesh/dexterity/internal/content"
)

// Method names outside net/http
const (
	MethodMkCol     = "MKCOL"
	MethodCopy      = "COPY"
	MethodMove      = "MOVE"
	MethodLock      = "LOCK"
	MethodUnlock    = "UNLOCK"
	MethodPropFind  = "PROPFIND"
	MethodPropPatch = "PROPPATCH"
)

// Target is a resolved DAV path. Data targets address the record of a
// container through its DataID pseudo child.
type Target struct {
	Object *content.Content
	Data   bool
	// Missing holds the final segment when only the parent exists
	Missing string
}

// Collection reports whether the target behaves as a collection
func (t Target) Collection() bool {
	return !t.Data && t.Missing == "" && t.Object.IsContainer()
}

// Resolve maps a slash separated path below root to a target. A path
// whose final segment does not exist resolves to its parent with Missing
// set, so PUT and MKCOL can create it.
func Resolve(root *content.Content, path string) (Target, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return Target{Object: root}, nil
	}

	parentPath, name := "", path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		parentPath, name = path[:i], path[i+1:]
	}

	parent := root
	if parentPath != "" {
		var err error
		if parent, err = root.Traverse(parentPath); err != nil {
			return Target{}, err
		}
	}

	if name == DataID && parent.IsContainer() {
		return Target{Object: parent, Data: true}, nil
	}
	if child, ok := parent.Child(name); ok {
		return Target{Object: child}, nil
	}
	if !parent.IsContainer() {
		return Target{}, content.NotFoundError{Path: "/" + path}
	}
	return Target{Object: parent, Missing: name}, nil
}

// CheckMethod refuses the methods a target cannot serve. Data targets
// only support reading, writing and locking.
func CheckMethod(t Target, method string) error {
	if t.Data {
		switch method {
		case MethodMkCol:
			return MethodNotAllowedError{Method: method, Reason: "cannot create a collection inside folder data, try at the folder level instead"}
		case http.MethodDelete:
			return MethodNotAllowedError{Method: method, Reason: "cannot delete folder data, delete the folder instead"}
		case MethodCopy:
			return MethodNotAllowedError{Method: method, Reason: "cannot copy folder data, copy the folder instead"}
		case MethodMove:
			return MethodNotAllowedError{Method: method, Reason: "cannot move folder data, move the folder instead"}
		}
		return nil
	}

	if t.Missing != "" {
		switch method {
		case http.MethodPut, MethodMkCol, http.MethodOptions, MethodLock:
			return nil
		}
		return content.NotFoundError{Path: t.Object.PhysicalPath() + "/" + t.Missing}
	}

	if method == MethodMkCol {
		return MethodNotAllowedError{Method: method, Reason: "resource already exists"}
	}
	return nil
}

// Allow returns the methods a target supports, for OPTIONS responses
func Allow(t Target) []string {
	switch {
	case t.Missing != "":
		return []string{http.MethodOptions, http.MethodPut, MethodMkCol}
	case t.Data:
		return []string{http.MethodOptions, http.MethodGet, http.MethodHead, http.MethodPut, MethodPropFind}
	default:
		return []string{http.MethodOptions, http.MethodGet, http.MethodHead, http.MethodPut, MethodPropFind, http.MethodDelete}
	}
}

// Entry is one item of a collection listing
type Entry struct {
	Name       string
	Collection bool
	Object     *content.Content
}

// List returns the DAV listing of a container: the DataID pseudo child
// first, then the children in order
func List(container *content.Content) []Entry {
	if !container.IsContainer() {
		return nil
	}
	entries := []Entry{{Name: DataID, Object: container}}
	for _, child := range container.ChildValues() {
		entries = append(entries, Entry{
			Name:       child.ID(),
			Collection: child.IsContainer(),
			Object:     child,
		})
	}
	return entries
}
