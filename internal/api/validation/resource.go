package validation

import (
	"fmt"
	"strings"
)

// ContentPathError indicates an invalid content path
type ContentPathError struct {
	Path   string
	Reason string
}

func (e ContentPathError) Error() string {
	return fmt.Sprintf("invalid content path '%s': %s", e.Path, e.Reason)
}

// ParseContentPath normalizes a slash separated content path to its
// absolute form. Empty segments are dropped; relative segments are
// refused.
func ParseContentPath(path string) (string, error) {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		switch strings.TrimSpace(part) {
		case "":
			continue
		case ".", "..":
			return "", ContentPathError{Path: path, Reason: "relative segments are not allowed"}
		}
		parts = append(parts, part)
	}
	return "/" + strings.Join(parts, "/"), nil
}

// SplitContentPath returns the container path and the last segment of an
// absolute content path. The root has no name.
func SplitContentPath(path string) (parent, name string) {
	if path == "/" {
		return "/", ""
	}
	i := strings.LastIndex(path, "/")
	if i == 0 {
		return "/", path[1:]
	}
	return path[:i], path[i+1:]
}
