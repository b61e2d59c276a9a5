package metastore

import "fmt"

// ResourceNotFoundError indicates a resource was not found
type ResourceNotFoundError struct {
	Path string
}

func (e ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.Path)
}

// ResourceExistsError indicates a resource already exists
type ResourceExistsError struct {
	Path string
}

func (e ResourceExistsError) Error() string {
	return fmt.Sprintf("resource already exists: %s", e.Path)
}

// InvalidResourceError indicates an invalid resource
type InvalidResourceError struct {
	Field  string
	Reason string
}

func (e InvalidResourceError) Error() string {
	return fmt.Sprintf("invalid resource field '%s': %s", e.Field, e.Reason)
}
