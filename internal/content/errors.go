package content

import "fmt"

// AttributeNotFoundError indicates an attribute is neither set on the
// object nor declared by its schema
type AttributeNotFoundError struct {
	Name string
}

func (e AttributeNotFoundError) Error() string {
	return fmt.Sprintf("attribute not found: %s", e.Name)
}

// NotFoundError indicates a child or path does not exist
type NotFoundError struct {
	Path string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("content not found: %s", e.Path)
}

// ExistsError indicates a child id is taken
type ExistsError struct {
	Container string
	ID        string
}

func (e ExistsError) Error() string {
	return fmt.Sprintf("%s already contains %s", e.Container, e.ID)
}

// NotContainerError indicates an item was used as a container
type NotContainerError struct {
	Path string
}

func (e NotContainerError) Error() string {
	return fmt.Sprintf("%s is not a container", e.Path)
}

// InvalidIDError indicates an object id cannot be used
type InvalidIDError struct {
	ID     string
	Reason string
}

func (e InvalidIDError) Error() string {
	return fmt.Sprintf("invalid id %q: %s", e.ID, e.Reason)
}

// FieldError indicates a field value was rejected
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}
