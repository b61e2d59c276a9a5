package schema

import "fmt"

// NotFoundError indicates a named schema or model resource is unknown
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("schema not found: %s", e.Name)
}

// InvalidModelError indicates a model document failed to parse or compile
type InvalidModelError struct {
	Ref    string
	Reason string
}

func (e InvalidModelError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("invalid model: %s", e.Reason)
	}
	return fmt.Sprintf("invalid model %s: %s", e.Ref, e.Reason)
}

// InvalidNameError indicates a generated schema name cannot be decoded
type InvalidNameError struct {
	Name string
}

func (e InvalidNameError) Error() string {
	return fmt.Sprintf("invalid generated schema name: %q", e.Name)
}
