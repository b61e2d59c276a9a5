package fti

import "fmt"

// ConfigurationError indicates a descriptor cannot produce a model or
// schema from its properties
type ConfigurationError struct {
	TypeID string
	Reason string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("type %s is misconfigured: %s", e.TypeID, e.Reason)
}

// NotFoundError indicates an unknown type identifier
type NotFoundError struct {
	TypeID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("type not found: %s", e.TypeID)
}

// ExistsError indicates a type identifier is taken
type ExistsError struct {
	TypeID string
}

func (e ExistsError) Error() string {
	return fmt.Sprintf("type already exists: %s", e.TypeID)
}

// InvalidPropertyError indicates an unknown property or a value of the
// wrong type
type InvalidPropertyError struct {
	Name   string
	Reason string
}

func (e InvalidPropertyError) Error() string {
	return fmt.Sprintf("invalid property %s: %s", e.Name, e.Reason)
}

// DisallowedTypeError indicates a container does not accept a type
type DisallowedTypeError struct {
	Container string
	TypeID    string
}

func (e DisallowedTypeError) Error() string {
	return fmt.Sprintf("type %s is not allowed in %s", e.TypeID, e.Container)
}
