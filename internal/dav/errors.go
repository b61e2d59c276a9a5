package dav

import "fmt"

// MethodNotAllowedError indicates a DAV method the resource refuses
type MethodNotAllowedError struct {
	Method string
	Reason string
}

func (e MethodNotAllowedError) Error() string {
	return fmt.Sprintf("method %s not allowed: %s", e.Method, e.Reason)
}

// UnauthorizedError indicates a request refused regardless of the caller
type UnauthorizedError struct {
	Reason string
}

func (e UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Reason)
}

// NoFactoryError indicates no content type could be chosen for a new
// resource
type NoFactoryError struct {
	Name        string
	ContentType string
}

func (e NoFactoryError) Error() string {
	return fmt.Sprintf("no content type for %s (%s)", e.Name, e.ContentType)
}
