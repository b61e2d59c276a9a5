package contentstore

import "fmt"

// RecordNotFoundError indicates no record is stored at a path
type RecordNotFoundError struct {
	Path string
}

func (e RecordNotFoundError) Error() string {
	return fmt.Sprintf("content record not found: %s", e.Path)
}

// InvalidPathError indicates a malformed content path
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e InvalidPathError) Error() string {
	return fmt.Sprintf("invalid content path %q: %s", e.Path, e.Reason)
}

// StoreClosedError indicates the store was used after Close
type StoreClosedError struct{}

func (e StoreClosedError) Error() string {
	return "content store is closed"
}
