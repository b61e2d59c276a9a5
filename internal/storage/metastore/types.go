package metastore

import (
	"encoding/json"
	"time"
)

// ResourceKind represents the kind of persisted resource
type ResourceKind string

const (
	// ResourceType represents a content type descriptor
	ResourceType ResourceKind = "type"
	// ResourceSite represents site-level settings
	ResourceSite ResourceKind = "site"
)

// Resource is one persisted metadata record. Spec holds the
// kind-specific document as raw JSON.
type Resource struct {
	// Site is the site identifier
	Site string `json:"site"`
	// Kind is the resource kind
	Kind ResourceKind `json:"kind"`
	// Name is the resource name, unique per site and kind
	Name string `json:"name"`
	// Spec is the kind-specific document
	Spec json.RawMessage `json:"spec"`
	// CreatedAt is when the resource was created
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the resource was last updated
	UpdatedAt time.Time `json:"updated_at"`
}

// ResourcePath constructs the resource path from components
func ResourcePath(site string, kind ResourceKind, name string) string {
	return site + "/" + string(kind) + "/" + name
}

// GetPath returns the full resource path
func (r *Resource) GetPath() string {
	return ResourcePath(r.Site, r.Kind, r.Name)
}

// Validate validates the resource
func (r *Resource) Validate() error {
	if r.Site == "" {
		return InvalidResourceError{Field: "site", Reason: "cannot be empty"}
	}
	if r.Name == "" {
		return InvalidResourceError{Field: "name", Reason: "cannot be empty"}
	}
	if r.Kind != ResourceType && r.Kind != ResourceSite {
		return InvalidResourceError{Field: "kind", Reason: "must be type or site"}
	}
	if len(r.Spec) == 0 || !json.Valid(r.Spec) {
		return InvalidResourceError{Field: "spec", Reason: "must be a JSON document"}
	}
	return nil
}
