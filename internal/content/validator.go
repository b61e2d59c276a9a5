package content

import (
	"context"

	"github.com/flowmesh/dexterity/internal/schema"
	"github.com/flowmesh/dexterity/internal/security"
)

// AttributeValidator decides whether a caller may read an attribute of a
// content object, based on the read permissions declared by its schemata
type AttributeValidator struct {
	checker security.Checker
	perms   *security.Permissions
}

// NewAttributeValidator creates a validator
func NewAttributeValidator(checker security.Checker, perms *security.Permissions) *AttributeValidator {
	return &AttributeValidator{checker: checker, perms: perms}
}

// Allowed reports whether name may be read on obj. Unprotected names are
// allowed; a protected name whose permission is unknown is denied.
func (v *AttributeValidator) Allowed(ctx context.Context, obj *Content, name string) bool {
	if name == "" {
		return true
	}

	schemata := obj.Schemata()
	if len(schemata) == 0 {
		return true
	}

	permission, ok := schema.ReadPermissions(schemata...)[name]
	if !ok {
		return true
	}

	return security.Check(ctx, v.checker, v.perms, permission, obj)
}

// Readable returns the stored and default values of obj the caller may
// read, keyed by field name
func (v *AttributeValidator) Readable(ctx context.Context, obj *Content) map[string]any {
	out := make(map[string]any)
	for _, s := range obj.Schemata() {
		for _, f := range s.Fields() {
			if _, seen := out[f.Name]; seen {
				continue
			}
			if !v.Allowed(ctx, obj, f.Name) {
				continue
			}
			out[f.Name] = obj.Value(f.Name)
		}
	}
	return out
}
