package content

import (
	"context"
	"fmt"
	"reflect"

	"github.com/flowmesh/dexterity/internal/event"
	"github.com/flowmesh/dexterity/internal/schema"
	"github.com/flowmesh/dexterity/internal/security"
)

// ApplyFields coerces, validates and stores values declared by the
// object's schemata. Nothing is stored when any value is rejected. It
// returns the descriptions of the values that changed.
func ApplyFields(obj *Content, values map[string]any) ([]event.Description, error) {
	schemata := obj.Schemata()

	coerced := make(map[string]any, len(values))
	for name, raw := range values {
		f := schema.FindField(name, schemata...)
		if f == nil {
			return nil, FieldError{Field: name, Reason: "not declared by the type schema"}
		}
		v, err := f.Coerce(raw)
		if err != nil {
			return nil, FieldError{Field: name, Reason: err.Error()}
		}
		if err := f.Validate(v); err != nil {
			return nil, FieldError{Field: name, Reason: err.Error()}
		}
		coerced[name] = v
	}

	var changes []event.Description
	for _, s := range schemata {
		for _, name := range s.Names() {
			v, ok := coerced[name]
			if !ok {
				continue
			}
			delete(coerced, name)

			old, _ := obj.Get(name)
			if obj.Has(name) && reflect.DeepEqual(old, v) {
				continue
			}
			obj.Set(name, v)
			changes = append(changes, event.Description{Attribute: name, OldValue: old})
		}
	}
	return changes, nil
}

// CheckWritable verifies the write permissions of every named field
func CheckWritable(ctx context.Context, checker security.Checker, perms *security.Permissions, obj *Content, names []string) error {
	schemata := obj.Schemata()
	for _, name := range names {
		f := schema.FindField(name, schemata...)
		if f == nil || f.WritePermission == "" {
			continue
		}
		if !security.Check(ctx, checker, perms, f.WritePermission, obj) {
			return security.ForbiddenError{
				Permission: f.WritePermission,
				Target:     fmt.Sprintf("%s#%s", obj.PhysicalPath(), name),
			}
		}
	}
	return nil
}
