package fti

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/flowmesh/dexterity/internal/content"
)

// Property names of a type descriptor
const (
	PropID                  = "id"
	PropTitle               = "title"
	PropDescription         = "description"
	PropSchema              = "schema"
	PropModelSource         = "model_source"
	PropModelFile           = "model_file"
	PropFactory             = "factory"
	PropAddPermission       = "add_permission"
	PropGlobalAllow         = "global_allow"
	PropFilterContentTypes  = "filter_content_types"
	PropAllowedContentTypes = "allowed_content_types"
	PropBehaviors           = "behaviors"
	PropKlass               = "klass"
	PropAddViewExpr         = "add_view_expr"
	PropAllowDiscussion     = "allow_discussion"
)

// Properties is the persisted state of a type descriptor
type Properties struct {
	ID                  string       `json:"id"`
	Title               string       `json:"title"`
	Description         string       `json:"description,omitempty"`
	Schema              string       `json:"schema,omitempty"`
	ModelSource         string       `json:"model_source,omitempty"`
	ModelFile           string       `json:"model_file,omitempty"`
	Factory             string       `json:"factory"`
	AddPermission       string       `json:"add_permission,omitempty"`
	GlobalAllow         bool         `json:"global_allow"`
	FilterContentTypes  bool         `json:"filter_content_types"`
	AllowedContentTypes []string     `json:"allowed_content_types,omitempty"`
	Behaviors           []string     `json:"behaviors,omitempty"`
	Klass               content.Kind `json:"klass"`
	AddViewExpr         string       `json:"add_view_expr"`
	AllowDiscussion     bool         `json:"allow_discussion"`
}

type property struct {
	name string
	get  func(*Properties) any
	set  func(*Properties, any) error
}

// properties lists the editable properties in declaration order. The id
// is changed by renaming, not by property updates.
var properties = []property{
	stringProperty(PropTitle, func(p *Properties) *string { return &p.Title }),
	stringProperty(PropDescription, func(p *Properties) *string { return &p.Description }),
	stringProperty(PropSchema, func(p *Properties) *string { return &p.Schema }),
	stringProperty(PropModelSource, func(p *Properties) *string { return &p.ModelSource }),
	stringProperty(PropModelFile, func(p *Properties) *string { return &p.ModelFile }),
	stringProperty(PropFactory, func(p *Properties) *string { return &p.Factory }),
	stringProperty(PropAddPermission, func(p *Properties) *string { return &p.AddPermission }),
	boolProperty(PropGlobalAllow, func(p *Properties) *bool { return &p.GlobalAllow }),
	boolProperty(PropFilterContentTypes, func(p *Properties) *bool { return &p.FilterContentTypes }),
	listProperty(PropAllowedContentTypes, func(p *Properties) *[]string { return &p.AllowedContentTypes }),
	listProperty(PropBehaviors, func(p *Properties) *[]string { return &p.Behaviors }),
	{
		name: PropKlass,
		get:  func(p *Properties) any { return string(p.Klass) },
		set: func(p *Properties, v any) error {
			s, ok := v.(string)
			if !ok || !content.Kind(s).Valid() {
				return InvalidPropertyError{Name: PropKlass, Reason: "must be item or container"}
			}
			p.Klass = content.Kind(s)
			return nil
		},
	},
	stringProperty(PropAddViewExpr, func(p *Properties) *string { return &p.AddViewExpr }),
	boolProperty(PropAllowDiscussion, func(p *Properties) *bool { return &p.AllowDiscussion }),
}

// PropertyNames returns the editable property names in declaration order
func PropertyNames() []string {
	names := make([]string, len(properties))
	for i, p := range properties {
		names[i] = p.name
	}
	return names
}

func lookupProperty(name string) (property, bool) {
	for _, p := range properties {
		if p.name == name {
			return p, true
		}
	}
	return property{}, false
}

func stringProperty(name string, field func(*Properties) *string) property {
	return property{
		name: name,
		get:  func(p *Properties) any { return *field(p) },
		set: func(p *Properties, v any) error {
			switch s := v.(type) {
			case string:
				*field(p) = s
			case nil:
				*field(p) = ""
			default:
				return InvalidPropertyError{Name: name, Reason: fmt.Sprintf("expected string, got %T", v)}
			}
			return nil
		},
	}
}

func boolProperty(name string, field func(*Properties) *bool) property {
	return property{
		name: name,
		get:  func(p *Properties) any { return *field(p) },
		set: func(p *Properties, v any) error {
			b, ok := v.(bool)
			if !ok {
				return InvalidPropertyError{Name: name, Reason: fmt.Sprintf("expected bool, got %T", v)}
			}
			*field(p) = b
			return nil
		},
	}
}

func listProperty(name string, field func(*Properties) *[]string) property {
	return property{
		name: name,
		get:  func(p *Properties) any { return slices.Clone(*field(p)) },
		set: func(p *Properties, v any) error {
			switch list := v.(type) {
			case []string:
				*field(p) = slices.Clone(list)
			case []any:
				out := make([]string, 0, len(list))
				for _, item := range list {
					s, ok := item.(string)
					if !ok {
						return InvalidPropertyError{Name: name, Reason: "expected a list of strings"}
					}
					out = append(out, s)
				}
				*field(p) = out
			case nil:
				*field(p) = nil
			default:
				return InvalidPropertyError{Name: name, Reason: fmt.Sprintf("expected list, got %T", v)}
			}
			return nil
		},
	}
}

// propertyEqual compares property values by value; empty and nil lists
// are equal
func propertyEqual(a, b any) bool {
	la, aList := a.([]string)
	lb, bList := b.([]string)
	if aList && bList {
		return slices.Equal(la, lb)
	}
	return reflect.DeepEqual(a, b)
}

func (p Properties) clone() Properties {
	p.AllowedContentTypes = slices.Clone(p.AllowedContentTypes)
	p.Behaviors = slices.Clone(p.Behaviors)
	return p
}

// withDefaults fills the factory and add view of a new descriptor
func (p Properties) withDefaults() Properties {
	if p.Factory == "" {
		p.Factory = p.ID
	}
	if p.AddViewExpr == "" {
		p.AddViewExpr = "string:${folder_url}/++add++" + p.ID
	}
	if p.Klass == "" {
		p.Klass = content.KindItem
	}
	if p.Title == "" {
		p.Title = p.ID
	}
	return p
}
