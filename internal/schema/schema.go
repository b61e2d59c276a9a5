package schema

import (
	"maps"
	"slices"
)

// Schema is an interface-like descriptor enumerating named, typed fields.
// A Schema without fields acts as a marker interface. Schemas are immutable
// once built; redefinitions produce a new Schema.
type Schema struct {
	name   string
	title  string
	fields []*Field
	index  map[string]*Field
}

// New builds a schema from fields in declaration order
func New(name string, fields ...*Field) *Schema {
	s := &Schema{
		name:   name,
		fields: make([]*Field, 0, len(fields)),
		index:  make(map[string]*Field, len(fields)),
	}
	for _, f := range fields {
		if _, exists := s.index[f.Name]; exists {
			continue
		}
		s.fields = append(s.fields, f)
		s.index[f.Name] = f
	}
	return s
}

// Marker builds a field-less schema
func Marker(name string) *Schema {
	return New(name)
}

// Name returns the identifier of the schema
func (s *Schema) Name() string {
	return s.name
}

// Title returns the human readable title
func (s *Schema) Title() string {
	return s.title
}

// WithTitle returns a copy of the schema with a title
func (s *Schema) WithTitle(title string) *Schema {
	c := s.clone()
	c.title = title
	return c
}

// Renamed returns a copy of the schema bound to a new identifier
func (s *Schema) Renamed(name string) *Schema {
	c := s.clone()
	c.name = name
	return c
}

func (s *Schema) clone() *Schema {
	return &Schema{
		name:   s.name,
		title:  s.title,
		fields: slices.Clone(s.fields),
		index:  maps.Clone(s.index),
	}
}

// Get returns the named field or nil
func (s *Schema) Get(name string) *Field {
	if s == nil {
		return nil
	}
	return s.index[name]
}

// Has reports whether the schema declares the named field
func (s *Schema) Has(name string) bool {
	return s.Get(name) != nil
}

// Fields returns the fields in declaration order
func (s *Schema) Fields() []*Field {
	if s == nil {
		return nil
	}
	return slices.Clone(s.fields)
}

// Names returns the field names in declaration order
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Len returns the number of fields
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

// PrimaryFields returns the fields marked primary, in order
func (s *Schema) PrimaryFields() []*Field {
	var out []*Field
	for _, f := range s.Fields() {
		if f.Primary {
			out = append(out, f)
		}
	}
	return out
}

// Equal reports whether two schemas have the same name and fields
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.name != other.name || len(s.fields) != len(other.fields) {
		return false
	}
	for i := range s.fields {
		if !s.fields[i].Equal(other.fields[i]) {
			return false
		}
	}
	return true
}

// ReadPermissions merges field read permissions across schemata.
// Earlier schemata win when a field name is declared twice.
func ReadPermissions(schemata ...*Schema) map[string]string {
	out := make(map[string]string)
	for _, s := range schemata {
		for _, f := range s.Fields() {
			if f.ReadPermission == "" {
				continue
			}
			if _, exists := out[f.Name]; !exists {
				out[f.Name] = f.ReadPermission
			}
		}
	}
	return out
}

// FindField returns the first declaration of name across schemata
func FindField(name string, schemata ...*Schema) *Field {
	for _, s := range schemata {
		if f := s.Get(name); f != nil {
			return f
		}
	}
	return nil
}

// Model is a compiled model document: a set of schemata keyed by name,
// where the unnamed ("") entry is the main schema.
type Model struct {
	Schemata map[string]*Schema
	source   string
}

// NewSchemaOnlyModel wraps a single schema in a one-slot model
func NewSchemaOnlyModel(s *Schema) *Model {
	return &Model{Schemata: map[string]*Schema{"": s}}
}

// Schema returns the main schema of the model
func (m *Model) Schema() *Schema {
	if m == nil {
		return nil
	}
	return m.Schemata[""]
}

// Source returns the document the model was compiled from, if any
func (m *Model) Source() string {
	return m.source
}

// Names returns the schema names of the model, main schema first
func (m *Model) Names() []string {
	names := slices.Sorted(maps.Keys(m.Schemata))
	return names
}
