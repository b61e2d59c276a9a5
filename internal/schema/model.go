package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed model.schema.json
var modelMetaSchema []byte

type modelDocument struct {
	Title    string                    `yaml:"title"`
	Fields   []fieldDocument           `yaml:"fields"`
	Schemata map[string]schemaDocument `yaml:"schemata"`
}

type schemaDocument struct {
	Title  string          `yaml:"title"`
	Fields []fieldDocument `yaml:"fields"`
}

type fieldDocument struct {
	Name            string   `yaml:"name"`
	Type            string   `yaml:"type"`
	Title           string   `yaml:"title"`
	Description     string   `yaml:"description"`
	Required        bool     `yaml:"required"`
	Default         any      `yaml:"default"`
	Primary         bool     `yaml:"primary"`
	MimeType        string   `yaml:"mime_type"`
	ReadPermission  string   `yaml:"read_permission"`
	WritePermission string   `yaml:"write_permission"`
	MaxLength       int      `yaml:"max_length"`
	Values          []string `yaml:"values"`
}

// compileModel parses, validates and compiles a YAML or JSON model document.
// The main schema is always present, possibly empty.
func compileModel(validator *Validator, ref string, src []byte) (*Model, error) {
	var raw any
	if err := yaml.Unmarshal(src, &raw); err != nil {
		return nil, InvalidModelError{Ref: ref, Reason: err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	// Round-trip through JSON so the validator sees JSON value types only
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, InvalidModelError{Ref: ref, Reason: err.Error()}
	}
	if err := validator.Validate(encoded, modelMetaSchema); err != nil {
		return nil, InvalidModelError{Ref: ref, Reason: err.Error()}
	}

	var doc modelDocument
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, InvalidModelError{Ref: ref, Reason: err.Error()}
	}

	model := &Model{
		Schemata: make(map[string]*Schema, len(doc.Schemata)+1),
		source:   string(src),
	}

	main, err := compileSchema("", doc.Title, doc.Fields)
	if err != nil {
		return nil, InvalidModelError{Ref: ref, Reason: err.Error()}
	}
	model.Schemata[""] = main

	for name, sd := range doc.Schemata {
		if name == "" {
			if len(doc.Fields) > 0 {
				return nil, InvalidModelError{Ref: ref, Reason: "main schema declared twice"}
			}
		}
		s, err := compileSchema(name, sd.Title, sd.Fields)
		if err != nil {
			return nil, InvalidModelError{Ref: ref, Reason: err.Error()}
		}
		model.Schemata[name] = s
	}

	return model, nil
}

func compileSchema(name, title string, docs []fieldDocument) (*Schema, error) {
	fields := make([]*Field, 0, len(docs))
	seen := make(map[string]bool, len(docs))

	for _, fd := range docs {
		if seen[fd.Name] {
			return nil, fmt.Errorf("duplicate field %q", fd.Name)
		}
		seen[fd.Name] = true

		f := &Field{
			Name:            fd.Name,
			Type:            FieldType(fd.Type),
			Title:           fd.Title,
			Description:     fd.Description,
			Required:        fd.Required,
			Primary:         fd.Primary,
			MimeType:        fd.MimeType,
			ReadPermission:  fd.ReadPermission,
			WritePermission: fd.WritePermission,
			MaxLength:       fd.MaxLength,
			Values:          fd.Values,
		}
		if !f.Type.Valid() {
			return nil, fmt.Errorf("field %s: unknown type %q", fd.Name, fd.Type)
		}
		if fd.Default != nil {
			def, err := f.Coerce(fd.Default)
			if err != nil {
				return nil, fmt.Errorf("default: %w", err)
			}
			f.Default = def
		}
		fields = append(fields, f)
	}

	s := New(name, fields...)
	s.title = title
	return s, nil
}
