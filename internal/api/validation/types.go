package validation

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// typeRequestSchema constrains type creation bodies before they are
// decoded into properties
const typeRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "title": {"type": "string"},
    "description": {"type": "string"},
    "schema": {"type": "string"},
    "model_source": {"type": "string"},
    "model_file": {"type": "string"},
    "factory": {"type": "string"},
    "add_permission": {"type": "string"},
    "global_allow": {"type": "boolean"},
    "filter_content_types": {"type": "boolean"},
    "allowed_content_types": {"type": "array", "items": {"type": "string"}},
    "behaviors": {"type": "array", "items": {"type": "string"}},
    "klass": {"enum": ["", "item", "container"]},
    "add_view_expr": {"type": "string"},
    "allow_discussion": {"type": "boolean"}
  },
  "additionalProperties": false
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func typeSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("type.json", bytes.NewReader([]byte(typeRequestSchema))); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = compiler.Compile("type.json")
	})
	return compiled, compileErr
}

// ValidateTypeRequest checks a type creation body
func ValidateTypeRequest(body []byte) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ValidationError{Field: "body", Reason: err.Error()}
	}

	s, err := typeSchema()
	if err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return ValidationError{Field: "body", Reason: err.Error()}
	}

	props, _ := doc.(map[string]any)
	id, _ := props["id"].(string)
	return ValidateID("id", id)
}
