package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator validates documents against JSON schemas
type Validator struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewValidator creates a new schema validator
func NewValidator() *Validator {
	return &Validator{
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Validate validates a JSON payload against a schema definition
func (v *Validator) Validate(payload []byte, schemaDefinition []byte) error {
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return v.ValidateValue(doc, schemaDefinition)
}

// ValidateValue validates a decoded JSON value against a schema definition
func (v *Validator) ValidateValue(doc interface{}, schemaDefinition []byte) error {
	schema, err := v.CompileSchema(schemaDefinition)
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// CompileSchema compiles a schema definition and caches it
func (v *Validator) CompileSchema(schemaDefinition []byte) (*jsonschema.Schema, error) {
	cacheKey := string(schemaDefinition)

	v.mu.RLock()
	if compiled, exists := v.compiled[cacheKey]; exists {
		v.mu.RUnlock()
		return compiled, nil
	}
	v.mu.RUnlock()

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaDefinition)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	v.mu.Lock()
	v.compiled[cacheKey] = schema
	v.mu.Unlock()

	return schema, nil
}

// ClearCache clears the compiled schema cache
func (v *Validator) ClearCache() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.compiled = make(map[string]*jsonschema.Schema)
}
