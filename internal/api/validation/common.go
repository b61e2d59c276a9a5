package validation

import (
	"fmt"
	"strings"

	"github.com/flowmesh/dexterity/internal/content"
)

// ValidateNonEmpty validates that a string is not empty
func ValidateNonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{Field: field, Reason: "cannot be empty"}
	}
	return nil
}

// ValidateID validates a type or content identifier
func ValidateID(field, id string) error {
	if err := ValidateNonEmpty(field, id); err != nil {
		return err
	}
	if err := content.CheckID(id); err != nil {
		return ValidationError{Field: field, Reason: err.Error()}
	}
	return nil
}

// ValidateKind validates a type klass; empty selects the default
func ValidateKind(kind string) error {
	if kind == "" || content.Kind(kind).Valid() {
		return nil
	}
	return ValidationError{Field: "klass", Reason: fmt.Sprintf("%q must be item or container", kind)}
}
