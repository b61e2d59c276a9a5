package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// FieldType names the value type of a schema field
type FieldType string

const (
	TypeTextLine FieldType = "textline"
	TypeText     FieldType = "text"
	TypeChoice   FieldType = "choice"
	TypeInt      FieldType = "int"
	TypeFloat    FieldType = "float"
	TypeBool     FieldType = "bool"
	TypeDatetime FieldType = "datetime"
	TypeDate     FieldType = "date"
	TypeList     FieldType = "list"
	TypeBytes    FieldType = "bytes"
)

// DateLayout is the canonical layout of date fields
const DateLayout = "2006-01-02"

// Valid reports whether t is a known field type
func (t FieldType) Valid() bool {
	switch t {
	case TypeTextLine, TypeText, TypeChoice, TypeInt, TypeFloat, TypeBool,
		TypeDatetime, TypeDate, TypeList, TypeBytes:
		return true
	}
	return false
}

// Field describes one named, typed value of a schema
type Field struct {
	// Name is the attribute name of the field
	Name string
	// Type is the value type
	Type FieldType
	// Title is the human readable label
	Title string
	// Description is the help text
	Description string
	// Required fields reject empty values
	Required bool
	// Default is returned for objects that never set the field
	Default any
	// Primary marks the field as the body of a marshaled record
	Primary bool
	// MimeType is the body MIME type of a primary field
	MimeType string
	// ReadPermission guards attribute access when set
	ReadPermission string
	// WritePermission guards attribute updates when set
	WritePermission string
	// MaxLength bounds text and list values (0 = unbounded)
	MaxLength int
	// Values is the vocabulary of a choice field
	Values []string
}

// BodyMimeType returns the MIME type used when the field is a record body
func (f *Field) BodyMimeType() string {
	if f.MimeType != "" {
		return f.MimeType
	}
	if f.Type == TypeBytes {
		return "application/octet-stream"
	}
	return "text/plain"
}

// Coerce converts a loosely typed value to the field's canonical Go type.
// Canonical types: string (text, textline, choice), int64, float64, bool,
// time.Time (datetime, date), []string (list) and []byte (bytes).
func (f *Field) Coerce(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch f.Type {
	case TypeTextLine, TypeText, TypeChoice:
		switch v := value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case fmt.Stringer:
			return v.String(), nil
		}
	case TypeInt:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case uint64:
			if v <= math.MaxInt64 {
				return int64(v), nil
			}
		case float64:
			if v == math.Trunc(v) {
				return int64(v), nil
			}
		case json.Number:
			return v.Int64()
		case string:
			return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		}
	case TypeFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case json.Number:
			return v.Float64()
		case string:
			return strconv.ParseFloat(strings.TrimSpace(v), 64)
		}
	case TypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(v))
		}
	case TypeDatetime:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case string:
			return time.Parse(time.RFC3339Nano, strings.TrimSpace(v))
		}
	case TypeDate:
		switch v := value.(type) {
		case time.Time:
			y, m, d := v.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		case string:
			return time.Parse(DateLayout, strings.TrimSpace(v))
		}
	case TypeList:
		switch v := value.(type) {
		case []string:
			return slices.Clone(v), nil
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("field %s: list item %v is not a string", f.Name, item)
				}
				out = append(out, s)
			}
			return out, nil
		}
	case TypeBytes:
		switch v := value.(type) {
		case []byte:
			return slices.Clone(v), nil
		case string:
			return []byte(v), nil
		}
	}

	return nil, fmt.Errorf("field %s: cannot use %T as %s", f.Name, value, f.Type)
}

// Validate checks a canonical value against the field constraints
func (f *Field) Validate(value any) error {
	if isEmpty(value) {
		if f.Required {
			return fmt.Errorf("field %s is required", f.Name)
		}
		return nil
	}

	if f.MaxLength > 0 {
		length := 0
		switch v := value.(type) {
		case string:
			length = len([]rune(v))
		case []string:
			length = len(v)
		case []byte:
			length = len(v)
		}
		if length > f.MaxLength {
			return fmt.Errorf("field %s exceeds max length %d", f.Name, f.MaxLength)
		}
	}

	if f.Type == TypeChoice && len(f.Values) > 0 {
		s, _ := value.(string)
		if !slices.Contains(f.Values, s) {
			return fmt.Errorf("field %s: %q is not one of %v", f.Name, s, f.Values)
		}
	}

	return nil
}

// Equal reports whether two fields are structurally identical
func (f *Field) Equal(other *Field) bool {
	if f == nil || other == nil {
		return f == other
	}
	return reflect.DeepEqual(*f, *other)
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []byte:
		return len(v) == 0
	case time.Time:
		return v.IsZero()
	}
	return false
}
