package rfc822

import "fmt"

// UnknownCharsetError indicates a charset with no known encoding
type UnknownCharsetError struct {
	Charset string
}

func (e UnknownCharsetError) Error() string {
	return fmt.Sprintf("unknown charset: %s", e.Charset)
}

// FieldValueError indicates a marshaled value that does not fit its field
type FieldValueError struct {
	Field  string
	Reason string
}

func (e FieldValueError) Error() string {
	return fmt.Sprintf("invalid value for field %s: %s", e.Field, e.Reason)
}
