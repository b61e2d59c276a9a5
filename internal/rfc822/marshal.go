package rfc822

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strconv"
	"time"

	"github.com/flowmesh/dexterity/internal/schema"
)

// Object is the field storage a message is built from and applied to
type Object interface {
	Get(name string) (any, error)
	Set(name string, value any)
}

// ConstructMessage marshals the fields of obj declared by schemata.
// Secondary fields become headers in declaration order. A single primary
// field becomes the body; several primary fields become the parts of a
// multipart message. Without primary fields the body is empty.
func ConstructMessage(obj Object, schemata []*schema.Schema, charset string) (*Message, error) {
	if charset == "" {
		charset = DefaultCharset
	}

	msg := NewMessage()
	type assignment struct {
		name  string
		value any
	}
	var pending []assignment

	var primary []*schema.Field
	for _, f := range uniqueFields(schemata) {
		if f.Primary {
			primary = append(primary, f)
			continue
		}
		values := msg.Values(f.Name)
		if len(values) == 0 {
			continue
		}
		v, err := unmarshalValue(f, values)
		if err != nil {
			return err
		}
		pending = append(pending, assignment{f.Name, v})
	}

	switch {
	case len(primary) == 0:
	case len(primary) == 1 && !msg.IsMultipart():
		v, err := bodyValue(primary[0], msg, charset)
		if err != nil {
			return err
		}
		pending = append(pending, assignment{primary[0].Name, v})
	default:
		for i, part := range msg.Parts {
			f := partField(part, primary, i)
			if f == nil {
				continue
			}
			partCharset := charset
			if cs := part.Charset(); cs != "" {
				partCharset = cs
			}
			v, err := bodyValue(f, part, partCharset)
			if err != nil {
				return err
			}
			pending = append(pending, assignment{f.Name, v})
		}
	}

	for _, a := range pending {
		obj.Set(a.name, a.value)
	}
	return nil
}

// partField matches a part to a primary field by its disposition name,
// falling back to position
func partField(part *Message, primary []*schema.Field, index int) *schema.Field {
	if _, params, err := mime.ParseMediaType(part.Get(HeaderContentDisposition)); err == nil {
		if name := params["name"]; name != "" {
			for _, f := range primary {
				if f.Name == name {
					return f
				}
			}
			return nil
		}
	}
	if index < len(primary) {
		return primary[index]
	}
	return nil
}

func uniqueFields(schemata []*schema.Schema) []*schema.Field {
	seen := make(map[string]bool)
	var out []*schema.Field
	for _, s := range schemata {
		for _, f := range s.Fields() {
			if seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			out = append(out, f)
		}
	}
	return out
}

func setBody(m *Message, obj Object, f *schema.Field, charset string) error {
	value, err := obj.Get(f.Name)
	if err != nil {
		value = nil
	}

	if f.Type == schema.TypeBytes {
		data, _ := value.([]byte)
		m.Add(HeaderContentType, f.BodyMimeType())
		m.Add(HeaderTransferEncoding, "base64")
		m.Body = append([]byte(nil), data...)
		return nil
	}

	var text string
	if value != nil {
		if values := marshalValue(f, value); len(values) > 0 {
			text = values[0]
			for _, v := range values[1:] {
				text += "\n" + v
			}
		}
	}
	body, err := encodeText(text, charset)
	if err != nil {
		return err
	}

	m.Add(HeaderContentType, mime.FormatMediaType(f.BodyMimeType(), map[string]string{"charset": charset}))
	if hasNonASCII(body) {
		m.Add(HeaderTransferEncoding, "8bit")
	}
	m.Body = body
	return nil
}

// bodyValue decodes the body of m as the value of f
func bodyValue(f *schema.Field, m *Message, charset string) (any, error) {
	if f.Type == schema.TypeBytes {
		return append([]byte(nil), m.Body...), nil
	}

	text, err := decodeText(m.Body, charset)
	if err != nil {
		return nil, err
	}
	var raw any = text
	if f.Type == schema.TypeList {
		raw = splitLines(text)
	}
	v, err := f.Coerce(raw)
	if err != nil {
		return nil, FieldValueError{Field: f.Name, Reason: err.Error()}
	}
	return v, nil
}

// marshalValue renders a canonical field value as header values
func marshalValue(f *schema.Field, value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case int64:
		return []string{strconv.FormatInt(v, 10)}
	case int:
		return []string{strconv.Itoa(v)}
	case float64:
		return []string{strconv.FormatFloat(v, 'g', -1, 64)}
	case bool:
		if v {
			return []string{"True"}
		}
		return []string{"False"}
	case time.Time:
		if f.Type == schema.TypeDate {
			return []string{v.Format(schema.DateLayout)}
		}
		return []string{v.Format(time.RFC3339Nano)}
	case []string:
		return append([]string(nil), v...)
	case []byte:
		return []string{base64.StdEncoding.EncodeToString(v)}
	}
	return []string{fmt.Sprint(value)}
}

// unmarshalValue parses header values back into a canonical field value
func unmarshalValue(f *schema.Field, values []string) (any, error) {
	switch f.Type {
	case schema.TypeList:
		return append([]string(nil), values...), nil
	case schema.TypeBytes:
		data, err := base64.StdEncoding.DecodeString(values[0])
		if err != nil {
			return nil, FieldValueError{Field: f.Name, Reason: err.Error()}
		}
		return data, nil
	}

	v, err := f.Coerce(values[0])
	if err != nil {
		return nil, FieldValueError{Field: f.Name, Reason: err.Error()}
	}
	return v, nil
}

func splitLines(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			out = append(out, text[start:i])
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
