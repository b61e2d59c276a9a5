package schema

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Generated maps generated schema names to schemas compiled from
// dynamic type models. Entries are set on compile and cleared on
// invalidation.
type Generated struct {
	schemas sync.Map // name -> *Schema
}

// NewGenerated creates an empty generated-schema mapping
func NewGenerated() *Generated {
	return &Generated{}
}

// Get returns the schema bound to name
func (g *Generated) Get(name string) (*Schema, bool) {
	v, ok := g.schemas.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Schema), true
}

// Set binds a copy of s renamed to name and returns the bound schema
func (g *Generated) Set(name string, s *Schema) *Schema {
	bound := s.Renamed(name)
	g.schemas.Store(name, bound)
	return bound
}

// Clear drops the binding for name
func (g *Generated) Clear(name string) {
	g.schemas.Delete(name)
}

// Names returns the bound names
func (g *Generated) Names() []string {
	var names []string
	g.schemas.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	return names
}

const nameSeparator = "_0_"

var nameEscapes = map[rune]string{
	' ': "_1_",
	'.': "_2_",
	'-': "_3_",
	'/': "_4_",
	'|': "_5_",
	'_': "_6_",
}

var nameUnescapes = map[string]rune{
	"1": ' ',
	"2": '.',
	"3": '-',
	"4": '/',
	"5": '|',
	"6": '_',
}

// SchemaName derives the generated schema name of a type's main schema,
// or of one of its named schemata when schemaName is set
func SchemaName(siteID, typeID string, schemaName ...string) string {
	parts := []string{encodeNamePart(siteID), encodeNamePart(typeID)}
	if len(schemaName) > 0 && schemaName[0] != "" {
		parts = append(parts, encodeNamePart(schemaName[0]))
	}
	return strings.Join(parts, nameSeparator)
}

// SplitSchemaName reverses SchemaName
func SplitSchemaName(name string) (siteID, typeID, schemaName string, err error) {
	var parts []string
	var cur strings.Builder

	for i := 0; i < len(name); {
		c := name[i]
		if c != '_' {
			cur.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(name[i+1:], '_')
		if end < 0 {
			return "", "", "", InvalidNameError{Name: name}
		}
		code := name[i+1 : i+1+end]
		i += end + 2

		switch {
		case code == "0":
			parts = append(parts, cur.String())
			cur.Reset()
		case strings.HasPrefix(code, "x"):
			r, perr := strconv.ParseInt(code[1:], 16, 32)
			if perr != nil {
				return "", "", "", InvalidNameError{Name: name}
			}
			cur.WriteRune(rune(r))
		default:
			r, ok := nameUnescapes[code]
			if !ok {
				return "", "", "", InvalidNameError{Name: name}
			}
			cur.WriteRune(r)
		}
	}
	parts = append(parts, cur.String())

	switch len(parts) {
	case 2:
		return parts[0], parts[1], "", nil
	case 3:
		return parts[0], parts[1], parts[2], nil
	}
	return "", "", "", InvalidNameError{Name: name}
}

func encodeNamePart(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			if esc, ok := nameEscapes[r]; ok {
				b.WriteString(esc)
			} else {
				fmt.Fprintf(&b, "_x%x_", r)
			}
		}
	}
	return b.String()
}
