package content

import (
	"sync/atomic"

	"github.com/flowmesh/dexterity/internal/schema"
)

type stubTypes struct {
	schemas   map[string]*schema.Schema
	subtypes  map[string][]*schema.Schema
	behaviors map[string][]*schema.Schema
	counters  map[string]int64
	gets      atomic.Int64
}

func newStubTypes() *stubTypes {
	return &stubTypes{
		schemas:   make(map[string]*schema.Schema),
		subtypes:  make(map[string][]*schema.Schema),
		behaviors: make(map[string][]*schema.Schema),
		counters:  make(map[string]int64),
	}
}

func (s *stubTypes) Get(typeID string) *schema.Schema {
	s.gets.Add(1)
	return s.schemas[typeID]
}

func (s *stubTypes) Subtypes(typeID string) []*schema.Schema {
	return s.subtypes[typeID]
}

func (s *stubTypes) Schemata(typeID string) []*schema.Schema {
	var out []*schema.Schema
	if sc := s.schemas[typeID]; sc != nil {
		out = append(out, sc)
	}
	return append(out, s.behaviors[typeID]...)
}

func (s *stubTypes) Counter(typeID string) int64 {
	return s.counters[typeID]
}

func pageSchema() *schema.Schema {
	return schema.New("site_0_page",
		&schema.Field{Name: "title", Type: schema.TypeTextLine, Required: true},
		&schema.Field{Name: "summary", Type: schema.TypeText, Default: "none"},
		&schema.Field{Name: "rank", Type: schema.TypeInt, Default: int64(1)},
		&schema.Field{Name: "secret", Type: schema.TypeText, ReadPermission: "cmf.ModifyPortalContent"},
		&schema.Field{Name: "odd", Type: schema.TypeText, ReadPermission: "example.Unknown"},
	)
}
