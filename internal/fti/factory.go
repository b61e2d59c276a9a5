package fti

import (
	"github.com/flowmesh/dexterity/internal/content"
)

// Factory creates content objects of one type. Factories are registered
// in the component registry under the factory name of their type.
type Factory struct {
	TypeID string
	tool   *Tool
}

// Create builds an unattached object with the given id. The object kind
// follows the klass of the type.
func (f *Factory) Create(id string) (*content.Content, error) {
	if err := content.CheckID(id); err != nil {
		return nil, err
	}
	d, ok := f.tool.Get(f.TypeID)
	if !ok {
		return nil, NotFoundError{TypeID: f.TypeID}
	}
	return content.New(id, f.TypeID, d.Klass(), f.tool.env.Cache), nil
}
