package event

// Kind identifies an event type for subscription
type Kind string

const (
	KindCreated  Kind = "created"
	KindAdded    Kind = "added"
	KindRemoved  Kind = "removed"
	KindMoved    Kind = "moved"
	KindModified Kind = "modified"
)

// Event is a notification about a subject
type Event interface {
	Kind() Kind
}

// Created is emitted after an object is constructed, before it is added
type Created struct{}

func (Created) Kind() Kind { return KindCreated }

// Added is emitted after an object is added to a container
type Added struct {
	NewParent string
	NewName   string
}

func (Added) Kind() Kind { return KindAdded }

// Removed is emitted after an object is removed from a container
type Removed struct {
	OldParent string
	OldName   string
}

func (Removed) Kind() Kind { return KindRemoved }

// Moved is emitted after an object changes parent or name
type Moved struct {
	OldParent string
	OldName   string
	NewParent string
	NewName   string
}

func (Moved) Kind() Kind { return KindMoved }

// Renamed reports whether the move kept the parent and changed the name
func (m Moved) Renamed() bool {
	return m.OldParent == m.NewParent && m.OldName != m.NewName
}

// Description names one changed attribute and its previous value
type Description struct {
	Attribute string
	OldValue  any
}

// Modified is emitted after attributes of an object change
type Modified struct {
	Descriptions []Description
}

func (Modified) Kind() Kind { return KindModified }

// Changed returns the changed attributes mapped to their old values
func (m Modified) Changed() map[string]any {
	out := make(map[string]any, len(m.Descriptions))
	for _, d := range m.Descriptions {
		out[d.Attribute] = d.OldValue
	}
	return out
}

// Has reports whether attr is among the changed attributes
func (m Modified) Has(attr string) bool {
	for _, d := range m.Descriptions {
		if d.Attribute == attr {
			return true
		}
	}
	return false
}
