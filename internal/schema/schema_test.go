package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestField_Coerce(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		input   any
		want    any
		wantErr bool
	}{
		{"text from string", Field{Name: "a", Type: TypeText}, "hello", "hello", false},
		{"text from bytes", Field{Name: "a", Type: TypeTextLine}, []byte("hi"), "hi", false},
		{"int from float", Field{Name: "a", Type: TypeInt}, float64(42), int64(42), false},
		{"int from fractional float", Field{Name: "a", Type: TypeInt}, 4.5, nil, true},
		{"int from string", Field{Name: "a", Type: TypeInt}, " 7 ", int64(7), false},
		{"float from int", Field{Name: "a", Type: TypeFloat}, 3, float64(3), false},
		{"bool from string", Field{Name: "a", Type: TypeBool}, "true", true, false},
		{"date from string", Field{Name: "a", Type: TypeDate}, "2024-02-29", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), false},
		{"list from any slice", Field{Name: "a", Type: TypeList}, []any{"x", "y"}, []string{"x", "y"}, false},
		{"list with non-string", Field{Name: "a", Type: TypeList}, []any{"x", 1}, nil, true},
		{"bytes from string", Field{Name: "a", Type: TypeBytes}, "raw", []byte("raw"), false},
		{"bool from int", Field{Name: "a", Type: TypeBool}, 1, nil, true},
		{"nil stays nil", Field{Name: "a", Type: TypeInt}, nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.field.Coerce(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestField_Validate(t *testing.T) {
	required := &Field{Name: "title", Type: TypeTextLine, Required: true, MaxLength: 5}
	assert.Error(t, required.Validate(""))
	assert.Error(t, required.Validate(nil))
	assert.Error(t, required.Validate("too long"))
	assert.NoError(t, required.Validate("ok"))

	choice := &Field{Name: "color", Type: TypeChoice, Values: []string{"red", "blue"}}
	assert.NoError(t, choice.Validate("red"))
	assert.Error(t, choice.Validate("green"))
	assert.NoError(t, choice.Validate(""))
}

func TestSchema_Basics(t *testing.T) {
	s := New("example.IPage",
		&Field{Name: "title", Type: TypeTextLine},
		&Field{Name: "body", Type: TypeText, Primary: true, ReadPermission: "View"},
		&Field{Name: "title", Type: TypeText},
	)

	assert.Equal(t, "example.IPage", s.Name())
	assert.Equal(t, []string{"title", "body"}, s.Names())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, TypeTextLine, s.Get("title").Type)
	assert.Nil(t, s.Get("missing"))
	require.Len(t, s.PrimaryFields(), 1)
	assert.Equal(t, "body", s.PrimaryFields()[0].Name)

	renamed := s.Renamed("other")
	assert.Equal(t, "other", renamed.Name())
	assert.Equal(t, "example.IPage", s.Name())
	assert.False(t, s.Equal(renamed))
	assert.True(t, renamed.Equal(s.Renamed("other")))
}

func TestReadPermissions_FirstDeclarationWins(t *testing.T) {
	a := New("a", &Field{Name: "secret", Type: TypeText, ReadPermission: "Manage"})
	b := New("b",
		&Field{Name: "secret", Type: TypeText, ReadPermission: "View"},
		&Field{Name: "notes", Type: TypeText, ReadPermission: "Review"},
		&Field{Name: "open", Type: TypeText},
	)

	perms := ReadPermissions(a, b)
	assert.Equal(t, map[string]string{"secret": "Manage", "notes": "Review"}, perms)
}

func TestNewSchemaOnlyModel(t *testing.T) {
	s := Marker("example.IMarker")
	m := NewSchemaOnlyModel(s)

	assert.Len(t, m.Schemata, 1)
	assert.Same(t, s, m.Schema())
}

func TestNamed(t *testing.T) {
	n := NewNamed()
	s := Marker("example.ITest")
	require.NoError(t, n.Register(s))
	require.NoError(t, n.Register(s))
	assert.Error(t, n.Register(Marker("example.ITest")))
	assert.Error(t, n.Register(Marker("")))

	got, err := n.Resolve("example.ITest")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = n.Resolve("example.IMissing")
	var notFound NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSchemaName_RoundTrip(t *testing.T) {
	tests := []struct {
		site, typeID, schema string
	}{
		{"site", "page", ""},
		{"my site", "news.item", ""},
		{"plone", "some_type-2/x", "settings"},
		{"café", "ü", ""},
	}

	for _, tt := range tests {
		name := SchemaName(tt.site, tt.typeID, tt.schema)
		site, typeID, schemaName, err := SplitSchemaName(name)
		require.NoError(t, err, name)
		assert.Equal(t, tt.site, site)
		assert.Equal(t, tt.typeID, typeID)
		assert.Equal(t, tt.schema, schemaName)
	}

	assert.Equal(t, "site_0_news_2_item", SchemaName("site", "news.item"))

	_, _, _, err := SplitSchemaName("a_9_b")
	assert.Error(t, err)
	_, _, _, err = SplitSchemaName("onlyone")
	assert.Error(t, err)
}

func TestGenerated(t *testing.T) {
	g := NewGenerated()
	_, ok := g.Get("site_0_page")
	assert.False(t, ok)

	bound := g.Set("site_0_page", New("", &Field{Name: "a", Type: TypeText}))
	assert.Equal(t, "site_0_page", bound.Name())

	got, ok := g.Get("site_0_page")
	require.True(t, ok)
	assert.Same(t, bound, got)

	g.Clear("site_0_page")
	_, ok = g.Get("site_0_page")
	assert.False(t, ok)
}
