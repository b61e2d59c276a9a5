package schema

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageModel = `
fields:
  - name: title
    type: textline
  - name: body
    type: text
    primary: true
schemata:
  settings:
    fields:
      - name: rank
        type: int
        default: 3
`

func TestLoader_LoadString(t *testing.T) {
	l := NewLoader()

	m, err := l.LoadString(pageModel)
	require.NoError(t, err)

	require.NotNil(t, m.Schema())
	assert.Equal(t, []string{"title", "body"}, m.Schema().Names())
	require.Contains(t, m.Schemata, "settings")
	assert.Equal(t, int64(3), m.Schemata["settings"].Get("rank").Default)
	assert.Equal(t, []string{"", "settings"}, m.Names())
	assert.Equal(t, pageModel, m.Source())
}

func TestLoader_LoadString_MemoizedBySource(t *testing.T) {
	l := NewLoader()

	m1, err := l.LoadString(pageModel)
	require.NoError(t, err)
	m2, err := l.LoadString(pageModel)
	require.NoError(t, err)
	assert.Same(t, m1, m2)

	m3, err := l.LoadString(`{"fields": []}`)
	require.NoError(t, err)
	assert.NotSame(t, m1, m3)
}

func TestLoader_LoadString_EmptyModel(t *testing.T) {
	l := NewLoader()

	for _, src := range []string{"", "{}"} {
		m, err := l.LoadString(src)
		require.NoError(t, err)
		require.NotNil(t, m.Schema())
		assert.Equal(t, 0, m.Schema().Len())
	}
}

func TestLoader_LoadString_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"not yaml", "fields: [unclosed"},
		{"unknown property", `{"widgets": []}`},
		{"unknown field type", `{"fields": [{"name": "a", "type": "blob"}]}`},
		{"missing field name", `{"fields": [{"type": "text"}]}`},
		{"bad field name", `{"fields": [{"name": "1a", "type": "text"}]}`},
		{"duplicate field", `{"fields": [{"name": "a", "type": "text"}, {"name": "a", "type": "int"}]}`},
		{"bad default", `{"fields": [{"name": "a", "type": "int", "default": "x"}]}`},
	}

	l := NewLoader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.LoadString(tt.src)
			var invalid InvalidModelError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestLoader_LoadFile_Package(t *testing.T) {
	l := NewLoader()
	l.AddResourceRoot("example.pkg", fstest.MapFS{
		"models/page.yaml": {Data: []byte(pageModel)},
	})

	m, err := l.LoadFile("example.pkg:models/page.yaml", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "body"}, m.Schema().Names())

	again, err := l.LoadFile("example.pkg:models/page.yaml", true)
	require.NoError(t, err)
	assert.Same(t, m, again)

	_, err = l.LoadFile("example.pkg:models/missing.yaml", false)
	assert.ErrorAs(t, err, &NotFoundError{})

	_, err = l.LoadFile("unknown.pkg:models/page.yaml", false)
	assert.ErrorAs(t, err, &NotFoundError{})

	_, err = l.LoadFile("relative/page.yaml", false)
	assert.ErrorAs(t, err, &InvalidModelError{})
}

func TestLoader_LoadFile_Absolute(t *testing.T) {
	l := NewLoader()

	path, err := filepath.Abs(filepath.Join("testdata", "page.yaml"))
	require.NoError(t, err)

	m, err := l.LoadFile(path, false)
	require.NoError(t, err)
	assert.Equal(t, "text/html", m.Schema().Get("body").MimeType)
	assert.Equal(t, "No summary", m.Schema().Get("summary").Default)
	assert.Equal(t, "Page", m.Schema().Title())
}

func TestLoader_LoadFile_ReloadPicksUpChanges(t *testing.T) {
	l := NewLoader()
	path := filepath.Join(t.TempDir(), "model.yaml")

	require.NoError(t, os.WriteFile(path, []byte(`{"fields": [{"name": "a", "type": "text"}]}`), 0o600))
	m1, err := l.LoadFile(path, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"fields": [{"name": "b", "type": "text"}]}`), 0o600))
	cached, err := l.LoadFile(path, false)
	require.NoError(t, err)
	assert.Same(t, m1, cached)

	reloaded, err := l.LoadFile(path, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, reloaded.Schema().Names())
}

func TestLoader_WindowsAbsolutePath(t *testing.T) {
	l := NewLoader()
	var requested string
	l.readFile = func(name string) ([]byte, error) {
		requested = name
		return []byte(`{}`), nil
	}

	_, err := l.LoadFile(`C:\models\page.yaml`, false)
	require.NoError(t, err)
	assert.Equal(t, `C:\models\page.yaml`, requested)
}

func TestValidator_Validate(t *testing.T) {
	validator := NewValidator()

	schemaDef := []byte(`{
		"type": "object",
		"properties": {"name": {"type": "string"}},
		"required": ["name"]
	}`)

	assert.NoError(t, validator.Validate([]byte(`{"name": "a"}`), schemaDef))
	assert.Error(t, validator.Validate([]byte(`{"name": 1}`), schemaDef))
	assert.Error(t, validator.Validate([]byte(`{}`), schemaDef))

	err := validator.Validate([]byte(`{invalid`), schemaDef)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")

	s1, err := validator.CompileSchema(schemaDef)
	require.NoError(t, err)
	s2, err := validator.CompileSchema(schemaDef)
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	validator.ClearCache()
	s3, err := validator.CompileSchema(schemaDef)
	require.NoError(t, err)
	assert.NotSame(t, s1, s3)
}
