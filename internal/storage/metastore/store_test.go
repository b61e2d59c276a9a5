package metastore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeResource(name, spec string) *Resource {
	return &Resource{
		Site: "site",
		Kind: ResourceType,
		Name: name,
		Spec: json.RawMessage(spec),
	}
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestCreateResource(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir)
	require.NoError(t, err)

	res := typeResource("page", `{"id":"page"}`)
	require.NoError(t, store.CreateResource(res))

	retrieved, err := store.GetResource("site/type/page")
	require.NoError(t, err)
	assert.Equal(t, "page", retrieved.Name)
	assert.JSONEq(t, `{"id":"page"}`, string(retrieved.Spec))
	assert.False(t, retrieved.CreatedAt.IsZero())

	assert.FileExists(t, filepath.Join(tmpDir, DefaultMetadataFile))

	err = store.CreateResource(typeResource("page", `{}`))
	assert.IsType(t, ResourceExistsError{}, err)
}

func TestCreateResource_Invalid(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name string
		res  *Resource
	}{
		{"empty site", &Resource{Kind: ResourceType, Name: "a", Spec: json.RawMessage(`{}`)}},
		{"empty name", &Resource{Site: "s", Kind: ResourceType, Spec: json.RawMessage(`{}`)}},
		{"bad kind", &Resource{Site: "s", Kind: "stream", Name: "a", Spec: json.RawMessage(`{}`)}},
		{"bad spec", &Resource{Site: "s", Kind: ResourceType, Name: "a", Spec: json.RawMessage(`{`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.CreateResource(tt.res)
			assert.IsType(t, InvalidResourceError{}, err)
		})
	}
}

func TestGetResource_NotFound(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.GetResource("site/type/missing")
	assert.IsType(t, ResourceNotFoundError{}, err)
}

func TestPutResource_KeepsCreatedAt(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.PutResource(typeResource("page", `{"title":"A"}`)))
	first, err := store.GetResource("site/type/page")
	require.NoError(t, err)

	require.NoError(t, store.PutResource(typeResource("page", `{"title":"B"}`)))
	second, err := store.GetResource("site/type/page")
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.JSONEq(t, `{"title":"B"}`, string(second.Spec))
}

func TestListResources(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.CreateResource(typeResource("page", `{}`)))
	require.NoError(t, store.CreateResource(typeResource("folder", `{}`)))
	require.NoError(t, store.CreateResource(&Resource{Site: "other", Kind: ResourceType, Name: "news", Spec: json.RawMessage(`{}`)}))
	require.NoError(t, store.CreateResource(&Resource{Site: "site", Kind: ResourceSite, Name: "settings", Spec: json.RawMessage(`{}`)}))

	types, err := store.ListResources("site", ResourceType)
	require.NoError(t, err)
	require.Len(t, types, 2)

	all, err := store.ListResources("", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestUpdateResource(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.CreateResource(typeResource("page", `{"title":"A"}`)))

	err = store.UpdateResource("site/type/page", func(r *Resource) error {
		r.Spec = json.RawMessage(`{"title":"B"}`)
		return nil
	})
	require.NoError(t, err)

	got, err := store.GetResource("site/type/page")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"B"}`, string(got.Spec))

	err = store.UpdateResource("site/type/page", func(r *Resource) error {
		r.Name = "renamed"
		return nil
	})
	assert.Error(t, err)

	err = store.UpdateResource("site/type/missing", func(*Resource) error { return nil })
	assert.IsType(t, ResourceNotFoundError{}, err)
}

func TestDeleteResource(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.CreateResource(typeResource("page", `{}`)))

	require.NoError(t, store.DeleteResource("site/type/page"))
	_, err = store.GetResource("site/type/page")
	assert.Error(t, err)

	assert.IsType(t, ResourceNotFoundError{}, store.DeleteResource("site/type/page"))
}

func TestStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.CreateResource(typeResource("page", `{"id":"page"}`)))

	reopened, err := NewStore(tmpDir)
	require.NoError(t, err)
	got, err := reopened.GetResource("site/type/page")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"page"}`, string(got.Spec))
}

func TestNewStore_CorruptFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, DefaultMetadataFile), []byte("{not json"), 0o600))

	_, err := NewStore(tmpDir)
	assert.Error(t, err)
}
