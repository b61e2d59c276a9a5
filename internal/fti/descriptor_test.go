package fti

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/dexterity/internal/event"
	"github.com/flowmesh/dexterity/internal/schema"
)

func TestNewDescriptor_Defaults(t *testing.T) {
	f := newFixture(t)

	d, err := NewDescriptor(f.env, Properties{ID: "testtype"})
	require.NoError(t, err)

	props := d.Properties()
	assert.Equal(t, "testtype", d.ID())
	assert.Equal(t, "testtype", props.Factory)
	assert.Equal(t, "string:${folder_url}/++add++testtype", props.AddViewExpr)
	assert.Equal(t, "testtype", props.Title)
}

func TestNewDescriptor_ExplicitValuesKept(t *testing.T) {
	f := newFixture(t)

	d, err := NewDescriptor(f.env, Properties{
		ID:          "testtype",
		Factory:     "cmf.factory",
		AddViewExpr: "string:${portal_url}/custom",
	})
	require.NoError(t, err)

	assert.Equal(t, "cmf.factory", d.Factory())
	assert.Equal(t, "string:${portal_url}/custom", d.Properties().AddViewExpr)
}

func TestNewDescriptor_Invalid(t *testing.T) {
	f := newFixture(t)

	_, err := NewDescriptor(f.env, Properties{ID: ""})
	assert.Error(t, err)

	_, err = NewDescriptor(f.env, Properties{ID: "ok", Klass: "folderish"})
	assert.IsType(t, InvalidPropertyError{}, err)
}

func TestDescriptor_HasDynamicSchema(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.add(t, Properties{ID: "testtype", Schema: "example.ITestSchema"})

	assert.False(t, d.HasDynamicSchema())
	require.NoError(t, d.UpdateProperty(ctx, PropSchema, ""))
	assert.True(t, d.HasDynamicSchema())
}

func TestDescriptor_LookupSchema_Static(t *testing.T) {
	f := newFixture(t)
	d := f.add(t, Properties{ID: "testtype", Schema: "example.ITestSchema"})

	s, err := d.LookupSchema()
	require.NoError(t, err)
	assert.Same(t, testSchema, s)

	// Memoized
	s, err = d.LookupSchema()
	require.NoError(t, err)
	assert.Same(t, testSchema, s)
}

func TestDescriptor_LookupSchema_StaticMemoDroppedOnChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := schema.New("example.IOther")
	f.env.Named.MustRegister(other)

	d := f.add(t, Properties{ID: "testtype", Schema: "example.ITestSchema"})
	_, err := d.LookupSchema()
	require.NoError(t, err)

	require.NoError(t, d.UpdateProperty(ctx, PropSchema, "example.IOther"))
	s, err := d.LookupSchema()
	require.NoError(t, err)
	assert.Same(t, other, s)
}

func TestDescriptor_LookupSchema_UnknownStatic(t *testing.T) {
	f := newFixture(t)
	d, err := NewDescriptor(f.env, Properties{ID: "testtype", Schema: "example.IMissing"})
	require.NoError(t, err)

	_, err = d.LookupSchema()
	assert.IsType(t, ConfigurationError{}, err)
}

func TestDescriptor_LookupSchema_Dynamic(t *testing.T) {
	f := newFixture(t)
	d, err := NewDescriptor(f.env, Properties{ID: "testtype"})
	require.NoError(t, err)

	bound := f.env.Generated.Set(d.SchemaName(), testSchema)

	s, err := d.LookupSchema()
	require.NoError(t, err)
	assert.Same(t, bound, s)
	assert.Equal(t, "site_0_testtype", s.Name())
}

func TestDescriptor_LookupSchema_DynamicCompiledOnDemand(t *testing.T) {
	f := newFixture(t)
	d, err := NewDescriptor(f.env, Properties{ID: "page", ModelSource: pageSource})
	require.NoError(t, err)

	s, err := d.LookupSchema()
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "body"}, s.Names())

	bound, ok := f.env.Generated.Get(d.SchemaName())
	require.True(t, ok)
	assert.Same(t, bound, s)
}

func TestDescriptor_LookupModel_FromString(t *testing.T) {
	f := newFixture(t)
	d, err := NewDescriptor(f.env, Properties{ID: "testtype", ModelSource: pageSource})
	require.NoError(t, err)

	expected, err := f.env.Loader.LoadString(pageSource)
	require.NoError(t, err)

	model, err := d.LookupModel()
	require.NoError(t, err)
	assert.Same(t, expected, model)
}

func TestDescriptor_LookupModel_FromPackageFile(t *testing.T) {
	f := newFixture(t)
	f.env.Loader.AddResourceRoot("example.tests", fstest.MapFS{
		"models/page.yaml": &fstest.MapFile{Data: []byte(pageSource)},
	})

	d, err := NewDescriptor(f.env, Properties{ID: "testtype", ModelFile: "example.tests:models/page.yaml"})
	require.NoError(t, err)

	model, err := d.LookupModel()
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "body"}, model.Schema().Names())
}

func TestDescriptor_LookupModel_FromAbsolutePath(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "page.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pageSource), 0o600))

	d, err := NewDescriptor(f.env, Properties{ID: "testtype", ModelFile: path})
	require.NoError(t, err)

	model, err := d.LookupModel()
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "body"}, model.Schema().Names())

	// Model files are reloaded on every lookup
	require.NoError(t, os.WriteFile(path, []byte("fields: [{name: rank, type: int}]"), 0o600))
	model, err = d.LookupModel()
	require.NoError(t, err)
	assert.Equal(t, []string{"rank"}, model.Schema().Names())
}

func TestDescriptor_LookupModel_SchemaOnly(t *testing.T) {
	f := newFixture(t)
	d, err := NewDescriptor(f.env, Properties{ID: "testtype", Schema: "example.ITestSchema"})
	require.NoError(t, err)

	model, err := d.LookupModel()
	require.NoError(t, err)
	assert.Len(t, model.Schemata, 1)
	assert.Same(t, testSchema, model.Schema())
}

func TestDescriptor_LookupModel_SourceWinsOverSchema(t *testing.T) {
	f := newFixture(t)
	d, err := NewDescriptor(f.env, Properties{
		ID:          "testtype",
		Schema:      "example.ITestSchema",
		ModelSource: pageSource,
	})
	require.NoError(t, err)

	expected, err := f.env.Loader.LoadString(pageSource)
	require.NoError(t, err)

	model, err := d.LookupModel()
	require.NoError(t, err)
	assert.Same(t, expected, model)

	s, err := d.LookupSchema()
	require.NoError(t, err)
	assert.Same(t, testSchema, s)
}

func TestDescriptor_LookupModel_Failure(t *testing.T) {
	f := newFixture(t)
	d, err := NewDescriptor(f.env, Properties{ID: "testtype"})
	require.NoError(t, err)

	_, err = d.LookupModel()
	assert.IsType(t, ConfigurationError{}, err)
}

func TestDescriptor_UpdateProperty_FiresOnlyWhenChanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.add(t, Properties{ID: "testtype", Title: "Old title"})

	require.NoError(t, d.UpdateProperty(ctx, PropTitle, "New title"))
	require.NoError(t, d.UpdateProperty(ctx, PropGlobalAllow, false))

	events := f.events.modified()
	require.Len(t, events, 1)
	assert.Equal(t, []event.Description{{Attribute: PropTitle, OldValue: "Old title"}}, events[0].Descriptions)
	assert.Equal(t, "New title", d.Title())
}

func TestDescriptor_UpdateProperty_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.add(t, Properties{ID: "testtype"})

	assert.IsType(t, InvalidPropertyError{}, d.UpdateProperty(ctx, "colour", "red"))
	assert.IsType(t, InvalidPropertyError{}, d.UpdateProperty(ctx, PropGlobalAllow, "yes"))
	assert.IsType(t, InvalidPropertyError{}, d.UpdateProperty(ctx, PropKlass, "folderish"))
	assert.Empty(t, f.events.modified())
}

func TestDescriptor_ManageChangeProperties_OneEventPerChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.add(t, Properties{ID: "testtype", Title: "Old title", GlobalAllow: true})

	err := d.ManageChangeProperties(ctx, map[string]any{
		PropTitle:       "New title",
		PropGlobalAllow: true,
		PropDescription: "A type",
	})
	require.NoError(t, err)

	events := f.events.modified()
	require.Len(t, events, 2)
	assert.Equal(t, []event.Description{{Attribute: PropTitle, OldValue: "Old title"}}, events[0].Descriptions)
	assert.Equal(t, []event.Description{{Attribute: PropDescription, OldValue: ""}}, events[1].Descriptions)
}

func TestDescriptor_EditProperties_SingleEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.add(t, Properties{ID: "testtype", Title: "Old title"})

	err := d.EditProperties(ctx, map[string]any{
		PropTitle:     "New title",
		PropBehaviors: []any{"dexterity.behaviors.IBasic"},
		PropKlass:     "item",
	})
	require.NoError(t, err)

	events := f.events.modified()
	require.Len(t, events, 1)
	assert.Equal(t, []event.Description{
		{Attribute: PropTitle, OldValue: "Old title"},
		{Attribute: PropBehaviors, OldValue: []string(nil)},
	}, events[0].Descriptions)
	assert.Equal(t, []string{"dexterity.behaviors.IBasic"}, d.Behaviors())

	require.NoError(t, d.EditProperties(ctx, map[string]any{PropTitle: "New title"}))
	assert.Len(t, f.events.modified(), 1)
}

func TestDescriptor_IsConstructionAllowed(t *testing.T) {
	tests := []struct {
		name       string
		permission string
		granted    string
		expected   bool
	}{
		{"granted", "cmf.AddPortalContent", "Add portal content", true},
		{"not granted", "cmf.AddPortalContent", "", false},
		{"no permission", "", "Add portal content", false},
		{"unknown permission", "example.Unknown", "Add portal content", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.granted != "" {
				f.grants.grant(tt.granted)
			}
			d, err := NewDescriptor(f.env, Properties{ID: "testtype", AddPermission: tt.permission})
			require.NoError(t, err)

			assert.Equal(t, tt.expected, d.IsConstructionAllowed(context.Background(), nil))
		})
	}
}

func TestDescriptor_AllowType(t *testing.T) {
	f := newFixture(t)
	f.add(t, Properties{ID: "page", GlobalAllow: true})
	f.add(t, Properties{ID: "hidden"})

	unfiltered := f.add(t, Properties{ID: "folder", Klass: "container"})
	assert.True(t, unfiltered.AllowType("page", f.tool.Get))
	assert.False(t, unfiltered.AllowType("hidden", f.tool.Get))
	assert.True(t, unfiltered.AllowType("unknown", f.tool.Get))

	filtered := f.add(t, Properties{
		ID:                  "gallery",
		Klass:               "container",
		FilterContentTypes:  true,
		AllowedContentTypes: []string{"hidden"},
	})
	assert.True(t, filtered.AllowType("hidden", f.tool.Get))
	assert.False(t, filtered.AllowType("page", f.tool.Get))
	assert.False(t, filtered.AllowType("unknown", f.tool.Get))
}

func TestDescriptor_BehaviorSchemata(t *testing.T) {
	f := newFixture(t)
	d := f.add(t, Properties{ID: "page", Behaviors: []string{
		"dexterity.behaviors.IBasic",
		"dexterity.behaviors.INameFromTitle",
		"example.IMissing",
	}})

	schemata := d.LookupBehaviorSchemata()
	require.Len(t, schemata, 1)
	assert.Equal(t, "dexterity.behaviors.IBasic", schemata[0].Name())

	subtypes := d.LookupSubtypes()
	require.Len(t, subtypes, 1)
	assert.Equal(t, "dexterity.behaviors.INameFromTitle", subtypes[0].Name())
}
