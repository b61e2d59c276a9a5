package fti

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/dexterity/internal/event"
	"github.com/flowmesh/dexterity/internal/schema"
)

func TestLifecycle_ComponentsRegisteredOnAdd(t *testing.T) {
	f := newFixture(t)
	d := f.add(t, Properties{ID: "testtype"})

	reg, ok := f.local.LookupLocal(CapabilityDescriptor, "testtype")
	require.True(t, ok)
	assert.Same(t, d, reg.Component)
	assert.Equal(t, DynamicInfo, reg.Info)

	reg, ok = f.local.LookupLocal(CapabilityFactory, "testtype")
	require.True(t, ok)
	assert.Equal(t, DynamicInfo, reg.Info)
	factory, ok := reg.Component.(*Factory)
	require.True(t, ok)
	assert.Equal(t, "testtype", factory.TypeID)
}

func TestLifecycle_ComponentsNotRegisteredIfTheyExist(t *testing.T) {
	f := newFixture(t)
	globalDescriptor := &Descriptor{}
	globalFactory := &Factory{TypeID: "testtype"}
	require.NoError(t, f.global.Register(globalDescriptor, CapabilityDescriptor, "testtype", ""))
	require.NoError(t, f.global.Register(globalFactory, CapabilityFactory, "testtype", ""))

	f.add(t, Properties{ID: "testtype"})

	_, ok := f.local.LookupLocal(CapabilityDescriptor, "testtype")
	assert.False(t, ok)
	_, ok = f.local.LookupLocal(CapabilityFactory, "testtype")
	assert.False(t, ok)
	assert.Same(t, globalFactory, f.local.Query(CapabilityFactory, "testtype"))
}

func TestLifecycle_ComponentsUnregisteredOnRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.add(t, Properties{ID: "testtype", ModelSource: "fields:\n  - name: title\n    type: textline\n"})
	_, err := d.LookupSchema()
	require.NoError(t, err)
	_, ok := f.env.Generated.Get(d.SchemaName())
	require.True(t, ok)

	require.NoError(t, f.tool.Remove(ctx, "testtype"))

	_, ok = f.env.Generated.Get(d.SchemaName())
	assert.False(t, ok)

	_, ok = f.local.Lookup(CapabilityDescriptor, "testtype")
	assert.False(t, ok)
	_, ok = f.local.Lookup(CapabilityFactory, "testtype")
	assert.False(t, ok)
}

func TestLifecycle_RemoveWithoutComponents(t *testing.T) {
	f := newFixture(t)
	d, err := NewDescriptor(f.env, Properties{ID: "testtype"})
	require.NoError(t, err)

	err = f.tool.Lifecycle().Removed(context.Background(), d, event.Removed{OldParent: ToolPath, OldName: "testtype"})
	assert.NoError(t, err)
}

func TestLifecycle_GlobalComponentsNotUnregisteredOnRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.global.Register(&Descriptor{}, CapabilityDescriptor, "testtype", ""))
	require.NoError(t, f.global.Register(&Factory{TypeID: "testtype"}, CapabilityFactory, "testtype", ""))

	f.add(t, Properties{ID: "testtype"})
	require.NoError(t, f.tool.Remove(ctx, "testtype"))

	_, ok := f.local.Lookup(CapabilityDescriptor, "testtype")
	assert.True(t, ok)
	_, ok = f.local.Lookup(CapabilityFactory, "testtype")
	assert.True(t, ok)
}

func TestLifecycle_ComponentsReregisteredOnRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.add(t, Properties{ID: "testtype"})
	assert.Equal(t, "string:${folder_url}/++add++testtype", d.Properties().AddViewExpr)

	renamed, err := f.tool.Rename(ctx, "testtype", "newtype")
	require.NoError(t, err)
	assert.Same(t, d, renamed)
	assert.Equal(t, "newtype", d.ID())
	assert.Equal(t, "newtype", d.Factory())

	_, ok := f.local.Lookup(CapabilityDescriptor, "testtype")
	assert.False(t, ok)
	_, ok = f.local.Lookup(CapabilityFactory, "testtype")
	assert.False(t, ok)

	reg, ok := f.local.LookupLocal(CapabilityDescriptor, "newtype")
	require.True(t, ok)
	assert.Same(t, d, reg.Component)
	reg, ok = f.local.LookupLocal(CapabilityFactory, "newtype")
	require.True(t, ok)
	assert.Equal(t, "newtype", reg.Component.(*Factory).TypeID)

	// The factory follows the id through its own modification first
	events := f.events.modified()
	require.Len(t, events, 1)
	assert.Equal(t, []event.Description{{Attribute: PropFactory, OldValue: "testtype"}}, events[0].Descriptions)
}

func TestLifecycle_RenameKeepsIndependentFactory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, Properties{ID: "testtype", Factory: "shared.factory"})

	_, err := f.tool.Rename(ctx, "testtype", "newtype")
	require.NoError(t, err)

	reg, ok := f.local.LookupLocal(CapabilityFactory, "shared.factory")
	require.True(t, ok)
	assert.Equal(t, "newtype", reg.Component.(*Factory).TypeID)
	assert.Empty(t, f.events.modified())
}

func TestLifecycle_MoveToOtherContainerIgnored(t *testing.T) {
	f := newFixture(t)
	d := f.add(t, Properties{ID: "testtype"})

	ev := event.Moved{OldParent: ToolPath, OldName: "testtype", NewParent: "/elsewhere", NewName: "testtype"}
	require.NoError(t, f.tool.Lifecycle().Renamed(context.Background(), d, ev))

	_, ok := f.local.LookupLocal(CapabilityDescriptor, "testtype")
	assert.True(t, ok)
}

func TestLifecycle_DynamicSchemaRefreshedOnModelSourceChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.add(t, Properties{ID: "testtype"})
	f.env.Generated.Set(d.SchemaName(), schema.Marker("blank"))

	counter := f.env.Cache.Counter("testtype")
	require.NoError(t, d.UpdateProperty(ctx, PropModelSource, pageSource))

	s, ok := f.env.Generated.Get(d.SchemaName())
	require.True(t, ok)
	assert.Equal(t, []string{"title", "body"}, s.Names())
	assert.Greater(t, f.env.Cache.Counter("testtype"), counter)
	assert.Equal(t, []string{"title", "body"}, f.env.Cache.Get("testtype").Names())
}

func TestLifecycle_DynamicSchemaRefreshedOnModelFileChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.add(t, Properties{ID: "testtype"})
	f.env.Generated.Set(d.SchemaName(), schema.Marker("blank"))

	require.NoError(t, d.UpdateProperty(ctx, PropModelFile, "dexterity:models/basic.yaml"))

	s, ok := f.env.Generated.Get(d.SchemaName())
	require.True(t, ok)
	assert.True(t, s.Has("title"))
	assert.True(t, s.Has("description"))
}

func TestLifecycle_ConcreteSchemaNotRefreshedOnSchemaChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.add(t, Properties{ID: "testtype"})
	blank := f.env.Generated.Set(d.SchemaName(), schema.Marker("blank"))

	counter := f.env.Cache.Counter("testtype")
	require.NoError(t, d.UpdateProperty(ctx, PropSchema, "example.ITestSchema"))
	require.False(t, d.HasDynamicSchema())

	s, ok := f.env.Generated.Get(d.SchemaName())
	require.True(t, ok)
	assert.Same(t, blank, s)
	assert.Greater(t, f.env.Cache.Counter("testtype"), counter)
	assert.Same(t, testSchema, f.env.Cache.Get("testtype"))
}

func TestLifecycle_StaticSchemaNotRefreshedOnModelSourceChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.add(t, Properties{ID: "testtype", Schema: "example.ITestSchema"})
	blank := f.env.Generated.Set(d.SchemaName(), schema.Marker("blank"))

	require.NoError(t, d.UpdateProperty(ctx, PropModelSource, "fields:\n  - name: title\n    type: textline\n"))
	require.False(t, d.HasDynamicSchema())

	s, ok := f.env.Generated.Get(d.SchemaName())
	require.True(t, ok)
	assert.Same(t, blank, s)
	assert.Same(t, testSchema, f.env.Cache.Get("testtype"))
}

func TestLifecycle_SchemaChangeToDynamic(t *testing.T) {
	tests := []struct {
		name        string
		modelSource string
		wantFields  []string
	}{
		{name: "with model source", modelSource: pageSource, wantFields: []string{"title", "body"}},
		{name: "without model", modelSource: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			d := f.add(t, Properties{ID: "testtype", Schema: "example.ITestSchema", ModelSource: tt.modelSource})
			f.env.Generated.Set(d.SchemaName(), schema.Marker("blank"))

			require.NoError(t, d.UpdateProperty(ctx, PropSchema, ""))
			require.True(t, d.HasDynamicSchema())

			s, ok := f.env.Generated.Get(d.SchemaName())
			if tt.wantFields == nil {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantFields, s.Names())
		})
	}
}

func TestLifecycle_AddRenameRemoveLeavesNoRegistrations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, Properties{ID: "testtype"})

	_, err := f.tool.Rename(ctx, "testtype", "newtype")
	require.NoError(t, err)
	factories := f.local.All(CapabilityFactory)
	require.Len(t, factories, 1)
	assert.Equal(t, "newtype", factories[0].Name)

	require.NoError(t, f.tool.Remove(ctx, "newtype"))

	for _, id := range []string{"testtype", "newtype"} {
		_, ok := f.local.Lookup(CapabilityDescriptor, id)
		assert.False(t, ok, id)
		_, ok = f.local.Lookup(CapabilityFactory, id)
		assert.False(t, ok, id)
	}
	for _, reg := range f.local.Registrations() {
		assert.NotEqual(t, DynamicInfo, reg.Info, "%s %s", reg.Provided, reg.Name)
	}
}

func TestLifecycle_BehaviorChangeInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.add(t, Properties{ID: "testtype", Schema: "example.ITestSchema"})
	assert.Empty(t, f.env.Cache.Subtypes("testtype"))

	require.NoError(t, d.UpdateProperty(ctx, PropBehaviors, []string{"dexterity.behaviors.INameFromTitle"}))

	subtypes := f.env.Cache.Subtypes("testtype")
	require.Len(t, subtypes, 1)
	assert.Equal(t, "dexterity.behaviors.INameFromTitle", subtypes[0].Name())
}

func TestLifecycle_TitleChangeKeepsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.add(t, Properties{ID: "testtype", Schema: "example.ITestSchema"})

	counter := f.env.Cache.Counter("testtype")
	require.NoError(t, d.UpdateProperty(ctx, PropTitle, "Renamed"))
	assert.Equal(t, counter, f.env.Cache.Counter("testtype"))
}

func TestLifecycle_OldFactoryUnregisteredAfterNameChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.add(t, Properties{ID: "testtype", Factory: "old-factory"})

	require.NoError(t, d.UpdateProperty(ctx, PropFactory, "new-factory"))

	_, ok := f.local.Lookup(CapabilityFactory, "old-factory")
	assert.False(t, ok)
	reg, ok := f.local.LookupLocal(CapabilityFactory, "new-factory")
	require.True(t, ok)
	assert.Equal(t, DynamicInfo, reg.Info)
	assert.Equal(t, "testtype", reg.Component.(*Factory).TypeID)
}

func TestLifecycle_NewFactoryNotRegisteredIfItExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing := &Factory{TypeID: "testtype"}
	require.NoError(t, f.global.Register(existing, CapabilityFactory, "new-factory", ""))

	d := f.add(t, Properties{ID: "testtype", Factory: "old-factory"})
	require.NoError(t, d.UpdateProperty(ctx, PropFactory, "new-factory"))

	_, ok := f.local.LookupLocal(CapabilityFactory, "new-factory")
	assert.False(t, ok)
	assert.Same(t, existing, f.local.Query(CapabilityFactory, "new-factory"))
}

func TestLifecycle_OldFactoryKeptIfNotRegisteredByLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	foreign := &Factory{TypeID: "testtype"}
	require.NoError(t, f.local.Register(foreign, CapabilityFactory, "old-factory", ""))

	d := f.add(t, Properties{ID: "testtype", Factory: "old-factory"})
	require.NoError(t, d.UpdateProperty(ctx, PropFactory, "new-factory"))

	reg, ok := f.local.LookupLocal(CapabilityFactory, "old-factory")
	require.True(t, ok)
	assert.Same(t, foreign, reg.Component)
	_, ok = f.local.LookupLocal(CapabilityFactory, "new-factory")
	assert.True(t, ok)
}

func TestLifecycle_SharedFactoryKeptWhileInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, Properties{ID: "first", Factory: "shared"})
	f.add(t, Properties{ID: "second", Factory: "shared"})

	require.NoError(t, f.tool.Remove(ctx, "first"))
	_, ok := f.local.LookupLocal(CapabilityFactory, "shared")
	assert.True(t, ok)

	require.NoError(t, f.tool.Remove(ctx, "second"))
	_, ok = f.local.LookupLocal(CapabilityFactory, "shared")
	assert.False(t, ok)
}
