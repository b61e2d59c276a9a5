package fti

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/dexterity/internal/behavior"
	"github.com/flowmesh/dexterity/internal/component"
	"github.com/flowmesh/dexterity/internal/event"
	"github.com/flowmesh/dexterity/internal/schema"
	"github.com/flowmesh/dexterity/internal/security"
	"github.com/flowmesh/dexterity/internal/storage/metastore"
)

const pageSource = `
title: Page
fields:
  - name: title
    type: textline
    required: true
  - name: body
    type: text
    primary: true
`

// testSchema is the statically named schema used by descriptors with a
// schema property
var testSchema = schema.New("example.ITestSchema",
	&schema.Field{Name: "title", Type: schema.TypeTextLine},
)

type grants struct {
	mu     sync.Mutex
	titles map[string]bool
}

func (g *grants) grant(title string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.titles[title] = true
}

func (g *grants) CheckPermission(_ context.Context, title string, _ any) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.titles[title]
}

type recorder struct {
	mu     sync.Mutex
	events []event.Modified
}

func (r *recorder) handle(_ context.Context, subject any, ev event.Event) error {
	if _, ok := subject.(*Descriptor); !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev.(event.Modified))
	return nil
}

func (r *recorder) modified() []event.Modified {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Modified(nil), r.events...)
}

type fixture struct {
	env    *Environment
	tool   *Tool
	store  *metastore.Store
	global *component.Registry
	local  *component.Registry
	grants *grants
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	store, err := metastore.NewStore(dir)
	require.NoError(t, err)

	named := schema.NewNamed()
	named.MustRegister(testSchema)
	loader := schema.NewLoader()
	behaviors := behavior.NewRegistry()
	require.NoError(t, behavior.RegisterBuiltins(behaviors, named, loader))

	g := &grants{titles: make(map[string]bool)}
	env := &Environment{
		SiteID:      "site",
		Named:       named,
		Generated:   schema.NewGenerated(),
		Loader:      loader,
		Behaviors:   behaviors,
		Checker:     g,
		Permissions: security.NewPermissions(),
		Bus:         event.NewBus(),
	}

	global := component.NewRegistry("global")
	local := component.NewRegistry("site", global)
	tool := NewTool(env, store, local)
	env.Cache = schema.NewCache(tool)
	tool.Subscribe()

	rec := &recorder{}
	env.Bus.Subscribe(event.KindModified, rec.handle)

	return &fixture{
		env:    env,
		tool:   tool,
		store:  store,
		global: global,
		local:  local,
		grants: g,
		events: rec,
	}
}

func (f *fixture) add(t *testing.T, props Properties) *Descriptor {
	t.Helper()
	d, err := f.tool.Add(context.Background(), props)
	require.NoError(t, err)
	return d
}
