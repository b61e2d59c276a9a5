package site

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/dexterity/internal/api/auth"
	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/fti"
	"github.com/flowmesh/dexterity/internal/metrics"
	"github.com/flowmesh/dexterity/internal/security"
	"github.com/flowmesh/dexterity/internal/storage"
)

const pageSource = `
title: Page
fields:
  - name: title
    type: textline
  - name: body
    type: text
    primary: true
    mime_type: text/html
`

var (
	folderProps = fti.Properties{
		ID:            "folder",
		Klass:         content.KindContainer,
		GlobalAllow:   true,
		AddPermission: "cmf.AddPortalContent",
		ModelSource:   "fields:\n  - name: title\n    type: textline\n",
	}
	pageProps = fti.Properties{
		ID:            "page",
		GlobalAllow:   true,
		AddPermission: "cmf.AddPortalContent",
		ModelSource:   pageSource,
	}
)

func systemContext() context.Context {
	return auth.WithAuthContext(context.Background(), auth.SystemContext("site"))
}

func openSite(t *testing.T, dir string, opts Options) *Site {
	t.Helper()
	store, err := storage.New(dir)
	require.NoError(t, err)

	if opts.ID == "" {
		opts.ID = "site"
	}
	s, err := New(context.Background(), store, opts)
	require.NoError(t, err)
	return s
}

func newSite(t *testing.T) *Site {
	t.Helper()
	s := openSite(t, t.TempDir(), Options{FolderType: "folder"})
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	ctx := systemContext()
	_, err := s.AddType(ctx, folderProps)
	require.NoError(t, err)
	_, err = s.AddType(ctx, pageProps)
	require.NoError(t, err)
	return s
}

func TestNew_CreatesRoot(t *testing.T) {
	s := newSite(t)

	root := s.Root()
	require.NotNil(t, root)
	assert.True(t, root.IsContainer())
	assert.Equal(t, "/", root.PhysicalPath())
	assert.Equal(t, "site", s.ID())
}

func TestNew_RequiresID(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close(context.Background())

	_, err = New(context.Background(), store, Options{})
	assert.Error(t, err)
}

func TestConstruct(t *testing.T) {
	s := newSite(t)
	ctx := systemContext()

	folder, err := s.Construct(ctx, "/", "folder", "news", map[string]any{"title": "News"})
	require.NoError(t, err)
	page, err := s.Construct(ctx, "/news", "page", "hello", map[string]any{"title": "Hello"})
	require.NoError(t, err)

	assert.Equal(t, "/news/hello", page.PhysicalPath())
	assert.Equal(t, "private", page.WorkflowState())
	assert.Equal(t, []string{"hello"}, folder.ChildIDs())

	brains := s.Search(content.Query{PortalType: "page"})
	require.Len(t, brains, 1)
	assert.Equal(t, "/news/hello", brains[0].Path)
	assert.Equal(t, "Hello", brains[0].Title)
}

func TestConstruct_Errors(t *testing.T) {
	s := newSite(t)

	_, err := s.Construct(context.Background(), "/", "page", "denied", nil)
	assert.IsType(t, security.ForbiddenError{}, err)

	_, err = s.Construct(systemContext(), "/missing", "page", "doc", nil)
	assert.IsType(t, content.NotFoundError{}, err)

	_, err = s.Construct(systemContext(), "/", "unknown", "doc", nil)
	assert.IsType(t, fti.NotFoundError{}, err)
}

func TestUpdate(t *testing.T) {
	s := newSite(t)
	ctx := systemContext()
	page, err := s.Construct(ctx, "/", "page", "doc", map[string]any{"title": "Old"})
	require.NoError(t, err)

	changes, err := s.Update(ctx, page, map[string]any{"title": "New", "body": "<p>x</p>"})
	require.NoError(t, err)
	assert.Len(t, changes, 2)
	assert.Equal(t, "New", page.Title())

	changes, err = s.Update(ctx, page, map[string]any{"title": "New"})
	require.NoError(t, err)
	assert.Empty(t, changes)

	_, err = s.Update(context.Background(), page, map[string]any{"title": "Denied"})
	assert.IsType(t, security.ForbiddenError{}, err)

	_, err = s.Update(ctx, page, map[string]any{"missing": "x"})
	assert.IsType(t, content.FieldError{}, err)
}

func TestRenameAndDelete(t *testing.T) {
	s := newSite(t)
	ctx := systemContext()
	_, err := s.Construct(ctx, "/", "page", "doc", nil)
	require.NoError(t, err)

	page, err := s.Traverse("/doc")
	require.NoError(t, err)
	require.NoError(t, s.Rename(ctx, page, "renamed"))

	_, err = s.Traverse("/doc")
	assert.Error(t, err)
	assert.Empty(t, s.Search(content.Query{PathPrefix: "/doc"}))
	require.Len(t, s.Search(content.Query{PortalType: "page"}), 1)

	assert.Error(t, s.Rename(ctx, s.Root(), "other"))

	require.NoError(t, s.Delete(ctx, page))
	assert.Empty(t, s.Search(content.Query{PortalType: "page"}))
	assert.Empty(t, s.Root().ChildIDs())
}

func TestPersistence_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := systemContext()

	s := openSite(t, dir, Options{})
	_, err := s.AddType(ctx, folderProps)
	require.NoError(t, err)
	_, err = s.AddType(ctx, pageProps)
	require.NoError(t, err)

	_, err = s.Construct(ctx, "/", "folder", "news", nil)
	require.NoError(t, err)
	page, err := s.Construct(ctx, "/news", "page", "a", map[string]any{"title": "A"})
	require.NoError(t, err)
	_, err = s.Construct(ctx, "/news", "page", "b", nil)
	require.NoError(t, err)
	_, err = s.Update(ctx, page, map[string]any{"body": "<p>a</p>"})
	require.NoError(t, err)
	require.NoError(t, s.Rename(ctx, page, "first"))
	gone, err := s.Traverse("/news/b")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, gone))
	uid := page.UID()
	require.NoError(t, s.Close(context.Background()))

	reopened := openSite(t, dir, Options{})
	defer reopened.Close(context.Background())

	assert.Len(t, reopened.Tool().List(), 2)
	news, err := reopened.Traverse("/news")
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, news.ChildIDs())

	restored, err := reopened.Traverse("/news/first")
	require.NoError(t, err)
	assert.Equal(t, uid, restored.UID())
	assert.Equal(t, "A", restored.Title())
	assert.Equal(t, "<p>a</p>", restored.Value("body"))
	assert.Equal(t, "private", restored.WorkflowState())

	brains := reopened.Search(content.Query{PortalType: "page"})
	require.Len(t, brains, 1)
	assert.Equal(t, "/news/first", brains[0].Path)
}

func TestPersistence_DirectInterfaces(t *testing.T) {
	dir := t.TempDir()
	ctx := systemContext()

	s := openSite(t, dir, Options{})
	_, err := s.AddType(ctx, pageProps)
	require.NoError(t, err)
	page, err := s.Construct(ctx, "/", "page", "doc", nil)
	require.NoError(t, err)

	marker, err := s.Environment().Named.Resolve("dexterity.behaviors.INameFromTitle")
	require.NoError(t, err)
	page.AlsoProvides(marker)
	_, err = s.Update(ctx, page, map[string]any{"title": "Marked"})
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))

	reopened := openSite(t, dir, Options{})
	defer reopened.Close(context.Background())

	restored, err := reopened.Traverse("/doc")
	require.NoError(t, err)
	assert.Equal(t, []string{"dexterity.behaviors.INameFromTitle"}, restored.DirectlyProvides().Names())
	assert.True(t, reopened.Resolver().ProvidedBy(restored).Provides("dexterity.behaviors.INameFromTitle"))
}

func TestMetricsObservers(t *testing.T) {
	set := metrics.NewSet(metrics.NewCollector())
	s := openSite(t, t.TempDir(), Options{Metrics: set})
	defer s.Close(context.Background())

	ctx := systemContext()
	_, err := s.AddType(ctx, pageProps)
	require.NoError(t, err)
	_, err = s.Construct(ctx, "/", "page", "doc", nil)
	require.NoError(t, err)

	rf := s.DAV().Open(ctx, s.Root().ChildValues()[0])
	defer rf.Close()
	_, err = rf.Size()
	require.NoError(t, err)
}

func TestResolveInterface(t *testing.T) {
	s := newSite(t)

	iface, err := s.resolveInterface(content.IContent.Name())
	require.NoError(t, err)
	assert.Equal(t, content.IContent.Name(), iface.Name())

	d, ok := s.Tool().Get("page")
	require.True(t, ok)
	s.Environment().Generated.Clear(d.SchemaName())
	iface, err = s.resolveInterface(d.SchemaName())
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "body"}, iface.Names())

	_, err = s.resolveInterface("unknown.IThing")
	assert.Error(t, err)
}

func TestTypeAdministration(t *testing.T) {
	s := newSite(t)
	ctx := systemContext()

	_, err := s.AddType(context.Background(), fti.Properties{ID: "news"})
	assert.IsType(t, security.ForbiddenError{}, err)

	d, err := s.UpdateType(ctx, "page", map[string]any{"title": "Web page", "behaviors": []any{"dexterity.behaviors.IBasic"}})
	require.NoError(t, err)
	assert.Equal(t, "Web page", d.Title())
	assert.Equal(t, []string{"dexterity.behaviors.IBasic"}, d.Behaviors())

	_, err = s.UpdateType(ctx, "missing", map[string]any{"title": "x"})
	assert.IsType(t, fti.NotFoundError{}, err)
	_, err = s.UpdateType(ctx, "page", map[string]any{"bogus": "x"})
	assert.IsType(t, fti.InvalidPropertyError{}, err)

	d, err = s.RenameType(ctx, "page", "document")
	require.NoError(t, err)
	assert.Equal(t, "document", d.ID())
	_, ok := s.Tool().Get("page")
	assert.False(t, ok)

	assert.IsType(t, security.ForbiddenError{}, s.RemoveType(context.Background(), "document"))
	require.NoError(t, s.RemoveType(ctx, "document"))
	assert.Len(t, s.Tool().List(), 1)
}
