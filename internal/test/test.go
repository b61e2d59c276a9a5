// Package test provides fixtures shared by the package tests: temporary
// directories, a site on temporary storage and a pair of stock types.
package test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/dexterity/internal/api/auth"
	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/fti"
	"github.com/flowmesh/dexterity/internal/site"
	"github.com/flowmesh/dexterity/internal/storage"
)

// SiteID is the identifier of sites created by NewSite
const SiteID = "site"

// PageModel is the model of the stock page type: a title and a primary
// HTML body
const PageModel = `
title: Page
fields:
  - name: title
    type: textline
  - name: body
    type: text
    primary: true
    mime_type: text/html
`

// FolderModel is the model of the stock folder type
const FolderModel = `
title: Folder
fields:
  - name: title
    type: textline
`

// FolderProperties returns the stock folder type
func FolderProperties() fti.Properties {
	return fti.Properties{
		ID:            "folder",
		Title:         "Folder",
		Klass:         content.KindContainer,
		GlobalAllow:   true,
		AddPermission: "cmf.AddPortalContent",
		ModelSource:   FolderModel,
	}
}

// PageProperties returns the stock page type
func PageProperties() fti.Properties {
	return fti.Properties{
		ID:            "page",
		Title:         "Page",
		GlobalAllow:   true,
		AddPermission: "cmf.AddPortalContent",
		ModelSource:   PageModel,
	}
}

// SystemContext returns a context granting every permission on the
// test site
func SystemContext() context.Context {
	return auth.WithAuthContext(context.Background(), auth.SystemContext(SiteID))
}

// TempDir creates a temporary directory for testing and returns its path.
// The directory is automatically cleaned up after the test.
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "dexterity-test-*")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = os.RemoveAll(dir) // Ignore cleanup errors in tests
	})
	return dir
}

// OpenSite opens a site over dir. The site is closed when the test ends.
func OpenSite(t *testing.T, dir string, opts site.Options) *site.Site {
	t.Helper()
	store, err := storage.New(dir)
	require.NoError(t, err)

	if opts.ID == "" {
		opts.ID = SiteID
	}
	if opts.FolderType == "" {
		opts.FolderType = "folder"
	}
	s, err := site.New(context.Background(), store, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// NewSite creates a site on temporary storage with types installed
func NewSite(t *testing.T, opts site.Options, types ...fti.Properties) *site.Site {
	t.Helper()
	s := OpenSite(t, TempDir(t), opts)
	ctx := SystemContext()
	for _, props := range types {
		_, err := s.AddType(ctx, props)
		require.NoError(t, err)
	}
	return s
}

// NewStockSite creates a site with the stock folder and page types
func NewStockSite(t *testing.T, opts site.Options) *site.Site {
	t.Helper()
	return NewSite(t, opts, FolderProperties(), PageProperties())
}
