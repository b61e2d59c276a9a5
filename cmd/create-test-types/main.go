// Command create-test-types installs a set of sample types and content
// into a site's data directory, for trying the API by hand.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/flowmesh/dexterity/internal/api/auth"
	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/fti"
	"github.com/flowmesh/dexterity/internal/site"
	"github.com/flowmesh/dexterity/internal/storage"
)

const siteID = "site"

var types = []fti.Properties{
	{
		ID:            "folder",
		Title:         "Folder",
		Klass:         content.KindContainer,
		GlobalAllow:   true,
		AddPermission: "cmf.AddPortalContent",
		ModelSource:   "fields:\n  - name: title\n    type: textline\n",
	},
	{
		ID:            "page",
		Title:         "Page",
		GlobalAllow:   true,
		AddPermission: "cmf.AddPortalContent",
		Behaviors:     []string{"dexterity.behaviors.INameFromTitle"},
		ModelSource: `
fields:
  - name: title
    type: textline
    required: true
  - name: body
    type: text
    primary: true
    mime_type: text/html
`,
	},
	{
		ID:                  "news",
		Title:               "News folder",
		Klass:               content.KindContainer,
		GlobalAllow:         true,
		FilterContentTypes:  true,
		AllowedContentTypes: []string{"page"},
		AddPermission:       "cmf.AddPortalContent",
		ModelSource:         "fields:\n  - name: title\n    type: textline\n",
	},
}

var objects = []struct {
	container string
	typeID    string
	id        string
	values    map[string]any
}{
	{"/", "news", "news", map[string]any{"title": "News"}},
	{"/news", "page", "welcome", map[string]any{"title": "Welcome", "body": "<p>Hello world</p>"}},
	{"/", "folder", "docs", map[string]any{"title": "Documentation"}},
	{"/docs", "page", "install", map[string]any{"title": "Installing", "body": "<p>Run dexterityd.</p>"}},
}

func main() {
	// Use default data directory (same as running server)
	dataDir := "./data"
	if len(os.Args) > 1 {
		dataDir = os.Args[1]
	}

	ctx := auth.WithAuthContext(context.Background(), auth.SystemContext(siteID))

	store, err := storage.NewBuilder().
		WithDataDir(dataDir).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build storage: %v\n", err)
		os.Exit(1)
	}

	s, err := site.New(ctx, store, site.Options{ID: siteID, FolderType: "folder"})
	if err != nil {
		_ = store.Close(ctx)
		fmt.Fprintf(os.Stderr, "Failed to open site: %v\n", err)
		os.Exit(1)
	}
	defer s.Close(ctx)

	fmt.Println("Creating types...")
	for _, props := range types {
		if _, err := s.AddType(ctx, props); err != nil {
			var exists fti.ExistsError
			if errors.As(err, &exists) {
				fmt.Printf("Type already exists: %s\n", props.ID)
				continue
			}
			fmt.Fprintf(os.Stderr, "Failed to create type %s: %v\n", props.ID, err)
			continue
		}
		fmt.Printf("Created type: %s\n", props.ID)
	}

	fmt.Println("Creating content...")
	for _, o := range objects {
		obj, err := s.Construct(ctx, o.container, o.typeID, o.id, o.values)
		if err != nil {
			var exists content.ExistsError
			if errors.As(err, &exists) {
				fmt.Printf("Content already exists: %s/%s\n", o.container, o.id)
				continue
			}
			fmt.Fprintf(os.Stderr, "Failed to create %s in %s: %v\n", o.id, o.container, err)
			continue
		}
		fmt.Printf("Created %s: %s\n", obj.PortalType(), obj.PhysicalPath())
	}

	fmt.Println("Done")
}
