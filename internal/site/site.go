// Package site assembles a content site: the types tool with its schema
// cache, the content tree restored from storage, the catalog and
// workflow handlers and the DAV service, all sharing one event bus.
package site

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flowmesh/dexterity/internal/behavior"
	"github.com/flowmesh/dexterity/internal/component"
	"github.com/flowmesh/dexterity/internal/config"
	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/dav"
	"github.com/flowmesh/dexterity/internal/event"
	"github.com/flowmesh/dexterity/internal/filerep"
	"github.com/flowmesh/dexterity/internal/fti"
	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/metrics"
	"github.com/flowmesh/dexterity/internal/schema"
	"github.com/flowmesh/dexterity/internal/security"
	"github.com/flowmesh/dexterity/internal/storage"
	"github.com/flowmesh/dexterity/internal/storage/contentstore"
)

// Options configures a site
type Options struct {
	// ID identifies the site and prefixes generated schema names
	ID string
	// FolderType is the type created by DAV MKCOL
	FolderType string
	// ModelRoots are "package=dir" resource roots for model files
	ModelRoots []string
	// Marshal configures RFC822 record streams
	Marshal filerep.Options
	// ChunkSize is the DAV copy buffer size
	ChunkSize int
	// Checker decides permissions (default: the auth context policy)
	Checker security.Checker
	// Metrics receives engine activity when set
	Metrics *metrics.Set
	// Rules map uploaded files to content types for DAV PUT
	Rules []dav.Rule
}

// FromConfig derives site options from the application configuration
func FromConfig(cfg *config.Config) Options {
	return Options{
		ID:         cfg.Site.ID,
		FolderType: cfg.Site.FolderType,
		ModelRoots: cfg.Site.ModelRoots,
		Marshal: filerep.Options{
			Charset:        cfg.Marshal.DefaultCharset,
			SpoolDir:       cfg.Marshal.SpoolDir,
			SpoolThreshold: cfg.Marshal.SpoolThreshold,
		},
		ChunkSize: cfg.Marshal.ChunkSize,
	}
}

// Site is a running content site
type Site struct {
	id       string
	env      *fti.Environment
	tool     *fti.Tool
	resolver *content.Resolver
	catalog  *content.MemoryCatalog
	dav      *dav.Service
	rules    *dav.RuleRegistry
	store    *storage.Storage
	metrics  *metrics.Set
	root     *content.Content
	log      zerolog.Logger

	closeOnce sync.Once
}

// New builds a site over store, restoring its types and content
func New(ctx context.Context, store *storage.Storage, opts Options) (*Site, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("site id cannot be empty")
	}
	if opts.Checker == nil {
		opts.Checker = security.NewPolicyChecker(opts.ID)
	}
	if opts.Marshal.SpoolDir == "" {
		opts.Marshal.SpoolDir = store.Paths().SpoolDir
	}
	if opts.Metrics != nil {
		opts.Marshal.Observer = opts.Metrics.Marshal
	}

	named := schema.NewNamed()
	named.MustRegister(content.IContent, content.IItem, content.IContainer)
	loader := schema.NewLoader()
	for _, root := range opts.ModelRoots {
		pkg, dir, err := config.ParseModelRoot(root)
		if err != nil {
			return nil, err
		}
		loader.AddResourceRoot(pkg, os.DirFS(dir))
	}
	behaviors := behavior.NewRegistry()
	if err := behavior.RegisterBuiltins(behaviors, named, loader); err != nil {
		return nil, fmt.Errorf("failed to register behaviors: %w", err)
	}

	env := &fti.Environment{
		SiteID:      opts.ID,
		Named:       named,
		Generated:   schema.NewGenerated(),
		Loader:      loader,
		Behaviors:   behaviors,
		Checker:     opts.Checker,
		Permissions: security.NewPermissions(),
		Bus:         event.NewBus(),
	}

	global := component.NewRegistry("global")
	local := component.NewRegistry(opts.ID, global)
	tool := fti.NewTool(env, store.MetaStore(), local)
	env.Cache = schema.NewCache(tool)

	resolver := content.NewResolver(env.Cache)
	catalog := content.NewMemoryCatalog()

	if opts.Metrics != nil {
		env.Cache.SetObserver(opts.Metrics.Schema)
		resolver.SetObserver(opts.Metrics.Schema)
		tool.Lifecycle().SetObserver(opts.Metrics.Types)
	}

	s := &Site{
		id:       opts.ID,
		env:      env,
		tool:     tool,
		resolver: resolver,
		catalog:  catalog,
		rules:    dav.NewRuleRegistry(opts.Rules...),
		store:    store,
		metrics:  opts.Metrics,
		log:      logger.WithComponent("site").With().Str("site", opts.ID).Logger(),
	}
	s.dav = dav.NewService(tool, s.rules, dav.Options{
		FolderType: opts.FolderType,
		ChunkSize:  opts.ChunkSize,
		Marshal:    opts.Marshal,
	})

	// Type handlers first, then catalog and workflow, then persistence
	tool.Subscribe()
	content.NewHandlers(resolver, catalog, content.NewSimpleWorkflow()).Subscribe(env.Bus)
	s.subscribePersistence()

	if err := tool.Load(); err != nil {
		return nil, err
	}
	s.updateRegistered()

	if err := s.loadRoot(ctx); err != nil {
		return nil, err
	}

	s.log.Info().
		Int("types", len(tool.List())).
		Int("objects", len(catalog.Search(content.Query{}))).
		Msg("Site ready")
	return s, nil
}

// loadRoot restores the content tree, creating an empty root container
// on first start
func (s *Site) loadRoot(ctx context.Context) error {
	cs := s.store.ContentStore()
	root, err := cs.LoadTree(ctx, "/", contentstore.Loader{
		Types:   s.env.Cache,
		Resolve: s.resolveInterface,
	})
	var notFound contentstore.RecordNotFoundError
	switch {
	case err == nil:
	case errors.As(err, &notFound):
		root = content.New("", "", content.KindContainer, s.env.Cache)
		if err := cs.Save(ctx, root); err != nil {
			return fmt.Errorf("failed to create site root: %w", err)
		}
		s.log.Info().Msg("Created site root")
	default:
		return fmt.Errorf("failed to load content: %w", err)
	}

	s.root = root
	return root.Walk(func(obj *content.Content) error {
		s.catalog.Index(obj, s.resolver.ProvidedBy(obj))
		return nil
	})
}

// resolveInterface finds a directly provided interface by name: a named
// schema, or the generated main schema of a type, compiled on demand
func (s *Site) resolveInterface(name string) (*schema.Schema, error) {
	if iface, err := s.env.Named.Resolve(name); err == nil {
		return iface, nil
	}
	if iface, ok := s.env.Generated.Get(name); ok {
		return iface, nil
	}

	siteID, typeID, schemaName, err := schema.SplitSchemaName(name)
	if err != nil || siteID != s.id || schemaName != "" {
		return nil, schema.NotFoundError{Name: name}
	}
	iface, err := s.tool.LookupSchema(typeID)
	if err != nil || iface == nil || iface.Name() != name {
		return nil, schema.NotFoundError{Name: name}
	}
	return iface, nil
}

func (s *Site) updateRegistered() {
	if s.metrics != nil {
		s.metrics.Types.SetRegistered(len(s.tool.List()))
	}
}

// ID returns the site identifier
func (s *Site) ID() string { return s.id }

// Root returns the root container
func (s *Site) Root() *content.Content { return s.root }

// Tool returns the types tool
func (s *Site) Tool() *fti.Tool { return s.tool }

// Environment returns the collaborators shared by the types
func (s *Site) Environment() *fti.Environment { return s.env }

// Resolver returns the provided-interface resolver
func (s *Site) Resolver() *content.Resolver { return s.resolver }

// Catalog returns the content catalog
func (s *Site) Catalog() *content.MemoryCatalog { return s.catalog }

// DAV returns the DAV service
func (s *Site) DAV() *dav.Service { return s.dav }

// ContentTypes returns the upload rules consulted by DAV PUT
func (s *Site) ContentTypes() *dav.RuleRegistry { return s.rules }

// Subscribe registers h for events of kind on the site's bus. Handlers
// run after the site's own persistence and lifecycle handlers.
func (s *Site) Subscribe(kind event.Kind, h event.Handler) { s.env.Bus.Subscribe(kind, h) }

// Traverse resolves a physical path to an object
func (s *Site) Traverse(path string) (*content.Content, error) {
	return s.root.Traverse(path)
}

// Close releases the storage of the site
func (s *Site) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		err = s.store.Close(ctx)
		s.log.Info().Msg("Site closed")
	})
	return err
}
