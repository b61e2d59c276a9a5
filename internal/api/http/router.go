package http

import (
	"net/http"
	"strings"

	"github.com/flowmesh/dexterity/internal/api/auth"
	"github.com/flowmesh/dexterity/internal/api/http/handlers"
	"github.com/flowmesh/dexterity/internal/api/http/middleware"
	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/metrics"
	"github.com/flowmesh/dexterity/internal/security"
	"github.com/flowmesh/dexterity/internal/site"
)

// Route prefixes
const (
	TypesPrefix   = "/api/v1/types/"
	ContentPrefix = "/api/v1/content/"
	DAVPrefix     = "/dav/"
	EventsPath    = "/api/v1/events"
)

// RouterOptions configures the router
type RouterOptions struct {
	// TokenStore authenticates requests. Nil disables authentication and
	// every request acts with full permissions on the site.
	TokenStore auth.TokenStore
	Metrics    *metrics.APIMetrics
	// Ready reports readiness for /ready
	Ready func() bool
	// Events serves the websocket event feed; nil disables it
	Events *handlers.EventHub
}

// Router manages HTTP routes and middleware
type Router struct {
	mux             *http.ServeMux
	site            *site.Site
	opts            RouterOptions
	typeHandlers    *handlers.TypeHandlers
	contentHandlers *handlers.ContentHandlers
	davHandlers     *handlers.DAVHandlers
}

// NewRouter creates a new router
func NewRouter(s *site.Site, opts RouterOptions) *Router {
	r := &Router{
		mux:             http.NewServeMux(),
		site:            s,
		opts:            opts,
		typeHandlers:    handlers.NewTypeHandlers(s),
		contentHandlers: handlers.NewContentHandlers(s),
		davHandlers:     handlers.NewDAVHandlers(s, strings.TrimSuffix(DAVPrefix, "/")),
	}

	r.setupRoutes()

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// chain builds the middleware stack of one endpoint group
func (r *Router) chain(endpoint string, authenticated bool) func(http.Handler) http.Handler {
	log := logger.WithComponent("http.middleware")
	mw := []func(http.Handler) http.Handler{
		middleware.Recovery(log),
		middleware.Tracing(endpoint),
		middleware.Metrics(r.opts.Metrics, endpoint),
		middleware.Logging(log),
	}
	if authenticated {
		if r.opts.TokenStore != nil {
			mw = append(mw, middleware.Auth(r.opts.TokenStore))
		} else {
			mw = append(mw, middleware.System(r.site.ID()))
		}
	}
	return middleware.Chain(mw...)
}

// setupRoutes sets up all HTTP routes
func (r *Router) setupRoutes() {
	ready := r.opts.Ready
	if ready == nil {
		ready = func() bool { return r.site != nil }
	}

	// Health check endpoints (no auth required)
	r.mux.Handle("/health", r.chain("/health", false)(http.HandlerFunc(handlers.HealthCheck)))
	r.mux.Handle("/ready", r.chain("/ready", false)(handlers.ReadinessCheck(ready)))

	r.mux.Handle("/api/v1/types", r.chain("/api/v1/types", true)(http.HandlerFunc(r.handleTypeRoutes)))
	r.mux.Handle(TypesPrefix, r.chain("/api/v1/types", true)(http.HandlerFunc(r.handleTypeRoutes)))
	r.mux.Handle(ContentPrefix, r.chain("/api/v1/content", true)(http.HandlerFunc(r.handleContentRoutes)))
	r.mux.Handle(DAVPrefix, r.chain("/dav", true)(http.HandlerFunc(r.handleDAVRoutes)))
	if r.opts.Events != nil {
		r.mux.Handle(EventsPath, r.chain(EventsPath, true)(http.HandlerFunc(r.handleEvents)))
	}

	// Default API v1 route (for unmatched paths)
	r.mux.Handle("/api/v1/", r.chain("/api/v1", false)(http.HandlerFunc(http.NotFound)))
}

// handleEvents opens the event feed for callers who may view the site
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	env := r.site.Environment()
	if !security.Check(req.Context(), env.Checker, env.Permissions, handlers.PermissionView, r.site.Root()) {
		handlers.WriteError(w, security.ForbiddenError{Permission: handlers.PermissionView, Target: r.site.Root().PhysicalPath()})
		return
	}
	r.opts.Events.ServeEvents(w, req)
}

// handleTypeRoutes routes type descriptor requests
func (r *Router) handleTypeRoutes(w http.ResponseWriter, req *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(req.URL.Path, "/api/v1/types"), "/")

	// /api/v1/types
	if rest == "" {
		switch req.Method {
		case http.MethodGet:
			r.typeHandlers.List(w, req)
		case http.MethodPost:
			r.typeHandlers.Create(w, req)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
		return
	}

	id, action, _ := strings.Cut(rest, "/")
	switch action {
	case "":
		// /api/v1/types/{id}
		switch req.Method {
		case http.MethodGet:
			r.typeHandlers.Get(w, req, id)
		case http.MethodPatch:
			r.typeHandlers.Update(w, req, id)
		case http.MethodDelete:
			r.typeHandlers.Delete(w, req, id)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case "rename":
		// POST /api/v1/types/{id}/rename
		if req.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		r.typeHandlers.Rename(w, req, id)
	case "model":
		// GET /api/v1/types/{id}/model
		if req.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		r.typeHandlers.Model(w, req, id)
	default:
		http.NotFound(w, req)
	}
}

// handleContentRoutes routes content requests. The remainder of the URL
// path is the content path, empty for the site root.
func (r *Router) handleContentRoutes(w http.ResponseWriter, req *http.Request) {
	path := "/" + strings.TrimPrefix(req.URL.Path, ContentPrefix)

	switch req.Method {
	case http.MethodGet:
		r.contentHandlers.Get(w, req, path)
	case http.MethodPost:
		r.contentHandlers.Create(w, req, path)
	case http.MethodPatch:
		r.contentHandlers.Update(w, req, path)
	case http.MethodDelete:
		r.contentHandlers.Delete(w, req, path)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete)
	}
}

// handleDAVRoutes hands every method to the DAV handlers
func (r *Router) handleDAVRoutes(w http.ResponseWriter, req *http.Request) {
	r.davHandlers.ServeDAV(w, req, strings.TrimPrefix(req.URL.Path, strings.TrimSuffix(DAVPrefix, "/")))
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	handlers.WriteJSON(w, http.StatusMethodNotAllowed, handlers.ErrorResponse{Error: "method not allowed"})
}
