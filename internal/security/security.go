package security

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flowmesh/dexterity/internal/api/auth"
	"github.com/flowmesh/dexterity/internal/logger"
)

// Checker decides whether the caller in ctx holds a permission on target.
// The permission is given by title.
type Checker interface {
	CheckPermission(ctx context.Context, permission string, target any) bool
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context, permission string, target any) bool

// CheckPermission calls f
func (f CheckerFunc) CheckPermission(ctx context.Context, permission string, target any) bool {
	return f(ctx, permission, target)
}

// Locatable is implemented by targets with a path inside the site
type Locatable interface {
	PhysicalPath() string
}

// PolicyChecker grants permissions held by the request's auth context
type PolicyChecker struct {
	site       string
	authorizer auth.Authorizer
	log        zerolog.Logger
}

// NewPolicyChecker creates a checker for a site
func NewPolicyChecker(site string) *PolicyChecker {
	return &PolicyChecker{
		site:       site,
		authorizer: auth.NewPermissionAuthorizer(),
		log:        logger.WithComponent("security"),
	}
}

// CheckPermission reports whether the request principal holds permission
// on target. A missing auth context is a denial.
func (c *PolicyChecker) CheckPermission(ctx context.Context, permission string, target any) bool {
	if permission == "" {
		return false
	}

	authCtx, ok := auth.FromContext(ctx)
	if !ok {
		return false
	}

	path := "/"
	if l, ok := target.(Locatable); ok {
		path = l.PhysicalPath()
	}

	if err := c.authorizer.Authorize(authCtx, c.site, path, auth.Permission(permission)); err != nil {
		c.log.Debug().
			Str("permission", permission).
			Str("path", path).
			Str("principal", authCtx.Principal).
			Err(err).
			Msg("Permission denied")
		return false
	}
	return true
}

// Permissions maps permission identifiers, as used by type descriptors and
// field read permissions, to permission titles
type Permissions struct {
	mu     sync.RWMutex
	titles map[string]string
}

// NewPermissions creates a registry holding the built-in permissions
func NewPermissions() *Permissions {
	return &Permissions{titles: map[string]string{
		"zope2.View":                      string(auth.PermissionView),
		"zope2.AccessContentsInformation": string(auth.PermissionAccessContents),
		"cmf.ModifyPortalContent":         string(auth.PermissionModify),
		"cmf.AddPortalContent":            string(auth.PermissionAddContent),
		"zope2.DeleteObjects":             string(auth.PermissionDelete),
		"cmf.ManagePortal":                string(auth.PermissionManageTypes),
	}}
}

// Register adds a permission identifier
func (p *Permissions) Register(id, title string) error {
	if id == "" || title == "" {
		return fmt.Errorf("permission id and title are required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles[id] = title
	return nil
}

// Title returns the title of a permission identifier
func (p *Permissions) Title(id string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	title, ok := p.titles[id]
	return title, ok
}

// IDs returns the registered identifiers, sorted
func (p *Permissions) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.titles))
	for id := range p.titles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Check resolves a permission identifier and checks it. Unknown
// identifiers are denied.
func Check(ctx context.Context, checker Checker, perms *Permissions, id string, target any) bool {
	title, ok := perms.Title(id)
	if !ok {
		return false
	}
	return checker.CheckPermission(ctx, title, target)
}

// ForbiddenError indicates the caller lacks a permission
type ForbiddenError struct {
	Permission string
	Target     string
}

func (e ForbiddenError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("forbidden: missing permission %q", e.Permission)
	}
	return fmt.Sprintf("forbidden: missing permission %q on %s", e.Permission, e.Target)
}
