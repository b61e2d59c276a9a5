package auth

import "strings"

// Permission names a content permission
type Permission string

const (
	// PermissionView allows reading content and its fields
	PermissionView Permission = "View"
	// PermissionAccessContents allows listing folder contents
	PermissionAccessContents Permission = "Access contents information"
	// PermissionModify allows editing content
	PermissionModify Permission = "Modify portal content"
	// PermissionAddContent allows creating content
	PermissionAddContent Permission = "Add portal content"
	// PermissionDelete allows removing content
	PermissionDelete Permission = "Delete objects"
	// PermissionManageTypes allows administering type descriptors
	PermissionManageTypes Permission = "Manage portal"
)

// AllPermissions lists the built-in permissions
func AllPermissions() []Permission {
	return []Permission{
		PermissionView,
		PermissionAccessContents,
		PermissionModify,
		PermissionAddContent,
		PermissionDelete,
		PermissionManageTypes,
	}
}

// APIToken represents an API token with its metadata
type APIToken struct {
	// TokenHash is the hashed token value (never store plain tokens)
	TokenHash string
	// Principal names the user the token acts for
	Principal string
	// Site is the site this token belongs to
	Site string
	// AllowedPaths restricts the token to content subtrees (empty means all)
	AllowedPaths []string
	// Permissions is the list of permissions granted
	Permissions []Permission
	// CreatedAt is when the token was created
	CreatedAt int64 // Unix timestamp
	// ExpiresAt is when the token expires (0 means no expiration)
	ExpiresAt int64 // Unix timestamp
}

// HasPermission checks if the token has a specific permission
func (t *APIToken) HasPermission(perm Permission) bool {
	return hasPermission(t.Permissions, perm)
}

// IsPathAllowed checks if the token allows access to a content path
func (t *APIToken) IsPathAllowed(path string) bool {
	return pathAllowed(t.AllowedPaths, path)
}

// IsExpired checks if the token is expired
func (t *APIToken) IsExpired(now int64) bool {
	if t.ExpiresAt == 0 {
		return false
	}
	return now >= t.ExpiresAt
}

// AuthContext contains authentication and authorization context for a request
type AuthContext struct {
	// TokenHash is the hashed token that authenticated this request
	TokenHash string
	// Principal is the acting user
	Principal string
	// Site is the site from the token
	Site string
	// AllowedPaths are the allowed content subtrees
	AllowedPaths []string
	// Permissions are the granted permissions
	Permissions []Permission
}

// NewAuthContext builds the request context of a validated token
func NewAuthContext(token *APIToken) *AuthContext {
	return &AuthContext{
		TokenHash:    token.TokenHash,
		Principal:    token.Principal,
		Site:         token.Site,
		AllowedPaths: token.AllowedPaths,
		Permissions:  token.Permissions,
	}
}

// SystemContext grants every built-in permission on a whole site. It is
// used when authentication is disabled and by offline tools.
func SystemContext(site string) *AuthContext {
	return &AuthContext{
		Principal:   "system",
		Site:        site,
		Permissions: AllPermissions(),
	}
}

// HasPermission checks if the auth context has a specific permission
func (c *AuthContext) HasPermission(perm Permission) bool {
	return hasPermission(c.Permissions, perm)
}

// IsPathAllowed checks if the auth context allows access to a content path
func (c *AuthContext) IsPathAllowed(path string) bool {
	return pathAllowed(c.AllowedPaths, path)
}

func hasPermission(perms []Permission, perm Permission) bool {
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// pathAllowed matches whole path segments, so "/news" covers "/news/a"
// but not "/newsletter"
func pathAllowed(allowed []string, path string) bool {
	if len(allowed) == 0 {
		return true
	}
	path = "/" + strings.Trim(path, "/")
	for _, prefix := range allowed {
		prefix = "/" + strings.Trim(prefix, "/")
		if prefix == "/" || path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
