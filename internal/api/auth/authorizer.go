package auth

import (
	"fmt"
)

// Authorizer defines the interface for authorization
type Authorizer interface {
	// Authorize checks if the auth context holds permission on a content path
	Authorize(ctx *AuthContext, site, path string, permission Permission) error
}

// PermissionAuthorizer implements authorization logic
type PermissionAuthorizer struct {
}

// NewPermissionAuthorizer creates a new permission authorizer
func NewPermissionAuthorizer() *PermissionAuthorizer {
	return &PermissionAuthorizer{}
}

// Authorize checks if the auth context holds permission on a content path
func (a *PermissionAuthorizer) Authorize(ctx *AuthContext, site, path string, permission Permission) error {
	if ctx == nil {
		return UnauthorizedError{Reason: "no auth context"}
	}

	resource := fmt.Sprintf("%s:%s", site, path)

	if ctx.Site != site {
		return ForbiddenError{
			Resource: resource,
			Action:   string(permission),
			Reason:   fmt.Sprintf("site mismatch: token site '%s' does not match '%s'", ctx.Site, site),
		}
	}

	if !ctx.IsPathAllowed(path) {
		return ForbiddenError{
			Resource: resource,
			Action:   string(permission),
			Reason:   fmt.Sprintf("path '%s' is not allowed for this token", path),
		}
	}

	if !ctx.HasPermission(permission) {
		return ForbiddenError{
			Resource: resource,
			Action:   string(permission),
			Reason:   "token does not have required permission",
		}
	}

	return nil
}
