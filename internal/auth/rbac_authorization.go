package auth

import (
	"context"
	"log/slog"
	"net/http"
)

// PermissionAuthorizer answers permission questions for an identity.
type PermissionAuthorizer interface {
	HasPermission(ctx context.Context, identity *Identity, permission string) (bool, error)
}

// RouteGuard declares what a route requires: either a granular permission
// or a role-name allowlist. Routes declare exactly one of the two; the
// permission model lives in the route table instead of inline checks
// scattered across handlers.
type RouteGuard struct {
	Permission string
	Roles      []string
}

// RBACAuthorization is the single authorization entry point for guarded
// routes. authenticate (AuthMiddleware) must have run first on every
// guarded route.
type RBACAuthorization struct {
	authorizer PermissionAuthorizer
	logger     *slog.Logger
}

func NewRBACAuthorization(authorizer PermissionAuthorizer, logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{
		authorizer: authorizer,
		logger:     logger,
	}
}

// Guard builds the middleware for a declared route guard.
func (ra *RBACAuthorization) Guard(guard RouteGuard) func(http.Handler) http.Handler {
	if guard.Permission != "" {
		return ra.RequirePermission(guard.Permission)
	}
	if len(guard.Roles) > 0 {
		return ra.RequireRole(guard.Roles...)
	}
	// no guard declared: pass through
	return func(next http.Handler) http.Handler { return next }
}

// RequireRole allows only callers whose role name is in the allowlist.
func (ra *RBACAuthorization) RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || identity == nil {
				ra.logger.Warn("authorization check failed: identity not found in context")
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			for _, role := range allowedRoles {
				if identity.RoleName == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			ra.logger.WarnContext(r.Context(), "access denied: role not allowed",
				"user_id", identity.ID,
				"role", identity.RoleName,
				"allowed_roles", allowedRoles)
			http.Error(w, "Insufficient permissions", http.StatusForbidden)
		})
	}
}

// RequirePermission allows only callers whose role grants the named
// permission. Superadmin passes every check.
func (ra *RBACAuthorization) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || identity == nil {
				ra.logger.Warn("authorization check failed: identity not found in context")
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			hasAccess, err := ra.authorizer.HasPermission(r.Context(), identity, permission)
			if err != nil {
				ra.logger.ErrorContext(r.Context(), "authorization check failed", "error", err, "user_id", identity.ID, "permission", permission)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !hasAccess {
				ra.logger.WarnContext(r.Context(), "access denied: insufficient permissions",
					"user_id", identity.ID,
					"role", identity.RoleName,
					"required_permission", permission)
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
