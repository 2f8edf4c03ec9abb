package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/rbac-admin/internal/audit"
	"github.com/frahmantamala/rbac-admin/internal/auth"
	"github.com/frahmantamala/rbac-admin/internal/role"
	"github.com/frahmantamala/rbac-admin/internal/transport/middleware"
	"github.com/frahmantamala/rbac-admin/internal/transport/swagger"
	"github.com/frahmantamala/rbac-admin/internal/user"
)

// guardedRoute binds one protected endpoint to its authorization rule.
// An empty guard means authentication only.
type guardedRoute struct {
	method  string
	pattern string
	handler http.HandlerFunc
	guard   auth.RouteGuard
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, authHandler *auth.Handler, rbac *auth.RBACAuthorization, userHandler *user.Handler, roleHandler *role.Handler, auditHandler *audit.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api", func(r chi.Router) {
		// Health check routes
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Auth routes
		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", authHandler.Login)
			sr.Post("/refresh", authHandler.RefreshToken)
			sr.Post("/logout", authHandler.Logout)
		})

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(authHandler.AuthMiddleware)

			routes := []guardedRoute{
				{http.MethodGet, "/auth/me", authHandler.Me, auth.RouteGuard{}},
				{http.MethodGet, "/profile", userHandler.GetProfile, auth.RouteGuard{}},
				{http.MethodPut, "/profile", userHandler.UpdateProfile, auth.RouteGuard{}},

				{http.MethodGet, "/users", userHandler.ListUsers, auth.RouteGuard{Permission: "view_users"}},
				{http.MethodGet, "/users/{id}", userHandler.GetUser, auth.RouteGuard{Permission: "view_users"}},
				{http.MethodPost, "/users", userHandler.CreateUser, auth.RouteGuard{Permission: "create_users"}},
				{http.MethodPut, "/users/{id}", userHandler.UpdateUser, auth.RouteGuard{Permission: "edit_users"}},
				{http.MethodDelete, "/users/{id}", userHandler.DeleteUser, auth.RouteGuard{Roles: []string{auth.RoleSuperAdmin}}},

				{http.MethodGet, "/roles", roleHandler.ListRoles, auth.RouteGuard{Permission: "view_roles"}},
				{http.MethodGet, "/roles/{id}", roleHandler.GetRole, auth.RouteGuard{Permission: "view_roles"}},
				{http.MethodPost, "/roles", roleHandler.CreateRole, auth.RouteGuard{Roles: []string{auth.RoleSuperAdmin}}},
				{http.MethodPut, "/roles/{id}", roleHandler.UpdateRole, auth.RouteGuard{Roles: []string{auth.RoleSuperAdmin}}},
				{http.MethodDelete, "/roles/{id}", roleHandler.DeleteRole, auth.RouteGuard{Roles: []string{auth.RoleSuperAdmin}}},
				{http.MethodPut, "/roles/{id}/permissions", roleHandler.SetRolePermissions, auth.RouteGuard{Roles: []string{auth.RoleSuperAdmin}}},
				{http.MethodGet, "/permissions", roleHandler.ListPermissions, auth.RouteGuard{Permission: "view_roles"}},

				{http.MethodGet, "/logs", auditHandler.GetLogs, auth.RouteGuard{Roles: []string{auth.RoleSuperAdmin}}},
				{http.MethodGet, "/logs/users/{id}", auditHandler.GetUserLogs, auth.RouteGuard{Roles: []string{auth.RoleSuperAdmin}}},
			}

			for _, rt := range routes {
				pr.With(rbac.Guard(rt.guard)).Method(rt.method, rt.pattern, rt.handler)
			}
		})
	})
}
