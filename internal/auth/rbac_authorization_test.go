package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// static authorizer for middleware tests
type stubAuthorizer struct {
	granted map[string]bool
	err     error
}

func (s *stubAuthorizer) HasPermission(_ context.Context, identity *Identity, permission string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if identity != nil && identity.RoleName == RoleSuperAdmin {
		return true, nil
	}
	return s.granted[permission], nil
}

var _ = ginkgo.Describe("RBACAuthorization", func() {
	var (
		authorizer *stubAuthorizer
		rbac       *RBACAuthorization
		okHandler  http.Handler
	)

	ginkgo.BeforeEach(func() {
		authorizer = &stubAuthorizer{granted: map[string]bool{"view_users": true}}
		rbac = NewRBACAuthorization(authorizer, slog.Default())
		okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	requestAs := func(identity *Identity) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		if identity != nil {
			req = req.WithContext(ContextWithIdentity(req.Context(), identity))
		}
		return req
	}

	ginkgo.Describe("RequirePermission", func() {
		ginkgo.It("should return 401 without an identity", func() {
			rec := httptest.NewRecorder()
			rbac.RequirePermission("view_users")(okHandler).ServeHTTP(rec, requestAs(nil))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should pass a granted permission through", func() {
			rec := httptest.NewRecorder()
			identity := &Identity{ID: 1, RoleID: 1, RoleName: RoleReadOnly}
			rbac.RequirePermission("view_users")(okHandler).ServeHTTP(rec, requestAs(identity))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})

		ginkgo.It("should return 403 for a missing permission", func() {
			rec := httptest.NewRecorder()
			identity := &Identity{ID: 1, RoleID: 1, RoleName: RoleReadOnly}
			rbac.RequirePermission("delete_users")(okHandler).ServeHTTP(rec, requestAs(identity))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
		})

		ginkgo.It("should return 500 when the authorizer fails", func() {
			authorizer.err = errors.New("store down")
			rec := httptest.NewRecorder()
			identity := &Identity{ID: 1, RoleID: 1, RoleName: RoleReadOnly}
			rbac.RequirePermission("view_users")(okHandler).ServeHTTP(rec, requestAs(identity))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusInternalServerError))
		})

		ginkgo.It("should let superadmin through any permission", func() {
			rec := httptest.NewRecorder()
			identity := &Identity{ID: 3, RoleID: 3, RoleName: RoleSuperAdmin}
			rbac.RequirePermission("delete_roles")(okHandler).ServeHTTP(rec, requestAs(identity))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})
	})

	ginkgo.Describe("RequireRole", func() {
		ginkgo.It("should return 401 without an identity", func() {
			rec := httptest.NewRecorder()
			rbac.RequireRole(RoleSuperAdmin)(okHandler).ServeHTTP(rec, requestAs(nil))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should pass an allowed role through", func() {
			rec := httptest.NewRecorder()
			identity := &Identity{ID: 3, RoleID: 3, RoleName: RoleSuperAdmin}
			rbac.RequireRole(RoleSuperAdmin)(okHandler).ServeHTTP(rec, requestAs(identity))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})

		ginkgo.It("should return 403 for a role outside the allowlist", func() {
			rec := httptest.NewRecorder()
			identity := &Identity{ID: 2, RoleID: 2, RoleName: RoleAdmin}
			rbac.RequireRole(RoleSuperAdmin)(okHandler).ServeHTTP(rec, requestAs(identity))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
		})
	})

	ginkgo.Describe("Guard", func() {
		ginkgo.It("should dispatch a permission guard", func() {
			rec := httptest.NewRecorder()
			identity := &Identity{ID: 1, RoleID: 1, RoleName: RoleReadOnly}
			rbac.Guard(RouteGuard{Permission: "view_users"})(okHandler).ServeHTTP(rec, requestAs(identity))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})

		ginkgo.It("should dispatch a role guard", func() {
			rec := httptest.NewRecorder()
			identity := &Identity{ID: 1, RoleID: 1, RoleName: RoleReadOnly}
			rbac.Guard(RouteGuard{Roles: []string{RoleSuperAdmin}})(okHandler).ServeHTTP(rec, requestAs(identity))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
		})

		ginkgo.It("should pass through with an empty guard", func() {
			rec := httptest.NewRecorder()
			rbac.Guard(RouteGuard{})(okHandler).ServeHTTP(rec, requestAs(nil))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})
	})
})
