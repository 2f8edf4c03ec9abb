package auth

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

var _ = ginkgo.Describe("AuthHandler", func() {
	var (
		handler   *Handler
		userRepo  *mockUserRepository
		tokenRepo *mockTokenRepository
	)

	login := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		handler.Login(w, req)
		return w
	}

	ginkgo.BeforeEach(func() {
		userRepo = newMockUserRepository()
		tokenRepo = newMockTokenRepository()
		tokenGen := NewJWTTokenGenerator("test-secret-test-secret-test-secret!", 15*time.Minute)
		service := NewService(userRepo, tokenRepo, newMockPermissionRepository(), tokenGen, nil, slog.Default(), bcrypt.MinCost, 24*time.Hour, time.Second)
		handler = NewHandler(service)
	})

	ginkgo.Describe("Login", func() {
		ginkgo.It("should return tokens for valid credentials", func() {
			w := login(`{"username": "admin", "password": "correct_password"}`)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(w.Header().Get("Content-Type")).To(gomega.ContainSubstring("application/json"))

			var result LoginResult
			gomega.Expect(json.NewDecoder(w.Body).Decode(&result)).To(gomega.Succeed())
			gomega.Expect(result.AccessToken).NotTo(gomega.BeEmpty())
			gomega.Expect(result.RefreshToken).NotTo(gomega.BeEmpty())
			gomega.Expect(result.User.Username).To(gomega.Equal("admin"))
			gomega.Expect(result.User.Role).To(gomega.Equal(RoleAdmin))
		})

		ginkgo.It("should return 401 for a wrong password", func() {
			w := login(`{"username": "admin", "password": "wrong"}`)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should return 401 for an unknown username", func() {
			w := login(`{"username": "nobody", "password": "correct_password"}`)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should return 400 for a malformed body", func() {
			w := login(`{not json`)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusBadRequest))
		})

		ginkgo.It("should return 400 when the username is missing", func() {
			w := login(`{"password": "correct_password"}`)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Describe("RefreshToken", func() {
		var refreshToken string

		ginkgo.BeforeEach(func() {
			w := login(`{"username": "admin", "password": "correct_password"}`)
			var result LoginResult
			gomega.Expect(json.NewDecoder(w.Body).Decode(&result)).To(gomega.Succeed())
			refreshToken = result.RefreshToken
		})

		ginkgo.It("should return a fresh access token", func() {
			body, _ := json.Marshal(map[string]string{"refreshToken": refreshToken})
			req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", bytes.NewBuffer(body))
			w := httptest.NewRecorder()

			handler.RefreshToken(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
			var resp map[string]string
			gomega.Expect(json.NewDecoder(w.Body).Decode(&resp)).To(gomega.Succeed())
			gomega.Expect(resp["accessToken"]).NotTo(gomega.BeEmpty())
		})

		ginkgo.It("should return 401 for an unknown refresh token", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", bytes.NewBufferString(`{"refreshToken": "bogus"}`))
			w := httptest.NewRecorder()

			handler.RefreshToken(w, req)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should return 400 when the refresh token is missing", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", bytes.NewBufferString(`{}`))
			w := httptest.NewRecorder()

			handler.RefreshToken(w, req)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Describe("Logout", func() {
		ginkgo.It("should revoke the refresh token and return 200", func() {
			w := login(`{"username": "admin", "password": "correct_password"}`)
			var result LoginResult
			gomega.Expect(json.NewDecoder(w.Body).Decode(&result)).To(gomega.Succeed())

			body, _ := json.Marshal(map[string]string{"refreshToken": result.RefreshToken})
			req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", bytes.NewBuffer(body))
			rec := httptest.NewRecorder()

			handler.Logout(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(tokenRepo.rows[result.RefreshToken].Revoked).To(gomega.BeTrue())
		})

		ginkgo.It("should return 200 even without a body", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
			w := httptest.NewRecorder()

			handler.Logout(w, req)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
		})
	})

	ginkgo.Describe("Me", func() {
		ginkgo.It("should return the current user summary", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			identity := &Identity{ID: 2, Username: "admin", RoleID: 2, RoleName: RoleAdmin}
			req = req.WithContext(ContextWithIdentity(req.Context(), identity))
			w := httptest.NewRecorder()

			handler.Me(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
			var summary UserSummary
			gomega.Expect(json.NewDecoder(w.Body).Decode(&summary)).To(gomega.Succeed())
			gomega.Expect(summary.Username).To(gomega.Equal("admin"))
			gomega.Expect(summary.Email).To(gomega.Equal("admin@example.com"))
		})

		ginkgo.It("should return 401 without an identity", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			w := httptest.NewRecorder()

			handler.Me(w, req)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Describe("AuthMiddleware", func() {
		var next http.Handler

		ginkgo.BeforeEach(func() {
			next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				identity, ok := IdentityFromContext(r.Context())
				gomega.Expect(ok).To(gomega.BeTrue())
				w.Header().Set("X-Identity", identity.Username)
				w.WriteHeader(http.StatusOK)
			})
		})

		ginkgo.It("should attach the identity for a valid token", func() {
			w := login(`{"username": "admin", "password": "correct_password"}`)
			var result LoginResult
			gomega.Expect(json.NewDecoder(w.Body).Decode(&result)).To(gomega.Succeed())

			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			req.Header.Set("Authorization", "Bearer "+result.AccessToken)
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Header().Get("X-Identity")).To(gomega.Equal("admin"))
		})

		ginkgo.It("should return 401 without a bearer token", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should return 401 for a garbage token", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			req.Header.Set("Authorization", "Bearer not.a.jwt")
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should resolve the current role from the store, not the claims", func() {
			w := login(`{"username": "admin", "password": "correct_password"}`)
			var result LoginResult
			gomega.Expect(json.NewDecoder(w.Body).Decode(&result)).To(gomega.Succeed())

			userRepo.usersByID[2].RoleName = RoleReadOnly
			userRepo.usersByID[2].RoleID = 1

			roleCheck := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				identity, _ := IdentityFromContext(r.Context())
				rw.Header().Set("X-Role", identity.RoleName)
				rw.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			req.Header.Set("Authorization", "Bearer "+result.AccessToken)
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(roleCheck).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Header().Get("X-Role")).To(gomega.Equal(RoleReadOnly))
		})
	})
})

var _ = ginkgo.Describe("MetadataFromRequest", func() {
	ginkgo.It("should use the first X-Forwarded-For hop", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		req.Header.Set("User-Agent", "test-agent")

		meta := MetadataFromRequest(req)
		gomega.Expect(meta.IPAddress).To(gomega.Equal("203.0.113.9"))
		gomega.Expect(meta.UserAgent).To(gomega.Equal("test-agent"))
	})

	ginkgo.It("should fall back to the remote address", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.4:50211"

		meta := MetadataFromRequest(req)
		gomega.Expect(meta.IPAddress).To(gomega.Equal("192.0.2.4"))
	})
})
