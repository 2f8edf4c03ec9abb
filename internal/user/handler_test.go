package user_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/rbac-admin/internal/auth"
	roleDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/role"
	userDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/user"
	"github.com/frahmantamala/rbac-admin/internal/user"
	userPostgres "github.com/frahmantamala/rbac-admin/internal/user/postgres"
)

var _ = Describe("User Handler Integration", func() {
	var (
		db      *gorm.DB
		handler *user.Handler
		router  *chi.Mux
		adminID int64
	)

	serve := func(method, target string, body any, identity *auth.Identity) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, target, &buf)
		req.Header.Set("Content-Type", "application/json")
		if identity != nil {
			req = req.WithContext(auth.ContextWithIdentity(req.Context(), identity))
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		var err error
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(
			&roleDatamodel.Role{},
			&roleDatamodel.Permission{},
			&roleDatamodel.RolePermission{},
			&userDatamodel.User{},
		)
		Expect(err).NotTo(HaveOccurred())

		roles := []roleDatamodel.Role{
			{ID: 1, Name: "readonly"},
			{ID: 2, Name: "admin"},
		}
		for i := range roles {
			Expect(db.Create(&roles[i]).Error).NotTo(HaveOccurred())
		}

		hash, err := bcrypt.GenerateFromPassword([]byte("current_password"), bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())

		seed := userDatamodel.User{
			Username:     "alice",
			Email:        "alice@example.com",
			PasswordHash: string(hash),
			RoleID:       2,
		}
		Expect(db.Create(&seed).Error).NotTo(HaveOccurred())
		adminID = seed.ID

		repo := userPostgres.NewUserRepository(db)
		service := user.NewService(repo, nil, slogger, bcrypt.MinCost)
		handler = user.NewHandler(service)

		router = chi.NewRouter()
		router.Get("/api/users", handler.ListUsers)
		router.Post("/api/users", handler.CreateUser)
		router.Get("/api/users/{id}", handler.GetUser)
		router.Put("/api/users/{id}", handler.UpdateUser)
		router.Delete("/api/users/{id}", handler.DeleteUser)
		router.Get("/api/profile", handler.GetProfile)
		router.Put("/api/profile", handler.UpdateProfile)
	})

	Describe("GET /api/users", func() {
		It("should list users with their role names", func() {
			w := serve(http.MethodGet, "/api/users", nil, nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var users []user.User
			Expect(json.NewDecoder(w.Body).Decode(&users)).To(Succeed())
			Expect(users).To(HaveLen(1))
			Expect(users[0].Username).To(Equal("alice"))
			Expect(users[0].RoleName).To(Equal("admin"))
		})

		It("should never expose password hashes", func() {
			w := serve(http.MethodGet, "/api/users", nil, nil)

			Expect(w.Body.String()).NotTo(ContainSubstring("password"))
			Expect(w.Body.String()).NotTo(ContainSubstring("hash"))
		})
	})

	Describe("POST /api/users", func() {
		It("should create a user and return 201", func() {
			w := serve(http.MethodPost, "/api/users", user.CreateUserDTO{
				Username: "bob",
				Email:    "bob@example.com",
				Password: "Password123!",
				RoleID:   1,
			}, &auth.Identity{ID: adminID})

			Expect(w.Code).To(Equal(http.StatusCreated))
			var created user.User
			Expect(json.NewDecoder(w.Body).Decode(&created)).To(Succeed())
			Expect(created.ID).NotTo(BeZero())
			Expect(created.RoleName).To(Equal("readonly"))
		})

		It("should reject a duplicate username with 409", func() {
			w := serve(http.MethodPost, "/api/users", user.CreateUserDTO{
				Username: "alice",
				Email:    "alice2@example.com",
				Password: "Password123!",
				RoleID:   1,
			}, nil)

			Expect(w.Code).To(Equal(http.StatusConflict))
		})

		It("should reject an unknown role with 404", func() {
			w := serve(http.MethodPost, "/api/users", user.CreateUserDTO{
				Username: "carol",
				Email:    "carol@example.com",
				Password: "Password123!",
				RoleID:   99,
			}, nil)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("should reject a short password with 400", func() {
			w := serve(http.MethodPost, "/api/users", user.CreateUserDTO{
				Username: "carol",
				Email:    "carol@example.com",
				Password: "short",
				RoleID:   1,
			}, nil)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("PUT /api/users/{id}", func() {
		It("should update the role", func() {
			w := serve(http.MethodPut, fmt.Sprintf("/api/users/%d", adminID), user.UpdateUserDTO{
				Username: "alice",
				Email:    "alice@example.com",
				RoleID:   1,
			}, nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var updated user.User
			Expect(json.NewDecoder(w.Body).Decode(&updated)).To(Succeed())
			Expect(updated.RoleID).To(Equal(int64(1)))
			Expect(updated.RoleName).To(Equal("readonly"))
		})

		It("should return 404 for a missing user", func() {
			w := serve(http.MethodPut, "/api/users/999", user.UpdateUserDTO{
				Username: "nobody",
				Email:    "nobody@example.com",
				RoleID:   1,
			}, nil)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("should return 400 for a non-numeric id", func() {
			w := serve(http.MethodPut, "/api/users/abc", user.UpdateUserDTO{
				Username: "alice",
				Email:    "alice@example.com",
				RoleID:   1,
			}, nil)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("DELETE /api/users/{id}", func() {
		var bobID int64

		BeforeEach(func() {
			bob := userDatamodel.User{
				Username:     "bob",
				Email:        "bob@example.com",
				PasswordHash: "hash",
				RoleID:       1,
			}
			Expect(db.Create(&bob).Error).NotTo(HaveOccurred())
			bobID = bob.ID
		})

		It("should soft delete and hide the user from listings", func() {
			w := serve(http.MethodDelete, fmt.Sprintf("/api/users/%d", bobID), nil, &auth.Identity{ID: adminID})
			Expect(w.Code).To(Equal(http.StatusOK))

			w = serve(http.MethodGet, fmt.Sprintf("/api/users/%d", bobID), nil, nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))

			var count int64
			Expect(db.Table("users").Where("deleted_at IS NOT NULL").Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})

		It("should refuse self-deletion with 400", func() {
			w := serve(http.MethodDelete, fmt.Sprintf("/api/users/%d", adminID), nil, &auth.Identity{ID: adminID})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("profile endpoints", func() {
		It("should return the caller's profile", func() {
			w := serve(http.MethodGet, "/api/profile", nil, &auth.Identity{ID: adminID})

			Expect(w.Code).To(Equal(http.StatusOK))
			var profile user.User
			Expect(json.NewDecoder(w.Body).Decode(&profile)).To(Succeed())
			Expect(profile.Username).To(Equal("alice"))
		})

		It("should return 401 without an identity", func() {
			w := serve(http.MethodGet, "/api/profile", nil, nil)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should change the password when the current one matches", func() {
			w := serve(http.MethodPut, "/api/profile", user.UpdateProfileDTO{
				Username:        "alice",
				Email:           "alice@example.com",
				NewPassword:     "NewPassword123!",
				CurrentPassword: "current_password",
			}, &auth.Identity{ID: adminID})

			Expect(w.Code).To(Equal(http.StatusOK))

			var row userDatamodel.User
			Expect(db.First(&row, adminID).Error).NotTo(HaveOccurred())
			Expect(bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte("NewPassword123!"))).To(Succeed())
		})

		It("should reject a wrong current password with 401", func() {
			w := serve(http.MethodPut, "/api/profile", user.UpdateProfileDTO{
				Username:        "alice",
				Email:           "alice@example.com",
				NewPassword:     "NewPassword123!",
				CurrentPassword: "wrong",
			}, &auth.Identity{ID: adminID})

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
