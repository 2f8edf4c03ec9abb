package postgres

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	roleDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/role"
	userDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/user"
	"github.com/frahmantamala/rbac-admin/internal/role"
)

func TestRoleRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "RoleRepository Suite")
}

var _ = Describe("RoleRepository", func() {
	var (
		db   *gorm.DB
		repo role.Repository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(
			&roleDatamodel.Role{},
			&roleDatamodel.Permission{},
			&roleDatamodel.RolePermission{},
			&userDatamodel.User{},
		)
		Expect(err).NotTo(HaveOccurred())

		seedRoles := []roleDatamodel.Role{
			{ID: 1, Name: "readonly", Description: "Read only access"},
			{ID: 2, Name: "admin", Description: "User management"},
		}
		for i := range seedRoles {
			Expect(db.Create(&seedRoles[i]).Error).NotTo(HaveOccurred())
		}

		seedPerms := []roleDatamodel.Permission{
			{ID: 1, Name: "view_users"},
			{ID: 2, Name: "create_users"},
			{ID: 3, Name: "view_roles"},
		}
		for i := range seedPerms {
			Expect(db.Create(&seedPerms[i]).Error).NotTo(HaveOccurred())
		}

		grants := []roleDatamodel.RolePermission{
			{RoleID: 1, PermissionID: 1},
			{RoleID: 2, PermissionID: 1},
			{RoleID: 2, PermissionID: 2},
		}
		for i := range grants {
			Expect(db.Create(&grants[i]).Error).NotTo(HaveOccurred())
		}

		repo = NewRoleRepository(db)
		ctx = context.Background()
	})

	Describe("List", func() {
		It("should return roles ordered by id", func() {
			roles, err := repo.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(roles).To(HaveLen(2))
			Expect(roles[0].Name).To(Equal("readonly"))
			Expect(roles[1].Name).To(Equal("admin"))
		})
	})

	Describe("GetByName", func() {
		It("should find an existing role", func() {
			ro, err := repo.GetByName(ctx, "admin")
			Expect(err).NotTo(HaveOccurred())
			Expect(ro).NotTo(BeNil())
			Expect(ro.ID).To(Equal(int64(2)))
		})

		It("should return nil for an unknown name", func() {
			ro, err := repo.GetByName(ctx, "nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(ro).To(BeNil())
		})
	})

	Describe("Create", func() {
		It("should backfill the generated id", func() {
			ro := &role.Role{Name: "auditor", Description: "Read audit logs"}
			Expect(repo.Create(ctx, ro)).To(Succeed())
			Expect(ro.ID).To(BeNumerically(">", 2))

			found, err := repo.GetByID(ctx, ro.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Name).To(Equal("auditor"))
		})
	})

	Describe("Update", func() {
		It("should persist name and description", func() {
			ro, err := repo.GetByID(ctx, 2)
			Expect(err).NotTo(HaveOccurred())

			ro.Name = "operator"
			ro.Description = "renamed"
			Expect(repo.Update(ctx, ro)).To(Succeed())

			found, err := repo.GetByID(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Name).To(Equal("operator"))
			Expect(found.Description).To(Equal("renamed"))
		})
	})

	Describe("Delete", func() {
		It("should remove the role together with its grants", func() {
			Expect(repo.Delete(ctx, 2)).To(Succeed())

			ro, err := repo.GetByID(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(ro).To(BeNil())

			var grantCount int64
			Expect(db.Model(&roleDatamodel.RolePermission{}).Where("role_id = ?", 2).Count(&grantCount).Error).NotTo(HaveOccurred())
			Expect(grantCount).To(BeZero())
		})
	})

	Describe("CountUsers", func() {
		BeforeEach(func() {
			users := []userDatamodel.User{
				{Username: "alice", Email: "alice@example.com", PasswordHash: "hash", RoleID: 2},
				{Username: "bob", Email: "bob@example.com", PasswordHash: "hash", RoleID: 2},
			}
			for i := range users {
				Expect(db.Create(&users[i]).Error).NotTo(HaveOccurred())
			}
		})

		It("should count live holders of the role", func() {
			count, err := repo.CountUsers(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))
		})

		It("should ignore soft-deleted holders", func() {
			Expect(db.Where("username = ?", "bob").Delete(&userDatamodel.User{}).Error).NotTo(HaveOccurred())

			count, err := repo.CountUsers(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})
	})

	Describe("permissions", func() {
		It("should list the full catalog ordered by id", func() {
			perms, err := repo.ListPermissions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(HaveLen(3))
			Expect(perms[0].Name).To(Equal("view_users"))
		})

		It("should resolve a role's grants", func() {
			perms, err := repo.GetRolePermissions(ctx, 2)
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, len(perms))
			for i, p := range perms {
				names[i] = p.Name
			}
			Expect(names).To(ConsistOf("view_users", "create_users"))
		})

		It("should replace the grant set atomically", func() {
			Expect(repo.ReplacePermissions(ctx, 2, []int64{3})).To(Succeed())

			perms, err := repo.GetRolePermissions(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(HaveLen(1))
			Expect(perms[0].Name).To(Equal("view_roles"))
		})

		It("should clear all grants when given an empty set", func() {
			Expect(repo.ReplacePermissions(ctx, 2, nil)).To(Succeed())

			perms, err := repo.GetRolePermissions(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(BeEmpty())
		})

		It("should count only existing permission ids", func() {
			count, err := repo.CountPermissionsByID(ctx, []int64{1, 3, 99})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))
		})
	})
})
