package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed roles, permissions and default accounts",
	Long:  `Seed the default roles, the permission catalog and role grants idempotently. Bootstrap accounts are only created when the users table is empty.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		gormDB, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		if err := seedAll(gormDB, cfg.Security.BCryptCost); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	},
}

var seedRoles = []struct {
	ID   int64
	Name string
	Desc string
}{
	{1, "readonly", "Read-only access to the admin panel"},
	{2, "admin", "Manage users and view roles"},
	{3, "superadmin", "Full access including role administration"},
}

var seedPermissions = []struct {
	Name string
	Desc string
}{
	{"view_users", "Can view users"},
	{"create_users", "Can create users"},
	{"edit_users", "Can edit users"},
	{"delete_users", "Can delete users"},
	{"view_roles", "Can view roles and permissions"},
	{"create_roles", "Can create roles"},
	{"edit_roles", "Can edit roles"},
	{"delete_roles", "Can delete roles"},
	{"view_dashboard", "Can view the dashboard"},
	{"view_pages", "Can view content pages"},
}

// grants per role name. superadmin holds every permission implicitly so
// it needs no rows here.
var seedGrants = map[string][]string{
	"readonly": {"view_users", "view_roles", "view_dashboard", "view_pages"},
	"admin": {
		"view_users", "create_users", "edit_users",
		"view_roles", "view_dashboard", "view_pages",
	},
}

var seedUsers = []struct {
	Username string
	Email    string
	Password string
	RoleID   int64
}{
	{"superadmin", "superadmin@example.com", "SuperAdmin123!", 3},
	{"admin", "admin@example.com", "Admin123!", 2},
	{"readonly", "readonly@example.com", "ReadOnly123!", 1},
}

func seedAll(db *gorm.DB, bcryptCost int) error {
	for _, r := range seedRoles {
		var exists int
		row := db.Raw("SELECT 1 FROM roles WHERE id = ?", r.ID).Row()
		if err := row.Scan(&exists); err == nil {
			continue
		}
		now := time.Now()
		if err := db.Exec("INSERT INTO roles (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)", r.ID, r.Name, r.Desc, now, now).Error; err != nil {
			return fmt.Errorf("insert role %s: %w", r.Name, err)
		}
		fmt.Println("Seeded role:", r.Name)
	}

	// Explicit-id inserts do not advance the serial sequence, so without
	// this the next default-id role insert would collide with id 1.
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("SELECT setval('roles_id_seq', GREATEST((SELECT MAX(id) FROM roles), ?))", len(seedRoles)).Error; err != nil {
			return fmt.Errorf("advance roles id sequence: %w", err)
		}
	}

	for _, p := range seedPermissions {
		var pid int64
		row := db.Raw("SELECT id FROM permissions WHERE name = ?", p.Name).Row()
		if err := row.Scan(&pid); err == nil {
			continue
		}
		if err := db.Exec("INSERT INTO permissions (name, description, created_at) VALUES (?, ?, ?)", p.Name, p.Desc, time.Now()).Error; err != nil {
			return fmt.Errorf("insert permission %s: %w", p.Name, err)
		}
		fmt.Println("Seeded permission:", p.Name)
	}

	for roleName, grants := range seedGrants {
		var roleID int64
		if err := db.Raw("SELECT id FROM roles WHERE name = ?", roleName).Row().Scan(&roleID); err != nil {
			return fmt.Errorf("lookup role %s: %w", roleName, err)
		}

		for _, permName := range grants {
			var pid int64
			if err := db.Raw("SELECT id FROM permissions WHERE name = ?", permName).Row().Scan(&pid); err != nil {
				return fmt.Errorf("lookup permission %s: %w", permName, err)
			}

			var exists int
			if err := db.Raw("SELECT 1 FROM role_permissions WHERE role_id = ? AND permission_id = ?", roleID, pid).Row().Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec("INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?)", roleID, pid).Error; err != nil {
				return fmt.Errorf("grant %s to %s: %w", permName, roleName, err)
			}
		}
		fmt.Println("Granted permissions to role:", roleName)
	}

	// Bootstrap accounts only for a fresh install. An empty users table
	// is the signal; deployments with existing accounts are not touched.
	var userCount int64
	if err := db.Raw("SELECT COUNT(*) FROM users").Row().Scan(&userCount); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if userCount > 0 {
		fmt.Println("Users table is not empty; skipping bootstrap accounts")
		return nil
	}

	for _, u := range seedUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcryptCost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.Username, err)
		}
		now := time.Now()
		if err := db.Exec("INSERT INTO users (username, email, password_hash, role_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)", u.Username, u.Email, string(hash), u.RoleID, now, now).Error; err != nil {
			return fmt.Errorf("insert user %s: %w", u.Username, err)
		}
		fmt.Println("Seeded bootstrap user:", u.Username)
	}

	return nil
}
