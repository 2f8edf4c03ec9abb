package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	roleDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/role"
	userDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/user"
	"github.com/frahmantamala/rbac-admin/internal/user"
)

// UserRepository implements the user.Repository interface using GORM
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) user.Repository {
	return &UserRepository{db: db}
}

// userRow joins the role name onto the user columns.
type userRow struct {
	userDatamodel.User
	RoleName string
}

// List returns all live users ordered by id
func (r *UserRepository) List(ctx context.Context) ([]*user.User, error) {
	var rows []userRow
	err := r.db.WithContext(ctx).
		Table("users").
		Select("users.*, roles.name AS role_name").
		Joins("LEFT JOIN roles ON roles.id = users.role_id").
		Where("users.deleted_at IS NULL").
		Order("users.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	users := make([]*user.User, 0, len(rows))
	for i := range rows {
		users = append(users, user.FromDataModel(&rows[i].User, rows[i].RoleName))
	}
	return users, nil
}

// GetByID retrieves a live user by id
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.getOne(ctx, "users.id = ?", id)
}

// GetByUsername retrieves a live user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.getOne(ctx, "users.username = ?", username)
}

// GetByEmail retrieves a live user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, "users.email = ?", email)
}

func (r *UserRepository) getOne(ctx context.Context, cond string, arg interface{}) (*user.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).
		Table("users").
		Select("users.*, roles.name AS role_name").
		Joins("LEFT JOIN roles ON roles.id = users.role_id").
		Where(cond, arg).
		Where("users.deleted_at IS NULL").
		Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return user.FromDataModel(&row.User, row.RoleName), nil
}

// Create inserts a new user row and backfills the generated id
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	dm := user.ToDataModel(u)
	if err := r.db.WithContext(ctx).Create(dm).Error; err != nil {
		return err
	}
	u.ID = dm.ID
	u.CreatedAt = dm.CreatedAt
	u.UpdatedAt = dm.UpdatedAt
	return nil
}

// Update saves the mutable columns of an existing user
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	return r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ? AND deleted_at IS NULL", u.ID).
		Updates(map[string]interface{}{
			"username":      u.Username,
			"email":         u.Email,
			"password_hash": u.PasswordHash,
			"role_id":       u.RoleID,
			"updated_at":    time.Now(),
		}).Error
}

// SoftDelete marks a user as deleted without removing the row
func (r *UserRepository) SoftDelete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&userDatamodel.User{}).Error
}

// RoleName returns the name of a role, or "" when the role does not exist
func (r *UserRepository) RoleName(ctx context.Context, roleID int64) (string, error) {
	var role roleDatamodel.Role
	err := r.db.WithContext(ctx).Where("id = ?", roleID).Take(&role).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return role.Name, nil
}
