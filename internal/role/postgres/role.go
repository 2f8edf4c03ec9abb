package postgres

import (
	"context"

	"gorm.io/gorm"

	roleDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/role"
	userDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/user"
	"github.com/frahmantamala/rbac-admin/internal/role"
)

// RoleRepository implements the role.Repository interface using GORM
type RoleRepository struct {
	db *gorm.DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *gorm.DB) role.Repository {
	return &RoleRepository{db: db}
}

// List returns all roles ordered by id
func (r *RoleRepository) List(ctx context.Context) ([]*role.Role, error) {
	var rows []roleDatamodel.Role
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	roles := make([]*role.Role, 0, len(rows))
	for i := range rows {
		roles = append(roles, fromDataModel(&rows[i]))
	}
	return roles, nil
}

// GetByID retrieves a role by id
func (r *RoleRepository) GetByID(ctx context.Context, id int64) (*role.Role, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByName retrieves a role by name
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*role.Role, error) {
	return r.getOne(ctx, "name = ?", name)
}

func (r *RoleRepository) getOne(ctx context.Context, cond string, arg interface{}) (*role.Role, error) {
	var row roleDatamodel.Role
	err := r.db.WithContext(ctx).Where(cond, arg).Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return fromDataModel(&row), nil
}

// Create inserts a new role row and backfills the generated id
func (r *RoleRepository) Create(ctx context.Context, ro *role.Role) error {
	dm := toDataModel(ro)
	if err := r.db.WithContext(ctx).Create(dm).Error; err != nil {
		return err
	}
	ro.ID = dm.ID
	ro.CreatedAt = dm.CreatedAt
	ro.UpdatedAt = dm.UpdatedAt
	return nil
}

// Update saves name and description of an existing role
func (r *RoleRepository) Update(ctx context.Context, ro *role.Role) error {
	return r.db.WithContext(ctx).
		Model(&roleDatamodel.Role{}).
		Where("id = ?", ro.ID).
		Updates(map[string]interface{}{
			"name":        ro.Name,
			"description": ro.Description,
			"updated_at":  ro.UpdatedAt,
		}).Error
}

// Delete removes a role and its permission grants
func (r *RoleRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&roleDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&roleDatamodel.Role{}).Error
	})
}

// CountUsers returns how many live users hold the role
func (r *RoleRepository) CountUsers(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("role_id = ?", roleID).
		Count(&count).Error
	return count, err
}

// ListPermissions returns the full permission catalog ordered by id
func (r *RoleRepository) ListPermissions(ctx context.Context) ([]role.Permission, error) {
	var rows []roleDatamodel.Permission
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	perms := make([]role.Permission, 0, len(rows))
	for _, p := range rows {
		perms = append(perms, role.Permission{ID: p.ID, Name: p.Name, Description: p.Description})
	}
	return perms, nil
}

// GetRolePermissions returns the permissions granted to a role
func (r *RoleRepository) GetRolePermissions(ctx context.Context, roleID int64) ([]role.Permission, error) {
	var rows []roleDatamodel.Permission
	err := r.db.WithContext(ctx).
		Model(&roleDatamodel.Permission{}).
		Joins("JOIN role_permissions rp ON rp.permission_id = permissions.id").
		Where("rp.role_id = ?", roleID).
		Order("permissions.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	perms := make([]role.Permission, 0, len(rows))
	for _, p := range rows {
		perms = append(perms, role.Permission{ID: p.ID, Name: p.Name, Description: p.Description})
	}
	return perms, nil
}

// ReplacePermissions swaps the full grant set of a role in one transaction
func (r *RoleRepository) ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&roleDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		grants := make([]roleDatamodel.RolePermission, 0, len(permissionIDs))
		for _, pid := range permissionIDs {
			grants = append(grants, roleDatamodel.RolePermission{RoleID: roleID, PermissionID: pid})
		}
		return tx.Create(&grants).Error
	})
}

// CountPermissionsByID counts how many of the given ids exist
func (r *RoleRepository) CountPermissionsByID(ctx context.Context, permissionIDs []int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&roleDatamodel.Permission{}).
		Where("id IN ?", permissionIDs).
		Count(&count).Error
	return count, err
}

func toDataModel(ro *role.Role) *roleDatamodel.Role {
	return &roleDatamodel.Role{
		ID:          ro.ID,
		Name:        ro.Name,
		Description: ro.Description,
		CreatedAt:   ro.CreatedAt,
		UpdatedAt:   ro.UpdatedAt,
	}
}

func fromDataModel(dm *roleDatamodel.Role) *role.Role {
	return &role.Role{
		ID:          dm.ID,
		Name:        dm.Name,
		Description: dm.Description,
		CreatedAt:   dm.CreatedAt,
		UpdatedAt:   dm.UpdatedAt,
	}
}
