package role

import (
	"context"
	"time"
)

// Protected seeded roles. These ship with every deployment and cannot
// be deleted.
const (
	RoleIDReadOnly   int64 = 1
	RoleIDAdmin      int64 = 2
	RoleIDSuperAdmin int64 = 3
)

type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// IsProtected reports whether the role is one of the seeded defaults.
func (r *Role) IsProtected() bool {
	return r.ID >= RoleIDReadOnly && r.ID <= RoleIDSuperAdmin
}

// Repository abstracts role persistence. Lookups return (nil, nil) when
// no row matches.
type Repository interface {
	List(ctx context.Context) ([]*Role, error)
	GetByID(ctx context.Context, id int64) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	Create(ctx context.Context, r *Role) error
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id int64) error
	CountUsers(ctx context.Context, roleID int64) (int64, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	GetRolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	CountPermissionsByID(ctx context.Context, permissionIDs []int64) (int64, error)
}
