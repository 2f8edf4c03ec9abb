package role

import "time"

type Role struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null;size:50"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

type Permission struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null;size:100"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (Permission) TableName() string {
	return "permissions"
}

type RolePermission struct {
	ID           int64 `gorm:"primaryKey"`
	RoleID       int64 `gorm:"column:role_id;not null;uniqueIndex:idx_role_permission"`
	PermissionID int64 `gorm:"column:permission_id;not null;uniqueIndex:idx_role_permission"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}
