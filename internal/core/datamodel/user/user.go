package user

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           int64          `gorm:"primaryKey"`
	Username     string         `gorm:"column:username;uniqueIndex;not null;size:50"`
	Email        string         `gorm:"column:email;uniqueIndex;not null;size:100"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	RoleID       int64          `gorm:"column:role_id;not null"`
	DeletedAt    gorm.DeletedAt `gorm:"column:deleted_at;index"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}
