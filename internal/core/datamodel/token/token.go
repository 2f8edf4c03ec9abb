package token

import "time"

// RefreshToken is the persisted session credential. Rows are inserted at
// login and only ever mutated by flipping Revoked; the token value itself
// is never rewritten.
type RefreshToken struct {
	ID        int64      `gorm:"primaryKey"`
	UserID    int64      `gorm:"column:user_id;not null;index"`
	Token     string     `gorm:"column:token;uniqueIndex;not null;size:500"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	Revoked   bool       `gorm:"column:revoked;default:false"`
	RevokedAt *time.Time `gorm:"column:revoked_at"`
	IPAddress string     `gorm:"column:ip_address;size:45"`
	UserAgent string     `gorm:"column:user_agent;type:text"`
	CreatedAt time.Time  `gorm:"column:created_at"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}
