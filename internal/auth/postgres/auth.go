package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/rbac-admin/internal/auth"
	tokenDatamodel "github.com/frahmantamala/rbac-admin/internal/core/datamodel/token"
)

// Repository is the credential-store adapter backing the auth service:
// user lookups, refresh token rows and role permission reads.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

const userColumns = `u.id, u.username, u.email, u.password_hash, u.role_id, u.deleted_at, r.name AS role_name`

func (r *Repository) scanUser(row *sql.Row) (*auth.User, error) {
	var u auth.User
	var deletedAt sql.NullTime

	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.RoleID, &deletedAt, &u.RoleName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return &u, nil
}

// GetByUsername returns the account regardless of soft deletion; the
// service decides how deactivation surfaces.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	query := `SELECT ` + userColumns + `
	          FROM users u JOIN roles r ON r.id = u.role_id
	          WHERE u.username = ?`

	row := r.db.WithContext(ctx).Raw(query, username).Row()
	return r.scanUser(row)
}

// GetActiveByID excludes soft-deleted accounts.
func (r *Repository) GetActiveByID(ctx context.Context, userID int64) (*auth.User, error) {
	query := `SELECT ` + userColumns + `
	          FROM users u JOIN roles r ON r.id = u.role_id
	          WHERE u.id = ? AND u.deleted_at IS NULL`

	row := r.db.WithContext(ctx).Raw(query, userID).Row()
	return r.scanUser(row)
}

func (r *Repository) Create(ctx context.Context, t *auth.RefreshToken) error {
	row := tokenDatamodel.RefreshToken{
		UserID:    t.UserID,
		Token:     t.Token,
		ExpiresAt: t.ExpiresAt,
		IPAddress: t.IPAddress,
		UserAgent: t.UserAgent,
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}

	t.ID = row.ID
	t.CreatedAt = row.CreatedAt
	return nil
}

// GetActive returns the row for the exact token value with revoked = false.
func (r *Repository) GetActive(ctx context.Context, tokenValue string) (*auth.RefreshToken, error) {
	var row tokenDatamodel.RefreshToken

	err := r.db.WithContext(ctx).
		Where("token = ? AND revoked = ?", tokenValue, false).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &auth.RefreshToken{
		ID:        row.ID,
		UserID:    row.UserID,
		Token:     row.Token,
		ExpiresAt: row.ExpiresAt,
		Revoked:   row.Revoked,
		RevokedAt: row.RevokedAt,
		IPAddress: row.IPAddress,
		UserAgent: row.UserAgent,
		CreatedAt: row.CreatedAt,
	}, nil
}

// Revoke flips revoked atomically with an update-if-not-revoked condition,
// so concurrent revocations and refreshes linearize on the token row.
func (r *Repository) Revoke(ctx context.Context, tokenValue string) (bool, error) {
	now := time.Now()

	res := r.db.WithContext(ctx).
		Model(&tokenDatamodel.RefreshToken{}).
		Where("token = ? AND revoked = ?", tokenValue, false).
		Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// PurgeTokens deletes refresh token rows that can never be used again:
// expired ones and revoked ones past the retention window.
func (r *Repository) PurgeTokens(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked = ? AND revoked_at < ?)", cutoff, true, cutoff).
		Delete(&tokenDatamodel.RefreshToken{})
	if res.Error != nil {
		return 0, res.Error
	}

	return res.RowsAffected, nil
}

// GetRolePermissions resolves the permission names granted to a role.
func (r *Repository) GetRolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	query := `SELECT p.name
	          FROM permissions p
	          JOIN role_permissions rp ON rp.permission_id = p.id
	          WHERE rp.role_id = ?`

	rows, err := r.db.WithContext(ctx).Raw(query, roleID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var permissions []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		permissions = append(permissions, name)
	}

	return permissions, rows.Err()
}
