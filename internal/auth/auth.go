package auth

import (
	"context"
	"errors"
	"time"
)

// Seeded role names. Superadmin implicitly holds every permission; the
// role_permissions table cannot express "all", so authorization code
// must special-case it.
const (
	RoleReadOnly   = "readonly"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// User is the credential-store view of an account, including fields the
// rest of the API must never expose.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	RoleID       int64
	RoleName     string
	DeletedAt    *time.Time
}

func (u *User) Deactivated() bool {
	return u.DeletedAt != nil
}

// Identity is the request-scoped caller identity attached by the
// authentication middleware. It is the sole input to authorization checks.
type Identity struct {
	ID       int64
	Username string
	RoleID   int64
	RoleName string
}

// UserSummary is the client-facing shape of an authenticated user.
type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	RoleID   int64  `json:"roleId"`
}

// RefreshToken mirrors the persisted session credential.
type RefreshToken struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
	Revoked   bool
	RevokedAt *time.Time
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// RequestMetadata carries per-request data persisted alongside refresh
// tokens and audit entries.
type RequestMetadata struct {
	IPAddress string
	UserAgent string
}

// LoginResult is returned from a successful login.
type LoginResult struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         UserSummary `json:"user"`
}

// UserRepository reads accounts from the credential store. Lookups return
// (nil, nil) when no matching row exists so callers can distinguish
// absence from store failure.
type UserRepository interface {
	// GetByUsername includes soft-deleted accounts; the service decides
	// how deactivation surfaces.
	GetByUsername(ctx context.Context, username string) (*User, error)
	// GetActiveByID excludes soft-deleted accounts.
	GetActiveByID(ctx context.Context, userID int64) (*User, error)
}

// RefreshTokenRepository persists refresh token rows.
type RefreshTokenRepository interface {
	Create(ctx context.Context, t *RefreshToken) error
	// GetActive returns the row for the exact token value with
	// revoked = false, or (nil, nil) when absent.
	GetActive(ctx context.Context, tokenValue string) (*RefreshToken, error)
	// Revoke flips revoked on the row holding tokenValue if and only if
	// it is not already revoked. Reports whether a row was changed.
	Revoke(ctx context.Context, tokenValue string) (bool, error)
}

// PermissionRepository resolves a role's granted permission names.
type PermissionRepository interface {
	GetRolePermissions(ctx context.Context, roleID int64) ([]string, error)
}

// TokenGenerator creates and validates access tokens.
type TokenGenerator interface {
	GenerateAccessToken(user *User) (string, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
}

// ServiceAPI is the authentication surface consumed by handlers and
// middleware.
type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO, meta RequestMetadata) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string, performedBy *int64, meta RequestMetadata) error
	ValidateAccessToken(tokenString string) (*Claims, error)
	ResolveIdentity(ctx context.Context, userID int64) (*Identity, error)
	CurrentUser(ctx context.Context, userID int64) (*UserSummary, error)
	HasPermission(ctx context.Context, identity *Identity, permission string) (bool, error)
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUserNotFound       = errors.New("user not found")
)

type ctxKey string

const ContextIdentityKey ctxKey = "identity"

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ContextIdentityKey).(*Identity)
	return id, ok
}

func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ContextIdentityKey, id)
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.RoleName,
		RoleID:   u.RoleID,
	}
}

func (u *User) Identity() *Identity {
	return &Identity{
		ID:       u.ID,
		Username: u.Username,
		RoleID:   u.RoleID,
		RoleName: u.RoleName,
	}
}
