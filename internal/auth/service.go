package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/core/events"
)

// Service orchestrates login, refresh and logout against the credential
// store, the token issuer and the audit event bus.
type Service struct {
	users      UserRepository
	tokens     RefreshTokenRepository
	perms      PermissionRepository
	tokenGen   TokenGenerator
	bus        *events.EventBus
	logger     *slog.Logger
	bcryptCost int
	refreshTTL time.Duration
	opTimeout  time.Duration

	// dummyHash is compared against when the username does not resolve,
	// so elapsed time is statistically indistinguishable between "no such
	// user" and "wrong password".
	dummyHash string

	// refreshGroup coalesces concurrent refresh calls for the same token
	// value: one underlying refresh runs, every waiter gets its result.
	refreshGroup singleflight.Group
}

func NewService(users UserRepository, tokens RefreshTokenRepository, perms PermissionRepository, tokenGen TokenGenerator, bus *events.EventBus, logger *slog.Logger, bcryptCost int, refreshTTL, opTimeout time.Duration) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("rbac-admin-dummy-password"), bcryptCost)
	if err != nil {
		// bcrypt only fails on invalid cost, which Config.Validate rules out
		panic(fmt.Sprintf("auth: failed to generate dummy hash: %v", err))
	}

	return &Service{
		users:      users,
		tokens:     tokens,
		perms:      perms,
		tokenGen:   tokenGen,
		bus:        bus,
		logger:     logger,
		bcryptCost: bcryptCost,
		refreshTTL: refreshTTL,
		opTimeout:  opTimeout,
		dummyHash:  string(dummy),
	}
}

// Login validates credentials and returns tokens plus a user summary.
func (s *Service) Login(ctx context.Context, dto LoginDTO, meta RequestMetadata) (*LoginResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := internal.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	user, err := s.users.GetByUsername(ctx, dto.Username)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	// Compare against the real hash or the dummy hash unconditionally so
	// unknown usernames cannot be enumerated via timing.
	storedHash := s.dummyHash
	if user != nil {
		storedHash = user.PasswordHash
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(dto.Password))

	if user == nil || compareErr != nil {
		if user != nil && !user.Deactivated() {
			// Observable ordering: the failed-attempt audit write happens
			// before the error is returned.
			s.publishSync(ctx, events.EventTypeLoginFailed, &user.ID, nil, meta, "invalid password")
		}
		return nil, ErrInvalidCredentials
	}

	if user.Deactivated() {
		return nil, ErrAccountDeactivated
	}

	accessToken, err := s.tokenGen.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshValue, err := GenerateRefreshTokenValue()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.tokens.Create(ctx, &RefreshToken{
		UserID:    user.ID,
		Token:     refreshValue,
		ExpiresAt: time.Now().Add(s.refreshTTL),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	// Success audit must not block the response.
	s.publish(ctx, events.EventTypeLogin, &user.ID, &user.ID, meta, "")

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshValue,
		User:         user.Summary(),
	}, nil
}

// Refresh mints a new access token from a still-valid refresh token. The
// refresh token itself is not rotated: it stays usable until its own
// expiry or an explicit logout. Concurrent calls with the same token
// value are coalesced into one underlying refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrInvalidToken
	}

	v, err, _ := s.refreshGroup.Do(refreshToken, func() (interface{}, error) {
		return s.refresh(ctx, refreshToken)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Service) refresh(ctx context.Context, refreshToken string) (string, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	row, err := s.tokens.GetActive(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("lookup refresh token: %w", err)
	}
	if row == nil {
		return "", ErrInvalidToken
	}

	// Inclusive boundary: a token presented exactly at expires_at is
	// expired. Lazy cleanup: the row is revoked so re-presenting it
	// never re-evaluates the expiry.
	if !time.Now().Before(row.ExpiresAt) {
		s.revokeQuietly(ctx, refreshToken)
		return "", ErrTokenExpired
	}

	// Re-read the owner so role changes take effect within one refresh
	// cycle, and so a soft-deleted account cannot mint further tokens.
	user, err := s.users.GetActiveByID(ctx, row.UserID)
	if err != nil {
		return "", fmt.Errorf("lookup token owner: %w", err)
	}
	if user == nil {
		s.revokeQuietly(ctx, refreshToken)
		return "", ErrAccountDeactivated
	}

	accessToken, err := s.tokenGen.GenerateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}

	s.publish(ctx, events.EventTypeTokenRefreshed, &user.ID, &user.ID, RequestMetadata{}, "")

	return accessToken, nil
}

// Logout revokes the supplied refresh token. Revoking an already-revoked
// or unknown token is not an error: client-side token discard is the
// source of truth for "logged out".
func (s *Service) Logout(ctx context.Context, refreshToken string, performedBy *int64, meta RequestMetadata) error {
	ctx, cancel := internal.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if refreshToken != "" {
		if _, err := s.tokens.Revoke(ctx, refreshToken); err != nil {
			s.logger.Error("logout: failed to revoke refresh token", "error", err)
		}
	}

	if performedBy != nil {
		s.publish(ctx, events.EventTypeLogout, performedBy, performedBy, meta, "")
	}

	return nil
}

// ValidateAccessToken verifies an access token and returns its claims.
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGen.ValidateAccessToken(tokenString)
}

// ResolveIdentity re-reads the user from the store so the request-scoped
// identity always carries the current role, not the one embedded in the
// token at issuance.
func (s *Service) ResolveIdentity(ctx context.Context, userID int64) (*Identity, error) {
	user, err := s.users.GetActiveByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user.Identity(), nil
}

// CurrentUser returns the client-facing summary for an authenticated user.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*UserSummary, error) {
	user, err := s.users.GetActiveByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	summary := user.Summary()
	return &summary, nil
}

// HasPermission reports whether the identity's role grants the named
// permission. Superadmin holds every permission unconditionally.
func (s *Service) HasPermission(ctx context.Context, identity *Identity, permission string) (bool, error) {
	if identity == nil {
		return false, nil
	}
	if identity.RoleName == RoleSuperAdmin {
		return true, nil
	}

	granted, err := s.perms.GetRolePermissions(ctx, identity.RoleID)
	if err != nil {
		return false, fmt.Errorf("load role permissions: %w", err)
	}

	for _, name := range granted {
		if name == permission {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) revokeQuietly(ctx context.Context, refreshToken string) {
	if _, err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		s.logger.Error("failed to revoke refresh token", "error", err)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, subject, performedBy *int64, meta RequestMetadata, details string) {
	if s.bus == nil {
		return
	}
	ev := events.NewSecurityEvent(eventType, subject, performedBy, meta.IPAddress, meta.UserAgent, details)
	if err := s.bus.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Error("failed to publish audit event", "event_type", eventType, "error", err)
	}
}

func (s *Service) publishSync(ctx context.Context, eventType string, subject, performedBy *int64, meta RequestMetadata, details string) {
	if s.bus == nil {
		return
	}
	ev := events.NewSecurityEvent(eventType, subject, performedBy, meta.IPAddress, meta.UserAgent, details)
	if err := s.bus.PublishSync(ctx, ev); err != nil {
		s.logger.Error("failed to publish audit event", "event_type", eventType, "error", err)
	}
}
