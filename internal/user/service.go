package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/auth"
	"github.com/frahmantamala/rbac-admin/internal/core/events"
)

type Service struct {
	repo       Repository
	bus        *events.EventBus
	logger     *slog.Logger
	bcryptCost int
}

func NewService(repo Repository, bus *events.EventBus, logger *slog.Logger, bcryptCost int) *Service {
	return &Service{
		repo:       repo,
		bus:        bus,
		logger:     logger,
		bcryptCost: bcryptCost,
	}
}

func (s *Service) List(ctx context.Context) ([]*User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if u == nil {
		return nil, errors.ErrUserNotFound
	}
	return u, nil
}

// Create registers a new account with a hashed password. Username and
// email must be unique among live users and the role must exist.
func (s *Service) Create(ctx context.Context, dto CreateUserDTO, performedBy *int64, meta auth.RequestMetadata) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if err := s.checkUniqueness(ctx, dto.Username, dto.Email, 0); err != nil {
		return nil, err
	}

	roleName, err := s.repo.RoleName(ctx, dto.RoleID)
	if err != nil {
		return nil, fmt.Errorf("resolve role: %w", err)
	}
	if roleName == "" {
		return nil, errors.ErrRoleNotFound
	}

	hash, err := auth.HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	u := &User{
		Username:     dto.Username,
		Email:        dto.Email,
		PasswordHash: hash,
		RoleID:       dto.RoleID,
		RoleName:     roleName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.publish(ctx, events.EventTypeUserCreated, &u.ID, performedBy, meta, fmt.Sprintf("created user %s", u.Username))
	return u, nil
}

// Update changes username, email, role and optionally the password of an
// existing user.
func (s *Service) Update(ctx context.Context, id int64, dto UpdateUserDTO, performedBy *int64, meta auth.RequestMetadata) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkUniqueness(ctx, dto.Username, dto.Email, id); err != nil {
		return nil, err
	}

	roleName, err := s.repo.RoleName(ctx, dto.RoleID)
	if err != nil {
		return nil, fmt.Errorf("resolve role: %w", err)
	}
	if roleName == "" {
		return nil, errors.ErrRoleNotFound
	}

	u.Username = dto.Username
	u.Email = dto.Email
	u.RoleID = dto.RoleID
	u.RoleName = roleName
	if dto.Password != "" {
		hash, err := auth.HashPassword(dto.Password, s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.publish(ctx, events.EventTypeUserUpdated, &u.ID, performedBy, meta, fmt.Sprintf("updated user %s", u.Username))
	return u, nil
}

// Delete soft-deletes a user. Users cannot delete their own account.
func (s *Service) Delete(ctx context.Context, id int64, performedBy *int64, meta auth.RequestMetadata) error {
	if performedBy != nil && *performedBy == id {
		return errors.ErrCannotDeleteSelf
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.publish(ctx, events.EventTypeUserDeleted, &u.ID, performedBy, meta, fmt.Sprintf("deleted user %s", u.Username))
	return nil
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (*User, error) {
	return s.GetByID(ctx, userID)
}

// UpdateProfile lets the authenticated user change their own username,
// email and password. A password change is only applied after the
// current password verifies.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, dto UpdateProfileDTO, meta auth.RequestMetadata) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.checkUniqueness(ctx, dto.Username, dto.Email, userID); err != nil {
		return nil, err
	}

	if dto.NewPassword != "" {
		if err := auth.VerifyPassword(u.PasswordHash, dto.CurrentPassword); err != nil {
			return nil, errors.NewUnauthorizedError("Current password is incorrect", errors.ErrCodeInvalidPassword)
		}
		hash, err := auth.HashPassword(dto.NewPassword, s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}

	u.Username = dto.Username
	u.Email = dto.Email
	u.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.publish(ctx, events.EventTypeProfileUpdated, &u.ID, &userID, meta, "updated own profile")
	return u, nil
}

// checkUniqueness rejects usernames and emails already held by another
// live user. excludeID skips the user being updated.
func (s *Service) checkUniqueness(ctx context.Context, username, email string, excludeID int64) error {
	existing, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if existing != nil && existing.ID != excludeID {
		return errors.ErrUsernameTaken
	}

	existing, err = s.repo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if existing != nil && existing.ID != excludeID {
		return errors.ErrEmailTaken
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, subject, performedBy *int64, meta auth.RequestMetadata, details string) {
	if s.bus == nil {
		return
	}
	ev := events.NewSecurityEvent(eventType, subject, performedBy, meta.IPAddress, meta.UserAgent, details)
	if err := s.bus.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Error("failed to publish audit event", "event_type", eventType, "error", err)
	}
}
