package role

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
	repo   Repository
	bus    *events.EventBus
	logger *slog.Logger
}

func NewService(repo Repository, bus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		bus:    bus,
		logger: logger,
	}
}

// List returns all roles with their granted permissions.
func (s *Service) List(ctx context.Context) ([]*Role, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	for _, r := range roles {
		perms, err := s.repo.GetRolePermissions(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("load role permissions: %w", err)
		}
		r.Permissions = perms
	}
	return roles, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Role, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get role by id: %w", err)
	}
	if r == nil {
		return nil, errors.ErrRoleNotFound
	}

	perms, err := s.repo.GetRolePermissions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}
	r.Permissions = perms
	return r, nil
}

// Create adds a new role with a unique name.
func (s *Service) Create(ctx context.Context, dto CreateRoleDTO, performedBy *int64, meta auth.RequestMetadata) (*Role, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByName(ctx, dto.Name)
	if err != nil {
		return nil, fmt.Errorf("check role name: %w", err)
	}
	if existing != nil {
		return nil, errors.ErrRoleNameTaken
	}

	now := time.Now()
	r := &Role{
		Name:        dto.Name,
		Description: dto.Description,
		Permissions: []Permission{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}

	s.publish(ctx, events.EventTypeRoleCreated, performedBy, meta, fmt.Sprintf("created role %s", r.Name))
	return r, nil
}

// Update renames a role or changes its description.
func (s *Service) Update(ctx context.Context, id int64, dto UpdateRoleDTO, performedBy *int64, meta auth.RequestMetadata) (*Role, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	r, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByName(ctx, dto.Name)
	if err != nil {
		return nil, fmt.Errorf("check role name: %w", err)
	}
	if existing != nil && existing.ID != id {
		return nil, errors.ErrRoleNameTaken
	}

	r.Name = dto.Name
	r.Description = dto.Description
	r.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}

	s.publish(ctx, events.EventTypeRoleUpdated, performedBy, meta, fmt.Sprintf("updated role %s", r.Name))
	return r, nil
}

// Delete removes a role. Seeded roles and roles still assigned to users
// are rejected.
func (s *Service) Delete(ctx context.Context, id int64, performedBy *int64, meta auth.RequestMetadata) error {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get role by id: %w", err)
	}
	if r == nil {
		return errors.ErrRoleNotFound
	}
	if r.IsProtected() {
		return errors.ErrProtectedRole
	}

	assigned, err := s.repo.CountUsers(ctx, id)
	if err != nil {
		return fmt.Errorf("count role users: %w", err)
	}
	if assigned > 0 {
		return errors.ErrRoleInUse
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete role: %w", err)
	}

	s.publish(ctx, events.EventTypeRoleDeleted, performedBy, meta, fmt.Sprintf("deleted role %s", r.Name))
	return nil
}

// ListPermissions returns the full permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return perms, nil
}

// SetPermissions replaces the role's grants with the given permission set.
func (s *Service) SetPermissions(ctx context.Context, id int64, dto SetPermissionsDTO, performedBy *int64, meta auth.RequestMetadata) (*Role, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get role by id: %w", err)
	}
	if r == nil {
		return nil, errors.ErrRoleNotFound
	}

	if len(dto.PermissionIDs) > 0 {
		known, err := s.repo.CountPermissionsByID(ctx, dto.PermissionIDs)
		if err != nil {
			return nil, fmt.Errorf("check permissions: %w", err)
		}
		if known != int64(len(dedupe(dto.PermissionIDs))) {
			return nil, errors.NewValidationError("Unknown permission id", errors.ErrCodeValidationFailed)
		}
	}

	if err := s.repo.ReplacePermissions(ctx, id, dedupe(dto.PermissionIDs)); err != nil {
		return nil, fmt.Errorf("replace permissions: %w", err)
	}

	s.publish(ctx, events.EventTypeRoleUpdated, performedBy, meta, fmt.Sprintf("replaced permissions of role %s", r.Name))
	return s.GetByID(ctx, id)
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) publish(ctx context.Context, eventType string, performedBy *int64, meta auth.RequestMetadata, details string) {
	if s.bus == nil {
		return
	}
	ev := events.NewSecurityEvent(eventType, nil, performedBy, meta.IPAddress, meta.UserAgent, details)
	if err := s.bus.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Error("failed to publish audit event", "event_type", eventType, "error", err)
	}
}
