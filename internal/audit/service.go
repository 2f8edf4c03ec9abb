package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/rbac-admin/internal/core/events"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Service is the audit log sink. Writes are best-effort: failures are
// logged for operators and swallowed, never surfaced to the triggering
// operation.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Record appends one entry. It never returns an error to the caller.
func (s *Service) Record(ctx context.Context, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	if err := s.repo.Append(ctx, &e); err != nil {
		s.logger.Error("audit write failed",
			"action", e.Action,
			"subject_user_id", e.UserID,
			"error", err)
	}
}

// HandleSecurityEvent is the event-bus subscription point. It adapts a
// published security event into an audit row. Always returns nil: audit
// degradation must not fail the publisher.
func (s *Service) HandleSecurityEvent(ctx context.Context, ev events.Event) error {
	sec, ok := ev.(*events.SecurityEvent)
	if !ok {
		s.logger.Warn("audit sink received unexpected event payload", "event_type", ev.EventType())
		return nil
	}

	s.Record(ctx, Entry{
		UserID:      sec.SubjectUserID,
		Action:      actionForEventType(sec.EventType()),
		PerformedBy: sec.PerformedBy,
		IPAddress:   sec.IPAddress,
		UserAgent:   sec.UserAgent,
		Details:     sec.Details,
		Timestamp:   sec.OccurredAt(),
	})
	return nil
}

// Subscribe registers the sink for every security event type.
func (s *Service) Subscribe(bus *events.EventBus) {
	for _, eventType := range []string{
		events.EventTypeLogin,
		events.EventTypeLoginFailed,
		events.EventTypeLogout,
		events.EventTypeTokenRefreshed,
		events.EventTypeUserCreated,
		events.EventTypeUserUpdated,
		events.EventTypeUserDeleted,
		events.EventTypeProfileUpdated,
		events.EventTypeRoleCreated,
		events.EventTypeRoleUpdated,
		events.EventTypeRoleDeleted,
	} {
		bus.Subscribe(eventType, s.HandleSecurityEvent)
	}
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	entries, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

func (s *Service) ListForUser(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	entries, err := s.repo.ListForUser(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list audit entries for user: %w", err)
	}
	return entries, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// actionForEventType strips the subsystem prefix so stored actions read
// like the original log tags: login, login_failed, user.created stays
// namespaced per subsystem except auth which predates the convention.
func actionForEventType(eventType string) string {
	switch eventType {
	case events.EventTypeLogin:
		return "login"
	case events.EventTypeLoginFailed:
		return "login_failed"
	case events.EventTypeLogout:
		return "logout"
	case events.EventTypeTokenRefreshed:
		return "token_refreshed"
	default:
		return eventType
	}
}
