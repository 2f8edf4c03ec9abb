package audit

import (
	"context"
	"time"
)

// Entry is one immutable audit record. The application only ever appends;
// rows are never updated or deleted.
type Entry struct {
	ID          int64     `json:"id"`
	UserID      *int64    `json:"user_id,omitempty"`
	Action      string    `json:"action"`
	PerformedBy *int64    `json:"performed_by,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Details     string    `json:"details,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// RepositoryAPI persists and reads audit entries.
type RepositoryAPI interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, limit, offset int) ([]Entry, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]Entry, error)
}

// ServiceAPI is the audit surface consumed by handlers and event wiring.
type ServiceAPI interface {
	Record(ctx context.Context, e Entry)
	List(ctx context.Context, limit, offset int) ([]Entry, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]Entry, error)
}
