package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/rbac-admin/internal/audit"
)

// Repository is the sqlx-backed append-only adapter for user_logs.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type logRow struct {
	ID          int64     `db:"id"`
	UserID      *int64    `db:"user_id"`
	Action      string    `db:"action"`
	PerformedBy *int64    `db:"performed_by"`
	IPAddress   *string   `db:"ip_address"`
	UserAgent   *string   `db:"user_agent"`
	Details     *string   `db:"details"`
	Timestamp   time.Time `db:"timestamp"`
}

func (r *Repository) Append(ctx context.Context, e *audit.Entry) error {
	query := `INSERT INTO user_logs (user_id, action, performed_by, ip_address, user_agent, details, timestamp)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`

	return r.db.QueryRowContext(ctx, query,
		e.UserID, e.Action, e.PerformedBy,
		nullable(e.IPAddress), nullable(e.UserAgent), nullable(e.Details),
		e.Timestamp,
	).Scan(&e.ID)
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]audit.Entry, error) {
	query := `SELECT id, user_id, action, performed_by, ip_address, user_agent, details, timestamp
	          FROM user_logs
	          ORDER BY timestamp DESC
	          LIMIT $1 OFFSET $2`

	var rows []logRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, err
	}
	return toEntries(rows), nil
}

func (r *Repository) ListForUser(ctx context.Context, userID int64, limit int) ([]audit.Entry, error) {
	query := `SELECT id, user_id, action, performed_by, ip_address, user_agent, details, timestamp
	          FROM user_logs
	          WHERE user_id = $1
	          ORDER BY timestamp DESC
	          LIMIT $2`

	var rows []logRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, err
	}
	return toEntries(rows), nil
}

func toEntries(rows []logRow) []audit.Entry {
	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		e := audit.Entry{
			ID:          row.ID,
			UserID:      row.UserID,
			Action:      row.Action,
			PerformedBy: row.PerformedBy,
			Timestamp:   row.Timestamp,
		}
		if row.IPAddress != nil {
			e.IPAddress = *row.IPAddress
		}
		if row.UserAgent != nil {
			e.UserAgent = *row.UserAgent
		}
		if row.Details != nil {
			e.Details = *row.Details
		}
		entries = append(entries, e)
	}
	return entries
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
