package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeLogin          = "auth.login"
	EventTypeLoginFailed    = "auth.login_failed"
	EventTypeLogout         = "auth.logout"
	EventTypeTokenRefreshed = "auth.token_refreshed"
	EventTypeUserCreated    = "user.created"
	EventTypeUserUpdated    = "user.updated"
	EventTypeUserDeleted    = "user.deleted"
	EventTypeProfileUpdated = "user.profile_updated"
	EventTypeRoleCreated    = "role.created"
	EventTypeRoleUpdated    = "role.updated"
	EventTypeRoleDeleted    = "role.deleted"
)

// SecurityEvent carries the subject, actor and request metadata of a
// security-relevant action so the audit sink can persist it.
type SecurityEvent struct {
	BaseEvent
	SubjectUserID *int64 `json:"subject_user_id,omitempty"`
	PerformedBy   *int64 `json:"performed_by,omitempty"`
	IPAddress     string `json:"ip_address,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	Details       string `json:"details,omitempty"`
}

func NewSecurityEvent(eventType string, subjectUserID, performedBy *int64, ipAddress, userAgent, details string) *SecurityEvent {
	return &SecurityEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"subject_user_id": subjectUserID,
				"performed_by":    performedBy,
				"ip_address":      ipAddress,
				"details":         details,
			},
		},
		SubjectUserID: subjectUserID,
		PerformedBy:   performedBy,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		Details:       details,
	}
}
