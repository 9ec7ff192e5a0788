package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
	UserID     string    `json:"user_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	ResourceID string    `json:"resource_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

type AuditEvent string

const (
	EventUserCreated       AuditEvent = "user_created"
	EventSignUpOrphaned    AuditEvent = "sign_up_orphaned"
	EventSessionCreated    AuditEvent = "session_created"
	EventSessionRevoked    AuditEvent = "session_revoked"
	EventAuthFailed        AuditEvent = "auth_failed"
	EventProjectCreated    AuditEvent = "project_created"
	EventTaskCreated       AuditEvent = "task_created"
	EventTaskStatusChanged AuditEvent = "task_status_changed"
	EventCommentCreated    AuditEvent = "comment_created"
	EventFileUploaded      AuditEvent = "file_uploaded"
	EventFileDeleted       AuditEvent = "file_deleted"
)
