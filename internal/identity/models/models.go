package models

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	"taskboard/internal/permission"
	dErrors "taskboard/pkg/domain-errors"
)

// MinPasswordLength mirrors the account store's password policy.
const MinPasswordLength = 8

// User is an identity subject. PasswordHash never leaves the identity stores.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUser validates account fields and builds a User.
func NewUser(id, name, email, passwordHash string, now time.Time) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "name is required")
	}
	if !govalidator.IsEmail(email) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid email")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash is required")
	}
	return &User{ID: id, Name: name, Email: email, PasswordHash: passwordHash, CreatedAt: now}, nil
}

// SessionStatus is the lifecycle state of a password session.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusRevoked SessionStatus = "revoked"
)

// Session is a password session created by sign-in.
type Session struct {
	ID         string        `json:"id" cbor:"1,keyasint"`
	UserID     string        `json:"user_id" cbor:"2,keyasint"`
	Status     SessionStatus `json:"status" cbor:"3,keyasint"`
	DeviceName string        `json:"device_name" cbor:"4,keyasint"`
	ClientIP   string        `json:"client_ip,omitempty" cbor:"5,keyasint,omitempty"`
	CreatedAt  time.Time     `json:"created_at" cbor:"6,keyasint"`
	ExpiresAt  time.Time     `json:"expires_at" cbor:"7,keyasint"`
	RevokedAt  *time.Time    `json:"revoked_at,omitempty" cbor:"8,keyasint,omitempty"`
}

// IsActiveAt reports whether the session can authorize requests at now.
func (s *Session) IsActiveAt(now time.Time) bool {
	return s.Status == SessionStatusActive && now.Before(s.ExpiresAt)
}

// CanRevoke rejects revoking an already revoked session.
func (s *Session) CanRevoke() error {
	if s.Status == SessionStatusRevoked {
		return dErrors.New(dErrors.CodeInvariantViolation, "session already revoked")
	}
	return nil
}

// ApplyRevocation marks the session revoked. Call CanRevoke first.
func (s *Session) ApplyRevocation(now time.Time) {
	s.Status = SessionStatusRevoked
	s.RevokedAt = &now
}

// SessionToken is the opaque credential handed to the caller after sign-in.
type SessionToken struct {
	Value     string    `json:"-"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenClaims is the subset of verified token claims the gateway relies on.
type TokenClaims struct {
	UserID    string
	SessionID string
}

// Handle carries the rights of one caller for one request. Elevated handles
// hold the admin key and act outside any user's grants; session handles act
// as exactly one user.
type Handle struct {
	userID    string
	sessionID string
	elevated  bool
}

// NewElevatedHandle returns a handle with administrative rights.
func NewElevatedHandle() *Handle {
	return &Handle{elevated: true}
}

// NewSessionHandle returns a handle scoped to one session's subject.
func NewSessionHandle(userID, sessionID string) *Handle {
	return &Handle{userID: userID, sessionID: sessionID}
}

func (h *Handle) UserID() string    { return h.userID }
func (h *Handle) SessionID() string { return h.sessionID }
func (h *Handle) IsElevated() bool  { return h.elevated }

// Principal converts the handle for grant evaluation.
func (h *Handle) Principal() permission.Principal {
	if h == nil {
		return permission.Principal{}
	}
	return permission.Principal{UserID: h.userID, Elevated: h.elevated}
}

// Valid reports whether the handle may reach a store at all.
func (h *Handle) Valid() bool {
	return h != nil && (h.elevated || (h.userID != "" && h.sessionID != ""))
}
