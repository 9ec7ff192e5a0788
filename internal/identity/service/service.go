// Package service implements the identity gateway: account creation, password
// sessions, and the handles every other component acts through.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/audit"
	"taskboard/internal/identity/device"
	"taskboard/internal/identity/models"
	"taskboard/internal/identity/secrets"
	"taskboard/internal/platform/metrics"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/sentinel"
	"taskboard/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Execute(ctx context.Context, id string, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error)
}

type TokenSigner interface {
	Issue(userID, sessionID string, now, expiresAt time.Time) (string, error)
	Verify(raw string) (*models.TokenClaims, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service is the identity gateway.
type Service struct {
	users          UserStore
	sessions       SessionStore
	tokens         TokenSigner
	adminKey       string
	sessionTTL     time.Duration
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSessionTTL overrides the default session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func New(users UserStore, sessions SessionStore, tokens TokenSigner, adminKey string, opts ...Option) *Service {
	s := &Service{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		adminKey:   adminKey,
		sessionTTL: 365 * 24 * time.Hour,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateElevatedHandle returns a handle carrying the admin key. Only account
// creation, session creation and admin seeding use it.
func (s *Service) CreateElevatedHandle() *models.Handle {
	return models.NewElevatedHandle()
}

// CreateSessionHandle resolves a session token into a handle scoped to its
// user. An absent, empty, invalid, unknown, expired or revoked token yields
// CodeNoSession; an empty token fails before any store call.
func (s *Service) CreateSessionHandle(ctx context.Context, token string) (*models.Handle, error) {
	if strings.TrimSpace(token) == "" {
		return nil, dErrors.New(dErrors.CodeNoSession, "No session")
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNoSession, "No session")
	}
	sess, err := s.sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNoSession, "No session")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStore, "failed to load session")
	}
	if sess.UserID != claims.UserID || !sess.IsActiveAt(requestcontext.Now(ctx)) {
		return nil, dErrors.New(dErrors.CodeNoSession, "No session")
	}
	return models.NewSessionHandle(sess.UserID, sess.ID), nil
}

// SignIn verifies credentials and opens a password session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*models.SessionToken, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.authFailure(ctx, "unknown_email")
			return nil, dErrors.New(dErrors.CodeAuthentication, "Invalid credentials. Please check the email and password.")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeAuthentication, "failed to load account")
	}
	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		s.authFailure(ctx, "bad_password", "user_id", user.ID)
		return nil, dErrors.New(dErrors.CodeAuthentication, "Invalid credentials. Please check the email and password.")
	}
	return s.openSession(ctx, user)
}

// SignUp creates an account with the elevated handle, then signs in.
// A failure after the account exists leaves the account in place; it is
// logged as orphaned rather than rolled back.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (*models.SessionToken, error) {
	user, err := s.createUser(ctx, s.CreateElevatedHandle(), name, email, password)
	if err != nil {
		return nil, err
	}

	tok, err := s.openSession(ctx, user)
	if err != nil {
		s.logger.ErrorContext(ctx, "account created but session could not be established",
			"user_id", user.ID,
			"error", err,
		)
		s.logAudit(ctx, audit.EventSignUpOrphaned, "user_id", user.ID, "reason", "session_failed")
		return nil, err
	}
	return tok, nil
}

func (s *Service) createUser(ctx context.Context, h *models.Handle, name, email, password string) (*models.User, error) {
	if !h.IsElevated() {
		return nil, dErrors.New(dErrors.CodeForbidden, "account creation requires an elevated handle")
	}
	if len(password) < models.MinPasswordLength {
		return nil, dErrors.New(dErrors.CodeAuthentication, "Password must be at least 8 characters.")
	}
	hash, err := secrets.Hash(password)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAuthentication, "could not create account")
	}
	user, err := models.NewUser(uuid.NewString(), name, email, hash, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAuthentication, "could not create account")
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeAuthentication, "A user with the same email already exists.")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeAuthentication, "could not create account")
	}
	s.logAudit(ctx, audit.EventUserCreated, "user_id", user.ID)
	s.metrics.IncrementUsersCreated()
	return user, nil
}

func (s *Service) openSession(ctx context.Context, user *models.User) (*models.SessionToken, error) {
	now := requestcontext.Now(ctx)
	sess := &models.Session{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		Status:     models.SessionStatusActive,
		DeviceName: device.ParseUserAgent(requestcontext.UserAgent(ctx)),
		ClientIP:   requestcontext.ClientIP(ctx),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAuthentication, "could not create session")
	}
	raw, err := s.tokens.Issue(user.ID, sess.ID, now, sess.ExpiresAt)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAuthentication, "could not create session")
	}
	s.logAudit(ctx, audit.EventSessionCreated,
		"user_id", user.ID,
		"session_id", sess.ID,
		"device", sess.DeviceName,
	)
	s.metrics.IncrementSessionsCreated()
	return &models.SessionToken{Value: raw, SessionID: sess.ID, ExpiresAt: sess.ExpiresAt}, nil
}

// SignOut revokes the current session. It never fails: store errors are
// logged and the caller clears the cookie regardless.
func (s *Service) SignOut(ctx context.Context, token string) {
	h, err := s.CreateSessionHandle(ctx, token)
	if err != nil {
		s.logger.InfoContext(ctx, "sign-out without an active session", "error", err)
		return
	}
	now := requestcontext.Now(ctx)
	var alreadyRevoked bool
	_, err = s.sessions.Execute(ctx, h.SessionID(),
		func(sess *models.Session) error {
			if sess.CanRevoke() != nil {
				alreadyRevoked = true
			}
			return nil
		},
		func(sess *models.Session) {
			if !alreadyRevoked {
				sess.ApplyRevocation(now)
			}
		},
	)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to revoke session on sign-out",
			"session_id", h.SessionID(),
			"error", err,
		)
		return
	}
	if alreadyRevoked {
		return
	}
	s.logAudit(ctx, audit.EventSessionRevoked, "user_id", h.UserID(), "session_id", h.SessionID())
	s.metrics.IncrementSessionsRevoked()
}

// GetCurrentUser returns the token's user, or nil on any failure.
func (s *Service) GetCurrentUser(ctx context.Context, token string) *models.User {
	h, err := s.CreateSessionHandle(ctx, token)
	if err != nil {
		return nil
	}
	user, err := s.ResolveUser(ctx, h)
	if err != nil {
		s.logger.DebugContext(ctx, "current user lookup failed", "error", err)
		return nil
	}
	return user
}

// ResolveUser re-reads the handle's subject from the user store.
func (s *Service) ResolveUser(ctx context.Context, h *models.Handle) (*models.User, error) {
	if !h.Valid() || h.IsElevated() {
		return nil, dErrors.New(dErrors.CodeNoSession, "No session")
	}
	user, err := s.users.FindByID(ctx, h.UserID())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNoSession, "session user no longer exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStore, "failed to load user")
	}
	return user, nil
}

// AdminKey exposes the configured key for elevated transports.
func (s *Service) AdminKey() string {
	return s.adminKey
}

func (s *Service) authFailure(ctx context.Context, reason string, attrs ...any) {
	s.metrics.IncrementAuthFailure(reason)
	s.logAudit(ctx, audit.EventAuthFailed, append(attrs, "reason", reason)...)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attrs ...any) {
	var emitter audit.Emitter
	if s.auditPublisher != nil {
		emitter = s.auditPublisher
	}
	audit.Log(ctx, s.logger, emitter, event, attrs...)
}
