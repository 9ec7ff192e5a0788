// Package token signs and verifies session tokens.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "taskboard/pkg/domain-errors"
)

// Claims binds a token to one session of one user.
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Signer issues HS256 session tokens for a single project.
type Signer struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewSigner(signingKey, projectID string) *Signer {
	return &Signer{
		signingKey: []byte(signingKey),
		issuer:     projectID,
		audience:   projectID,
	}
}

// Issue signs a token for sessionID valid until expiresAt.
func (s *Signer) Issue(userID, sessionID string, now, expiresAt time.Time) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	signed, err := tok.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token")
	}
	return signed, nil
}

// Verify checks signature, issuer, audience and expiry.
func (s *Signer) Verify(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeNoSession, "session has expired")
		}
		return nil, dErrors.New(dErrors.CodeNoSession, "invalid session token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" || claims.SessionID == "" {
		return nil, dErrors.New(dErrors.CodeNoSession, "invalid session claims")
	}
	return claims, nil
}
