package service

import (
	"time"

	"taskboard/internal/identity/models"
	"taskboard/internal/identity/token"
)

// SignerAdapter exposes a token.Signer through the TokenSigner port.
type SignerAdapter struct {
	signer *token.Signer
}

func NewSignerAdapter(signer *token.Signer) *SignerAdapter {
	return &SignerAdapter{signer: signer}
}

func (a *SignerAdapter) Issue(userID, sessionID string, now, expiresAt time.Time) (string, error) {
	return a.signer.Issue(userID, sessionID, now, expiresAt)
}

func (a *SignerAdapter) Verify(raw string) (*models.TokenClaims, error) {
	claims, err := a.signer.Verify(raw)
	if err != nil {
		return nil, err
	}
	return &models.TokenClaims{UserID: claims.UserID, SessionID: claims.SessionID}, nil
}
