package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "taskboard/pkg/domain-errors"
)

type SignerSuite struct {
	suite.Suite
	signer *Signer
}

func TestSignerSuite(t *testing.T) {
	suite.Run(t, new(SignerSuite))
}

func (s *SignerSuite) SetupTest() {
	s.signer = NewSigner("0123456789abcdef0123456789abcdef", "taskboard")
}

func (s *SignerSuite) TestRoundTrip() {
	now := time.Now()
	raw, err := s.signer.Issue("user-1", "session-1", now, now.Add(time.Hour))
	s.Require().NoError(err)

	claims, err := s.signer.Verify(raw)
	s.Require().NoError(err)
	s.Equal("user-1", claims.UserID)
	s.Equal("session-1", claims.SessionID)
	s.NotEmpty(claims.ID)
}

func (s *SignerSuite) TestRejections() {
	now := time.Now()

	s.Run("expired token", func() {
		raw, err := s.signer.Issue("u", "s", now.Add(-2*time.Hour), now.Add(-time.Hour))
		s.Require().NoError(err)
		_, err = s.signer.Verify(raw)
		s.True(dErrors.HasCode(err, dErrors.CodeNoSession))
	})

	s.Run("token from another project", func() {
		other := NewSigner("0123456789abcdef0123456789abcdef", "other-project")
		raw, err := other.Issue("u", "s", now, now.Add(time.Hour))
		s.Require().NoError(err)
		_, err = s.signer.Verify(raw)
		s.True(dErrors.HasCode(err, dErrors.CodeNoSession))
	})

	s.Run("token signed with another key", func() {
		other := NewSigner("ffffffffffffffffffffffffffffffff", "taskboard")
		raw, err := other.Issue("u", "s", now, now.Add(time.Hour))
		s.Require().NoError(err)
		_, err = s.signer.Verify(raw)
		s.True(dErrors.HasCode(err, dErrors.CodeNoSession))
	})

	s.Run("garbage", func() {
		_, err := s.signer.Verify("not-a-token")
		s.True(dErrors.HasCode(err, dErrors.CodeNoSession))
	})
}
