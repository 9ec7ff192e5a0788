package permission

import (
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "taskboard/pkg/domain-errors"
)

type PermissionSuite struct {
	suite.Suite
}

func TestPermissionSuite(t *testing.T) {
	suite.Run(t, new(PermissionSuite))
}

func (s *PermissionSuite) TestForComment() {
	s.Run("returns exactly three grants scoped to the author", func() {
		grants := ForComment("user-42")
		s.Require().Len(grants, 3)
		s.Equal(Grant{Action: ActionRead, Role: RoleUsers}, grants[0])
		s.Equal(Grant{Action: ActionUpdate, Role: "user:user-42"}, grants[1])
		s.Equal(Grant{Action: ActionDelete, Role: "user:user-42"}, grants[2])
	})

	s.Run("renders store strings", func() {
		s.Equal([]string{`read("users")`, `update("user:u1")`, `delete("user:u1")`}, Strings(ForComment("u1")))
	})
}

func (s *PermissionSuite) TestForDocument() {
	s.Equal(ForComment("u1"), ForDocument(KindComment, "u1"))
	s.Empty(ForDocument(KindTask, "u1"))
	s.Empty(ForDocument(KindProject, "u1"))
}

func (s *PermissionSuite) TestParseGrant() {
	s.Run("round trips every grant form", func() {
		for _, g := range []Grant{
			{Action: ActionRead, Role: RoleUsers},
			{Action: ActionUpdate, Role: RoleUser("abc")},
			{Action: ActionDelete, Role: RoleTeam("admin")},
		} {
			parsed, err := ParseGrant(g.String())
			s.Require().NoError(err)
			s.Equal(g, parsed)
		}
	})

	s.Run("rejects unknown actions and roles", func() {
		for _, raw := range []string{`write("users")`, `read("anyone")`, `read(users)`, ``} {
			_, err := ParseGrant(raw)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), raw)
		}
	})
}

func (s *PermissionSuite) TestAllows() {
	author := Principal{UserID: "author"}
	other := Principal{UserID: "other"}
	grants := ForComment("author")

	s.Run("any authenticated user may read a comment", func() {
		s.True(Allows(grants, ActionRead, author))
		s.True(Allows(grants, ActionRead, other))
	})

	s.Run("only the author may update or delete", func() {
		s.True(Allows(grants, ActionUpdate, author))
		s.True(Allows(grants, ActionDelete, author))
		s.False(Allows(grants, ActionUpdate, other))
		s.False(Allows(grants, ActionDelete, other))
	})

	s.Run("empty grants fall back to authenticated default", func() {
		s.True(Allows(nil, ActionUpdate, other))
		s.False(Allows(nil, ActionRead, Principal{}))
	})

	s.Run("elevated principal bypasses grants", func() {
		s.True(Allows(grants, ActionDelete, Principal{Elevated: true}))
	})

	s.Run("team grants match team members", func() {
		teamGrants := []Grant{{Action: ActionUpdate, Role: RoleTeam("admin")}}
		s.True(Allows(teamGrants, ActionUpdate, Principal{UserID: "x", Teams: []string{"admin"}}))
		s.False(Allows(teamGrants, ActionUpdate, other))
	})
}

func (s *PermissionSuite) TestReadRoles() {
	s.Equal([]string{`read("users")`, `read("user:42")`}, ReadRoles(Principal{UserID: "42"}))
	s.Empty(ReadRoles(Principal{}))
}
