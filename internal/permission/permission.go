// Package permission computes and evaluates the grant lists attached to documents.
//
// A grant pairs an action with a role. Grants are fixed when a document is
// created and stored alongside it in their string form, e.g. read("users").
package permission

import (
	"fmt"
	"regexp"
	"strings"

	dErrors "taskboard/pkg/domain-errors"
	pstrings "taskboard/pkg/platform/strings"
)

// Action is an operation a grant permits.
type Action string

const (
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionRead, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Role names who a grant applies to.
type Role string

// RoleUsers matches any authenticated user.
const RoleUsers Role = "users"

// RoleUser matches exactly one user.
func RoleUser(userID string) Role {
	return Role("user:" + userID)
}

// RoleTeam matches members of a named team. No policy issues team grants yet.
func RoleTeam(name string) Role {
	return Role("team:" + name)
}

// Grant is a single (action, role) pair.
type Grant struct {
	Action Action
	Role   Role
}

func (g Grant) String() string {
	return fmt.Sprintf("%s(%q)", g.Action, string(g.Role))
}

var grantPattern = regexp.MustCompile(`^([a-z]+)\("([^"]+)"\)$`)

// ParseGrant parses the string form produced by Grant.String.
func ParseGrant(raw string) (Grant, error) {
	m := grantPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Grant{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("malformed grant %q", raw))
	}
	action := Action(m[1])
	if !action.IsValid() {
		return Grant{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown action %q", m[1]))
	}
	role := Role(m[2])
	if role != RoleUsers && !strings.HasPrefix(m[2], "user:") && !strings.HasPrefix(m[2], "team:") {
		return Grant{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown role %q", m[2]))
	}
	return Grant{Action: action, Role: role}, nil
}

// Strings renders grants for storage, dropping duplicates.
func Strings(grants []Grant) []string {
	out := make([]string, 0, len(grants))
	for _, g := range grants {
		out = append(out, g.String())
	}
	return pstrings.DedupeAndTrim(out)
}

// ParseAll parses stored grant strings. Unparseable entries are rejected as a whole.
func ParseAll(raw []string) ([]Grant, error) {
	raw = pstrings.DedupeAndTrim(raw)
	grants := make([]Grant, 0, len(raw))
	for _, r := range raw {
		g, err := ParseGrant(r)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, nil
}

// Principal is the identity a grant is evaluated against.
type Principal struct {
	UserID   string
	Teams    []string
	Elevated bool
}

// Roles lists every role the principal holds.
func (p Principal) Roles() []Role {
	if p.UserID == "" {
		return nil
	}
	roles := []Role{RoleUsers, RoleUser(p.UserID)}
	for _, t := range p.Teams {
		roles = append(roles, RoleTeam(t))
	}
	return roles
}

// Allows reports whether grants permit action for principal.
// Elevated principals are always allowed. An empty grant list means the
// collection default applies: any authenticated user may act.
func Allows(grants []Grant, action Action, p Principal) bool {
	if p.Elevated {
		return true
	}
	if p.UserID == "" {
		return false
	}
	if len(grants) == 0 {
		return true
	}
	for _, g := range grants {
		if g.Action != action {
			continue
		}
		for _, r := range p.Roles() {
			if g.Role == r {
				return true
			}
		}
	}
	return false
}

// ReadRoles returns the stored grant strings that admit p for reads.
// Stores use it to scope queries without decoding every row.
func ReadRoles(p Principal) []string {
	roles := p.Roles()
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, Grant{Action: ActionRead, Role: r}.String())
	}
	return out
}
