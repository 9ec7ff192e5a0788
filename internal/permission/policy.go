package permission

// Kind is the document kind a policy is computed for.
type Kind string

const (
	KindProject Kind = "project"
	KindTask    Kind = "task"
	KindComment Kind = "comment"
)

// ForComment returns the grants attached to a new comment: any authenticated
// user may read it, only its creator may update or delete it.
func ForComment(currentUserID string) []Grant {
	return []Grant{
		{Action: ActionRead, Role: RoleUsers},
		{Action: ActionUpdate, Role: RoleUser(currentUserID)},
		{Action: ActionDelete, Role: RoleUser(currentUserID)},
	}
}

// ForDocument is the single policy entry point used by every write path.
// Projects and tasks carry no explicit grants and fall back to collection defaults.
func ForDocument(kind Kind, currentUserID string) []Grant {
	switch kind {
	case KindComment:
		return ForComment(currentUserID)
	default:
		return nil
	}
}
