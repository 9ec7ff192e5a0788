// Package workflow defines task statuses and the transitions between them.
package workflow

import (
	"fmt"
	"strings"

	dErrors "taskboard/pkg/domain-errors"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusToDo       Status = "to-do"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists every valid status in display order.
func Statuses() []Status {
	return []Status{StatusToDo, StatusInProgress, StatusCompleted}
}

func (s Status) IsValid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus validates raw against the closed status set.
// An empty value defaults to to-do.
func ParseStatus(raw string) (Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StatusToDo, nil
	}
	s := Status(raw)
	if !s.IsValid() {
		return "", dErrors.NewValidation("invalid task status", dErrors.FieldViolation{
			Field:   "status",
			Message: fmt.Sprintf("must be one of to-do, in-progress, completed; got %q", raw),
		})
	}
	return s, nil
}

// CanTransition reports whether from may move to to. Every pair of valid
// statuses is allowed, including self-transitions; there is no terminal state.
func CanTransition(from, to Status) error {
	if !to.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid task status %q", to))
	}
	if from != "" && !from.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("task has unknown status %q", from))
	}
	return nil
}
