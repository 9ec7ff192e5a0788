// Package validation schema-checks externally supplied form data.
package validation

import (
	"fmt"

	"github.com/asaskevich/govalidator"

	dErrors "taskboard/pkg/domain-errors"
)

// Form field names accepted for comment creation.
const (
	FieldTaskID      = "taskId"
	FieldCommentText = "comment_text"
	FieldAuthorID    = "author_id"
	FieldAuthorName  = "author_name"
)

const (
	CommentMinLength = 10
	CommentMaxLength = 1000
)

// ValidatedComment holds comment form fields that passed the schema.
type ValidatedComment struct {
	TaskID      string
	CommentText string
	AuthorID    string
	AuthorName  string
}

// ValidateComment checks raw form fields against the comment schema.
// Every field must be present; comment_text must be 10 to 1000 characters.
// Values are returned unchanged on success. On failure the error carries one
// violation per offending field.
func ValidateComment(raw map[string]string) (ValidatedComment, error) {
	var violations []dErrors.FieldViolation
	required := func(field string) string {
		v, ok := raw[field]
		if !ok {
			violations = append(violations, dErrors.FieldViolation{Field: field, Message: "is required"})
		}
		return v
	}

	out := ValidatedComment{
		TaskID:      required(FieldTaskID),
		CommentText: required(FieldCommentText),
		AuthorID:    required(FieldAuthorID),
		AuthorName:  required(FieldAuthorName),
	}

	if _, ok := raw[FieldCommentText]; ok {
		if !govalidator.StringLength(out.CommentText, fmt.Sprint(CommentMinLength), fmt.Sprint(CommentMaxLength)) {
			violations = append(violations, dErrors.FieldViolation{
				Field:   FieldCommentText,
				Message: fmt.Sprintf("must be between %d and %d characters", CommentMinLength, CommentMaxLength),
			})
		}
	}

	if len(violations) > 0 {
		return ValidatedComment{}, dErrors.NewValidation("invalid comment", violations...)
	}
	return out, nil
}
