// Package store holds the document store backends. Both enforce the same
// contract: reads are scoped to documents the principal may read, updates
// require an update grant, and every query value is validated before use.
package store

import (
	"encoding/json"
	"fmt"
	"regexp"

	"taskboard/internal/documents/models"
	"taskboard/internal/permission"
	"taskboard/pkg/platform/sentinel"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)

func validateFilters(filters []models.Filter) error {
	for _, f := range filters {
		if !fieldPattern.MatchString(f.Field) || !models.ValidID(f.Value) {
			return fmt.Errorf("%w: %s=%q", sentinel.ErrInvalidQuery, f.Field, f.Value)
		}
	}
	return nil
}

func validateKey(collectionID, id string) error {
	if !models.ValidID(collectionID) || !models.ValidID(id) {
		return fmt.Errorf("%w: %s/%s", sentinel.ErrInvalidQuery, collectionID, id)
	}
	return nil
}

func authenticated(p permission.Principal) bool {
	return p.Elevated || p.UserID != ""
}

func allows(doc *models.Document, action permission.Action, p permission.Principal) (bool, error) {
	grants, err := permission.ParseAll(doc.Permissions)
	if err != nil {
		return false, fmt.Errorf("%w: document %s carries invalid grants: %v", sentinel.ErrInvalidState, doc.ID, err)
	}
	return permission.Allows(grants, action, p), nil
}

// mergeData applies a shallow patch to a JSON object.
func mergeData(data json.RawMessage, patch map[string]any) (json.RawMessage, error) {
	obj := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("decode document data: %w", err)
		}
	}
	for k, v := range patch {
		obj[k] = v
	}
	return json.Marshal(obj)
}

func validatePatch(patch map[string]any) error {
	for k := range patch {
		if !fieldPattern.MatchString(k) {
			return fmt.Errorf("%w: patch field %q", sentinel.ErrInvalidQuery, k)
		}
	}
	return nil
}

func matches(doc *models.Document, filters []models.Filter) bool {
	if len(filters) == 0 {
		return true
	}
	var obj map[string]any
	if err := json.Unmarshal(doc.Data, &obj); err != nil {
		return false
	}
	for _, f := range filters {
		v, ok := obj[f.Field].(string)
		if !ok || v != f.Value {
			return false
		}
	}
	return true
}
