// Package models defines the documents the tracker stores: projects, tasks
// and comments, plus the generic envelope every store backend persists.
package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"taskboard/internal/workflow"
)

// Document is the store envelope. Data holds the kind-specific attributes as JSON.
type Document struct {
	ID           string          `json:"id"`
	CollectionID string          `json:"collectionId"`
	DatabaseID   string          `json:"databaseId"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Permissions  []string        `json:"permissions"`
	Version      int64           `json:"version"`
	Data         json.RawMessage `json:"data"`
}

// Meta is the store metadata surfaced on every typed document.
type Meta struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collectionId"`
	DatabaseID   string    `json:"databaseId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Permissions  []string  `json:"permissions"`
	Version      int64     `json:"version"`
}

func (d *Document) Meta() Meta {
	return Meta{
		ID:           d.ID,
		CollectionID: d.CollectionID,
		DatabaseID:   d.DatabaseID,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		Permissions:  append([]string(nil), d.Permissions...),
		Version:      d.Version,
	}
}

// Clone returns a deep copy so stores never hand out shared slices.
func (d *Document) Clone() *Document {
	cp := *d
	cp.Permissions = append([]string(nil), d.Permissions...)
	cp.Data = append(json.RawMessage(nil), d.Data...)
	return &cp
}

type Project struct {
	Meta
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Task struct {
	Meta
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Status      workflow.Status `json:"status"`
	ProjectID   string          `json:"projectId"`
}

type Comment struct {
	Meta
	CommentText string `json:"commentText"`
	AuthorID    string `json:"authorId"`
	AuthorName  string `json:"authorName"`
	TaskID      string `json:"taskId"`
}

type projectData struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type taskData struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Status      workflow.Status `json:"status"`
	ProjectID   string          `json:"projectId"`
}

type commentData struct {
	CommentText string `json:"commentText"`
	AuthorID    string `json:"authorId"`
	AuthorName  string `json:"authorName"`
	TaskID      string `json:"taskId"`
}

// Field names used in store filters and patches.
const (
	FieldProjectID = "projectId"
	FieldTaskID    = "taskId"
	FieldStatus    = "status"
)

// ProjectInput is the caller-supplied part of a new project.
type ProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TaskInput is the caller-supplied part of a new task. An empty Status means to-do.
type TaskInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// CommentInput is raw comment form data. Identity fields are informational;
// permissions are always derived from the session.
type CommentInput struct {
	TaskID      string `json:"taskId"`
	CommentText string `json:"comment_text"`
	AuthorID    string `json:"author_id"`
	AuthorName  string `json:"author_name"`
}

// Filter is an equality condition on a data attribute.
type Filter struct {
	Field string
	Value string
}

// Equal builds an equality filter.
func Equal(field, value string) Filter {
	return Filter{Field: field, Value: value}
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,35}$`)

// ValidID reports whether id is usable as a document id or query value:
// 1-36 characters from [A-Za-z0-9._-], not starting with a special character.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

func EncodeProject(in ProjectInput) (json.RawMessage, error) {
	return json.Marshal(projectData{Name: in.Name, Description: in.Description})
}

func EncodeTask(in TaskInput, status workflow.Status, projectID string) (json.RawMessage, error) {
	return json.Marshal(taskData{
		Name:        in.Name,
		Description: in.Description,
		Status:      status,
		ProjectID:   projectID,
	})
}

func EncodeComment(text, authorID, authorName, taskID string) (json.RawMessage, error) {
	return json.Marshal(commentData{
		CommentText: text,
		AuthorID:    authorID,
		AuthorName:  authorName,
		TaskID:      taskID,
	})
}

func DecodeProject(d *Document) (*Project, error) {
	var data projectData
	if err := json.Unmarshal(d.Data, &data); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", d.ID, err)
	}
	return &Project{Meta: d.Meta(), Name: data.Name, Description: data.Description}, nil
}

func DecodeTask(d *Document) (*Task, error) {
	var data taskData
	if err := json.Unmarshal(d.Data, &data); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", d.ID, err)
	}
	return &Task{
		Meta:        d.Meta(),
		Name:        data.Name,
		Description: data.Description,
		Status:      data.Status,
		ProjectID:   data.ProjectID,
	}, nil
}

func DecodeComment(d *Document) (*Comment, error) {
	var data commentData
	if err := json.Unmarshal(d.Data, &data); err != nil {
		return nil, fmt.Errorf("decode comment %s: %w", d.ID, err)
	}
	return &Comment{
		Meta:        d.Meta(),
		CommentText: data.CommentText,
		AuthorID:    data.AuthorID,
		AuthorName:  data.AuthorName,
		TaskID:      data.TaskID,
	}, nil
}
