package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/workflow"
)

func TestValidID(t *testing.T) {
	valid := []string{"a", "6f1c2d3e-0000-4000-8000-000000000000", "task_1.v2", strings.Repeat("x", 36)}
	for _, id := range valid {
		assert.True(t, ValidID(id), id)
	}
	invalid := []string{"", "_leading", "-dash", "has space", "semi;colon", strings.Repeat("x", 37)}
	for _, id := range invalid {
		assert.False(t, ValidID(id), id)
	}
}

func TestTaskDecodeCarriesMetadata(t *testing.T) {
	data, err := EncodeTask(TaskInput{Name: "Write docs"}, workflow.StatusInProgress, "p1")
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := &Document{
		ID:           "t1",
		CollectionID: "tasks",
		DatabaseID:   "main",
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      3,
		Data:         data,
	}

	task, err := DecodeTask(doc)
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, "p1", task.ProjectID)
	assert.Equal(t, workflow.StatusInProgress, task.Status)
	assert.Equal(t, int64(3), task.Version)
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	doc := &Document{ID: "c1", Permissions: []string{`read("users")`}, Data: []byte(`{}`)}
	cp := doc.Clone()
	cp.Permissions[0] = "changed"
	cp.Data[0] = '['
	assert.Equal(t, `read("users")`, doc.Permissions[0])
	assert.Equal(t, byte('{'), doc.Data[0])
}
