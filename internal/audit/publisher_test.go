package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/pkg/requestcontext"
)

type failingSink struct{}

func (failingSink) Append(context.Context, Event) error { return errors.New("sink down") }

func TestPublisherStampsEvents(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), fixed), "req-1")

	require.NoError(t, pub.Emit(ctx, Event{Action: "task_created", UserID: "u1"}))

	events, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, "req-1", events[0].RequestID)
}

func TestLogExtractsKnownAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	store := NewInMemoryStore()

	Log(context.Background(), logger, NewPublisher(store), EventCommentCreated,
		"user_id", "u1", "resource_id", "c1", "task_id", "t1")

	all := store.All()
	require.Len(t, all, 1)
	assert.Equal(t, "comment_created", all[0].Action)
	assert.Equal(t, "c1", all[0].ResourceID)
	assert.Contains(t, buf.String(), "log_type=audit")
}

func TestLogSwallowsEmitFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	assert.NotPanics(t, func() {
		Log(context.Background(), logger, NewPublisher(failingSink{}), EventAuthFailed, "reason", "bad_password")
	})
	assert.Contains(t, buf.String(), "failed to emit audit event")
}

func TestQueueWorkerForwards(t *testing.T) {
	store := NewInMemoryStore()
	queue := NewQueue(4, nil)
	worker := NewWorker(store, queue, nil)

	require.NoError(t, queue.Append(context.Background(), Event{Action: "a"}))
	require.NoError(t, queue.Append(context.Background(), Event{Action: "b"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, worker.Run(ctx), context.Canceled)
	assert.Len(t, store.All(), 2)
}

func TestQueueDropsWhenFull(t *testing.T) {
	queue := NewQueue(1, nil)
	require.NoError(t, queue.Append(context.Background(), Event{Action: "a"}))
	require.NoError(t, queue.Append(context.Background(), Event{Action: "b"}))
	assert.Len(t, queue.inbox, 1)
}
