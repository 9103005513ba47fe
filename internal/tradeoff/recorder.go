package tradeoff

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/tradeoff/internal/core/eventbus"
	"github.com/hay-kot/tradeoff/internal/core/task"
	"github.com/hay-kot/tradeoff/internal/core/workflow"
)

// recordTimeout bounds a single store write triggered by an event.
const recordTimeout = 5 * time.Second

// TaskRecorder persists completed analyses for signed-in users. Anonymous
// completions are ignored.
type TaskRecorder struct {
	store task.Store
	bus   *eventbus.EventBus
	log   zerolog.Logger
}

// NewTaskRecorder creates a recorder. Call Subscribe to attach it to a bus.
func NewTaskRecorder(store task.Store, bus *eventbus.EventBus, logger zerolog.Logger) *TaskRecorder {
	return &TaskRecorder{store: store, bus: bus, log: logger}
}

// Subscribe registers the recorder's handlers on its bus.
func (r *TaskRecorder) Subscribe() {
	r.bus.SubscribeAnalysisCompleted(func(p eventbus.AnalysisCompletedPayload) {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		_, _ = r.RecordAnalysis(ctx, p.Completion)
	})
	r.bus.SubscribeVerificationCompleted(func(p eventbus.VerificationCompletedPayload) {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		_ = r.RecordVerification(ctx, p.Completion)
	})
}

// RecordAnalysis inserts a task for c. It returns ok=false when c has no user.
func (r *TaskRecorder) RecordAnalysis(ctx context.Context, c workflow.Completion) (bool, error) {
	if c.UserID == "" {
		return false, nil
	}

	t, err := r.store.InsertTask(ctx, task.Task{
		UserID:    c.UserID,
		Query:     c.Query,
		Analysis:  c.Result,
		CreatedAt: c.At,
	})
	if err != nil {
		r.log.Error().Err(err).Str("user_id", c.UserID).Msg("failed to record task")
		return false, err
	}

	r.log.Debug().Str("task_id", t.ID).Str("user_id", c.UserID).Msg("task recorded")
	r.bus.PublishTaskRecorded(eventbus.TaskRecordedPayload{Task: t})
	return true, nil
}

// RecordVerification marks the user's task for c.Query as verified. A
// verification with no matching task inserts one already verified.
func (r *TaskRecorder) RecordVerification(ctx context.Context, c workflow.Completion) error {
	if c.UserID == "" {
		return nil
	}

	err := r.store.MarkVerified(ctx, c.UserID, c.Query, c.At)
	if errors.Is(err, task.ErrNotFound) {
		var t task.Task
		t, err = r.store.InsertTask(ctx, task.Task{
			UserID:     c.UserID,
			Query:      c.Query,
			Analysis:   c.Result,
			Verified:   true,
			VerifiedAt: c.At,
			CreatedAt:  c.At,
		})
		if err == nil {
			r.bus.PublishTaskRecorded(eventbus.TaskRecordedPayload{Task: t})
		}
	}
	if err != nil {
		r.log.Error().Err(err).Str("user_id", c.UserID).Msg("failed to record verification")
		return err
	}
	return nil
}
