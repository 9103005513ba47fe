// Package task defines the persisted history of analyzed decisions and the
// leaderboard derived from it.
package task

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no task matches.
var ErrNotFound = errors.New("task not found")

// Task is one analyzed decision attributed to a user.
type Task struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Query      string    `json:"query"`
	Analysis   string    `json:"analysis"`
	Verified   bool      `json:"verified"`
	VerifiedAt time.Time `json:"verified_at,omitzero"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserStats is one leaderboard row.
type UserStats struct {
	Username       string `json:"username"`
	TasksCompleted int    `json:"tasks_completed"`
}

// Store persists tasks.
type Store interface {
	InsertTask(ctx context.Context, t Task) (Task, error)
	// ListTasks returns a user's tasks, newest first.
	ListTasks(ctx context.Context, userID string) ([]Task, error)
	// MarkVerified flags the user's newest task for query as verified.
	MarkVerified(ctx context.Context, userID, query string, at time.Time) error
	// ListUserStats returns the leaderboard ordered by tasks completed.
	ListUserStats(ctx context.Context) ([]UserStats, error)
}
