package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hay-kot/tradeoff/internal/core/task"
	"github.com/hay-kot/tradeoff/internal/data/db"
)

// TaskStore implements task.Store using SQLite.
type TaskStore struct {
	db *db.DB
}

var _ task.Store = (*TaskStore)(nil)

// NewTaskStore creates a new SQLite-backed task store.
func NewTaskStore(db *db.DB) *TaskStore {
	return &TaskStore{db: db}
}

// InsertTask persists t. An ID and CreatedAt are assigned when unset.
func (s *TaskStore) InsertTask(ctx context.Context, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	err := retryBusy(ctx, func() error {
		_, err := s.db.Conn().ExecContext(ctx, `
			INSERT INTO tasks (id, user_id, query, analysis, verified, verified_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.UserID, t.Query, t.Analysis, t.Verified, toNullTime(t.VerifiedAt), t.CreatedAt.UnixNano(),
		)
		return err
	})
	if err != nil {
		return task.Task{}, fmt.Errorf("insert task: %w", err)
	}

	return t, nil
}

// ListTasks returns the tasks of userID, newest first.
func (s *TaskStore) ListTasks(ctx context.Context, userID string) ([]task.Task, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, user_id, query, analysis, verified, verified_at, created_at
		FROM tasks
		WHERE user_id = ?
		ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []task.Task
	for rows.Next() {
		var (
			t          task.Task
			verifiedAt sql.NullInt64
			createdAt  int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Query, &t.Analysis, &t.Verified, &verifiedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.CreatedAt = time.Unix(0, createdAt)
		if verifiedAt.Valid {
			t.VerifiedAt = time.Unix(0, verifiedAt.Int64)
		}
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

// MarkVerified flags the newest unverified task of userID for query.
// Returns task.ErrNotFound when there is none.
func (s *TaskStore) MarkVerified(ctx context.Context, userID, query string, at time.Time) error {
	var res sql.Result
	err := retryBusy(ctx, func() error {
		var err error
		res, err = s.db.Conn().ExecContext(ctx, `
			UPDATE tasks SET verified = 1, verified_at = ?
			WHERE id = (
				SELECT id FROM tasks
				WHERE user_id = ? AND query = ? AND verified = 0
				ORDER BY created_at DESC
				LIMIT 1
			)`,
			at.UnixNano(), userID, query,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark task verified: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark task verified: %w", err)
	}
	if n == 0 {
		return task.ErrNotFound
	}
	return nil
}

// ListUserStats returns every user with their task count, ordered by count
// descending then username.
func (s *TaskStore) ListUserStats(ctx context.Context) ([]task.UserStats, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT u.username, COUNT(t.id) AS completed
		FROM users u
		LEFT JOIN tasks t ON t.user_id = u.id
		GROUP BY u.id
		ORDER BY completed DESC, u.username COLLATE NOCASE ASC`)
	if err != nil {
		return nil, fmt.Errorf("list user stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []task.UserStats
	for rows.Next() {
		var st task.UserStats
		if err := rows.Scan(&st.Username, &st.TasksCompleted); err != nil {
			return nil, fmt.Errorf("scan user stats: %w", err)
		}
		stats = append(stats, st)
	}

	return stats, rows.Err()
}

func toNullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
