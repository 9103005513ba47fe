package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hay-kot/tradeoff/internal/core/identity"
	"github.com/hay-kot/tradeoff/internal/data/db"
)

// UserStore implements identity.UserStore using SQLite.
type UserStore struct {
	db *db.DB
}

var _ identity.UserStore = (*UserStore)(nil)

// NewUserStore creates a new SQLite-backed user store.
func NewUserStore(db *db.DB) *UserStore {
	return &UserStore{db: db}
}

// UpsertUser returns the user named username, creating it on first use.
// Usernames are matched case-insensitively.
func (s *UserStore) UpsertUser(ctx context.Context, username string) (identity.User, error) {
	var user identity.User

	err := retryBusy(ctx, func() error {
		return s.db.WithTx(ctx, func(tx *sql.Tx) error {
			var createdAt int64
			err := tx.QueryRowContext(ctx,
				`SELECT id, username, created_at FROM users WHERE username = ?`, username,
			).Scan(&user.ID, &user.Username, &createdAt)
			switch {
			case err == nil:
				user.CreatedAt = time.Unix(0, createdAt)
				return nil
			case !IsNotFoundError(err):
				return fmt.Errorf("lookup user: %w", err)
			}

			user = identity.User{
				ID:        uuid.NewString(),
				Username:  username,
				CreatedAt: time.Now(),
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)`,
				user.ID, user.Username, user.CreatedAt.UnixNano(),
			)
			if err != nil {
				return fmt.Errorf("insert user: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return identity.User{}, err
	}

	return user, nil
}

// GetUser returns a user by id.
func (s *UserStore) GetUser(ctx context.Context, id string) (identity.User, error) {
	var (
		user      identity.User
		createdAt int64
	)
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, username, created_at FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.Username, &createdAt)
	if err != nil {
		if IsNotFoundError(err) {
			return identity.User{}, identity.ErrUserNotFound
		}
		return identity.User{}, fmt.Errorf("get user: %w", err)
	}

	user.CreatedAt = time.Unix(0, createdAt)
	return user, nil
}
