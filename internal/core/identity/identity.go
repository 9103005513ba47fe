// Package identity defines the signed-in user and the provider contract the
// rest of the application consumes. The analysis workflow never requires a
// user; it only carries an optional user id for task attribution.
package identity

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrInvalidUsername is returned when a username fails validation.
	ErrInvalidUsername = errors.New("username must be 3-32 characters of letters, digits, '-', '_' or '.'")
	// ErrUserNotFound is returned when a user id does not exist.
	ErrUserNotFound = errors.New("user not found")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,32}$`)

// User is an authenticated user.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeUsername trims and validates a username.
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !usernamePattern.MatchString(name) {
		return "", ErrInvalidUsername
	}
	return name, nil
}

// AuthListener receives the current user, or nil after sign-out.
type AuthListener func(*User)

// Provider is the identity-and-session collaborator.
type Provider interface {
	// CurrentUser returns the signed-in user or nil.
	CurrentUser(ctx context.Context) (*User, error)
	// OnAuthChange registers a listener for sign-in and sign-out and
	// delivers the current user (or nil) to it right away.
	OnAuthChange(ctx context.Context, fn AuthListener) error
	// SignOut ends the current session. Signing out while signed out is not an error.
	SignOut(ctx context.Context) error
}

// UserStore persists users.
type UserStore interface {
	// UpsertUser returns the user with the given username, creating it if needed.
	UpsertUser(ctx context.Context, username string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
}
