package tradeoff

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hay-kot/tradeoff/internal/core/eventbus"
	"github.com/hay-kot/tradeoff/internal/core/identity"
	"github.com/hay-kot/tradeoff/internal/core/kv"
)

const currentUserKey = "current_user"

// IdentityService is a local identity provider. Users are created on first
// sign-in and the signed-in user id is remembered across runs.
type IdentityService struct {
	users   identity.UserStore
	session *kv.TypedKV[string]
	bus     *eventbus.EventBus
	log     zerolog.Logger

	mu        sync.Mutex
	listeners []identity.AuthListener
}

var _ identity.Provider = (*IdentityService)(nil)

// NewIdentityService creates an identity service. bus may be nil.
func NewIdentityService(users identity.UserStore, store kv.KV, bus *eventbus.EventBus, logger zerolog.Logger) *IdentityService {
	return &IdentityService{
		users:   users,
		session: kv.Scoped[string](store, "auth"),
		bus:     bus,
		log:     logger,
	}
}

// CurrentUser returns the signed-in user or nil. A remembered id whose user
// no longer exists is treated as signed out.
func (s *IdentityService) CurrentUser(ctx context.Context) (*identity.User, error) {
	id, ok, err := s.session.Lookup(ctx, currentUserKey)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !ok || id == "" {
		return nil, nil
	}

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			s.log.Warn().Str("user_id", id).Msg("remembered user no longer exists")
			_ = s.session.Delete(ctx, currentUserKey)
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// SignIn signs in as username, creating the user on first use.
func (s *IdentityService) SignIn(ctx context.Context, username string) (identity.User, error) {
	name, err := identity.NormalizeUsername(username)
	if err != nil {
		return identity.User{}, err
	}

	user, err := s.users.UpsertUser(ctx, name)
	if err != nil {
		return identity.User{}, fmt.Errorf("sign in: %w", err)
	}

	if err := s.session.Set(ctx, currentUserKey, user.ID); err != nil {
		return identity.User{}, fmt.Errorf("save session: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("signed in")
	s.emit(&user)
	return user, nil
}

// SignOut forgets the signed-in user.
func (s *IdentityService) SignOut(ctx context.Context) error {
	has, err := s.session.Has(ctx, currentUserKey)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if !has {
		return nil
	}

	if err := s.session.Delete(ctx, currentUserKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	s.log.Info().Msg("signed out")
	s.emit(nil)
	return nil
}

// OnAuthChange registers fn for sign-in and sign-out, then calls it with
// the current user so the listener starts from a known state.
func (s *IdentityService) OnAuthChange(ctx context.Context, fn identity.AuthListener) error {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()

	user, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fn(user)
	return nil
}

func (s *IdentityService) emit(user *identity.User) {
	s.mu.Lock()
	listeners := make([]identity.AuthListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(user)
	}

	if s.bus != nil {
		s.bus.PublishAuthChanged(eventbus.AuthChangedPayload{User: user})
	}
}
