package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/itiky/educhain-dao/identity"
	"github.com/itiky/educhain-dao/model"
)

// AuthProvider is the identity provider interaction (identity.AuthClient).
type AuthProvider interface {
	Login(ctx context.Context, opts identity.LoginOptions) (identity.Identity, error)
	Logout(ctx context.Context) error
	IsAuthenticated(ctx context.Context) (bool, error)
	GetIdentity() identity.Identity
}

// IdentityStore drives the Session authentication state machine:
// Anonymous -> Authenticating -> Authenticated -> Anonymous.
type IdentityStore struct {
	session  *Session
	auth     AuthProvider
	binder   *Binder
	sync     *SyncEngine
	notifier NotificationSink
	logger   *slog.Logger
	loginTTL time.Duration
}

// Initialize restores a previously authenticated session (without a role).
// The Session is either restored or anonymous when it returns.
func (s *IdentityStore) Initialize(ctx context.Context) error {
	authenticated, err := s.auth.IsAuthenticated(ctx)
	if err != nil {
		s.logger.Error("restore check failed", "error", err)
		s.notifier.Failure("Failed to init identity provider")
		return newError(KindAuth, "initialize", err)
	}
	if !authenticated {
		s.logger.Info("no session to restore")
		return nil
	}

	id := s.auth.GetIdentity()
	if id.IsAnonymous() {
		return nil
	}

	generation, err := s.session.beginAuth("")
	if err != nil {
		return newError(KindAuth, "initialize", err)
	}

	actor, err := s.bind(ctx, "initialize", generation, id)
	if err != nil {
		s.notifier.Failure("Backend connection failed")
		return err
	}
	s.logger.Info("session restored", "principal", id.Principal)

	if trustErr := actor.TrustErr(); trustErr != nil {
		s.notifier.Failure("Development replica root key fetch failed: responses are not verified")
	}

	if _, err := s.sync.Resync(ctx, actor); err != nil && !errors.Is(err, ErrStaleBinding) {
		s.notifier.Failure("Could not fetch data")
		return err
	}

	return nil
}

// Login authenticates through the identity provider and binds an Actor for role.
// Role is a client-side label, it is not checked against the provider response.
func (s *IdentityStore) Login(ctx context.Context, role model.Role) error {
	if role != model.RoleAdmin && role != model.RoleStudent {
		s.notifier.Failure("Login failed")
		return newError(KindAuth, "login", fmt.Errorf("role %q: %w", role, ErrInvalidInput))
	}

	generation, err := s.session.beginAuth(role)
	if err != nil {
		s.notifier.Failure("Login failed")
		return newError(KindAuth, "login", err)
	}

	id, err := s.auth.Login(ctx, identity.LoginOptions{MaxTTL: s.loginTTL})
	if err != nil {
		s.session.abortAuth(generation)
		s.logger.Error("login failed", "role", role, "error", err)
		s.notifier.Failure("Login failed")
		return newError(KindAuth, "login", err)
	}

	actor, err := s.bind(ctx, "login", generation, id)
	if err != nil {
		if errors.Is(err, ErrStaleBinding) {
			return err
		}
		s.notifier.Failure("Backend connection failed")
		return err
	}
	s.logger.Info("logged in", "principal", id.Principal, "role", role)
	s.notifier.Success(fmt.Sprintf("Logged in as %s", role))

	if trustErr := actor.TrustErr(); trustErr != nil {
		s.notifier.Failure("Development replica root key fetch failed: responses are not verified")
	}

	if _, err := s.sync.Resync(ctx, actor); err != nil && !errors.Is(err, ErrStaleBinding) {
		s.notifier.Failure("Could not fetch data")
		return err
	}

	return nil
}

// Logout drops the identity, role, Actor and Snapshot at once.
func (s *IdentityStore) Logout(ctx context.Context) error {
	if err := s.auth.Logout(ctx); err != nil {
		s.logger.Error("logout failed", "error", err)
		s.notifier.Failure("Logout failed")
		return newError(KindAuth, "logout", err)
	}

	if actor := s.session.clear(); actor != nil {
		if err := actor.Close(); err != nil {
			s.logger.Warn("actor close failed", "actor", actor.String(), "error", err)
		}
	}
	s.logger.Info("logged out")
	s.notifier.Success("Logged out")

	return nil
}

// bind creates the Actor and commits it to the Session.
// A binding completed after the attempt was superseded is closed and discarded.
func (s *IdentityStore) bind(ctx context.Context, op string, generation uint64, id identity.Identity) (*Actor, error) {
	actor, err := s.binder.Bind(ctx, id, generation)
	if err != nil {
		s.session.abortAuth(generation)
		s.logger.Error("bind failed", "op", op, "error", err)
		return nil, err
	}

	if err := s.session.completeAuth(generation, id, actor); err != nil {
		_ = actor.Close()
		s.logger.Info("authentication result discarded", "op", op, "principal", id.Principal)
		s.dropDelegation(ctx, id)
		return nil, newError(KindAuth, op, err)
	}

	return actor, nil
}

// dropDelegation logs the provider out if it still holds the discarded delegation.
// A newer delegation from a later login is left untouched.
func (s *IdentityStore) dropDelegation(ctx context.Context, id identity.Identity) {
	if s.auth.GetIdentity().Delegation != id.Delegation {
		return
	}
	if err := s.auth.Logout(ctx); err != nil {
		s.logger.Warn("discarded delegation not cleared", "principal", id.Principal, "error", err)
	}
}

// NewIdentityStore creates a new IdentityStore object.
func NewIdentityStore(session *Session, auth AuthProvider, binder *Binder, engine *SyncEngine, notifier NotificationSink, loginTTL time.Duration, logger *slog.Logger) (*IdentityStore, error) {
	if session == nil {
		return nil, fmt.Errorf("%s: nil", "session")
	}
	if auth == nil {
		return nil, fmt.Errorf("%s: nil", "auth")
	}
	if binder == nil {
		return nil, fmt.Errorf("%s: nil", "binder")
	}
	if engine == nil {
		return nil, fmt.Errorf("%s: nil", "engine")
	}
	if notifier == nil {
		return nil, fmt.Errorf("%s: nil", "notifier")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &IdentityStore{
		session:  session,
		auth:     auth,
		binder:   binder,
		sync:     engine,
		notifier: notifier,
		logger:   logger.With("component", "IdentityStore"),
		loginTTL: loginTTL,
	}, nil
}
