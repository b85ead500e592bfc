package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itiky/educhain-dao/model"
	"github.com/itiky/educhain-dao/transport"
)

// ErrNoProvider is returned on Login when the client has no identity provider connection.
var ErrNoProvider = errors.New("identity provider is not configured")

type (
	// Identity is an authenticated (or anonymous) principal with its delegation.
	Identity struct {
		Principal  model.Principal
		Delegation string
		ExpiresAt  time.Time
	}

	LoginOptions struct {
		// Requested delegation lifetime, zero means the client default
		MaxTTL time.Duration
	}

	// DelegationStore keeps the current delegation between AuthClient instances.
	DelegationStore interface {
		Load() (Identity, bool, error)
		Save(id Identity) error
		Clear() error
	}
)

// Anonymous returns the identity used by unauthenticated callers.
func Anonymous() Identity {
	return Identity{Principal: model.AnonymousPrincipal}
}

// IsAnonymous checks if the identity carries no delegation.
func (i Identity) IsAnonymous() bool {
	return i.Delegation == ""
}

// IsExpired checks if the delegation is no longer valid at now.
func (i Identity) IsExpired(now time.Time) bool {
	return i.IsAnonymous() || !now.Before(i.ExpiresAt)
}

// String implements the stringer interface.
func (i Identity) String() string {
	return string(i.Principal)
}

// MemoryStore implements DelegationStore in memory.
type MemoryStore struct {
	sync.Mutex
	id    Identity
	found bool
}

// Load implements DelegationStore interface.
func (s *MemoryStore) Load() (Identity, bool, error) {
	s.Lock()
	defer s.Unlock()

	return s.id, s.found, nil
}

// Save implements DelegationStore interface.
func (s *MemoryStore) Save(id Identity) error {
	s.Lock()
	defer s.Unlock()

	s.id, s.found = id, true

	return nil
}

// Clear implements DelegationStore interface.
func (s *MemoryStore) Clear() error {
	s.Lock()
	defer s.Unlock()

	s.id, s.found = Identity{}, false

	return nil
}

// AuthClient is the client side of the identity provider interaction.
type AuthClient struct {
	mu         sync.Mutex
	provider   transport.Caller
	store      DelegationStore
	sessionKey string
	maxTTL     time.Duration
	now        func() time.Time
}

// AuthClientOptions configures NewAuthClient.
type AuthClientOptions struct {
	// Client session key (a random one is generated if empty)
	SessionKey string
	// Default delegation lifetime
	MaxTTL time.Duration
	// Delegation storage (in-memory if nil)
	Store DelegationStore
}

// Login requests a new delegation from the identity provider.
// The call resolves exactly once: either with the new identity or with an error.
func (c *AuthClient) Login(ctx context.Context, opts LoginOptions) (Identity, error) {
	if c.provider == nil {
		return Identity{}, ErrNoProvider
	}

	ttl := opts.MaxTTL
	if ttl <= 0 {
		ttl = c.maxTTL
	}

	req := model.LoginRequest{
		SessionKey: c.sessionKey,
		MaxTTL:     ttl,
	}
	res := model.LoginResponse{}
	if err := c.provider.Call(ctx, "IdentityService.Login", req, &res); err != nil {
		return Identity{}, fmt.Errorf("rpc: %w", err)
	}
	if res.Delegation == "" || res.Principal == "" {
		return Identity{}, fmt.Errorf("login response: %w", ErrInvalidToken)
	}

	id := Identity{
		Principal:  res.Principal,
		Delegation: res.Delegation,
		ExpiresAt:  res.ExpiresAt,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Save(id); err != nil {
		return Identity{}, fmt.Errorf("store save: %w", err)
	}

	return id, nil
}

// Restore seeds a previously issued delegation (e.g. from another client process).
func (c *AuthClient) Restore(id Identity) error {
	if id.IsExpired(c.now()) {
		return fmt.Errorf("restore: %w", ErrInvalidToken)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Save(id); err != nil {
		return fmt.Errorf("store save: %w", err)
	}

	return nil
}

// Logout drops the current delegation.
func (c *AuthClient) Logout(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("store clear: %w", err)
	}

	return nil
}

// IsAuthenticated checks if a non-expired delegation is held.
func (c *AuthClient) IsAuthenticated(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id, found, err := c.store.Load()
	if err != nil {
		return false, fmt.Errorf("store load: %w", err)
	}

	return found && !id.IsExpired(c.now()), nil
}

// GetIdentity returns the current identity (anonymous if not authenticated).
func (c *AuthClient) GetIdentity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, found, err := c.store.Load()
	if err != nil || !found || id.IsExpired(c.now()) {
		return Anonymous()
	}

	return id
}

// NewAuthClient creates a new AuthClient object.
// provider might be nil for a client that can only restore stored delegations.
func NewAuthClient(provider transport.Caller, opts AuthClientOptions) (*AuthClient, error) {
	if opts.MaxTTL < 0 {
		return nil, fmt.Errorf("%s: must be GTE 0", "MaxTTL")
	}
	if opts.MaxTTL == 0 {
		opts.MaxTTL = 8 * time.Hour
	}
	if opts.SessionKey == "" {
		opts.SessionKey = uuid.New().String()
	}
	if opts.Store == nil {
		opts.Store = &MemoryStore{}
	}

	return &AuthClient{
		provider:   provider,
		store:      opts.Store,
		sessionKey: opts.SessionKey,
		maxTTL:     opts.MaxTTL,
		now:        time.Now,
	}, nil
}
