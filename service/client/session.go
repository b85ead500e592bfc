package client

import (
	"sync"

	"github.com/itiky/educhain-dao/identity"
	"github.com/itiky/educhain-dao/model"
)

// AuthState is the Session authentication state.
type AuthState int

const (
	StateAnonymous AuthState = iota
	StateAuthenticating
	StateAuthenticated
)

// String implements the stringer interface.
func (s AuthState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	}

	return "unknown"
}

// Session owns the current identity, role, actor binding and the published Snapshot.
// Identity and actor are set and cleared together. Every identity change bumps the
// generation, results produced by an actor of an older generation are discarded.
type Session struct {
	mu       sync.Mutex
	notifyMu sync.Mutex
	// Auth
	state       AuthState
	generation  uint64
	pendingRole model.Role
	identity    identity.Identity
	role        model.Role
	actor       *Actor
	// Published state
	snapshot       model.Snapshot
	observers      map[int]func(model.Snapshot)
	nextObserverId int
}

// State returns the authentication state.
func (s *Session) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Generation returns the current binding generation.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.generation
}

// Identity returns the authenticated identity (if any).
func (s *Session) Identity() (identity.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.actor == nil {
		return identity.Identity{}, false
	}

	return s.identity, true
}

// Role returns the session role (empty if not authenticated or not selected).
func (s *Session) Role() model.Role {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.role
}

// Actor returns the current actor binding (nil if not authenticated).
func (s *Session) Actor() *Actor {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.actor
}

// Snapshot returns a copy of the published Snapshot.
func (s *Session) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot.Clone()
}

// Subscribe registers a Snapshot observer and returns the unsubscribe func.
// Observers are called sequentially in publication order and must not mutate the Session.
func (s *Session) Subscribe(fn func(model.Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.observers == nil {
		s.observers = make(map[int]func(model.Snapshot))
	}
	id := s.nextObserverId
	s.nextObserverId++
	s.observers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.observers, id)
	}
}

// binding returns a consistent view of the actor, role and Snapshot.
func (s *Session) binding() (*Actor, model.Role, model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.actor, s.role, s.snapshot.Clone()
}

// beginAuth moves the Session to Authenticating and returns the new generation.
// role is recorded but not exposed until the authentication completes.
func (s *Session) beginAuth(role model.Role) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAuthenticating:
		return 0, ErrLoginInProgress
	case StateAuthenticated:
		return 0, ErrAlreadyAuthenticated
	}

	s.state = StateAuthenticating
	s.generation++
	s.pendingRole = role

	return s.generation, nil
}

// completeAuth sets identity, actor and role at once.
// Fails if the authentication attempt was superseded (logout, newer login).
func (s *Session) completeAuth(generation uint64, id identity.Identity, actor *Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation || s.state != StateAuthenticating {
		return ErrStaleBinding
	}

	s.state = StateAuthenticated
	s.identity = id
	s.actor = actor
	s.role = s.pendingRole
	s.pendingRole = ""

	return nil
}

// abortAuth returns the Session to Anonymous if the attempt is still current.
func (s *Session) abortAuth(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation || s.state != StateAuthenticating {
		return
	}

	s.state = StateAnonymous
	s.pendingRole = ""
}

// clear drops identity, role, actor and Snapshot and returns the dropped actor.
func (s *Session) clear() *Actor {
	s.mu.Lock()

	prev := s.actor
	s.generation++
	s.state = StateAnonymous
	s.identity = identity.Identity{}
	s.role, s.pendingRole = "", ""
	s.actor = nil
	s.snapshot = model.Snapshot{}

	s.notifyLocked()

	return prev
}

// publish replaces the Snapshot if generation is still the current binding one.
func (s *Session) publish(generation uint64, snapshot model.Snapshot) error {
	s.mu.Lock()

	if s.generation != generation || s.actor == nil {
		s.mu.Unlock()
		return ErrStaleBinding
	}
	s.snapshot = snapshot.Clone()

	s.notifyLocked()

	return nil
}

// notifyLocked hands the lock over to notifyMu and calls the observers.
// Must be called with mu held, releases it.
func (s *Session) notifyLocked() {
	observers := make([]func(model.Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	snapshot := s.snapshot.Clone()

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, fn := range observers {
		fn(snapshot.Clone())
	}
}

// NewSession creates a new anonymous Session object.
func NewSession() *Session {
	return &Session{
		observers: make(map[int]func(model.Snapshot)),
	}
}
