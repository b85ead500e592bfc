package client

import (
	"context"
	"crypto"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/itiky/educhain-dao/identity"
	"github.com/itiky/educhain-dao/transport"
)

// NetworkLocal marks a development replica: the root key is fetched from the service.
const NetworkLocal = "local"

// Dialer opens a connection to the governance service.
type Dialer func(ctx context.Context, address string) (transport.Caller, error)

// BinderOptions configures NewBinder.
type BinderOptions struct {
	// Governance service address (host:port)
	Address string
	// Network mode ("local" for a development replica)
	Network string
	// Pinned root key (required outside of development replicas)
	RootKey crypto.PublicKey
	// Per remote call timeout
	CallTimeout time.Duration
}

// Binder builds Actor bindings for identities.
type Binder struct {
	dial    Dialer
	opts    BinderOptions
	monitor *Monitor
	logger  *slog.Logger
	// Root key fetched by the trust bootstrap
	keyMu      sync.Mutex
	fetchedKey crypto.PublicKey
}

// IsDevMode checks if the service is a development replica (explicit network mode or a loopback host).
func (b *Binder) IsDevMode() bool {
	if strings.EqualFold(b.opts.Network, NetworkLocal) {
		return true
	}

	host := b.opts.Address
	if h, _, err := net.SplitHostPort(b.opts.Address); err == nil {
		host = h
	}
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}

	return false
}

// Bind dials the service and returns an Actor scoped to id and generation.
// On development replicas the root key is fetched once; a fetch failure leaves the
// Actor usable but untrusted (see Actor.TrustErr).
func (b *Binder) Bind(ctx context.Context, id identity.Identity, generation uint64) (*Actor, error) {
	if !b.IsDevMode() && b.opts.RootKey == nil {
		return nil, newError(KindBinding, "bind", ErrRootKeyMissing)
	}

	caller, err := b.dial(ctx, b.opts.Address)
	if err != nil {
		return nil, newError(KindBinding, "bind", fmt.Errorf("dial: %w", err))
	}

	actor := &Actor{
		caller:     caller,
		identity:   id,
		generation: generation,
		timeout:    b.opts.CallTimeout,
		monitor:    b.monitor,
		rootKey:    b.opts.RootKey,
	}

	if actor.rootKey == nil {
		key, err := b.trustBootstrap(ctx, actor)
		if err != nil {
			actor.trustErr = newError(KindBinding, "fetchRootKey", err)
			b.logger.Warn("root key fetch failed: development replica might be unreachable", "address", b.opts.Address, "error", err)
		} else {
			actor.rootKey = key
		}
	}
	b.logger.Debug("actor bound", "principal", id.Principal, "generation", generation, "trusted", actor.Trusted())

	return actor, nil
}

// trustBootstrap returns the cached root key or fetches it through actor.
func (b *Binder) trustBootstrap(ctx context.Context, actor *Actor) (crypto.PublicKey, error) {
	b.keyMu.Lock()
	defer b.keyMu.Unlock()

	if b.fetchedKey != nil {
		return b.fetchedKey, nil
	}

	key, err := actor.fetchRootKey(ctx)
	if err != nil {
		return nil, err
	}
	b.fetchedKey = key
	b.logger.Info("root key fetched", "address", b.opts.Address)

	return key, nil
}

// NewBinder creates a new Binder object.
func NewBinder(dial Dialer, opts BinderOptions, monitor *Monitor, logger *slog.Logger) (*Binder, error) {
	if dial == nil {
		return nil, fmt.Errorf("%s: nil", "dial")
	}
	if opts.Address == "" {
		return nil, fmt.Errorf("%s: empty", "Address")
	}
	if opts.CallTimeout < 0 {
		return nil, fmt.Errorf("%s: must be GTE 0", "CallTimeout")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Binder{
		dial:    dial,
		opts:    opts,
		monitor: monitor,
		logger:  logger.With("component", "Binder"),
	}, nil
}
