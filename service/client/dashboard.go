package client

import (
	"context"
	"crypto"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/itiky/educhain-dao/identity"
	"github.com/itiky/educhain-dao/model"
)

// Config configures NewDashboard.
type Config struct {
	// Governance service address (host:port)
	ServiceAddress string
	// Network mode ("local" for a development replica)
	Network string
	// Pinned root key (required outside of development replicas)
	RootKey crypto.PublicKey
	// Per remote call timeout
	CallTimeout time.Duration
	// Requested delegation lifetime
	LoginTTL time.Duration
	// Monitor report period
	MonitorPeriod time.Duration
}

// Validate validates the config.
func (c Config) Validate() error {
	if c.ServiceAddress == "" {
		return fmt.Errorf("%s: empty", "ServiceAddress")
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("%s: must be GTE 0", "CallTimeout")
	}
	if c.LoginTTL < 0 {
		return fmt.Errorf("%s: must be GTE 0", "LoginTTL")
	}

	return nil
}

// Dashboard owns the client state: the Session and the components driving it.
type Dashboard struct {
	session    *Session
	monitor    *Monitor
	binder     *Binder
	sync       *SyncEngine
	identity   *IdentityStore
	dispatcher *Dispatcher
	logger     *slog.Logger
	// Closed once Init is done
	readyCh   chan struct{}
	readyOnce sync.Once
}

// Init starts the Monitor and restores a previous session.
// Ready is signaled regardless of the restore result.
func (d *Dashboard) Init(ctx context.Context) error {
	defer d.readyOnce.Do(func() { close(d.readyCh) })

	d.monitor.Start()
	if err := d.identity.Initialize(ctx); err != nil {
		d.logger.Warn("session restore failed", "error", err)
		return err
	}

	return nil
}

// Ready returns a channel closed once Init is done.
func (d *Dashboard) Ready() <-chan struct{} {
	return d.readyCh
}

// Identity returns the IdentityStore (login / logout).
func (d *Dashboard) Identity() *IdentityStore {
	return d.identity
}

// Dispatcher returns the user actions Dispatcher.
func (d *Dashboard) Dispatcher() *Dispatcher {
	return d.dispatcher
}

// Session returns the Dashboard Session.
func (d *Dashboard) Session() *Session {
	return d.session
}

// State returns the authentication state.
func (d *Dashboard) State() AuthState {
	return d.session.State()
}

// Snapshot returns the published Snapshot.
func (d *Dashboard) Snapshot() model.Snapshot {
	return d.session.Snapshot()
}

// Subscribe registers a Snapshot observer.
func (d *Dashboard) Subscribe(fn func(model.Snapshot)) func() {
	return d.session.Subscribe(fn)
}

// Resync re-reads the service state through the current binding.
func (d *Dashboard) Resync(ctx context.Context) (model.Snapshot, error) {
	return d.sync.Resync(ctx, d.session.Actor())
}

// Stats returns the remote call stats.
func (d *Dashboard) Stats() map[string]CallStats {
	return d.monitor.Stats()
}

// Close stops the Monitor and clears the Session binding.
// The provider delegation is kept, so the next Init restores it.
func (d *Dashboard) Close() error {
	d.monitor.Stop()

	if actor := d.session.clear(); actor != nil {
		return actor.Close()
	}

	return nil
}

// NewDashboard creates a new Dashboard object.
func NewDashboard(cfg Config, auth AuthProvider, dial Dialer, notifier NotificationSink, logger *slog.Logger) (*Dashboard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	monitor := NewMonitor(cfg.MonitorPeriod, logger)

	binder, err := NewBinder(dial, BinderOptions{
		Address:     cfg.ServiceAddress,
		Network:     cfg.Network,
		RootKey:     cfg.RootKey,
		CallTimeout: cfg.CallTimeout,
	}, monitor, logger)
	if err != nil {
		return nil, fmt.Errorf("binder: %w", err)
	}

	session := NewSession()
	engine := NewSyncEngine(session, logger)

	identityStore, err := NewIdentityStore(session, auth, binder, engine, notifier, cfg.LoginTTL, logger)
	if err != nil {
		return nil, fmt.Errorf("identity store: %w", err)
	}

	dispatcher, err := NewDispatcher(session, engine, notifier, logger)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	return &Dashboard{
		session:    session,
		monitor:    monitor,
		binder:     binder,
		sync:       engine,
		identity:   identityStore,
		dispatcher: dispatcher,
		logger:     logger.With("component", "Dashboard"),
		readyCh:    make(chan struct{}),
	}, nil
}

var _ AuthProvider = (*identity.AuthClient)(nil)
