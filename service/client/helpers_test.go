package client

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/rpc"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itiky/educhain-dao/identity"
	"github.com/itiky/educhain-dao/model"
	"github.com/itiky/educhain-dao/notify"
	"github.com/itiky/educhain-dao/service/server"
	"github.com/itiky/educhain-dao/storage"
	"github.com/itiky/educhain-dao/transport"
)

type callHook func(ctx context.Context, method string) error

// testBackend is an in-process governance service reachable through net.Pipe connections.
type testBackend struct {
	ledger    *storage.Ledger
	issuer    *identity.Issuer
	certifier *identity.Certifier
	rpcServer *rpc.Server

	mu      sync.Mutex
	calls   []string
	before  callHook
	after   callHook
	dialErr error
}

func newTestBackend(t *testing.T) *testBackend {
	issuer, err := identity.NewTestIssuer()
	require.NoError(t, err)
	certifier, err := identity.NewTestCertifier()
	require.NoError(t, err)

	ledger := storage.NewLedger()
	svc, err := server.NewGovernanceService(ledger, issuer, certifier, 10, nil)
	require.NoError(t, err)
	svc.Start()
	t.Cleanup(svc.Stop)

	rpcServer := rpc.NewServer()
	require.NoError(t, rpcServer.Register(svc))

	return &testBackend{
		ledger:    ledger,
		issuer:    issuer,
		certifier: certifier,
		rpcServer: rpcServer,
	}
}

func (b *testBackend) dial(ctx context.Context, address string) (transport.Caller, error) {
	b.mu.Lock()
	dialErr := b.dialErr
	b.mu.Unlock()
	if dialErr != nil {
		return nil, dialErr
	}

	clientConn, serverConn := net.Pipe()
	go b.rpcServer.ServeConn(serverConn)

	return &hookCaller{
		Caller:  transport.NewRPCCaller(rpc.NewClient(clientConn)),
		backend: b,
	}, nil
}

func (b *testBackend) setHooks(before, after callHook) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.before, b.after = before, after
}

func (b *testBackend) setDialErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dialErr = err
}

// Calls returns the remote methods called so far (method names without the service prefix).
func (b *testBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.calls))
	copy(out, b.calls)

	return out
}

func (b *testBackend) resetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = nil
}

// hookCaller records calls and runs the backend hooks around them.
type hookCaller struct {
	transport.Caller
	backend *testBackend
}

func (c *hookCaller) Call(ctx context.Context, method string, args, reply interface{}) error {
	c.backend.mu.Lock()
	c.backend.calls = append(c.backend.calls, method[len("GovernanceService."):])
	before, after := c.backend.before, c.backend.after
	c.backend.mu.Unlock()

	if before != nil {
		if err := before(ctx, method); err != nil {
			return err
		}
	}
	if err := c.Caller.Call(ctx, method, args, reply); err != nil {
		return err
	}
	if after != nil {
		return after(ctx, method)
	}

	return nil
}

// fakeAuth is a controllable identity provider.
type fakeAuth struct {
	mu        sync.Mutex
	issuer    *identity.Issuer
	principal model.Principal
	current   identity.Identity
	loginErr  error
	logoutErr error
	checkErr  error
	// Login blocks until closed (if set)
	loginGate chan struct{}
}

func (a *fakeAuth) Login(ctx context.Context, opts identity.LoginOptions) (identity.Identity, error) {
	a.mu.Lock()
	gate, loginErr, principal := a.loginGate, a.loginErr, a.principal
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return identity.Identity{}, ctx.Err()
		}
	}
	if loginErr != nil {
		return identity.Identity{}, loginErr
	}

	token, expiresAt, err := a.issuer.Issue(principal, opts.MaxTTL, time.Now())
	if err != nil {
		return identity.Identity{}, err
	}
	id := identity.Identity{Principal: principal, Delegation: token, ExpiresAt: expiresAt}

	a.mu.Lock()
	a.current = id
	a.mu.Unlock()

	return id, nil
}

func (a *fakeAuth) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.logoutErr != nil {
		return a.logoutErr
	}
	a.current = identity.Identity{}

	return nil
}

func (a *fakeAuth) IsAuthenticated(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.checkErr != nil {
		return false, a.checkErr
	}

	return !a.current.IsAnonymous(), nil
}

func (a *fakeAuth) GetIdentity() identity.Identity {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current.IsAnonymous() {
		return identity.Anonymous()
	}

	return a.current
}

func (a *fakeAuth) setPrincipal(p model.Principal) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.principal = p
}

type testEnv struct {
	cfg      Config
	backend  *testBackend
	auth     *fakeAuth
	notifier *notify.Recorder
	dash     *Dashboard
}

func newTestEnv(t *testing.T, modifiers ...func(cfg *Config, backend *testBackend)) *testEnv {
	backend := newTestBackend(t)
	auth := &fakeAuth{issuer: backend.issuer, principal: "alice"}
	notifier := &notify.Recorder{}

	cfg := Config{
		ServiceAddress: "127.0.0.1:8080",
		CallTimeout:    5 * time.Second,
		MonitorPeriod:  time.Minute,
	}
	for _, m := range modifiers {
		m(&cfg, backend)
	}

	dash, err := NewDashboard(cfg, auth, backend.dial, notifier, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { dash.Close() })

	return &testEnv{
		cfg:      cfg,
		backend:  backend,
		auth:     auth,
		notifier: notifier,
		dash:     dash,
	}
}

// reopen creates another Dashboard sharing the env provider and backend.
func (e *testEnv) reopen(t *testing.T) (*Dashboard, *notify.Recorder) {
	notifier := &notify.Recorder{}
	dash, err := NewDashboard(e.cfg, e.auth, e.backend.dial, notifier, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { dash.Close() })

	return dash, notifier
}

func (e *testEnv) login(t *testing.T, role model.Role) {
	require.NoError(t, e.dash.Identity().Login(context.Background(), role))
	require.Equal(t, StateAuthenticated, e.dash.State())
	require.Equal(t, role, e.dash.Session().Role())
}

var errNetwork = errors.New("network is unreachable")
