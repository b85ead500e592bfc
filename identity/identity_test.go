package identity

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itiky/educhain-dao/model"
	"github.com/itiky/educhain-dao/transport"
)

func Test_Issuer_IssueAndValidate(t *testing.T) {
	issuer, err := NewTestIssuer()
	require.NoError(t, err)

	token, expiresAt, err := issuer.Issue("p1", 0, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, expiresAt.After(time.Now()))

	principal, err := issuer.Validate(token)
	require.NoError(t, err)
	require.EqualValues(t, "p1", principal)

	// expired
	token, _, err = issuer.Issue("p1", time.Minute, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = issuer.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	// foreign key
	other, err := NewTestIssuer()
	require.NoError(t, err)
	token, _, err = other.Issue("p1", 0, time.Now())
	require.NoError(t, err)
	_, err = issuer.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Validate("invalid-token")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = issuer.Issue("", 0, time.Now())
	require.Error(t, err)
}

func Test_Keys_PEMRoundtrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	pem, err := EncodePublicKey(key.Public())
	require.NoError(t, err)

	pub, err := ParsePublicKey(pem)
	require.NoError(t, err)
	require.True(t, key.PublicKey.Equal(pub))

	_, err = ParsePublicKey("")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func Test_Certificate(t *testing.T) {
	certifier, err := NewTestCertifier()
	require.NoError(t, err)

	payload := []model.Course{{Id: 1, Title: "Algebra I", Description: "Intro"}}
	cert, err := certifier.Certify(3, payload, time.Now())
	require.NoError(t, err)

	require.NoError(t, VerifyCertificate(certifier.PublicKey(), cert, 3, payload))

	// version mismatch
	require.ErrorIs(t, VerifyCertificate(certifier.PublicKey(), cert, 4, payload), ErrInvalidCertificate)

	// payload tampered
	tampered := []model.Course{{Id: 1, Title: "Algebra II", Description: "Intro"}}
	require.ErrorIs(t, VerifyCertificate(certifier.PublicKey(), cert, 3, tampered), ErrInvalidCertificate)

	// wrong root key
	other, err := NewTestCertifier()
	require.NoError(t, err)
	require.ErrorIs(t, VerifyCertificate(other.PublicKey(), cert, 3, payload), ErrInvalidCertificate)

	require.ErrorIs(t, VerifyCertificate(certifier.PublicKey(), "", 3, payload), ErrInvalidCertificate)
}

func startIdentityServer(t *testing.T, issuer *Issuer) transport.Caller {
	svc, err := NewIdentityService(issuer, nil)
	require.NoError(t, err)

	server := rpc.NewServer()
	require.NoError(t, server.Register(svc))

	clientConn, serverConn := net.Pipe()
	go server.ServeConn(serverConn)

	caller := transport.NewRPCCaller(rpc.NewClient(clientConn))
	t.Cleanup(func() { caller.Close() })

	return caller
}

func Test_AuthClient_Lifecycle(t *testing.T) {
	ctx := context.Background()
	issuer, err := NewTestIssuer()
	require.NoError(t, err)

	client, err := NewAuthClient(startIdentityServer(t, issuer), AuthClientOptions{SessionKey: "session-1"})
	require.NoError(t, err)

	ok, err := client.IsAuthenticated(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, client.GetIdentity().IsAnonymous())

	id, err := client.Login(ctx, LoginOptions{MaxTTL: 10 * time.Minute})
	require.NoError(t, err)
	require.Equal(t, PrincipalForSessionKey("session-1"), id.Principal)

	principal, err := issuer.Validate(id.Delegation)
	require.NoError(t, err)
	require.Equal(t, id.Principal, principal)

	ok, err = client.IsAuthenticated(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, client.GetIdentity())

	require.NoError(t, client.Logout(ctx))
	ok, err = client.IsAuthenticated(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_AuthClient_RestoreFromStore(t *testing.T) {
	ctx := context.Background()
	store := &MemoryStore{}
	require.NoError(t, store.Save(Identity{Principal: "p1", Delegation: "token", ExpiresAt: time.Now().Add(time.Hour)}))

	client, err := NewAuthClient(nil, AuthClientOptions{Store: store})
	require.NoError(t, err)

	ok, err := client.IsAuthenticated(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, "p1", client.GetIdentity().Principal)

	_, err = client.Login(ctx, LoginOptions{})
	require.ErrorIs(t, err, ErrNoProvider)

	// expired delegation is not restored
	require.NoError(t, store.Save(Identity{Principal: "p1", Delegation: "token", ExpiresAt: time.Now().Add(-time.Second)}))
	ok, err = client.IsAuthenticated(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

type failingStore struct {
	MemoryStore
}

func (s *failingStore) Clear() error {
	return errors.New("keyring locked")
}

func Test_AuthClient_LogoutFailure(t *testing.T) {
	client, err := NewAuthClient(nil, AuthClientOptions{Store: &failingStore{}})
	require.NoError(t, err)

	require.Error(t, client.Logout(context.Background()))
}

func Test_FileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "educhain", "session.yaml")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, found, err := store.Load()
	require.NoError(t, err)
	require.False(t, found)

	client, err := NewAuthClient(nil, AuthClientOptions{Store: store})
	require.NoError(t, err)

	// Expired delegations are rejected
	require.ErrorIs(t, client.Restore(Identity{Principal: "p1", Delegation: "token", ExpiresAt: time.Now().Add(-time.Minute)}), ErrInvalidToken)

	id := Identity{Principal: "p1", Delegation: "token", ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second)}
	require.NoError(t, client.Restore(id))

	// Another client process restores it from the file
	otherStore, err := NewFileStore(path)
	require.NoError(t, err)
	other, err := NewAuthClient(nil, AuthClientOptions{Store: otherStore})
	require.NoError(t, err)

	ok, err := other.IsAuthenticated(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	restored := other.GetIdentity()
	require.Equal(t, id.Principal, restored.Principal)
	require.Equal(t, id.Delegation, restored.Delegation)
	require.True(t, id.ExpiresAt.Equal(restored.ExpiresAt))

	require.NoError(t, other.Logout(ctx))
	require.NoError(t, store.Clear())
	_, found, err = store.Load()
	require.NoError(t, err)
	require.False(t, found)
}
