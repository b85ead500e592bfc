package client

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itiky/educhain-dao/identity"
	"github.com/itiky/educhain-dao/model"
)

func Test_Session_StateMachine(t *testing.T) {
	s := NewSession()
	require.Equal(t, StateAnonymous, s.State())
	require.Equal(t, "anonymous", s.State().String())

	gen, err := s.beginAuth(model.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, StateAuthenticating, s.State())
	require.Empty(t, s.Role())

	_, err = s.beginAuth(model.RoleStudent)
	require.ErrorIs(t, err, ErrLoginInProgress)

	id := identity.Identity{Principal: "alice", Delegation: "token"}
	actor := &Actor{identity: id, generation: gen}
	require.NoError(t, s.completeAuth(gen, id, actor))
	require.Equal(t, StateAuthenticated, s.State())
	require.Equal(t, model.RoleAdmin, s.Role())
	require.Same(t, actor, s.Actor())

	_, err = s.beginAuth(model.RoleStudent)
	require.ErrorIs(t, err, ErrAlreadyAuthenticated)

	require.Same(t, actor, s.clear())
	require.Equal(t, StateAnonymous, s.State())
	require.Nil(t, s.Actor())
	_, found := s.Identity()
	require.False(t, found)
	require.Greater(t, s.Generation(), gen)
}

func Test_Session_StaleResults(t *testing.T) {
	s := NewSession()
	snapshot := model.Snapshot{Courses: []model.Course{{Id: 1, Title: "Algebra I", Description: "Intro"}}}

	// No binding
	require.ErrorIs(t, s.publish(s.Generation(), snapshot), ErrStaleBinding)

	gen, err := s.beginAuth(model.RoleAdmin)
	require.NoError(t, err)

	// Aborted attempt can't be completed
	s.abortAuth(gen)
	require.Equal(t, StateAnonymous, s.State())
	require.ErrorIs(t, s.completeAuth(gen, identity.Identity{}, &Actor{}), ErrStaleBinding)

	gen, err = s.beginAuth(model.RoleAdmin)
	require.NoError(t, err)
	require.NoError(t, s.completeAuth(gen, identity.Identity{Principal: "alice"}, &Actor{generation: gen}))
	require.NoError(t, s.publish(gen, snapshot))
	require.Equal(t, snapshot.Clone(), s.Snapshot())
	require.Empty(t, s.Snapshot().VoteRequests)

	s.clear()
	require.ErrorIs(t, s.publish(gen, snapshot), ErrStaleBinding)
	require.True(t, s.Snapshot().IsEmpty())
}

func Test_Session_Observers(t *testing.T) {
	s := NewSession()
	gen, err := s.beginAuth(model.RoleStudent)
	require.NoError(t, err)
	require.NoError(t, s.completeAuth(gen, identity.Identity{Principal: "bob"}, &Actor{generation: gen}))

	var (
		mu       sync.Mutex
		received []int
	)
	unsubscribe := s.Subscribe(func(snapshot model.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, len(snapshot.VoteRequests))

		// Observers get a copy
		if len(snapshot.VoteRequests) > 0 {
			snapshot.VoteRequests[0].Upvotes = 100
		}
	})

	for i := 1; i <= 3; i++ {
		votes := make([]model.VoteRequest, i)
		for j := range votes {
			votes[j] = model.VoteRequest{Id: model.VoteRequestId(j + 1), CourseId: 1}
		}
		require.NoError(t, s.publish(gen, model.Snapshot{VoteRequests: votes}))
	}
	require.Equal(t, uint32(0), s.Snapshot().VoteRequests[0].Upvotes)

	unsubscribe()
	require.NoError(t, s.publish(gen, model.Snapshot{}))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2, 3}, received)
}

func Test_Binder_IsDevMode(t *testing.T) {
	_, err := NewBinder(nil, BinderOptions{Address: "127.0.0.1:8080"}, nil, nil)
	require.Error(t, err)

	for _, tc := range []struct {
		address string
		network string
		dev     bool
	}{
		{address: "127.0.0.1:8080", dev: true},
		{address: "localhost:8080", dev: true},
		{address: "[::1]:8080", dev: true},
		{address: "LOCALHOST", dev: true},
		{address: "educhain.example.com:8080", network: "local", dev: true},
		{address: "educhain.example.com:8080", network: "ic", dev: false},
		{address: "10.0.0.1:8080", dev: false},
	} {
		b := &Binder{opts: BinderOptions{Address: tc.address, Network: tc.network}}
		require.Equal(t, tc.dev, b.IsDevMode(), tc.address)
	}
}
