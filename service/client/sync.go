package client

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/itiky/educhain-dao/model"
)

// SyncEngine re-reads the full service state and publishes it to the Session.
type SyncEngine struct {
	// Serializes resyncs
	mu      sync.Mutex
	session *Session
	logger  *slog.Logger
}

// Resync fetches courses and vote requests concurrently and replaces the Snapshot
// only if both reads succeed and actor is still the current binding.
func (e *SyncEngine) Resync(ctx context.Context, actor *Actor) (model.Snapshot, error) {
	if actor == nil {
		return model.Snapshot{}, newError(KindSync, "resync", ErrNotAuthenticated)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		courses []model.Course
		votes   []model.VoteRequest
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := actor.GetCourses(gCtx)
		courses = res
		return err
	})
	g.Go(func() error {
		res, err := actor.GetVoteRequests(gCtx)
		votes = res
		return err
	})
	if err := g.Wait(); err != nil {
		e.logger.Error("resync failed", "actor", actor.String(), "error", err)
		return model.Snapshot{}, newError(KindSync, "resync", err)
	}

	snapshot := model.Snapshot{
		Courses:      courses,
		VoteRequests: votes,
	}
	if err := e.session.publish(actor.Generation(), snapshot); err != nil {
		e.logger.Info("resync result discarded", "actor", actor.String())
		return model.Snapshot{}, newError(KindSync, "resync", err)
	}
	e.logger.Debug("snapshot published", "courses", len(courses), "vote_requests", len(votes))

	return snapshot, nil
}

// NewSyncEngine creates a new SyncEngine object.
func NewSyncEngine(session *Session, logger *slog.Logger) *SyncEngine {
	if logger == nil {
		logger = slog.Default()
	}

	return &SyncEngine{
		session: session,
		logger:  logger.With("component", "SyncEngine"),
	}
}
