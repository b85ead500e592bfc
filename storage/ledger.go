package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/itiky/educhain-dao/model"
)

type (
	// Ledger keeps the Storage state alongside its version and an optional durable journal.
	Ledger struct {
		sync.RWMutex
		// Latest storage state
		storage *Storage
		// Number of operations applied so far
		version int
		// Optional operations journal
		journal Journal
	}

	// Journal persists applied operations so the Ledger can be rebuilt on restart.
	Journal interface {
		Append(ctx context.Context, ops ...Operation) error
		Replay(ctx context.Context, fn func(op Operation) error) error
		Close() error
	}
)

// NextId returns a new unique id for a course or a vote request.
// Ids follow the wall clock (ns) and never go backwards.
func (l *Ledger) NextId(now time.Time) uint64 {
	l.Lock()
	defer l.Unlock()

	id := uint64(now.UnixNano())
	if id <= l.storage.lastId {
		id = l.storage.lastId + 1
	}
	l.storage.lastId = id

	return id
}

// Apply journals operations and updates the storage state.
// The state is left untouched if the journal write fails.
func (l *Ledger) Apply(ctx context.Context, ops ...Operation) (int, error) {
	if len(ops) == 0 {
		return l.Version(), nil
	}

	l.Lock()
	defer l.Unlock()

	if l.journal != nil {
		if err := l.journal.Append(ctx, ops...); err != nil {
			return l.version, fmt.Errorf("journal append: %w", err)
		}
	}

	l.storage.ApplyOperations(ops...)
	l.version += len(ops)

	return l.version, nil
}

// Version returns the current state version.
func (l *Ledger) Version() int {
	l.RLock()
	defer l.RUnlock()

	return l.version
}

// GetCourses returns the latest version and courses.
func (l *Ledger) GetCourses() (int, []model.Course) {
	l.RLock()
	defer l.RUnlock()

	return l.version, l.storage.ExportCourses()
}

// GetVoteRequests returns the latest version and vote requests.
func (l *Ledger) GetVoteRequests() (int, []model.VoteRequest) {
	l.RLock()
	defer l.RUnlock()

	return l.version, l.storage.ExportVoteRequests()
}

// GetEnrollments returns the latest version and enrollments (all if student is empty).
func (l *Ledger) GetEnrollments(student model.Principal) (int, []model.Enrollment) {
	l.RLock()
	defer l.RUnlock()

	return l.version, l.storage.ExportEnrollments(student)
}

// Close closes the journal (if any).
func (l *Ledger) Close() error {
	l.Lock()
	defer l.Unlock()

	if l.journal == nil {
		return nil
	}

	return l.journal.Close()
}

// NewLedger creates a new empty in-memory Ledger object.
func NewLedger() *Ledger {
	return &Ledger{
		storage: NewStorage(),
	}
}

// NewLedgerFromJournal builds the Ledger replaying all the journaled operations.
func NewLedgerFromJournal(ctx context.Context, journal Journal) (*Ledger, error) {
	l := NewLedger()

	if err := journal.Replay(ctx, func(op Operation) error {
		l.storage.ApplyOperations(op)
		l.version++
		return nil
	}); err != nil {
		return nil, fmt.Errorf("journal replay: %w", err)
	}
	l.journal = journal

	return l, nil
}
