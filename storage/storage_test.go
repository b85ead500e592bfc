package storage

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itiky/educhain-dao/model"
)

const testPrincipal = model.Principal("test-principal")

// Test creates courses / vote requests and checks votes are counted (saturating) and declined.
func Test_Storage_Votes(t *testing.T) {
	storage := NewStorage()

	storage.addCourse(model.Course{Id: 10, Title: "Algebra I", Description: "Intro"})
	storage.addVoteRequest(11, 10)
	storage.addVoteRequest(12, 99) // dangling course reference is accepted

	storage.vote(11, true)
	storage.vote(11, true)
	storage.vote(11, false)
	storage.vote(500, true) // unknown id is ignored
	t.Logf("After votes:\n%s", storage.String())

	votes := storage.ExportVoteRequests()
	require.Len(t, votes, 2)
	require.EqualValues(t, 2, votes[0].Upvotes)
	require.EqualValues(t, 1, votes[0].Downvotes)
	require.EqualValues(t, 0, votes[1].Upvotes)
	require.EqualValues(t, 99, votes[1].CourseId)

	// saturation
	storage.voteRequests[1].Downvotes = math.MaxUint32
	storage.vote(12, false)
	require.EqualValues(t, uint32(math.MaxUint32), storage.ExportVoteRequests()[1].Downvotes)

	// decline
	storage.removeVoteRequest(11)
	votes = storage.ExportVoteRequests()
	require.Len(t, votes, 1)
	require.EqualValues(t, 12, votes[0].Id)

	require.EqualValues(t, 12, storage.lastId)
}

// Test enrolls / drops students and checks the student filter.
func Test_Storage_Enrollments(t *testing.T) {
	storage := NewStorage()

	storage.enroll("alice", 1)
	storage.enroll("alice", 1)
	storage.enroll("alice", 2)
	storage.enroll("bob", 1)

	require.Len(t, storage.ExportEnrollments(""), 4)
	require.Len(t, storage.ExportEnrollments("alice"), 3)

	storage.dropout("alice", 1)
	require.Len(t, storage.ExportEnrollments("alice"), 1)
	require.Len(t, storage.ExportEnrollments("bob"), 1)

	// export is a copy
	exported := storage.ExportEnrollments("")
	exported[0].CourseId = 100
	require.EqualValues(t, 2, storage.ExportEnrollments("alice")[0].CourseId)
}

// Test checks operation constructors input validation.
func Test_Storage_OperationValidation(t *testing.T) {
	now := time.Now()

	_, err := NewCreateCourseOperation(0, "title", "", testPrincipal, now)
	require.Error(t, err)

	_, err = NewCreateCourseOperation(1, "  ", "", testPrincipal, now)
	require.Error(t, err)

	_, err = NewCreateCourseOperation(1, "title", "", testPrincipal, time.Time{})
	require.Error(t, err)

	_, err = NewCreateVoteRequestOperation(0, 1, testPrincipal, now)
	require.Error(t, err)

	_, err = NewEnrollmentOperation(true, "", 1, testPrincipal, now)
	require.Error(t, err)

	op, err := NewCastVoteOperation(5, false, testPrincipal, now)
	require.NoError(t, err)
	require.Equal(t, model.VoteDownOperationType, op.GetType())
}

// Test checks ids are unique and monotonic even for the same timestamp.
func Test_Ledger_NextId(t *testing.T) {
	ledger := NewLedger()
	now := time.Now()

	prev := uint64(0)
	for i := 0; i < 100; i++ {
		id := ledger.NextId(now)
		require.Greater(t, id, prev)
		prev = id
	}

	// clock going backwards
	id := ledger.NextId(now.Add(-time.Hour))
	require.Greater(t, id, prev)
}

// Test applies operations to a journaled Ledger and rebuilds it from the journal.
func Test_Ledger_JournalReplay(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	now := time.Now()

	journal, err := OpenSQLJournal(ctx, dbPath)
	require.NoError(t, err)

	ledger, err := NewLedgerFromJournal(ctx, journal)
	require.NoError(t, err)
	require.Equal(t, 0, ledger.Version())

	courseOp, err := NewCreateCourseOperation(model.CourseId(ledger.NextId(now)), "Algebra I", "Intro", testPrincipal, now)
	require.NoError(t, err)
	voteOp, err := NewCreateVoteRequestOperation(model.VoteRequestId(ledger.NextId(now)), courseOp.Course.Id, testPrincipal, now)
	require.NoError(t, err)
	upOp, err := NewCastVoteOperation(voteOp.Id, true, testPrincipal, now)
	require.NoError(t, err)
	enrollOp, err := NewEnrollmentOperation(true, "alice", courseOp.Course.Id, testPrincipal, now)
	require.NoError(t, err)

	version, err := ledger.Apply(ctx, courseOp, voteOp, upOp, upOp, enrollOp)
	require.NoError(t, err)
	require.Equal(t, 5, version)

	_, expCourses := ledger.GetCourses()
	_, expVotes := ledger.GetVoteRequests()
	_, expEnrollments := ledger.GetEnrollments("")
	require.NoError(t, ledger.Close())

	// Rebuild
	journal, err = OpenSQLJournal(ctx, dbPath)
	require.NoError(t, err)
	rebuilt, err := NewLedgerFromJournal(ctx, journal)
	require.NoError(t, err)
	defer rebuilt.Close()

	version, courses := rebuilt.GetCourses()
	require.Equal(t, 5, version)
	require.Equal(t, expCourses, courses)

	_, votes := rebuilt.GetVoteRequests()
	require.Equal(t, expVotes, votes)
	require.EqualValues(t, 2, votes[0].Upvotes)

	_, enrollments := rebuilt.GetEnrollments("")
	require.Equal(t, expEnrollments, enrollments)

	// ids continue after the replayed ones
	require.Greater(t, rebuilt.NextId(now), uint64(voteOp.Id))
}

// Test generates a seed file, loads it and applies it twice (second apply is skipped).
func Test_Ledger_Seed(t *testing.T) {
	ctx := context.Background()
	filePath := filepath.Join(t.TempDir(), "seed.yaml")

	require.Error(t, GenAndSaveSeed(filePath, 0))
	require.NoError(t, GenAndSaveSeed(filePath, 5))

	seed, err := LoadSeed(filePath)
	require.NoError(t, err)
	require.Len(t, seed.Courses, 5)

	expOps := 0
	for _, c := range seed.Courses {
		expOps += 1 + c.VoteRequests
	}

	ledger := NewLedger()
	require.NoError(t, ledger.ApplySeed(ctx, seed, testPrincipal, time.Now()))
	require.Equal(t, expOps, ledger.Version())

	require.NoError(t, ledger.ApplySeed(ctx, seed, testPrincipal, time.Now()))
	require.Equal(t, expOps, ledger.Version())

	_, courses := ledger.GetCourses()
	require.Len(t, courses, 5)
	for i, c := range courses {
		require.Equal(t, seed.Courses[i].Title, c.Title)
	}
}
