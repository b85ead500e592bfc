package storage

import (
	"fmt"
	"math"
	"strings"

	"github.com/itiky/educhain-dao/model"
)

type (
	// Storage keeps the governance state: courses, vote requests and enrollments.
	// Storage is not thread-safe, Ledger serializes the access.
	Storage struct {
		courses      []model.Course
		voteRequests []model.VoteRequest
		enrollments  []model.Enrollment
		// Last assigned course / vote request id
		lastId uint64
	}
)

// String implements stringer interface.
func (s *Storage) String() string {
	str := strings.Builder{}
	for i, c := range s.courses {
		str.WriteString(fmt.Sprintf("- course [%d] %s\n", i, c))
	}
	for i, v := range s.voteRequests {
		str.WriteString(fmt.Sprintf("- vote [%d] %s\n", i, v))
	}
	for i, e := range s.enrollments {
		str.WriteString(fmt.Sprintf("- enrollment [%d] %s -> %d\n", i, e.StudentPrincipal, e.CourseId))
	}

	return str.String()
}

// ExportCourses builds a courses slice copy.
func (s *Storage) ExportCourses() []model.Course {
	out := make([]model.Course, len(s.courses))
	copy(out, s.courses)

	return out
}

// ExportVoteRequests builds a vote requests slice copy.
func (s *Storage) ExportVoteRequests() []model.VoteRequest {
	out := make([]model.VoteRequest, len(s.voteRequests))
	copy(out, s.voteRequests)

	return out
}

// ExportEnrollments builds an enrollments slice copy, optionally filtered by student.
func (s *Storage) ExportEnrollments(student model.Principal) []model.Enrollment {
	out := make([]model.Enrollment, 0, len(s.enrollments))
	for _, e := range s.enrollments {
		if student != "" && e.StudentPrincipal != student {
			continue
		}
		out = append(out, e)
	}

	return out
}

// ApplyOperations updates storage state with Operation list.
func (s *Storage) ApplyOperations(ops ...Operation) {
	for _, op := range ops {
		if op == nil {
			continue
		}
		op.Apply(s)
	}
}

// observeId keeps lastId in sync with ids assigned by replayed operations.
func (s *Storage) observeId(id uint64) {
	if id > s.lastId {
		s.lastId = id
	}
}

// addCourse appends a new course.
func (s *Storage) addCourse(course model.Course) {
	s.observeId(uint64(course.Id))
	s.courses = append(s.courses, course)
}

// addVoteRequest appends a new vote request with zero counts.
func (s *Storage) addVoteRequest(id model.VoteRequestId, courseId model.CourseId) {
	s.observeId(uint64(id))
	s.voteRequests = append(s.voteRequests, model.VoteRequest{
		Id:       id,
		CourseId: courseId,
	})
}

// vote increments a vote request counter (saturating).
// Unknown ids are ignored.
func (s *Storage) vote(id model.VoteRequestId, up bool) {
	for i := range s.voteRequests {
		v := &s.voteRequests[i]
		if v.Id != id {
			continue
		}

		if up {
			v.Upvotes = saturatingInc(v.Upvotes)
		} else {
			v.Downvotes = saturatingInc(v.Downvotes)
		}
		return
	}
}

// removeVoteRequest drops a vote request.
func (s *Storage) removeVoteRequest(id model.VoteRequestId) {
	kept := s.voteRequests[:0]
	for _, v := range s.voteRequests {
		if v.Id != id {
			kept = append(kept, v)
		}
	}
	s.voteRequests = kept
}

// enroll appends a new enrollment (duplicates are kept).
func (s *Storage) enroll(student model.Principal, courseId model.CourseId) {
	s.enrollments = append(s.enrollments, model.Enrollment{
		StudentPrincipal: student,
		CourseId:         courseId,
	})
}

// dropout removes all the matching enrollments.
func (s *Storage) dropout(student model.Principal, courseId model.CourseId) {
	kept := s.enrollments[:0]
	for _, e := range s.enrollments {
		if e.StudentPrincipal == student && e.CourseId == courseId {
			continue
		}
		kept = append(kept, e)
	}
	s.enrollments = kept
}

func saturatingInc(v uint32) uint32 {
	if v == math.MaxUint32 {
		return v
	}

	return v + 1
}

// NewStorage creates a new Storage object.
func NewStorage() *Storage {
	return &Storage{}
}
