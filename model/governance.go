package model

import (
	"fmt"
	"strings"
)

type (
	Course struct {
		Id          CourseId
		Title       string
		Description string
	}

	// VoteRequest is a peer-driven proposal about a course. Counts are owned by the service.
	VoteRequest struct {
		Id        VoteRequestId
		CourseId  CourseId
		Upvotes   uint32
		Downvotes uint32
	}

	Enrollment struct {
		StudentPrincipal Principal
		CourseId         CourseId
	}

	// Snapshot is the full client-side copy of the service state.
	// It is always replaced as a whole, never patched.
	Snapshot struct {
		Courses      []Course
		VoteRequests []VoteRequest
	}
)

// String implements the stringer interface.
func (c Course) String() string {
	return fmt.Sprintf("[%d] %s: %s", c.Id, c.Title, c.Description)
}

// String implements the stringer interface.
func (v VoteRequest) String() string {
	return fmt.Sprintf("[%d] course %d: +%d -%d", v.Id, v.CourseId, v.Upvotes, v.Downvotes)
}

// String implements the stringer interface.
func (s Snapshot) String() string {
	str := strings.Builder{}
	str.WriteString("Courses:\n")
	for _, c := range s.Courses {
		str.WriteString(fmt.Sprintf("- %s\n", c))
	}
	str.WriteString("Vote requests:\n")
	for _, v := range s.VoteRequests {
		str.WriteString(fmt.Sprintf("- %s\n", v))
	}

	return str.String()
}

// IsEmpty checks if both collections are empty.
func (s Snapshot) IsEmpty() bool {
	return len(s.Courses) == 0 && len(s.VoteRequests) == 0
}

// Clone returns a deep copy so observers can't mutate the published state.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Courses:      make([]Course, len(s.Courses)),
		VoteRequests: make([]VoteRequest, len(s.VoteRequests)),
	}
	copy(out.Courses, s.Courses)
	copy(out.VoteRequests, s.VoteRequests)

	return out
}

// FindVoteRequest looks up a vote request by id.
func (s Snapshot) FindVoteRequest(id VoteRequestId) (VoteRequest, bool) {
	for _, v := range s.VoteRequests {
		if v.Id == id {
			return v, true
		}
	}

	return VoteRequest{}, false
}

// FindCourse looks up a course by id.
func (s Snapshot) FindCourse(id CourseId) (Course, bool) {
	for _, c := range s.Courses {
		if c.Id == id {
			return c, true
		}
	}

	return Course{}, false
}
