package client

import (
	"context"
	"crypto"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/itiky/educhain-dao/identity"
	"github.com/itiky/educhain-dao/model"
	"github.com/itiky/educhain-dao/transport"
)

// Actor is a callable handle to the governance service bound to one identity.
// Every request carries the identity delegation.
type Actor struct {
	caller     transport.Caller
	identity   identity.Identity
	generation uint64
	timeout    time.Duration
	monitor    *Monitor
	// Read responses are verified if set
	rootKey crypto.PublicKey
	// Trust bootstrap failure (dev networks only)
	trustErr error
	closed   atomic.Bool
}

// String implements the stringer interface.
func (a *Actor) String() string {
	return fmt.Sprintf("Actor (%s, gen %d)", a.identity.Principal, a.generation)
}

// Identity returns the identity the Actor is bound to.
func (a *Actor) Identity() identity.Identity {
	return a.identity
}

// Generation returns the Session generation the Actor was created for.
func (a *Actor) Generation() uint64 {
	return a.generation
}

// Trusted checks if read responses are verified against a root key.
func (a *Actor) Trusted() bool {
	return a.rootKey != nil
}

// TrustErr returns the trust bootstrap failure (if any).
func (a *Actor) TrustErr() error {
	return a.trustErr
}

// GetCourses fetches all the courses.
func (a *Actor) GetCourses(ctx context.Context) ([]model.Course, error) {
	req := model.GetCoursesRequest{Delegation: a.identity.Delegation}
	res := model.GetCoursesResponse{}
	if err := a.call(ctx, "GovernanceService.GetCourses", req, &res); err != nil {
		return nil, err
	}

	if res.Courses == nil {
		res.Courses = []model.Course{}
	}
	if err := a.verify(res.Certificate, res.Version, res.Courses); err != nil {
		return nil, err
	}

	return res.Courses, nil
}

// GetVoteRequests fetches all the vote requests.
func (a *Actor) GetVoteRequests(ctx context.Context) ([]model.VoteRequest, error) {
	req := model.GetVoteRequestsRequest{Delegation: a.identity.Delegation}
	res := model.GetVoteRequestsResponse{}
	if err := a.call(ctx, "GovernanceService.GetVoteRequests", req, &res); err != nil {
		return nil, err
	}

	if res.VoteRequests == nil {
		res.VoteRequests = []model.VoteRequest{}
	}
	if err := a.verify(res.Certificate, res.Version, res.VoteRequests); err != nil {
		return nil, err
	}

	return res.VoteRequests, nil
}

// GetEnrollments fetches enrollments of a student (all if student is empty).
func (a *Actor) GetEnrollments(ctx context.Context, student model.Principal) ([]model.Enrollment, error) {
	method := "GovernanceService.GetEnrollments"
	if student != "" {
		method = "GovernanceService.GetEnrollmentsByStudent"
	}

	req := model.GetEnrollmentsRequest{Delegation: a.identity.Delegation, StudentPrincipal: student}
	res := model.GetEnrollmentsResponse{}
	if err := a.call(ctx, method, req, &res); err != nil {
		return nil, err
	}

	if res.Enrollments == nil {
		res.Enrollments = []model.Enrollment{}
	}
	if err := a.verify(res.Certificate, res.Version, res.Enrollments); err != nil {
		return nil, err
	}

	return res.Enrollments, nil
}

// CreateCourse creates a new course (id is assigned remotely).
func (a *Actor) CreateCourse(ctx context.Context, title, description string) (model.Course, error) {
	req := model.CreateCourseRequest{
		Delegation:  a.identity.Delegation,
		Title:       title,
		Description: description,
	}
	res := model.CreateCourseResponse{}
	if err := a.call(ctx, "GovernanceService.CreateCourse", req, &res); err != nil {
		return model.Course{}, err
	}

	return res.Course, nil
}

// CreateVoteRequest opens a vote request for a course.
func (a *Actor) CreateVoteRequest(ctx context.Context, courseId model.CourseId) (model.VoteRequest, error) {
	req := model.CreateVoteRequestRequest{
		Delegation: a.identity.Delegation,
		CourseId:   courseId,
	}
	res := model.CreateVoteRequestResponse{}
	if err := a.call(ctx, "GovernanceService.CreateVoteRequest", req, &res); err != nil {
		return model.VoteRequest{}, err
	}

	return res.VoteRequest, nil
}

// VoteUp increments the vote request upvotes.
func (a *Actor) VoteUp(ctx context.Context, voteId model.VoteRequestId) error {
	req := model.CastVoteRequest{Delegation: a.identity.Delegation, VoteId: voteId}
	return a.call(ctx, "GovernanceService.VoteUp", req, &model.CastVoteResponse{})
}

// VoteDown increments the vote request downvotes.
func (a *Actor) VoteDown(ctx context.Context, voteId model.VoteRequestId) error {
	req := model.CastVoteRequest{Delegation: a.identity.Delegation, VoteId: voteId}
	return a.call(ctx, "GovernanceService.VoteDown", req, &model.CastVoteResponse{})
}

// DeclineVoteRequest removes a vote request.
func (a *Actor) DeclineVoteRequest(ctx context.Context, voteId model.VoteRequestId) error {
	req := model.DeclineVoteRequestRequest{Delegation: a.identity.Delegation, VoteId: voteId}
	return a.call(ctx, "GovernanceService.DeclineVoteRequest", req, &model.DeclineVoteRequestResponse{})
}

// EnrollStudent enrolls a student to a course.
func (a *Actor) EnrollStudent(ctx context.Context, student model.Principal, courseId model.CourseId) error {
	req := model.EnrollmentRequest{Delegation: a.identity.Delegation, StudentPrincipal: student, CourseId: courseId}
	return a.call(ctx, "GovernanceService.EnrollStudent", req, &model.EnrollmentResponse{})
}

// DropoutStudent removes a student enrollment.
func (a *Actor) DropoutStudent(ctx context.Context, student model.Principal, courseId model.CourseId) error {
	req := model.EnrollmentRequest{Delegation: a.identity.Delegation, StudentPrincipal: student, CourseId: courseId}
	return a.call(ctx, "GovernanceService.DropoutStudent", req, &model.EnrollmentResponse{})
}

// Close releases the connection, any further call fails with ErrBindingClosed.
func (a *Actor) Close() error {
	if a.closed.Swap(true) {
		return nil
	}

	return a.caller.Close()
}

// fetchRootKey requests the service root key (trust bootstrap).
func (a *Actor) fetchRootKey(ctx context.Context) (crypto.PublicKey, error) {
	res := model.RootKeyResponse{}
	if err := a.call(ctx, "GovernanceService.RootKey", model.RootKeyRequest{}, &res); err != nil {
		return nil, err
	}

	key, err := identity.ParsePublicKey(res.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("root key: %w", err)
	}

	return key, nil
}

// verify checks the read response certificate (skipped for an untrusted Actor).
func (a *Actor) verify(certificate string, version int, payload interface{}) error {
	if a.rootKey == nil {
		return nil
	}

	return identity.VerifyCertificate(a.rootKey, certificate, version, payload)
}

// call issues a remote call bounded by the Actor timeout.
func (a *Actor) call(ctx context.Context, method string, args, reply interface{}) error {
	if a.closed.Load() {
		return fmt.Errorf("%s: %w", method, ErrBindingClosed)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	err := a.caller.Call(ctx, method, args, reply)
	if a.monitor != nil {
		a.monitor.CallServed(method, time.Since(start), err)
	}

	return err
}
