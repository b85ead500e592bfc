package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/itiky/educhain-dao/identity"
	"github.com/itiky/educhain-dao/model"
	"github.com/itiky/educhain-dao/storage"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated caller")
	ErrServiceStopped  = errors.New("service is not running")
)

type (
	// DelegationValidator resolves a delegation token to the caller principal.
	DelegationValidator interface {
		Validate(token string) (model.Principal, error)
	}

	// opRequest is a batch of storage operations waiting for the worker.
	opRequest struct {
		ops      []storage.Operation
		resultCh chan error
	}
)

// GovernanceService implements the course governance RPC server service.
// Roles are not checked here: the role is a client-side label.
type GovernanceService struct {
	// State
	ledger    *storage.Ledger
	validator DelegationValidator
	certifier *identity.Certifier
	monitor   *Monitor
	logger    *slog.Logger
	now       func() time.Time
	opsCh     chan opRequest
	//
	runMu   sync.Mutex
	running bool
	stopCh  chan interface{}
	doneCh  chan interface{}
}

// GetCourses returns all the courses.
func (s *GovernanceService) GetCourses(req model.GetCoursesRequest, res *model.GetCoursesResponse) error {
	start := time.Now()
	if _, err := s.authenticateOptional(req.Delegation); err != nil {
		return err
	}

	version, courses := s.ledger.GetCourses()
	cert, err := s.certifier.Certify(version, courses, s.now())
	if err != nil {
		return fmt.Errorf("certify: %w", err)
	}
	res.Courses, res.Version, res.Certificate = courses, version, cert

	s.monitor.ReadServed(time.Since(start))

	return nil
}

// GetVoteRequests returns all the vote requests.
func (s *GovernanceService) GetVoteRequests(req model.GetVoteRequestsRequest, res *model.GetVoteRequestsResponse) error {
	start := time.Now()
	if _, err := s.authenticateOptional(req.Delegation); err != nil {
		return err
	}

	version, votes := s.ledger.GetVoteRequests()
	cert, err := s.certifier.Certify(version, votes, s.now())
	if err != nil {
		return fmt.Errorf("certify: %w", err)
	}
	res.VoteRequests, res.Version, res.Certificate = votes, version, cert

	s.monitor.ReadServed(time.Since(start))

	return nil
}

// GetEnrollments returns all the enrollments.
func (s *GovernanceService) GetEnrollments(req model.GetEnrollmentsRequest, res *model.GetEnrollmentsResponse) error {
	req.StudentPrincipal = ""
	return s.getEnrollments(req, res)
}

// GetEnrollmentsByStudent returns enrollments of a single student.
func (s *GovernanceService) GetEnrollmentsByStudent(req model.GetEnrollmentsRequest, res *model.GetEnrollmentsResponse) error {
	if strings.TrimSpace(string(req.StudentPrincipal)) == "" {
		s.monitor.RequestRejected()
		return fmt.Errorf("%s: empty", "StudentPrincipal")
	}

	return s.getEnrollments(req, res)
}

func (s *GovernanceService) getEnrollments(req model.GetEnrollmentsRequest, res *model.GetEnrollmentsResponse) error {
	start := time.Now()
	if _, err := s.authenticateOptional(req.Delegation); err != nil {
		return err
	}

	version, enrollments := s.ledger.GetEnrollments(req.StudentPrincipal)
	cert, err := s.certifier.Certify(version, enrollments, s.now())
	if err != nil {
		return fmt.Errorf("certify: %w", err)
	}
	res.Enrollments, res.Version, res.Certificate = enrollments, version, cert

	s.monitor.ReadServed(time.Since(start))

	return nil
}

// CreateCourse creates a new course with a service assigned id.
func (s *GovernanceService) CreateCourse(req model.CreateCourseRequest, res *model.CreateCourseResponse) error {
	start := time.Now()
	principal, err := s.authenticate(req.Delegation)
	if err != nil {
		return err
	}

	now := s.now()
	op, err := storage.NewCreateCourseOperation(model.CourseId(s.ledger.NextId(now)), req.Title, req.Description, principal, now)
	if err != nil {
		s.monitor.RequestRejected()
		return fmt.Errorf("createCourse: %w", err)
	}
	if err := s.submit(op); err != nil {
		return err
	}
	res.Course = op.Course

	s.logger.Info("course created", "course_id", op.Course.Id, "principal", principal)
	s.monitor.WriteServed(time.Since(start))

	return nil
}

// CreateVoteRequest opens a new vote request for a course.
// The course reference is not checked (soft reference).
func (s *GovernanceService) CreateVoteRequest(req model.CreateVoteRequestRequest, res *model.CreateVoteRequestResponse) error {
	start := time.Now()
	principal, err := s.authenticate(req.Delegation)
	if err != nil {
		return err
	}

	now := s.now()
	op, err := storage.NewCreateVoteRequestOperation(model.VoteRequestId(s.ledger.NextId(now)), req.CourseId, principal, now)
	if err != nil {
		s.monitor.RequestRejected()
		return fmt.Errorf("createVoteRequest: %w", err)
	}
	if err := s.submit(op); err != nil {
		return err
	}
	res.VoteRequest = model.VoteRequest{Id: op.Id, CourseId: op.CourseId}

	s.logger.Info("vote request created", "vote_id", op.Id, "course_id", op.CourseId, "principal", principal)
	s.monitor.WriteServed(time.Since(start))

	return nil
}

// VoteUp increments the vote request upvotes (unknown ids are ignored).
func (s *GovernanceService) VoteUp(req model.CastVoteRequest, res *model.CastVoteResponse) error {
	return s.castVote(req, true)
}

// VoteDown increments the vote request downvotes (unknown ids are ignored).
func (s *GovernanceService) VoteDown(req model.CastVoteRequest, res *model.CastVoteResponse) error {
	return s.castVote(req, false)
}

func (s *GovernanceService) castVote(req model.CastVoteRequest, up bool) error {
	start := time.Now()
	principal, err := s.authenticate(req.Delegation)
	if err != nil {
		return err
	}

	op, err := storage.NewCastVoteOperation(req.VoteId, up, principal, s.now())
	if err != nil {
		s.monitor.RequestRejected()
		return fmt.Errorf("castVote: %w", err)
	}
	if err := s.submit(op); err != nil {
		return err
	}

	s.logger.Debug("vote cast", "vote_id", req.VoteId, "up", up, "principal", principal)
	s.monitor.WriteServed(time.Since(start))

	return nil
}

// DeclineVoteRequest removes a vote request.
func (s *GovernanceService) DeclineVoteRequest(req model.DeclineVoteRequestRequest, res *model.DeclineVoteRequestResponse) error {
	start := time.Now()
	principal, err := s.authenticate(req.Delegation)
	if err != nil {
		return err
	}

	op, err := storage.NewDeclineVoteRequestOperation(req.VoteId, principal, s.now())
	if err != nil {
		s.monitor.RequestRejected()
		return fmt.Errorf("declineVoteRequest: %w", err)
	}
	if err := s.submit(op); err != nil {
		return err
	}

	s.logger.Info("vote request declined", "vote_id", req.VoteId, "principal", principal)
	s.monitor.WriteServed(time.Since(start))

	return nil
}

// EnrollStudent enrolls a student to a course.
func (s *GovernanceService) EnrollStudent(req model.EnrollmentRequest, res *model.EnrollmentResponse) error {
	return s.updateEnrollment(req, true)
}

// DropoutStudent removes a student enrollment.
func (s *GovernanceService) DropoutStudent(req model.EnrollmentRequest, res *model.EnrollmentResponse) error {
	return s.updateEnrollment(req, false)
}

func (s *GovernanceService) updateEnrollment(req model.EnrollmentRequest, enroll bool) error {
	opName := "dropoutStudent"
	if enroll {
		opName = "enrollStudent"
	}

	start := time.Now()
	principal, err := s.authenticate(req.Delegation)
	if err != nil {
		return err
	}

	op, err := storage.NewEnrollmentOperation(enroll, req.StudentPrincipal, req.CourseId, principal, s.now())
	if err != nil {
		s.monitor.RequestRejected()
		return fmt.Errorf("%s: %w", opName, err)
	}
	if err := s.submit(op); err != nil {
		return err
	}

	s.logger.Info("enrollment updated", "type", op.GetType(), "student", req.StudentPrincipal, "course_id", req.CourseId, "principal", principal)
	s.monitor.WriteServed(time.Since(start))

	return nil
}

// RootKey returns the PEM encoded key read responses are certified with.
func (s *GovernanceService) RootKey(req model.RootKeyRequest, res *model.RootKeyResponse) error {
	pem, err := identity.EncodePublicKey(s.certifier.PublicKey())
	if err != nil {
		return err
	}
	res.PublicKey = pem

	return nil
}

// authenticate requires a valid delegation.
func (s *GovernanceService) authenticate(delegation string) (model.Principal, error) {
	if delegation == "" {
		s.monitor.RequestRejected()
		return "", ErrUnauthenticated
	}

	principal, err := s.validator.Validate(delegation)
	if err != nil {
		s.monitor.RequestRejected()
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	return principal, nil
}

// authenticateOptional accepts anonymous callers but rejects invalid delegations.
func (s *GovernanceService) authenticateOptional(delegation string) (model.Principal, error) {
	if delegation == "" {
		return model.AnonymousPrincipal, nil
	}

	return s.authenticate(delegation)
}

// submit pushes operations to the worker queue and waits for them to be applied.
func (s *GovernanceService) submit(ops ...storage.Operation) error {
	s.runMu.Lock()
	running, stopCh := s.running, s.stopCh
	s.runMu.Unlock()
	if !running {
		return ErrServiceStopped
	}

	req := opRequest{
		ops:      ops,
		resultCh: make(chan error, 1),
	}

	select {
	case s.opsCh <- req:
	case <-stopCh:
		return ErrServiceStopped
	}

	select {
	case err := <-req.resultCh:
		return err
	case <-stopCh:
		return ErrServiceStopped
	}
}

// Start starts the service worker.
func (s *GovernanceService) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan interface{})
	s.doneCh = make(chan interface{})

	s.monitor.Start()
	go s.worker(s.stopCh, s.doneCh)
}

// Stop stops the service worker and waits for it to exit.
func (s *GovernanceService) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.runMu.Unlock()

	<-doneCh
	s.monitor.Stop()
}

// Monitor returns the service stats.
func (s *GovernanceService) Monitor() *Monitor {
	return s.monitor
}

// worker does the actual job: the only writer of the ledger.
func (s *GovernanceService) worker(stopCh, doneCh chan interface{}) {
	defer close(doneCh)
	s.logger.Info("start")

	for {
		select {
		case <-stopCh:
			// Service stop
			s.logger.Info("stop")
			return
		case req := <-s.opsCh:
			// Apply the queued operations
			_, err := s.ledger.Apply(context.Background(), req.ops...)
			if err != nil {
				s.logger.Error("operations apply failed", "ops", len(req.ops), "error", err)
			} else {
				s.monitor.OpsHandled(len(req.ops))
			}
			req.resultCh <- err
		}
	}
}

// NewGovernanceService creates a new GovernanceService object.
func NewGovernanceService(ledger *storage.Ledger, validator DelegationValidator, certifier *identity.Certifier, chSize int, logger *slog.Logger) (*GovernanceService, error) {
	if ledger == nil {
		return nil, fmt.Errorf("%s: nil", "ledger")
	}
	if validator == nil {
		return nil, fmt.Errorf("%s: nil", "validator")
	}
	if certifier == nil {
		return nil, fmt.Errorf("%s: nil", "certifier")
	}
	if chSize < 0 {
		return nil, fmt.Errorf("%s: must be GTE 0", "chSize")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GovernanceService{
		ledger:    ledger,
		validator: validator,
		certifier: certifier,
		monitor:   NewMonitor(0, logger),
		logger:    logger.With("component", "GovernanceService"),
		now:       time.Now,
		opsCh:     make(chan opRequest, chSize),
	}, nil
}
