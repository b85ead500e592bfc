package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/itiky/educhain-dao/model"
)

// NotificationSink surfaces operation outcomes to the user.
type NotificationSink interface {
	Success(message string)
	Failure(message string)
}

// Dispatcher runs user actions: role gate, local validation, one remote call, notification, resync.
// A failed action never changes the Snapshot and is never retried.
type Dispatcher struct {
	session  *Session
	sync     *SyncEngine
	notifier NotificationSink
	logger   *slog.Logger
}

type action struct {
	// Operation name (logs, errors)
	op string
	// Allowed role
	role model.Role
	// Notification messages
	okMsg, failMsg string
	// Local validation against the current Snapshot
	validate func(snapshot model.Snapshot) error
	// Remote mutating call
	call func(ctx context.Context, actor *Actor) error
}

// CreateCourse creates a new course (admin only).
func (d *Dispatcher) CreateCourse(ctx context.Context, title, description string) (model.Course, error) {
	title, description = strings.TrimSpace(title), strings.TrimSpace(description)

	var course model.Course
	err := d.run(ctx, action{
		op:      "createCourse",
		role:    model.RoleAdmin,
		okMsg:   "Course created",
		failMsg: "Failed to create course",
		validate: func(model.Snapshot) error {
			if title == "" || description == "" {
				return fmt.Errorf("title and description must be non-empty: %w", ErrInvalidInput)
			}
			return nil
		},
		call: func(ctx context.Context, actor *Actor) error {
			res, err := actor.CreateCourse(ctx, title, description)
			course = res
			return err
		},
	})

	return course, err
}

// ProposeVote opens a vote request for a course (student only).
func (d *Dispatcher) ProposeVote(ctx context.Context, courseIdStr string) (model.VoteRequest, error) {
	var (
		courseId model.CourseId
		vote     model.VoteRequest
	)
	err := d.run(ctx, action{
		op:      "proposeVote",
		role:    model.RoleStudent,
		okMsg:   "Vote requested",
		failMsg: "Failed to propose vote",
		validate: func(model.Snapshot) error {
			id, err := model.ParseCourseId(courseIdStr)
			if err != nil {
				return fmt.Errorf("%v: %w", err, ErrInvalidInput)
			}
			courseId = id
			return nil
		},
		call: func(ctx context.Context, actor *Actor) error {
			res, err := actor.CreateVoteRequest(ctx, courseId)
			vote = res
			return err
		},
	})

	return vote, err
}

// Upvote increments a vote request upvotes (student only).
func (d *Dispatcher) Upvote(ctx context.Context, voteId model.VoteRequestId) error {
	return d.run(ctx, action{
		op:       "upvote",
		role:     model.RoleStudent,
		okMsg:    "Voted",
		failMsg:  "Failed to vote",
		validate: voteRequestExists(voteId),
		call: func(ctx context.Context, actor *Actor) error {
			return actor.VoteUp(ctx, voteId)
		},
	})
}

// Downvote increments a vote request downvotes (student only).
func (d *Dispatcher) Downvote(ctx context.Context, voteId model.VoteRequestId) error {
	return d.run(ctx, action{
		op:       "downvote",
		role:     model.RoleStudent,
		okMsg:    "Voted",
		failMsg:  "Failed to vote",
		validate: voteRequestExists(voteId),
		call: func(ctx context.Context, actor *Actor) error {
			return actor.VoteDown(ctx, voteId)
		},
	})
}

// DeclineVoteRequest removes a vote request (admin only).
func (d *Dispatcher) DeclineVoteRequest(ctx context.Context, voteId model.VoteRequestId) error {
	return d.run(ctx, action{
		op:       "declineVoteRequest",
		role:     model.RoleAdmin,
		okMsg:    "Vote request declined",
		failMsg:  "Failed to decline vote request",
		validate: voteRequestExists(voteId),
		call: func(ctx context.Context, actor *Actor) error {
			return actor.DeclineVoteRequest(ctx, voteId)
		},
	})
}

// EnrollStudent enrolls a student to a course (admin only).
func (d *Dispatcher) EnrollStudent(ctx context.Context, student model.Principal, courseIdStr string) error {
	var courseId model.CourseId
	return d.run(ctx, action{
		op:       "enrollStudent",
		role:     model.RoleAdmin,
		okMsg:    "Student enrolled",
		failMsg:  "Failed to enroll student",
		validate: enrollmentInput(student, courseIdStr, &courseId),
		call: func(ctx context.Context, actor *Actor) error {
			return actor.EnrollStudent(ctx, student, courseId)
		},
	})
}

// DropoutStudent removes a student enrollment (admin only).
func (d *Dispatcher) DropoutStudent(ctx context.Context, student model.Principal, courseIdStr string) error {
	var courseId model.CourseId
	return d.run(ctx, action{
		op:       "dropoutStudent",
		role:     model.RoleAdmin,
		okMsg:    "Student dropped out",
		failMsg:  "Failed to drop out student",
		validate: enrollmentInput(student, courseIdStr, &courseId),
		call: func(ctx context.Context, actor *Actor) error {
			return actor.DropoutStudent(ctx, student, courseId)
		},
	})
}

// Enrollments returns the current student enrollments (student only, no resync).
func (d *Dispatcher) Enrollments(ctx context.Context) ([]model.Enrollment, error) {
	const op = "enrollments"

	actor, role, _ := d.session.binding()
	if err := d.gate(op, actor, role, model.RoleStudent); err != nil {
		d.notifier.Failure("Could not fetch data")
		return nil, err
	}

	enrollments, err := actor.GetEnrollments(ctx, actor.Identity().Principal)
	if err != nil {
		d.logger.Error("action failed", "op", op, "actor", actor.String(), "error", err)
		d.notifier.Failure("Could not fetch data")
		return nil, newError(KindSync, op, err)
	}

	return enrollments, nil
}

// run executes an action; the mutating call always completes before the resync starts.
func (d *Dispatcher) run(ctx context.Context, a action) error {
	actor, role, snapshot := d.session.binding()
	if err := d.gate(a.op, actor, role, a.role); err != nil {
		d.notifier.Failure(a.failMsg)
		return err
	}

	if a.validate != nil {
		if err := a.validate(snapshot); err != nil {
			d.logger.Info("action rejected", "op", a.op, "error", err)
			d.notifier.Failure(a.failMsg)
			return newError(KindAction, a.op, err)
		}
	}

	if err := a.call(ctx, actor); err != nil {
		d.logger.Error("action failed", "op", a.op, "actor", actor.String(), "error", err)
		d.notifier.Failure(a.failMsg)
		return newError(KindAction, a.op, err)
	}
	d.logger.Info("action done", "op", a.op, "actor", actor.String())
	d.notifier.Success(a.okMsg)

	if _, err := d.sync.Resync(ctx, actor); err != nil {
		if errors.Is(err, ErrStaleBinding) {
			return nil
		}
		d.notifier.Failure("Could not fetch data")
		return err
	}

	return nil
}

// gate checks the Session is bound with the allowed role.
func (d *Dispatcher) gate(op string, actor *Actor, role, allowed model.Role) error {
	if actor == nil {
		return newError(KindAction, op, ErrNotAuthenticated)
	}
	if role != allowed {
		d.logger.Warn("action forbidden", "op", op, "role", role)
		return newError(KindAction, op, fmt.Errorf("%s (%s required): %w", role, allowed, ErrForbiddenRole))
	}

	return nil
}

func voteRequestExists(voteId model.VoteRequestId) func(model.Snapshot) error {
	return func(snapshot model.Snapshot) error {
		if _, found := snapshot.FindVoteRequest(voteId); !found {
			return fmt.Errorf("vote request %d: %w", voteId, ErrUnknownVoteRequest)
		}
		return nil
	}
}

func enrollmentInput(student model.Principal, courseIdStr string, courseId *model.CourseId) func(model.Snapshot) error {
	return func(model.Snapshot) error {
		if strings.TrimSpace(string(student)) == "" {
			return fmt.Errorf("%s: empty: %w", "student", ErrInvalidInput)
		}

		id, err := model.ParseCourseId(courseIdStr)
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidInput)
		}
		*courseId = id

		return nil
	}
}

// NewDispatcher creates a new Dispatcher object.
func NewDispatcher(session *Session, engine *SyncEngine, notifier NotificationSink, logger *slog.Logger) (*Dispatcher, error) {
	if session == nil {
		return nil, fmt.Errorf("%s: nil", "session")
	}
	if engine == nil {
		return nil, fmt.Errorf("%s: nil", "engine")
	}
	if notifier == nil {
		return nil, fmt.Errorf("%s: nil", "notifier")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		session:  session,
		sync:     engine,
		notifier: notifier,
		logger:   logger.With("component", "Dispatcher"),
	}, nil
}
