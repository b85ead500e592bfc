package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/itiky/educhain-dao/model"
)

type (
	// Operation is an operation performed on Storage to update its state.
	Operation interface {
		// Update the storage state
		Apply(s *Storage)
		// Operation type (journal tag)
		GetType() model.OperationType
		// Caller principal
		GetPrincipal() model.Principal
		GetTimestamp() time.Time
	}

	// CreateCourseOperation implements Operation interface for course creation.
	CreateCourseOperation struct {
		Course    model.Course
		CreatedBy model.Principal
		CreatedAt time.Time
	}

	// CreateVoteRequestOperation implements Operation interface for vote request creation.
	CreateVoteRequestOperation struct {
		Id        model.VoteRequestId
		CourseId  model.CourseId
		CreatedBy model.Principal
		CreatedAt time.Time
	}

	// CastVoteOperation implements Operation interface for up / down votes.
	CastVoteOperation struct {
		VoteId  model.VoteRequestId
		Up      bool
		VotedBy model.Principal
		VotedAt time.Time
	}

	// DeclineVoteRequestOperation implements Operation interface for vote request removal.
	DeclineVoteRequestOperation struct {
		VoteId     model.VoteRequestId
		DeclinedBy model.Principal
		DeclinedAt time.Time
	}

	// EnrollmentOperation implements Operation interface for enroll / dropout.
	EnrollmentOperation struct {
		Enroll           bool
		StudentPrincipal model.Principal
		CourseId         model.CourseId
		UpdatedBy        model.Principal
		UpdatedAt        time.Time
	}
)

// Apply implements Operation interface.
func (o CreateCourseOperation) Apply(s *Storage) {
	s.addCourse(o.Course)
}

// GetType implements Operation interface.
func (o CreateCourseOperation) GetType() model.OperationType {
	return model.CreateCourseOperationType
}

// GetPrincipal implements Operation interface.
func (o CreateCourseOperation) GetPrincipal() model.Principal {
	return o.CreatedBy
}

// GetTimestamp implements Operation interface.
func (o CreateCourseOperation) GetTimestamp() time.Time {
	return o.CreatedAt
}

// Apply implements Operation interface.
func (o CreateVoteRequestOperation) Apply(s *Storage) {
	s.addVoteRequest(o.Id, o.CourseId)
}

// GetType implements Operation interface.
func (o CreateVoteRequestOperation) GetType() model.OperationType {
	return model.CreateVoteRequestOperationType
}

// GetPrincipal implements Operation interface.
func (o CreateVoteRequestOperation) GetPrincipal() model.Principal {
	return o.CreatedBy
}

// GetTimestamp implements Operation interface.
func (o CreateVoteRequestOperation) GetTimestamp() time.Time {
	return o.CreatedAt
}

// Apply implements Operation interface.
func (o CastVoteOperation) Apply(s *Storage) {
	s.vote(o.VoteId, o.Up)
}

// GetType implements Operation interface.
func (o CastVoteOperation) GetType() model.OperationType {
	if o.Up {
		return model.VoteUpOperationType
	}
	return model.VoteDownOperationType
}

// GetPrincipal implements Operation interface.
func (o CastVoteOperation) GetPrincipal() model.Principal {
	return o.VotedBy
}

// GetTimestamp implements Operation interface.
func (o CastVoteOperation) GetTimestamp() time.Time {
	return o.VotedAt
}

// Apply implements Operation interface.
func (o DeclineVoteRequestOperation) Apply(s *Storage) {
	s.removeVoteRequest(o.VoteId)
}

// GetType implements Operation interface.
func (o DeclineVoteRequestOperation) GetType() model.OperationType {
	return model.DeclineVoteRequestOperationType
}

// GetPrincipal implements Operation interface.
func (o DeclineVoteRequestOperation) GetPrincipal() model.Principal {
	return o.DeclinedBy
}

// GetTimestamp implements Operation interface.
func (o DeclineVoteRequestOperation) GetTimestamp() time.Time {
	return o.DeclinedAt
}

// Apply implements Operation interface.
func (o EnrollmentOperation) Apply(s *Storage) {
	if o.Enroll {
		s.enroll(o.StudentPrincipal, o.CourseId)
		return
	}
	s.dropout(o.StudentPrincipal, o.CourseId)
}

// GetType implements Operation interface.
func (o EnrollmentOperation) GetType() model.OperationType {
	if o.Enroll {
		return model.EnrollOperationType
	}
	return model.DropoutOperationType
}

// GetPrincipal implements Operation interface.
func (o EnrollmentOperation) GetPrincipal() model.Principal {
	return o.UpdatedBy
}

// GetTimestamp implements Operation interface.
func (o EnrollmentOperation) GetTimestamp() time.Time {
	return o.UpdatedAt
}

// NewCreateCourseOperation creates a valid Operation object.
func NewCreateCourseOperation(id model.CourseId, title, description string, principal model.Principal, timestamp time.Time) (CreateCourseOperation, error) {
	if id == 0 {
		return CreateCourseOperation{}, fmt.Errorf("%s: must be GT 0", "id")
	}
	if strings.TrimSpace(title) == "" {
		return CreateCourseOperation{}, fmt.Errorf("%s: empty", "title")
	}
	if timestamp.IsZero() {
		return CreateCourseOperation{}, fmt.Errorf("%s: zero", "timestamp")
	}

	return CreateCourseOperation{
		Course: model.Course{
			Id:          id,
			Title:       title,
			Description: description,
		},
		CreatedBy: principal,
		CreatedAt: timestamp,
	}, nil
}

// NewCreateVoteRequestOperation creates a valid Operation object.
// CourseId is not checked against existing courses (soft reference).
func NewCreateVoteRequestOperation(id model.VoteRequestId, courseId model.CourseId, principal model.Principal, timestamp time.Time) (CreateVoteRequestOperation, error) {
	if id == 0 {
		return CreateVoteRequestOperation{}, fmt.Errorf("%s: must be GT 0", "id")
	}
	if timestamp.IsZero() {
		return CreateVoteRequestOperation{}, fmt.Errorf("%s: zero", "timestamp")
	}

	return CreateVoteRequestOperation{
		Id:        id,
		CourseId:  courseId,
		CreatedBy: principal,
		CreatedAt: timestamp,
	}, nil
}

// NewCastVoteOperation creates a valid Operation object.
func NewCastVoteOperation(voteId model.VoteRequestId, up bool, principal model.Principal, timestamp time.Time) (CastVoteOperation, error) {
	if timestamp.IsZero() {
		return CastVoteOperation{}, fmt.Errorf("%s: zero", "timestamp")
	}

	return CastVoteOperation{
		VoteId:  voteId,
		Up:      up,
		VotedBy: principal,
		VotedAt: timestamp,
	}, nil
}

// NewDeclineVoteRequestOperation creates a valid Operation object.
func NewDeclineVoteRequestOperation(voteId model.VoteRequestId, principal model.Principal, timestamp time.Time) (DeclineVoteRequestOperation, error) {
	if timestamp.IsZero() {
		return DeclineVoteRequestOperation{}, fmt.Errorf("%s: zero", "timestamp")
	}

	return DeclineVoteRequestOperation{
		VoteId:     voteId,
		DeclinedBy: principal,
		DeclinedAt: timestamp,
	}, nil
}

// NewEnrollmentOperation creates a valid Operation object.
func NewEnrollmentOperation(enroll bool, student model.Principal, courseId model.CourseId, principal model.Principal, timestamp time.Time) (EnrollmentOperation, error) {
	if strings.TrimSpace(string(student)) == "" {
		return EnrollmentOperation{}, fmt.Errorf("%s: empty", "studentPrincipal")
	}
	if timestamp.IsZero() {
		return EnrollmentOperation{}, fmt.Errorf("%s: zero", "timestamp")
	}

	return EnrollmentOperation{
		Enroll:           enroll,
		StudentPrincipal: student,
		CourseId:         courseId,
		UpdatedBy:        principal,
		UpdatedAt:        timestamp,
	}, nil
}

// marshalOperation encodes an Operation for the journal.
func marshalOperation(op Operation) (model.OperationType, []byte, error) {
	raw, err := json.Marshal(op)
	if err != nil {
		return "", nil, fmt.Errorf("JSON marshal (%s): %w", op.GetType(), err)
	}

	return op.GetType(), raw, nil
}

// unmarshalOperation decodes a journaled Operation.
func unmarshalOperation(opType model.OperationType, raw []byte) (Operation, error) {
	var op Operation
	var err error

	switch opType {
	case model.CreateCourseOperationType:
		v := CreateCourseOperation{}
		err = json.Unmarshal(raw, &v)
		op = v
	case model.CreateVoteRequestOperationType:
		v := CreateVoteRequestOperation{}
		err = json.Unmarshal(raw, &v)
		op = v
	case model.VoteUpOperationType, model.VoteDownOperationType:
		v := CastVoteOperation{}
		err = json.Unmarshal(raw, &v)
		op = v
	case model.DeclineVoteRequestOperationType:
		v := DeclineVoteRequestOperation{}
		err = json.Unmarshal(raw, &v)
		op = v
	case model.EnrollOperationType, model.DropoutOperationType:
		v := EnrollmentOperation{}
		err = json.Unmarshal(raw, &v)
		op = v
	default:
		return nil, fmt.Errorf("unsupported operation: %s", opType)
	}
	if err != nil {
		return nil, fmt.Errorf("JSON unmarshal (%s): %w", opType, err)
	}

	return op, nil
}
