package model

import (
	"fmt"
	"strconv"
	"strings"
)

type (
	CourseId uint64

	VoteRequestId uint64

	// Principal is the textual form of an authenticated identity.
	Principal string
)

// AnonymousPrincipal is used by callers without a delegation.
const AnonymousPrincipal Principal = "2vxsx-fae"

// Role is a client-held label selecting which operations a session may invoke.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}

	return "", fmt.Errorf("role %q: unknown (valid: %s, %s)", s, RoleStudent, RoleAdmin)
}

// ParseCourseId parses a user supplied course id.
func ParseCourseId(s string) (CourseId, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%s: empty", "courseId")
	}

	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer: %w", "courseId", err)
	}

	return CourseId(v), nil
}

// ParseVoteRequestId parses a user supplied vote request id.
func ParseVoteRequestId(s string) (VoteRequestId, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%s: empty", "voteId")
	}

	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer: %w", "voteId", err)
	}

	return VoteRequestId(v), nil
}

type OperationType string

const (
	CreateCourseOperationType       OperationType = "create_course"
	CreateVoteRequestOperationType  OperationType = "create_vote_request"
	VoteUpOperationType             OperationType = "vote_up"
	VoteDownOperationType           OperationType = "vote_down"
	DeclineVoteRequestOperationType OperationType = "decline_vote_request"
	EnrollOperationType             OperationType = "enroll"
	DropoutOperationType            OperationType = "dropout"
)
