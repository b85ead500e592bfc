package model

import "time"

// Read requests. Delegation is optional for reads (anonymous callers are allowed).
type (
	GetCoursesRequest struct {
		// Caller delegation token
		Delegation string
	}

	GetCoursesResponse struct {
		Courses []Course
		// Storage version the payload was read at
		Version int
		// Signed payload digest (verified with the service root key)
		Certificate string
	}

	GetVoteRequestsRequest struct {
		Delegation string
	}

	GetVoteRequestsResponse struct {
		VoteRequests []VoteRequest
		Version      int
		Certificate  string
	}

	GetEnrollmentsRequest struct {
		Delegation string
		// Optional filter, empty means all students
		StudentPrincipal Principal
	}

	GetEnrollmentsResponse struct {
		Enrollments []Enrollment
		Version     int
		Certificate string
	}
)

// Update requests. Delegation is required.
type (
	CreateCourseRequest struct {
		Delegation  string
		Title       string
		Description string
	}

	CreateCourseResponse struct {
		Course Course
	}

	CreateVoteRequestRequest struct {
		Delegation string
		CourseId   CourseId
	}

	CreateVoteRequestResponse struct {
		VoteRequest VoteRequest
	}

	// CastVoteRequest is used by both VoteUp and VoteDown.
	CastVoteRequest struct {
		Delegation string
		VoteId     VoteRequestId
	}

	CastVoteResponse struct{}

	DeclineVoteRequestRequest struct {
		Delegation string
		VoteId     VoteRequestId
	}

	DeclineVoteRequestResponse struct{}

	// EnrollmentRequest is used by both EnrollStudent and DropoutStudent.
	EnrollmentRequest struct {
		Delegation       string
		StudentPrincipal Principal
		CourseId         CourseId
	}

	EnrollmentResponse struct{}
)

// Trust bootstrap.
type (
	RootKeyRequest struct{}

	RootKeyResponse struct {
		// PEM encoded public key used to sign response certificates
		PublicKey string
	}
)

// Identity provider.
type (
	LoginRequest struct {
		// Client generated key the principal is derived from
		SessionKey string
		// Requested delegation lifetime (capped by the provider)
		MaxTTL time.Duration
	}

	LoginResponse struct {
		Delegation string
		Principal  Principal
		ExpiresAt  time.Time
	}

	PublicKeyRequest struct{}

	PublicKeyResponse struct {
		PublicKey string
	}
)
