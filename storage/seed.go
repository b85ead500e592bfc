package storage

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/itiky/educhain-dao/model"
)

type (
	// Seed is the initial governance state loaded on the server start.
	Seed struct {
		Courses []SeedCourse `yaml:"courses"`
	}

	SeedCourse struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description,omitempty"`
		// Number of pending vote requests to open for the course
		VoteRequests int `yaml:"vote_requests,omitempty"`
	}
)

var mockSubjects = []string{"Algebra", "Geometry", "Physics", "Chemistry", "Biology", "History", "Economics", "Literature"}

// GenAndSaveSeed generates random seed courses and saves them to file system.
func GenAndSaveSeed(filePath string, numOfCourses int) error {
	if numOfCourses <= 0 {
		return fmt.Errorf("%s: must be GT 0", "numOfCourses")
	}

	slog.Info("creating seed courses", "count", numOfCourses)
	seed := newMockSeed(numOfCourses)

	raw, err := yaml.Marshal(seed)
	if err != nil {
		return fmt.Errorf("YAML marshal: %w", err)
	}

	if err := os.WriteFile(filePath, raw, 0644); err != nil {
		return fmt.Errorf("write to file (%s): %w", filePath, err)
	}
	slog.Info("seed saved", "path", filePath)

	return nil
}

// LoadSeed reads a Seed from the YAML file.
func LoadSeed(filePath string) (Seed, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return Seed{}, fmt.Errorf("reading file (%s): %w", filePath, err)
	}

	seed := Seed{}
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return Seed{}, fmt.Errorf("YAML unmarshal: %w", err)
	}

	for i, c := range seed.Courses {
		if strings.TrimSpace(c.Title) == "" {
			return Seed{}, fmt.Errorf("courses[%d]: %s: empty", i, "title")
		}
		if c.VoteRequests < 0 {
			return Seed{}, fmt.Errorf("courses[%d]: %s: must be GTE 0", i, "vote_requests")
		}
	}

	return seed, nil
}

// ApplySeed creates seed courses (and their vote requests) as regular operations.
// Seeding is skipped for a non-empty Ledger, so restarts with a journal are idempotent.
func (l *Ledger) ApplySeed(ctx context.Context, seed Seed, principal model.Principal, now time.Time) error {
	if l.Version() > 0 {
		slog.Info("seed skipped: ledger is not empty", "version", l.Version())
		return nil
	}

	ops := make([]Operation, 0, len(seed.Courses))
	for i, c := range seed.Courses {
		courseOp, err := NewCreateCourseOperation(model.CourseId(l.NextId(now)), c.Title, c.Description, principal, now)
		if err != nil {
			return fmt.Errorf("courses[%d]: %w", i, err)
		}
		ops = append(ops, courseOp)

		for j := 0; j < c.VoteRequests; j++ {
			voteOp, err := NewCreateVoteRequestOperation(model.VoteRequestId(l.NextId(now)), courseOp.Course.Id, principal, now)
			if err != nil {
				return fmt.Errorf("courses[%d]: voteRequests[%d]: %w", i, j, err)
			}
			ops = append(ops, voteOp)
		}
	}

	if _, err := l.Apply(ctx, ops...); err != nil {
		return err
	}
	slog.Info("seed applied", "courses", len(seed.Courses), "ops", len(ops))

	return nil
}

// newMockSeed builds mock seed courses.
func newMockSeed(n int) Seed {
	seed := Seed{
		Courses: make([]SeedCourse, 0, n),
	}
	for i := 0; i < n; i++ {
		subject := mockSubjects[rand.Intn(len(mockSubjects))]
		seed.Courses = append(seed.Courses, SeedCourse{
			Title:        fmt.Sprintf("%s %d", subject, i+1),
			Description:  fmt.Sprintf("%s course (%s)", subject, uuid.New().String()[:8]),
			VoteRequests: rand.Intn(3),
		})
	}

	return seed
}
