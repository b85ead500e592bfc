package notify

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Terminal(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := NewTerminal(buf)

	sink.Success("Course created")
	sink.Failure("Failed to vote")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Course created")
	require.Contains(t, lines[1], "Failed to vote")
}

func Test_Multi(t *testing.T) {
	r1, r2 := &Recorder{}, &Recorder{}
	buf := &bytes.Buffer{}

	sink := Multi{r1, r2, NewLogger(slog.New(slog.NewTextHandler(buf, nil)))}
	sink.Success("Logged out")
	sink.Failure("Logout failed")

	for _, r := range []*Recorder{r1, r2} {
		require.Equal(t, []Message{
			{Success: true, Text: "Logged out"},
			{Success: false, Text: "Logout failed"},
		}, r.Messages())
	}
	require.Contains(t, buf.String(), "outcome=success")
	require.Contains(t, buf.String(), "outcome=failure")
}

func Test_Recorder(t *testing.T) {
	r := &Recorder{}
	require.Empty(t, r.Messages())

	r.Failure("a")
	r.Success("b")
	r.Failure("c")

	require.Equal(t, []string{"a", "c"}, r.Failures())
	require.Equal(t, []string{"b"}, r.Successes())

	r.Reset()
	require.Empty(t, r.Messages())
}
