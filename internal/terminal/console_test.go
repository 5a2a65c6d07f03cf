package terminal

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroll/rollcall/internal/datastore"
	"github.com/classroll/rollcall/internal/match"
	"github.com/classroll/rollcall/internal/session"
)

func newConsole(input string) (*Console, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return New(strings.NewReader(input), out), out
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"maybe\n", false},
		{"", false},
	}
	for _, tt := range tests {
		c, out := newConsole(tt.input)
		assert.Equal(t, tt.want, c.Confirm("Mark absent?"), "input %q", tt.input)
		assert.Contains(t, out.String(), "Mark absent? [y/N]: ")
	}
}

func TestSelectClassRetriesUntilValid(t *testing.T) {
	t.Parallel()

	teacher := "100"
	classes := []datastore.OfferedClass{
		{ClassID: 7, SubjectCode: "CS101", SubjectName: "Programming", SectionName: "A", TeacherID: &teacher},
		{ClassID: 9, SubjectCode: "MA201", SubjectName: "Calculus", SectionName: "B"},
	}

	c, out := newConsole("x\n5\n2\n")
	ref, ok := c.SelectClass(classes)

	require.True(t, ok)
	assert.Equal(t, datastore.ClassRef{ClassID: 9, SubjectCode: "MA201", SectionName: "B"}, ref)
	assert.Contains(t, out.String(), "Programming")
	assert.Contains(t, out.String(), `"x" is not a class number.`)
	assert.Contains(t, out.String(), `"5" is not a class number.`)
}

func TestSelectClassBackOut(t *testing.T) {
	t.Parallel()

	classes := []datastore.OfferedClass{{ClassID: 1, SubjectCode: "CS101", SectionName: "A"}}

	for _, input := range []string{"\n", ""} {
		c, _ := newConsole(input)
		_, ok := c.SelectClass(classes)
		assert.False(t, ok, "input %q", input)
	}
}

func TestNextAction(t *testing.T) {
	t.Parallel()

	c, _ := newConsole("\nnext\ne\nA\n")
	assert.Equal(t, session.ActionCapture, c.NextAction())
	assert.Equal(t, session.ActionCapture, c.NextAction())
	assert.Equal(t, session.ActionEnd, c.NextAction())
	assert.Equal(t, session.ActionAbandon, c.NextAction())
	assert.Equal(t, session.ActionAbandon, c.NextAction(), "end of input abandons the session")
}

func TestManualEnrollmentID(t *testing.T) {
	t.Parallel()

	c, _ := newConsole(" 2021001 \n\n")
	id, ok := c.ManualEnrollmentID()
	require.True(t, ok)
	assert.Equal(t, "2021001", id)

	_, ok = c.ManualEnrollmentID()
	assert.False(t, ok)
}

func TestSelectExcuseReason(t *testing.T) {
	t.Parallel()

	reasons := []datastore.ExcuseReason{{ID: 3, Reason: "Medical"}, {ID: 8, Reason: "Sports event"}}

	c, out := newConsole("x\n5\n8\n")
	reason, ok := c.SelectExcuseReason(reasons)
	require.True(t, ok)
	assert.Equal(t, reasons[1], reason)
	assert.Contains(t, out.String(), "Medical")
	assert.Contains(t, out.String(), `"x" is not an excuse reason ID.`)
	assert.Contains(t, out.String(), `"5" is not an excuse reason ID.`)

	for _, input := range []string{"\n", ""} {
		c, _ = newConsole(input)
		_, ok = c.SelectExcuseReason(reasons)
		assert.False(t, ok, "input %q", input)
	}
}

func TestShowInstructionAndNotify(t *testing.T) {
	t.Parallel()

	c, out := newConsole("")
	c.ShowInstruction("Tilt Left", 2, 5)
	c.Notify("Session opened.")

	assert.Equal(t, "[2/5] Tilt Left\nSession opened.\n", out.String(), "buffers are never colorized")
}

func TestFillPerson(t *testing.T) {
	t.Parallel()

	c, out := newConsole("2021001\nAda\nLovelace\nfemale\nada@example.com\n555-0100\n2005-12-10\n")
	p := datastore.Person{Role: match.RoleStudent}
	require.NoError(t, c.FillPerson(&p))

	assert.Equal(t, "2021001", p.ID)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, "Lovelace", p.LastName)
	assert.Equal(t, "female", p.Gender)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, "555-0100", p.Phone)
	assert.Equal(t, time.Date(2005, 12, 10, 0, 0, 0, 0, time.UTC), p.DateOfBirth)
	assert.Contains(t, out.String(), "Enrollment id: ")
}

func TestFillPersonKeepsGivenFields(t *testing.T) {
	t.Parallel()

	c, out := newConsole("Grace\n")
	p := datastore.Person{
		Role:        match.RoleTeacher,
		ID:          "100",
		LastName:    "Hopper",
		Gender:      "female",
		Email:       "grace@example.com",
		Phone:       "555-0101",
		DateOfBirth: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.FillPerson(&p))

	assert.Equal(t, "Grace", p.FirstName)
	assert.Equal(t, "First name: ", out.String())
}

func TestFillPersonErrors(t *testing.T) {
	t.Parallel()

	c, _ := newConsole("100\n")
	p := datastore.Person{Role: match.RoleTeacher}
	require.ErrorIs(t, c.FillPerson(&p), io.ErrUnexpectedEOF)

	c, _ = newConsole("1\nA\nB\nmale\na@b.co\n1\n10/12/2005\n")
	p = datastore.Person{Role: match.RoleStudent}
	err := c.FillPerson(&p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date of birth")
}
