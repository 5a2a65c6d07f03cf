// Package terminal is the interactive operator console: prompts, menus and
// the tables printed at the end of a session.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/classroll/rollcall/internal/capture"
	"github.com/classroll/rollcall/internal/datastore"
	"github.com/classroll/rollcall/internal/match"
	"github.com/classroll/rollcall/internal/session"
)

// Console reads answers line by line from in and writes prompts to out.
// End of input counts as "no" or "skip" for every question.
type Console struct {
	in       *bufio.Reader
	out      io.Writer
	colorize bool
	mu       sync.Mutex
}

var (
	_ session.Operator        = (*Console)(nil)
	_ capture.InstructionSink = (*Console)(nil)
)

// New creates a console. Colors are used only when out is a terminal.
func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:       bufio.NewReader(in),
		out:      out,
		colorize: shouldColorize(out),
	}
}

// Prompt prints label and returns the trimmed answer. ok is false at end of input.
func (c *Console) Prompt(label string) (answer string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprint(c.out, label)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(c.out)
		return "", false
	}
	return strings.TrimSpace(line), true
}

// Confirm asks a yes/no question that defaults to no.
func (c *Console) Confirm(prompt string) bool {
	answer, ok := c.Prompt(prompt + " [y/N]: ")
	if !ok {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

func (c *Console) ConfirmTeacherRole() bool {
	return c.Confirm("Are you a teacher?")
}

// SelectClass lists classes and reads a 1-based choice until it is valid.
// A blank answer backs out.
func (c *Console) SelectClass(classes []datastore.OfferedClass) (datastore.ClassRef, bool) {
	c.write(RenderClasses(classes) + "\n")

	for {
		answer, ok := c.Prompt(fmt.Sprintf("Select class [1-%d] (blank to cancel): ", len(classes)))
		if !ok || answer == "" {
			return datastore.ClassRef{}, false
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(classes) {
			return classes[n-1].Ref(), true
		}
		c.Notify(fmt.Sprintf("%q is not a class number.", answer))
	}
}

func (c *Console) Notify(msg string) {
	if c.colorize {
		msg = ansiBlue + msg + ansiReset
	}
	c.write(msg + "\n")
}

// NextAction captures on a blank line, ends the session on "e" or "end"
// and abandons it on "a", "abandon" or end of input.
func (c *Console) NextAction() session.Action {
	answer, ok := c.Prompt("Press Enter to capture the next student, 'e' to end the session or 'a' to abandon it: ")
	if !ok {
		return session.ActionAbandon
	}
	switch strings.ToLower(answer) {
	case "e", "end", "q", "quit":
		return session.ActionEnd
	case "a", "abandon":
		return session.ActionAbandon
	}
	return session.ActionCapture
}

func (c *Console) ManualEnrollmentID() (string, bool) {
	answer, ok := c.Prompt("Student not recognized. Enter enrollment id to mark absent (blank to skip): ")
	if !ok || answer == "" {
		return "", false
	}
	return answer, true
}

// SelectExcuseReason lists reasons and reads a reason ID until it is valid.
// A blank answer records a plain absence.
func (c *Console) SelectExcuseReason(reasons []datastore.ExcuseReason) (datastore.ExcuseReason, bool) {
	c.write(RenderExcuseReasons(reasons) + "\n")

	for {
		answer, ok := c.Prompt("Excuse reason ID (blank for a plain absence): ")
		if !ok || answer == "" {
			return datastore.ExcuseReason{}, false
		}
		id, err := strconv.ParseUint(answer, 10, 32)
		if err == nil {
			for _, r := range reasons {
				if uint64(r.ID) == id {
					return r, true
				}
			}
		}
		c.Notify(fmt.Sprintf("%q is not an excuse reason ID.", answer))
	}
}

// ShowInstruction prints the pose prompt for the next frame.
func (c *Console) ShowInstruction(instruction string, round, total int) {
	line := fmt.Sprintf("[%d/%d] %s", round, total, instruction)
	if c.colorize {
		line = ansiYellow + line + ansiReset
	}
	c.write(line + "\n")
}

// FillPerson prompts for every empty detail of p. It fails at end of input
// or on a date of birth that does not parse.
func (c *Console) FillPerson(p *datastore.Person) error {
	idLabel := "Teacher id"
	if p.Role == match.RoleStudent {
		idLabel = "Enrollment id"
	}

	fields := []struct {
		label string
		dst   *string
	}{
		{idLabel, &p.ID},
		{"First name", &p.FirstName},
		{"Last name", &p.LastName},
		{"Gender (male/female)", &p.Gender},
		{"Email", &p.Email},
		{"Phone", &p.Phone},
	}
	for _, f := range fields {
		if *f.dst != "" {
			continue
		}
		answer, ok := c.Prompt(f.label + ": ")
		if !ok {
			return io.ErrUnexpectedEOF
		}
		*f.dst = answer
	}

	if p.DateOfBirth.IsZero() {
		answer, ok := c.Prompt("Date of birth (YYYY-MM-DD): ")
		if !ok {
			return io.ErrUnexpectedEOF
		}
		dob, err := time.Parse(datastore.DateLayout, answer)
		if err != nil {
			return fmt.Errorf("date of birth %q: %w", answer, err)
		}
		p.DateOfBirth = dob
	}
	return nil
}

// Print writes s followed by a newline.
func (c *Console) Print(s string) {
	c.write(s + "\n")
}

func (c *Console) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, s)
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
