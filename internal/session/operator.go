package session

import "github.com/classroll/rollcall/internal/datastore"

// Action is the operator's choice between two captures.
type Action int

const (
	ActionCapture Action = iota
	ActionEnd
	// ActionAbandon stops the workflow and leaves the session ongoing.
	ActionAbandon
)

// Operator is the human at the terminal. Calls block until the operator answers.
type Operator interface {
	// ConfirmTeacherRole reports whether the person starting the session
	// says they are a teacher.
	ConfirmTeacherRole() bool

	// SelectClass picks one of classes. ok is false when the operator backs out.
	SelectClass(classes []datastore.OfferedClass) (ref datastore.ClassRef, ok bool)

	Notify(msg string)
	NextAction() Action

	// ManualEnrollmentID asks for the id of a student the camera did not
	// recognize. ok is false when the operator skips.
	ManualEnrollmentID() (id string, ok bool)

	// SelectExcuseReason offers reasons for an absence. ok is false for a
	// plain absence.
	SelectExcuseReason(reasons []datastore.ExcuseReason) (reason datastore.ExcuseReason, ok bool)

	Confirm(prompt string) bool
}
