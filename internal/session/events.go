package session

import (
	"context"
	"time"
)

// SessionEvent is published on every state change of a session.
type SessionEvent struct {
	SessionUUID string     `json:"session_uuid"`
	SessionID   uint       `json:"session_id"`
	ClassID     uint       `json:"class_id"`
	SubjectCode string     `json:"subject_code"`
	SectionName string     `json:"section_name"`
	TeacherID   string     `json:"teacher_id"`
	State       State      `json:"state"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

// AttendanceEvent is published after each attendance write.
type AttendanceEvent struct {
	SessionUUID  string    `json:"session_uuid"`
	SessionID    uint      `json:"session_id"`
	EnrollmentID string    `json:"enrollment_id"`
	Status       string    `json:"status"`
	Distance     *float64  `json:"distance,omitempty"` // nil for manual marks
	ExcuseReason string    `json:"excuse_reason,omitempty"`
	MarkedAt     time.Time `json:"marked_at"`
}

// Publisher receives session and attendance events. Failures are logged
// and never change the state machine.
type Publisher interface {
	PublishSession(ctx context.Context, event SessionEvent) error
	PublishAttendance(ctx context.Context, event AttendanceEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishSession(context.Context, SessionEvent) error       { return nil }
func (noopPublisher) PublishAttendance(context.Context, AttendanceEvent) error { return nil }
