// model.go: gorm models for people, the class catalog, sessions and attendance.
package datastore

import "time"

// SessionStatus is the lifecycle state of an attendance session.
type SessionStatus string

const (
	SessionOngoing   SessionStatus = "ongoing"
	SessionCompleted SessionStatus = "completed"
)

// AttendanceStatus is the recorded outcome for one student in a session.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
	StatusExcused AttendanceStatus = "excused"
)

// Valid reports whether s is a known attendance status.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// Teacher is a registered teacher with the encoded aggregate face vector.
type Teacher struct {
	TeacherID     string    `gorm:"primaryKey;type:varchar(20)"`
	FirstName     string    `gorm:"type:varchar(100);not null"`
	LastName      string    `gorm:"type:varchar(100);not null"`
	Gender        string    `gorm:"type:varchar(10)"`
	DateOfBirth   time.Time `gorm:"type:date"`
	Email         string    `gorm:"type:varchar(255);uniqueIndex"`
	Phone         string    `gorm:"type:varchar(30)"`
	BiometricData []byte    `gorm:"not null"`
	CreatedAt     time.Time
}

// Student is a registered student, keyed by enrollment id.
type Student struct {
	EnrollmentID  string    `gorm:"primaryKey;type:varchar(20)"`
	FirstName     string    `gorm:"type:varchar(100);not null"`
	LastName      string    `gorm:"type:varchar(100);not null"`
	Gender        string    `gorm:"type:varchar(10)"`
	DateOfBirth   time.Time `gorm:"type:date"`
	Email         string    `gorm:"type:varchar(255);uniqueIndex"`
	Phone         string    `gorm:"type:varchar(30)"`
	BiometricData []byte    `gorm:"not null"`
	CreatedAt     time.Time
}

type Subject struct {
	ID          uint   `gorm:"primaryKey"`
	SubjectCode string `gorm:"type:varchar(20);uniqueIndex;not null"`
	SubjectName string `gorm:"type:varchar(200);not null"`
}

type Section struct {
	ID          uint   `gorm:"primaryKey"`
	SectionName string `gorm:"type:varchar(50);uniqueIndex;not null"`
}

// AvailableClass is one subject taught to one section. Only offered
// classes can host sessions.
type AvailableClass struct {
	ID        uint    `gorm:"primaryKey"`
	SubjectID uint    `gorm:"uniqueIndex:idx_class_subject_section;not null"`
	SectionID uint    `gorm:"uniqueIndex:idx_class_subject_section;not null"`
	TeacherID *string `gorm:"type:varchar(20);index"`
	Offered   bool    `gorm:"not null;default:true"`

	Subject Subject `gorm:"foreignKey:SubjectID"`
	Section Section `gorm:"foreignKey:SectionID"`
}

// Session is one teacher-led class period.
type Session struct {
	ID        uint          `gorm:"primaryKey"`
	UUID      string        `gorm:"type:varchar(36);uniqueIndex;not null"`
	ClassID   uint          `gorm:"index;not null"`
	TeacherID string        `gorm:"type:varchar(20);index;not null"`
	Status    SessionStatus `gorm:"type:varchar(20);index;not null"`
	StartTime time.Time     `gorm:"not null"`
	EndTime   *time.Time
}

// Attendance is the mark for one student in one session. The unique
// index makes a second mark for the same pair fail.
type Attendance struct {
	ID               uint             `gorm:"primaryKey"`
	SessionID        uint             `gorm:"uniqueIndex:idx_attendance_session_student;not null"`
	EnrollmentID     string           `gorm:"type:varchar(20);uniqueIndex:idx_attendance_session_student;not null"`
	AttendanceStatus AttendanceStatus `gorm:"type:varchar(20);not null"`
	ExcuseReasonID   *uint
	MarkedAt         time.Time `gorm:"not null"`
}

type ExcuseReason struct {
	ID     uint   `gorm:"primaryKey"`
	Reason string `gorm:"type:varchar(200);uniqueIndex;not null"`
}

// OfferedClass is an offered AvailableClass joined with its subject and section.
type OfferedClass struct {
	ClassID     uint
	SubjectCode string
	SubjectName string
	SectionName string
	TeacherID   *string
}

// ClassRef identifies the class a session is opened for.
type ClassRef struct {
	ClassID     uint
	SubjectCode string
	SectionName string
}

// Ref returns the reference the session machine carries for c.
func (c OfferedClass) Ref() ClassRef {
	return ClassRef{ClassID: c.ClassID, SubjectCode: c.SubjectCode, SectionName: c.SectionName}
}

// Label renders the class for menus and logs.
func (c OfferedClass) Label() string {
	return c.SubjectCode + " - " + c.SubjectName + " (" + c.SectionName + ")"
}

// allModels lists every table migrated on open.
func allModels() []any {
	return []any{
		&Teacher{}, &Student{},
		&Subject{}, &Section{}, &AvailableClass{},
		&Session{}, &Attendance{}, &ExcuseReason{},
	}
}
