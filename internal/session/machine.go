// Package session runs the attendance workflow: a teacher opens a session
// for an offered class, students are marked as they face the camera, and
// the teacher closes the session again.
//
// The Machine moves through three states:
//
//	no_session --Open--> session_open --Close--> session_closed
//	                      |        ^
//	                      +-Step---+
//
// Open and Close both require the teacher to be recognized by the
// camera. A Machine drives exactly one session and is not safe for
// concurrent use.
package session

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/classroll/rollcall/internal/biometric"
	"github.com/classroll/rollcall/internal/datastore"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/logger"
	"github.com/classroll/rollcall/internal/match"
	"github.com/classroll/rollcall/internal/observability/metrics"
	"github.com/classroll/rollcall/internal/retry"
)

// State is a state of the session machine.
type State string

const (
	StateNoSession     State = "no_session"
	StateSessionOpen   State = "session_open"
	StateSessionClosed State = "session_closed"
)

// Outcome describes what one Step did.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeMarkedPresent
	OutcomeMarkedAbsent
	OutcomeMarkedExcused
	OutcomeAlreadyMarked
	OutcomeNoFace
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMarkedPresent:
		return "marked_present"
	case OutcomeMarkedAbsent:
		return "marked_absent"
	case OutcomeMarkedExcused:
		return "marked_excused"
	case OutcomeAlreadyMarked:
		return "already_marked"
	case OutcomeNoFace:
		return "no_face"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "none"
	}
}

// Errors for requests the machine refuses.
var (
	ErrInvalidState    = errors.NewStd("operation not allowed in current state")
	ErrNoOfferedClass  = errors.NewStd("no class is currently offered")
	ErrNoClassSelected = errors.NewStd("no class selected")
	ErrAbandoned       = errors.NewStd("session abandoned while ongoing")
)

// Sampler captures one biometric sample from the camera.
type Sampler interface {
	Sample(ctx context.Context) (biometric.FeatureVector, error)
}

// Identifier matches a sample against the stored identities of a role.
type Identifier interface {
	Identify(ctx context.Context, role match.Role, query biometric.FeatureVector, threshold float64) (match.Result, bool, error)
}

// Observer receives match distances and state transitions.
type Observer interface {
	ObserveMatchDistance(role string, distance float64)
	RecordTransition(from, to string)
}

type noopObserver struct{}

func (noopObserver) ObserveMatchDistance(string, float64) {}
func (noopObserver) RecordTransition(string, string)      {}

// Config holds the thresholds and the authentication policy.
type Config struct {
	TeacherThreshold float64
	StudentThreshold float64
	MaxAttempts      int
	Backoff          time.Duration
}

// Machine is the attendance session state machine.
type Machine struct {
	gateway    datastore.Gateway
	sampler    Sampler
	students   Sampler
	identifier Identifier
	operator   Operator
	publisher  Publisher
	recorder   metrics.Recorder
	observer   Observer
	cfg        Config
	now        func() time.Time
	log        logger.Logger

	state    State
	session  datastore.Session
	class    datastore.ClassRef
	marked   map[string]struct{}
	closedBy string
}

// Option configures a Machine.
type Option func(*Machine)

// WithPublisher sends session and attendance events to p.
func WithPublisher(p Publisher) Option {
	return func(m *Machine) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithMetrics records operations, match distances and transitions.
func WithMetrics(am *metrics.AttendanceMetrics) Option {
	return func(m *Machine) {
		if am != nil {
			m.recorder = am
			m.observer = am
		}
	}
}

// WithRecorder records operations to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(m *Machine) { m.recorder = metrics.OrNoOp(r) }
}

// WithObserver reports match distances and transitions to o.
func WithObserver(o Observer) Option {
	return func(m *Machine) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithStudentSampler uses s for student captures instead of the
// sampler that authenticates teachers.
func WithStudentSampler(s Sampler) Option {
	return func(m *Machine) {
		if s != nil {
			m.students = s
		}
	}
}

// WithClock overrides the clock used for session times.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine returns a machine in StateNoSession. Zero thresholds fall
// back to match.DefaultThreshold and a zero MaxAttempts to the retry default.
func NewMachine(gateway datastore.Gateway, sampler Sampler, identifier Identifier, operator Operator, cfg Config, opts ...Option) *Machine {
	if cfg.TeacherThreshold <= 0 {
		cfg.TeacherThreshold = match.DefaultThreshold
	}
	if cfg.StudentThreshold <= 0 {
		cfg.StudentThreshold = match.DefaultThreshold
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = retry.DefaultMaxAttempts
	}

	m := &Machine{
		gateway:    gateway,
		sampler:    sampler,
		students:   sampler,
		identifier: identifier,
		operator:   operator,
		publisher:  noopPublisher{},
		recorder:   metrics.NewNoOpRecorder(),
		observer:   noopObserver{},
		cfg:        cfg,
		now:        time.Now,
		log:        GetLogger(),
		state:      StateNoSession,
		marked:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Session returns the session this machine opened. ok is false before Open succeeds.
func (m *Machine) Session() (datastore.Session, bool) {
	return m.session, m.state != StateNoSession
}

// Class returns the class the session was opened for.
func (m *Machine) Class() datastore.ClassRef { return m.class }

// Marked returns the enrollment ids recorded in this session, sorted.
func (m *Machine) Marked() []string {
	return slices.Sorted(maps.Keys(m.marked))
}

// ClosedBy returns the teacher who closed the session, or "" while it is open.
func (m *Machine) ClosedBy() string { return m.closedBy }

// Run drives a whole session: Open, Step until the operator ends, then
// Close. A refused close keeps the session open and the loop running.
// Abandoning, device failures and cancellation end Run with the session
// still open; abandoning returns ErrAbandoned.
func (m *Machine) Run(ctx context.Context) error {
	if err := m.Open(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			m.log.Warn("attendance loop cancelled with session still open",
				logger.String("session_uuid", m.session.UUID))
			return cancelled(err, "run")
		}

		switch m.operator.NextAction() {
		case ActionAbandon:
			m.log.Warn("session abandoned while ongoing",
				logger.String("session_uuid", m.session.UUID),
				logger.Int("marked", len(m.marked)))
			m.operator.Notify("Session abandoned. It stays ongoing and cannot be closed later.")
			return errors.New(ErrAbandoned).
				Component("session").
				Category(errors.CategoryState).
				Context("operation", "run").
				Context("session_id", m.session.ID).
				Build()

		case ActionEnd:
			err := m.Close(ctx)
			switch {
			case err == nil:
				return nil
			case fatal(ctx, err):
				return err
			case errors.Is(err, errors.ErrAuthorizationDenied):
				m.operator.Notify("Teacher verification failed. The session remains open.")
			default:
				m.operator.Notify(fmt.Sprintf("Could not close the session: %v", err))
			}

		default:
			if _, err := m.Step(ctx); err != nil {
				if fatal(ctx, err) {
					return err
				}
				m.operator.Notify(fmt.Sprintf("Attendance not recorded: %v", err))
			}
		}
	}
}

// Open authenticates a teacher, lets the operator choose a class and
// creates an ongoing session. On any failure nothing is written and the
// machine stays in StateNoSession.
func (m *Machine) Open(ctx context.Context) error {
	if m.state != StateNoSession {
		return m.stateError("open")
	}

	if !m.operator.ConfirmTeacherRole() {
		m.operator.Notify("Only a teacher can start a session.")
		return errors.New(errors.ErrAuthorizationDenied).
			Component("session").
			Category(errors.CategoryAuthorization).
			Context("operation", "open").
			Context("reason", "role_not_teacher").
			Build()
	}

	m.operator.Notify("Look at the camera to verify teacher identity.")
	teacherID, err := m.authenticate(ctx, "open")
	if err != nil {
		return err
	}

	classes, err := m.gateway.ListOfferedClasses(ctx)
	if err != nil {
		return err
	}
	if len(classes) == 0 {
		m.operator.Notify("No class is currently offered.")
		return errors.New(ErrNoOfferedClass).
			Component("session").
			Category(errors.CategoryNotFound).
			Context("operation", "open").
			Build()
	}

	ref, ok := m.operator.SelectClass(classes)
	if !ok {
		m.operator.Notify("No class selected. The session was not started.")
		return errors.New(ErrNoClassSelected).
			Component("session").
			Category(errors.CategoryValidation).
			Context("operation", "open").
			Build()
	}

	s, err := m.gateway.CreateSession(ctx, ref, teacherID, m.now())
	if err != nil {
		return err
	}

	m.session = s
	m.class = ref
	m.log = GetLogger().WithContext(logger.WithTraceID(ctx, s.UUID))
	m.transition(StateSessionOpen)
	m.publishSession(ctx)

	m.operator.Notify(fmt.Sprintf("Session started for %s section %s. Students may now face the camera.",
		ref.SubjectCode, ref.SectionName))
	return nil
}

// Step captures one student sample and records the result. Students the
// camera does not recognize can be marked absent by enrollment id after
// the operator confirms.
func (m *Machine) Step(ctx context.Context) (Outcome, error) {
	if m.state != StateSessionOpen {
		return OutcomeNone, m.stateError("step")
	}

	vec, err := m.students.Sample(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrNoBiometricCaptured) {
			m.recorder.RecordOperation(metrics.OpMark, metrics.StatusEmpty)
			m.operator.Notify("No face detected. Please try again.")
			return OutcomeNoFace, nil
		}
		m.recordError(metrics.OpMark, err)
		return OutcomeNone, err
	}

	res, ok, err := m.identifier.Identify(ctx, match.RoleStudent, vec, m.cfg.StudentThreshold)
	if err != nil {
		m.recordError(metrics.OpMark, err)
		return OutcomeNone, err
	}
	if ok {
		m.observer.ObserveMatchDistance(string(match.RoleStudent), res.Distance)
		return m.markRecognized(ctx, res)
	}

	m.recorder.RecordOperation(metrics.OpMatch, metrics.StatusNoMatch)
	return m.markManual(ctx)
}

func (m *Machine) markRecognized(ctx context.Context, res match.Result) (Outcome, error) {
	id := res.PersonID
	if m.isMarked(id) {
		m.recorder.RecordOperation(metrics.OpMark, metrics.StatusDuplicate)
		m.operator.Notify(fmt.Sprintf("Attendance already recorded for student %s.", id))
		return OutcomeAlreadyMarked, nil
	}

	outcome, err := m.write(ctx, id, datastore.StatusPresent, &res.Distance, nil)
	if err != nil || outcome == OutcomeAlreadyMarked {
		return outcome, err
	}

	m.operator.Notify(fmt.Sprintf("Attendance recorded for student %s.", id))
	return OutcomeMarkedPresent, nil
}

func (m *Machine) markManual(ctx context.Context) (Outcome, error) {
	m.operator.Notify("Student not recognized.")

	id, ok := m.operator.ManualEnrollmentID()
	if !ok || id == "" {
		m.operator.Notify("No attendance recorded for this capture.")
		return OutcomeSkipped, nil
	}
	id, err := datastore.NormalizeID(id)
	if err != nil {
		m.operator.Notify("Invalid enrollment ID. Skipping.")
		return OutcomeSkipped, nil
	}
	if m.isMarked(id) {
		m.recorder.RecordOperation(metrics.OpMark, metrics.StatusDuplicate)
		m.operator.Notify(fmt.Sprintf("Attendance already recorded for student %s.", id))
		return OutcomeAlreadyMarked, nil
	}
	if !m.operator.Confirm(fmt.Sprintf("Mark student %s as absent?", id)) {
		m.operator.Notify("Absent marking canceled.")
		return OutcomeSkipped, nil
	}

	reason, excused := m.excuse(ctx)
	status := datastore.StatusAbsent
	if excused {
		status = datastore.StatusExcused
	}

	outcome, err := m.write(ctx, id, status, nil, reasonOrNil(reason, excused))
	switch {
	case errors.Is(err, datastore.ErrUnknownStudent):
		m.operator.Notify(fmt.Sprintf("No student is registered with enrollment ID %s.", id))
		return OutcomeSkipped, nil
	case err != nil || outcome == OutcomeAlreadyMarked:
		return outcome, err
	}

	if excused {
		m.operator.Notify(fmt.Sprintf("Student %s marked excused (%s).", id, reason.Reason))
		return OutcomeMarkedExcused, nil
	}
	m.operator.Notify(fmt.Sprintf("Student %s marked absent.", id))
	return OutcomeMarkedAbsent, nil
}

// excuse lets the operator attach an excuse reason to a manual absence.
// Without a catalog the absence stays plain.
func (m *Machine) excuse(ctx context.Context) (datastore.ExcuseReason, bool) {
	reasons, err := m.gateway.ListExcuseReasons(ctx)
	if err != nil {
		m.log.Warn("excuse reasons unavailable, recording a plain absence", logger.Error(err))
		return datastore.ExcuseReason{}, false
	}
	if len(reasons) == 0 {
		return datastore.ExcuseReason{}, false
	}
	return m.operator.SelectExcuseReason(reasons)
}

func reasonOrNil(reason datastore.ExcuseReason, ok bool) *datastore.ExcuseReason {
	if !ok {
		return nil
	}
	return &reason
}

// write inserts one attendance row. A conflict from storage means the
// row exists already, so the id joins the marked set either way.
func (m *Machine) write(ctx context.Context, id string, status datastore.AttendanceStatus, distance *float64, reason *datastore.ExcuseReason) (Outcome, error) {
	var reasonID *uint
	if reason != nil {
		reasonID = &reason.ID
	}

	start := time.Now()
	err := m.gateway.InsertAttendance(ctx, m.session.ID, id, status, reasonID)
	m.recorder.RecordDuration(metrics.OpMark, time.Since(start).Seconds())

	if errors.Is(err, errors.ErrAlreadyMarked) {
		m.marked[id] = struct{}{}
		m.recorder.RecordOperation(metrics.OpMark, metrics.StatusDuplicate)
		m.operator.Notify(fmt.Sprintf("Attendance already recorded for student %s.", id))
		return OutcomeAlreadyMarked, nil
	}
	if err != nil {
		m.recordError(metrics.OpMark, err)
		m.log.Error("attendance write failed",
			logger.String("enrollment_id", id),
			logger.String("status", string(status)),
			logger.Error(err))
		return OutcomeNone, err
	}

	m.marked[id] = struct{}{}
	m.recorder.RecordOperation(metrics.OpMark, string(status))
	m.log.Info("attendance recorded",
		logger.String("enrollment_id", id),
		logger.String("status", string(status)),
		logger.Int("marked", len(m.marked)))

	event := AttendanceEvent{
		SessionUUID:  m.session.UUID,
		SessionID:    m.session.ID,
		EnrollmentID: id,
		Status:       string(status),
		Distance:     distance,
		MarkedAt:     m.now(),
	}
	if reason != nil {
		event.ExcuseReason = reason.Reason
	}
	if err := m.publisher.PublishAttendance(ctx, event); err != nil {
		m.log.Warn("failed to publish attendance event", logger.Error(err))
	}
	return OutcomeNone, nil
}

// Close re-authenticates a teacher with a fresh capture and completes the
// session. A failed authentication returns ErrAuthorizationDenied and
// leaves the session open.
func (m *Machine) Close(ctx context.Context) error {
	if m.state != StateSessionOpen {
		return m.stateError("close")
	}

	m.operator.Notify("Look at the camera to close the session.")
	teacherID, err := m.authenticate(ctx, "close")
	if err != nil {
		return err
	}
	if teacherID != m.session.TeacherID {
		m.log.Info("session closed by a different teacher",
			logger.String("opened_by", m.session.TeacherID),
			logger.String("closed_by", teacherID))
	}

	end := m.now()
	if err := m.gateway.CloseSession(ctx, m.session.ID, end); err != nil {
		return err
	}

	m.session.Status = datastore.SessionCompleted
	m.session.EndTime = &end
	m.closedBy = teacherID
	m.transition(StateSessionClosed)
	m.publishSession(ctx)

	m.operator.Notify(fmt.Sprintf("Session closed. %d attendance records saved.", len(m.marked)))
	return nil
}

// authenticate identifies a teacher under the retry policy. A missing
// face or an unknown face consumes an attempt; anything else aborts.
func (m *Machine) authenticate(ctx context.Context, purpose string) (string, error) {
	var teacherID string

	policy := retry.Policy{
		MaxAttempts: m.cfg.MaxAttempts,
		Backoff:     m.cfg.Backoff,
		Retryable:   authRetryable,
		OnRetry: func(attempt int, err error) {
			m.operator.Notify(fmt.Sprintf("%s Attempt %d of %d.", authFailureText(err), attempt, m.cfg.MaxAttempts))
		},
	}

	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		start := time.Now()
		defer func() {
			m.recorder.RecordDuration(metrics.OpAuthenticate, time.Since(start).Seconds())
		}()

		vec, err := m.sampler.Sample(ctx)
		if err != nil {
			m.recordError(metrics.OpAuthenticate, err)
			return err
		}

		res, ok, err := m.identifier.Identify(ctx, match.RoleTeacher, vec, m.cfg.TeacherThreshold)
		if err != nil {
			m.recordError(metrics.OpAuthenticate, err)
			return err
		}
		if !ok {
			m.recorder.RecordOperation(metrics.OpAuthenticate, metrics.StatusNoMatch)
			return errors.New(errors.ErrNoMatch).
				Component("session").
				Context("role", string(match.RoleTeacher)).
				Context("attempt", attempt).
				Build()
		}

		m.observer.ObserveMatchDistance(string(match.RoleTeacher), res.Distance)
		m.recorder.RecordOperation(metrics.OpAuthenticate, metrics.StatusMatched)
		teacherID = res.PersonID
		return nil
	})

	if err == nil {
		m.log.Info("teacher authenticated",
			logger.String("purpose", purpose),
			logger.String("teacher_id", teacherID))
		return teacherID, nil
	}

	if !authRetryable(err) {
		return "", err
	}

	m.operator.Notify(authFailureText(err) + " Teacher verification failed.")
	m.log.Warn("teacher authentication failed",
		logger.String("purpose", purpose),
		logger.Int("attempts", m.cfg.MaxAttempts),
		logger.Error(err))
	return "", errors.New(errors.Join(errors.ErrAuthorizationDenied, err)).
		Component("session").
		Category(errors.CategoryAuthorization).
		Priority(errors.PriorityMedium).
		Context("operation", purpose).
		Context("attempts", m.cfg.MaxAttempts).
		Build()
}

func authRetryable(err error) bool {
	return errors.Is(err, errors.ErrNoBiometricCaptured) || errors.Is(err, errors.ErrNoMatch)
}

func authFailureText(err error) string {
	if errors.Is(err, errors.ErrNoBiometricCaptured) {
		return "No face detected."
	}
	return "Teacher not recognized."
}

func (m *Machine) isMarked(id string) bool {
	_, ok := m.marked[id]
	return ok
}

func (m *Machine) transition(to State) {
	from := m.state
	m.state = to
	m.observer.RecordTransition(string(from), string(to))
	m.recorder.RecordOperation(metrics.OpTransition, string(to))
	m.log.Info("session state changed",
		logger.String("from", string(from)),
		logger.String("to", string(to)),
		logger.String("session_uuid", m.session.UUID))
}

func (m *Machine) publishSession(ctx context.Context) {
	event := SessionEvent{
		SessionUUID: m.session.UUID,
		SessionID:   m.session.ID,
		ClassID:     m.class.ClassID,
		SubjectCode: m.class.SubjectCode,
		SectionName: m.class.SectionName,
		TeacherID:   m.session.TeacherID,
		State:       m.state,
		StartTime:   m.session.StartTime,
		EndTime:     m.session.EndTime,
	}
	if err := m.publisher.PublishSession(ctx, event); err != nil {
		m.log.Warn("failed to publish session event", logger.Error(err))
	}
}

func (m *Machine) recordError(op string, err error) {
	category := string(errors.CategoryGeneric)
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		category = ee.GetCategory()
	}
	m.recorder.RecordOperation(op, metrics.StatusError)
	m.recorder.RecordError(op, category)
}

func (m *Machine) stateError(op string) error {
	return errors.New(ErrInvalidState).
		Component("session").
		Category(errors.CategoryState).
		Context("operation", op).
		Context("state", string(m.state)).
		Build()
}

func cancelled(err error, op string) error {
	return errors.New(err).
		Component("session").
		Category(errors.CategoryCancellation).
		Context("operation", op).
		Build()
}

// fatal reports errors that end Run: device loss and cancellation.
func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, errors.ErrCaptureDeviceUnavailable) ||
		errors.IsCategory(err, errors.CategoryCancellation)
}
