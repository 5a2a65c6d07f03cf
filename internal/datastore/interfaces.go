// interfaces.go: the persistence gateway used by the attendance workflow,
// plus registration and catalog management.
package datastore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/classroll/rollcall/internal/biometric"
	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/logger"
	"github.com/classroll/rollcall/internal/match"
	"github.com/classroll/rollcall/internal/observability/metrics"
)

// Gateway is what the session machine needs from storage. Every method
// runs in one transaction; driver failures surface as ErrPersistenceFailure.
type Gateway interface {
	ListCandidates(ctx context.Context, role match.Role) ([]match.Candidate, error)
	CreateSession(ctx context.Context, class ClassRef, teacherID string, start time.Time) (Session, error)
	CloseSession(ctx context.Context, sessionID uint, end time.Time) error
	InsertAttendance(ctx context.Context, sessionID uint, enrollmentID string, status AttendanceStatus, excuseReasonID *uint) error
	ListOfferedClasses(ctx context.Context) ([]OfferedClass, error)
	ListExcuseReasons(ctx context.Context) ([]ExcuseReason, error)
}

// Registry stores newly registered people.
type Registry interface {
	RegisterTeacher(ctx context.Context, p *Person) error
	RegisterStudent(ctx context.Context, p *Person) error
	EmailRegistered(ctx context.Context, role match.Role, email string) (bool, error)
}

// Catalog manages subjects, sections, offered classes and excuse reasons.
type Catalog interface {
	AddSubject(ctx context.Context, code, name string) (Subject, error)
	AddSection(ctx context.Context, name string) (Section, error)
	OfferClass(ctx context.Context, subjectCode, sectionName string, teacherID *string) (AvailableClass, error)
	AddExcuseReason(ctx context.Context, reason string) (ExcuseReason, error)
	ListExcuseReasons(ctx context.Context) ([]ExcuseReason, error)
	GetSession(ctx context.Context, sessionID uint) (Session, error)
	ListAttendance(ctx context.Context, sessionID uint) ([]Attendance, error)
}

// Interface is a complete, openable store.
type Interface interface {
	Open() error
	Close() error
	Gateway
	Registry
	Catalog
}

// DataStore implements Interface on a gorm database.
type DataStore struct {
	DB *gorm.DB

	recorder metrics.Recorder
	queries  *metrics.DatastoreMetrics
	now      func() time.Time
	log      logger.Logger
}

// Option configures a DataStore.
type Option func(*DataStore)

// WithMetrics records gateway operations and per-statement query metrics.
func WithMetrics(m *metrics.DatastoreMetrics) Option {
	return func(ds *DataStore) {
		if m != nil {
			ds.recorder = m
			ds.queries = m
		}
	}
}

// WithRecorder records gateway operations to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(ds *DataStore) { ds.recorder = metrics.OrNoOp(r) }
}

// WithClock overrides the clock used for attendance timestamps.
func WithClock(now func() time.Time) Option {
	return func(ds *DataStore) { ds.now = now }
}

func newDataStore(opts []Option) DataStore {
	ds := DataStore{
		recorder: metrics.NewNoOpRecorder(),
		now:      time.Now,
		log:      GetLogger(),
	}
	for _, opt := range opts {
		opt(&ds)
	}
	return ds
}

// New returns the store selected in settings. It is not opened.
func New(settings *conf.Settings, opts ...Option) (Interface, error) {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{DataStore: newDataStore(opts), Settings: settings}, nil
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{DataStore: newDataStore(opts), Settings: settings}, nil
	default:
		return nil, errors.Newf("no database enabled in output settings").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// track records duration and outcome of one gateway operation.
func (ds *DataStore) track(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	ds.recorder.RecordDuration(op, time.Since(start).Seconds())

	switch {
	case err == nil:
		ds.recorder.RecordOperation(op, metrics.StatusOK)
	case errors.Is(err, errors.ErrAlreadyMarked) || errors.Is(err, ErrAlreadyRegistered):
		ds.recorder.RecordOperation(op, metrics.StatusDuplicate)
	default:
		ds.recorder.RecordOperation(op, metrics.StatusError)
		category := string(errors.CategoryGeneric)
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			category = ee.GetCategory()
		}
		ds.recorder.RecordError(op, category)
	}
	return err
}

// transaction runs fn in one transaction. Errors built by fn are returned
// unchanged; anything else is a persistence failure.
func (ds *DataStore) transaction(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	if ds.DB == nil {
		return dbError(errors.NewStd("database connection is not initialized"), op)
	}
	err := ds.DB.WithContext(ctx).Transaction(fn)
	if err == nil || passthrough(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.New(ctxErr).
			Component("datastore").
			Category(errors.CategoryCancellation).
			Context("operation", op).
			Build()
	}
	return dbError(err, op)
}

type candidateRow struct {
	ID            string
	BiometricData []byte
}

// ListCandidates returns every stored vector for role, ordered by id.
// Records whose vector cannot be decoded are logged and skipped.
func (ds *DataStore) ListCandidates(ctx context.Context, role match.Role) ([]match.Candidate, error) {
	var candidates []match.Candidate

	err := ds.track(metrics.OpListCandidates, func() error {
		var model any
		var idColumn string
		switch role {
		case match.RoleTeacher:
			model, idColumn = &Teacher{}, "teacher_id"
		case match.RoleStudent:
			model, idColumn = &Student{}, "enrollment_id"
		default:
			return validationError("unknown role", "role", string(role))
		}

		var rows []candidateRow
		err := ds.transaction(ctx, "list_candidates", func(tx *gorm.DB) error {
			return tx.Model(model).
				Select(idColumn + " AS id, biometric_data").
				Order(idColumn).
				Scan(&rows).Error
		})
		if err != nil {
			return err
		}

		candidates = make([]match.Candidate, 0, len(rows))
		for i := range rows {
			vec, err := biometric.Decode(rows[i].BiometricData)
			if err != nil {
				ds.log.Error("skipping stored vector that cannot be decoded",
					logger.String("role", string(role)),
					logger.String("person_id", rows[i].ID),
					logger.Error(err))
				ds.recorder.RecordError(metrics.OpListCandidates, string(errors.CategoryValidation))
				continue
			}
			candidates = append(candidates, match.Candidate{PersonID: rows[i].ID, Vector: vec})
		}
		return nil
	})

	return candidates, err
}

// CreateSession opens an ongoing session for an offered class.
func (ds *DataStore) CreateSession(ctx context.Context, class ClassRef, teacherID string, start time.Time) (Session, error) {
	var session Session

	err := ds.track(metrics.OpCreateSession, func() error {
		return ds.transaction(ctx, "create_session", func(tx *gorm.DB) error {
			var ac AvailableClass
			if err := tx.First(&ac, class.ClassID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return notFoundError(ErrUnknownClass, "create_session", "class_id", class.ClassID)
				}
				return err
			}
			if !ac.Offered {
				return notFoundError(ErrUnknownClass, "create_session", "class_id", class.ClassID)
			}

			var teachers int64
			if err := tx.Model(&Teacher{}).Where("teacher_id = ?", teacherID).Count(&teachers).Error; err != nil {
				return err
			}
			if teachers == 0 {
				return notFoundError(ErrUnknownTeacher, "create_session", "teacher_id", teacherID)
			}

			session = Session{
				UUID:      uuid.NewString(),
				ClassID:   ac.ID,
				TeacherID: teacherID,
				Status:    SessionOngoing,
				StartTime: start,
			}
			return tx.Create(&session).Error
		})
	})
	if err != nil {
		return Session{}, err
	}

	ds.log.Info("session created",
		logger.String("session_uuid", session.UUID),
		logger.Uint64("class_id", uint64(session.ClassID)),
		logger.String("teacher_id", teacherID))
	return session, nil
}

// CloseSession marks an ongoing session completed at end.
func (ds *DataStore) CloseSession(ctx context.Context, sessionID uint, end time.Time) error {
	return ds.track(metrics.OpCloseSession, func() error {
		return ds.transaction(ctx, "close_session", func(tx *gorm.DB) error {
			var s Session
			if err := tx.First(&s, sessionID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return notFoundError(ErrUnknownSession, "close_session", "session_id", sessionID)
				}
				return err
			}
			if s.Status != SessionOngoing {
				return stateError(ErrSessionNotOngoing, "close_session",
					"session_id", sessionID, "status", string(s.Status))
			}
			return tx.Model(&s).Updates(map[string]any{
				"status":   SessionCompleted,
				"end_time": end,
			}).Error
		})
	})
}

// InsertAttendance records one mark. A second mark for the same session
// and student fails with ErrAlreadyMarked.
func (ds *DataStore) InsertAttendance(ctx context.Context, sessionID uint, enrollmentID string, status AttendanceStatus, excuseReasonID *uint) error {
	return ds.track(metrics.OpInsertAttendance, func() error {
		if !status.Valid() {
			return validationError("unknown attendance status", "attendance_status", string(status))
		}
		normalized, err := NormalizeID(enrollmentID)
		if err != nil {
			return err
		}
		enrollmentID = normalized

		return ds.transaction(ctx, "insert_attendance", func(tx *gorm.DB) error {
			var s Session
			if err := tx.First(&s, sessionID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return notFoundError(ErrUnknownSession, "insert_attendance", "session_id", sessionID)
				}
				return err
			}
			if s.Status != SessionOngoing {
				return stateError(ErrSessionNotOngoing, "insert_attendance", "session_id", sessionID)
			}

			var students int64
			if err := tx.Model(&Student{}).Where("enrollment_id = ?", enrollmentID).Count(&students).Error; err != nil {
				return err
			}
			if students == 0 {
				return notFoundError(ErrUnknownStudent, "insert_attendance", "enrollment_id", enrollmentID)
			}

			if excuseReasonID != nil {
				var reasons int64
				if err := tx.Model(&ExcuseReason{}).Where("id = ?", *excuseReasonID).Count(&reasons).Error; err != nil {
					return err
				}
				if reasons == 0 {
					return validationError("unknown excuse reason", "excuse_reason_id", *excuseReasonID)
				}
			}

			record := Attendance{
				SessionID:        sessionID,
				EnrollmentID:     enrollmentID,
				AttendanceStatus: status,
				ExcuseReasonID:   excuseReasonID,
				MarkedAt:         ds.now(),
			}
			if err := tx.Create(&record).Error; err != nil {
				if isDuplicateKey(err) {
					return conflictError(errors.ErrAlreadyMarked, "insert_attendance",
						"session_id", sessionID, "enrollment_id", enrollmentID)
				}
				return err
			}
			return nil
		})
	})
}

// ListOfferedClasses returns offered classes ordered by subject code and section.
func (ds *DataStore) ListOfferedClasses(ctx context.Context) ([]OfferedClass, error) {
	var classes []OfferedClass
	err := ds.track(metrics.OpListOfferedClasses, func() error {
		return ds.transaction(ctx, "list_offered_classes", func(tx *gorm.DB) error {
			return tx.Table("available_classes AS ac").
				Select("ac.id AS class_id, s.subject_code, s.subject_name, sec.section_name, ac.teacher_id").
				Joins("JOIN subjects s ON s.id = ac.subject_id").
				Joins("JOIN sections sec ON sec.id = ac.section_id").
				Where("ac.offered = ?", true).
				Order("s.subject_code, sec.section_name").
				Scan(&classes).Error
		})
	})
	return classes, err
}

// RegisterTeacher stores a validated teacher with the encoded vector.
func (ds *DataStore) RegisterTeacher(ctx context.Context, p *Person) error {
	if p.Role == "" {
		p.Role = match.RoleTeacher
	}
	if p.Role != match.RoleTeacher {
		return validationError("person is not a teacher", "role", string(p.Role))
	}
	return ds.register(ctx, p, func(gender string) any {
		return &Teacher{
			TeacherID:     p.ID,
			FirstName:     strings.TrimSpace(p.FirstName),
			LastName:      strings.TrimSpace(p.LastName),
			Gender:        gender,
			DateOfBirth:   p.DateOfBirth,
			Email:         strings.ToLower(p.Email),
			Phone:         p.Phone,
			BiometricData: biometric.Encode(p.Vector),
		}
	})
}

// RegisterStudent stores a validated student with the encoded vector.
func (ds *DataStore) RegisterStudent(ctx context.Context, p *Person) error {
	if p.Role == "" {
		p.Role = match.RoleStudent
	}
	if p.Role != match.RoleStudent {
		return validationError("person is not a student", "role", string(p.Role))
	}
	return ds.register(ctx, p, func(gender string) any {
		return &Student{
			EnrollmentID:  p.ID,
			FirstName:     strings.TrimSpace(p.FirstName),
			LastName:      strings.TrimSpace(p.LastName),
			Gender:        gender,
			DateOfBirth:   p.DateOfBirth,
			Email:         strings.ToLower(p.Email),
			Phone:         p.Phone,
			BiometricData: biometric.Encode(p.Vector),
		}
	})
}

func (ds *DataStore) register(ctx context.Context, p *Person, build func(gender string) any) error {
	return ds.track(metrics.OpRegister, func() error {
		if err := ValidatePerson(p, ds.now()); err != nil {
			return err
		}
		p.ID, _ = NormalizeID(p.ID)
		gender, _ := NormalizeGender(p.Gender)

		err := ds.transaction(ctx, "register", func(tx *gorm.DB) error {
			taken, err := emailTaken(tx, p.Role, p.Email)
			if err != nil {
				return err
			}
			if taken {
				return conflictError(ErrAlreadyRegistered, "register",
					"role", string(p.Role), "field", "email")
			}
			if err := tx.Create(build(gender)).Error; err != nil {
				if isDuplicateKey(err) {
					return conflictError(ErrAlreadyRegistered, "register",
						"role", string(p.Role), "field", "id", "id", p.ID)
				}
				return err
			}
			return nil
		})
		if err != nil {
			return err
		}

		ds.log.Info("person registered",
			logger.String("role", string(p.Role)),
			logger.String("id", p.ID),
			logger.String("email", logger.RedactEmail(p.Email)),
			logger.Int("dimension", len(p.Vector)))
		return nil
	})
}

// EmailRegistered reports whether email is already used within role,
// ignoring case.
func (ds *DataStore) EmailRegistered(ctx context.Context, role match.Role, email string) (bool, error) {
	var taken bool
	err := ds.transaction(ctx, "email_registered", func(tx *gorm.DB) error {
		var err error
		taken, err = emailTaken(tx, role, email)
		return err
	})
	return taken, err
}

func emailTaken(tx *gorm.DB, role match.Role, email string) (bool, error) {
	var model any
	switch role {
	case match.RoleTeacher:
		model = &Teacher{}
	case match.RoleStudent:
		model = &Student{}
	default:
		return false, validationError("unknown role", "role", string(role))
	}

	var count int64
	err := tx.Model(model).Where("LOWER(email) = LOWER(?)", email).Count(&count).Error
	return count > 0, err
}

// GetSession loads one session by id.
func (ds *DataStore) GetSession(ctx context.Context, sessionID uint) (Session, error) {
	var s Session
	err := ds.transaction(ctx, "get_session", func(tx *gorm.DB) error {
		if err := tx.First(&s, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError(ErrUnknownSession, "get_session", "session_id", sessionID)
			}
			return err
		}
		return nil
	})
	return s, err
}

// ListAttendance returns the marks of one session in the order they were made.
func (ds *DataStore) ListAttendance(ctx context.Context, sessionID uint) ([]Attendance, error) {
	var records []Attendance
	err := ds.transaction(ctx, "list_attendance", func(tx *gorm.DB) error {
		return tx.Where("session_id = ?", sessionID).Order("id").Find(&records).Error
	})
	return records, err
}
