package datastore

import (
	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/classroll/rollcall/internal/errors"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// Lookup failures returned with CategoryNotFound.
var (
	ErrUnknownStudent = errors.NewStd("unknown enrollment id")
	ErrUnknownTeacher = errors.NewStd("unknown teacher id")
	ErrUnknownClass   = errors.NewStd("class is not offered")
	ErrUnknownSession = errors.NewStd("unknown session")
	ErrUnknownReason  = errors.NewStd("unknown excuse reason")
)

// ErrSessionNotOngoing is returned when writing to a completed session.
var ErrSessionNotOngoing = errors.NewStd("session is not ongoing")

// ErrAlreadyRegistered is returned for a duplicate id or e-mail within a role.
var ErrAlreadyRegistered = errors.NewStd("already registered")

// dbError wraps a driver failure as ErrPersistenceFailure.
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(errors.Join(errors.ErrPersistenceFailure, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Priority(errors.PriorityHigh).
		Context("operation", operation)
	return withContext(builder, context).Build()
}

func notFoundError(sentinel error, operation string, context ...any) error {
	builder := errors.New(sentinel).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Priority(errors.PriorityLow).
		Context("operation", operation)
	return withContext(builder, context).Build()
}

func conflictError(sentinel error, operation string, context ...any) error {
	builder := errors.New(sentinel).
		Component("datastore").
		Category(errors.CategoryConflict).
		Priority(errors.PriorityLow).
		Context("operation", operation)
	return withContext(builder, context).Build()
}

func stateError(sentinel error, operation string, context ...any) error {
	builder := errors.New(sentinel).
		Component("datastore").
		Category(errors.CategoryState).
		Context("operation", operation)
	return withContext(builder, context).Build()
}

// validationError creates a validation error for one input field.
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", value).
		Build()
}

func withContext(builder *errors.ErrorBuilder, context []any) *errors.ErrorBuilder {
	for i := 0; i+1 < len(context); i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}
	return builder
}

// isDuplicateKey reports a unique constraint violation from any supported driver.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}

// passthrough reports errors already built by this package, which
// transactions must return unchanged.
func passthrough(err error) bool {
	var ee *errors.EnhancedError
	return errors.As(err, &ee)
}
