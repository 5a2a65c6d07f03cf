package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classroll/rollcall/internal/biometric"
	"github.com/classroll/rollcall/internal/datastore"
	"github.com/classroll/rollcall/internal/match"
)

// NewMemoryStore opens an in-memory SQLite store that is closed when t ends.
func NewMemoryStore(t *testing.T, opts ...datastore.Option) *datastore.SQLiteStore {
	t.Helper()

	store := datastore.NewSQLiteStore(":memory:", opts...)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Person returns valid registration details for role. Names and the date
// of birth are fixed; id and email vary per caller.
func Person(role match.Role, id, email string) *datastore.Person {
	return &datastore.Person{
		Role:        role,
		ID:          id,
		FirstName:   "Grace",
		LastName:    "Hopper",
		Gender:      "female",
		DateOfBirth: time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC),
		Email:       email,
	}
}

// Register stores a person with vec as the biometric vector.
func Register(t *testing.T, store datastore.Registry, role match.Role, id, email string, vec biometric.FeatureVector) {
	t.Helper()

	p := Person(role, id, email)
	p.Vector = vec
	if role == match.RoleTeacher {
		require.NoError(t, store.RegisterTeacher(t.Context(), p))
		return
	}
	require.NoError(t, store.RegisterStudent(t.Context(), p))
}

// OfferClass creates the subject and section if needed and offers the class.
func OfferClass(t *testing.T, store datastore.Catalog, code, name, section string) datastore.AvailableClass {
	t.Helper()

	_, err := store.AddSubject(t.Context(), code, name)
	require.NoError(t, err)
	_, err = store.AddSection(t.Context(), section)
	require.NoError(t, err)
	class, err := store.OfferClass(t.Context(), code, section, nil)
	require.NoError(t, err)
	return class
}
