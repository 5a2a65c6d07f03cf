//go:build integration

package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/classroll/rollcall/internal/biometric"
	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/match"
)

// Containers leave reaper goroutines behind, so leak checks only run
// without the integration tag.
func TestMain(m *testing.M) {
	m.Run()
}

func newMySQLStore(t *testing.T) *MySQLStore {
	t.Helper()
	ctx := t.Context()

	container, err := tcmysql.Run(ctx, "mysql:8.4",
		tcmysql.WithDatabase("attendance"),
		tcmysql.WithUsername("roll"),
		tcmysql.WithPassword("secret"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Output.MySQL.Enabled = true
	settings.Output.MySQL.Host = host
	settings.Output.MySQL.Port = port.Port()
	settings.Output.MySQL.Username = "roll"
	settings.Output.MySQL.Password = "secret"
	settings.Output.MySQL.Database = "attendance"

	store, err := New(settings, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	mysqlStore, ok := store.(*MySQLStore)
	require.True(t, ok)
	return mysqlStore
}

func TestMySQLAttendanceDuplicate(t *testing.T) {
	store := newMySQLStore(t)
	ctx := t.Context()

	require.NoError(t, store.RegisterTeacher(ctx, testPerson(match.RoleTeacher, "100", "t@example.com", biometric.FeatureVector{0.1, 0.2})))
	require.NoError(t, store.RegisterStudent(ctx, testPerson(match.RoleStudent, "1", "s@example.com", biometric.FeatureVector{0.3, 0.4})))
	_, err := store.AddSubject(ctx, "CS101", "Intro")
	require.NoError(t, err)
	_, err = store.AddSection(ctx, "A")
	require.NoError(t, err)
	_, err = store.OfferClass(ctx, "CS101", "A", nil)
	require.NoError(t, err)

	classes, err := store.ListOfferedClasses(ctx)
	require.NoError(t, err)
	require.Len(t, classes, 1)

	session, err := store.CreateSession(ctx, classes[0].Ref(), "100", testNow)
	require.NoError(t, err)

	require.NoError(t, store.InsertAttendance(ctx, session.ID, "1", StatusPresent, nil))
	err = store.InsertAttendance(ctx, session.ID, "1", StatusPresent, nil)
	require.ErrorIs(t, err, errors.ErrAlreadyMarked)

	candidates, err := store.ListCandidates(ctx, match.RoleStudent)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, biometric.FeatureVector{0.3, 0.4}, candidates[0].Vector)

	require.NoError(t, store.CloseSession(ctx, session.ID, testNow.Add(time.Hour)))
}
