package registration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroll/rollcall/internal/biometric"
	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/datastore"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/match"
	"github.com/classroll/rollcall/internal/testutil"
)

var today = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

type fakeCapturer struct {
	vec          biometric.FeatureVector
	err          error
	calls        int
	count        int
	instructions []string
}

func (c *fakeCapturer) Capture(_ context.Context, count int, instructions []string) (biometric.FeatureVector, error) {
	c.calls++
	c.count = count
	c.instructions = instructions
	return c.vec, c.err
}

type invalidations []match.Role

func (i *invalidations) Invalidate(role match.Role) { *i = append(*i, role) }

func TestEnrollStudent(t *testing.T) {
	t.Parallel()
	store := testutil.NewMemoryStore(t)
	capturer := &fakeCapturer{vec: biometric.FeatureVector{0.1, 0.2, 0.3}}
	var inv invalidations

	e := New(capturer, store, &conf.CaptureSettings{RegistrationImages: 10},
		WithInvalidator(&inv), WithClock(func() time.Time { return today }))

	require.NoError(t, e.Enroll(t.Context(), testutil.Person(match.RoleStudent, "2024001", "grace@school.edu")))

	assert.Equal(t, 1, capturer.calls)
	assert.Equal(t, 10, capturer.count)
	assert.Equal(t, conf.DefaultInstructions, capturer.instructions)
	assert.Equal(t, invalidations{match.RoleStudent}, inv)

	candidates, err := store.ListCandidates(t.Context(), match.RoleStudent)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "2024001", candidates[0].PersonID)
	assert.Equal(t, biometric.FeatureVector{0.1, 0.2, 0.3}, candidates[0].Vector)
}

func TestEnrollTeacherUsesConfiguredInstructions(t *testing.T) {
	t.Parallel()
	store := testutil.NewMemoryStore(t)
	capturer := &fakeCapturer{vec: biometric.FeatureVector{1}}

	e := New(capturer, store, &conf.CaptureSettings{RegistrationImages: 3, Instructions: []string{"Smile"}},
		WithClock(func() time.Time { return today }))
	require.NoError(t, e.Enroll(t.Context(), testutil.Person(match.RoleTeacher, "7", "t@school.edu")))

	assert.Equal(t, []string{"Smile"}, capturer.instructions)
	teachers, err := store.ListCandidates(t.Context(), match.RoleTeacher)
	require.NoError(t, err)
	assert.Len(t, teachers, 1)
}

func TestEnrollInvalidDetailsSkipCapture(t *testing.T) {
	t.Parallel()
	store := testutil.NewMemoryStore(t)
	capturer := &fakeCapturer{vec: biometric.FeatureVector{1}}
	e := New(capturer, store, &conf.CaptureSettings{}, WithClock(func() time.Time { return today }))

	p := testutil.Person(match.RoleStudent, "x1", "grace@school.edu")
	p.DateOfBirth = today.AddDate(0, 0, 1)

	err := e.Enroll(t.Context(), p)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Zero(t, capturer.calls)
}

func TestEnrollDuplicateEmailSkipsCapture(t *testing.T) {
	t.Parallel()
	store := testutil.NewMemoryStore(t)
	capturer := &fakeCapturer{vec: biometric.FeatureVector{1}}
	e := New(capturer, store, &conf.CaptureSettings{}, WithClock(func() time.Time { return today }))

	require.NoError(t, e.Enroll(t.Context(), testutil.Person(match.RoleStudent, "1", "grace@school.edu")))
	err := e.Enroll(t.Context(), testutil.Person(match.RoleStudent, "2", "GRACE@school.edu"))
	require.ErrorIs(t, err, datastore.ErrAlreadyRegistered)
	assert.Equal(t, 1, capturer.calls)

	// the same address is free for the other role
	require.NoError(t, e.Enroll(t.Context(), testutil.Person(match.RoleTeacher, "3", "grace@school.edu")))
}

func TestEnrollCaptureFailure(t *testing.T) {
	t.Parallel()
	store := testutil.NewMemoryStore(t)
	capturer := &fakeCapturer{err: errors.New(errors.ErrNoBiometricCaptured).Component("capture").Build()}
	e := New(capturer, store, &conf.CaptureSettings{}, WithClock(func() time.Time { return today }))

	err := e.Enroll(t.Context(), testutil.Person(match.RoleStudent, "1", "grace@school.edu"))
	require.ErrorIs(t, err, errors.ErrNoBiometricCaptured)

	registered, err := store.EmailRegistered(t.Context(), match.RoleStudent, "grace@school.edu")
	require.NoError(t, err)
	assert.False(t, registered)
}
