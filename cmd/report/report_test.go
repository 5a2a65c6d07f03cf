package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroll/rollcall/internal/biometric"
	"github.com/classroll/rollcall/internal/datastore"
	"github.com/classroll/rollcall/internal/match"
	"github.com/classroll/rollcall/internal/testutil"
)

func TestRenderSession(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	store := testutil.NewMemoryStore(t)
	testutil.Register(t, store, match.RoleTeacher, "100", "t@school.edu", biometric.FeatureVector{0, 0})
	testutil.Register(t, store, match.RoleStudent, "1", "s1@school.edu", biometric.FeatureVector{1, 0})
	class := testutil.OfferClass(t, store, "CS101", "Intro to Computing", "A")

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s, err := store.CreateSession(ctx, datastore.ClassRef{ClassID: class.ID}, "100", start)
	require.NoError(t, err)
	require.NoError(t, store.InsertAttendance(ctx, s.ID, "1", datastore.StatusPresent, nil))
	require.NoError(t, store.CloseSession(ctx, s.ID, start.Add(time.Hour)))

	out, err := Render(ctx, store, s.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "CS101 (A)")
	assert.Contains(t, out, "Status: completed")
	assert.Contains(t, out, "Present: 1  Absent: 0")
}

func TestRenderUnknownSession(t *testing.T) {
	t.Parallel()

	_, err := Render(t.Context(), testutil.NewMemoryStore(t), 42)
	require.ErrorIs(t, err, datastore.ErrUnknownSession)
}
