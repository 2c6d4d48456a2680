package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/example/spinsight/internal/models"
	"github.com/example/spinsight/internal/testutil"
)

var t0 = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*gorm.DB, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(t0)
	return testutil.NewDB(t, clock.Now), clock
}

func createUser(t *testing.T, store *UserStore, email string) *models.User {
	t.Helper()
	user := &models.User{Name: "Test", Email: email, Phone: "+100", PasswordHash: "hash", IsActive: true}
	require.NoError(t, store.Create(context.Background(), user))
	return user
}

func TestUserStore(t *testing.T) {
	db, _ := setup(t)
	store := NewUserStore(db)
	ctx := context.Background()

	user := createUser(t, store, "rep@example.com")
	assert.NotEqual(t, uuid.Nil, user.ID)

	t.Run("duplicate email", func(t *testing.T) {
		err := store.Create(ctx, &models.User{Name: "Other", Email: "rep@example.com", PasswordHash: "x"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("find", func(t *testing.T) {
		found, err := store.FindByEmail(ctx, "rep@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
		assert.Equal(t, models.RoleSalesRep, found.Role)

		_, err = store.FindByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)

		exists, err := store.EmailExists(ctx, "rep@example.com")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("mark verified and stats", func(t *testing.T) {
		require.NoError(t, store.MarkEmailVerified(ctx, user.ID, t0))
		require.NoError(t, store.UpdateStats(ctx, user.ID, models.UserStats{TotalRecordings: 3, AvgSpinScore: 70}))

		found, err := store.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, found.IsEmailVerified)
		require.NotNil(t, found.LastLoginAt)
		assert.EqualValues(t, 3, found.Stats.TotalRecordings)
		assert.Equal(t, 70, found.Stats.AvgSpinScore)
	})

	t.Run("update missing user", func(t *testing.T) {
		assert.ErrorIs(t, store.UpdatePasswordHash(ctx, uuid.New(), "x"), ErrNotFound)
	})
}

func TestCodeStore_IssueInvalidatesEarlierCodes(t *testing.T) {
	db, clock := setup(t)
	store := NewCodeStore(db)
	ctx := context.Background()

	first := &models.OneTimeCode{Email: "a@example.com", Purpose: models.PurposeEmailVerification, Code: "111111", ExpiresAt: t0.Add(10 * time.Minute), MaxAttempts: 5}
	require.NoError(t, store.Issue(ctx, first))

	clock.Advance(time.Minute)
	other := &models.OneTimeCode{Email: "a@example.com", Purpose: models.PurposePasswordReset, Code: "333333", ExpiresAt: clock.Now().Add(10 * time.Minute), MaxAttempts: 5}
	require.NoError(t, store.Issue(ctx, other))

	clock.Advance(time.Minute)
	second := &models.OneTimeCode{Email: "a@example.com", Purpose: models.PurposeEmailVerification, Code: "222222", ExpiresAt: clock.Now().Add(10 * time.Minute), MaxAttempts: 5}
	require.NoError(t, store.Issue(ctx, second))

	latest, err := store.Latest(ctx, "a@example.com", models.PurposeEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.False(t, latest.Used)

	var old models.OneTimeCode
	require.NoError(t, db.First(&old, "id = ?", first.ID).Error)
	assert.True(t, old.Used)

	reset, err := store.LatestUnused(ctx, "a@example.com", models.PurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, other.ID, reset.ID, "other purposes are untouched")
}

func TestCodeStore_AttemptsAndConsumption(t *testing.T) {
	db, _ := setup(t)
	store := NewCodeStore(db)
	ctx := context.Background()

	code := &models.OneTimeCode{Email: "a@example.com", Purpose: models.PurposeLogin, Code: "123456", ExpiresAt: t0.Add(time.Minute), MaxAttempts: 3}
	require.NoError(t, store.Issue(ctx, code))

	for want := 1; want <= 3; want++ {
		got, err := store.IncrementAttempts(ctx, code.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	ok, err := store.MarkUsed(ctx, code.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkUsed(ctx, code.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second consumption must fail")

	_, err = store.LatestUnused(ctx, "a@example.com", models.PurposeLogin)
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err := store.DeleteExpiredBefore(ctx, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func newSession(userID uuid.UUID, token string, expires time.Time) *models.Session {
	return &models.Session{
		UserID:         userID,
		Token:          token,
		IsActive:       true,
		LastActivityAt: t0,
		ExpiresAt:      expires,
	}
}

func TestSessionStore_RevokeAllExceptKeepsOne(t *testing.T) {
	db, _ := setup(t)
	store := NewSessionStore(db)
	ctx := context.Background()
	userID := uuid.New()
	stranger := uuid.New()

	for _, token := range []string{"a", "b", "c"} {
		require.NoError(t, store.Create(ctx, newSession(userID, token, t0.Add(time.Hour))))
	}
	require.NoError(t, store.Create(ctx, newSession(stranger, "z", t0.Add(time.Hour))))

	n, err := store.RevokeAllExcept(ctx, userID, "b")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	active, err := store.ListActive(ctx, userID, t0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].Token)

	others, err := store.ListActive(ctx, stranger, t0)
	require.NoError(t, err)
	assert.Len(t, others, 1, "other users keep their sessions")
}

func TestSessionStore_RevokeIsIdempotent(t *testing.T) {
	db, _ := setup(t)
	store := NewSessionStore(db)
	ctx := context.Background()

	session := newSession(uuid.New(), "tok", t0.Add(time.Hour))
	require.NoError(t, store.Create(ctx, session))

	revoked, err := store.Revoke(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = store.Revoke(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, revoked)

	found, err := store.FindByToken(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, found.IsActive)
}

func TestSessionStore_ListActiveOrdersByActivity(t *testing.T) {
	db, _ := setup(t)
	store := NewSessionStore(db)
	ctx := context.Background()
	userID := uuid.New()

	older := newSession(userID, "older", t0.Add(time.Hour))
	newer := newSession(userID, "newer", t0.Add(time.Hour))
	expired := newSession(userID, "expired", t0.Add(-time.Minute))
	for _, s := range []*models.Session{older, newer, expired} {
		require.NoError(t, store.Create(ctx, s))
	}
	require.NoError(t, store.Touch(ctx, newer.ID, t0.Add(5*time.Minute)))

	active, err := store.ListActive(ctx, userID, t0)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "newer", active[0].Token)
	assert.Equal(t, "older", active[1].Token)
}

func TestSessionStore_RevokeExpiredConverges(t *testing.T) {
	db, clock := setup(t)
	store := NewSessionStore(db)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.Create(ctx, newSession(userID, "e1", t0.Add(-time.Hour))))
	require.NoError(t, store.Create(ctx, newSession(userID, "e2", t0.Add(-time.Minute))))
	require.NoError(t, store.Create(ctx, newSession(userID, "live", t0.Add(time.Hour))))

	n, err := store.RevokeExpired(ctx, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = store.RevokeExpired(ctx, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	active, err := store.ListActive(ctx, userID, t0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "live", active[0].Token)

	clock.Advance(48 * time.Hour)
	deleted, err := store.DeleteInactiveBefore(ctx, clock.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}

func TestStoresReportUnavailableStore(t *testing.T) {
	ctx := context.Background()

	_, err := NewSessionStore(nil).RevokeExpired(ctx, t0)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	db, _ := setup(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = NewSessionStore(db).RevokeExpired(ctx, t0)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func score(v float64) *float64 { return &v }

func TestRecordingStore_FindFilters(t *testing.T) {
	db, clock := setup(t)
	store := NewRecordingStore(db)
	ctx := context.Background()
	userID := uuid.New()

	mk := func(title string, status models.RecordingStatus) *models.Recording {
		r := &models.Recording{
			UserID: userID,
			Title:  title,
			Status: status,
			Tags:   datatypes.JSONSlice[string]{"demo"},
			Analysis: datatypes.NewJSONType(models.RecordingAnalysis{
				Spin: &models.SpinAnalysis{Overall: &models.SpinOverall{Score: score(80)}},
			}),
		}
		require.NoError(t, store.Create(ctx, r))
		clock.Advance(24 * time.Hour)
		return r
	}

	first := mk("first", models.RecordingActive)
	mk("gone", models.RecordingDeleted)
	third := mk("third", models.RecordingArchived)

	all, err := store.Find(ctx, RecordingFilter{UserID: userID, ExcludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, third.ID, all[1].ID)

	got, ok := all[0].Analysis.Data().OverallSpinScore()
	assert.True(t, ok)
	assert.Equal(t, 80.0, got)

	from := t0.Add(36 * time.Hour)
	windowed, err := store.Find(ctx, RecordingFilter{UserID: userID, ExcludeDeleted: true, CreatedFrom: &from})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, third.ID, windowed[0].ID)

	require.NoError(t, store.SoftDelete(ctx, userID, first.ID))
	assert.ErrorIs(t, store.SoftDelete(ctx, userID, first.ID), ErrNotFound)
	_, err = store.Get(ctx, userID, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	page, total, err := store.List(ctx, RecordingFilter{UserID: userID, ExcludeDeleted: true, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, page, 1)
}

func TestAppointmentStore_CountWindow(t *testing.T) {
	db, _ := setup(t)
	store := NewAppointmentStore(db)
	ctx := context.Background()
	userID := uuid.New()

	for _, offset := range []time.Duration{-48 * time.Hour, 0, 72 * time.Hour} {
		require.NoError(t, store.Create(ctx, &models.Appointment{
			UserID:        userID,
			Client:        models.AppointmentClient{Name: "Client", Company: "Acme"},
			ScheduledDate: t0.Add(offset),
		}))
	}

	total, err := store.Count(ctx, AppointmentFilter{UserID: userID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	from, to := t0.Add(-time.Hour), t0.Add(time.Hour)
	windowed, err := store.Count(ctx, AppointmentFilter{UserID: userID, From: &from, To: &to})
	require.NoError(t, err)
	assert.EqualValues(t, 1, windowed)

	list, err := store.Find(ctx, AppointmentFilter{UserID: userID, Status: "scheduled"})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].ScheduledDate.Before(list[1].ScheduledDate))

	updated, err := store.Update(ctx, userID, list[0].ID, "completed", "went well")
	require.NoError(t, err)
	assert.Equal(t, "completed", updated.Status)
	assert.Equal(t, "went well", updated.Notes)

	_, err = store.Update(ctx, uuid.New(), list[0].ID, "cancelled", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotificationStore_ReadState(t *testing.T) {
	db, _ := setup(t)
	store := NewNotificationStore(db)
	ctx := context.Background()
	userID := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		n := &models.Notification{UserID: userID, Type: models.NotificationRecordingUploaded, Title: "t", Message: "m", ExpiresAt: t0.Add(time.Hour)}
		require.NoError(t, store.Create(ctx, n))
		ids = append(ids, n.ID)
	}

	require.NoError(t, store.MarkRead(ctx, userID, ids[0], t0))
	require.NoError(t, store.MarkRead(ctx, userID, ids[0], t0))
	assert.ErrorIs(t, store.MarkRead(ctx, uuid.New(), ids[1], t0), ErrNotFound)

	unread, err := store.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	list, err := store.List(ctx, userID, true, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	n, err := store.MarkAllRead(ctx, userID, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	unread, err = store.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}
