package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/spinsight/internal/handlers"
	"github.com/example/spinsight/internal/repository"
	"github.com/example/spinsight/internal/services"
	"github.com/example/spinsight/internal/testutil"
	"github.com/example/spinsight/internal/utils"
)

type outbox struct {
	mu   sync.Mutex
	sent []services.NotificationKind
}

func (o *outbox) Send(ctx context.Context, kind services.NotificationKind, recipient string, payload services.Payload) services.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, kind)
	return services.Result{Success: true}
}

func (o *outbox) kinds() []services.NotificationKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]services.NotificationKind(nil), o.sent...)
}

type testServer struct {
	app   *fiber.App
	clock *testutil.Clock
	mail  *outbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	clock := testutil.NewClock(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))
	db := testutil.NewDB(t, clock.Now)
	mail := &outbox{}

	users := repository.NewUserStore(db)
	codes := repository.NewCodeStore(db)
	sessionStore := repository.NewSessionStore(db)
	appointments := repository.NewAppointmentStore(db)
	recordings := repository.NewRecordingStore(db)
	notifications := repository.NewNotificationStore(db)

	signer := utils.NewSigner("flow-secret", clock.Now)
	sessions := services.NewSessionService(sessionStore, users, signer, time.Hour, clock.Now, nil)
	auth := services.NewAuthService(users, codes, sessions, mail, nil, services.AuthConfig{
		CodeTTL:     10 * time.Minute,
		MaxAttempts: 5,
		BcryptCost:  bcrypt.MinCost,
	}, clock.Now, nil).WithCodeGenerator(func() (string, error) { return "123456", nil })
	dashboard := services.NewDashboardService(recordings, appointments, time.UTC, clock.Now, nil)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(nil)})
	Register(app, Deps{
		Auth:          auth,
		Dashboard:     dashboard,
		Notifier:      mail,
		Users:         users,
		Appointments:  appointments,
		Recordings:    recordings,
		Notifications: notifications,
		Location:      time.UTC,
		Now:           clock.Now,
	})

	return &testServer{app: app, clock: clock, mail: mail}
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v), string(raw))
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Dana Rep",
		"email":    "Dana@Example.com",
		"phone":    "+15550100",
		"password": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var registered struct {
		UserID    string `json:"user_id"`
		Email     string `json:"email"`
		EmailSent bool   `json:"verification_email_sent"`
	}
	decode(t, env.Data, &registered)
	assert.Equal(t, "dana@example.com", registered.Email)
	assert.True(t, registered.EmailSent)
	assert.Contains(t, s.mail.kinds(), services.NotifyVerificationCode)

	status, env = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Dup", "email": "dana@example.com", "phone": "1", "password": "another-pass",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate_email", env.Code)

	status, env = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "dana@example.com", "password": "s3cret-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "email_not_verified", env.Code)

	status, env = s.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{
		"user_id": registered.UserID, "otp": "654321",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "code_invalid", env.Code)

	status, env = s.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{
		"user_id": registered.UserID, "otp": "123456", "device_type": "mobile", "platform": "ios",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	var verified struct {
		Token string `json:"token"`
	}
	decode(t, env.Data, &verified)
	require.NotEmpty(t, verified.Token)
	token := verified.Token

	status, env = s.do(t, http.MethodGet, "/api/dashboard/stats", token, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var stats services.DashboardStats
	decode(t, env.Data, &stats)
	assert.Zero(t, stats.TotalCalls)
	assert.Equal(t, []string{"Week 1", "Week 2", "Week 3", "Week 4"}, stats.SpinTrends.Labels)

	status, env = s.do(t, http.MethodGet, "/api/auth/sessions", token, nil)
	require.Equal(t, http.StatusOK, status)
	var sessions []services.SessionView
	decode(t, env.Data, &sessions)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].IsCurrent)
	assert.Equal(t, "ios", sessions[0].DeviceInfo.Platform)

	status, _ = s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(t, http.MethodGet, "/api/dashboard/stats", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "session_revoked", env.Code)
	assert.False(t, env.Success)
}

func login(t *testing.T, s *testServer, email string) string {
	t.Helper()

	status, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Rep", "email": email, "phone": "+15550101", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var registered struct {
		UserID string `json:"user_id"`
	}
	decode(t, env.Data, &registered)

	status, env = s.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{
		"user_id": registered.UserID, "otp": "123456",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	var verified struct {
		Token string `json:"token"`
	}
	decode(t, env.Data, &verified)
	return verified.Token
}

func TestAuthMiddlewareRejections(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "token_missing", env.Code)

	status, env = s.do(t, http.MethodGet, "/api/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "token_invalid", env.Code)

	token := login(t, s, "rep@example.com")
	s.clock.Advance(time.Hour)

	status, env = s.do(t, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "session_expired", env.Code)

	status, env = s.do(t, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "session_revoked", env.Code)
}

func TestResourceEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s, "rep@example.com")

	status, env := s.do(t, http.MethodPost, "/api/appointments", token, map[string]interface{}{
		"client_name": "Acme Buyer",
		"company":     "Acme",
		"date":        "2024-03-20",
		"time":        "10:30",
		"type":        "demo",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var appointment struct {
		ID   string `json:"id"`
		Date string `json:"date"`
		Time string `json:"time"`
	}
	decode(t, env.Data, &appointment)
	assert.Equal(t, "2024-03-20", appointment.Date)
	assert.Equal(t, "10:30", appointment.Time)
	assert.Contains(t, s.mail.kinds(), services.NotifyAppointmentCreated)

	status, env = s.do(t, http.MethodPost, "/api/appointments", token, map[string]interface{}{
		"client_name": "Acme Buyer", "company": "Acme", "date": "20/03/2024", "time": "10:30", "type": "demo",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPut, "/api/appointments/"+appointment.ID, token, map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(t, http.MethodGet, "/api/appointments?status=confirmed&date=2024-03-20", token, nil)
	require.Equal(t, http.StatusOK, status)
	var listed []map[string]interface{}
	decode(t, env.Data, &listed)
	assert.Len(t, listed, 1)

	status, env = s.do(t, http.MethodPost, "/api/recordings", token, map[string]interface{}{
		"appointment_id": appointment.ID,
		"file_name":      "call.mp3",
		"file_url":       "/uploads/recordings/call.mp3",
		"duration":       125,
		"analysis": map[string]interface{}{
			"status":    "completed",
			"sentiment": map[string]interface{}{"overall": "positive"},
			"spin":      map[string]interface{}{"overall": map[string]interface{}{"score": 72}},
		},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var recording struct {
		ID       string `json:"id"`
		Duration string `json:"duration"`
		Analyzed bool   `json:"analyzed"`
	}
	decode(t, env.Data, &recording)
	assert.Equal(t, "02:05", recording.Duration)
	assert.True(t, recording.Analyzed)

	status, env = s.do(t, http.MethodGet, "/api/recordings/"+recording.ID+"/analysis", token, nil)
	require.Equal(t, http.StatusOK, status)
	var analysis struct {
		Analyzed bool `json:"analyzed"`
	}
	decode(t, env.Data, &analysis)
	assert.True(t, analysis.Analyzed)

	status, env = s.do(t, http.MethodGet, "/api/dashboard/stats", token, nil)
	require.Equal(t, http.StatusOK, status)
	var stats services.DashboardStats
	decode(t, env.Data, &stats)
	assert.EqualValues(t, 1, stats.TotalCalls)
	assert.EqualValues(t, 1, stats.TotalAppointments)
	assert.Equal(t, 72, stats.AvgSpinScore)
	assert.Equal(t, 100, stats.SentimentDistribution.Positive)

	status, env = s.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	var profile struct {
		JoinedDate string `json:"joined_date"`
		Stats      struct {
			TotalCalls   int64 `json:"total_calls"`
			AvgSpinScore int   `json:"avg_spin_score"`
		} `json:"stats"`
	}
	decode(t, env.Data, &profile)
	assert.Equal(t, "2024-03-15", profile.JoinedDate)
	assert.EqualValues(t, 1, profile.Stats.TotalCalls, "all-time stats refresh the snapshot")
	assert.Equal(t, 72, profile.Stats.AvgSpinScore)

	status, env = s.do(t, http.MethodGet, "/api/notifications/unread-count", token, nil)
	require.Equal(t, http.StatusOK, status)
	var unread struct {
		UnreadCount int64 `json:"unread_count"`
	}
	decode(t, env.Data, &unread)
	assert.EqualValues(t, 2, unread.UnreadCount)

	status, _ = s.do(t, http.MethodPut, "/api/notifications/read-all", token, nil)
	require.Equal(t, http.StatusOK, status)
	_, env = s.do(t, http.MethodGet, "/api/notifications/unread-count", token, nil)
	decode(t, env.Data, &unread)
	assert.Zero(t, unread.UnreadCount)

	status, _ = s.do(t, http.MethodDelete, "/api/recordings/"+recording.ID, token, nil)
	require.Equal(t, http.StatusOK, status)
	status, env = s.do(t, http.MethodGet, "/api/recordings/"+recording.ID+"/analysis", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", env.Code)
}

func TestCreateRecordingRejectsBadAppointment(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s, "rep@example.com")

	for _, id := range []string{"not-a-uuid", "{6ba7b810-9dad-11d1-80b4-00c04fd430c8}", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"} {
		status, env := s.do(t, http.MethodPost, "/api/recordings", token, map[string]interface{}{
			"appointment_id": id,
			"file_name":      "call.mp3",
			"file_url":       "/uploads/recordings/call.mp3",
		})
		assert.Equal(t, http.StatusBadRequest, status, id)
		assert.False(t, env.Success, id)
	}

	status, env := s.do(t, http.MethodGet, "/api/recordings", token, nil)
	require.Equal(t, http.StatusOK, status)
	var listed []map[string]interface{}
	decode(t, env.Data, &listed)
	assert.Empty(t, listed)
}

func TestRevokeOtherSessions(t *testing.T) {
	s := newTestServer(t)
	first := login(t, s, "rep@example.com")

	status, env := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "rep@example.com", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	var second struct {
		Token string `json:"token"`
	}
	decode(t, env.Data, &second)

	status, _ = s.do(t, http.MethodPost, "/api/auth/revoke-sessions", second.Token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodGet, "/api/profile", first, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = s.do(t, http.MethodGet, "/api/profile", second.Token, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
