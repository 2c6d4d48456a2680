package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/spinsight/internal/apperr"
)

func TestNotifierRouter(t *testing.T) {
	var gotDeadline bool
	email := NotifierFunc(func(ctx context.Context, kind NotificationKind, recipient string, payload Payload) Result {
		_, gotDeadline = ctx.Deadline()
		return Result{Success: true}
	})
	var alerts int
	telegram := NotifierFunc(func(ctx context.Context, kind NotificationKind, recipient string, payload Payload) Result {
		alerts++
		return Result{Success: true}
	})
	broken := NotifierFunc(func(ctx context.Context, kind NotificationKind, recipient string, payload Payload) Result {
		panic("boom")
	})

	router := NewNotifierRouter(email, time.Second, nil).
		Route(NotifyAdminAlert, telegram).
		Route(NotifyAppointmentCreated, broken)
	ctx := context.Background()

	res := router.Send(ctx, NotifyVerificationCode, "a@example.com", Payload{"code": "123456"})
	assert.True(t, res.Success)
	assert.True(t, gotDeadline, "sends run under a timeout")

	res = router.Send(ctx, NotifyAdminAlert, "", Payload{})
	assert.True(t, res.Success)
	assert.Equal(t, 1, alerts)

	res = router.Send(ctx, NotifyAppointmentCreated, "a@example.com", Payload{})
	assert.False(t, res.Success)
	assert.Error(t, res.Err)
}

func TestEmailService_Unconfigured(t *testing.T) {
	svc := NewEmailService(EmailConfig{}, nil)
	res := svc.Send(context.Background(), NotifyVerificationCode, "a@example.com", Payload{"code": "123456"})
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrEmailNotConfigured)
}

func TestRenderEmail(t *testing.T) {
	subject, body := renderEmail(NotifyPasswordReset, Payload{"name": "Sam", "code": "654321", "expires_in_minutes": "10"})
	assert.Equal(t, "Password reset code", subject)
	assert.Contains(t, body, "654321")
	assert.Contains(t, body, "10 minutes")

	msg := string(buildMessage("from@example.com", "to@example.com", subject, body))
	assert.Contains(t, msg, "Subject: Password reset code\r\n")
	assert.Contains(t, msg, "\r\n\r\nHello Sam")
}

func TestTelegramService_Send(t *testing.T) {
	var got telegramMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewTelegramService("TOKEN", "42", nil)
	svc.baseURL = srv.URL

	res := svc.Send(context.Background(), NotifyAdminAlert, "", Payload{"title": "New user registered", "email": "a<b>@example.com"})
	require.True(t, res.Success, "%v", res.Err)
	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.Contains(t, got.Text, "<b>New user registered</b>")
	assert.Contains(t, got.Text, "a&lt;b&gt;@example.com")
}

func TestTelegramService_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewTelegramService("TOKEN", "42", nil)
	svc.baseURL = srv.URL
	res := svc.Send(context.Background(), NotifyAdminAlert, "", Payload{})
	assert.False(t, res.Success)
	assert.Error(t, res.Err)

	unconfigured := NewTelegramService("", "", nil)
	assert.True(t, unconfigured.Send(context.Background(), NotifyAdminAlert, "", Payload{}).Success)
}

func TestRedisCodeLimiter(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewRedisCodeLimiter(rdb, 15*time.Minute, 2, nil)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "a@example.com", "password_reset"))
	require.NoError(t, limiter.Allow(ctx, "a@example.com", "password_reset"))
	assert.ErrorIs(t, limiter.Allow(ctx, "a@example.com", "password_reset"), apperr.ErrTooManyRequests)

	assert.NoError(t, limiter.Allow(ctx, "a@example.com", "email_verification"), "budgets are per purpose")
	assert.NoError(t, limiter.Allow(ctx, "b@example.com", "password_reset"), "budgets are per subject")

	mr.FastForward(16 * time.Minute)
	assert.NoError(t, limiter.Allow(ctx, "a@example.com", "password_reset"), "window expired")

	mr.Close()
	assert.NoError(t, limiter.Allow(ctx, "c@example.com", "password_reset"), "redis outage does not block requests")

	var disabled *RedisCodeLimiter
	assert.NoError(t, disabled.Allow(ctx, "a@example.com", "login"))
}

func TestRedisCodeLimiter_WindowIsFixed(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	limiter := NewRedisCodeLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 10*time.Minute, 2, nil)
	ctx := context.Background()
	key := "otp:count:login:a@example.com"

	require.NoError(t, limiter.Allow(ctx, "a@example.com", "login"))
	assert.Equal(t, 10*time.Minute, mr.TTL(key))

	mr.FastForward(4 * time.Minute)
	require.NoError(t, limiter.Allow(ctx, "a@example.com", "login"))
	assert.Equal(t, 6*time.Minute, mr.TTL(key), "later requests keep the original deadline")
	assert.ErrorIs(t, limiter.Allow(ctx, "a@example.com", "login"), apperr.ErrTooManyRequests)

	mr.FastForward(6 * time.Minute)
	assert.False(t, mr.Exists(key))
	assert.NoError(t, limiter.Allow(ctx, "a@example.com", "login"))
}

func TestForgotPassword_RateLimited(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	f := newFixture(t)
	f.expectEmails(NotifyVerificationCode, Result{Success: true})
	f.expectEmails(NotifyPasswordReset, Result{Success: true})
	f.auth.limiter = NewRedisCodeLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour, 1, nil)
	f.verifiedUser(t, "a@example.com")

	ctx := context.Background()
	require.NoError(t, f.auth.ForgotPassword(ctx, "a@example.com"))
	assert.ErrorIs(t, f.auth.ForgotPassword(ctx, "a@example.com"), apperr.ErrTooManyRequests)
}
