package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/spinsight/internal/apperr"
	"github.com/example/spinsight/internal/metrics"
	"github.com/example/spinsight/internal/models"
	"github.com/example/spinsight/internal/repository"
	"github.com/example/spinsight/internal/utils"
)

// ClientInfo describes the client a session is issued to.
type ClientInfo struct {
	Device    models.DeviceInfo
	IPAddress string
	UserAgent string
}

// SessionView is a session as listed to its owner.
type SessionView struct {
	models.Session
	IsCurrent bool `json:"is_current"`
}

// SessionService issues, validates and revokes bearer sessions.
// Expiry is fixed at issuance; activity never extends it.
type SessionService struct {
	sessions *repository.SessionStore
	users    *repository.UserStore
	signer   *utils.Signer
	ttl      time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewSessionService creates a new SessionService. A nil clock means time.Now.
func NewSessionService(sessions *repository.SessionStore, users *repository.UserStore, signer *utils.Signer, ttl time.Duration, now func() time.Time, log *zap.Logger) *SessionService {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionService{
		sessions: sessions,
		users:    users,
		signer:   signer,
		ttl:      ttl,
		now:      now,
		log:      log,
	}
}

// Issue creates an active session for userID and returns it with its bearer token.
func (s *SessionService) Issue(ctx context.Context, userID uuid.UUID, client ClientInfo) (*models.Session, error) {
	// JWT NumericDate has whole-second precision; keep expires_at equal to the exp claim.
	issued := s.now().Truncate(time.Second)

	token, err := s.signer.Sign(userID, s.ttl)
	if err != nil {
		return nil, apperr.Wrap(apperr.New(apperr.KindInternal, "token_sign_failed", "could not create session"), err)
	}

	session := &models.Session{
		UserID:         userID,
		Token:          token,
		DeviceInfo:     client.Device.Normalize(),
		IPAddress:      client.IPAddress,
		UserAgent:      client.UserAgent,
		IsActive:       true,
		LastActivityAt: issued,
		ExpiresAt:      issued.Add(s.ttl),
	}
	session.CreatedAt = issued

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	metrics.SessionsIssuedTotal.Inc()
	return session, nil
}

// Validate resolves token to its user and session. An expired session that is still
// marked active is revoked before the error is returned.
func (s *SessionService) Validate(ctx context.Context, token string) (*models.User, *models.Session, error) {
	if token == "" {
		return nil, nil, apperr.ErrTokenMissing
	}

	// Expiry is decided by the stored session, not the exp claim.
	if _, err := s.signer.Verify(token); err != nil && !errors.Is(err, utils.ErrTokenExpired) {
		return nil, nil, apperr.Wrap(apperr.ErrTokenInvalid, err)
	}

	session, err := s.sessions.FindByToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperr.ErrTokenInvalid
	}
	if err != nil {
		return nil, nil, err
	}

	if !session.IsActive {
		return nil, nil, apperr.ErrSessionRevoked
	}

	if !s.now().Before(session.ExpiresAt) {
		revoked, err := s.sessions.Revoke(ctx, session.ID)
		if err != nil {
			s.log.Warn("revoke expired session failed", zap.String("session_id", session.ID.String()), zap.Error(err))
		} else if revoked {
			metrics.SessionsRevokedTotal.WithLabelValues("expired").Inc()
		}
		return nil, nil, apperr.ErrSessionExpired
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperr.ErrTokenInvalid
	}
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, apperr.ErrAccountDisabled
	}

	return user, session, nil
}

// Authenticate validates token and records activity on the session.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*models.User, *models.Session, error) {
	user, session, err := s.Validate(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	s.Touch(ctx, session)
	return user, session, nil
}

// Touch stamps last_activity_at. Failures are logged; they never fail the request.
func (s *SessionService) Touch(ctx context.Context, session *models.Session) {
	at := s.now()
	if err := s.sessions.Touch(ctx, session.ID, at); err != nil {
		s.log.Warn("touch session failed", zap.String("session_id", session.ID.String()), zap.Error(err))
		return
	}
	session.LastActivityAt = at
}

// Revoke deactivates session. Revoking twice is a no-op.
func (s *SessionService) Revoke(ctx context.Context, session *models.Session) error {
	revoked, err := s.sessions.Revoke(ctx, session.ID)
	if err != nil {
		return err
	}
	if revoked {
		metrics.SessionsRevokedTotal.WithLabelValues("logout").Inc()
	}
	session.IsActive = false
	return nil
}

// RevokeAllExcept signs userID out of every session but the one holding keepToken.
func (s *SessionService) RevokeAllExcept(ctx context.Context, userID uuid.UUID, keepToken string) (int64, error) {
	n, err := s.sessions.RevokeAllExcept(ctx, userID, keepToken)
	if err != nil {
		return 0, err
	}
	metrics.SessionsRevokedTotal.WithLabelValues("others").Add(float64(n))
	return n, nil
}

// RevokeAll signs userID out everywhere.
func (s *SessionService) RevokeAll(ctx context.Context, userID uuid.UUID, cause string) (int64, error) {
	n, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	metrics.SessionsRevokedTotal.WithLabelValues(cause).Add(float64(n))
	return n, nil
}

// ListActive returns the user's live sessions, most recently used first, flagging currentToken.
func (s *SessionService) ListActive(ctx context.Context, userID uuid.UUID, currentToken string) ([]SessionView, error) {
	sessions, err := s.sessions.ListActive(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}

	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			Session:   session,
			IsCurrent: session.Token == currentToken,
		})
	}
	return views, nil
}
