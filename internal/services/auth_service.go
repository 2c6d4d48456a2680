package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/spinsight/internal/apperr"
	"github.com/example/spinsight/internal/metrics"
	"github.com/example/spinsight/internal/models"
	"github.com/example/spinsight/internal/repository"
	"github.com/example/spinsight/internal/utils"
)

const minPasswordLength = 6

// AuthConfig tunes the credential and code flows.
type AuthConfig struct {
	CodeTTL        time.Duration
	MaxAttempts    int
	BcryptCost     int
	AdminAlertChat string
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Name       string
	Email      string
	Phone      string
	Password   string
	Role       models.Role
	Company    string
	Department string
}

// RegisterResult reports the new account and whether the verification email went out.
type RegisterResult struct {
	User             *models.User
	VerificationSent bool
	Warning          string
}

// AuthResult is returned by every flow that ends in a new session.
type AuthResult struct {
	Token   string
	User    *models.User
	Session *models.Session
}

// AuthService orchestrates registration, email verification, login, logout and password reset.
type AuthService struct {
	users    *repository.UserStore
	codes    *repository.CodeStore
	sessions *SessionService
	notifier Notifier
	limiter  CodeRequestLimiter
	cfg      AuthConfig
	now      func() time.Time
	genCode  func() (string, error)
	log      *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new AuthService. A nil clock means time.Now.
func NewAuthService(users *repository.UserStore, codes *repository.CodeStore, sessions *SessionService, notifier Notifier, limiter CodeRequestLimiter, cfg AuthConfig, now func() time.Time, log *zap.Logger) *AuthService {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = utils.PasswordHashCost
	}
	return &AuthService{
		users:    users,
		codes:    codes,
		sessions: sessions,
		notifier: notifier,
		limiter:  limiter,
		cfg:      cfg,
		now:      now,
		genCode:  generateCode,
		log:      log,
	}
}

// WithCodeGenerator replaces the one-time code source.
func (s *AuthService) WithCodeGenerator(gen func() (string, error)) *AuthService {
	s.genCode = gen
	return s
}

// Sessions exposes the session manager used by the service.
func (s *AuthService) Sessions() *SessionService {
	return s.sessions
}

// Register creates an unverified account and sends its verification code.
// A failed send leaves the account and the code in place and is reported in the result.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.Email == "" || in.Phone == "" || in.Password == "" {
		return nil, apperr.Validation("all required fields must be provided")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if in.Role == "" {
		in.Role = models.RoleSalesRep
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation("unknown role")
	}

	exists, err := s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.ErrDuplicateEmail
	}

	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		Role:         in.Role,
		Company:      in.Company,
		Department:   in.Department,
		IsActive:     true,
	}
	user.Preferences = models.DefaultPreferences()
	user.CreatedAt = s.now()
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.ErrDuplicateEmail
		}
		return nil, err
	}

	result := &RegisterResult{User: user}

	code, err := s.issueCode(ctx, user, models.PurposeEmailVerification)
	if err != nil {
		s.log.Error("issue verification code failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		result.Warning = "account created but the verification code could not be issued, request a new one"
		return result, nil
	}

	sent := s.notifier.Send(ctx, NotifyVerificationCode, user.Email, s.codePayload(user, code))
	result.VerificationSent = sent.Success
	if !sent.Success {
		result.Warning = "account created but the verification email could not be sent, request a new code"
	}

	s.notifier.Send(ctx, NotifyAdminAlert, s.cfg.AdminAlertChat, Payload{
		"title":   "New user registered",
		"name":    user.Name,
		"email":   user.Email,
		"role":    string(user.Role),
		"company": user.Company,
	})

	return result, nil
}

// VerifyEmail checks the latest verification code of userID and opens a session on success.
// Every checked attempt is counted, including the failed ones.
func (s *AuthService) VerifyEmail(ctx context.Context, userID uuid.UUID, code string, client ClientInfo) (*AuthResult, error) {
	if code == "" {
		return nil, apperr.Validation("user id and code are required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.IsEmailVerified {
		return nil, apperr.ErrAlreadyVerified
	}

	record, err := s.codes.Latest(ctx, user.Email, models.PurposeEmailVerification)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	if record.Used {
		s.recordVerification(models.PurposeEmailVerification, "used")
		return nil, apperr.ErrCodeAlreadyUsed
	}
	if err := s.checkCode(ctx, record, code); err != nil {
		return nil, err
	}

	consumed, err := s.codes.MarkUsed(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, apperr.ErrCodeAlreadyUsed
	}

	verifiedAt := s.now()
	if err := s.users.MarkEmailVerified(ctx, user.ID, verifiedAt); err != nil {
		return nil, err
	}
	user.IsEmailVerified = true
	user.LastLoginAt = &verifiedAt

	session, err := s.sessions.Issue(ctx, user.ID, client)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Token: session.Token, User: user, Session: session}, nil
}

// ResendVerification replaces every outstanding verification code of email with a new one.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperr.Validation("email is required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return apperr.ErrAlreadyVerified
	}

	if err := s.allow(ctx, email, models.PurposeEmailVerification); err != nil {
		return err
	}

	code, err := s.issueCode(ctx, user, models.PurposeEmailVerification)
	if err != nil {
		return err
	}

	if sent := s.notifier.Send(ctx, NotifyVerificationCode, user.Email, s.codePayload(user, code)); !sent.Success {
		return apperr.Wrap(apperr.ErrNotificationFailed, sent.Err)
	}
	return nil
}

// ForgotPassword sends a password reset code. Unknown emails succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperr.Validation("email is required")
	}

	if err := s.allow(ctx, email, models.PurposePasswordReset); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	code, err := s.issueCode(ctx, user, models.PurposePasswordReset)
	if err != nil {
		return err
	}

	if sent := s.notifier.Send(ctx, NotifyPasswordReset, user.Email, s.codePayload(user, code)); !sent.Success {
		return apperr.Wrap(apperr.ErrNotificationFailed, sent.Err)
	}
	return nil
}

// ResetPassword replaces the password when code matches the outstanding reset code,
// then revokes every session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	if email == "" || code == "" || newPassword == "" {
		return apperr.Validation("email, code and new password are required")
	}
	if len(newPassword) < minPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	record, err := s.codes.LatestUnused(ctx, email, models.PurposePasswordReset)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.ErrCodeNotFound
	}
	if err != nil {
		return err
	}
	if err := s.checkCode(ctx, record, code); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.ErrUserNotFound
	}
	if err != nil {
		return err
	}

	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	consumed, err := s.codes.MarkUsed(ctx, record.ID)
	if err != nil {
		return err
	}
	if !consumed {
		return apperr.ErrCodeAlreadyUsed
	}

	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	if _, err := s.sessions.RevokeAll(ctx, user.ID, "password_reset"); err != nil {
		s.log.Error("revoke sessions after password reset failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	return nil
}

// Login checks the credentials and opens a session. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string, client ClientInfo) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		utils.CheckPassword(s.dummyPasswordHash(), password)
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !utils.CheckPassword(user.PasswordHash, password) {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, apperr.ErrInvalidCredentials
	}
	if !user.IsActive {
		metrics.LoginAttemptsTotal.WithLabelValues("disabled").Inc()
		return nil, apperr.ErrAccountDisabled
	}
	if !user.IsEmailVerified {
		metrics.LoginAttemptsTotal.WithLabelValues("unverified").Inc()
		return nil, apperr.ErrEmailNotVerified
	}

	session, err := s.sessions.Issue(ctx, user.ID, client)
	if err != nil {
		return nil, err
	}

	loginAt := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, loginAt); err != nil {
		s.log.Warn("stamp last login failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	} else {
		user.LastLoginAt = &loginAt
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return &AuthResult{Token: session.Token, User: user, Session: session}, nil
}

// Logout revokes the caller's session.
func (s *AuthService) Logout(ctx context.Context, session *models.Session) error {
	return s.sessions.Revoke(ctx, session)
}

// Profile returns the user with id.
func (s *AuthService) Profile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	return user, err
}

// UpdateProfile applies the non-empty fields and returns the updated user.
func (s *AuthService) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) (*models.User, error) {
	err := s.users.UpdateProfile(ctx, id, strings.TrimSpace(name), strings.TrimSpace(phone))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Profile(ctx, id)
}

// checkCode enforces expiry and the attempt budget, then counts the attempt and compares.
func (s *AuthService) checkCode(ctx context.Context, record *models.OneTimeCode, code string) error {
	purpose := record.Purpose
	if record.Expired(s.now()) {
		s.recordVerification(purpose, "expired")
		return apperr.ErrCodeExpired
	}
	if !record.CanAttempt() {
		s.recordVerification(purpose, "exhausted")
		return apperr.ErrCodeAttemptsExhausted
	}

	attempts, err := s.codes.IncrementAttempts(ctx, record.ID)
	if err != nil {
		return err
	}
	if attempts > record.MaxAttempts {
		s.recordVerification(purpose, "exhausted")
		return apperr.ErrCodeAttemptsExhausted
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(strings.TrimSpace(code))) != 1 {
		s.recordVerification(purpose, "invalid")
		return apperr.ErrCodeInvalid
	}

	s.recordVerification(purpose, "success")
	return nil
}

func (s *AuthService) issueCode(ctx context.Context, user *models.User, purpose models.CodePurpose) (string, error) {
	code, err := s.genCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	issued := s.now()
	userID := user.ID
	record := &models.OneTimeCode{
		Email:       user.Email,
		UserID:      &userID,
		Purpose:     purpose,
		Code:        code,
		ExpiresAt:   issued.Add(s.cfg.CodeTTL),
		MaxAttempts: s.cfg.MaxAttempts,
	}
	record.CreatedAt = issued

	if err := s.codes.Issue(ctx, record); err != nil {
		return "", err
	}
	return code, nil
}

func (s *AuthService) allow(ctx context.Context, email string, purpose models.CodePurpose) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Allow(ctx, email, string(purpose))
}

func (s *AuthService) codePayload(user *models.User, code string) Payload {
	return Payload{
		"name":               user.Name,
		"code":               code,
		"expires_in_minutes": strconv.Itoa(int(s.cfg.CodeTTL.Minutes())),
	}
}

func (s *AuthService) recordVerification(purpose models.CodePurpose, status string) {
	metrics.CodeVerificationsTotal.WithLabelValues(string(purpose), status).Inc()
}

func (s *AuthService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := utils.HashPassword(uuid.NewString(), s.cfg.BcryptCost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
