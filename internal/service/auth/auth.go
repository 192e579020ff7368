// Package auth implements the login state machine: lockout after repeated
// failures and the soft password-expiry flag.
package auth

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"staff-tracker/internal/apperror"
	"staff-tracker/internal/models"
	"staff-tracker/internal/repository"
	"staff-tracker/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Policy struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	PasswordMaxAge    time.Duration
	HashCost          int
}

func DefaultPolicy() Policy {
	return Policy{
		MaxFailedAttempts: 5,
		LockoutDuration:   30 * time.Minute,
		PasswordMaxAge:    90 * 24 * time.Hour,
		HashCost:          bcrypt.DefaultCost,
	}
}

// AccountSource hands out the credential store for a role.
type AccountSource interface {
	ForRole(role models.Role) (repository.AccountRepository, error)
}

// UserCreator persists newly registered users.
type UserCreator interface {
	Create(ctx context.Context, u *models.User) error
}

type Service struct {
	accounts AccountSource
	users    UserCreator
	policy   Policy
	now      func() time.Time
}

func NewService(accounts AccountSource, users UserCreator, policy Policy) *Service {
	return &Service{accounts: accounts, users: users, policy: policy, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type LoginRequest struct {
	Role      models.Role
	Email     string
	Password  string
	IndexCode string
}

type LoginResult struct {
	Account models.Account
	// PasswordExpired is a soft state: the login succeeded but the caller
	// should force a password change.
	PasswordExpired bool
}

// Login runs one attempt. Counter changes are persisted before the result
// is returned.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	repo, err := s.accounts.ForRole(req.Role)
	if err != nil {
		return nil, apperror.Validation("Unknown account type")
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" || (req.Role == models.RoleAdmin && req.IndexCode == "") {
		return nil, apperror.Validation("Missing credentials")
	}

	account, err := repo.FindForLogin(ctx, email, req.IndexCode)
	if errors.Is(err, repository.ErrNotFound) {
		logger.SecurityLogger.Warn("Login for unknown account", zap.String("email", email), zap.String("role", string(req.Role)))
		return nil, apperror.InvalidCredentials(nil)
	}
	if err != nil {
		return nil, apperror.Internal("looking up account", err)
	}

	cred := account.Credentials()
	now := s.now()
	if cred.LockedUntil != nil && cred.LockedUntil.After(now) {
		logger.SecurityLogger.Warn("Login on locked account", zap.Int("account_id", cred.ID), zap.String("role", string(req.Role)))
		return nil, apperror.AccountLocked(minutesUntil(now, *cred.LockedUntil))
	}

	err = bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password))
	switch {
	case err == nil:
		return s.succeed(ctx, repo, account, now)
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return nil, s.fail(ctx, repo, cred, req.Role, now)
	default:
		return nil, apperror.Internal("comparing password hash", err)
	}
}

func (s *Service) succeed(ctx context.Context, repo repository.AccountRepository, account models.Account, now time.Time) (*LoginResult, error) {
	cred := account.Credentials()
	lockedUntil, err := repo.ResetLoginState(ctx, cred.ID, now)
	if err != nil {
		return nil, apperror.Internal("resetting login state", err)
	}
	// A concurrent failure may have locked the account after it was read.
	if lockedUntil != nil {
		logger.SecurityLogger.Warn("Login on locked account", zap.Int("account_id", cred.ID), zap.String("role", string(account.Role())))
		return nil, apperror.AccountLocked(minutesUntil(now, *lockedUntil))
	}
	cred.FailedLoginAttempts = 0
	cred.LockedUntil = nil

	// Checked after the reset, so an expired password still clears lockout state.
	expired := now.Sub(cred.PasswordChangedAt) > s.policy.PasswordMaxAge
	if expired {
		logger.SecurityLogger.Warn("Login with expired password", zap.Int("account_id", cred.ID), zap.String("role", string(account.Role())))
	}
	logger.AuditLogger.Info("Login success", zap.Int("account_id", cred.ID), zap.String("role", string(account.Role())))
	return &LoginResult{Account: account, PasswordExpired: expired}, nil
}

func (s *Service) fail(ctx context.Context, repo repository.AccountRepository, cred *models.Credential, role models.Role, now time.Time) error {
	lockUntil := now.Add(s.policy.LockoutDuration)
	f, err := repo.RecordFailedLogin(ctx, cred.ID, s.policy.MaxFailedAttempts, lockUntil, now)
	if err != nil {
		return apperror.Internal("recording failed login", err)
	}

	if f.Attempts >= s.policy.MaxFailedAttempts && f.LockedUntil != nil {
		logger.SecurityLogger.Warn("Account locked",
			zap.Int("account_id", cred.ID), zap.String("role", string(role)), zap.Int("attempts", f.Attempts))
		return apperror.AccountLocked(minutesUntil(now, *f.LockedUntil))
	}

	remaining := s.policy.MaxFailedAttempts - f.Attempts
	logger.SecurityLogger.Warn("Invalid password",
		zap.Int("account_id", cred.ID), zap.String("role", string(role)), zap.Int("remaining_attempts", remaining))
	return apperror.InvalidCredentials(&remaining)
}

func minutesUntil(now, t time.Time) int {
	m := int(math.Ceil(t.Sub(now).Minutes()))
	if m < 1 {
		return 1
	}
	return m
}

type RegisterRequest struct {
	Email      string
	Name       string
	Department string
	Password   string
}

// Register creates a user account. A taken email is a Conflict.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || strings.TrimSpace(req.Name) == "" {
		return nil, apperror.Validation("Email and name are required")
	}
	if len(req.Password) < 8 {
		return nil, apperror.Validation("Password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.policy.HashCost)
	if err != nil {
		return nil, apperror.Internal("hashing password", err)
	}

	user := &models.User{
		Credential: models.Credential{
			Email:             email,
			PasswordHash:      string(hash),
			PasswordChangedAt: s.now(),
		},
		Name:       strings.TrimSpace(req.Name),
		Department: strings.TrimSpace(req.Department),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logger.SecurityLogger.Warn("Duplicate email on register", zap.String("email", email))
			return nil, apperror.Conflict("Email already registered")
		}
		return nil, apperror.Internal("creating user", err)
	}
	logger.AuditLogger.Info("User registered", zap.Int("user_id", user.ID))
	return user, nil
}

// ChangePassword replaces the password of the calling account and restarts
// its expiry clock.
func (s *Service) ChangePassword(ctx context.Context, auth models.AuthenticatedContext, current, next string) error {
	repo, err := s.accounts.ForRole(auth.Role)
	if err != nil {
		return apperror.Validation("Unknown account type")
	}
	if len(next) < 8 {
		return apperror.Validation("Password must be at least 8 characters")
	}
	if next == current {
		return apperror.Validation("New password must differ from the current one")
	}

	account, err := repo.FindByID(ctx, auth.AccountID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("Account not found")
	}
	if err != nil {
		return apperror.Internal("loading account", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.Credentials().PasswordHash), []byte(current)); err != nil {
		logger.SecurityLogger.Warn("Wrong current password on change", zap.Int("account_id", auth.AccountID))
		return apperror.InvalidCredentials(nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.policy.HashCost)
	if err != nil {
		return apperror.Internal("hashing password", err)
	}
	if err := repo.UpdatePassword(ctx, auth.AccountID, string(hash), s.now()); err != nil {
		return apperror.Internal("updating password", err)
	}
	logger.AuditLogger.Info("Password changed", zap.Int("account_id", auth.AccountID), zap.String("role", string(auth.Role)))
	return nil
}
