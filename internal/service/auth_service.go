package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/repository"
	apperrors "github.com/spec-kit/field-service/pkg/util/errorutil"
)

const invalidCredentialsMessage = "Invalid email or password"

// AuthService coordinates registration and login flows.
type AuthService struct {
	users   repository.UserRepository
	tokens  *auth.TokenManager
	hasher  *auth.PasswordHasher
	lockout *auth.LoginLockout
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// AuthDependencies bundles collaborators for the auth service. Lockout and
// Metrics may be nil.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Tokens   *auth.TokenManager
	Hasher   *auth.PasswordHasher
	Lockout  *auth.LoginLockout
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// AuthResult is returned by successful signups and logins.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:   deps.UserRepo,
		tokens:  deps.Tokens,
		hasher:  deps.Hasher,
		lockout: deps.Lockout,
		metrics: deps.Metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Register creates an account and issues a token for it. The email is
// normalized before the uniqueness check; the plaintext password is only
// handed to the hasher.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        domain.NormalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.RecordAuth("signup", observability.AuthFailure)
			return nil, apperrors.NewDuplicateEmail()
		}
		return nil, apperrors.NewInternalError(err)
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAuth("signup", observability.AuthSuccess)
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return result, nil
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords yield the same error and take comparable time. Repeated
// failures for one email lock it for the configured window.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = domain.NormalizeEmail(email)

	locked, err := s.lockout.Locked(ctx, email)
	if err != nil {
		s.logger.Warn("login lockout check failed; allowing attempt", zap.Error(err))
	}
	if locked {
		s.metrics.RecordAuth("login", observability.AuthLocked)
		return nil, apperrors.NewTooManyRequests("Too many failed login attempts. Please try again later.")
	}

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		_ = s.hasher.CompareMissing(password)
		return nil, s.loginFailed(ctx, email)
	case err != nil:
		return nil, apperrors.NewInternalError(err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperrors.NewInternalError(err)
		}
		return nil, s.loginFailed(ctx, email)
	}

	if err := s.lockout.Reset(ctx, email); err != nil {
		s.logger.Warn("login lockout reset failed", zap.Error(err))
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAuth("login", observability.AuthSuccess)
	return result, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email string) error {
	if err := s.lockout.RecordFailure(ctx, email); err != nil {
		s.logger.Warn("login lockout record failed", zap.Error(err))
	}
	s.metrics.RecordAuth("login", observability.AuthFailure)
	return apperrors.NewUnauthenticated(invalidCredentialsMessage)
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}
