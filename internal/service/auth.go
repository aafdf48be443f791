package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"notesvc/internal/models"
	"notesvc/internal/repository"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownSubject     = errors.New("token subject no longer exists")
	// ErrStaleToken marks tokens issued before the subject's most recent
	// password change.
	ErrStaleToken = errors.New("token issued before last password change")
)

// passwordChangedSkew is subtracted from the password-changed-at stamp so
// a token issued in the same request cycle (second resolution) is still
// accepted despite replica clock drift.
const passwordChangedSkew = time.Second

// AuthService implements registration, login, password change and the
// token-to-principal resolution used by the protect middleware.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error)
	ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) (string, time.Time, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type authService struct {
	users  repository.UserRepository
	tokens TokenService
	hasher PasswordHasher
	logger *zap.Logger

	// dummyHash is compared against when the identity does not exist, so
	// an unknown email costs the same as a wrong password. Without it,
	// response timing would reveal which identities are registered.
	dummyHash string
}

func NewAuthService(users repository.UserRepository, tokens TokenService, hasher PasswordHasher, logger *zap.Logger) AuthService {
	dummyHash, err := hasher.Hash("timing-equalizer-not-a-password")
	if err != nil {
		// Hash only fails on length bounds; the fixed input above is
		// within them.
		panic(err)
	}
	return &authService{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		logger:    logger,
		dummyHash: dummyHash,
	}
}

// NormalizeEmail case-normalizes an identity so uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, email, password string) (*models.User, error) {
	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.Int64("user_id", user.ID))
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Burn the same bcrypt work as the wrong-password branch.
			s.hasher.Verify(password, s.dummyHash)
			return "", time.Time{}, ErrInvalidCredentials
		}
		s.logger.Error("Failed to get user by email", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return "", time.Time{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Sign(user.ID, user.Email)
	if err != nil {
		s.logger.Error("Failed to sign token", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info("User logged in", zap.Int64("user_id", user.ID))
	return token, expiresAt, nil
}

// ChangePassword re-verifies the current password, stores the new hash and
// stamps password_changed_at to now minus the skew margin, invalidating
// every token issued before the change. A fresh token is returned so the
// caller's own session survives.
func (s *authService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) (string, time.Time, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", time.Time{}, ErrUnknownSubject
		}
		return "", time.Time{}, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return "", time.Time{}, ErrInvalidCredentials
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", time.Time{}, err
	}

	changedAt := time.Now().Add(-passwordChangedSkew)
	if err := s.users.UpdatePassword(ctx, userID, passwordHash, changedAt); err != nil {
		s.logger.Error("Failed to update password", zap.Int64("user_id", userID), zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to update password: %w", err)
	}

	token, expiresAt, err := s.tokens.Sign(user.ID, user.Email)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info("Password changed", zap.Int64("user_id", userID))
	return token, expiresAt, nil
}

// Authenticate resolves a bearer token to a principal. It fails with
// ErrTokenMalformed, ErrTokenExpired, ErrUnknownSubject or ErrStaleToken;
// callers must collapse all four to one indistinguishable response.
func (s *authService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, fmt.Errorf("failed to resolve subject: %w", err)
	}

	// Tokens issued strictly before the most recent password change are
	// rejected. Comparison is at second resolution, matching the iat
	// claim, which Verify guarantees is present.
	if user.PasswordChangedAt != nil && claims.IssuedAt.Unix() < user.PasswordChangedAt.Unix() {
		return nil, ErrStaleToken
	}

	return user, nil
}
