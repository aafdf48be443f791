package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"notesvc/internal/models"
	"notesvc/internal/repository"
)

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	nextID int64
	users  map[int64]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[int64]*models.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now()
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id int64, passwordHash string, changedAt time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = &changedAt
	return nil
}

func newTestAuthService(t *testing.T) (AuthService, *fakeUserRepo, TokenService) {
	t.Helper()
	repo := newFakeUserRepo()
	tokens := NewTokenService(testSecret, time.Hour)
	hasher := NewPasswordHasher(bcrypt.MinCost)
	return NewAuthService(repo, tokens, hasher, zap.NewNop()), repo, tokens
}

func TestRegister(t *testing.T) {
	auth, repo, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, "Alice@Example.COM ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email, "identity must be case-normalized")
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.Nil(t, user.PasswordChangedAt, "password-changed-at stays unset at creation")

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", stored.Email)
}

func TestRegister_DuplicateIdentity(t *testing.T) {
	auth, repo, _ := newTestAuthService(t)
	ctx := context.Background()

	first, err := auth.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	_, err = auth.Register(ctx, "ALICE@example.com", "otherpassword")
	assert.ErrorIs(t, err, ErrEmailTaken)

	// The first record must be unaffected by the failed attempt.
	stored, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.PasswordHash, stored.PasswordHash)
}

func TestRegister_PasswordLength(t *testing.T) {
	auth, _, _ := newTestAuthService(t)

	_, err := auth.Register(context.Background(), "bob@example.com", "short")
	assert.ErrorIs(t, err, ErrPasswordLength)
}

func TestLogin(t *testing.T) {
	auth, _, tokens := newTestAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	token, expiresAt, err := auth.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestLogin_Rejections(t *testing.T) {
	auth, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	_, _, err = auth.Login(ctx, "alice@example.com", "wrongpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown identity must look exactly like a bad password.
	_, _, err = auth.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// countingHasher counts Verify calls on top of a real hasher.
type countingHasher struct {
	PasswordHasher
	verifyCalls int
}

func (h *countingHasher) Verify(password, hash string) bool {
	h.verifyCalls++
	return h.PasswordHasher.Verify(password, hash)
}

func TestLogin_UnknownIdentityBurnsHash(t *testing.T) {
	repo := newFakeUserRepo()
	tokens := NewTokenService(testSecret, time.Hour)
	hasher := &countingHasher{PasswordHasher: NewPasswordHasher(bcrypt.MinCost)}
	auth := NewAuthService(repo, tokens, hasher, zap.NewNop())

	_, _, err := auth.Login(context.Background(), "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	// The not-found branch must cost one comparison, same as a wrong
	// password, so timing does not reveal which identities exist.
	assert.Equal(t, 1, hasher.verifyCalls)
}

func TestAuthenticate(t *testing.T) {
	auth, _, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	token, _, err := auth.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	principal, err := auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.ID)
	assert.Equal(t, "alice@example.com", principal.Email)
}

func TestAuthenticate_MalformedToken(t *testing.T) {
	auth, _, _ := newTestAuthService(t)

	_, err := auth.Authenticate(context.Background(), "definitely.not.ajwt")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestAuthenticate_UnknownSubject(t *testing.T) {
	auth, repo, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	token, _, err := auth.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	delete(repo.users, user.ID)

	_, err = auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnknownSubject)
}

func TestAuthenticate_StaleToken(t *testing.T) {
	auth, repo, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	token, _, err := auth.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	// Password changed after the token was issued: the token is stale.
	changed := time.Now().Add(time.Hour)
	repo.users[user.ID].PasswordChangedAt = &changed

	_, err = auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrStaleToken)
}

func TestAuthenticate_TokenIssuedAfterChange(t *testing.T) {
	auth, repo, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	changed := time.Now().Add(-time.Hour)
	repo.users[user.ID].PasswordChangedAt = &changed

	token, _, err := auth.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	_, err = auth.Authenticate(ctx, token)
	assert.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	auth, repo, tokens := newTestAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, "alice@example.com", "oldpassword1")
	require.NoError(t, err)

	token, _, err := auth.ChangePassword(ctx, user.ID, "oldpassword1", "newpassword1")
	require.NoError(t, err)

	// The returned token is fresh and valid.
	claims, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	_, err = auth.Authenticate(ctx, token)
	require.NoError(t, err)

	// password-changed-at is stamped just below now to absorb clock skew.
	stored := repo.users[user.ID]
	require.NotNil(t, stored.PasswordChangedAt)
	assert.WithinDuration(t, time.Now().Add(-passwordChangedSkew), *stored.PasswordChangedAt, 2*time.Second)

	// Old password no longer works, new one does.
	_, _, err = auth.Login(ctx, "alice@example.com", "oldpassword1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = auth.Login(ctx, "alice@example.com", "newpassword1")
	assert.NoError(t, err)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	auth, _, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, "alice@example.com", "oldpassword1")
	require.NoError(t, err)

	_, _, err = auth.ChangePassword(ctx, user.ID, "notmypassword", "newpassword1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
