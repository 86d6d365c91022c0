package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	"github.com/nitj-alumni/alumni-erp-api/internal/repository"
	"github.com/nitj-alumni/alumni-erp-api/internal/validation"
	appErrors "github.com/nitj-alumni/alumni-erp-api/pkg/errors"
)

type mockAuthRepo struct {
	users     map[string]*models.User
	createErr error
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, err := m.FindByEmail(ctx, user.Email); err == nil {
		return repository.ErrDuplicateEmail
	}
	if user.ID == "" {
		user.ID = "u" + user.Email
	}
	m.users[user.ID] = user
	return nil
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validation.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "alumni-api"})
}

func TestAuthServiceRegisterAndLogin(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     " Asha Verma ",
		Email:    "asha@example.com",
		Password: "secret123",
		Branch:   "cse",
		RollNo:   "18103021",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAlumni, info.Role)
	assert.Equal(t, models.BranchCSE, info.Branch)
	assert.Equal(t, "Asha Verma", info.Name)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "asha@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.True(t, res.ExpiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, info.ID, claims.UserID)
	assert.Equal(t, models.RoleAlumni, claims.Role)
	assert.Equal(t, "alumni-api", claims.Issuer)
}

func TestAuthServiceRegisterRejectsDuplicatesAndBadPayloads(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "asha@example.com"})
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Name: "A", Email: "asha@example.com", Password: "secret123", Branch: "CSE"})
	assert.ErrorIs(t, err, appErrors.ErrEmailAlreadyExists)

	_, err = svc.Register(context.Background(), models.RegisterRequest{Name: "A", Email: "b@example.com", Password: "123", Branch: "XYZ"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "password must be at least 6 characters")

	repo.createErr = repository.ErrBranchHasAdmin
	_, err = svc.Register(context.Background(), models.RegisterRequest{Name: "A", Email: "c@example.com", Password: "secret123", Branch: "ECE", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	svc := newTestAuthService(newMockAuthRepo(&models.User{ID: "u1", Email: "user@example.com", PasswordHash: string(hash)}))

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceProfile(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(&models.User{ID: "u1", Name: "Asha", Email: "asha@example.com", Branch: models.BranchEE, RollNo: "17"}))

	profile, err := svc.Profile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.Profile{Name: "Asha", Email: "asha@example.com", Branch: models.BranchEE, RollNo: "17"}, *profile)

	_, err = svc.Profile(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())
	other := NewAuthService(newMockAuthRepo(), nil, nil, AuthConfig{AccessTokenSecret: "other"})
	token, _, err := other.generateAccessToken(&models.User{ID: "u1", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
