package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users []*model.User
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserStore) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return repository.ErrConflict
		}
	}
	u.ID = int64(len(f.users) + 1)
	u.CreatedAt = time.Now()
	f.users = append(f.users, u)
	return nil
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc := NewAuthService(testConfig(), &fakeUserStore{})
	ctx := context.Background()

	u, err := svc.Register(ctx, "Ada", "Ada@Example.com ", "secret123", model.RoleLearner)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)

	res, err := svc.Login(ctx, "ada@example.com", "secret123")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), res.ExpiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, model.RoleLearner, claims.Role)
	assert.Equal(t, Actor{UserID: u.ID, Role: model.RoleLearner}, claims.Actor())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := NewAuthService(testConfig(), &fakeUserStore{})
	ctx := context.Background()
	_, err := svc.Register(ctx, "Ada", "ada@example.com", "secret123", model.RoleLearner)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewAuthService(testConfig(), &fakeUserStore{})
	ctx := context.Background()
	_, err := svc.Register(ctx, "Ada", "ada@example.com", "secret123", model.RoleLearner)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "Ada 2", "ada@example.com", "secret456", model.RoleTeacher)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	cfg := testConfig()
	issuer := NewAuthService(cfg, &fakeUserStore{})
	token, _, err := issuer.GenerateToken(&model.User{ID: 7, Role: model.RoleAdmin})
	require.NoError(t, err)

	other := *cfg
	other.JWTSecret = "different"
	_, err = NewAuthService(&other, &fakeUserStore{}).ValidateToken(token)
	assert.Error(t, err)
}
