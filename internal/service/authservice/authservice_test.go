package authservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/pkg/auth"
)

func NewMock(t *testing.T) (*Service, *MockRepo, *auth.MockHashServiceInterface, *auth.MockJWTServiceInterface) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepo(ctrl)
	hashService := auth.NewMockHashServiceInterface(ctrl)
	jwtService := auth.NewMockJWTServiceInterface(ctrl)
	return New(repo, hashService, jwtService, time.Hour), repo, hashService, jwtService
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name          string
		username      string
		email         string
		password      string
		prepareMock   func(repo *MockRepo, hasher *auth.MockHashServiceInterface)
		expectedError error
	}{
		{
			name:     "Successful registration",
			username: "alice",
			email:    "Alice@Example.com",
			password: "password1",
			prepareMock: func(repo *MockRepo, hasher *auth.MockHashServiceInterface) {
				repo.EXPECT().FindByUsername(gomock.Any(), "alice").Return(nil, nil)
				repo.EXPECT().FindByEmail(gomock.Any(), "alice@example.com").Return(nil, nil)
				hasher.EXPECT().HashPassword("password1").Return("hashed", nil)
				repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, user *domain.User) (*domain.User, error) {
						assert.Equal(t, domain.RoleCustomer, user.Role)
						assert.Equal(t, "hashed", user.PasswordHash)
						assert.Equal(t, "alice@example.com", user.Email)
						user.ID = 2
						return user, nil
					})
			},
		},
		{
			name:          "Invalid username",
			username:      "a b",
			email:         "alice@example.com",
			password:      "password1",
			expectedError: ErrInvalidUsername,
		},
		{
			name:          "Invalid email",
			username:      "alice",
			email:         "alice",
			password:      "password1",
			expectedError: ErrInvalidEmail,
		},
		{
			name:          "Short password",
			username:      "alice",
			email:         "alice@example.com",
			password:      "short",
			expectedError: ErrInvalidPassword,
		},
		{
			name:     "Username taken",
			username: "alice",
			email:    "alice@example.com",
			password: "password1",
			prepareMock: func(repo *MockRepo, hasher *auth.MockHashServiceInterface) {
				repo.EXPECT().FindByUsername(gomock.Any(), "alice").Return(&domain.User{ID: 3}, nil)
			},
			expectedError: ErrUsernameTaken,
		},
		{
			name:     "Email taken",
			username: "alice",
			email:    "alice@example.com",
			password: "password1",
			prepareMock: func(repo *MockRepo, hasher *auth.MockHashServiceInterface) {
				repo.EXPECT().FindByUsername(gomock.Any(), "alice").Return(nil, nil)
				repo.EXPECT().FindByEmail(gomock.Any(), "alice@example.com").Return(&domain.User{ID: 3}, nil)
			},
			expectedError: ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, repo, hasher, _ := NewMock(t)
			if tt.prepareMock != nil {
				tt.prepareMock(repo, hasher)
			}

			user, err := service.Register(context.Background(), tt.username, tt.email, tt.password)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2, user.ID)
		})
	}
}

func TestRegister_RepoError(t *testing.T) {
	service, repo, _, _ := NewMock(t)
	repo.EXPECT().FindByUsername(gomock.Any(), "alice").Return(nil, errors.New("database error"))

	_, err := service.Register(context.Background(), "alice", "alice@example.com", "password1")
	assert.EqualError(t, err, "database error")
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name          string
		prepareMock   func(repo *MockRepo, hasher *auth.MockHashServiceInterface)
		expectedError error
	}{
		{
			name: "Valid credentials",
			prepareMock: func(repo *MockRepo, hasher *auth.MockHashServiceInterface) {
				repo.EXPECT().FindByLogin(gomock.Any(), "alice").Return(&domain.User{ID: 2, PasswordHash: "hashed"}, nil)
				hasher.EXPECT().ComparePassword("hashed", "password1").Return(true)
			},
		},
		{
			name: "Wrong password",
			prepareMock: func(repo *MockRepo, hasher *auth.MockHashServiceInterface) {
				repo.EXPECT().FindByLogin(gomock.Any(), "alice").Return(&domain.User{ID: 2, PasswordHash: "hashed"}, nil)
				hasher.EXPECT().ComparePassword("hashed", "password1").Return(false)
			},
			expectedError: ErrInvalidCredentials,
		},
		{
			name: "Unknown login",
			prepareMock: func(repo *MockRepo, hasher *auth.MockHashServiceInterface) {
				repo.EXPECT().FindByLogin(gomock.Any(), "alice").Return(nil, nil)
			},
			expectedError: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, repo, hasher, _ := NewMock(t)
			tt.prepareMock(repo, hasher)

			user, err := service.Authenticate(context.Background(), "alice", "password1")
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2, user.ID)
		})
	}
}

func TestGenerateToken(t *testing.T) {
	service, _, _, jwtService := NewMock(t)

	jwtService.EXPECT().GenerateJWT(2, domain.RoleBooster, gomock.Any()).DoAndReturn(
		func(_ int, _ string, exp time.Time) (string, error) {
			assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)
			return "token", nil
		})
	jwtService.EXPECT().GenerateJWT(3, domain.RoleCustomer, gomock.Any()).Return("", errors.New("sign error"))

	token, err := service.GenerateToken(&domain.User{ID: 2, Role: domain.RoleBooster})
	require.NoError(t, err)
	assert.Equal(t, "token", token)

	_, err = service.GenerateToken(&domain.User{ID: 3, Role: domain.RoleCustomer})
	assert.Error(t, err)
}

func TestCurrentRole(t *testing.T) {
	service, repo, _, _ := NewMock(t)

	repo.EXPECT().FindByID(gomock.Any(), 4).Return(&domain.User{ID: 4, Role: domain.RoleBooster}, nil)
	repo.EXPECT().FindByID(gomock.Any(), 9).Return(nil, nil)
	repo.EXPECT().FindByID(gomock.Any(), 10).Return(nil, errors.New("db error"))

	role, err := service.CurrentRole(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleBooster, role)

	role, err = service.CurrentRole(context.Background(), 9)
	require.NoError(t, err)
	assert.Empty(t, role)

	_, err = service.CurrentRole(context.Background(), 10)
	assert.Error(t, err)
}
