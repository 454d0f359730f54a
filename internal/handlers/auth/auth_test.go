package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/dto"
	"github.com/GlebRadaev/boostmarket/internal/service/authservice"
	"github.com/GlebRadaev/boostmarket/internal/service/otpservice"
	"github.com/GlebRadaev/boostmarket/pkg/auth"
	"github.com/GlebRadaev/boostmarket/pkg/utils"
)

func NewMock(t *testing.T) (*AuthHandler, *MockService, *MockOTPService) {
	ctrl := gomock.NewController(t)
	service := NewMockService(ctrl)
	otp := NewMockOTPService(ctrl)
	return New(service, otp), service, otp
}

func decodeMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp utils.Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Message
}

func TestRegisterHandler(t *testing.T) {
	alice := &domain.User{ID: 2, Username: "alice", Role: domain.RoleCustomer}

	tests := []struct {
		name          string
		body          string
		prepareMock   func(service *MockService)
		expectedCode  int
		expectedError string
	}{
		{
			name: "Successful registration",
			body: `{"username":"alice","email":"alice@example.com","password":"password1"}`,
			prepareMock: func(service *MockService) {
				service.EXPECT().Register(gomock.Any(), "alice", "alice@example.com", "password1").Return(alice, nil)
				service.EXPECT().GenerateToken(alice).Return("jwt-token", nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "Username taken",
			body: `{"username":"alice","email":"alice@example.com","password":"password1"}`,
			prepareMock: func(service *MockService) {
				service.EXPECT().Register(gomock.Any(), "alice", "alice@example.com", "password1").
					Return(nil, authservice.ErrUsernameTaken)
			},
			expectedCode:  http.StatusConflict,
			expectedError: authservice.ErrUsernameTaken.Error(),
		},
		{
			name: "Invalid email",
			body: `{"username":"alice","email":"nope","password":"password1"}`,
			prepareMock: func(service *MockService) {
				service.EXPECT().Register(gomock.Any(), "alice", "nope", "password1").Return(nil, authservice.ErrInvalidEmail)
			},
			expectedCode:  http.StatusBadRequest,
			expectedError: authservice.ErrInvalidEmail.Error(),
		},
		{
			name:          "Invalid request body",
			body:          `{invalid json`,
			prepareMock:   func(service *MockService) {},
			expectedCode:  http.StatusBadRequest,
			expectedError: "Invalid request body",
		},
		{
			name: "Error generating token",
			body: `{"username":"alice","email":"alice@example.com","password":"password1"}`,
			prepareMock: func(service *MockService) {
				service.EXPECT().Register(gomock.Any(), "alice", "alice@example.com", "password1").Return(alice, nil)
				service.EXPECT().GenerateToken(alice).Return("", errors.New("token generation error"))
			},
			expectedCode:  http.StatusInternalServerError,
			expectedError: "Error generating token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service, _ := NewMock(t)
			tt.prepareMock(service)

			req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader([]byte(tt.body)))
			rr := httptest.NewRecorder()
			handler.Register(rr, req)

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, decodeMessage(t, rr))
				return
			}
			assert.Equal(t, "Bearer jwt-token", rr.Header().Get("Authorization"))
			var resp dto.AuthResponseDTO
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, "jwt-token", resp.Token)
			assert.Equal(t, domain.RoleCustomer, resp.Role)
		})
	}
}

func TestLoginHandler(t *testing.T) {
	alice := &domain.User{ID: 2, Username: "alice", Role: domain.RoleBooster}

	tests := []struct {
		name          string
		body          string
		prepareMock   func(service *MockService)
		expectedCode  int
		expectedError string
	}{
		{
			name: "Successful login",
			body: `{"login":"alice","password":"password1"}`,
			prepareMock: func(service *MockService) {
				service.EXPECT().Authenticate(gomock.Any(), "alice", "password1").Return(alice, nil)
				service.EXPECT().GenerateToken(alice).Return("jwt-token", nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "Invalid credentials",
			body: `{"login":"alice","password":"wrong"}`,
			prepareMock: func(service *MockService) {
				service.EXPECT().Authenticate(gomock.Any(), "alice", "wrong").Return(nil, authservice.ErrInvalidCredentials)
			},
			expectedCode:  http.StatusUnauthorized,
			expectedError: "Invalid credentials",
		},
		{
			name: "Database failure",
			body: `{"login":"alice","password":"password1"}`,
			prepareMock: func(service *MockService) {
				service.EXPECT().Authenticate(gomock.Any(), "alice", "password1").Return(nil, errors.New("db down"))
			},
			expectedCode:  http.StatusInternalServerError,
			expectedError: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service, _ := NewMock(t)
			tt.prepareMock(service)

			req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader([]byte(tt.body)))
			rr := httptest.NewRecorder()
			handler.Login(rr, req)

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, decodeMessage(t, rr))
			}
		})
	}
}

func TestOTPHandlers(t *testing.T) {
	tests := []struct {
		name         string
		call         func(h *AuthHandler, w http.ResponseWriter, r *http.Request)
		body         string
		prepareMock  func(otp *MockOTPService)
		expectedCode int
	}{
		{
			name: "Send verification",
			call: (*AuthHandler).SendVerification,
			prepareMock: func(otp *MockOTPService) {
				otp.EXPECT().SendEmailVerification(gomock.Any(), 2).Return(nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "Send verification when verified",
			call: (*AuthHandler).SendVerification,
			prepareMock: func(otp *MockOTPService) {
				otp.EXPECT().SendEmailVerification(gomock.Any(), 2).Return(otpservice.ErrAlreadyVerified)
			},
			expectedCode: http.StatusConflict,
		},
		{
			name: "Verify email",
			call: (*AuthHandler).VerifyEmail,
			body: `{"code":"123456"}`,
			prepareMock: func(otp *MockOTPService) {
				otp.EXPECT().VerifyEmail(gomock.Any(), 2, "123456").Return(nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "Verify email wrong code",
			call: (*AuthHandler).VerifyEmail,
			body: `{"code":"000000"}`,
			prepareMock: func(otp *MockOTPService) {
				otp.EXPECT().VerifyEmail(gomock.Any(), 2, "000000").Return(otpservice.ErrInvalidCode)
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "Verify email exhausted",
			call: (*AuthHandler).VerifyEmail,
			body: `{"code":"000000"}`,
			prepareMock: func(otp *MockOTPService) {
				otp.EXPECT().VerifyEmail(gomock.Any(), 2, "000000").Return(otpservice.ErrTooManyAttempts)
			},
			expectedCode: http.StatusTooManyRequests,
		},
		{
			name: "Forgot password",
			call: (*AuthHandler).ForgotPassword,
			body: `{"email":"alice@example.com"}`,
			prepareMock: func(otp *MockOTPService) {
				otp.EXPECT().RequestPasswordReset(gomock.Any(), "alice@example.com").Return(nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "Reset password",
			call: (*AuthHandler).ResetPassword,
			body: `{"email":"alice@example.com","code":"123456","password":"new-password"}`,
			prepareMock: func(otp *MockOTPService) {
				otp.EXPECT().ResetPassword(gomock.Any(), "alice@example.com", "123456", "new-password").Return(nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "Request email change",
			call: (*AuthHandler).ChangeEmail,
			body: `{"email":"new@example.com"}`,
			prepareMock: func(otp *MockOTPService) {
				otp.EXPECT().RequestEmailChange(gomock.Any(), 2, "new@example.com").Return(nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "Confirm email change",
			call: (*AuthHandler).ChangeEmail,
			body: `{"email":"new@example.com","code":"123456"}`,
			prepareMock: func(otp *MockOTPService) {
				otp.EXPECT().ConfirmEmailChange(gomock.Any(), 2, "new@example.com", "123456").Return(nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:         "Bad body",
			call:         (*AuthHandler).ResetPassword,
			body:         `{`,
			prepareMock:  func(otp *MockOTPService) {},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _, otp := NewMock(t)
			tt.prepareMock(otp)

			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(tt.body)))
			req = req.WithContext(auth.WithUser(req.Context(), 2, domain.RoleCustomer))
			rr := httptest.NewRecorder()
			tt.call(handler, rr, req)

			assert.Equal(t, tt.expectedCode, rr.Code)
		})
	}
}
