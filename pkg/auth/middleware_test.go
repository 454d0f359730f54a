package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"
)

func TestMiddleware(t *testing.T) {
	ctrl := gomock.NewController(t)
	validator := NewMockJWTServiceInterface(ctrl)

	var gotID int
	var gotRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotRole, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(validator)(next)

	tests := []struct {
		name         string
		prepare      func(r *http.Request)
		prepareMock  func()
		expectedCode int
	}{
		{
			name: "Bearer token",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer good")
			},
			prepareMock: func() {
				validator.EXPECT().ValidateToken("good").Return(&Claims{UserID: 7, Role: "BOOSTER"}, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:         "No token",
			prepare:      func(r *http.Request) {},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "Rejected token",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer bad")
			},
			prepareMock: func() {
				validator.EXPECT().ValidateToken("bad").Return(nil, errors.New("invalid token"))
			},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "Query token on websocket upgrade",
			prepare: func(r *http.Request) {
				r.Header.Set("Upgrade", "websocket")
				q := r.URL.Query()
				q.Set("token", "ws-token")
				r.URL.RawQuery = q.Encode()
			},
			prepareMock: func() {
				validator.EXPECT().ValidateToken("ws-token").Return(&Claims{UserID: 7, Role: "BOOSTER"}, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "Query token ignored on plain requests",
			prepare: func(r *http.Request) {
				r.URL.RawQuery = "token=ws-token"
			},
			expectedCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotRole = 0, ""
			if tt.prepareMock != nil {
				tt.prepareMock()
			}
			req := httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
			tt.prepare(req)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedCode == http.StatusOK {
				assert.Equal(t, 7, gotID)
				assert.Equal(t, "BOOSTER", gotRole)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole("ADMIN")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/webhooks/review", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req.WithContext(WithUser(req.Context(), 1, "ADMIN")))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req.WithContext(WithUser(req.Context(), 2, "CUSTOMER")))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRefreshRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	roles := NewMockRoleSource(ctrl)

	var gotRole string
	handler := RefreshRole(roles)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotRole, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name         string
		prepareMock  func()
		expectedCode int
		expectedRole string
	}{
		{
			name: "Promoted since the token was issued",
			prepareMock: func() {
				roles.EXPECT().CurrentRole(gomock.Any(), 5).Return("BOOSTER", nil)
			},
			expectedCode: http.StatusOK,
			expectedRole: "BOOSTER",
		},
		{
			name: "Deleted user",
			prepareMock: func() {
				roles.EXPECT().CurrentRole(gomock.Any(), 5).Return("", nil)
			},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "Lookup fails",
			prepareMock: func() {
				roles.EXPECT().CurrentRole(gomock.Any(), 5).Return("", errors.New("db down"))
			},
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotRole = ""
			tt.prepareMock()

			req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req.WithContext(WithUser(req.Context(), 5, "CUSTOMER")))

			assert.Equal(t, tt.expectedCode, rr.Code)
			assert.Equal(t, tt.expectedRole, gotRole)
		})
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
