package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/dto"
	"github.com/GlebRadaev/boostmarket/internal/pricing"
	"github.com/GlebRadaev/boostmarket/internal/service/orderservice"
	"github.com/GlebRadaev/boostmarket/internal/service/walletservice"
	"github.com/GlebRadaev/boostmarket/pkg/auth"
	"github.com/GlebRadaev/boostmarket/pkg/utils"
)

func NewMock(t *testing.T) (*OrderHandler, *MockService) {
	ctrl := gomock.NewController(t)
	service := NewMockService(ctrl)
	return New(service), service
}

func request(method, body, id string, userID int, role string) *http.Request {
	req := httptest.NewRequest(method, "/", bytes.NewReader([]byte(body)))
	ctx := auth.WithUser(req.Context(), userID, role)
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func message(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp utils.Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Message
}

func TestQuote(t *testing.T) {
	handler, service := NewMock(t)

	quote := pricing.Quote{BasePrice: 450000, OptionFees: 157500, TotalPrice: 607500}
	service.EXPECT().Quote(pricing.Input{ServiceType: "RANK_BOOST", CurrentRank: "GOLD_IV", DesiredRank: "PLATINUM_IV",
		Options: domain.Options{FlashBoost: true}}).Return(quote, nil)
	service.EXPECT().Quote(pricing.Input{ServiceType: "RANK_BOOST", CurrentRank: "GOLD_IV", DesiredRank: "GOLD_IV"}).
		Return(pricing.Quote{}, fmt.Errorf("%w: %w", orderservice.ErrInvalidOrder, pricing.ErrRankNotIncreasing))

	rr := httptest.NewRecorder()
	handler.Quote(rr, request(http.MethodPost,
		`{"service_type":"RANK_BOOST","current_rank":"GOLD_IV","desired_rank":"PLATINUM_IV","options":{"flash_boost":true}}`, "", 0, ""))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp dto.QuoteResponseDTO
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, int64(607500), resp.TotalPrice)

	rr = httptest.NewRecorder()
	handler.Quote(rr, request(http.MethodPost,
		`{"service_type":"RANK_BOOST","current_rank":"GOLD_IV","desired_rank":"GOLD_IV"}`, "", 0, ""))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.False(t, resp.Valid)
	assert.Contains(t, resp.Error, pricing.ErrRankNotIncreasing.Error())
}

func TestCreateOrder(t *testing.T) {
	body := `{"service_type":"NET_WINS","games_count":5,"server":"EUW","summoner":"alice#EUW"}`
	req := orderservice.CreateRequest{
		Input:    pricing.Input{ServiceType: "NET_WINS", GamesCount: 5},
		Server:   "EUW",
		Summoner: "alice#EUW",
	}

	tests := []struct {
		name          string
		body          string
		prepareMock   func(service *MockService)
		expectedCode  int
		expectedError string
	}{
		{
			name: "Order paid",
			body: body,
			prepareMock: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), 2, req).
					Return(&domain.Order{ID: 17, CustomerID: 2, Status: domain.OrderPaid, TotalAmount: 200000}, nil)
			},
			expectedCode: http.StatusCreated,
		},
		{
			name: "Insufficient funds",
			body: body,
			prepareMock: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), 2, req).Return(nil, walletservice.ErrInsufficientFunds)
			},
			expectedCode:  http.StatusPaymentRequired,
			expectedError: walletservice.ErrInsufficientFunds.Error(),
		},
		{
			name: "Invalid selection",
			body: body,
			prepareMock: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), 2, req).
					Return(nil, fmt.Errorf("%w: %w", orderservice.ErrInvalidOrder, pricing.ErrInvalidGames))
			},
			expectedCode: http.StatusUnprocessableEntity,
		},
		{
			name:          "Invalid body",
			body:          `[`,
			prepareMock:   func(service *MockService) {},
			expectedCode:  http.StatusBadRequest,
			expectedError: "Invalid request body",
		},
		{
			name: "Internal error",
			body: body,
			prepareMock: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), 2, req).Return(nil, errors.New("db down"))
			},
			expectedCode:  http.StatusInternalServerError,
			expectedError: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service := NewMock(t)
			tt.prepareMock(service)

			rr := httptest.NewRecorder()
			handler.CreateOrder(rr, request(http.MethodPost, tt.body, "", 2, domain.RoleCustomer))

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, message(t, rr))
			}
			if tt.expectedCode == http.StatusCreated {
				var resp dto.OrderResponseDTO
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.Equal(t, 17, resp.ID)
				assert.Equal(t, domain.OrderPaid, resp.Status)
			}
		})
	}
}

func TestOrderActions(t *testing.T) {
	customer := domain.Actor{UserID: 2, Role: domain.RoleCustomer}
	booster := domain.Actor{UserID: 7, Role: domain.RoleBooster}
	admin := domain.Actor{UserID: 1, Role: domain.RoleAdmin}
	order := &domain.Order{ID: 5, CustomerID: 2}

	tests := []struct {
		name         string
		call         func(h *OrderHandler, w http.ResponseWriter, r *http.Request)
		actor        domain.Actor
		id           string
		prepareMock  func(service *MockService)
		expectedCode int
	}{
		{
			name:  "Get own order",
			call:  (*OrderHandler).GetOrder,
			actor: customer,
			id:    "5",
			prepareMock: func(service *MockService) {
				service.EXPECT().GetOrder(gomock.Any(), customer, 5).Return(order, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:  "Get foreign order",
			call:  (*OrderHandler).GetOrder,
			actor: customer,
			id:    "6",
			prepareMock: func(service *MockService) {
				service.EXPECT().GetOrder(gomock.Any(), customer, 6).Return(nil, orderservice.ErrOrderNotFound)
			},
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "Malformed id",
			call:         (*OrderHandler).GetOrder,
			actor:        customer,
			id:           "abc",
			prepareMock:  func(service *MockService) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:  "Cancel claimed order",
			call:  (*OrderHandler).CancelOrder,
			actor: customer,
			id:    "5",
			prepareMock: func(service *MockService) {
				service.EXPECT().Cancel(gomock.Any(), 2, 5).Return(nil, orderservice.ErrOrderUnavailable)
			},
			expectedCode: http.StatusConflict,
		},
		{
			name:  "Dispute by outsider",
			call:  (*OrderHandler).DisputeOrder,
			actor: booster,
			id:    "5",
			prepareMock: func(service *MockService) {
				service.EXPECT().Dispute(gomock.Any(), booster, 5).Return(nil, orderservice.ErrForbidden)
			},
			expectedCode: http.StatusForbidden,
		},
		{
			name:  "Claim won",
			call:  (*OrderHandler).ClaimJob,
			actor: booster,
			id:    "5",
			prepareMock: func(service *MockService) {
				service.EXPECT().Claim(gomock.Any(), 7, 5).Return(&domain.Order{ID: 5, BoosterID: 7, Status: domain.OrderApproved}, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:  "Claim lost",
			call:  (*OrderHandler).ClaimJob,
			actor: booster,
			id:    "5",
			prepareMock: func(service *MockService) {
				service.EXPECT().Claim(gomock.Any(), 7, 5).Return(nil, orderservice.ErrOrderUnavailable)
			},
			expectedCode: http.StatusConflict,
		},
		{
			name:  "Start",
			call:  (*OrderHandler).StartJob,
			actor: booster,
			id:    "5",
			prepareMock: func(service *MockService) {
				service.EXPECT().Start(gomock.Any(), 7, 5).Return(&domain.Order{ID: 5, Status: domain.OrderInProgress}, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:  "Complete by admin",
			call:  (*OrderHandler).CompleteJob,
			actor: admin,
			id:    "5",
			prepareMock: func(service *MockService) {
				service.EXPECT().Complete(gomock.Any(), admin, 5).Return(&domain.Order{ID: 5, Status: domain.OrderCompleted, Released: true}, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:  "Refund after release",
			call:  (*OrderHandler).RefundOrder,
			actor: admin,
			id:    "5",
			prepareMock: func(service *MockService) {
				service.EXPECT().Refund(gomock.Any(), 5).Return(nil, orderservice.ErrAlreadyReleased)
			},
			expectedCode: http.StatusConflict,
		},
		{
			name:  "Release again is a no-op",
			call:  (*OrderHandler).ReleaseEarnings,
			actor: admin,
			id:    "5",
			prepareMock: func(service *MockService) {
				service.EXPECT().ReleaseEarnings(gomock.Any(), 5).Return(&domain.Order{ID: 5, Released: true}, false, nil)
			},
			expectedCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service := NewMock(t)
			tt.prepareMock(service)

			rr := httptest.NewRecorder()
			tt.call(handler, rr, request(http.MethodPost, "", tt.id, tt.actor.UserID, tt.actor.Role))

			assert.Equal(t, tt.expectedCode, rr.Code)
		})
	}
}

func TestLists(t *testing.T) {
	handler, service := NewMock(t)

	service.EXPECT().GetOrders(gomock.Any(), 2).Return(nil, nil)
	service.EXPECT().GetAvailable(gomock.Any()).Return([]domain.Order{{ID: 1}, {ID: 2}}, nil)
	service.EXPECT().GetBoosterOrders(gomock.Any(), 7).Return(nil, errors.New("db down"))

	rr := httptest.NewRecorder()
	handler.GetOrders(rr, request(http.MethodGet, "", "", 2, domain.RoleCustomer))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = httptest.NewRecorder()
	handler.GetJobs(rr, request(http.MethodGet, "", "", 7, domain.RoleBooster))
	var jobs []dto.OrderResponseDTO
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&jobs))
	assert.Len(t, jobs, 2)

	rr = httptest.NewRecorder()
	handler.GetMyJobs(rr, request(http.MethodGet, "", "", 7, domain.RoleBooster))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
