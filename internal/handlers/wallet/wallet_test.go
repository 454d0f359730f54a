package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/dto"
	"github.com/GlebRadaev/boostmarket/internal/service/walletservice"
	"github.com/GlebRadaev/boostmarket/pkg/auth"
)

func NewMock(t *testing.T) (*WalletHandler, *MockService) {
	ctrl := gomock.NewController(t)
	service := NewMockService(ctrl)
	return New(service), service
}

func request(body, id string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(body)))
	ctx := auth.WithUser(req.Context(), 2, domain.RoleCustomer)
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func TestGetWallet(t *testing.T) {
	tests := []struct {
		name         string
		prepareMock  func(service *MockService)
		expectedCode int
		expectedBody string
	}{
		{
			name: "Balance returned",
			prepareMock: func(service *MockService) {
				service.EXPECT().GetBalance(gomock.Any(), 2).Return(&domain.Wallet{UserID: 2, Balance: 1500000, Pending: 100000}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"balance":1500000,"pending":100000}`,
		},
		{
			name: "Unknown user",
			prepareMock: func(service *MockService) {
				service.EXPECT().GetBalance(gomock.Any(), 2).Return(nil, walletservice.ErrUserNotFound)
			},
			expectedCode: http.StatusNotFound,
		},
		{
			name: "Database failure",
			prepareMock: func(service *MockService) {
				service.EXPECT().GetBalance(gomock.Any(), 2).Return(nil, errors.New("db down"))
			},
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service := NewMock(t)
			tt.prepareMock(service)

			rr := httptest.NewRecorder()
			handler.GetWallet(rr, request("", ""))

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, rr.Body.String())
			}
		})
	}
}

func TestGetTransactions(t *testing.T) {
	handler, service := NewMock(t)
	service.EXPECT().GetTransactions(gomock.Any(), 2).Return([]domain.Transaction{
		{ID: "a", Type: domain.TxDeposit, Amount: 100000, Status: domain.TxStatusSuccess},
		{ID: "b", Type: domain.TxPaymentHold, Amount: -50000, OrderID: 5, Status: domain.TxStatusSuccess},
	}, nil)

	rr := httptest.NewRecorder()
	handler.GetTransactions(rr, request("", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	var txs []dto.TransactionResponseDTO
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&txs))
	require.Len(t, txs, 2)
	assert.Equal(t, int64(-50000), txs[1].Amount)
	assert.Equal(t, 5, txs[1].OrderID)
}

func TestCreateDeposit(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		prepareMock  func(service *MockService)
		expectedCode int
	}{
		{
			name: "Deposit requested",
			body: `{"amount":100000}`,
			prepareMock: func(service *MockService) {
				service.EXPECT().CreateDepositRequest(gomock.Any(), 2, int64(100000)).Return(&domain.DepositRequest{
					Transaction: &domain.Transaction{ID: "tx", Amount: 100000, Status: domain.TxStatusPending},
					Code:        "1A9F3E",
					Content:     "NAP ALICE 1A9F3E",
				}, nil)
			},
			expectedCode: http.StatusCreated,
		},
		{
			name: "Non-positive amount",
			body: `{"amount":0}`,
			prepareMock: func(service *MockService) {
				service.EXPECT().CreateDepositRequest(gomock.Any(), 2, int64(0)).Return(nil, walletservice.ErrInvalidAmount)
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "Bad body",
			body:         `{"amount":"lots"}`,
			prepareMock:  func(service *MockService) {},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service := NewMock(t)
			tt.prepareMock(service)

			rr := httptest.NewRecorder()
			handler.CreateDeposit(rr, request(tt.body, ""))

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedCode == http.StatusCreated {
				var resp dto.DepositResponseDTO
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.Equal(t, "NAP ALICE 1A9F3E", resp.Content)
				assert.Equal(t, domain.TxStatusPending, resp.Transaction.Status)
			}
		})
	}
}

func TestAdminTransactions(t *testing.T) {
	handler, service := NewMock(t)

	service.EXPECT().ConfirmDeposit(gomock.Any(), "tx-1").
		Return(&domain.Transaction{ID: "tx-1", Status: domain.TxStatusSuccess, BalanceAfter: 100000}, nil)
	service.EXPECT().ConfirmDeposit(gomock.Any(), "tx-2").Return(nil, walletservice.ErrAlreadyProcessed)
	service.EXPECT().RejectPending(gomock.Any(), "tx-3").Return(nil, walletservice.ErrTransactionNotFound)

	rr := httptest.NewRecorder()
	handler.ConfirmTransaction(rr, request("", "tx-1"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ConfirmTransaction(rr, request("", "tx-2"))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = httptest.NewRecorder()
	handler.RejectTransaction(rr, request("", "tx-3"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetLedger(t *testing.T) {
	handler, service := NewMock(t)
	service.EXPECT().VerifyLedger(gomock.Any(), 4).
		Return(&domain.LedgerAudit{UserID: 4, Balance: 10, LedgerSum: 10, Consistent: true}, nil)

	rr := httptest.NewRecorder()
	handler.GetLedger(rr, request("", "4"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"user_id":4,"balance":10,"ledger_sum":10,"consistent":true}`, rr.Body.String())

	rr = httptest.NewRecorder()
	handler.GetLedger(rr, request("", "x"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
