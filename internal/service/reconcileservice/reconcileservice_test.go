package reconcileservice

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/pg"
	"github.com/GlebRadaev/boostmarket/internal/service/walletservice"
)

const (
	pendingID = "0b9f3a52-8d1e-4c7a-9e0f-5c2b7d1a9f3e"
	otherID   = "7d2c1e90-1111-4a2b-8c3d-00000000a1b2"
)

type mocks struct {
	users    *MockUserRepo
	txs      *MockTransactionRepo
	webhooks *MockWebhookRepo
	wallet   *MockWallet
	notifier *MockNotifier
}

func NewMock(t *testing.T) (*Service, mocks) {
	ctrl := gomock.NewController(t)
	m := mocks{
		users:    NewMockUserRepo(ctrl),
		txs:      NewMockTransactionRepo(ctrl),
		webhooks: NewMockWebhookRepo(ctrl),
		wallet:   NewMockWallet(ctrl),
		notifier: NewMockNotifier(ctrl),
	}
	txManager := pg.NewMockTXManager(ctrl)
	txManager.EXPECT().Begin(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn pg.TransactionalFn) error {
			return fn(ctx)
		}).AnyTimes()

	return New(m.users, m.txs, m.webhooks, m.wallet, txManager, m.notifier, "NAP"), m
}

func TestParser(t *testing.T) {
	p := NewParser("NAP")

	tests := []struct {
		content string
		ok      bool
		ref     Reference
	}{
		{content: "NAP ALICE", ok: true, ref: Reference{Username: "ALICE"}},
		{content: "nap alice 1a9f3e", ok: true, ref: Reference{Username: "alice", Code: "1A9F3E"}},
		{content: "  NAP   bob_99   ABCD  ", ok: true, ref: Reference{Username: "bob_99", Code: "ABCD"}},
		{content: "NAPALICE", ok: false},
		{content: "PAY ALICE", ok: false},
		{content: "NAP ALICE 1A9F3E extra", ok: false},
		{content: "NAP ALICE AB", ok: false},
		{content: "hello world", ok: false},
		{content: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			ref, ok := p.Parse(tt.content)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ref, ref)
		})
	}
}

func TestHandleNotification(t *testing.T) {
	alice := &domain.User{ID: 2, Username: "alice"}
	pending := domain.Transaction{ID: pendingID, UserID: 2, Type: domain.TxDeposit, Amount: 100000, Status: domain.TxStatusPending}
	settled := &domain.Transaction{ID: pendingID, UserID: 2, Type: domain.TxDeposit, Amount: 100000, BalanceAfter: 100000, Status: domain.TxStatusSuccess}

	insertNew := func(m mocks) {
		m.webhooks.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e *domain.WebhookEvent) (bool, error) {
				e.ID = 1
				return true, nil
			})
	}
	expectOutcome := func(m mocks, status string) {
		m.webhooks.EXPECT().UpdateOutcome(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e *domain.WebhookEvent) error {
				assert.Equal(t, status, e.Status)
				return nil
			})
	}

	tests := []struct {
		name           string
		notification   domain.BankNotification
		prepareMock    func(m mocks)
		expectedStatus string
		expectedError  bool
	}{
		{
			name:         "Pending deposit settled",
			notification: domain.BankNotification{ProviderID: "evt-1", Direction: "in", Amount: 100000, Content: "NAP ALICE"},
			prepareMock: func(m mocks) {
				insertNew(m)
				m.users.EXPECT().FindByUsername(gomock.Any(), "ALICE").Return(alice, nil)
				m.txs.EXPECT().FindPendingDeposits(gomock.Any(), 2, int64(100000)).Return([]domain.Transaction{pending}, nil)
				m.wallet.EXPECT().SettlePending(gomock.Any(), pendingID).Return(settled, nil)
				m.webhooks.EXPECT().UpdateOutcome(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, e *domain.WebhookEvent) error {
						assert.Equal(t, domain.WebhookProcessed, e.Status)
						assert.Equal(t, pendingID, e.TransactionID)
						assert.Equal(t, 2, e.UserID)
						return nil
					})
				m.notifier.EXPECT().Notify(2, gomock.Any()).Do(func(_ int, ev domain.Event) {
					assert.Equal(t, int64(100000), ev.Balance)
				})
			},
			expectedStatus: domain.WebhookProcessed,
		},
		{
			name:         "Code selects the matching request",
			notification: domain.BankNotification{ProviderID: "evt-2", Direction: "in", Amount: 100000, Content: "NAP alice 00A1B2"},
			prepareMock: func(m mocks) {
				insertNew(m)
				m.users.EXPECT().FindByUsername(gomock.Any(), "alice").Return(alice, nil)
				m.txs.EXPECT().FindPendingDeposits(gomock.Any(), 2, int64(100000)).Return([]domain.Transaction{
					pending, {ID: otherID, UserID: 2, Type: domain.TxDeposit, Amount: 100000, Status: domain.TxStatusPending},
				}, nil)
				m.wallet.EXPECT().SettlePending(gomock.Any(), otherID).Return(&domain.Transaction{ID: otherID, UserID: 2, Amount: 100000}, nil)
				expectOutcome(m, domain.WebhookProcessed)
				m.notifier.EXPECT().Notify(2, gomock.Any())
			},
			expectedStatus: domain.WebhookProcessed,
		},
		{
			name:         "Code from payload field",
			notification: domain.BankNotification{ProviderID: "evt-3", Direction: "in", Amount: 100000, Content: "NAP ALICE", Code: "1a9f3e"},
			prepareMock: func(m mocks) {
				insertNew(m)
				m.users.EXPECT().FindByUsername(gomock.Any(), "ALICE").Return(alice, nil)
				m.txs.EXPECT().FindPendingDeposits(gomock.Any(), 2, int64(100000)).Return([]domain.Transaction{pending}, nil)
				m.wallet.EXPECT().SettlePending(gomock.Any(), pendingID).Return(settled, nil)
				expectOutcome(m, domain.WebhookProcessed)
				m.notifier.EXPECT().Notify(2, gomock.Any())
			},
			expectedStatus: domain.WebhookProcessed,
		},
		{
			name:         "Code mismatch goes to review",
			notification: domain.BankNotification{ProviderID: "evt-4", Direction: "in", Amount: 100000, Content: "NAP ALICE FFFFFF"},
			prepareMock: func(m mocks) {
				insertNew(m)
				m.users.EXPECT().FindByUsername(gomock.Any(), "ALICE").Return(alice, nil)
				m.txs.EXPECT().FindPendingDeposits(gomock.Any(), 2, int64(100000)).Return([]domain.Transaction{pending}, nil)
				expectOutcome(m, domain.WebhookReview)
			},
			expectedStatus: domain.WebhookReview,
		},
		{
			name:         "Content and payload codes disagree",
			notification: domain.BankNotification{ProviderID: "evt-5", Direction: "in", Amount: 100000, Content: "NAP ALICE 1A9F3E", Code: "00A1B2"},
			prepareMock: func(m mocks) {
				insertNew(m)
				expectOutcome(m, domain.WebhookReview)
			},
			expectedStatus: domain.WebhookReview,
		},
		{
			name:         "No pending request credits directly",
			notification: domain.BankNotification{ProviderID: "evt-6", Direction: "in", Amount: 50000, Content: "NAP ALICE"},
			prepareMock: func(m mocks) {
				insertNew(m)
				m.users.EXPECT().FindByUsername(gomock.Any(), "ALICE").Return(alice, nil)
				m.txs.EXPECT().FindPendingDeposits(gomock.Any(), 2, int64(50000)).Return(nil, nil)
				m.wallet.EXPECT().Credit(gomock.Any(), 2, int64(50000), walletservice.Entry{
					Type: domain.TxDeposit, Description: "Bank transfer top-up",
				}).Return(&domain.Transaction{ID: otherID, UserID: 2, Amount: 50000, BalanceAfter: 50000}, nil)
				expectOutcome(m, domain.WebhookProcessed)
				m.notifier.EXPECT().Notify(2, gomock.Any())
			},
			expectedStatus: domain.WebhookProcessed,
		},
		{
			name:         "Garbage content goes to review",
			notification: domain.BankNotification{ProviderID: "evt-7", Direction: "in", Amount: 100000, Content: "thanks for the boost"},
			prepareMock: func(m mocks) {
				insertNew(m)
				expectOutcome(m, domain.WebhookReview)
			},
			expectedStatus: domain.WebhookReview,
		},
		{
			name:         "Unknown username goes to review",
			notification: domain.BankNotification{ProviderID: "evt-8", Direction: "in", Amount: 100000, Content: "NAP MALLORY"},
			prepareMock: func(m mocks) {
				insertNew(m)
				m.users.EXPECT().FindByUsername(gomock.Any(), "MALLORY").Return(nil, nil)
				expectOutcome(m, domain.WebhookReview)
			},
			expectedStatus: domain.WebhookReview,
		},
		{
			name:         "Outbound transfer ignored",
			notification: domain.BankNotification{ProviderID: "evt-9", Direction: "out", Amount: 100000, Content: "NAP ALICE"},
			prepareMock: func(m mocks) {
				insertNew(m)
				expectOutcome(m, domain.WebhookIgnored)
			},
			expectedStatus: domain.WebhookIgnored,
		},
		{
			name:         "Unrecognised direction stored as other",
			notification: domain.BankNotification{ProviderID: "evt-12", Direction: "incoming_transfer", Amount: 100000, Content: "NAP ALICE"},
			prepareMock: func(m mocks) {
				m.webhooks.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, e *domain.WebhookEvent) (bool, error) {
						assert.Equal(t, domain.DirectionOther, e.Direction)
						return true, nil
					})
				expectOutcome(m, domain.WebhookIgnored)
			},
			expectedStatus: domain.WebhookIgnored,
		},
		{
			name: "Long reference truncated",
			notification: domain.BankNotification{
				ProviderID: "evt-13", Direction: " IN ", Amount: 100000, Content: "thanks", Reference: strings.Repeat("R", 200),
			},
			prepareMock: func(m mocks) {
				m.webhooks.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, e *domain.WebhookEvent) (bool, error) {
						assert.Equal(t, domain.DirectionIn, e.Direction)
						assert.Equal(t, strings.Repeat("R", 64), e.Reference)
						return true, nil
					})
				expectOutcome(m, domain.WebhookReview)
			},
			expectedStatus: domain.WebhookReview,
		},
		{
			name:         "Replay of the same notification",
			notification: domain.BankNotification{ProviderID: "evt-1", Direction: "in", Amount: 100000, Content: "NAP ALICE"},
			prepareMock: func(m mocks) {
				m.webhooks.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(false, nil)
			},
			expectedStatus: domain.WebhookDuplicate,
		},
		{
			name:         "Admin confirmed first",
			notification: domain.BankNotification{ProviderID: "evt-10", Direction: "in", Amount: 100000, Content: "NAP ALICE"},
			prepareMock: func(m mocks) {
				insertNew(m)
				m.users.EXPECT().FindByUsername(gomock.Any(), "ALICE").Return(alice, nil)
				m.txs.EXPECT().FindPendingDeposits(gomock.Any(), 2, int64(100000)).Return([]domain.Transaction{pending}, nil)
				m.wallet.EXPECT().SettlePending(gomock.Any(), pendingID).Return(nil, walletservice.ErrAlreadyProcessed)
				expectOutcome(m, domain.WebhookAlreadyProcessed)
			},
			expectedStatus: domain.WebhookAlreadyProcessed,
		},
		{
			name:         "Database failure",
			notification: domain.BankNotification{ProviderID: "evt-11", Direction: "in", Amount: 100000, Content: "NAP ALICE"},
			prepareMock: func(m mocks) {
				insertNew(m)
				m.users.EXPECT().FindByUsername(gomock.Any(), "ALICE").Return(nil, errors.New("connection reset"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, m := NewMock(t)
			tt.prepareMock(m)

			event, err := service.HandleNotification(context.Background(), tt.notification)
			if tt.expectedError {
				assert.Error(t, err)
				assert.Nil(t, event)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, event.Status)
		})
	}
}

func TestHandleNotificationRequiresProviderID(t *testing.T) {
	service, _ := NewMock(t)

	_, err := service.HandleNotification(context.Background(), domain.BankNotification{Direction: "in", Amount: 1})
	assert.ErrorIs(t, err, ErrMissingProviderID)

	_, err = service.HandleNotification(context.Background(), domain.BankNotification{
		ProviderID: strings.Repeat("9", 129), Direction: "in", Amount: 1,
	})
	assert.ErrorIs(t, err, ErrProviderIDTooLong)
}

func TestListForReview(t *testing.T) {
	service, m := NewMock(t)

	m.webhooks.EXPECT().ListByStatus(gomock.Any(), domain.WebhookReview).Return([]domain.WebhookEvent{{ID: 1, Status: domain.WebhookReview}}, nil)

	events, err := service.ListForReview(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
