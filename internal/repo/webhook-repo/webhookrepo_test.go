package webhookrepo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlebRadaev/boostmarket/internal/domain"
)

func NewMock(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	mockDB, err := pgxmock.NewPool()
	assert.NoError(t, err)
	repo := New(mockDB)
	t.Cleanup(mockDB.Close)

	return repo, mockDB
}

func TestRepository_Insert(t *testing.T) {
	repo, mock := NewMock(t)
	now := time.Now()
	query := regexp.QuoteMeta("ON CONFLICT (provider_id) DO NOTHING RETURNING id, created_at")

	tests := []struct {
		name      string
		mockSetup func()
		inserted  bool
		expectErr bool
	}{
		{
			name: "First delivery",
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs("sepay-991", domain.DirectionIn, int64(100000), "NAP ALICE", "FT24001", domain.WebhookProcessed).
					WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(5, now))
			},
			inserted: true,
		},
		{
			name: "Replayed delivery",
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs("sepay-991", domain.DirectionIn, int64(100000), "NAP ALICE", "FT24001", domain.WebhookProcessed).
					WillReturnError(pgx.ErrNoRows)
			},
		},
		{
			name: "Database error",
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs("sepay-991", domain.DirectionIn, int64(100000), "NAP ALICE", "FT24001", domain.WebhookProcessed).
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			event := &domain.WebhookEvent{
				ProviderID: "sepay-991", Direction: domain.DirectionIn, Amount: 100000,
				Content: "NAP ALICE", Reference: "FT24001", Status: domain.WebhookProcessed,
			}
			inserted, err := repo.Insert(context.Background(), event)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.inserted, inserted)
			if tt.inserted {
				assert.Equal(t, 5, event.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_UpdateOutcome(t *testing.T) {
	repo, mock := NewMock(t)

	mock.ExpectExec(regexp.QuoteMeta("SET status = $1, reason = $2, user_id = $3, transaction_id = $4 WHERE id = $5")).
		WithArgs(domain.WebhookReview, "unknown user", 0, "", 5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateOutcome(context.Background(), &domain.WebhookEvent{ID: 5, Status: domain.WebhookReview, Reason: "unknown user"})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListByStatus(t *testing.T) {
	repo, mock := NewMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM webhook_events WHERE status = $1 ORDER BY created_at ASC")).
		WithArgs(domain.WebhookReview).
		WillReturnRows(pgxmock.NewRows([]string{"id", "provider_id", "direction", "amount", "content", "reference", "status", "reason", "user_id", "transaction_id", "created_at"}).
			AddRow(5, "sepay-991", domain.DirectionIn, int64(100000), "hello there", "", domain.WebhookReview, "unparseable content", 0, "", now))

	events, err := repo.ListByStatus(context.Background(), domain.WebhookReview)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "unparseable content", events[0].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}
