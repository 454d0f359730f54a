package coderepo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"

	"github.com/GlebRadaev/boostmarket/internal/domain"
)

func NewMock(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	mockDB, err := pgxmock.NewPool()
	assert.NoError(t, err)
	repo := New(mockDB)
	t.Cleanup(mockDB.Close)

	return repo, mockDB
}

func TestRepository_Upsert(t *testing.T) {
	repo, mock := NewMock(t)
	expires := time.Now().Add(10 * time.Minute)
	code := &domain.VerificationCode{Email: "Alice@Example.com", Type: domain.CodeEmailVerify, Code: "042137", ExpiresAt: expires}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (email, type) DO UPDATE SET code = EXCLUDED.code, attempts = 0")).
		WithArgs("Alice@Example.com", domain.CodeEmailVerify, "042137", expires).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO verification_codes")).
		WithArgs("Alice@Example.com", domain.CodeEmailVerify, "042137", expires).
		WillReturnError(errors.New("database error"))

	assert.NoError(t, repo.Upsert(context.Background(), code))
	assert.Error(t, repo.Upsert(context.Background(), code))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ClaimAttempt(t *testing.T) {
	repo, mock := NewMock(t)
	expires := time.Now().Add(5 * time.Minute)
	query := regexp.QuoteMeta("SET attempts = attempts + 1 WHERE email = LOWER($1) AND type = $2 AND attempts < $3 AND expires_at > NOW()")

	tests := []struct {
		name      string
		mockSetup func()
		expectErr bool
		result    *domain.VerificationCode
	}{
		{
			name: "Attempt spent on a live code",
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs("alice@example.com", domain.CodePasswordReset, 3).
					WillReturnRows(pgxmock.NewRows([]string{"email", "type", "code", "attempts", "expires_at"}).
						AddRow("alice@example.com", domain.CodePasswordReset, "123456", 2, expires))
			},
			result: &domain.VerificationCode{
				Email: "alice@example.com", Type: domain.CodePasswordReset, Code: "123456", Attempts: 2, ExpiresAt: expires,
			},
		},
		{
			name: "Expired, exhausted or already deleted",
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs("alice@example.com", domain.CodePasswordReset, 3).
					WillReturnError(pgx.ErrNoRows)
			},
		},
		{
			name: "Database error",
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs("alice@example.com", domain.CodePasswordReset, 3).
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			result, err := repo.ClaimAttempt(context.Background(), "alice@example.com", domain.CodePasswordReset, 3)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.result, result)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_Delete(t *testing.T) {
	repo, mock := NewMock(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM verification_codes WHERE email = LOWER($1) AND type = $2")).
		WithArgs("a@b.c", domain.CodeEmailVerify).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM verification_codes WHERE expires_at <= NOW()")).
		WithArgs().
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	assert.NoError(t, repo.Delete(ctx, "a@b.c", domain.CodeEmailVerify))

	purged, err := repo.DeleteExpired(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), purged)
	assert.NoError(t, mock.ExpectationsWereMet())
}
