package userrepo

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

var columns = []string{"id", "username", "email", "password_hash", "role", "email_verified", "wallet_balance", "pending_balance", "completed_orders", "created_at"}

func TestRepository_FindByLogin(t *testing.T) {
	repo, mock := NewMock(t)
	now := time.Now()

	tests := []struct {
		name      string
		login     string
		mockSetup func()
		expectErr bool
		result    *domain.User
	}{
		{
			name:  "User found by email",
			login: "Alice@example.com",
			mockSetup: func() {
				rows := pgxmock.NewRows(columns).
					AddRow(2, "alice", "alice@example.com", "hashed_password", domain.RoleCustomer, true, int64(100000), int64(0), 0, now)
				mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)")).
					WithArgs("Alice@example.com").
					WillReturnRows(rows)
			},
			result: &domain.User{
				ID:            2,
				Username:      "alice",
				Email:         "alice@example.com",
				PasswordHash:  "hashed_password",
				Role:          domain.RoleCustomer,
				EmailVerified: true,
				WalletBalance: 100000,
				CreatedAt:     now,
			},
		},
		{
			name:  "User not found",
			login: "ghost",
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(username) = LOWER($1)")).
					WithArgs("ghost").
					WillReturnError(pgx.ErrNoRows)
			},
		},
		{
			name:  "Database error",
			login: "alice",
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(username) = LOWER($1)")).
					WithArgs("alice").
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			result, err := repo.FindByLogin(context.Background(), tt.login)
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

func TestRepository_FindByUsername(t *testing.T) {
	repo, mock := NewMock(t)
	now := time.Now()

	rows := pgxmock.NewRows(columns).
		AddRow(5, "Alice", "alice@example.com", "hash", domain.RoleBooster, false, int64(0), int64(0), 12, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(username) = LOWER($1)")).
		WithArgs("ALICE").
		WillReturnRows(rows)

	user, err := repo.FindByUsername(context.Background(), "ALICE")
	assert.NoError(t, err)
	assert.Equal(t, 5, user.ID)
	assert.Equal(t, 12, user.CompletedOrders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Create(t *testing.T) {
	repo, mock := NewMock(t)
	now := time.Now()

	tests := []struct {
		name      string
		user      *domain.User
		mockSetup func()
		expectErr bool
	}{
		{
			name: "User created",
			user: &domain.User{Username: "bob", Email: "bob@example.com", PasswordHash: "hash", Role: domain.RoleCustomer},
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (username, email, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING id, created_at")).
					WithArgs("bob", "bob@example.com", "hash", domain.RoleCustomer).
					WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(3, now))
			},
		},
		{
			name: "Duplicate username",
			user: &domain.User{Username: "bob", Email: "bob2@example.com", PasswordHash: "hash", Role: domain.RoleCustomer},
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
					WithArgs("bob", "bob2@example.com", "hash", domain.RoleCustomer).
					WillReturnError(errors.New("duplicate key value violates unique constraint"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			result, err := repo.Create(context.Background(), tt.user)
			if tt.expectErr {
				assert.Error(t, err)
				assert.Nil(t, result)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, 3, result.ID)
				assert.Equal(t, now, result.CreatedAt)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_AddBalance(t *testing.T) {
	repo, mock := NewMock(t)
	query := regexp.QuoteMeta("SET wallet_balance = wallet_balance + $1 WHERE id = $2 AND wallet_balance + $1 >= 0 RETURNING wallet_balance")

	tests := []struct {
		name        string
		userID      int
		delta       int64
		mockSetup   func()
		wantBalance int64
		wantOK      bool
		expectErr   bool
	}{
		{
			name:   "Debit within balance",
			userID: 2,
			delta:  -486000,
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs(int64(-486000), 2).
					WillReturnRows(pgxmock.NewRows([]string{"wallet_balance"}).AddRow(int64(14000)))
			},
			wantBalance: 14000,
			wantOK:      true,
		},
		{
			name:   "Overdraft is refused",
			userID: 2,
			delta:  -600000,
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs(int64(-600000), 2).
					WillReturnError(pgx.ErrNoRows)
			},
		},
		{
			name:   "Database error",
			userID: 2,
			delta:  100,
			mockSetup: func() {
				mock.ExpectQuery(query).
					WithArgs(int64(100), 2).
					WillReturnError(errors.New("connection reset"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			balance, ok, err := repo.AddBalance(context.Background(), tt.userID, tt.delta)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantBalance, balance)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_Updates(t *testing.T) {
	repo, mock := NewMock(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role = $1 WHERE id = $2")).
		WithArgs(domain.RoleBooster, 4).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET email_verified = TRUE WHERE LOWER(email) = LOWER($1)")).
		WithArgs("a@b.c").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $1 WHERE LOWER(email) = LOWER($2)")).
		WithArgs("newhash", "a@b.c").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET email = $1, email_verified = TRUE WHERE id = $2")).
		WithArgs("new@b.c", 4).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET completed_orders = completed_orders + 1 WHERE id = $1")).
		WithArgs(4).
		WillReturnError(errors.New("database error"))

	assert.NoError(t, repo.SetRole(ctx, 4, domain.RoleBooster))
	assert.NoError(t, repo.MarkEmailVerified(ctx, "a@b.c"))
	assert.NoError(t, repo.UpdatePassword(ctx, "a@b.c", "newhash"))
	assert.NoError(t, repo.UpdateEmail(ctx, 4, "new@b.c"))
	assert.Error(t, repo.IncrementCompletedOrders(ctx, 4))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetBalance(t *testing.T) {
	repo, mock := NewMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT wallet_balance FROM users WHERE id = $1")).
		WithArgs(9).
		WillReturnRows(pgxmock.NewRows([]string{"wallet_balance"}).AddRow(int64(700)))

	balance, err := repo.GetBalance(context.Background(), 9)
	assert.NoError(t, err)
	assert.Equal(t, int64(700), balance)
}
