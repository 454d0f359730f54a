package userrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/pg"
)

const userColumns = `id, username, email, password_hash, role, email_verified, wallet_balance, pending_balance, completed_orders, created_at`

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func (repo *Repository) findOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var user domain.User
	err := repo.db.QueryRow(ctx, query, args...).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.EmailVerified,
		&user.WalletBalance, &user.PendingBalance, &user.CompletedOrders, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("can't find user", zap.Error(err))
		return nil, err
	}
	return &user, nil
}

func (repo *Repository) FindByID(ctx context.Context, id int) (*domain.User, error) {
	return repo.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

func (repo *Repository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return repo.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE LOWER(username) = LOWER($1)", username)
}

func (repo *Repository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return repo.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE LOWER(email) = LOWER($1)", email)
}

// FindByLogin matches either the username or the email address.
func (repo *Repository) FindByLogin(ctx context.Context, login string) (*domain.User, error) {
	return repo.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)", login)
}

func (repo *Repository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := repo.db.QueryRow(ctx, query, user.Username, user.Email, user.PasswordHash, user.Role).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		zap.L().Error("can't save user", zap.Error(err))
		return nil, err
	}
	return user, nil
}

// AddBalance applies delta to the wallet in one statement. ok is false when the user does not
// exist or the result would be negative; nothing is written in that case.
func (repo *Repository) AddBalance(ctx context.Context, userID int, delta int64) (balance int64, ok bool, err error) {
	query := `
		UPDATE users
		SET wallet_balance = wallet_balance + $1
		WHERE id = $2 AND wallet_balance + $1 >= 0
		RETURNING wallet_balance
	`
	err = repo.db.QueryRow(ctx, query, delta, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		zap.L().Error("can't update wallet balance", zap.Int("user_id", userID), zap.Error(err))
		return 0, false, err
	}
	return balance, true, nil
}

func (repo *Repository) GetBalance(ctx context.Context, userID int) (int64, error) {
	var balance int64
	err := repo.db.QueryRow(ctx, "SELECT wallet_balance FROM users WHERE id = $1", userID).Scan(&balance)
	if err != nil {
		zap.L().Error("can't read wallet balance", zap.Error(err))
		return 0, err
	}
	return balance, nil
}

func (repo *Repository) SetRole(ctx context.Context, userID int, role string) error {
	_, err := repo.db.Exec(ctx, "UPDATE users SET role = $1 WHERE id = $2", role, userID)
	if err != nil {
		zap.L().Error("can't update user role", zap.Error(err))
		return err
	}
	return nil
}

func (repo *Repository) MarkEmailVerified(ctx context.Context, email string) error {
	_, err := repo.db.Exec(ctx, "UPDATE users SET email_verified = TRUE WHERE LOWER(email) = LOWER($1)", email)
	if err != nil {
		zap.L().Error("can't mark email verified", zap.Error(err))
		return err
	}
	return nil
}

func (repo *Repository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	_, err := repo.db.Exec(ctx, "UPDATE users SET password_hash = $1 WHERE LOWER(email) = LOWER($2)", passwordHash, email)
	if err != nil {
		zap.L().Error("can't update password", zap.Error(err))
		return err
	}
	return nil
}

func (repo *Repository) UpdateEmail(ctx context.Context, userID int, email string) error {
	_, err := repo.db.Exec(ctx, "UPDATE users SET email = $1, email_verified = TRUE WHERE id = $2", email, userID)
	if err != nil {
		zap.L().Error("can't update email", zap.Error(err))
		return err
	}
	return nil
}

func (repo *Repository) IncrementCompletedOrders(ctx context.Context, userID int) error {
	_, err := repo.db.Exec(ctx, "UPDATE users SET completed_orders = completed_orders + 1 WHERE id = $1", userID)
	if err != nil {
		zap.L().Error("can't increment completed orders", zap.Error(err))
		return err
	}
	return nil
}
