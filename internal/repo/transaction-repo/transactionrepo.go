package transactionrepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/pg"
)

const txColumns = `id::text, user_id, COALESCE(order_id, 0), type, amount, balance_after, status, description, created_at`

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(&tx.ID, &tx.UserID, &tx.OrderID, &tx.Type, &tx.Amount, &tx.BalanceAfter, &tx.Status, &tx.Description, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *Repository) queryOne(ctx context.Context, op, query string, args ...any) (*domain.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("can't "+op, zap.Error(err))
		return nil, err
	}
	return tx, nil
}

func (r *Repository) queryMany(ctx context.Context, op, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		zap.L().Error("can't "+op, zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			zap.L().Error("can't scan transaction row", zap.Error(err))
			return nil, err
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("can't "+op, zap.Error(err))
		return nil, err
	}
	return txs, nil
}

func (r *Repository) Create(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	query := `
		INSERT INTO transactions (id, user_id, order_id, type, amount, balance_after, status, description)
		VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		tx.ID, tx.UserID, tx.OrderID, tx.Type, tx.Amount, tx.BalanceAfter, tx.Status, tx.Description,
	).Scan(&tx.CreatedAt)
	if err != nil {
		zap.L().Error("can't save transaction", zap.Error(err))
		return nil, err
	}
	return tx, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.queryOne(ctx, "find transaction", "SELECT "+txColumns+" FROM transactions WHERE id = $1", id)
}

func (r *Repository) FindByUserID(ctx context.Context, userID int) ([]domain.Transaction, error) {
	return r.queryMany(ctx, "get transactions",
		"SELECT "+txColumns+" FROM transactions WHERE user_id = $1 ORDER BY created_at DESC", userID)
}

// FindPendingDeposits returns open deposit requests of the user for exactly amount, oldest first.
func (r *Repository) FindPendingDeposits(ctx context.Context, userID int, amount int64) ([]domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE user_id = $1 AND type = 'DEPOSIT' AND status = 'PENDING' AND amount = $2
		ORDER BY created_at ASC`
	return r.queryMany(ctx, "get pending deposits", query, userID, amount)
}

// MarkSuccess settles a pending transaction. A nil result means it was not pending any more.
func (r *Repository) MarkSuccess(ctx context.Context, id string, balanceAfter int64) (*domain.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = 'SUCCESS', balance_after = $2
		WHERE id = $1 AND status = 'PENDING'
		RETURNING ` + txColumns
	return r.queryOne(ctx, "settle transaction", query, id, balanceAfter)
}

// MarkFailed closes a pending transaction without any ledger effect. A nil result means it was
// not pending any more.
func (r *Repository) MarkFailed(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = 'FAILED'
		WHERE id = $1 AND status = 'PENDING'
		RETURNING ` + txColumns
	return r.queryOne(ctx, "fail transaction", query, id)
}

// SumSuccess adds up every applied entry of the user.
func (r *Repository) SumSuccess(ctx context.Context, userID int) (int64, error) {
	var sum int64
	query := `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM transactions WHERE user_id = $1 AND status = 'SUCCESS'`
	if err := r.db.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		zap.L().Error("can't sum transactions", zap.Error(err))
		return 0, err
	}
	return sum, nil
}

// FailStalePending expires deposit requests created before cutoff.
func (r *Repository) FailStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE transactions
		SET status = 'FAILED'
		WHERE type = 'DEPOSIT' AND status = 'PENDING' AND created_at < $1
	`
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		zap.L().Error("can't expire pending deposits", zap.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}
