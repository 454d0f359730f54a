package orderrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/pg"
)

const orderColumns = `id, customer_id, COALESCE(booster_id, 0), service_type, status, base_price, option_fees, total_amount,
	details, options, server, summoner, released, created_at, updated_at`

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

func scanOrder(row scanner) (*domain.Order, error) {
	var (
		order   domain.Order
		details []byte
		options []byte
	)
	err := row.Scan(
		&order.ID, &order.CustomerID, &order.BoosterID, &order.ServiceType, &order.Status,
		&order.BasePrice, &order.OptionFees, &order.TotalAmount,
		&details, &options, &order.Server, &order.Summoner, &order.Released, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if order.Details, err = domain.DecodeDetails(order.ServiceType, details); err != nil {
		return nil, err
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &order.Options); err != nil {
			return nil, fmt.Errorf("decode order options: %w", err)
		}
	}
	return &order, nil
}

func (r *Repository) queryOne(ctx context.Context, op, query string, args ...any) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("can't "+op, zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *Repository) queryMany(ctx context.Context, op, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		zap.L().Error("can't "+op, zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			zap.L().Error("can't scan order row", zap.Error(err))
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("can't "+op, zap.Error(err))
		return nil, err
	}
	return orders, nil
}

func (r *Repository) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	details, err := domain.EncodeDetails(order.Details)
	if err != nil {
		return nil, err
	}
	options, err := json.Marshal(order.Options)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO orders (customer_id, service_type, status, base_price, option_fees, total_amount, details, options, server, summoner)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		order.CustomerID, order.ServiceType, order.Status, order.BasePrice, order.OptionFees, order.TotalAmount,
		details, options, order.Server, order.Summoner,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		zap.L().Error("can't save order", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *Repository) FindByID(ctx context.Context, id int) (*domain.Order, error) {
	return r.queryOne(ctx, "find order", "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
}

func (r *Repository) FindByCustomerID(ctx context.Context, customerID int) ([]domain.Order, error) {
	return r.queryMany(ctx, "get customer orders",
		"SELECT "+orderColumns+" FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
}

func (r *Repository) FindByBoosterID(ctx context.Context, boosterID int) ([]domain.Order, error) {
	return r.queryMany(ctx, "get booster orders",
		"SELECT "+orderColumns+" FROM orders WHERE booster_id = $1 ORDER BY created_at DESC", boosterID)
}

// FindAvailable lists paid orders nobody has claimed yet, oldest first.
func (r *Repository) FindAvailable(ctx context.Context, limit int) ([]domain.Order, error) {
	return r.queryMany(ctx, "get available orders",
		"SELECT "+orderColumns+" FROM orders WHERE status = 'PAID' AND booster_id IS NULL ORDER BY created_at ASC LIMIT $1", limit)
}

// Claim assigns the booster only if the order is still paid and unassigned. A nil order means
// somebody else got there first.
func (r *Repository) Claim(ctx context.Context, orderID, boosterID int) (*domain.Order, error) {
	query := `
		UPDATE orders
		SET booster_id = $1, status = 'APPROVED', updated_at = NOW()
		WHERE id = $2 AND status = 'PAID' AND booster_id IS NULL
		RETURNING ` + orderColumns
	return r.queryOne(ctx, "claim order", query, boosterID, orderID)
}

// Transition moves the order to status `to` if its current status is one of from and its
// earnings have not been released. A nil order means the guard did not hold.
func (r *Repository) Transition(ctx context.Context, orderID int, from []string, to string) (*domain.Order, error) {
	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3) AND released = FALSE
		RETURNING ` + orderColumns
	return r.queryOne(ctx, "update order status", query, to, orderID, from)
}

// MarkReleased flips the released flag of a completed order exactly once.
func (r *Repository) MarkReleased(ctx context.Context, orderID int) (*domain.Order, error) {
	query := `
		UPDATE orders
		SET released = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = 'COMPLETED' AND released = FALSE
		RETURNING ` + orderColumns
	return r.queryOne(ctx, "release order", query, orderID)
}
