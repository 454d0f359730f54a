package webhookrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/pg"
)

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

// Insert records a notification keyed by its provider id. It returns false, and writes
// nothing, when the provider id has been seen before.
func (r *Repository) Insert(ctx context.Context, event *domain.WebhookEvent) (bool, error) {
	query := `
		INSERT INTO webhook_events (provider_id, direction, amount, content, reference, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_id) DO NOTHING
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		event.ProviderID, event.Direction, event.Amount, event.Content, event.Reference, event.Status,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		zap.L().Error("can't save webhook event", zap.Error(err))
		return false, err
	}
	return true, nil
}

func (r *Repository) UpdateOutcome(ctx context.Context, event *domain.WebhookEvent) error {
	query := `
		UPDATE webhook_events
		SET status = $1, reason = $2, user_id = $3, transaction_id = $4
		WHERE id = $5
	`
	_, err := r.db.Exec(ctx, query, event.Status, event.Reason, event.UserID, event.TransactionID, event.ID)
	if err != nil {
		zap.L().Error("can't update webhook event", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) ListByStatus(ctx context.Context, status string) ([]domain.WebhookEvent, error) {
	query := `
		SELECT id, provider_id, direction, amount, content, reference, status, reason, user_id, transaction_id, created_at
		FROM webhook_events
		WHERE status = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		zap.L().Error("can't list webhook events", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var events []domain.WebhookEvent
	for rows.Next() {
		var e domain.WebhookEvent
		err := rows.Scan(&e.ID, &e.ProviderID, &e.Direction, &e.Amount, &e.Content, &e.Reference, &e.Status,
			&e.Reason, &e.UserID, &e.TransactionID, &e.CreatedAt)
		if err != nil {
			zap.L().Error("can't scan webhook event row", zap.Error(err))
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
