package applicationrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/pg"
)

const applicationColumns = `id, user_id, display_name, current_rank, services, proof_links, bank_name, bank_account,
	bank_holder, payout_card, status, level, signed_name, signed_at, reject_reason, created_at, updated_at`

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

func scanApplication(row scanner) (*domain.BoosterApplication, error) {
	var app domain.BoosterApplication
	err := row.Scan(
		&app.ID, &app.UserID, &app.DisplayName, &app.CurrentRank, &app.Services, &app.ProofLinks,
		&app.BankName, &app.BankAccount, &app.BankHolder, &app.PayoutCard, &app.Status, &app.Level,
		&app.SignedName, &app.SignedAt, &app.RejectReason, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *Repository) queryOne(ctx context.Context, op, query string, args ...any) (*domain.BoosterApplication, error) {
	app, err := scanApplication(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("can't "+op, zap.Error(err))
		return nil, err
	}
	return app, nil
}

func (r *Repository) Create(ctx context.Context, app *domain.BoosterApplication) (*domain.BoosterApplication, error) {
	query := `
		INSERT INTO booster_applications (user_id, display_name, current_rank, services, proof_links, bank_name,
			bank_account, bank_holder, payout_card, status, level, signed_name, signed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		app.UserID, app.DisplayName, app.CurrentRank, app.Services, app.ProofLinks, app.BankName,
		app.BankAccount, app.BankHolder, app.PayoutCard, app.Status, app.Level, app.SignedName, app.SignedAt,
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		zap.L().Error("can't save booster application", zap.Error(err))
		return nil, err
	}
	return app, nil
}

func (r *Repository) FindByID(ctx context.Context, id int) (*domain.BoosterApplication, error) {
	return r.queryOne(ctx, "find booster application", "SELECT "+applicationColumns+" FROM booster_applications WHERE id = $1", id)
}

func (r *Repository) FindLatestByUserID(ctx context.Context, userID int) (*domain.BoosterApplication, error) {
	return r.queryOne(ctx, "find booster application",
		"SELECT "+applicationColumns+" FROM booster_applications WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1", userID)
}

// List returns applications with the given status, or all of them when status is empty.
func (r *Repository) List(ctx context.Context, status string) ([]domain.BoosterApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM booster_applications
		WHERE $1 = '' OR status = $1
		ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		zap.L().Error("can't list booster applications", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var apps []domain.BoosterApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			zap.L().Error("can't scan booster application row", zap.Error(err))
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

// UpdateStatus moves the application to status `to` only from one of from. A nil result means
// the guard did not hold.
func (r *Repository) UpdateStatus(ctx context.Context, id int, from []string, to, reason string) (*domain.BoosterApplication, error) {
	query := `
		UPDATE booster_applications
		SET status = $1, reject_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = ANY($4)
		RETURNING ` + applicationColumns
	return r.queryOne(ctx, "update booster application", query, to, reason, id, from)
}

func (r *Repository) SetLevel(ctx context.Context, id int, level string) (*domain.BoosterApplication, error) {
	query := `
		UPDATE booster_applications
		SET level = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + applicationColumns
	return r.queryOne(ctx, "update booster level", query, level, id)
}
