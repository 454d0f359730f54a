package coderepo

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

// Upsert replaces any previous code of the same type for the email and resets its attempts.
func (r *Repository) Upsert(ctx context.Context, code *domain.VerificationCode) error {
	query := `
		INSERT INTO verification_codes (email, type, code, attempts, expires_at)
		VALUES (LOWER($1), $2, $3, 0, $4)
		ON CONFLICT (email, type) DO UPDATE
		SET code = EXCLUDED.code, attempts = 0, expires_at = EXCLUDED.expires_at
	`
	_, err := r.db.Exec(ctx, query, code.Email, code.Type, code.Code, code.ExpiresAt)
	if err != nil {
		zap.L().Error("can't save verification code", zap.Error(err))
		return err
	}
	return nil
}

// ClaimAttempt spends one attempt on a live code and returns it with the new attempt count.
// It returns nil when the code is missing, expired or out of attempts, so concurrent guesses
// can never compare more than maxAttempts times.
func (r *Repository) ClaimAttempt(ctx context.Context, email, codeType string, maxAttempts int) (*domain.VerificationCode, error) {
	query := `
		UPDATE verification_codes
		SET attempts = attempts + 1
		WHERE email = LOWER($1) AND type = $2 AND attempts < $3 AND expires_at > NOW()
		RETURNING email, type, code, attempts, expires_at
	`
	var code domain.VerificationCode
	err := r.db.QueryRow(ctx, query, email, codeType, maxAttempts).
		Scan(&code.Email, &code.Type, &code.Code, &code.Attempts, &code.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("can't claim verification attempt", zap.Error(err))
		return nil, err
	}
	return &code, nil
}

func (r *Repository) Delete(ctx context.Context, email, codeType string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM verification_codes WHERE email = LOWER($1) AND type = $2", email, codeType)
	if err != nil {
		zap.L().Error("can't delete verification code", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM verification_codes WHERE expires_at <= NOW()")
	if err != nil {
		zap.L().Error("can't purge expired verification codes", zap.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}
