// Package otpservice issues and checks the one-time codes mailed to users.
package otpservice

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/pkg/auth"
	"github.com/GlebRadaev/boostmarket/pkg/validate"
)

const maxAttempts = 3

type Repo interface {
	Upsert(ctx context.Context, code *domain.VerificationCode) error
	ClaimAttempt(ctx context.Context, email, codeType string, maxAttempts int) (*domain.VerificationCode, error)
	Delete(ctx context.Context, email, codeType string) error
}

type UserRepo interface {
	FindByID(ctx context.Context, id int) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	MarkEmailVerified(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	UpdateEmail(ctx context.Context, userID int, email string) error
}

type Mailer interface {
	Send(to, subject, text string) error
}

type Service struct {
	repo        Repo
	userRepo    UserRepo
	mailer      Mailer
	hashService auth.HashServiceInterface
	ttl         time.Duration
	generate    func() (string, error)
}

func New(repo Repo, userRepo UserRepo, mailer Mailer, hashService auth.HashServiceInterface, ttl time.Duration) *Service {
	return &Service{
		repo:        repo,
		userRepo:    userRepo,
		mailer:      mailer,
		hashService: hashService,
		ttl:         ttl,
		generate:    generateCode,
	}
}

var (
	ErrInvalidCode     = errors.New("code is invalid or expired")
	ErrTooManyAttempts = errors.New("too many attempts, request a new code")
	ErrUserNotFound    = errors.New("user not found")
	ErrAlreadyVerified = errors.New("email already verified")
	ErrInvalidEmail    = errors.New("email is not valid")
	ErrEmailTaken      = errors.New("email already registered")
	ErrInvalidPassword = errors.New("password must be 8-72 characters")
)

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// issue replaces any earlier code of the same type and mails the new one.
func (s *Service) issue(ctx context.Context, email, codeType, subject string) error {
	code, err := s.generate()
	if err != nil {
		zap.L().Error("can't generate code", zap.Error(err))
		return err
	}
	err = s.repo.Upsert(ctx, &domain.VerificationCode{
		Email:     email,
		Type:      codeType,
		Code:      code,
		ExpiresAt: time.Now().Add(s.ttl),
	})
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Your code is %s. It expires in %d minutes.", code, int(s.ttl.Minutes()))
	return s.mailer.Send(email, subject, text)
}

// check consumes the code on success. Every guess spends an attempt before the comparison
// and the code is dropped once the attempts run out.
func (s *Service) check(ctx context.Context, email, codeType, code string) error {
	stored, err := s.repo.ClaimAttempt(ctx, email, codeType, maxAttempts)
	if err != nil {
		return err
	}
	if stored == nil {
		return ErrInvalidCode
	}
	if subtle.ConstantTimeCompare([]byte(stored.Code), []byte(strings.TrimSpace(code))) == 1 {
		return s.repo.Delete(ctx, email, codeType)
	}

	if stored.Attempts >= maxAttempts {
		if err := s.repo.Delete(ctx, email, codeType); err != nil {
			return err
		}
		zap.L().Warn("verification code exhausted", zap.String("email", email), zap.String("type", codeType))
		return ErrTooManyAttempts
	}
	return ErrInvalidCode
}

func (s *Service) user(ctx context.Context, userID int) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *Service) SendEmailVerification(ctx context.Context, userID int) error {
	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	return s.issue(ctx, user.Email, domain.CodeEmailVerify, "Confirm your email")
}

func (s *Service) VerifyEmail(ctx context.Context, userID int, code string) error {
	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.check(ctx, user.Email, domain.CodeEmailVerify, code); err != nil {
		return err
	}
	if err := s.userRepo.MarkEmailVerified(ctx, user.Email); err != nil {
		return err
	}
	zap.L().Info("email verified", zap.Int("user_id", userID))
	return nil
}

// RequestPasswordReset succeeds for unknown addresses too, so the endpoint does not reveal
// which emails are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		zap.L().Info("password reset requested for unknown email")
		return nil
	}
	return s.issue(ctx, email, domain.CodePasswordReset, "Reset your password")
}

func (s *Service) ResetPassword(ctx context.Context, email, code, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validate.IsPassword(password) {
		return ErrInvalidPassword
	}
	if err := s.check(ctx, email, domain.CodePasswordReset, code); err != nil {
		return err
	}
	hash, err := s.hashService.HashPassword(password)
	if err != nil {
		zap.L().Error("can't hash password", zap.Error(err))
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, email, hash); err != nil {
		return err
	}
	zap.L().Info("password reset", zap.String("email", email))
	return nil
}

// RequestEmailChange mails a code to the new address; the change is applied on confirmation.
func (s *Service) RequestEmailChange(ctx context.Context, userID int, newEmail string) error {
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if !validate.IsEmail(newEmail) {
		return ErrInvalidEmail
	}
	if _, err := s.user(ctx, userID); err != nil {
		return err
	}
	taken, err := s.userRepo.FindByEmail(ctx, newEmail)
	if err != nil {
		return err
	}
	if taken != nil {
		return ErrEmailTaken
	}
	return s.issue(ctx, newEmail, domain.CodeChangeEmail, "Confirm your new email")
}

func (s *Service) ConfirmEmailChange(ctx context.Context, userID int, newEmail, code string) error {
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if err := s.check(ctx, newEmail, domain.CodeChangeEmail, code); err != nil {
		return err
	}
	if err := s.userRepo.UpdateEmail(ctx, userID, newEmail); err != nil {
		return err
	}
	zap.L().Info("email changed", zap.Int("user_id", userID))
	return nil
}
