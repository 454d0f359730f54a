package walletservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/metrics"
	"github.com/GlebRadaev/boostmarket/internal/pg"
)

type UserRepo interface {
	FindByID(ctx context.Context, id int) (*domain.User, error)
	AddBalance(ctx context.Context, userID int, delta int64) (int64, bool, error)
}

type TransactionRepo interface {
	Create(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error)
	FindByID(ctx context.Context, id string) (*domain.Transaction, error)
	FindByUserID(ctx context.Context, userID int) ([]domain.Transaction, error)
	MarkSuccess(ctx context.Context, id string, balanceAfter int64) (*domain.Transaction, error)
	MarkFailed(ctx context.Context, id string) (*domain.Transaction, error)
	SumSuccess(ctx context.Context, userID int) (int64, error)
	FailStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}

type Notifier interface {
	Notify(userID int, event domain.Event)
}

type Options struct {
	PlatformUserID  int
	BoosterSharePct int64
	DepositPrefix   string
	DepositTTL      time.Duration
}

type Service struct {
	userRepo  UserRepo
	txRepo    TransactionRepo
	txManager pg.TXManager
	notifier  Notifier
	opts      Options
}

func New(userRepo UserRepo, txRepo TransactionRepo, txManager pg.TXManager, notifier Notifier, opts Options) *Service {
	return &Service{
		userRepo:  userRepo,
		txRepo:    txRepo,
		txManager: txManager,
		notifier:  notifier,
		opts:      opts,
	}
}

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyProcessed    = errors.New("transaction already processed")
	ErrNotDeposit          = errors.New("transaction is not a deposit request")
	ErrOrderNotPriced      = errors.New("order has no total amount")
	ErrNoBooster           = errors.New("order has no assigned booster")
)

// Entry describes the ledger row written next to a balance change.
type Entry struct {
	Type        string
	OrderID     int
	Description string
}

// Debit takes amount from the wallet. The balance check and the update are one statement,
// so concurrent debits can never overdraw.
func (s *Service) Debit(ctx context.Context, userID int, amount int64, entry Entry) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.apply(ctx, userID, -amount, entry)
}

func (s *Service) Credit(ctx context.Context, userID int, amount int64, entry Entry) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.apply(ctx, userID, amount, entry)
}

func (s *Service) apply(ctx context.Context, userID int, delta int64, entry Entry) (*domain.Transaction, error) {
	var result *domain.Transaction
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		balance, ok, err := s.userRepo.AddBalance(ctx, userID, delta)
		if err != nil {
			return err
		}
		if !ok {
			return s.rejectReason(ctx, userID)
		}

		result, err = s.txRepo.Create(ctx, &domain.Transaction{
			ID:           uuid.NewString(),
			UserID:       userID,
			OrderID:      entry.OrderID,
			Type:         entry.Type,
			Amount:       delta,
			BalanceAfter: balance,
			Status:       domain.TxStatusSuccess,
			Description:  entry.Description,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.LedgerEntries.WithLabelValues(entry.Type).Inc()
	return result, nil
}

// rejectReason tells a missing wallet from an insufficient one after a refused update.
func (s *Service) rejectReason(ctx context.Context, userID int) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return ErrInsufficientFunds
}

// Hold charges the customer the full order total.
func (s *Service) Hold(ctx context.Context, order *domain.Order) (*domain.Transaction, error) {
	if order.TotalAmount <= 0 {
		return nil, ErrOrderNotPriced
	}
	return s.Debit(ctx, order.CustomerID, order.TotalAmount, Entry{
		Type:        domain.TxPaymentHold,
		OrderID:     order.ID,
		Description: fmt.Sprintf("Payment for order #%d", order.ID),
	})
}

// Split divides an order total into the booster share (rounded down) and the platform commission.
func (s *Service) Split(total int64) (share, commission int64) {
	share = total * s.opts.BoosterSharePct / 100
	return share, total - share
}

// Release pays the booster share and books the remainder as platform commission. Callers
// guarantee it runs at most once per order.
func (s *Service) Release(ctx context.Context, order *domain.Order) (share, commission int64, err error) {
	if !order.Claimed() {
		return 0, 0, ErrNoBooster
	}
	share, commission = s.Split(order.TotalAmount)

	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		if share > 0 {
			if _, err := s.Credit(ctx, order.BoosterID, share, Entry{
				Type:        domain.TxPaymentRelease,
				OrderID:     order.ID,
				Description: fmt.Sprintf("Earnings for order #%d", order.ID),
			}); err != nil {
				return err
			}
		}
		if commission > 0 {
			if _, err := s.Credit(ctx, s.opts.PlatformUserID, commission, Entry{
				Type:        domain.TxCommission,
				OrderID:     order.ID,
				Description: fmt.Sprintf("Commission for order #%d", order.ID),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		zap.L().Error("can't release order earnings", zap.Int("order_id", order.ID), zap.Error(err))
		return 0, 0, err
	}
	return share, commission, nil
}

// Refund returns the order total to the customer.
func (s *Service) Refund(ctx context.Context, order *domain.Order) (*domain.Transaction, error) {
	if order.TotalAmount <= 0 {
		return nil, ErrOrderNotPriced
	}
	return s.Credit(ctx, order.CustomerID, order.TotalAmount, Entry{
		Type:        domain.TxRefund,
		OrderID:     order.ID,
		Description: fmt.Sprintf("Refund for order #%d", order.ID),
	})
}

// DepositCode is the short reference a customer quotes in the transfer description.
func DepositCode(txID string) string {
	hex := strings.ReplaceAll(txID, "-", "")
	if len(hex) > 6 {
		hex = hex[len(hex)-6:]
	}
	return strings.ToUpper(hex)
}

func (s *Service) CreateDepositRequest(ctx context.Context, userID int, amount int64) (*domain.DepositRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	tx, err := s.txRepo.Create(ctx, &domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        domain.TxDeposit,
		Amount:      amount,
		Status:      domain.TxStatusPending,
		Description: "Bank transfer deposit",
	})
	if err != nil {
		zap.L().Error("can't create deposit request", zap.Error(err))
		return nil, err
	}

	code := DepositCode(tx.ID)
	return &domain.DepositRequest{
		Transaction: tx,
		Code:        code,
		Content:     fmt.Sprintf("%s %s %s", s.opts.DepositPrefix, strings.ToUpper(user.Username), code),
	}, nil
}

// SettlePending applies a pending deposit exactly once. A second call, from any path, gets
// ErrAlreadyProcessed and the credit made inside the transaction is rolled back.
func (s *Service) SettlePending(ctx context.Context, txID string) (*domain.Transaction, error) {
	var settled *domain.Transaction
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		tx, err := s.txRepo.FindByID(ctx, txID)
		if err != nil {
			return err
		}
		if tx == nil {
			return ErrTransactionNotFound
		}
		if tx.Type != domain.TxDeposit {
			return ErrNotDeposit
		}
		if tx.Status != domain.TxStatusPending {
			return ErrAlreadyProcessed
		}

		balance, ok, err := s.userRepo.AddBalance(ctx, tx.UserID, tx.Amount)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUserNotFound
		}

		settled, err = s.txRepo.MarkSuccess(ctx, txID, balance)
		if err != nil {
			return err
		}
		if settled == nil {
			return ErrAlreadyProcessed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.LedgerEntries.WithLabelValues(domain.TxDeposit).Inc()
	return settled, nil
}

// ConfirmDeposit is the admin path onto SettlePending.
func (s *Service) ConfirmDeposit(ctx context.Context, txID string) (*domain.Transaction, error) {
	tx, err := s.SettlePending(ctx, txID)
	if err != nil {
		return nil, err
	}
	zap.L().Info("deposit confirmed manually", zap.String("transaction_id", txID), zap.Int("user_id", tx.UserID))
	s.notifier.Notify(tx.UserID, domain.Event{
		Type:    domain.EventBalanceUpdated,
		Balance: tx.BalanceAfter,
		Message: fmt.Sprintf("Deposit of %d confirmed", tx.Amount),
	})
	return tx, nil
}

func (s *Service) RejectPending(ctx context.Context, txID string) (*domain.Transaction, error) {
	tx, err := s.txRepo.MarkFailed(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx != nil {
		return tx, nil
	}

	existing, err := s.txRepo.FindByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrTransactionNotFound
	}
	return nil, ErrAlreadyProcessed
}

func (s *Service) GetBalance(ctx context.Context, userID int) (*domain.Wallet, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		zap.L().Error("failed to get balance", zap.Error(err))
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return &domain.Wallet{
		UserID:  user.ID,
		Balance: user.WalletBalance,
		Pending: user.PendingBalance,
	}, nil
}

func (s *Service) GetTransactions(ctx context.Context, userID int) ([]domain.Transaction, error) {
	txs, err := s.txRepo.FindByUserID(ctx, userID)
	if err != nil {
		zap.L().Error("failed to fetch transactions", zap.Error(err))
		return nil, err
	}
	return txs, nil
}

// VerifyLedger checks that the stored balance equals the sum of applied entries.
func (s *Service) VerifyLedger(ctx context.Context, userID int) (*domain.LedgerAudit, error) {
	wallet, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, err := s.txRepo.SumSuccess(ctx, userID)
	if err != nil {
		return nil, err
	}

	audit := &domain.LedgerAudit{
		UserID:     userID,
		Balance:    wallet.Balance,
		LedgerSum:  sum,
		Consistent: wallet.Balance == sum,
	}
	if !audit.Consistent {
		zap.L().Warn("ledger mismatch", zap.Int("user_id", userID),
			zap.Int64("balance", wallet.Balance), zap.Int64("ledger_sum", sum))
	}
	return audit, nil
}

// ExpireStaleDeposits fails deposit requests older than the configured TTL.
func (s *Service) ExpireStaleDeposits(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.txRepo.FailStalePending(ctx, now.Add(-s.opts.DepositTTL))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		zap.L().Info("expired stale deposit requests", zap.Int64("count", n))
	}
	return n, nil
}
