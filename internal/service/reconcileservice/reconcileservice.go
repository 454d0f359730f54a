// Package reconcileservice matches inbound bank transfers to wallets.
package reconcileservice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/metrics"
	"github.com/GlebRadaev/boostmarket/internal/pg"
	"github.com/GlebRadaev/boostmarket/internal/service/walletservice"
)

type UserRepo interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
}

type TransactionRepo interface {
	FindPendingDeposits(ctx context.Context, userID int, amount int64) ([]domain.Transaction, error)
}

type WebhookRepo interface {
	Insert(ctx context.Context, event *domain.WebhookEvent) (bool, error)
	UpdateOutcome(ctx context.Context, event *domain.WebhookEvent) error
	ListByStatus(ctx context.Context, status string) ([]domain.WebhookEvent, error)
}

type Wallet interface {
	SettlePending(ctx context.Context, txID string) (*domain.Transaction, error)
	Credit(ctx context.Context, userID int, amount int64, entry walletservice.Entry) (*domain.Transaction, error)
}

type Notifier interface {
	Notify(userID int, event domain.Event)
}

type Service struct {
	userRepo    UserRepo
	txRepo      TransactionRepo
	webhookRepo WebhookRepo
	wallet      Wallet
	txManager   pg.TXManager
	notifier    Notifier
	parser      *Parser
}

func New(userRepo UserRepo, txRepo TransactionRepo, webhookRepo WebhookRepo, wallet Wallet,
	txManager pg.TXManager, notifier Notifier, prefix string) *Service {
	return &Service{
		userRepo:    userRepo,
		txRepo:      txRepo,
		webhookRepo: webhookRepo,
		wallet:      wallet,
		txManager:   txManager,
		notifier:    notifier,
		parser:      NewParser(prefix),
	}
}

const (
	maxProviderIDLen = 128
	maxReferenceLen  = 64
)

var (
	ErrMissingProviderID = errors.New("notification id is required")
	ErrProviderIDTooLong = fmt.Errorf("notification id must be at most %d characters", maxProviderIDLen)
)

// Parser reads the "<PREFIX> <USERNAME> [CODE]" reference customers put in the transfer.
type Parser struct {
	re *regexp.Regexp
}

func NewParser(prefix string) *Parser {
	return &Parser{
		re: regexp.MustCompile(`(?i)^\s*` + regexp.QuoteMeta(prefix) + `\s+([a-z0-9_]+)(?:\s+([a-z0-9]{4,32}))?\s*$`),
	}
}

type Reference struct {
	Username string
	Code     string
}

func (p *Parser) Parse(content string) (Reference, bool) {
	m := p.re.FindStringSubmatch(content)
	if m == nil {
		return Reference{}, false
	}
	return Reference{Username: m[1], Code: strings.ToUpper(m[2])}, true
}

// outcome is what decide settled on. credited is set only when money moved.
type outcome struct {
	status   string
	reason   string
	userID   int
	credited *domain.Transaction
}

func review(reason string, userID int) outcome {
	return outcome{status: domain.WebhookReview, reason: reason, userID: userID}
}

// HandleNotification credits at most one wallet, at most once per provider id. Anything it
// cannot match with certainty is stored for manual review instead of guessed. An error is
// returned only for infrastructure failures.
func (s *Service) HandleNotification(ctx context.Context, n domain.BankNotification) (*domain.WebhookEvent, error) {
	if n.ProviderID == "" {
		return nil, ErrMissingProviderID
	}
	if utf8.RuneCountInString(n.ProviderID) > maxProviderIDLen {
		return nil, ErrProviderIDTooLong
	}

	event := &domain.WebhookEvent{
		ProviderID: n.ProviderID,
		Direction:  direction(n.Direction),
		Amount:     n.Amount,
		Content:    n.Content,
		Reference:  truncate(n.Reference, maxReferenceLen),
	}

	var result outcome
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		inserted, err := s.webhookRepo.Insert(ctx, event)
		if err != nil {
			return err
		}
		if !inserted {
			result = outcome{status: domain.WebhookDuplicate}
			return nil
		}

		result, err = s.decide(ctx, n)
		if err != nil {
			return err
		}

		event.Status = result.status
		event.Reason = result.reason
		event.UserID = result.userID
		if result.credited != nil {
			event.TransactionID = result.credited.ID
		}
		return s.webhookRepo.UpdateOutcome(ctx, event)
	})
	if err != nil {
		zap.L().Error("can't process bank notification", zap.String("provider_id", n.ProviderID), zap.Error(err))
		return nil, err
	}

	event.Status = result.status
	metrics.WebhookOutcomes.WithLabelValues(result.status).Inc()

	switch result.status {
	case domain.WebhookProcessed:
		tx := result.credited
		zap.L().Info("deposit credited", zap.String("provider_id", n.ProviderID),
			zap.Int("user_id", tx.UserID), zap.String("transaction_id", tx.ID), zap.Int64("amount", tx.Amount))
		s.notifier.Notify(tx.UserID, domain.Event{
			Type:    domain.EventBalanceUpdated,
			Balance: tx.BalanceAfter,
			Message: fmt.Sprintf("Deposit of %d received", tx.Amount),
		})
	case domain.WebhookReview:
		zap.L().Warn("bank notification deferred to review", zap.String("provider_id", n.ProviderID),
			zap.String("reason", result.reason), zap.Int("user_id", result.userID))
	default:
		zap.L().Info("bank notification not applied", zap.String("provider_id", n.ProviderID),
			zap.String("outcome", result.status))
	}
	return event, nil
}

// direction folds whatever the bank sends into the three values the event log keeps.
func direction(d string) string {
	switch d = strings.ToLower(strings.TrimSpace(d)); d {
	case domain.DirectionIn, domain.DirectionOut:
		return d
	default:
		return domain.DirectionOther
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (s *Service) decide(ctx context.Context, n domain.BankNotification) (outcome, error) {
	if direction(n.Direction) != domain.DirectionIn {
		return outcome{status: domain.WebhookIgnored, reason: "outbound transfer"}, nil
	}
	if n.Amount <= 0 {
		return review("non-positive amount", 0), nil
	}

	ref, ok := s.parser.Parse(n.Content)
	if !ok {
		return review("unparseable transfer content", 0), nil
	}

	code := ref.Code
	if payload := strings.ToUpper(strings.TrimSpace(n.Code)); payload != "" {
		if code != "" && code != payload {
			return review("code in content and payload differ", 0), nil
		}
		code = payload
	}

	user, err := s.userRepo.FindByUsername(ctx, ref.Username)
	if err != nil {
		return outcome{}, err
	}
	if user == nil {
		return review(fmt.Sprintf("unknown username %q", ref.Username), 0), nil
	}

	candidates, err := s.txRepo.FindPendingDeposits(ctx, user.ID, n.Amount)
	if err != nil {
		return outcome{}, err
	}

	if code != "" {
		candidates = matchCode(candidates, code)
		switch len(candidates) {
		case 0:
			return review("code matches no pending deposit", user.ID), nil
		case 1:
		default:
			return review("code matches several pending deposits", user.ID), nil
		}
	}

	if len(candidates) == 0 {
		credited, err := s.wallet.Credit(ctx, user.ID, n.Amount, walletservice.Entry{
			Type:        domain.TxDeposit,
			Description: "Bank transfer top-up",
		})
		if err != nil {
			return outcome{}, err
		}
		return outcome{status: domain.WebhookProcessed, userID: user.ID, credited: credited}, nil
	}

	// Oldest first, so without a code the earliest request is settled.
	settled, err := s.wallet.SettlePending(ctx, candidates[0].ID)
	if errors.Is(err, walletservice.ErrAlreadyProcessed) {
		return outcome{status: domain.WebhookAlreadyProcessed, userID: user.ID}, nil
	}
	if err != nil {
		return outcome{}, err
	}
	return outcome{status: domain.WebhookProcessed, userID: user.ID, credited: settled}, nil
}

func matchCode(txs []domain.Transaction, code string) []domain.Transaction {
	var matched []domain.Transaction
	for _, tx := range txs {
		id := strings.ToUpper(strings.ReplaceAll(tx.ID, "-", ""))
		if strings.HasSuffix(id, code) {
			matched = append(matched, tx)
		}
	}
	return matched
}

func (s *Service) ListForReview(ctx context.Context) ([]domain.WebhookEvent, error) {
	events, err := s.webhookRepo.ListByStatus(ctx, domain.WebhookReview)
	if err != nil {
		zap.L().Error("can't list webhook events for review", zap.Error(err))
		return nil, err
	}
	return events, nil
}
