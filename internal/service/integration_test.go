package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/GlebRadaev/boostmarket/internal/config"
	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/pg"
	"github.com/GlebRadaev/boostmarket/internal/pricing"
	"github.com/GlebRadaev/boostmarket/internal/repo"
	"github.com/GlebRadaev/boostmarket/internal/service/orderservice"
	"github.com/GlebRadaev/boostmarket/internal/service/otpservice"
	"github.com/GlebRadaev/boostmarket/internal/service/walletservice"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events map[int][]domain.Event
}

func (n *recordingNotifier) Notify(userID int, event domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[userID] = append(n.events[userID], event)
}

func (n *recordingNotifier) last(userID int) (domain.Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	events := n.events[userID]
	if len(events) == 0 {
		return domain.Event{}, false
	}
	return events[len(events)-1], true
}

type noopMailer struct{}

func (noopMailer) Send(string, string, string) error { return nil }

// IntegrationSuite runs the services against a real Postgres. It is skipped unless
// TEST_DATABASE_URI points at a disposable database.
type IntegrationSuite struct {
	suite.Suite
	pool     *pgxpool.Pool
	repos    *repo.Repositories
	engine   *pricing.Engine
	notifier *recordingNotifier
	services *Services
}

func TestIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI is not set")
	}
	suite.Run(t, &IntegrationSuite{})
}

func (s *IntegrationSuite) SetupSuite() {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, os.Getenv("TEST_DATABASE_URI"))
	s.Require().NoError(err)
	s.Require().NoError(pool.Ping(ctx))
	s.Require().NoError(pg.RunMigrations(pool))
	s.pool = pool

	s.engine, err = pricing.New(pricing.DefaultConfig())
	s.Require().NoError(err)
}

func (s *IntegrationSuite) TearDownSuite() {
	s.pool.Close()
}

func (s *IntegrationSuite) SetupTest() {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `
		TRUNCATE orders, transactions, booster_applications, verification_codes, webhook_events RESTART IDENTITY CASCADE;
		DELETE FROM users WHERE id <> 1;
		UPDATE users SET wallet_balance = 0, pending_balance = 0 WHERE id = 1;
	`)
	s.Require().NoError(err)

	s.notifier = &recordingNotifier{events: make(map[int][]domain.Event)}
	s.repos = repo.New(pg.New(s.pool))
	s.services = New(s.repos, Deps{
		TXManager: pg.NewTXManager(s.pool),
		Notifier:  s.notifier,
		Mailer:    noopMailer{},
		Pricer:    s.engine,
	}, &config.Config{
		JWTSecret:       "secret",
		DepositPrefix:   "NAP",
		PlatformUserID:  1,
		BoosterSharePct: 80,
		OTPTTL:          10 * time.Minute,
	})
}

func (s *IntegrationSuite) user(name, role string, balance int64) int {
	ctx := context.Background()
	u, err := s.repos.UserRepo.Create(ctx, &domain.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "!",
		Role:         role,
	})
	s.Require().NoError(err)
	if balance > 0 {
		_, err = s.services.Wallet.Credit(ctx, u.ID, balance, walletservice.Entry{Type: domain.TxDeposit, Description: "seed"})
		s.Require().NoError(err)
	}
	return u.ID
}

func (s *IntegrationSuite) balance(userID int) int64 {
	w, err := s.services.Wallet.GetBalance(context.Background(), userID)
	s.Require().NoError(err)
	return w.Balance
}

func (s *IntegrationSuite) assertLedgerConsistent(userIDs ...int) {
	for _, id := range userIDs {
		audit, err := s.services.Wallet.VerifyLedger(context.Background(), id)
		s.Require().NoError(err)
		s.True(audit.Consistent, "user %d: balance %d, ledger %d", id, audit.Balance, audit.LedgerSum)
	}
}

func rankBoost(current, desired string, flash bool) orderservice.CreateRequest {
	return orderservice.CreateRequest{
		Input: pricing.Input{
			ServiceType: domain.ServiceRankBoost,
			CurrentRank: current,
			DesiredRank: desired,
			Options:     domain.Options{FlashBoost: flash},
		},
		Server:   "EUW",
		Summoner: "Summoner#EUW",
	}
}

// Scenario A.
func (s *IntegrationSuite) TestCreateOrderChargesCustomer() {
	ctx := context.Background()
	customer := s.user("buyer", domain.RoleCustomer, 500000)

	base := s.engine.PriceOf("PLATINUM_IV") - s.engine.PriceOf("GOLD_IV")
	total := (base*135 + 99) / 100

	order, err := s.services.OrderService.Create(ctx, customer, rankBoost("GOLD_IV", "PLATINUM_IV", true))
	if total > 500000 {
		s.ErrorIs(err, walletservice.ErrInsufficientFunds)
		s.Equal(int64(500000), s.balance(customer))
		orders, err := s.services.OrderService.GetOrders(ctx, customer)
		s.Require().NoError(err)
		s.Empty(orders)
		return
	}
	s.Require().NoError(err)
	s.Equal(domain.OrderPaid, order.Status)
	s.Equal(base, order.BasePrice)
	s.Equal(total, order.TotalAmount)
	s.Equal(500000-total, s.balance(customer))
	s.assertLedgerConsistent(customer)
}

func (s *IntegrationSuite) TestCreateOrderInsufficientFunds() {
	ctx := context.Background()
	customer := s.user("poor", domain.RoleCustomer, 1000)

	_, err := s.services.OrderService.Create(ctx, customer, rankBoost("IRON_IV", "DIAMOND_I", true))
	s.ErrorIs(err, walletservice.ErrInsufficientFunds)

	s.Equal(int64(1000), s.balance(customer))
	orders, err := s.services.OrderService.GetOrders(ctx, customer)
	s.Require().NoError(err)
	s.Empty(orders, "a failed charge must not leave an order behind")
	s.assertLedgerConsistent(customer)
}

// P4.
func (s *IntegrationSuite) TestConcurrentDebitsNeverOverdraw() {
	ctx := context.Background()
	customer := s.user("spender", domain.RoleCustomer, 100)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.services.Wallet.Debit(ctx, customer, 30, walletservice.Entry{Type: domain.TxWithdrawal})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(s.T(), err, walletservice.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	s.Equal(3, accepted)
	s.Equal(int64(10), s.balance(customer))
	s.assertLedgerConsistent(customer)
}

// P5 and Scenario B.
func (s *IntegrationSuite) TestConcurrentClaims() {
	ctx := context.Background()
	customer := s.user("client", domain.RoleCustomer, 10000000)
	order, err := s.services.OrderService.Create(ctx, customer, rankBoost("GOLD_IV", "GOLD_II", false))
	s.Require().NoError(err)

	const boosters = 8
	ids := make([]int, boosters)
	for i := range ids {
		ids[i] = s.user("booster"+string(rune('a'+i)), domain.RoleBooster, 0)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int
		losers  int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(boosterID int) {
			defer wg.Done()
			claimed, err := s.services.OrderService.Claim(ctx, boosterID, order.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, claimed.BoosterID)
				return
			}
			if errors.Is(err, orderservice.ErrOrderUnavailable) {
				losers++
			}
		}(id)
	}
	wg.Wait()

	s.Require().Len(winners, 1)
	s.Equal(boosters-1, losers)

	stored, err := s.services.OrderService.GetOrder(ctx, domain.Actor{UserID: customer, Role: domain.RoleCustomer}, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderApproved, stored.Status)
	s.Equal(winners[0], stored.BoosterID)
}

// P6 and Scenario E.
func (s *IntegrationSuite) TestReleaseIsExactlyOnce() {
	ctx := context.Background()
	customer := s.user("payer", domain.RoleCustomer, 10000000)
	booster := s.user("worker", domain.RoleBooster, 0)
	platformBefore := s.balance(1)

	order, err := s.services.OrderService.Create(ctx, customer, rankBoost("SILVER_I", "GOLD_IV", false))
	s.Require().NoError(err)
	_, err = s.services.OrderService.Claim(ctx, booster, order.ID)
	s.Require().NoError(err)
	_, err = s.services.OrderService.Start(ctx, booster, order.ID)
	s.Require().NoError(err)
	completed, err := s.services.OrderService.Complete(ctx, domain.Actor{UserID: booster, Role: domain.RoleBooster}, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderCompleted, completed.Status)

	share := order.TotalAmount * 80 / 100
	commission := order.TotalAmount - share
	s.Equal(share, s.balance(booster))
	s.Equal(platformBefore+commission, s.balance(1))

	for i := 0; i < 2; i++ {
		_, released, err := s.services.OrderService.ReleaseEarnings(ctx, order.ID)
		s.Require().NoError(err)
		s.False(released)
	}
	s.Equal(share, s.balance(booster))
	s.Equal(platformBefore+commission, s.balance(1))

	txs, err := s.services.Wallet.GetTransactions(ctx, 1)
	s.Require().NoError(err)
	var commissions int
	for _, tx := range txs {
		if tx.Type == domain.TxCommission && tx.OrderID == order.ID {
			commissions++
			s.Equal(commission, tx.Amount)
		}
	}
	s.Equal(1, commissions)
	s.assertLedgerConsistent(customer, booster, 1)
}

// Scenario C.
func (s *IntegrationSuite) TestWebhookSettlesPendingDeposit() {
	ctx := context.Background()
	alice := s.user("alice", domain.RoleCustomer, 0)

	req, err := s.services.WalletService.CreateDepositRequest(ctx, alice, 100000)
	s.Require().NoError(err)
	s.Equal(domain.TxStatusPending, req.Transaction.Status)

	event, err := s.services.ReconcileService.HandleNotification(ctx, domain.BankNotification{
		ProviderID: "bank-1",
		Direction:  domain.DirectionIn,
		Amount:     100000,
		Content:    "NAP ALICE",
	})
	s.Require().NoError(err)
	s.Equal(domain.WebhookProcessed, event.Status)

	tx, err := s.repos.TransactionRepo.FindByID(ctx, req.Transaction.ID)
	s.Require().NoError(err)
	s.Equal(domain.TxStatusSuccess, tx.Status)
	s.Equal(int64(100000), s.balance(alice))

	last, ok := s.notifier.last(alice)
	s.Require().True(ok)
	s.Equal(domain.EventBalanceUpdated, last.Type)
	s.Equal(int64(100000), last.Balance)
	s.assertLedgerConsistent(alice)
}

// P7.
func (s *IntegrationSuite) TestWebhookReplayCreditsOnce() {
	ctx := context.Background()
	bob := s.user("bob", domain.RoleCustomer, 0)
	n := domain.BankNotification{
		ProviderID: "bank-2",
		Direction:  domain.DirectionIn,
		Amount:     50000,
		Content:    "NAP bob",
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.services.ReconcileService.HandleNotification(ctx, n)
			assert.NoError(s.T(), err)
		}()
	}
	wg.Wait()

	event, err := s.services.ReconcileService.HandleNotification(ctx, n)
	s.Require().NoError(err)
	s.Equal(domain.WebhookDuplicate, event.Status)
	s.Equal(int64(50000), s.balance(bob))
	s.assertLedgerConsistent(bob)
}

// Scenario D.
func (s *IntegrationSuite) TestWebhookGarbageGoesToReview() {
	ctx := context.Background()
	carol := s.user("carol", domain.RoleCustomer, 0)
	_, err := s.services.WalletService.CreateDepositRequest(ctx, carol, 70000)
	s.Require().NoError(err)

	event, err := s.services.ReconcileService.HandleNotification(ctx, domain.BankNotification{
		ProviderID: "bank-3",
		Direction:  domain.DirectionIn,
		Amount:     70000,
		Content:    "thanks for the boost!!",
	})
	s.Require().NoError(err)
	s.Equal(domain.WebhookReview, event.Status)

	txs, err := s.services.Wallet.GetTransactions(ctx, carol)
	s.Require().NoError(err)
	s.Require().Len(txs, 1)
	s.Equal(domain.TxStatusPending, txs[0].Status)
	s.Equal(int64(0), s.balance(carol))

	review, err := s.services.ReconcileService.ListForReview(ctx)
	s.Require().NoError(err)
	s.Require().Len(review, 1)
	s.Equal("bank-3", review[0].ProviderID)
}

// P3 over a mixed history.
func (s *IntegrationSuite) TestLedgerConservation() {
	ctx := context.Background()
	customer := s.user("history", domain.RoleCustomer, 2000000)
	booster := s.user("hero", domain.RoleBooster, 0)

	first, err := s.services.OrderService.Create(ctx, customer, rankBoost("BRONZE_II", "SILVER_IV", true))
	s.Require().NoError(err)
	s.assertLedgerConsistent(customer)

	_, err = s.services.OrderService.Cancel(ctx, customer, first.ID)
	s.Require().NoError(err)
	s.assertLedgerConsistent(customer)

	second, err := s.services.OrderService.Create(ctx, customer, rankBoost("BRONZE_II", "BRONZE_I", false))
	s.Require().NoError(err)
	_, err = s.services.OrderService.Claim(ctx, booster, second.ID)
	s.Require().NoError(err)
	_, err = s.services.OrderService.Refund(ctx, second.ID)
	s.Require().NoError(err)
	s.assertLedgerConsistent(customer, booster, 1)

	s.Equal(int64(2000000), s.balance(customer))
	require.Equal(s.T(), int64(0), s.balance(booster))
}

func (s *IntegrationSuite) TestConcurrentWrongCodesSpendThreeAttempts() {
	ctx := context.Background()
	id := s.user("guesser", domain.RoleCustomer, 0)
	s.Require().NoError(s.repos.CodeRepo.Upsert(ctx, &domain.VerificationCode{
		Email:     "guesser@example.com",
		Type:      domain.CodeEmailVerify,
		Code:      "424242",
		ExpiresAt: time.Now().Add(time.Minute),
	}))

	const guesses = 10
	var wg sync.WaitGroup
	errs := make(chan error, guesses)
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.services.OTPService.VerifyEmail(ctx, id, "000000")
		}()
	}
	wg.Wait()
	close(errs)

	var exhausted, invalid int
	for err := range errs {
		switch {
		case errors.Is(err, otpservice.ErrTooManyAttempts):
			exhausted++
		case errors.Is(err, otpservice.ErrInvalidCode):
			invalid++
		default:
			s.Failf("unexpected result", "%v", err)
		}
	}
	s.Equal(1, exhausted)
	s.Equal(guesses-1, invalid)

	err := s.services.OTPService.VerifyEmail(ctx, id, "424242")
	s.ErrorIs(err, otpservice.ErrInvalidCode)
}
