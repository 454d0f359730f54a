package orderservice

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/metrics"
	"github.com/GlebRadaev/boostmarket/internal/pg"
	"github.com/GlebRadaev/boostmarket/internal/pricing"
)

type Repo interface {
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
	FindByID(ctx context.Context, id int) (*domain.Order, error)
	FindByCustomerID(ctx context.Context, customerID int) ([]domain.Order, error)
	FindByBoosterID(ctx context.Context, boosterID int) ([]domain.Order, error)
	FindAvailable(ctx context.Context, limit int) ([]domain.Order, error)
	Claim(ctx context.Context, orderID, boosterID int) (*domain.Order, error)
	Transition(ctx context.Context, orderID int, from []string, to string) (*domain.Order, error)
	MarkReleased(ctx context.Context, orderID int) (*domain.Order, error)
}

type UserRepo interface {
	IncrementCompletedOrders(ctx context.Context, userID int) error
}

type Wallet interface {
	Hold(ctx context.Context, order *domain.Order) (*domain.Transaction, error)
	Release(ctx context.Context, order *domain.Order) (int64, int64, error)
	Refund(ctx context.Context, order *domain.Order) (*domain.Transaction, error)
}

type Pricer interface {
	Calculate(in pricing.Input) pricing.Quote
	Validate(in pricing.Input) error
}

type Notifier interface {
	Notify(userID int, event domain.Event)
}

type Service struct {
	repo      Repo
	userRepo  UserRepo
	wallet    Wallet
	pricer    Pricer
	txManager pg.TXManager
	notifier  Notifier
}

func New(repo Repo, userRepo UserRepo, wallet Wallet, pricer Pricer, txManager pg.TXManager, notifier Notifier) *Service {
	return &Service{
		repo:      repo,
		userRepo:  userRepo,
		wallet:    wallet,
		pricer:    pricer,
		txManager: txManager,
		notifier:  notifier,
	}
}

const (
	availableLimit = 50
	maxServerLen   = 16
	maxSummonerLen = 64
	maxChampionLen = 64
)

var (
	ErrInvalidOrder      = errors.New("invalid order")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderUnavailable  = errors.New("order is no longer available")
	ErrForbidden         = errors.New("not allowed to act on this order")
	ErrInvalidTransition = errors.New("order status does not allow this action")
	ErrAlreadyReleased   = errors.New("order earnings already released")
)

// CreateRequest is what a customer submits at checkout.
type CreateRequest struct {
	Input    pricing.Input
	Champion string
	Server   string
	Summoner string
}

// Quote prices a selection. The quote is always returned; the error tells whether the same
// selection would be accepted at checkout.
func (s *Service) Quote(in pricing.Input) (pricing.Quote, error) {
	q := s.pricer.Calculate(in)
	if err := s.pricer.Validate(in); err != nil {
		return q, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	return q, nil
}

func detailsFor(req CreateRequest) domain.ServiceDetails {
	in := req.Input
	switch in.ServiceType {
	case domain.ServiceRankBoost:
		current, _ := pricing.ParseRank(in.CurrentRank)
		desired, _ := pricing.ParseRank(in.DesiredRank)
		return domain.RankBoostDetails{CurrentRank: current.Key(), DesiredRank: desired.Key()}
	case domain.ServicePromotion, domain.ServiceNetWins, domain.ServicePlacements:
		d := domain.GamesDetails{Service: in.ServiceType, GamesCount: in.GamesCount}
		if r, err := pricing.ParseRank(in.CurrentRank); err == nil {
			d.PriorRank = r.Key()
		}
		if d.Service == domain.ServicePromotion && d.GamesCount == 0 {
			d.GamesCount = 5
		}
		return d
	default:
		return domain.LevelDetails{
			Service:      in.ServiceType,
			Champion:     req.Champion,
			CurrentLevel: in.CurrentLevel,
			DesiredLevel: in.DesiredLevel,
		}
	}
}

// Create prices the request, stores the order as PAID and charges the customer in one
// transaction. A failed charge leaves no order behind.
func (s *Service) Create(ctx context.Context, customerID int, req CreateRequest) (*domain.Order, error) {
	if err := s.pricer.Validate(req.Input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	if err := checkAccount(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	quote := s.pricer.Calculate(req.Input)

	order := &domain.Order{
		CustomerID:  customerID,
		ServiceType: req.Input.ServiceType,
		Status:      domain.OrderPaid,
		BasePrice:   quote.BasePrice,
		OptionFees:  quote.OptionFees,
		TotalAmount: quote.TotalPrice,
		Details:     detailsFor(req),
		Options:     req.Input.Options,
		Server:      req.Server,
		Summoner:    req.Summoner,
	}

	var hold *domain.Transaction
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		created, err := s.repo.Create(ctx, order)
		if err != nil {
			return err
		}
		order = created
		hold, err = s.wallet.Hold(ctx, created)
		return err
	})
	if err != nil {
		zap.L().Info("order not created", zap.Int("customer_id", customerID), zap.Error(err))
		return nil, err
	}

	metrics.OrderTransitions.WithLabelValues(domain.OrderPaid).Inc()
	zap.L().Info("order created", zap.Int("order_id", order.ID), zap.Int64("total", order.TotalAmount))
	s.notifier.Notify(customerID, domain.Event{
		Type:    domain.EventBalanceUpdated,
		Balance: hold.BalanceAfter,
		Message: fmt.Sprintf("Paid %d for order #%d", order.TotalAmount, order.ID),
		OrderID: order.ID,
	})
	return order, nil
}

func checkAccount(req CreateRequest) error {
	if utf8.RuneCountInString(req.Server) > maxServerLen {
		return fmt.Errorf("server must be at most %d characters", maxServerLen)
	}
	if utf8.RuneCountInString(req.Summoner) > maxSummonerLen {
		return fmt.Errorf("summoner name must be at most %d characters", maxSummonerLen)
	}
	if utf8.RuneCountInString(req.Champion) > maxChampionLen {
		return fmt.Errorf("champion must be at most %d characters", maxChampionLen)
	}
	return nil
}

func (s *Service) find(ctx context.Context, orderID int) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// Claim assigns the order to the booster. Of several concurrent claims exactly one wins.
func (s *Service) Claim(ctx context.Context, boosterID, orderID int) (*domain.Order, error) {
	order, err := s.repo.Claim(ctx, orderID, boosterID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		if _, err := s.find(ctx, orderID); err != nil {
			return nil, err
		}
		metrics.ClaimConflicts.Inc()
		return nil, ErrOrderUnavailable
	}

	metrics.OrderTransitions.WithLabelValues(domain.OrderApproved).Inc()
	zap.L().Info("order claimed", zap.Int("order_id", orderID), zap.Int("booster_id", boosterID))
	s.notifyCustomer(order, "Your order was picked up by a booster")
	return order, nil
}

func (s *Service) Start(ctx context.Context, boosterID, orderID int) (*domain.Order, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BoosterID != boosterID {
		return nil, ErrForbidden
	}

	updated, err := s.repo.Transition(ctx, orderID, []string{domain.OrderApproved}, domain.OrderInProgress)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrInvalidTransition
	}
	metrics.OrderTransitions.WithLabelValues(domain.OrderInProgress).Inc()
	s.notifyCustomer(updated, "Your booster started working on the order")
	return updated, nil
}

// Complete finishes the order and pays out in the same transaction.
func (s *Service) Complete(ctx context.Context, actor domain.Actor, orderID int) (*domain.Order, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.BoosterID != actor.UserID {
		return nil, ErrForbidden
	}

	var share int64
	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		completed, err := s.repo.Transition(ctx, orderID,
			[]string{domain.OrderInProgress, domain.OrderDisputed}, domain.OrderCompleted)
		if err != nil {
			return err
		}
		if completed == nil {
			return ErrInvalidTransition
		}
		order, share, err = s.release(ctx, completed)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderTransitions.WithLabelValues(domain.OrderCompleted).Inc()
	s.notifyCustomer(order, "Your order is complete")
	s.notifyEarnings(order, share)
	return order, nil
}

// ReleaseEarnings pays out a completed order. Calling it again after a successful release
// changes nothing and reports released as false.
func (s *Service) ReleaseEarnings(ctx context.Context, orderID int) (order *domain.Order, released bool, err error) {
	var share int64
	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		existing, err := s.find(ctx, orderID)
		if err != nil {
			return err
		}
		if existing.Status != domain.OrderCompleted {
			return ErrInvalidTransition
		}
		if existing.Released {
			order = existing
			return nil
		}
		order, share, err = s.release(ctx, existing)
		if errors.Is(err, ErrAlreadyReleased) {
			order = existing
			return nil
		}
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if share > 0 {
		s.notifyEarnings(order, share)
	}
	return order, share > 0, nil
}

// release must run inside a transaction. The released flag is flipped before any money moves,
// so a concurrent second release finds the guard closed.
func (s *Service) release(ctx context.Context, order *domain.Order) (*domain.Order, int64, error) {
	marked, err := s.repo.MarkReleased(ctx, order.ID)
	if err != nil {
		return nil, 0, err
	}
	if marked == nil {
		return nil, 0, ErrAlreadyReleased
	}

	share, commission, err := s.wallet.Release(ctx, marked)
	if err != nil {
		return nil, 0, err
	}
	if err := s.userRepo.IncrementCompletedOrders(ctx, marked.BoosterID); err != nil {
		return nil, 0, err
	}

	zap.L().Info("order earnings released", zap.Int("order_id", marked.ID),
		zap.Int64("booster_share", share), zap.Int64("commission", commission))
	return marked, share, nil
}

// Refund returns the customer's money. An order nobody claimed yet ends REJECTED, any other
// ends REFUNDED. Released orders cannot be refunded.
func (s *Service) Refund(ctx context.Context, orderID int) (*domain.Order, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Released {
		return nil, ErrAlreadyReleased
	}

	target := domain.OrderRefunded
	if !order.Claimed() && (order.Status == domain.OrderPaid || order.Status == domain.OrderPendingPayment) {
		target = domain.OrderRejected
	}
	if !domain.CanTransition(order.Status, target) {
		return nil, ErrInvalidTransition
	}

	return s.closeWithRefund(ctx, order, []string{order.Status}, target)
}

// Cancel lets the customer withdraw an order no booster has claimed.
func (s *Service) Cancel(ctx context.Context, customerID, orderID int) (*domain.Order, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, ErrForbidden
	}
	if order.Status != domain.OrderPaid || order.Claimed() {
		return nil, ErrOrderUnavailable
	}

	updated, err := s.closeWithRefund(ctx, order, []string{domain.OrderPaid}, domain.OrderRejected)
	if errors.Is(err, ErrInvalidTransition) {
		return nil, ErrOrderUnavailable
	}
	return updated, err
}

func (s *Service) closeWithRefund(ctx context.Context, order *domain.Order, from []string, to string) (*domain.Order, error) {
	var (
		updated *domain.Order
		refund  *domain.Transaction
	)
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.Transition(ctx, order.ID, from, to)
		if err != nil {
			return err
		}
		if updated == nil {
			return ErrInvalidTransition
		}
		if order.Status == domain.OrderPendingPayment {
			return nil
		}
		refund, err = s.wallet.Refund(ctx, updated)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderTransitions.WithLabelValues(updated.Status).Inc()
	zap.L().Info("order closed", zap.Int("order_id", updated.ID), zap.String("status", updated.Status))
	if refund != nil {
		s.notifier.Notify(updated.CustomerID, domain.Event{
			Type:    domain.EventBalanceUpdated,
			Balance: refund.BalanceAfter,
			Message: fmt.Sprintf("Refunded %d for order #%d", refund.Amount, updated.ID),
			OrderID: updated.ID,
		})
	}
	return updated, nil
}

// Dispute freezes an active order until an admin completes or refunds it.
func (s *Service) Dispute(ctx context.Context, actor domain.Actor, orderID int) (*domain.Order, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.CustomerID != actor.UserID && order.BoosterID != actor.UserID {
		return nil, ErrForbidden
	}

	updated, err := s.repo.Transition(ctx, orderID,
		[]string{domain.OrderPaid, domain.OrderApproved, domain.OrderInProgress}, domain.OrderDisputed)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrInvalidTransition
	}
	metrics.OrderTransitions.WithLabelValues(domain.OrderDisputed).Inc()
	zap.L().Warn("order disputed", zap.Int("order_id", orderID), zap.Int("by", actor.UserID))
	return updated, nil
}

func (s *Service) GetOrder(ctx context.Context, actor domain.Actor, orderID int) (*domain.Order, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.CustomerID != actor.UserID && order.BoosterID != actor.UserID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) GetOrders(ctx context.Context, customerID int) ([]domain.Order, error) {
	orders, err := s.repo.FindByCustomerID(ctx, customerID)
	if err != nil {
		zap.L().Error("can't get orders", zap.Error(err))
		return nil, err
	}
	return orders, nil
}

func (s *Service) GetAvailable(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.repo.FindAvailable(ctx, availableLimit)
	if err != nil {
		zap.L().Error("can't get available orders", zap.Error(err))
		return nil, err
	}
	return orders, nil
}

func (s *Service) GetBoosterOrders(ctx context.Context, boosterID int) ([]domain.Order, error) {
	orders, err := s.repo.FindByBoosterID(ctx, boosterID)
	if err != nil {
		zap.L().Error("can't get booster orders", zap.Error(err))
		return nil, err
	}
	return orders, nil
}

func (s *Service) notifyCustomer(order *domain.Order, message string) {
	s.notifier.Notify(order.CustomerID, domain.Event{
		Type:    domain.EventOrderUpdated,
		Message: message,
		OrderID: order.ID,
	})
}

func (s *Service) notifyEarnings(order *domain.Order, share int64) {
	s.notifier.Notify(order.BoosterID, domain.Event{
		Type:    domain.EventBalanceUpdated,
		Message: fmt.Sprintf("Earned %d for order #%d", share, order.ID),
		OrderID: order.ID,
	})
}
