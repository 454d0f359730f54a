package applicationservice

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/pg"
	"github.com/GlebRadaev/boostmarket/pkg/validate"
)

type Repo interface {
	Create(ctx context.Context, app *domain.BoosterApplication) (*domain.BoosterApplication, error)
	FindByID(ctx context.Context, id int) (*domain.BoosterApplication, error)
	FindLatestByUserID(ctx context.Context, userID int) (*domain.BoosterApplication, error)
	List(ctx context.Context, status string) ([]domain.BoosterApplication, error)
	UpdateStatus(ctx context.Context, id int, from []string, to, reason string) (*domain.BoosterApplication, error)
	SetLevel(ctx context.Context, id int, level string) (*domain.BoosterApplication, error)
}

type UserRepo interface {
	SetRole(ctx context.Context, userID int, role string) error
}

type Service struct {
	repo      Repo
	userRepo  UserRepo
	txManager pg.TXManager
}

func New(repo Repo, userRepo UserRepo, txManager pg.TXManager) *Service {
	return &Service{
		repo:      repo,
		userRepo:  userRepo,
		txManager: txManager,
	}
}

var (
	ErrInvalidApplication = errors.New("invalid application")
	ErrAlreadyApplied     = errors.New("an application is already under review")
	ErrAlreadyBooster     = errors.New("user is already a booster")
	ErrNotFound           = errors.New("application not found")
	ErrConflict           = errors.New("application status does not allow this action")
	ErrInvalidLevel       = errors.New("unknown booster level")
)

var offeredServices = []string{
	domain.ServiceRankBoost, domain.ServicePromotion, domain.ServiceMastery,
	domain.ServiceLeveling, domain.ServiceNetWins, domain.ServicePlacements,
}

var levels = []string{
	domain.BoosterLevelNew, domain.BoosterLevelVerified, domain.BoosterLevelTrusted, domain.BoosterLevelWarned,
}

func invalid(reason string) error {
	return errors.Join(ErrInvalidApplication, errors.New(reason))
}

func check(app *domain.BoosterApplication) error {
	if strings.TrimSpace(app.DisplayName) == "" {
		return invalid("display name is required")
	}
	if strings.TrimSpace(app.SignedName) == "" {
		return invalid("the agreement must be signed")
	}
	if len(app.Services) == 0 {
		return invalid("at least one service is required")
	}
	for _, svc := range app.Services {
		if !slices.Contains(offeredServices, svc) {
			return invalid("unknown service " + svc)
		}
	}
	if !validate.IsCardNumber(app.PayoutCard) {
		return invalid("payout card number is not valid")
	}
	return nil
}

// Apply files a booster application. A user may have only one open application at a time.
func (s *Service) Apply(ctx context.Context, actor domain.Actor, app *domain.BoosterApplication) (*domain.BoosterApplication, error) {
	if actor.Role == domain.RoleBooster {
		return nil, ErrAlreadyBooster
	}
	if err := check(app); err != nil {
		return nil, err
	}

	latest, err := s.repo.FindLatestByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if latest != nil && (latest.Status == domain.ApplicationPending || latest.Status == domain.ApplicationTesting) {
		return nil, ErrAlreadyApplied
	}

	app.UserID = actor.UserID
	app.PayoutCard = validate.NormalizeCard(app.PayoutCard)
	app.Status = domain.ApplicationPending
	app.Level = domain.BoosterLevelNew
	app.SignedAt = time.Now()

	created, err := s.repo.Create(ctx, app)
	if err != nil {
		return nil, err
	}
	zap.L().Info("booster application filed", zap.Int("user_id", actor.UserID), zap.Int("application_id", created.ID))
	return created, nil
}

func (s *Service) GetMine(ctx context.Context, userID int) (*domain.BoosterApplication, error) {
	app, err := s.repo.FindLatestByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrNotFound
	}
	return app, nil
}

func (s *Service) List(ctx context.Context, status string) ([]domain.BoosterApplication, error) {
	return s.repo.List(ctx, status)
}

func (s *Service) StartTesting(ctx context.Context, id int) (*domain.BoosterApplication, error) {
	return s.move(ctx, id, []string{domain.ApplicationPending}, domain.ApplicationTesting, "")
}

// Approve promotes the applicant to booster. The status guard makes a replayed approval fail
// with ErrConflict before the role is touched again.
func (s *Service) Approve(ctx context.Context, id int) (*domain.BoosterApplication, error) {
	var approved *domain.BoosterApplication
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		var err error
		approved, err = s.move(ctx, id,
			[]string{domain.ApplicationPending, domain.ApplicationTesting}, domain.ApplicationApproved, "")
		if err != nil {
			return err
		}
		return s.userRepo.SetRole(ctx, approved.UserID, domain.RoleBooster)
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("booster approved", zap.Int("user_id", approved.UserID))
	return approved, nil
}

func (s *Service) Reject(ctx context.Context, id int, reason string) (*domain.BoosterApplication, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, invalid("a reason is required")
	}
	return s.move(ctx, id, []string{domain.ApplicationPending, domain.ApplicationTesting}, domain.ApplicationRejected, reason)
}

func (s *Service) SetLevel(ctx context.Context, id int, level string) (*domain.BoosterApplication, error) {
	if !slices.Contains(levels, level) {
		return nil, ErrInvalidLevel
	}
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrNotFound
	}
	if app.Status != domain.ApplicationApproved {
		return nil, ErrConflict
	}
	return s.repo.SetLevel(ctx, id, level)
}

func (s *Service) move(ctx context.Context, id int, from []string, to, reason string) (*domain.BoosterApplication, error) {
	app, err := s.repo.UpdateStatus(ctx, id, from, to, reason)
	if err != nil {
		return nil, err
	}
	if app != nil {
		return app, nil
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	return nil, ErrConflict
}
