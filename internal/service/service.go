package service

import (
	"github.com/GlebRadaev/boostmarket/internal/config"
	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/handlers/applications"
	"github.com/GlebRadaev/boostmarket/internal/handlers/auth"
	"github.com/GlebRadaev/boostmarket/internal/handlers/orders"
	"github.com/GlebRadaev/boostmarket/internal/handlers/wallet"
	"github.com/GlebRadaev/boostmarket/internal/handlers/webhook"
	"github.com/GlebRadaev/boostmarket/internal/pg"
	"github.com/GlebRadaev/boostmarket/internal/repo"
	"github.com/GlebRadaev/boostmarket/internal/service/applicationservice"
	"github.com/GlebRadaev/boostmarket/internal/service/authservice"
	"github.com/GlebRadaev/boostmarket/internal/service/orderservice"
	"github.com/GlebRadaev/boostmarket/internal/service/otpservice"
	"github.com/GlebRadaev/boostmarket/internal/service/reconcileservice"
	"github.com/GlebRadaev/boostmarket/internal/service/walletservice"
	pkgauth "github.com/GlebRadaev/boostmarket/pkg/auth"
)

type Notifier interface {
	Notify(userID int, event domain.Event)
}

// Deps are the collaborators built by the app before the services.
type Deps struct {
	TXManager pg.TXManager
	Notifier  Notifier
	Mailer    otpservice.Mailer
	Pricer    orderservice.Pricer
}

type Services struct {
	AuthService        auth.Service
	OTPService         auth.OTPService
	OrderService       orders.Service
	WalletService      wallet.Service
	ReconcileService   webhook.Service
	ApplicationService applications.Service

	// Wallet is the same ledger as WalletService, exposed with the sweeper's needs.
	Wallet     *walletservice.Service
	JWTService *pkgauth.JWTService
	Roles      pkgauth.RoleSource
}

func New(repos *repo.Repositories, deps Deps, conf *config.Config) *Services {
	hashService := pkgauth.NewHashService(conf.PasswordCost)
	jwtService := pkgauth.NewJWTService(conf.JWTSecret)

	walletService := walletservice.New(repos.UserRepo, repos.TransactionRepo, deps.TXManager, deps.Notifier,
		walletservice.Options{
			PlatformUserID:  conf.PlatformUserID,
			BoosterSharePct: conf.BoosterSharePct,
			DepositPrefix:   conf.DepositPrefix,
			DepositTTL:      conf.DepositTTL,
		})
	orderService := orderservice.New(repos.OrderRepo, repos.UserRepo, walletService, deps.Pricer, deps.TXManager, deps.Notifier)
	reconcileService := reconcileservice.New(repos.UserRepo, repos.TransactionRepo, repos.WebhookRepo, walletService,
		deps.TXManager, deps.Notifier, conf.DepositPrefix)
	applicationService := applicationservice.New(repos.ApplicationRepo, repos.UserRepo, deps.TXManager)
	authService := authservice.New(repos.UserRepo, hashService, jwtService, conf.TokenTTL)
	otpService := otpservice.New(repos.CodeRepo, repos.UserRepo, deps.Mailer, hashService, conf.OTPTTL)

	return &Services{
		AuthService:        authService,
		OTPService:         otpService,
		OrderService:       orderService,
		WalletService:      walletService,
		ReconcileService:   reconcileService,
		ApplicationService: applicationService,
		Wallet:             walletService,
		JWTService:         jwtService,
		Roles:              authService,
	}
}
