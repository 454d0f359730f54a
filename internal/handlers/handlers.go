package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/GlebRadaev/boostmarket/docs"
	"github.com/GlebRadaev/boostmarket/internal/domain"
	applicationhandlers "github.com/GlebRadaev/boostmarket/internal/handlers/applications"
	authhandlers "github.com/GlebRadaev/boostmarket/internal/handlers/auth"
	ordershandlers "github.com/GlebRadaev/boostmarket/internal/handlers/orders"
	realtimehandlers "github.com/GlebRadaev/boostmarket/internal/handlers/realtime"
	wallethandlers "github.com/GlebRadaev/boostmarket/internal/handlers/wallet"
	webhookhandlers "github.com/GlebRadaev/boostmarket/internal/handlers/webhook"
	"github.com/GlebRadaev/boostmarket/internal/metrics"
	"github.com/GlebRadaev/boostmarket/internal/service"
	"github.com/GlebRadaev/boostmarket/pkg/auth"
)

type AuthHandler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	SendVerification(w http.ResponseWriter, r *http.Request)
	VerifyEmail(w http.ResponseWriter, r *http.Request)
	ForgotPassword(w http.ResponseWriter, r *http.Request)
	ResetPassword(w http.ResponseWriter, r *http.Request)
	ChangeEmail(w http.ResponseWriter, r *http.Request)
}

type OrderHandler interface {
	Quote(w http.ResponseWriter, r *http.Request)
	CreateOrder(w http.ResponseWriter, r *http.Request)
	GetOrders(w http.ResponseWriter, r *http.Request)
	GetOrder(w http.ResponseWriter, r *http.Request)
	CancelOrder(w http.ResponseWriter, r *http.Request)
	DisputeOrder(w http.ResponseWriter, r *http.Request)
	GetJobs(w http.ResponseWriter, r *http.Request)
	GetMyJobs(w http.ResponseWriter, r *http.Request)
	ClaimJob(w http.ResponseWriter, r *http.Request)
	StartJob(w http.ResponseWriter, r *http.Request)
	CompleteJob(w http.ResponseWriter, r *http.Request)
	RefundOrder(w http.ResponseWriter, r *http.Request)
	ReleaseEarnings(w http.ResponseWriter, r *http.Request)
}

type WalletHandler interface {
	GetWallet(w http.ResponseWriter, r *http.Request)
	GetTransactions(w http.ResponseWriter, r *http.Request)
	CreateDeposit(w http.ResponseWriter, r *http.Request)
	ConfirmTransaction(w http.ResponseWriter, r *http.Request)
	RejectTransaction(w http.ResponseWriter, r *http.Request)
	GetLedger(w http.ResponseWriter, r *http.Request)
}

type WebhookHandler interface {
	BankNotification(w http.ResponseWriter, r *http.Request)
	ListForReview(w http.ResponseWriter, r *http.Request)
}

type ApplicationHandler interface {
	Apply(w http.ResponseWriter, r *http.Request)
	GetMine(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	StartTesting(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	Reject(w http.ResponseWriter, r *http.Request)
	SetLevel(w http.ResponseWriter, r *http.Request)
}

type RealtimeHandler interface {
	Connect(w http.ResponseWriter, r *http.Request)
}

type Handlers struct {
	AuthHandler        AuthHandler
	OrderHandler       OrderHandler
	WalletHandler      WalletHandler
	WebhookHandler     WebhookHandler
	ApplicationHandler ApplicationHandler
	RealtimeHandler    RealtimeHandler

	Tokens auth.TokenValidator
	Roles  auth.RoleSource
}

func New(s *service.Services, broker realtimehandlers.Subscriber, webhookAPIKey string) *Handlers {
	return &Handlers{
		AuthHandler:        authhandlers.New(s.AuthService, s.OTPService),
		OrderHandler:       ordershandlers.New(s.OrderService),
		WalletHandler:      wallethandlers.New(s.WalletService),
		WebhookHandler:     webhookhandlers.New(s.ReconcileService, webhookAPIKey),
		ApplicationHandler: applicationhandlers.New(s.ApplicationService),
		RealtimeHandler:    realtimehandlers.New(broker),
		Tokens:             s.JWTService,
		Roles:              s.Roles,
	}
}

func (h *Handlers) InitRoutes(r chi.Router) chi.Router {
	r.Use(
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		metrics.Middleware,
	)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("doc.json"),
	))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.AuthHandler.Register)
		r.Post("/user/login", h.AuthHandler.Login)
		r.Post("/user/password/forgot", h.AuthHandler.ForgotPassword)
		r.Post("/user/password/reset", h.AuthHandler.ResetPassword)
		r.Post("/pricing/quote", h.OrderHandler.Quote)
		r.Post("/webhooks/bank", h.WebhookHandler.BankNotification)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(h.Tokens))

			r.Get("/user/ws", h.RealtimeHandler.Connect)
			r.Post("/user/email/verify/send", h.AuthHandler.SendVerification)
			r.Post("/user/email/verify", h.AuthHandler.VerifyEmail)
			r.Post("/user/email/change", h.AuthHandler.ChangeEmail)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.OrderHandler.CreateOrder)
				r.Get("/", h.OrderHandler.GetOrders)
				r.Get("/{id}", h.OrderHandler.GetOrder)
				r.Post("/{id}/cancel", h.OrderHandler.CancelOrder)
				r.Post("/{id}/dispute", h.OrderHandler.DisputeOrder)
			})
			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", h.WalletHandler.GetWallet)
				r.Get("/transactions", h.WalletHandler.GetTransactions)
				r.Post("/deposits", h.WalletHandler.CreateDeposit)
			})
			r.Post("/applications", h.ApplicationHandler.Apply)
			r.Get("/applications/mine", h.ApplicationHandler.GetMine)

			r.Route("/jobs", func(r chi.Router) {
				r.Use(auth.RefreshRole(h.Roles), auth.RequireRole(domain.RoleBooster, domain.RoleAdmin))
				r.Get("/", h.OrderHandler.GetJobs)
				r.Get("/mine", h.OrderHandler.GetMyJobs)
				r.Post("/{id}/claim", h.OrderHandler.ClaimJob)
				r.Post("/{id}/start", h.OrderHandler.StartJob)
				r.Post("/{id}/complete", h.OrderHandler.CompleteJob)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RefreshRole(h.Roles), auth.RequireRole(domain.RoleAdmin))
				r.Post("/transactions/{id}/confirm", h.WalletHandler.ConfirmTransaction)
				r.Post("/transactions/{id}/reject", h.WalletHandler.RejectTransaction)
				r.Get("/users/{id}/ledger", h.WalletHandler.GetLedger)
				r.Post("/orders/{id}/refund", h.OrderHandler.RefundOrder)
				r.Post("/orders/{id}/complete", h.OrderHandler.CompleteJob)
				r.Post("/orders/{id}/release", h.OrderHandler.ReleaseEarnings)
				r.Get("/applications", h.ApplicationHandler.List)
				r.Post("/applications/{id}/testing", h.ApplicationHandler.StartTesting)
				r.Post("/applications/{id}/approve", h.ApplicationHandler.Approve)
				r.Post("/applications/{id}/reject", h.ApplicationHandler.Reject)
				r.Post("/applications/{id}/level", h.ApplicationHandler.SetLevel)
				r.Get("/webhooks/review", h.WebhookHandler.ListForReview)
			})
		})
	})

	return r
}
