package repo

import (
	"github.com/GlebRadaev/boostmarket/internal/pg"
	applicationrepo "github.com/GlebRadaev/boostmarket/internal/repo/application-repo"
	coderepo "github.com/GlebRadaev/boostmarket/internal/repo/code-repo"
	orderrepo "github.com/GlebRadaev/boostmarket/internal/repo/order-repo"
	transactionrepo "github.com/GlebRadaev/boostmarket/internal/repo/transaction-repo"
	userrepo "github.com/GlebRadaev/boostmarket/internal/repo/user-repo"
	webhookrepo "github.com/GlebRadaev/boostmarket/internal/repo/webhook-repo"
)

// Repositories share one Database, so all of them join the transaction carried by ctx.
type Repositories struct {
	UserRepo        *userrepo.Repository
	OrderRepo       *orderrepo.Repository
	TransactionRepo *transactionrepo.Repository
	ApplicationRepo *applicationrepo.Repository
	CodeRepo        *coderepo.Repository
	WebhookRepo     *webhookrepo.Repository
}

func New(conn pg.Database) *Repositories {
	return &Repositories{
		UserRepo:        userrepo.New(conn),
		OrderRepo:       orderrepo.New(conn),
		TransactionRepo: transactionrepo.New(conn),
		ApplicationRepo: applicationrepo.New(conn),
		CodeRepo:        coderepo.New(conn),
		WebhookRepo:     webhookrepo.New(conn),
	}
}
